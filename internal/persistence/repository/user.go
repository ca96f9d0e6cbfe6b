package repository

import (
	"context"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type userRepository struct {
	db *mongo.Database
}

func NewUserRepository(db *mongo.Database) domain.UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	collection := r.db.Collection(db.UsersCollection)

	_, err := collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return classify("users.insert", err)
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	collection := r.db.Collection(db.UsersCollection)

	var user domain.User
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, classify("users.find", err)
	}

	return &user, nil
}

func (r *userRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.User, error) {
	collection := r.db.Collection(db.UsersCollection)

	var user domain.User
	err := collection.FindOne(ctx, bson.M{"idempotencyKey": key}).Decode(&user)
	if err != nil {
		return nil, classify("users.find", err)
	}

	return &user, nil
}

func (r *userRepository) EnsureIndexes(ctx context.Context) error {
	return ensureIdempotencyIndex(ctx, r.db.Collection(db.UsersCollection))
}
