package repository

import (
	"context"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type storeRepository struct {
	db *mongo.Database
}

func NewStoreRepository(db *mongo.Database) domain.StoreRepository {
	return &storeRepository{
		db: db,
	}
}

func (r *storeRepository) Create(ctx context.Context, store *domain.Store) error {
	collection := r.db.Collection(db.StoresCollection)

	_, err := collection.InsertOne(ctx, store)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return classify("stores.insert", err)
}

func (r *storeRepository) FindByID(ctx context.Context, id string) (*domain.Store, error) {
	collection := r.db.Collection(db.StoresCollection)

	var store domain.Store
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&store)
	if err != nil {
		return nil, classify("stores.find", err)
	}

	return &store, nil
}

func (r *storeRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Store, error) {
	collection := r.db.Collection(db.StoresCollection)

	var store domain.Store
	err := collection.FindOne(ctx, bson.M{"idempotencyKey": key}).Decode(&store)
	if err != nil {
		return nil, classify("stores.find", err)
	}

	return &store, nil
}

func (r *storeRepository) EnsureIndexes(ctx context.Context) error {
	return ensureIdempotencyIndex(ctx, r.db.Collection(db.StoresCollection))
}

type ownerIndex struct {
	db *mongo.Database
}

// NewOwnerIndex is the Store service's id-only record of users learned from
// lifecycle events.
func NewOwnerIndex(db *mongo.Database) domain.OwnerIndex {
	return &ownerIndex{
		db: db,
	}
}

func (r *ownerIndex) Add(ctx context.Context, userID string) error {
	collection := r.db.Collection(db.StoreOwnersCollection)

	filter := bson.M{"_id": userID}
	update := bson.M{"$setOnInsert": bson.M{"_id": userID}}

	_, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return classify("store_owners.upsert", err)
}

func (r *ownerIndex) Contains(ctx context.Context, userID string) (bool, error) {
	collection := r.db.Collection(db.StoreOwnersCollection)

	err := collection.FindOne(ctx, bson.M{"_id": userID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, classify("store_owners.find", err)
	}

	return true, nil
}
