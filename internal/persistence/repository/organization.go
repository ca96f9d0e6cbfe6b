package repository

import (
	"context"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type organizationRepository struct {
	db *mongo.Database
}

func NewOrganizationRepository(db *mongo.Database) domain.OrganizationRepository {
	return &organizationRepository{
		db: db,
	}
}

func (r *organizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	collection := r.db.Collection(db.OrganizationsCollection)

	_, err := collection.InsertOne(ctx, org)
	if mongo.IsDuplicateKeyError(err) {
		// Redelivery raced a previous insert on the idempotency index; the
		// entity exists, which is the outcome we wanted.
		return nil
	}
	return classify("organizations.insert", err)
}

func (r *organizationRepository) FindByID(ctx context.Context, id string) (*domain.Organization, error) {
	collection := r.db.Collection(db.OrganizationsCollection)

	var org domain.Organization
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	if err != nil {
		return nil, classify("organizations.find", err)
	}

	return &org, nil
}

func (r *organizationRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Organization, error) {
	collection := r.db.Collection(db.OrganizationsCollection)

	var org domain.Organization
	err := collection.FindOne(ctx, bson.M{"idempotencyKey": key}).Decode(&org)
	if err != nil {
		return nil, classify("organizations.find", err)
	}

	return &org, nil
}

func (r *organizationRepository) EnsureIndexes(ctx context.Context) error {
	return ensureIdempotencyIndex(ctx, r.db.Collection(db.OrganizationsCollection))
}
