// Package repository implements the entity store contracts on MongoDB. Each
// service binary opens its own client; collections are never shared across
// services.
package repository

import (
	"context"
	"errors"

	"github.com/emporion-io/emporion/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// classify maps driver errors into the platform taxonomy. Anything that is
// not a definite miss counts as transient: the message will be retried with
// backoff rather than dead-lettered.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	return &domain.TransientStoreError{Op: op, Err: err}
}

// ensureIdempotencyIndex creates the unique index that backs exactly-once
// entity creation under at-least-once delivery.
func ensureIdempotencyIndex(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "idempotencyKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
