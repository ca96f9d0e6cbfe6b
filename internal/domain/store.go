package domain

import (
	"context"
	"strings"
	"time"

	"github.com/emporion-io/emporion/internal/infrastructure/validate"
	"github.com/google/uuid"
)

type Store struct {
	ID             string    `json:"id" bson:"_id"`
	Name           string    `json:"name" bson:"name"`
	OwnerID        string    `json:"ownerId" bson:"ownerId"`
	Description    string    `json:"description,omitempty" bson:"description,omitempty"`
	IdempotencyKey string    `json:"-" bson:"idempotencyKey"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

type StoreRepository interface {
	Create(ctx context.Context, store *Store) error
	FindByID(ctx context.Context, id string) (*Store, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Store, error)
	EnsureIndexes(ctx context.Context) error
}

// OwnerIndex is the Store service's local record of user ids it has seen via
// lifecycle events. It only ever holds ids, never a copy of user state.
type OwnerIndex interface {
	Add(ctx context.Context, userID string) error
	Contains(ctx context.Context, userID string) (bool, error)
}

func NewStore(rawName, ownerID, description, idempotencyKey string) (*Store, error) {
	if err := validate.Field("name", validate.Required(), validate.MaxLength(128))(rawName); err != nil {
		return nil, NewValidationError(err.Error())
	}
	if err := validate.Field("ownerId", validate.Required())(ownerID); err != nil {
		return nil, NewValidationError(err.Error())
	}

	return &Store{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(rawName),
		OwnerID:        ownerID,
		Description:    strings.TrimSpace(description),
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
