package domain

import (
	"context"
	"strings"
	"time"

	"github.com/emporion-io/emporion/internal/infrastructure/validate"
	"github.com/google/uuid"
)

type User struct {
	ID             string    `json:"id" bson:"_id"`
	Email          string    `json:"email" bson:"email"`
	Name           string    `json:"name" bson:"name"`
	OrganizationID string    `json:"organizationId" bson:"organizationId"`
	IdempotencyKey string    `json:"-" bson:"idempotencyKey"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*User, error)
	EnsureIndexes(ctx context.Context) error
}

func NewUser(rawEmail, rawName, organizationID, idempotencyKey string) (*User, error) {
	validators := []validate.Validator{
		validate.Field("email", validate.Required(), validate.Email()),
		validate.Field("name", validate.Required(), validate.MaxLength(128)),
	}
	values := []string{rawEmail, rawName}

	for i, v := range validators {
		if err := v(values[i]); err != nil {
			return nil, NewValidationError(err.Error())
		}
	}

	if err := validate.Field("organizationId", validate.Required())(organizationID); err != nil {
		return nil, NewValidationError(err.Error())
	}

	return &User{
		ID:             uuid.NewString(),
		Email:          strings.ToLower(strings.TrimSpace(rawEmail)),
		Name:           strings.TrimSpace(rawName),
		OrganizationID: organizationID,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
