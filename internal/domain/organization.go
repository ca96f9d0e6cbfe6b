package domain

import (
	"context"
	"strings"
	"time"

	"github.com/emporion-io/emporion/internal/infrastructure/validate"
	"github.com/google/uuid"
)

type Organization struct {
	ID             string    `json:"id" bson:"_id"`
	Name           string    `json:"name" bson:"name"`
	Description    string    `json:"description,omitempty" bson:"description,omitempty"`
	IdempotencyKey string    `json:"-" bson:"idempotencyKey"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

type OrganizationRepository interface {
	Create(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id string) (*Organization, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Organization, error)
	EnsureIndexes(ctx context.Context) error
}

func NewOrganization(rawName, description, idempotencyKey string) (*Organization, error) {
	validateName := validate.Field("name",
		validate.Required(),
		validate.MaxLength(128),
	)

	if err := validateName(rawName); err != nil {
		return nil, NewValidationError(err.Error())
	}

	return &Organization{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(rawName),
		Description:    strings.TrimSpace(description),
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
