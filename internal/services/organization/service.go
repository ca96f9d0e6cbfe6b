// Package organization is the domain service owning Organization entities.
// It is the only writer of the organizations collection; other services hold
// organization ids and resolve them through query events.
package organization

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/emporion-io/emporion/internal/infrastructure/messaging"
	"github.com/emporion-io/emporion/internal/runtime"
)

type createOrganizationInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type getInput struct {
	ID string `json:"id"`
}

type Service struct {
	organizations domain.OrganizationRepository
	publisher     messaging.Publisher
	logger        logging.Logger
}

func NewService(organizations domain.OrganizationRepository, publisher messaging.Publisher, logger logging.Logger) *Service {
	return &Service{
		organizations: organizations,
		publisher:     publisher,
		logger:        logger,
	}
}

func (s *Service) Register(rt *runtime.Runtime) {
	rt.MustRegister(contracts.CommandOrganizationCreate, s.HandleCreate)
	rt.MustRegister(contracts.QueryOrganizationGet, s.HandleGet)
}

func (s *Service) HandleCreate(ctx context.Context, event contracts.Event) (contracts.Reply, error) {
	var input createOrganizationInput
	if err := json.Unmarshal(event.Payload, &input); err != nil {
		return contracts.Reply{}, domain.NewValidationError("payload does not match organization shape")
	}

	existing, err := s.organizations.FindByIdempotencyKey(ctx, event.IdempotencyKey)
	if err == nil {
		// Redelivery of an already-applied create.
		return replyWith(existing)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return contracts.Reply{}, err
	}

	org, err := domain.NewOrganization(input.Name, input.Description, event.IdempotencyKey)
	if err != nil {
		return contracts.Reply{}, err
	}

	if err := s.organizations.Create(ctx, org); err != nil {
		return contracts.Reply{}, err
	}

	s.logger.Info(logging.General, logging.Dispatch, "organization created", map[logging.ExtraKey]any{
		logging.EntityID: org.ID,
	})

	s.publishCreated(ctx, org)

	return replyWith(org)
}

func (s *Service) HandleGet(ctx context.Context, event contracts.Event) (contracts.Reply, error) {
	var input getInput
	if err := json.Unmarshal(event.Payload, &input); err != nil {
		return contracts.Reply{}, domain.NewValidationError("payload does not match lookup shape")
	}

	org, err := s.organizations.FindByID(ctx, input.ID)
	if errors.Is(err, domain.ErrNotFound) {
		// A miss is an answer, not a handler failure: reply negatively and
		// let the asking side decide whether to retry.
		miss := &domain.ReferenceNotFoundError{Kind: "organization", ID: input.ID}
		return contracts.Reply{Error: messaging.WireFromError(miss)}, nil
	}
	if err != nil {
		return contracts.Reply{}, err
	}

	return replyWith(org)
}

func (s *Service) publishCreated(ctx context.Context, org *domain.Organization) {
	payload, err := json.Marshal(org)
	if err != nil {
		s.logger.Error(logging.Messaging, logging.Publish, "failed to marshal organization event", map[logging.ExtraKey]any{
			logging.EntityID:     org.ID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	event := contracts.NewEvent(contracts.EventOrganizationCreated, payload, org.IdempotencyKey)
	if err := s.publisher.PublishMessage(ctx, messaging.EventsExchange, contracts.EventOrganizationCreated, event, messaging.PublishOptions{}); err != nil {
		s.logger.Error(logging.Messaging, logging.Publish, "failed to publish organization.created", map[logging.ExtraKey]any{
			logging.EntityID:     org.ID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

func replyWith(v any) (contracts.Reply, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return contracts.Reply{}, err
	}
	return contracts.Reply{Data: data}, nil
}
