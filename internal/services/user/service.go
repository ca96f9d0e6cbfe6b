// Package user is the domain service owning User entities. A user's
// organizationId is validated against the Organization service through a
// query event before the user is persisted; the organizations collection is
// never read directly.
package user

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/emporion-io/emporion/internal/infrastructure/messaging"
	"github.com/emporion-io/emporion/internal/runtime"
)

type createUserInput struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId"`
}

type getInput struct {
	ID string `json:"id"`
}

type Service struct {
	users         domain.UserRepository
	publisher     messaging.Publisher
	requester     messaging.RequestReplier
	verifyTimeout time.Duration
	logger        logging.Logger
}

func NewService(
	users domain.UserRepository,
	publisher messaging.Publisher,
	requester messaging.RequestReplier,
	verifyTimeout time.Duration,
	logger logging.Logger,
) *Service {
	if verifyTimeout <= 0 {
		verifyTimeout = 5 * time.Second
	}

	return &Service{
		users:         users,
		publisher:     publisher,
		requester:     requester,
		verifyTimeout: verifyTimeout,
		logger:        logger,
	}
}

func (s *Service) Register(rt *runtime.Runtime) {
	rt.MustRegister(contracts.CommandUserCreate, s.HandleCreate)
	rt.MustRegister(contracts.QueryUserGet, s.HandleGet)
}

func (s *Service) HandleCreate(ctx context.Context, event contracts.Event) (contracts.Reply, error) {
	var input createUserInput
	if err := json.Unmarshal(event.Payload, &input); err != nil {
		return contracts.Reply{}, domain.NewValidationError("payload does not match user shape")
	}

	existing, err := s.users.FindByIdempotencyKey(ctx, event.IdempotencyKey)
	if err == nil {
		return replyWith(existing)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return contracts.Reply{}, err
	}

	user, err := domain.NewUser(input.Email, input.Name, input.OrganizationID, event.IdempotencyKey)
	if err != nil {
		return contracts.Reply{}, err
	}

	// The organization may have been created only moments ago on another
	// queue; a miss here is retried by the runtime, not rejected outright.
	if err := s.verifyOrganization(ctx, user.OrganizationID); err != nil {
		return contracts.Reply{}, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return contracts.Reply{}, err
	}

	s.logger.Info(logging.General, logging.Dispatch, "user created", map[logging.ExtraKey]any{
		logging.EntityID: user.ID,
	})

	s.publishCreated(ctx, user)

	return replyWith(user)
}

func (s *Service) HandleGet(ctx context.Context, event contracts.Event) (contracts.Reply, error) {
	var input getInput
	if err := json.Unmarshal(event.Payload, &input); err != nil {
		return contracts.Reply{}, domain.NewValidationError("payload does not match lookup shape")
	}

	user, err := s.users.FindByID(ctx, input.ID)
	if errors.Is(err, domain.ErrNotFound) {
		miss := &domain.ReferenceNotFoundError{Kind: "user", ID: input.ID}
		return contracts.Reply{Error: messaging.WireFromError(miss)}, nil
	}
	if err != nil {
		return contracts.Reply{}, err
	}

	return replyWith(user)
}

// verifyOrganization resolves the reference through the Organization
// service's query event. A timeout counts as transient: the owning service
// may simply be catching up.
func (s *Service) verifyOrganization(ctx context.Context, organizationID string) error {
	payload, err := json.Marshal(getInput{ID: organizationID})
	if err != nil {
		return err
	}

	query := contracts.NewEvent(contracts.QueryOrganizationGet, payload, "")
	reply, err := s.requester.Request(ctx, messaging.CommandsExchange, contracts.QueryOrganizationGet, query, s.verifyTimeout)
	if err != nil {
		return err
	}

	if reply.Error != nil {
		return messaging.ErrorFromWire(reply.Error)
	}

	return nil
}

func (s *Service) publishCreated(ctx context.Context, user *domain.User) {
	payload, err := json.Marshal(user)
	if err != nil {
		s.logger.Error(logging.Messaging, logging.Publish, "failed to marshal user event", map[logging.ExtraKey]any{
			logging.EntityID:     user.ID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	event := contracts.NewEvent(contracts.EventUserCreated, payload, user.IdempotencyKey)
	if err := s.publisher.PublishMessage(ctx, messaging.EventsExchange, contracts.EventUserCreated, event, messaging.PublishOptions{}); err != nil {
		s.logger.Error(logging.Messaging, logging.Publish, "failed to publish user.created", map[logging.ExtraKey]any{
			logging.EntityID:     user.ID,
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
