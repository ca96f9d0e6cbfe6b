// Package store is the domain service owning Store entities. Besides its
// command and query handlers it consumes user.created lifecycle events to
// keep a local id-only index of possible owners, so most ownership checks
// resolve without a cross-service round trip.
package store

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

type createStoreInput struct {
	Name        string `json:"name"`
	OwnerID     string `json:"ownerId"`
	Description string `json:"description,omitempty"`
}

type getInput struct {
	ID string `json:"id"`
}

type userCreatedPayload struct {
	ID string `json:"id"`
}

type Service struct {
	stores        domain.StoreRepository
	owners        domain.OwnerIndex
	publisher     messaging.Publisher
	requester     messaging.RequestReplier
	verifyTimeout time.Duration
	logger        logging.Logger
}

func NewService(
	stores domain.StoreRepository,
	owners domain.OwnerIndex,
	publisher messaging.Publisher,
	requester messaging.RequestReplier,
	verifyTimeout time.Duration,
	logger logging.Logger,
) *Service {
	if verifyTimeout <= 0 {
		verifyTimeout = 5 * time.Second
	}

	return &Service{
		stores:        stores,
		owners:        owners,
		publisher:     publisher,
		requester:     requester,
		verifyTimeout: verifyTimeout,
		logger:        logger,
	}
}

func (s *Service) Register(rt *runtime.Runtime) {
	rt.MustRegister(contracts.CommandStoreCreate, s.HandleCreate)
	rt.MustRegister(contracts.QueryStoreGet, s.HandleGet)
	rt.MustRegister(contracts.EventUserCreated, s.HandleUserCreated)
}

func (s *Service) HandleCreate(ctx context.Context, event contracts.Event) (contracts.Reply, error) {
	var input createStoreInput
	if err := json.Unmarshal(event.Payload, &input); err != nil {
		return contracts.Reply{}, domain.NewValidationError("payload does not match store shape")
	}

	existing, err := s.stores.FindByIdempotencyKey(ctx, event.IdempotencyKey)
	if err == nil {
		return replyWith(existing)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return contracts.Reply{}, err
	}

	store, err := domain.NewStore(input.Name, input.OwnerID, input.Description, event.IdempotencyKey)
	if err != nil {
		return contracts.Reply{}, err
	}

	if err := s.verifyOwner(ctx, store.OwnerID); err != nil {
		return contracts.Reply{}, err
	}

	if err := s.stores.Create(ctx, store); err != nil {
		return contracts.Reply{}, err
	}

	s.logger.Info(logging.General, logging.Dispatch, "store created", map[logging.ExtraKey]any{
		logging.EntityID: store.ID,
	})

	s.publishCreated(ctx, store)

	return replyWith(store)
}

func (s *Service) HandleGet(ctx context.Context, event contracts.Event) (contracts.Reply, error) {
	var input getInput
	if err := json.Unmarshal(event.Payload, &input); err != nil {
		return contracts.Reply{}, domain.NewValidationError("payload does not match lookup shape")
	}

	store, err := s.stores.FindByID(ctx, input.ID)
	if errors.Is(err, domain.ErrNotFound) {
		miss := &domain.ReferenceNotFoundError{Kind: "store", ID: input.ID}
		return contracts.Reply{Error: messaging.WireFromError(miss)}, nil
	}
	if err != nil {
		return contracts.Reply{}, err
	}

	return replyWith(store)
}

// HandleUserCreated records a new user id in the local owner index.
func (s *Service) HandleUserCreated(ctx context.Context, event contracts.Event) (contracts.Reply, error) {
	var payload userCreatedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return contracts.Reply{}, domain.NewValidationError("payload does not match user.created shape")
	}
	if payload.ID == "" {
		return contracts.Reply{}, domain.NewValidationError("user.created event without an id")
	}

	if err := s.owners.Add(ctx, payload.ID); err != nil {
		return contracts.Reply{}, err
	}

	return contracts.Reply{}, nil
}

// verifyOwner checks the local index first and falls back to asking the User
// service. The fallback covers owners created before this service started
// binding user.created.
func (s *Service) verifyOwner(ctx context.Context, ownerID string) error {
	known, err := s.owners.Contains(ctx, ownerID)
	if err != nil {
		return err
	}
	if known {
		return nil
	}

	payload, err := json.Marshal(getInput{ID: ownerID})
	if err != nil {
		return err
	}

	query := contracts.NewEvent(contracts.QueryUserGet, payload, "")
	reply, err := s.requester.Request(ctx, messaging.CommandsExchange, contracts.QueryUserGet, query, s.verifyTimeout)
	if err != nil {
		return err
	}

	if reply.Error != nil {
		return messaging.ErrorFromWire(reply.Error)
	}

	return nil
}

func (s *Service) publishCreated(ctx context.Context, store *domain.Store) {
	payload, err := json.Marshal(store)
	if err != nil {
		s.logger.Error(logging.Messaging, logging.Publish, "failed to marshal store event", map[logging.ExtraKey]any{
			logging.EntityID:     store.ID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	event := contracts.NewEvent(contracts.EventStoreCreated, payload, store.IdempotencyKey)
	if err := s.publisher.PublishMessage(ctx, messaging.EventsExchange, contracts.EventStoreCreated, event, messaging.PublishOptions{}); err != nil {
		s.logger.Error(logging.Messaging, logging.Publish, "failed to publish store.created", map[logging.ExtraKey]any{
			logging.EntityID:     store.ID,
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
