package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/emporion-io/emporion/internal/infrastructure/configs"
	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/emporion-io/emporion/internal/infrastructure/messaging"
	"github.com/emporion-io/emporion/internal/infrastructure/metrics"
	"github.com/emporion-io/emporion/internal/infrastructure/tracing"
	"github.com/emporion-io/emporion/internal/persistence/db"
	"github.com/emporion-io/emporion/internal/persistence/repository"
	"github.com/emporion-io/emporion/internal/runtime"
	"github.com/emporion-io/emporion/internal/services/store"
)

const (
	serviceName = "emporion-store"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer sh(context.Background())

	logger := logging.NewLogger(logging.NewDefaultConfig())

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Service.Queue == "" {
		cfg.Service.Queue = messaging.StoresQueue
	}

	m := metrics.NewDefault()

	client, err := db.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		log.Fatal(err)
	}
	defer db.DisconnectMongo(context.Background(), client)

	database := db.GetDatabase(client, cfg.Mongo)
	stores := repository.NewStoreRepository(database)
	if err := stores.EnsureIndexes(ctx); err != nil {
		log.Fatal(err)
	}
	owners := repository.NewOwnerIndex(database)

	rabbitmq, err := messaging.NewRabbitMQ(cfg.Broker.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer rabbitmq.Close()

	// The stores queue binds both its own commands and the User service's
	// lifecycle event, which feeds the local owner index.
	err = rabbitmq.DeclareServiceQueue(cfg.Service.Queue,
		[]string{
			contracts.CommandStoreCreate,
			contracts.QueryStoreGet,
		},
		[]string{
			contracts.EventUserCreated,
		})
	if err != nil {
		log.Fatal(err)
	}

	requester, err := messaging.NewRequester(rabbitmq, logger)
	if err != nil {
		log.Fatal(err)
	}

	service := store.NewService(stores, owners, rabbitmq, requester, cfg.Gateway.ReplyTimeout, logger)

	rt := runtime.New(runtime.Config{
		Queue:   cfg.Service.Queue,
		Workers: cfg.Service.Workers,
		Retry: runtime.RetryPolicy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
		},
	}, rabbitmq, rabbitmq, rabbitmq, logger, m)

	service.Register(rt)

	logger.Info(logging.General, logging.Startup, "store service starting", map[logging.ExtraKey]any{
		logging.AppName: serviceName,
		logging.Queue:   cfg.Service.Queue,
	})

	if err := rt.Listen(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("runtime stopped: %v", err)
	}
}
