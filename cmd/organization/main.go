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
	"github.com/emporion-io/emporion/internal/services/organization"
)

const (
	serviceName = "emporion-organization"
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
		cfg.Service.Queue = messaging.OrganizationsQueue
	}

	m := metrics.NewDefault()

	client, err := db.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		log.Fatal(err)
	}
	defer db.DisconnectMongo(context.Background(), client)

	organizations := repository.NewOrganizationRepository(db.GetDatabase(client, cfg.Mongo))
	if err := organizations.EnsureIndexes(ctx); err != nil {
		log.Fatal(err)
	}

	rabbitmq, err := messaging.NewRabbitMQ(cfg.Broker.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer rabbitmq.Close()

	err = rabbitmq.DeclareServiceQueue(cfg.Service.Queue, []string{
		contracts.CommandOrganizationCreate,
		contracts.QueryOrganizationGet,
	}, nil)
	if err != nil {
		log.Fatal(err)
	}

	service := organization.NewService(organizations, rabbitmq, logger)

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

	logger.Info(logging.General, logging.Startup, "organization service starting", map[logging.ExtraKey]any{
		logging.AppName: serviceName,
		logging.Queue:   cfg.Service.Queue,
	})

	if err := rt.Listen(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("runtime stopped: %v", err)
	}
}
