package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/emporion-io/emporion/internal/gateway"
	"github.com/emporion-io/emporion/internal/infrastructure/configs"
	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/emporion-io/emporion/internal/infrastructure/messaging"
	"github.com/emporion-io/emporion/internal/infrastructure/metrics"
	"github.com/emporion-io/emporion/internal/infrastructure/tracing"
	"github.com/emporion-io/emporion/internal/presentation/api"
	"github.com/emporion-io/emporion/internal/presentation/handler/health"
	"github.com/emporion-io/emporion/internal/presentation/handler/operations"
	"github.com/emporion-io/emporion/internal/presentation/watch"
	"github.com/emporion-io/emporion/internal/routing"
)

const (
	serviceName = "emporion-gateway"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	logger := logging.NewLogger(logging.NewDefaultConfig())

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	m := metrics.NewDefault()

	rabbitmq, err := messaging.NewRabbitMQ(cfg.Broker.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer rabbitmq.Close()

	requester, err := messaging.NewRequester(rabbitmq, logger)
	if err != nil {
		log.Fatal(err)
	}

	table := routing.NewTable(routing.DefaultRoutes(cfg.Gateway.ReplyTimeout))
	if len(cfg.Gateway.Routes) > 0 {
		table, err = routing.FromConfig(cfg.Gateway.Routes, cfg.Gateway.ReplyTimeout)
		if err != nil {
			log.Fatal(err)
		}
	}

	router := gateway.NewRouter(table, rabbitmq, requester, logger, m)

	hub := watch.NewHub(logger)
	go hub.Run()

	watchDeliveries, err := rabbitmq.DeclareWatchQueue()
	if err != nil {
		log.Fatal(err)
	}
	go func() {
		for msg := range watchDeliveries {
			hub.Broadcast(msg.Body)
		}
	}()

	operationsHandler := operations.NewHandler(router, m)
	healthHandler := health.NewHandler()

	app := api.NewApplication(*cfg, operationsHandler, healthHandler, hub, logger)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}
