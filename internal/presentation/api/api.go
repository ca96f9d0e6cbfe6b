package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emporion-io/emporion/internal/infrastructure/configs"
	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/emporion-io/emporion/internal/infrastructure/metrics"
	healthHandler "github.com/emporion-io/emporion/internal/presentation/handler/health"
	operationsHandler "github.com/emporion-io/emporion/internal/presentation/handler/operations"
	"github.com/emporion-io/emporion/internal/presentation/watch"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Application struct {
	config            configs.Config
	operationsHandler *operationsHandler.Handler
	healthHandler     *healthHandler.Handler
	watchHub          *watch.Hub
	logger            logging.Logger
}

func NewApplication(
	config configs.Config,
	operationsHandler *operationsHandler.Handler,
	healthHandler *healthHandler.Handler,
	watchHub *watch.Hub,
	logger logging.Logger,
) *Application {
	return &Application{
		config:            config,
		operationsHandler: operationsHandler,
		healthHandler:     healthHandler,
		watchHub:          watchHub,
		logger:            logger,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(app.enableCors)

	r.Route("/api", func(r chi.Router) {
		r.Post("/organizations", app.operationsHandler.CreateOrganizationHandler)
		r.Get("/organizations/{id}", app.operationsHandler.GetOrganizationHandler)

		r.Post("/users", app.operationsHandler.CreateUserHandler)
		r.Get("/users/{id}", app.operationsHandler.GetUserHandler)

		r.Post("/stores", app.operationsHandler.CreateStoreHandler)
		r.Get("/stores/{id}", app.operationsHandler.GetStoreHandler)

		r.Post("/operations/{operation}", app.operationsHandler.OperationHandler)

		r.Get("/events/watch", app.watchHub.ServeHTTP)

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	r.Handle("/metrics", metrics.Handler())

	return r
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
