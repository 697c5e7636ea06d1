// Package main provides the Send Smartly API server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/mono-send/send-smartly/pkg/eventbus"
	"github.com/mono-send/send-smartly/pkg/lock"
	"github.com/mono-send/send-smartly/pkg/otelhelper"
	"github.com/mono-send/send-smartly/pkg/persistence"
	"github.com/mono-send/send-smartly/pkg/services"
	"github.com/mono-send/send-smartly/pkg/web"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	locker      lock.Locker
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	validate    *validator.Validate
}

type APIOption func(*API)

func WithLocker(locker lock.Locker) APIOption {
	return func(a *API) {
		a.locker = locker
	}
}

func WithPublisher(publisher eventbus.EventPublisher) APIOption {
	return func(a *API) {
		a.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) APIOption {
	return func(a *API) {
		a.tracer = tracer
	}
}

func NewAPI(logger *slog.Logger, persistence persistence.Persistence, opts ...APIOption) *API {
	a := &API{
		logger:      logger,
		persistence: persistence,
		locker:      lock.NewMemoryLocker(),
		tracer:      otelhelper.NewNoopTracer(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *API) serviceOptions() []services.Option {
	opts := []services.Option{
		services.WithLocker(a.locker),
		services.WithTracer(a.tracer),
		services.WithLogger(a.logger),
	}

	if a.publisher != nil {
		opts = append(opts, services.WithPublisher(a.publisher))
	}

	return opts
}

// Lookups returns the lookup service backed by the API's persistence.
func (a *API) Lookups() *services.Lookups {
	return services.NewLookups(a.persistence, a.serviceOptions()...)
}

func (a *API) App() *fiber.App {
	opts := a.serviceOptions()

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(a.persistence, opts...),
		services.NewSteps(a.persistence, opts...),
		services.NewVersions(a.persistence, opts...),
		services.NewLookups(a.persistence, opts...),
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Send Smartly API")
	})

	web.RegisterRoutes(app, handlers)

	return app
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{
		GracefulContext: ctx,
	})
}
