// Package main provides the Hireflow API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/hireflow/pkg/cache"
	"github.com/dukex/hireflow/pkg/eventbus"
	"github.com/dukex/hireflow/pkg/lifecycle"
	"github.com/dukex/hireflow/pkg/services"
	"github.com/dukex/hireflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	remote   services.RemoteAPI
	cache    cache.Store
	cacheTTL time.Duration
	eventBus eventbus.EventBus
	validate *validator.Validate

	catalog *services.Catalog
}

func NewAPI(
	logger *slog.Logger,
	remote services.RemoteAPI,
	store cache.Store,
	cacheTTL time.Duration,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:   logger,
		remote:   remote,
		cache:    store,
		cacheTTL: cacheTTL,
		eventBus: eventBus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	catalogOpts := []services.CatalogOption{services.WithCatalogLogger(a.logger)}
	controllerOpts := []lifecycle.Option{lifecycle.WithLogger(a.logger)}

	if a.cache != nil {
		catalogOpts = append(catalogOpts, services.WithCache(a.cache, a.cacheTTL))
	}

	if a.eventBus != nil {
		catalogOpts = append(catalogOpts, services.WithEventPublisher(a.eventBus))
		controllerOpts = append(controllerOpts, lifecycle.WithPublisher(a.eventBus))
	}

	a.catalog = services.NewCatalog(a.remote, catalogOpts...)
	positions := services.NewPositions(a.catalog, a.remote, lifecycle.NewController(a.remote, controllerOpts...))

	handlers := web.NewAPIHandlers(a.catalog, positions, services.NewSessions(a.catalog), a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Hireflow API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}

// Close drops every loaded workflow view.
func (a *API) Close() {
	if a.catalog != nil {
		a.catalog.Close()
	}
}
