// Package main provides the dealrelay API server implementation.
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
	cli "github.com/urfave/cli/v3"

	"github.com/dealrelay/dealrelay/pkg/catalog"
	pkgcmd "github.com/dealrelay/dealrelay/pkg/cmd"
	"github.com/dealrelay/dealrelay/pkg/deal"
	"github.com/dealrelay/dealrelay/pkg/dispatcher"
	"github.com/dealrelay/dealrelay/pkg/eventbus"
	"github.com/dealrelay/dealrelay/pkg/gate"
	"github.com/dealrelay/dealrelay/pkg/log"
	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
	"github.com/dealrelay/dealrelay/pkg/services"
	"github.com/dealrelay/dealrelay/pkg/subscription"
	"github.com/dealrelay/dealrelay/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	plans       subscription.Resolver
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	plans subscription.Resolver,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		eventBus:    eventBus,
		plans:       plans,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	accessGate := gate.New(a.plans, nil)
	machine := deal.New()

	dealService := services.NewDeal(a.persistence, machine, a.eventBus, a.logger)
	workflowService := services.NewWorkflow(a.persistence, accessGate, a.logger)
	browser := catalog.NewBrowser(a.persistence.CatalogRepository(), a.plans)

	healthCheckFn := func() (string, bool) {
		if err := a.persistence.HealthCheck(context.Background()); err != nil {
			return "Persistence layer is unhealthy: " + err.Error(), false
		}

		return "Persistence layer is healthy", true
	}

	handlers := web.NewAPIHandlers(dealService, workflowService, browser, healthCheckFn, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Dealrelay API")
	})

	d := app.Group("/deals")
	d.Post("/", handlers.CreateDeal)
	d.Get("/", handlers.GetDeals)
	d.Get("/:id", handlers.GetDeal)
	d.Patch("/:id", handlers.UpdateDeal)
	d.Get("/:id/triggers", handlers.GetDealTriggers)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.RegisterWorkflow)
	w.Post("/import", handlers.ImportWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/deactivate", handlers.DeactivateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	app.Get("/catalog", handlers.BrowseCatalog)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func runAPI(ctx context.Context, command *cli.Command) error {
	apiLogger := log.WithModule("dealrelay-api")

	store, err := pkgcmd.NewPersistence(command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			apiLogger.Error("Failed to close persistence", "error", err)
		}
	}()

	busProvider := command.String("event-bus")

	bus, err := pkgcmd.NewEventBus(busProvider, "api", apiLogger)
	if err != nil {
		return err
	}

	defer func() {
		if err := bus.Close(); err != nil {
			apiLogger.Error("Failed to close event bus", "error", err)
		}
	}()

	plans := subscription.NewStaticResolver(nil,
		subscription.PlanFor(models.PlanName(command.String("default-plan")), subscription.DefaultLimits()))

	// With the in-process channel there is no separate worker binary
	// consuming the topic, so the API hosts the dispatch worker itself.
	if busProvider == "gochannel" {
		d := dispatcher.New(dispatcher.Config{
			BaseURL:    command.String("webhook-base-url"),
			Credential: command.String("webhook-credential"),
		}, store, apiLogger)

		worker := dispatcher.NewWorker("api-embedded", bus, d, apiLogger)
		if err := worker.Start(ctx); err != nil {
			return err
		}
	}

	api := NewAPI(apiLogger, store, bus, plans)

	port := command.Int("port")
	apiLogger.Info("Starting Dealrelay API", "port", port)

	return api.App().Listen(":" + strconv.Itoa(port))
}
