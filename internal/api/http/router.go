package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/cityworks/addressing-service/internal/api/http/handlers"
	"github.com/cityworks/addressing-service/internal/auth"
	"github.com/cityworks/addressing-service/internal/config"
	"github.com/cityworks/addressing-service/internal/observability"
)

// RouterDependencies bundles everything the HTTP layer needs.
type RouterDependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Tokens  *auth.TokenManager

	Health     *handlers.HealthHandler
	Tickets    *handlers.TicketsHandler
	Staff      *handlers.StaffHandler
	Signatures *handlers.SignatureHandler
}

// NewApp assembles the fiber application with middleware and routes.
func NewApp(deps RouterDependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      deps.Config.App.Name,
		ErrorHandler: NewErrorHandler(deps.Logger, deps.Metrics),
	})

	app.Use(recover.New())
	app.Use(observability.RequestLogger(deps.Logger, deps.Metrics))
	app.Use(RequestTimeout(deps.Config.App.RequestTimeout()))

	app.Get("/health/live", deps.Health.Live)
	app.Get("/health/ready", deps.Health.Ready)
	app.Get("/metrics", deps.Health.Metrics)

	// Public customer signing routes; the token is the credential.
	app.Get("/signature/:token", deps.Signatures.Lookup)
	app.Post("/signature/:token/complete", deps.Signatures.Complete)

	api := app.Group("/api/v1")
	api.Post("/auth/login", deps.Staff.Login)

	authed := api.Group("", auth.RequireAuth(deps.Tokens))
	authed.Post("/auth/change-password", deps.Staff.ChangePassword)

	tickets := authed.Group("/tickets")
	tickets.Post("", auth.RequirePermission(auth.PermTicketCreate), deps.Tickets.Create)
	tickets.Get("", auth.RequirePermission(auth.PermTicketRead), deps.Tickets.List)
	tickets.Get("/number/:number", auth.RequirePermission(auth.PermTicketRead), deps.Tickets.GetByNumber)
	tickets.Get("/:id", auth.RequirePermission(auth.PermTicketRead), deps.Tickets.Get)
	tickets.Post("/:id/transition", auth.RequirePermission(auth.PermTicketTransition), deps.Tickets.Transition)
	tickets.Post("/:id/close", auth.RequirePermission(auth.PermTicketClose), deps.Tickets.Close)
	tickets.Post("/:id/signature-request", auth.RequirePermission(auth.PermTicketTransition), deps.Tickets.RequestSignature)
	tickets.Post("/:id/signature-request/resend", auth.RequirePermission(auth.PermTicketTransition), deps.Tickets.ResendSignature)
	tickets.Post("/update-priorities", auth.RequirePermission(auth.PermWorkerTrigger), deps.Tickets.TriggerPriorityUpdate)

	staff := authed.Group("/staff")
	staff.Post("", auth.RequirePermission(auth.PermStaffManage), deps.Staff.Create)
	staff.Get("", auth.RequirePermission(auth.PermTicketRead), deps.Staff.List)
	staff.Get("/:id", auth.RequirePermission(auth.PermTicketRead), deps.Staff.Get)
	staff.Patch("/:id", auth.RequirePermission(auth.PermStaffManage), deps.Staff.Update)

	return app
}
