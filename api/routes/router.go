package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glowcart/glowcart-backend/api/controllers"
	webhookcontrollers "github.com/glowcart/glowcart-backend/api/controllers/webhooks"
	"github.com/glowcart/glowcart-backend/api/middleware"
	"github.com/glowcart/glowcart-backend/internal/assignment"
	"github.com/glowcart/glowcart-backend/internal/audit"
	checkoutsvc "github.com/glowcart/glowcart-backend/internal/checkout"
	"github.com/glowcart/glowcart-backend/internal/deliveries"
	"github.com/glowcart/glowcart-backend/internal/drivers"
	"github.com/glowcart/glowcart-backend/internal/notifications"
	"github.com/glowcart/glowcart-backend/internal/orders"
	squarewebhook "github.com/glowcart/glowcart-backend/internal/webhooks/square"
	"github.com/glowcart/glowcart-backend/pkg/config"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/redis"
	"github.com/glowcart/glowcart-backend/pkg/square"
)

// Deps carries everything the HTTP surface needs. cmd/api builds one and
// hands it over; tests fill in only what the route under test touches.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Redis      *redis.Client
	Registry   *prometheus.Registry
	SquareCli  *square.Client
	WebhookSvc *squarewebhook.Service
	Guard      *squarewebhook.IdempotencyGuard
	Checkout   checkoutsvc.Service
	Orders     orders.Service
	Deliveries deliveries.Service
	Drivers    drivers.Service
	Assignment assignment.Service
	Notify     notifications.Service
	Audit      audit.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(deps.WebhookSvc, deps.SquareCli, deps.Guard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(deps.Orders, logg))
			r.Get("/{orderID}/history", controllers.OrderHistory(deps.Orders, logg))
			r.Post("/{orderID}/transition", controllers.TransitionOrder(deps.Orders, logg))
			r.With(middleware.RequireRole(logg,
				string(enums.RoleStoreOwner), string(enums.RoleAdmin), string(enums.RoleSystem))).
				Post("/{orderID}/assign", controllers.AssignOrder(deps.Assignment, logg))
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/{deliveryID}", controllers.GetDelivery(deps.Deliveries, logg))
			r.Get("/{deliveryID}/tracking", controllers.DeliveryTracking(deps.Deliveries, logg))
			r.Post("/{deliveryID}/status", controllers.UpdateDeliveryStatus(deps.Deliveries, logg))
		})

		r.Route("/drivers", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, string(enums.RoleDriver))).
				Post("/me/heartbeat", controllers.DriverHeartbeat(deps.Drivers, logg))
			r.With(middleware.RequireRole(logg, string(enums.RoleAdmin))).
				Get("/online", controllers.ListOnlineDrivers(deps.Drivers, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notify, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(deps.Notify, logg))
			r.Get("/preferences", controllers.GetNotificationPreferences(deps.Notify, logg))
			r.Put("/preferences", controllers.UpdateNotificationPreferences(deps.Notify, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, string(enums.RoleAdmin)))
			r.Post("/orders/{orderID}/force-transition", controllers.ForceTransitionOrder(deps.Orders, logg))
			r.Get("/audit/{entityType}/{entityID}", controllers.AuditTrail(deps.Audit, logg))
		})
	})

	return r
}
