package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/slotbook-backend/api/controllers"
	"github.com/angelmondragon/slotbook-backend/api/middleware"
	pkgAuth "github.com/angelmondragon/slotbook-backend/pkg/auth"
	"github.com/angelmondragon/slotbook-backend/pkg/config"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/slotbook-backend/pkg/redis"
)

// RedisStore is the slice of the Redis client the HTTP layer uses.
type RedisStore interface {
	pkgredis.IdempotencyStore
	Ping(ctx context.Context) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Params carries everything the router wires into handlers.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    RedisStore
	Gatherer prometheus.Gatherer

	Slots        controllers.SlotLister
	Reservations controllers.ReservationService
	Drafts       controllers.DraftService
	Orders       controllers.OrderAdminService
	SlotAdmin    controllers.SlotConfigurer
	Inventory    controllers.InventoryService
	Reconciler   controllers.Reconciler
	Jobs         controllers.JobRunner
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	idem := middleware.Idempotency(p.Redis, logg)
	draftLimit := middleware.RateLimit(middleware.NewRateLimitPolicy("draft", cfg.RateLimit.Window, cfg.RateLimit.DraftLimit), p.Redis, logg)
	holdLimit := middleware.RateLimit(middleware.NewRateLimitPolicy("hold", cfg.RateLimit.Window, cfg.RateLimit.HoldLimit), p.Redis, logg)

	readiness := map[string]controllers.Pinger{}
	if p.DB != nil {
		readiness["db"] = p.DB
	}
	if p.Redis != nil {
		readiness["redis"] = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/slots", controllers.ListSlots(p.Slots, cfg.Reservation.MaxListDays, logg))
		r.With(draftLimit).Post("/orders/draft", controllers.CreateDraft(p.Drafts, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.GuestSession(logg))
			r.Get("/orders/me", controllers.MyOrder(p.Drafts, logg))
			r.Put("/orders/me/items", controllers.ReplaceItems(p.Drafts, logg))
			r.With(holdLimit).Post("/reservations/hold", controllers.Hold(p.Reservations, logg))
			r.Post("/reservations/release", controllers.Release(p.Reservations, logg))
			r.Post("/reservations/intent", controllers.SetIntent(p.Reservations, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(pkgAuth.NewTokens(cfg.JWT), logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.StaffRoleAdmin, enums.StaffRolePayments))
			r.Get("/", controllers.AdminOrderDetail(p.Orders, logg))
			r.With(idem).Post("/confirm-payment", controllers.ConfirmPayment(p.Orders, logg))
			r.With(idem).Post("/cancel", controllers.CancelOrder(p.Orders, logg))
			r.With(middleware.RequireRole(logg, enums.StaffRoleAdmin), idem).Post("/status", controllers.UpdateOrderStatus(p.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.StaffRoleAdmin))
			r.Post("/reconcile", controllers.Reconcile(p.Reconciler, p.Jobs, logg))
			r.Put("/slots/{date}/{window}", controllers.ConfigureSlot(p.SlotAdmin, logg))
			r.Get("/inventory/movements", controllers.ListMovements(p.Inventory, logg))
			r.Get("/inventory/{productId}/{variantKey}", controllers.GetInventory(p.Inventory, logg))
			r.With(idem).Post("/inventory/{productId}/{variantKey}/adjust", controllers.AdjustInventory(p.Inventory, logg))
		})
	})

	return r
}
