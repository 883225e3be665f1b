package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/foodrun-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/foodrun-backend/api/controllers/admin"
	ordercontrollers "github.com/angelmondragon/foodrun-backend/api/controllers/orders"
	pointscontrollers "github.com/angelmondragon/foodrun-backend/api/controllers/points"
	walletcontrollers "github.com/angelmondragon/foodrun-backend/api/controllers/wallets"
	webhookcontrollers "github.com/angelmondragon/foodrun-backend/api/controllers/webhooks"
	"github.com/angelmondragon/foodrun-backend/api/middleware"
	"github.com/angelmondragon/foodrun-backend/internal/orders"
	"github.com/angelmondragon/foodrun-backend/internal/payments"
	"github.com/angelmondragon/foodrun-backend/internal/points"
	"github.com/angelmondragon/foodrun-backend/internal/restaurants"
	"github.com/angelmondragon/foodrun-backend/internal/wallets"
	"github.com/angelmondragon/foodrun-backend/pkg/config"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/redis"
)

// Dependencies are the services the HTTP surface dispatches to.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.ResponseStore
	Gatherer    prometheus.Gatherer

	Orders    orders.Service
	Wallets   wallets.Service
	Points    points.Service
	Referrals restaurants.ReferralRepository
	Payments  *payments.WebhookProcessor
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		if deps.Payments != nil {
			r.Post("/payments/captured", webhookcontrollers.PaymentCaptured(deps.Payments, cfg.Payments.WebhookSecret, logg))
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, cfg.Eventing.HTTPIdempotencyTTL, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.RoleCustomer)).Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.RoleRestaurant, enums.RoleAdmin)).Post("/delivery-fee", ordercontrollers.SetDeliveryFee(deps.Orders, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.WithStaff(enums.RoleRestaurant)...))
					r.Post("/accept", ordercontrollers.Accept(deps.Orders, logg))
					r.Post("/prepare", ordercontrollers.StartPreparing(deps.Orders, logg))
					r.Post("/ready", ordercontrollers.MarkReady(deps.Orders, logg))
				})
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.RoleCourier))
					r.Post("/assign", ordercontrollers.AssignCourier(deps.Orders, logg))
					r.Post("/pickup", ordercontrollers.PickUp(deps.Orders, logg))
				})
				r.With(middleware.RequireRole(logg, enums.WithStaff(enums.RoleCourier, enums.RoleRestaurant)...)).Post("/deliver", ordercontrollers.Deliver(deps.Orders, logg))
				r.Post("/cancel", ordercontrollers.Cancel(deps.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.RoleCustomer)).Post("/rating", ordercontrollers.Rate(deps.Orders, logg))
			})
		})

		r.Route("/wallets/me", func(r chi.Router) {
			r.Get("/", walletcontrollers.Me(deps.Wallets, logg))
			r.Get("/entries", walletcontrollers.Entries(deps.Wallets, logg))
			r.Post("/withdrawals", walletcontrollers.Withdraw(deps.Wallets, logg))
		})

		r.Route("/points/{ownerType}/{ownerId}", func(r chi.Router) {
			r.Get("/", pointscontrollers.Account(deps.Points, logg))
			r.Get("/deductions", pointscontrollers.History(deps.Points, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.RoleAdmin, enums.RoleAccounting)).
				Get("/wallets/{walletId}/reconcile", admincontrollers.ReconcileWallet(deps.Wallets, logg))
			r.With(middleware.RequireRole(logg, enums.RoleAdmin, enums.RoleSupervisor, enums.RoleSupport)).
				Post("/points/deductions", admincontrollers.DeductPoints(deps.Points, logg))
			r.With(middleware.RequireRole(logg, enums.RoleAdmin, enums.RoleSupervisor)).
				Post("/restaurants/{restaurantId}/referral", admincontrollers.RegisterReferral(deps.Referrals, logg))
		})
	})

	return r
}
