package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petalroute/petalroute-backend/api/controllers"
	"github.com/petalroute/petalroute-backend/api/middleware"
	"github.com/petalroute/petalroute-backend/internal/coupons"
	"github.com/petalroute/petalroute-backend/internal/ledger"
	"github.com/petalroute/petalroute-backend/internal/merchants"
	"github.com/petalroute/petalroute-backend/internal/orders"
	"github.com/petalroute/petalroute-backend/internal/settlements"
	"github.com/petalroute/petalroute-backend/pkg/config"
	"github.com/petalroute/petalroute-backend/pkg/db"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	"github.com/petalroute/petalroute-backend/pkg/logger"
	"github.com/petalroute/petalroute-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Orders      orders.Service
	Merchants   merchants.Service
	Ledger      ledger.Service
	Coupons     coupons.Service
	Settlements settlements.Service
	Metrics     prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(params.Orders, logg))
			r.Get("/", controllers.OrderList(params.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(params.Orders, logg))
			r.Patch("/{orderId}", controllers.OrderEdit(params.Orders, logg))
			r.Get("/{orderId}/ledger", controllers.OrderLedgerEntries(params.Orders, params.Ledger, logg))
			r.Post("/{orderId}/accept", controllers.OrderTransition(params.Orders, enums.TransitionActionAccept, logg))
			r.Post("/{orderId}/reject", controllers.OrderTransition(params.Orders, enums.TransitionActionReject, logg))
			r.Post("/{orderId}/cancel", controllers.OrderTransition(params.Orders, enums.TransitionActionCancel, logg))
			r.Post("/{orderId}/start-delivery", controllers.OrderTransition(params.Orders, enums.TransitionActionStartDelivery, logg))
			r.Post("/{orderId}/complete", controllers.OrderTransition(params.Orders, enums.TransitionActionComplete, logg))
		})

		r.Route("/merchants", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.ActorRoleMerchant, logg))
				r.Get("/me", controllers.MerchantProfile(params.Merchants, logg))
				r.Get("/me/balance", controllers.MerchantBalance(params.Merchants, logg))
				r.Get("/me/ledger", controllers.MerchantLedger(params.Ledger, logg))
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.ActorRoleOperator, logg))
				r.Post("/", controllers.MerchantRegister(params.Merchants, logg))
				r.Post("/{merchantId}/top-up", controllers.MerchantTopUp(params.Ledger, logg))
				r.Put("/{merchantId}/status", controllers.MerchantSetStatus(params.Merchants, logg))
			})
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.ActorRoleCustomer, logg))
				r.Get("/balance", controllers.CouponBalance(params.Coupons, logg))
				r.Get("/", controllers.CouponList(params.Coupons, logg))
			})
			r.With(middleware.RequireRole(enums.ActorRoleOperator, logg)).
				Post("/grants", controllers.CouponGrant(params.Coupons, logg))
		})

		r.Route("/settlements", func(r chi.Router) {
			r.Get("/", controllers.SettlementList(params.Settlements, logg))
			r.Get("/{settlementId}", controllers.SettlementDetail(params.Settlements, logg))
			r.Get("/{settlementId}/orders", controllers.SettlementOrders(params.Settlements, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.ActorRoleOperator, logg))
				r.Post("/run", controllers.SettlementRun(params.Settlements, logg))
				r.Post("/{settlementId}/process", controllers.SettlementProcess(params.Settlements, logg))
			})
		})
	})

	return r
}
