package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arjunkapur/swiftkart-backend/api/controllers"
	"github.com/arjunkapur/swiftkart-backend/api/middleware"
	"github.com/arjunkapur/swiftkart-backend/internal/delivery"
	"github.com/arjunkapur/swiftkart-backend/internal/orders"
	"github.com/arjunkapur/swiftkart-backend/internal/payments"
	"github.com/arjunkapur/swiftkart-backend/internal/returns"
	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	"github.com/arjunkapur/swiftkart-backend/pkg/logger"
)

// Deps bundles everything the HTTP surface needs. Health pingers are keyed by
// the dependency name reported in the readiness error.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Pingers  map[string]controllers.Pinger
	Registry *prometheus.Registry

	Orders   orders.Service
	Delivery delivery.Service
	Payments payments.Service
	Returns  returns.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway/{gateway}", controllers.GatewayWebhook(deps.Payments, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireActor(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(deps.Orders, logg))
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.OrderGet(deps.Orders, logg))
				r.Post("/process", controllers.OrderAccept(deps.Orders, logg))
				r.Post("/pickup-ready", controllers.OrderPickupReady(deps.Orders, logg))
				r.Post("/cancel", controllers.OrderCancel(deps.Orders, logg))
				r.Post("/assign-agent", controllers.OrderAssignAgent(deps.Delivery, logg))

				r.Get("/payment", controllers.PaymentStatus(deps.Payments, logg))
				r.Post("/payment/retry", controllers.PaymentRetry(deps.Payments, logg))

				r.Post("/returns", controllers.ReturnRequest(deps.Returns, logg))
			})
		})

		r.Route("/agent", func(r chi.Router) {
			r.Get("/orders", controllers.AgentQueue(deps.Delivery, logg))
			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.Post("/reach-seller", controllers.AgentReachSeller(deps.Delivery, logg))
				r.Post("/verify-pickup", controllers.AgentVerifyPickup(deps.Delivery, logg))
				r.Post("/reach-buyer", controllers.AgentReachBuyer(deps.Delivery, logg))
				r.Post("/complete", controllers.AgentCompleteDelivery(deps.Delivery, logg))
			})
			r.Get("/returns", controllers.ReturnAgentQueue(deps.Returns, logg))
		})

		r.Route("/returns/{returnId}", func(r chi.Router) {
			r.Get("/", controllers.ReturnGet(deps.Returns, logg))
			r.Post("/approve", controllers.ReturnApprove(deps.Returns, logg))
			r.Post("/reject", controllers.ReturnReject(deps.Returns, logg))
			r.Post("/assign", controllers.ReturnAssign(deps.Returns, logg))
			r.Post("/reassign", controllers.ReturnReassign(deps.Returns, logg))
			r.Post("/accept", controllers.ReturnAccept(deps.Returns, logg))
			r.Post("/reach-buyer", controllers.ReturnReachBuyer(deps.Returns, logg))
			r.Post("/verify-pickup", controllers.ReturnVerifyPickup(deps.Returns, logg))
			r.Post("/reach-seller", controllers.ReturnReachSeller(deps.Returns, logg))
			r.Post("/handover", controllers.ReturnHandToSeller(deps.Returns, logg))
			r.Post("/complete", controllers.ReturnComplete(deps.Returns, logg))
			r.Post("/fail-pickup", controllers.ReturnFailPickup(deps.Returns, logg))
		})
	})

	return r
}
