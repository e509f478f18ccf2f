package http

import (
	"net/http"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/config"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/httpx"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterDeps struct {
	Backends config.BackendURLs
	Checkout *CheckoutHandler
	Proxy    *ProxyHandler
	Auth     *Authenticator
	Metrics  *metrics.ServerMetrics
	Gatherer prometheus.Gatherer
	Timeout  time.Duration
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httpx.RequestIDMiddleware)
	r.Use(middleware.Timeout(d.Timeout))
	r.Use(middleware.Compress(5))
	r.Use(d.Metrics.Middleware)

	r.Get("/health", httpx.Health)
	r.Handle("/metrics", metrics.Handler(d.Gatherer))

	p := d.Proxy
	b := d.Backends
	cart := p.Backend("cart-crud", b.CartCRUD)
	productRead := p.Backend("product-read", b.ProductRead)
	productWrite := p.Backend("product-write", b.ProductWrite)
	orderRead := p.Backend("order-read", b.OrderRead)
	wallet := p.Backend("wallet", b.Wallet)
	tax := p.Backend("tax-calculation", b.TaxCalculation)
	invRead := p.Backend("inventory-read", b.InventoryRead)
	invWrite := p.Backend("inventory-write", b.InventoryWrite)
	snapshot := p.Backend("cart-snapshot", b.CartSnapshot)
	auth := p.Backend("auth", b.Auth)
	intent := p.Backend("intent-parser", b.IntentParser)

	r.Route("/api", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/initiate", d.Checkout.InitiateCheckout)
			r.Get("/test", d.Checkout.Test)
		})

		r.Route("/cart/{userId}", func(r chi.Router) {
			r.Get("/", p.Forward(cart, route{path: param("userId")}))
			r.Delete("/", p.Forward(cart, route{path: param("userId")}))
			r.Post("/", p.Forward(cart, route{path: paramWithSuffix("userId", "/items"), forwardBody: true}))
			r.Post("/items", p.Forward(cart, route{path: paramWithSuffix("userId", "/items"), forwardBody: true}))
			r.Put("/items/{productId}", p.Forward(cart, route{path: cartItemPath, forwardBody: true}))
			r.Delete("/items/{productId}", p.Forward(cart, route{path: cartItemPath}))
		})

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Middleware)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", p.Forward(productRead, route{}))
				r.Post("/", p.Forward(productWrite, route{forwardBody: true, forwardIdentity: true}))
				r.Get("/{productId}", p.Forward(productRead, route{path: param("productId")}))
				r.Put("/{productId}", p.Forward(productWrite, route{path: param("productId"), forwardBody: true, forwardIdentity: true}))
				r.Delete("/{productId}", p.Forward(productWrite, route{path: param("productId"), forwardIdentity: true}))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", p.Forward(orderRead, route{}))
				r.Get("/{orderId}", p.Forward(orderRead, route{path: param("orderId")}))
				r.Get("/user/{userId}", p.Forward(orderRead, route{path: func(r *http.Request) string {
					return "/user" + param("userId")(r)
				}}))
			})
		})

		r.Get("/wallets/{userId}", p.Forward(wallet, route{path: param("userId")}))
		r.Post("/wallets/{userId}/credit", p.Forward(wallet, route{path: paramWithSuffix("userId", "/credit"), forwardBody: true}))

		r.Post("/tax/calculate", p.Forward(tax, route{path: fixed("/calculate"), forwardBody: true}))

		r.Get("/inventory/{productId}", p.Forward(invRead, route{path: param("productId")}))
		r.Post("/inventory/{productId}/update", p.Forward(invWrite, route{path: paramWithSuffix("productId", "/update"), forwardBody: true}))

		r.Get("/snapshots/{param}", p.Forward(snapshot, route{path: param("param")}))
		r.Post("/snapshots/{param}", p.Forward(snapshot, route{path: param("param")}))

		r.Post("/auth/login", p.Forward(auth, route{path: fixed("/login"), forwardBody: true, onSuccess: setSessionCookie}))
		r.Post("/auth/register", p.Forward(auth, route{path: fixed("/register"), forwardBody: true}))

		r.Post("/ai/intent-parser/parse-intent", p.Forward(intent, route{path: fixed("/parse-intent"), forwardBody: true}))
	})

	return otelhttp.NewHandler(r, "api-gateway")
}

func cartItemPath(r *http.Request) string {
	return param("userId")(r) + "/items" + param("productId")(r)
}
