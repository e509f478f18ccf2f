package http

import (
	"net/http"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/httpx"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewRouter(h *CartHandler, serverMetrics *metrics.ServerMetrics, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httpx.RequestIDMiddleware)
	r.Use(serverMetrics.Middleware)

	r.Get("/health", httpx.Health)
	r.Handle("/metrics", metrics.Handler(gatherer))

	r.Route("/api/v1/carts/{userId}", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productId}", h.UpdateQuantity)
		r.Delete("/items/{productId}", h.RemoveItem)
	})

	return otelhttp.NewHandler(r, "cart-service")
}
