package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/httpx"
	"github.com/NitheshChakaravarthySeelan/community-platform/pkg/circuitbreaker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxUpstreamBody = 10 << 20 // 10MB

var identityHeaders = []string{HeaderUserID, HeaderUserName, HeaderUserRoles}

// errUpstreamFailure marks a 5xx answer so the breaker counts it while the
// response itself is still relayed to the caller.
var errUpstreamFailure = errors.New("upstream returned server error")

type upstreamResponse struct {
	status      int
	contentType string
	body        []byte
}

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type FailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Backend is one proxied service and the breaker guarding it.
type Backend struct {
	name    string
	baseURL string
	breaker *gobreaker.CircuitBreaker[*upstreamResponse]
}

type ProxyHandler struct {
	client         *http.Client
	maxRequestBody int64
	breakerCfg     circuitbreaker.Config
	log            *logrus.Entry
}

func NewProxyHandler(timeout time.Duration, maxRequestBody int64, breakerCfg circuitbreaker.Config, log *logrus.Entry) *ProxyHandler {
	return &ProxyHandler{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxRequestBody: maxRequestBody,
		breakerCfg:     breakerCfg,
		log:            log,
	}
}

func (p *ProxyHandler) Backend(name, baseURL string) *Backend {
	return &Backend{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		breaker: circuitbreaker.New[*upstreamResponse](name, p.breakerCfg, p.log),
	}
}

// route describes how one gateway route maps onto its backend.
type route struct {
	// path builds the suffix appended to the backend base URL.
	path            func(r *http.Request) string
	forwardBody     bool
	forwardIdentity bool
	onSuccess       func(w http.ResponseWriter, r *http.Request, data any)
}

// Forward relays the request to b and wraps the answer in the
// {success,data} / {success,message} envelope.
func (p *ProxyHandler) Forward(b *Backend, rt route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if b.baseURL == "" {
			httpx.RespondJSON(w, http.StatusServiceUnavailable, FailResponse{Message: "service not configured"})
			return
		}

		target := b.baseURL
		if rt.path != nil {
			target += rt.path(r)
		}
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		var body io.Reader
		if rt.forwardBody && r.Body != nil {
			data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, p.maxRequestBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					httpx.RespondJSON(w, http.StatusRequestEntityTooLarge, FailResponse{Message: "request body too large"})
					return
				}
				httpx.RespondJSON(w, http.StatusBadRequest, FailResponse{Message: "invalid request body"})
				return
			}
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
		if err != nil {
			httpx.RespondJSON(w, http.StatusInternalServerError, FailResponse{Message: "invalid upstream request"})
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if id := middleware.GetReqID(r.Context()); id != "" {
			req.Header.Set(middleware.RequestIDHeader, id)
		}
		if rt.forwardIdentity {
			for _, h := range identityHeaders {
				if v := r.Header.Get(h); v != "" {
					req.Header.Set(h, v)
				}
			}
		}

		res, err := b.breaker.Execute(func() (*upstreamResponse, error) {
			return p.do(req)
		})
		if err != nil && !errors.Is(err, errUpstreamFailure) {
			log := p.log.WithContext(r.Context()).WithError(err).WithField("backend", b.name)
			if circuitbreaker.IsOpen(err) {
				log.Warn("backend circuit open")
				httpx.RespondJSON(w, http.StatusServiceUnavailable, FailResponse{Message: "service temporarily unavailable"})
				return
			}
			log.Error("backend request failed")
			httpx.RespondJSON(w, http.StatusBadGateway, FailResponse{Message: "upstream unavailable"})
			return
		}

		p.relay(w, r, res, rt)
	}
}

func (p *ProxyHandler) do(req *http.Request) (*upstreamResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	res := &upstreamResponse{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        data,
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return res, errUpstreamFailure
	}
	return res, nil
}

func (p *ProxyHandler) relay(w http.ResponseWriter, r *http.Request, res *upstreamResponse, rt route) {
	if res.status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var data any = string(res.body)
	if strings.Contains(res.contentType, "application/json") && len(res.body) > 0 {
		var decoded any
		if err := json.Unmarshal(res.body, &decoded); err == nil {
			data = decoded
		}
	}

	if res.status >= 200 && res.status < 300 {
		if rt.onSuccess != nil {
			rt.onSuccess(w, r, data)
		}
		httpx.RespondJSON(w, res.status, SuccessResponse{Success: true, Data: data})
		return
	}

	httpx.RespondJSON(w, res.status, FailResponse{Message: failureMessage(data, res.status)})
}

func failureMessage(data any, status int) string {
	if obj, ok := data.(map[string]any); ok {
		for _, key := range []string{"message", "error"} {
			if msg, ok := obj[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Something went wrong"
}

func param(name string) func(r *http.Request) string {
	return func(r *http.Request) string {
		return "/" + url.PathEscape(chi.URLParam(r, name))
	}
}

func paramWithSuffix(name, suffix string) func(r *http.Request) string {
	return func(r *http.Request) string {
		return "/" + url.PathEscape(chi.URLParam(r, name)) + suffix
	}
}

func fixed(path string) func(r *http.Request) string {
	return func(*http.Request) string { return path }
}
