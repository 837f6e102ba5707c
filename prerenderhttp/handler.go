package prerenderhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-prerender/prerender"
	"github.com/joeycumines/logiface"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the request ID, which is generated if absent.
const RequestIDHeader = `X-Request-Id`

// Renderer performs a render, blocking until it settles, see
// [prerender.Host.Render].
type Renderer interface {
	Render(ctx context.Context, req *prerender.Request) (*prerender.RenderResult, error)
}

var _ Renderer = (*prerender.Host)(nil)

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type handler struct {
	renderer Renderer
	logger   *logiface.Logger[logiface.Event]
	limiter  *rate.Limiter
	clients  *catrate.Limiter
	validate *validator.Validate
	metrics  *metrics
	maxBody  int64
}

// NewHandler returns the HTTP API for renderer. Panics if renderer is nil,
// or if metrics cannot be registered.
func NewHandler(renderer Renderer, opts ...Option) http.Handler {
	if renderer == nil {
		panic(`prerenderhttp: nil renderer`)
	}
	cfg := resolveOptions(opts)

	h := &handler{
		renderer: renderer,
		logger:   cfg.logger,
		limiter:  cfg.limiter,
		clients:  cfg.clientLimits,
		validate: cfg.validate,
		metrics:  newMetrics(cfg.registry),
		maxBody:  cfg.maxBodyBytes,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get(`/healthz`, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{`status`: `ok`})
	})
	r.Method(http.MethodGet, `/metrics`, promhttp.HandlerFor(cfg.registry, promhttp.HandlerOpts{}))
	r.With(h.rateLimit).Post(`/render`, h.render)

	return r
}

func (h *handler) render(w http.ResponseWriter, r *http.Request) {
	var req prerender.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, `request_too_large`, err)
			return
		}
		writeError(w, http.StatusBadRequest, `invalid_request`, fmt.Errorf(`invalid json: %w`, err))
		return
	}
	req.CustomDataParameter = normalizeNumbers(req.CustomDataParameter)

	if err := h.validate.StructCtx(r.Context(), &req); err != nil {
		writeError(w, http.StatusBadRequest, `invalid_request`, err)
		return
	}

	start := time.Now()
	result, err := h.renderer.Render(r.Context(), &req)
	duration := time.Since(start)
	outcome := Outcome(result, err)

	h.metrics.renderDuration.Observe(duration.Seconds())
	h.metrics.renders.WithLabelValues(outcome).Inc()

	if err != nil {
		h.logger.Warning().
			Err(err).
			Str(`request_id`, RequestID(r.Context())).
			Str(`module`, req.BootModule.ModuleName).
			Str(`outcome`, outcome).
			Dur(`duration`, duration).
			Log(`render failed`)
		writeError(w, http.StatusInternalServerError, outcome, err)
		return
	}

	h.logger.Debug().
		Str(`request_id`, RequestID(r.Context())).
		Str(`module`, req.BootModule.ModuleName).
		Str(`outcome`, outcome).
		Dur(`duration`, duration).
		Log(`render complete`)

	writeJSON(w, http.StatusOK, result)
}

func (h *handler) rateLimit(next http.Handler) http.Handler {
	if h.limiter == nil && h.clients == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			h.tooManyRequests(w, r, time.Second)
			return
		}
		if h.clients != nil {
			if until, ok := h.clients.Allow(clientKey(r)); !ok {
				h.tooManyRequests(w, r, time.Until(until))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) tooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	h.metrics.rateLimited.Inc()
	h.logger.Debug().
		Str(`request_id`, RequestID(r.Context())).
		Str(`client`, clientKey(r)).
		Log(`rate limited`)
	w.Header().Set(`Retry-After`, strconv.Itoa(max(1, int(math.Ceil(retryAfter.Seconds())))))
	writeError(w, http.StatusTooManyRequests, `rate_limited`, errors.New(`rate limit exceeded`))
}

// clientKey identifies the client, for per-client rate limits.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type requestIDKey struct{}

// RequestID returns the request ID assigned to the request ctx belongs to.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == `` {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// normalizeNumbers converts json.Number values to int64 where possible,
// float64 otherwise.
func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for k, e := range v {
			v[k] = normalizeNumbers(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = normalizeNumbers(e)
		}
		return v
	default:
		return v
	}
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(`Content-Type`, `application/json`)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
