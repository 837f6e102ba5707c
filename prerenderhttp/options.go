package prerenderhttp

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// DefaultMaxBodyBytes is the default limit on the size of a render request.
const DefaultMaxBodyBytes = 4 << 20

type (
	handlerOptions struct {
		logger       *logiface.Logger[logiface.Event]
		registry     *prometheus.Registry
		limiter      *rate.Limiter
		clientLimits *catrate.Limiter
		validate     *validator.Validate
		maxBodyBytes int64
	}

	// Option configures a handler, see [NewHandler].
	Option interface {
		applyHandler(*handlerOptions)
	}

	handlerOptionImpl struct {
		fn func(*handlerOptions)
	}
)

func (o *handlerOptionImpl) applyHandler(opts *handlerOptions) { o.fn(opts) }

// WithLogger configures request logging. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &handlerOptionImpl{fn: func(opts *handlerOptions) {
		opts.logger = logger
	}}
}

// WithRegistry sets the registry metrics are registered with, and served
// from. Defaults to a new registry, private to the handler.
func WithRegistry(registry *prometheus.Registry) Option {
	return &handlerOptionImpl{fn: func(opts *handlerOptions) {
		opts.registry = registry
	}}
}

// WithRateLimit limits the rate of render requests, shared across all
// clients. Requests exceeding the limit receive 429. A non-positive limit
// disables rate limiting, which is the default.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return &handlerOptionImpl{fn: func(opts *handlerOptions) {
		if limit <= 0 {
			opts.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		opts.limiter = rate.NewLimiter(limit, burst)
	}}
}

// WithClientRateLimits limits the rate of render requests per client, keyed
// by remote IP, using sliding windows, e.g. 10 per second and 100 per
// minute. Panics if rates are invalid, see [catrate.NewLimiter]. Empty rates
// disable per-client limits, which is the default.
func WithClientRateLimits(rates map[time.Duration]int) Option {
	var limiter *catrate.Limiter
	if len(rates) != 0 {
		limiter = catrate.NewLimiter(rates)
	}
	return &handlerOptionImpl{fn: func(opts *handlerOptions) {
		opts.clientLimits = limiter
	}}
}

// WithMaxBodyBytes limits the size of render requests. Values <= 0 use
// [DefaultMaxBodyBytes].
func WithMaxBodyBytes(n int64) Option {
	return &handlerOptionImpl{fn: func(opts *handlerOptions) {
		opts.maxBodyBytes = n
	}}
}

// WithValidator sets the validator applied to render requests, e.g. one
// with additional custom rules.
func WithValidator(validate *validator.Validate) Option {
	return &handlerOptionImpl{fn: func(opts *handlerOptions) {
		opts.validate = validate
	}}
}

func resolveOptions(opts []Option) *handlerOptions {
	cfg := &handlerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyHandler(cfg)
		}
	}
	if cfg.registry == nil {
		cfg.registry = prometheus.NewRegistry()
	}
	if cfg.validate == nil {
		cfg.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if cfg.maxBodyBytes <= 0 {
		cfg.maxBodyBytes = DefaultMaxBodyBytes
	}
	return cfg
}
