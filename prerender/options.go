package prerender

import (
	"time"

	"github.com/joeycumines/go-prerender/domaintask"
	"github.com/joeycumines/logiface"
)

type (
	rendererOptions struct {
		logger         *logiface.Logger[logiface.Event]
		scopeOptions   []domaintask.Option
		defaultTimeout time.Duration
	}

	// RendererOption configures a [ServerRenderer], see
	// [CreateServerRenderer].
	RendererOption interface {
		applyRenderer(*rendererOptions)
	}

	rendererOptionImpl struct {
		fn func(*rendererOptions)
	}

	hostOptions struct {
		logger *logiface.Logger[logiface.Event]
	}

	// HostOption configures a [Host], see [NewHost].
	HostOption interface {
		applyHost(*hostOptions)
	}

	hostOptionImpl struct {
		fn func(*hostOptions)
	}

	// Option configures both a [ServerRenderer] and a [Host].
	Option interface {
		RendererOption
		HostOption
	}

	optionImpl struct {
		renderer func(*rendererOptions)
		host     func(*hostOptions)
	}
)

func (o *rendererOptionImpl) applyRenderer(opts *rendererOptions) { o.fn(opts) }

func (o *hostOptionImpl) applyHost(opts *hostOptions) { o.fn(opts) }

func (o *optionImpl) applyRenderer(opts *rendererOptions) { o.renderer(opts) }

func (o *optionImpl) applyHost(opts *hostOptions) { o.host(opts) }

// WithDefaultTimeout sets the timeout used when a render does not override
// it. Defaults to [DefaultTimeout]. A non-positive value disables the
// default timeout.
func WithDefaultTimeout(d time.Duration) RendererOption {
	return &rendererOptionImpl{fn: func(opts *rendererOptions) {
		if d <= 0 {
			d = -1
		}
		opts.defaultTimeout = d
	}}
}

// WithScopeOptions configures the [domaintask.Scope] opened for each render,
// e.g. to set the HTTP client used by [domaintask.Scope.Fetch].
func WithScopeOptions(options ...domaintask.Option) RendererOption {
	return &rendererOptionImpl{fn: func(opts *rendererOptions) {
		opts.scopeOptions = append(opts.scopeOptions, options...)
	}}
}

// WithLogger configures logging. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{
		renderer: func(opts *rendererOptions) { opts.logger = logger },
		host:     func(opts *hostOptions) { opts.logger = logger },
	}
}

func resolveRendererOptions(opts []RendererOption) *rendererOptions {
	cfg := &rendererOptions{defaultTimeout: DefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt.applyRenderer(cfg)
		}
	}
	return cfg
}

func resolveHostOptions(opts []HostOption) *hostOptions {
	cfg := &hostOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyHost(cfg)
		}
	}
	return cfg
}
