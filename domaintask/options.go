package domaintask

import (
	"context"
	"net/http"

	"github.com/joeycumines/logiface"
)

// DefaultMaxResponseBytes is the default limit on the size of a response
// body read by [Scope.Fetch].
const DefaultMaxResponseBytes = 32 << 20

type scopeOptions struct {
	ctx              context.Context
	client           *http.Client
	logger           *logiface.Logger[logiface.Event]
	maxResponseBytes int64
}

// Option configures a [Scope], see [Run].
type Option interface {
	applyScope(*scopeOptions)
}

type scopeOptionImpl struct {
	fn func(*scopeOptions)
}

func (o *scopeOptionImpl) applyScope(opts *scopeOptions) {
	o.fn(opts)
}

// WithContext sets the parent of the scope's context. Defaults to
// [context.Background].
func WithContext(ctx context.Context) Option {
	return &scopeOptionImpl{fn: func(opts *scopeOptions) {
		opts.ctx = ctx
	}}
}

// WithHTTPClient sets the client used by [Scope.Fetch]. Defaults to
// [http.DefaultClient].
func WithHTTPClient(client *http.Client) Option {
	return &scopeOptionImpl{fn: func(opts *scopeOptions) {
		opts.client = client
	}}
}

// WithLogger configures debug logging. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &scopeOptionImpl{fn: func(opts *scopeOptions) {
		opts.logger = logger
	}}
}

// WithMaxResponseBytes limits the size of response bodies read by
// [Scope.Fetch]. Values <= 0 use [DefaultMaxResponseBytes].
func WithMaxResponseBytes(n int64) Option {
	return &scopeOptionImpl{fn: func(opts *scopeOptions) {
		opts.maxResponseBytes = n
	}}
}

func resolveOptions(opts []Option) *scopeOptions {
	cfg := &scopeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyScope(cfg)
		}
	}
	if cfg.ctx == nil {
		cfg.ctx = context.Background()
	}
	if cfg.client == nil {
		cfg.client = http.DefaultClient
	}
	if cfg.maxResponseBytes <= 0 {
		cfg.maxResponseBytes = DefaultMaxResponseBytes
	}
	return cfg
}
