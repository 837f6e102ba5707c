package gojaprerender

import (
	"errors"

	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-prerender/prerender"
	"github.com/joeycumines/logiface"
)

type runtimeOptions struct {
	loader       require.SourceLoader
	logger       *logiface.Logger[logiface.Event]
	rendererOpts []prerender.RendererOption
	moduleNames  []string
}

// Option configures a [Runtime], see [New].
type Option interface {
	applyOption(*runtimeOptions) error
}

type optionFunc struct {
	fn func(*runtimeOptions) error
}

func (o *optionFunc) applyOption(opts *runtimeOptions) error {
	return o.fn(opts)
}

// WithSourceLoader configures how module sources are read. Defaults to
// reading from the filesystem.
func WithSourceLoader(loader require.SourceLoader) Option {
	return &optionFunc{fn: func(opts *runtimeOptions) error {
		if loader == nil {
			return errors.New("gojaprerender: source loader must not be nil")
		}
		opts.loader = loader
		return nil
	}}
}

// WithLogger configures the logger, used for console output, and errors
// thrown by timer callbacks. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionFunc{fn: func(opts *runtimeOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithRendererOptions configures each [prerender.ServerRenderer] created by
// the runtime.
func WithRendererOptions(options ...prerender.RendererOption) Option {
	return &optionFunc{fn: func(opts *runtimeOptions) error {
		opts.rendererOpts = append(opts.rendererOpts, options...)
		return nil
	}}
}

// WithModuleNames sets the names the createServerRenderer module may be
// required by. Defaults to [DefaultModuleNames].
func WithModuleNames(names ...string) Option {
	return &optionFunc{fn: func(opts *runtimeOptions) error {
		if len(names) == 0 {
			return errors.New("gojaprerender: at least one module name is required")
		}
		for _, name := range names {
			if name == `` {
				return errors.New("gojaprerender: module name must not be empty")
			}
		}
		opts.moduleNames = names
		return nil
	}}
}

func resolveOptions(opts []Option) (*runtimeOptions, error) {
	cfg := &runtimeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.moduleNames == nil {
		cfg.moduleNames = DefaultModuleNames
	}
	return cfg, nil
}
