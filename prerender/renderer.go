// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package prerender

import (
	"slices"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-prerender/domaintask"
	"github.com/joeycumines/logiface"
)

type (
	// BootFunc renders the application for a request. It must return a
	// promise, which is fulfilled with the render result (see
	// [AsRenderResult]), or rejected.
	//
	// A non-nil error is treated as a synchronous failure of the boot
	// function. A nil promise, with a nil error, is a contract violation.
	BootFunc func(params *BootParams) (*eventloop.ChainedPromise, error)

	// Renderer performs a single render, returning a promise that settles
	// exactly once. Implementations must be invoked on the loop goroutine.
	Renderer interface {
		RenderToString(
			applicationBasePath string,
			bootModule BootModuleInfo,
			absoluteRequestURL string,
			requestPathAndQuery string,
			customDataParameter any,
			overrideTimeoutMilliseconds int,
			requestPathBase string,
		) *eventloop.ChainedPromise
	}

	// ServerRenderer is the [Renderer] produced by [CreateServerRenderer].
	ServerRenderer struct {
		js             *eventloop.JS
		boot           BootFunc
		logger         *logiface.Logger[logiface.Event]
		scopeOptions   []domaintask.Option
		defaultTimeout time.Duration
	}

	serverRendererMarker interface {
		IsServerRenderer() bool
	}
)

var (
	// compile time assertions

	_ Renderer             = (*ServerRenderer)(nil)
	_ serverRendererMarker = (*ServerRenderer)(nil)
)

// CreateServerRenderer wraps boot as a [ServerRenderer], bound to js.
func CreateServerRenderer(js *eventloop.JS, boot BootFunc, opts ...RendererOption) *ServerRenderer {
	if js == nil {
		panic(`prerender: nil js`)
	}
	if boot == nil {
		panic(`prerender: nil boot func`)
	}
	cfg := resolveRendererOptions(opts)
	return &ServerRenderer{
		js:             js,
		boot:           boot,
		logger:         cfg.logger,
		scopeOptions:   cfg.scopeOptions,
		defaultTimeout: cfg.defaultTimeout,
	}
}

// IsServerRenderer marks the receiver as supporting direct invocation via
// RenderToString, as opposed to being a bare boot function.
func (r *ServerRenderer) IsServerRenderer() bool { return r != nil }

// IsServerRenderer reports whether v carries the server renderer marker.
func IsServerRenderer(v any) bool {
	m, ok := v.(serverRendererMarker)
	return ok && m.IsServerRenderer()
}

// RenderToString renders the application for one request. The returned
// promise is fulfilled with the boot function's result, or rejected with
// the first failure, see the package documentation.
//
// The applicationBasePath parameter is accepted for compatibility with
// module resolvers, and is otherwise unused.
//
// RenderToString must be called on the loop goroutine.
func (r *ServerRenderer) RenderToString(
	applicationBasePath string,
	bootModule BootModuleInfo,
	absoluteRequestURL string,
	requestPathAndQuery string,
	customDataParameter any,
	overrideTimeoutMilliseconds int,
	requestPathBase string,
) *eventloop.ChainedPromise {
	promise, resolvePromise, rejectPromise := r.js.NewChainedPromise()
	domainTasks, resolveDomainTasks, _ := r.js.NewChainedPromise()

	module := bootModule.ModuleName
	logger := r.logger.Clone().
		Str(`module`, module).
		Str(`url`, requestPathAndQuery).
		Logger()

	params, err := NewBootParams(absoluteRequestURL, requestPathAndQuery, requestPathBase, customDataParameter, domainTasks)
	if err != nil {
		rejectPromise(err)
		return promise
	}

	var (
		scope   *domaintask.Scope
		settled bool
	)
	// reasons are passed through unchanged, e.g. a boot rejection reason
	settle := func(value any, rejected bool, reason any) {
		if settled {
			return
		}
		settled = true
		if scope != nil {
			scope.Close()
		}
		if rejected {
			logger.Debug().Err(domaintask.ReasonError(reason)).Log(`render rejected`)
			rejectPromise(reason)
		} else {
			logger.Debug().Log(`render fulfilled`)
			resolvePromise(value)
		}
	}

	timeout := resolveTimeout(overrideTimeoutMilliseconds, r.defaultTimeout)

	scopeOptions := r.scopeOptions
	if logger != nil {
		scopeOptions = append(slices.Clip(scopeOptions), domaintask.WithLogger(logger))
	}

	domaintask.Run(r.js, func(s *domaintask.Scope) error {
		scope = s
		params.Tasks = s

		if err := s.SetBaseURL(params.AbsoluteBaseURL()); err != nil {
			return err
		}

		bootPromise, err := r.boot(params)
		if err != nil {
			return err
		}
		if bootPromise == nil {
			settle(nil, true, &ContractError{Module: module})
			return nil
		}

		if timeout > 0 {
			bootPromise = WithTimeout(r.js, bootPromise, timeout, &TimeoutError{
				Module:  module,
				Timeout: time.Duration(timeout) * time.Millisecond,
			})
		}

		bootPromise.Then(
			func(value any) any {
				settle(value, false, nil)
				return nil
			},
			func(reason any) any {
				settle(nil, true, reason)
				return nil
			},
		)

		return nil
	}, func(err error) {
		if err != nil {
			settle(nil, true, err)
			return
		}
		// no more tracked work, the boot function may perform its final
		// render
		logger.Debug().Log(`domain tasks settled`)
		resolveDomainTasks(nil)
	}, scopeOptions...)

	return promise
}
