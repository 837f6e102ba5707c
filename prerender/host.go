package prerender

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-prerender/domaintask"
	"github.com/joeycumines/logiface"
)

// Host submits renders to an event loop, on behalf of callers running on
// other goroutines. Host is safe for concurrent use.
type Host struct {
	loop     *eventloop.Loop
	resolver Resolver
	logger   *logiface.Logger[logiface.Event]
}

type renderOutcome struct {
	value any
	err   error
}

// NewHost initializes a [Host]. The loop must be running (or be run) for
// renders to make progress.
func NewHost(loop *eventloop.Loop, resolver Resolver, opts ...HostOption) (*Host, error) {
	if loop == nil {
		return nil, errors.New(`prerender: nil loop`)
	}
	if resolver == nil {
		return nil, errors.New(`prerender: nil resolver`)
	}
	cfg := resolveHostOptions(opts)
	return &Host{
		loop:     loop,
		resolver: resolver,
		logger:   cfg.logger,
	}, nil
}

// Render resolves the boot module, and renders req, blocking until the
// render settles or ctx is done.
//
// Canceling ctx abandons the wait only. The render itself is bounded by its
// timeout, see [Request.OverrideTimeoutMilliseconds].
func (h *Host) Render(ctx context.Context, req *Request) (*RenderResult, error) {
	if req == nil {
		return nil, errors.New(`prerender: nil request`)
	}

	start := time.Now()
	ch := make(chan renderOutcome, 1)
	deliver := func(o renderOutcome) {
		select {
		case ch <- o:
		default:
		}
	}

	if err := h.loop.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				deliver(renderOutcome{err: eventloop.PanicError{Value: r}})
			}
		}()

		renderer, err := h.resolver.Resolve(req.ApplicationBasePath, req.BootModule)
		if err != nil {
			deliver(renderOutcome{err: err})
			return
		}

		p := renderer.RenderToString(
			req.ApplicationBasePath,
			req.BootModule,
			req.AbsoluteRequestURL,
			req.RequestPathAndQuery,
			req.CustomDataParameter,
			req.OverrideTimeoutMilliseconds,
			req.RequestPathBase,
		)
		if p == nil {
			deliver(renderOutcome{err: &ContractError{Module: req.BootModule.ModuleName}})
			return
		}

		p.Then(
			func(value any) any {
				deliver(renderOutcome{value: value})
				return nil
			},
			func(reason any) any {
				deliver(renderOutcome{err: domaintask.ReasonError(reason)})
				return nil
			},
		)
	}); err != nil {
		return nil, fmt.Errorf(`prerender: failed to submit render: %w`, err)
	}

	var o renderOutcome
	select {
	case o = <-ch:
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}

	if o.err == nil {
		var result *RenderResult
		if result, o.err = AsRenderResult(o.value); o.err == nil {
			h.logger.Debug().
				Str(`module`, req.BootModule.ModuleName).
				Str(`url`, req.RequestPathAndQuery).
				Dur(`duration`, time.Since(start)).
				Bool(`redirect`, result.IsRedirect()).
				Log(`render complete`)
			return result, nil
		}
	}

	h.logger.Info().
		Err(o.err).
		Str(`module`, req.BootModule.ModuleName).
		Str(`url`, req.RequestPathAndQuery).
		Dur(`duration`, time.Since(start)).
		Log(`render failed`)

	return nil, o.err
}
