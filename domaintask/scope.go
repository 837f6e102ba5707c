// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package domaintask

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

var (
	// ErrNoBaseURL is returned when a relative URL is resolved against a
	// scope that has no base URL.
	ErrNoBaseURL = errors.New("domaintask: relative url used but no base url is set")

	// ErrScopeClosed is the cause of a closed scope's context.
	ErrScopeClosed = errors.New("domaintask: scope closed")
)

// CompletionFunc receives the outcome of a [Scope]. A nil error indicates
// that all tracked tasks settled successfully.
type CompletionFunc func(err error)

// Scope tracks the background tasks of one unit of work. See the package
// documentation for the threading rules.
type Scope struct {
	js       *eventloop.JS
	ctx      context.Context
	cancel   context.CancelCauseFunc
	complete CompletionFunc
	logger   *logiface.Logger[logiface.Event]
	fetcher  *fetcher
	baseURL  atomic.Pointer[url.URL]

	remaining int
	// scheduled is set while a success timer is pending, which is a no-op
	// if a task was added, or failed, in the meantime
	scheduled bool
	// delivered is set once the completion handler has been called
	delivered bool
	closed    bool
}

// Run opens a new [Scope], calls work with it, and arranges for complete to
// be called exactly once.
//
// If work returns an error, or panics, complete is called immediately with
// that error. Otherwise, if work registered no tasks, complete(nil) is
// issued from a zero-delay timer, giving any synchronously chained
// continuations the chance to run first.
//
// Run must be called on the loop goroutine.
func Run(js *eventloop.JS, work func(s *Scope) error, complete CompletionFunc, opts ...Option) *Scope {
	if js == nil {
		panic(`domaintask: nil js`)
	}
	if work == nil {
		panic(`domaintask: nil work`)
	}
	if complete == nil {
		complete = func(error) {}
	}

	cfg := resolveOptions(opts)

	s := &Scope{
		js:       js,
		complete: complete,
		logger:   cfg.logger,
		fetcher:  newFetcher(cfg.client, cfg.maxResponseBytes),
	}
	s.ctx, s.cancel = context.WithCancelCause(cfg.ctx)
	s.ctx = WithScope(s.ctx, s)

	if err := s.call(work); err != nil {
		s.fail(err)
		return s
	}

	if s.remaining == 0 {
		s.succeedLater()
	}

	return s
}

// Context returns the scope's context, which carries the scope itself (see
// [FromContext]), and is canceled once the scope is closed.
func (s *Scope) Context() context.Context { return s.ctx }

// Remaining returns the number of tracked tasks that have not yet settled.
func (s *Scope) Remaining() int { return s.remaining }

// Closed reports whether [Scope.Close] has been called.
func (s *Scope) Closed() bool { return s.closed }

// AddTask tracks p, returning it. The scope will not report completion
// until p has been fulfilled, and will report failure if p is rejected.
func (s *Scope) AddTask(p *eventloop.ChainedPromise) *eventloop.ChainedPromise {
	if p == nil {
		return nil
	}

	s.remaining++

	p.Then(
		func(any) any {
			// decrement on a later macrotask, so continuations chained onto p
			// (which may add further tasks) get to run first
			s.setTimeout(func() {
				s.remaining--
				if s.remaining == 0 {
					s.succeedLater()
				}
			})
			return nil
		},
		func(reason any) any {
			s.remaining--
			s.fail(ReasonError(reason))
			return nil
		},
	)

	return p
}

// Go runs fn on a new goroutine, as a tracked task. The returned promise is
// settled on the loop, with fn's result, or rejected with its error. A panic
// within fn rejects the promise with an [eventloop.PanicError].
//
// The context passed to fn is the scope's context.
func (s *Scope) Go(fn func(ctx context.Context) (any, error)) *eventloop.ChainedPromise {
	p, resolve, reject := s.js.NewChainedPromise()
	loop := s.js.Loop()
	ctx := s.ctx

	go func() {
		var (
			res any
			err error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = eventloop.PanicError{Value: r}
				}
			}()
			res, err = fn(ctx)
		}()

		settle := func() {
			if err != nil {
				reject(err)
			} else {
				resolve(res)
			}
		}

		if submitErr := loop.Submit(settle); submitErr != nil {
			// the loop is gone, nothing will observe ordering anymore
			settle()
		}
	}()

	return s.AddTask(p)
}

// SetBaseURL sets the absolute URL that relative URLs are resolved against.
func (s *Scope) SetBaseURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf(`domaintask: invalid base url: %w`, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf(`domaintask: base url must be absolute: %q`, rawURL)
	}
	s.baseURL.Store(u)
	return nil
}

// BaseURL returns the base URL, or an empty string if it is unset.
func (s *Scope) BaseURL() string {
	if u := s.baseURL.Load(); u != nil {
		return u.String()
	}
	return ``
}

// ResolveURL resolves ref against the base URL. Absolute references are
// returned as-is, and do not require a base URL.
func (s *Scope) ResolveURL(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf(`domaintask: invalid url: %w`, err)
	}
	if u.IsAbs() {
		return u, nil
	}
	base := s.baseURL.Load()
	if base == nil {
		return nil, fmt.Errorf(`%w: %q`, ErrNoBaseURL, ref)
	}
	return base.ResolveReference(u), nil
}

// Close marks the scope as finished. The completion handler will not be
// called after Close, and the scope's context is canceled, aborting any
// in-flight [Scope.Go] or [Scope.Fetch] work. Close is idempotent.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel(ErrScopeClosed)
}

func (s *Scope) call(work func(s *Scope) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eventloop.PanicError{Value: r}
		}
	}()
	return work(s)
}

func (s *Scope) succeedLater() {
	if s.scheduled || s.delivered || s.closed {
		return
	}
	s.scheduled = true
	s.setTimeout(func() {
		s.scheduled = false
		if s.delivered || s.closed || s.remaining != 0 {
			// tasks added since scheduling report completion on settling
			return
		}
		s.delivered = true
		s.logger.Debug().Log(`domain tasks complete`)
		s.complete(nil)
	})
}

func (s *Scope) fail(err error) {
	if s.delivered || s.closed {
		s.logger.Debug().
			Err(err).
			Bool(`closed`, s.closed).
			Log(`domain task failed after completion`)
		return
	}
	s.delivered = true
	s.logger.Debug().Err(err).Log(`domain task failed`)
	s.complete(err)
}

func (s *Scope) setTimeout(fn func()) {
	if _, err := s.js.SetTimeout(fn, 0); err != nil {
		// loop is terminating, run inline rather than lose the callback
		s.logger.Warning().Err(err).Log(`failed to schedule domain task timer`)
		fn()
	}
}

// ReasonError converts a promise rejection reason into an error. Errors are
// returned as-is, a nil reason yields a generic error, and any other value is
// formatted using %v.
func ReasonError(reason any) error {
	switch v := reason.(type) {
	case error:
		return v
	case nil:
		return errors.New(`promise rejected with no reason`)
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf(`%v`, v)
	}
}
