package prerender

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-prerender/domaintask"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModule = `ClientApp/dist/main-server`

func startLoop(t *testing.T) *eventloop.JS {
	t.Helper()

	loop, err := eventloop.New()
	require.NoError(t, err)

	js, err := eventloop.NewJS(loop)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("timed out waiting for loop to stop")
		}
	})

	return js
}

type outcome struct {
	value  any
	reason any
	err    error
}

func testRequest() *Request {
	return &Request{
		ApplicationBasePath: `/srv/app`,
		BootModule:          BootModuleInfo{ModuleName: testModule},
		AbsoluteRequestURL:  `https://example.com/app/products?page=2`,
		RequestPathAndQuery: `/products?page=2`,
		RequestPathBase:     `/app`,
	}
}

// render calls RenderToString on the loop, and waits for the result.
func render(t *testing.T, js *eventloop.JS, r Renderer, req *Request) outcome {
	t.Helper()
	ch := make(chan outcome, 1)
	require.NoError(t, js.Loop().Submit(func() {
		r.RenderToString(
			req.ApplicationBasePath,
			req.BootModule,
			req.AbsoluteRequestURL,
			req.RequestPathAndQuery,
			req.CustomDataParameter,
			req.OverrideTimeoutMilliseconds,
			req.RequestPathBase,
		).Then(
			func(v any) any {
				ch <- outcome{value: v}
				return nil
			},
			func(r any) any {
				ch <- outcome{reason: r, err: domaintask.ReasonError(r)}
				return nil
			},
		)
	}))
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for render")
		return outcome{}
	}
}

func TestRenderToString_html(t *testing.T) {
	js := startLoop(t)
	var seen *BootParams
	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		seen = params
		return js.Resolve(&RenderResult{HTML: `<div>X</div>`}), nil
	})

	req := testRequest()
	req.CustomDataParameter = map[string]any{`user`: `alice`}

	o := render(t, js, r, req)
	require.NoError(t, o.err)
	res, err := AsRenderResult(o.value)
	require.NoError(t, err)
	assert.Equal(t, `<div>X</div>`, res.HTML)

	require.NotNil(t, seen)
	assert.Equal(t, `https://example.com`, seen.Origin)
	assert.Equal(t, `/products?page=2`, seen.URL)
	assert.Equal(t, `/app/`, seen.BaseURL)
	assert.Equal(t, `https://example.com/app/products?page=2`, seen.AbsoluteURL)
	assert.Equal(t, map[string]any{`user`: `alice`}, seen.Data)
	assert.Equal(t, `/products`, seen.Location.Pathname)
	assert.Equal(t, map[string]any{`page`: `2`}, seen.Location.Query)
	assert.NotNil(t, seen.DomainTasks)
	assert.NotNil(t, seen.Tasks)
	assert.True(t, IsServerRenderer(r))
}

func TestRenderToString_timeout(t *testing.T) {
	js := startLoop(t)
	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		p, _, _ := js.NewChainedPromise()
		return p, nil
	})

	req := testRequest()
	req.OverrideTimeoutMilliseconds = 50

	start := time.Now()
	o := render(t, js, r, req)
	elapsed := time.Since(start)

	require.Error(t, o.err)
	assert.ErrorIs(t, o.err, ErrTimeout)
	assert.Contains(t, o.err.Error(), testModule)
	assert.Contains(t, o.err.Error(), `timed out`)
	assert.Contains(t, o.err.Error(), `50ms`)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)

	var te *TimeoutError
	require.ErrorAs(t, o.err, &te)
	assert.Equal(t, 50*time.Millisecond, te.Timeout)
}

func TestRenderToString_timeoutDisabled(t *testing.T) {
	js := startLoop(t)
	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		p, resolve, _ := js.NewChainedPromise()
		if _, err := js.SetTimeout(func() {
			resolve(&RenderResult{HTML: `slow`})
		}, 200); err != nil {
			return nil, err
		}
		return p, nil
	}, WithDefaultTimeout(50*time.Millisecond))

	for _, timeout := range []int{-1, -1000} {
		req := testRequest()
		req.OverrideTimeoutMilliseconds = timeout

		o := render(t, js, r, req)
		require.NoError(t, o.err, timeout)
		assert.Equal(t, `slow`, o.value.(*RenderResult).HTML)
	}
}

func TestRenderToString_defaultTimeout(t *testing.T) {
	js := startLoop(t)
	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		p, _, _ := js.NewChainedPromise()
		return p, nil
	}, WithDefaultTimeout(30*time.Millisecond))

	o := render(t, js, r, testRequest())
	assert.ErrorIs(t, o.err, ErrTimeout)
}

func TestRenderToString_noPromise(t *testing.T) {
	js := startLoop(t)
	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		return nil, nil
	})

	o := render(t, js, r, testRequest())
	require.Error(t, o.err)
	assert.ErrorIs(t, o.err, ErrNoPromise)
	assert.Contains(t, o.err.Error(), testModule)
	assert.Contains(t, o.err.Error(), `did not return a promise`)
}

func TestRenderToString_bootError(t *testing.T) {
	js := startLoop(t)
	expected := errors.New("boot exploded")

	t.Run(`sync`, func(t *testing.T) {
		r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
			return nil, expected
		})
		assert.Same(t, expected, render(t, js, r, testRequest()).err)
	})

	t.Run(`rejected`, func(t *testing.T) {
		r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
			return js.Reject(expected), nil
		})
		assert.Same(t, expected, render(t, js, r, testRequest()).err)
	})

	t.Run(`panic`, func(t *testing.T) {
		r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
			panic(`boom`)
		})
		var pe eventloop.PanicError
		require.ErrorAs(t, render(t, js, r, testRequest()).err, &pe)
		assert.Equal(t, `boom`, pe.Value)
	})
}

func TestRenderToString_rejectionReasonUnchanged(t *testing.T) {
	js := startLoop(t)
	type bootFailure struct{ Code string }
	reason := bootFailure{Code: `E_BOOT`}

	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		return js.Reject(reason), nil
	})

	o := render(t, js, r, testRequest())
	assert.Equal(t, reason, o.reason)
	assert.EqualError(t, o.err, `{E_BOOT}`)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRenderToString_scopeLoggerCarriesRenderFields(t *testing.T) {
	js := startLoop(t)

	newLogger := func(w io.Writer) *logiface.Logger[logiface.Event] {
		return stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
			stumpy.L.WithLevel(logiface.LevelDebug),
		).Logger()
	}
	var configured, scoped lockedBuffer

	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		return params.DomainTasks.Then(func(any) any { return &RenderResult{HTML: `ok`} }, nil), nil
	},
		WithScopeOptions(domaintask.WithLogger(newLogger(&scoped))),
		WithLogger(newLogger(&configured)),
	)

	o := render(t, js, r, testRequest())
	require.NoError(t, o.err)

	assert.Empty(t, scoped.String())
	var found bool
	for _, line := range strings.Split(configured.String(), "\n") {
		if strings.Contains(line, `"msg":"domain tasks complete"`) {
			found = true
			assert.Contains(t, line, `"module":"`+testModule+`"`)
			assert.Contains(t, line, `"url":"/products?page=2"`)
		}
	}
	assert.True(t, found, configured.String())
}

func TestRenderToString_domainTasksOrdering(t *testing.T) {
	js := startLoop(t)
	const delay = 50 * time.Millisecond

	var (
		fetched   string
		taskDone  time.Time
		finalPass time.Time
	)
	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		params.Tasks.Go(func(ctx context.Context) (any, error) {
			time.Sleep(delay)
			return `fetched data`, nil
		}).Then(func(v any) any {
			fetched = v.(string)
			taskDone = time.Now()
			return nil
		}, nil)

		return params.DomainTasks.Then(func(any) any {
			finalPass = time.Now()
			return &RenderResult{HTML: fetched}
		}, nil), nil
	})

	start := time.Now()
	o := render(t, js, r, testRequest())
	require.NoError(t, o.err)
	assert.Equal(t, `fetched data`, o.value.(*RenderResult).HTML)
	assert.GreaterOrEqual(t, finalPass.Sub(start), delay)
	assert.False(t, finalPass.Before(taskDone))
}

func TestRenderToString_taskFailureTakesPrecedence(t *testing.T) {
	js := startLoop(t)
	expected := errors.New("fetch failed")

	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		params.Tasks.Go(func(ctx context.Context) (any, error) {
			time.Sleep(10 * time.Millisecond)
			return nil, expected
		})
		return params.DomainTasks.Then(func(any) any {
			return &RenderResult{HTML: `unreachable`}
		}, nil), nil
	})

	o := render(t, js, r, testRequest())
	assert.Same(t, expected, o.err)
}

func TestRenderToString_taskFailureAfterRunReturns(t *testing.T) {
	js := startLoop(t)
	expected := errors.New("late task failed")

	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		// no tasks are registered synchronously, so success is pending
		if err := js.QueueMicrotask(func() {
			params.Tasks.AddTask(js.Reject(expected))
		}); err != nil {
			return nil, err
		}
		return params.DomainTasks.Then(func(any) any {
			return &RenderResult{HTML: `ok`}
		}, nil), nil
	})

	o := render(t, js, r, testRequest())
	require.ErrorIs(t, o.err, expected)
	assert.Nil(t, o.value)
}

func TestRenderToString_taskAddedAfterRunReturns(t *testing.T) {
	js := startLoop(t)
	const delay = 50 * time.Millisecond

	var (
		remaining = -1
		elapsed   time.Duration
	)
	start := time.Now()
	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		if err := js.QueueMicrotask(func() {
			params.Tasks.Go(func(ctx context.Context) (any, error) {
				time.Sleep(delay)
				return nil, nil
			})
		}); err != nil {
			return nil, err
		}
		return params.DomainTasks.Then(func(any) any {
			remaining = params.Tasks.Remaining()
			elapsed = time.Since(start)
			return &RenderResult{HTML: `ok`}
		}, nil), nil
	})

	o := render(t, js, r, testRequest())
	require.NoError(t, o.err)
	assert.Equal(t, 0, remaining)
	assert.GreaterOrEqual(t, elapsed, delay)
}

func TestRenderToString_abandonedWorkCanceled(t *testing.T) {
	js := startLoop(t)
	canceled := make(chan error, 1)

	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		params.Tasks.Go(func(ctx context.Context) (any, error) {
			<-ctx.Done()
			canceled <- context.Cause(ctx)
			return nil, ctx.Err()
		})
		p, _, _ := js.NewChainedPromise()
		return p, nil
	})

	req := testRequest()
	req.OverrideTimeoutMilliseconds = 20
	assert.ErrorIs(t, render(t, js, r, req).err, ErrTimeout)

	select {
	case err := <-canceled:
		assert.ErrorIs(t, err, domaintask.ErrScopeClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("background work was not canceled")
	}
}

func TestRenderToString_baseURL(t *testing.T) {
	js := startLoop(t)

	for _, tc := range [...]struct {
		pathBase string
		baseURL  string
		absolute string
	}{
		{``, `/`, `https://example.com/`},
		{`/app`, `/app/`, `https://example.com/app/`},
		{`/app/`, `/app/`, `https://example.com/app/`},
	} {
		t.Run(tc.pathBase, func(t *testing.T) {
			var baseURL, scopeBaseURL string
			r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
				baseURL = params.BaseURL
				scopeBaseURL = params.Tasks.BaseURL()
				return js.Resolve(&RenderResult{HTML: `ok`}), nil
			})

			req := testRequest()
			req.RequestPathBase = tc.pathBase
			require.NoError(t, render(t, js, r, req).err)
			assert.Equal(t, tc.baseURL, baseURL)
			assert.Equal(t, tc.absolute, scopeBaseURL)
		})
	}
}

func TestRenderToString_invalidAbsoluteURL(t *testing.T) {
	js := startLoop(t)
	called := false
	r := CreateServerRenderer(js, func(params *BootParams) (*eventloop.ChainedPromise, error) {
		called = true
		return js.Resolve(&RenderResult{HTML: `ok`}), nil
	})

	req := testRequest()
	req.AbsoluteRequestURL = `/not/absolute`
	o := render(t, js, r, req)
	assert.ErrorContains(t, o.err, `not absolute`)
	assert.False(t, called)
}

func TestWithTimeout(t *testing.T) {
	js := startLoop(t)
	rejection := errors.New("too slow")

	run := func(t *testing.T, fn func() *eventloop.ChainedPromise) outcome {
		t.Helper()
		ch := make(chan outcome, 1)
		require.NoError(t, js.Loop().Submit(func() {
			fn().Then(
				func(v any) any { ch <- outcome{value: v}; return nil },
				func(r any) any { ch <- outcome{err: domaintask.ReasonError(r)}; return nil },
			)
		}))
		select {
		case o := <-ch:
			return o
		case <-time.After(5 * time.Second):
			t.Fatal("timed out")
			return outcome{}
		}
	}

	t.Run(`fulfilled first`, func(t *testing.T) {
		o := run(t, func() *eventloop.ChainedPromise {
			return WithTimeout(js, js.Resolve(`v`), 1000, rejection)
		})
		require.NoError(t, o.err)
		assert.Equal(t, `v`, o.value)
	})

	t.Run(`rejected first`, func(t *testing.T) {
		expected := errors.New("inner")
		o := run(t, func() *eventloop.ChainedPromise {
			return WithTimeout(js, js.Reject(expected), 1000, rejection)
		})
		assert.Same(t, expected, o.err)
	})

	t.Run(`timer first`, func(t *testing.T) {
		o := run(t, func() *eventloop.ChainedPromise {
			p, resolve, _ := js.NewChainedPromise()
			_, _ = js.SetTimeout(func() { resolve(`late`) }, 100)
			return WithTimeout(js, p, 10, rejection)
		})
		assert.Same(t, rejection, o.err)
	})

	t.Run(`disabled`, func(t *testing.T) {
		var in, out *eventloop.ChainedPromise
		run(t, func() *eventloop.ChainedPromise {
			in = js.Resolve(nil)
			out = WithTimeout(js, in, 0, rejection)
			return out
		})
		assert.Same(t, in, out)
	})
}

func TestResolveTimeout(t *testing.T) {
	assert.Equal(t, 50, resolveTimeout(50, DefaultTimeout))
	assert.Equal(t, 30000, resolveTimeout(0, DefaultTimeout))
	assert.LessOrEqual(t, resolveTimeout(-1, DefaultTimeout), 0)
	assert.LessOrEqual(t, resolveTimeout(0, -1), 0)
	assert.LessOrEqual(t, resolveTimeout(0, 0), 0)
	assert.Equal(t, 1, resolveTimeout(0, 500*time.Microsecond))
	assert.Equal(t, 2, resolveTimeout(0, 1500*time.Microsecond))
	assert.Equal(t, 1, resolveTimeout(0, time.Nanosecond))
}
