package main

import (
	"context"
	"errors"
	"io"
	"net/http"

	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-prerender/domaintask"
	"github.com/joeycumines/go-prerender/gojaprerender"
	"github.com/joeycumines/go-prerender/prerender"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// app is the state shared by the commands: a loop, hosting a JavaScript
// runtime, fronted by a [prerender.Host].
type app struct {
	cfg     *Config
	logger  *logiface.Logger[logiface.Event]
	loop    *eventloop.Loop
	runtime *gojaprerender.Runtime
	host    *prerender.Host
}

func newLogger(w io.Writer, level string) (*logiface.Logger[logiface.Event], error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(lvl),
	).Logger(), nil
}

func newApp(cfg *Config, logger *logiface.Logger[logiface.Event]) (*app, error) {
	loop, err := eventloop.New()
	if err != nil {
		return nil, err
	}

	js, err := eventloop.NewJS(loop)
	if err != nil {
		_ = loop.Close()
		return nil, err
	}

	rendererOpts := []prerender.RendererOption{
		prerender.WithLogger(logger),
		prerender.WithDefaultTimeout(cfg.Render.DefaultTimeout),
		prerender.WithScopeOptions(
			domaintask.WithLogger(logger),
			domaintask.WithHTTPClient(&http.Client{Timeout: cfg.Render.FetchTimeout}),
			domaintask.WithMaxResponseBytes(cfg.Render.MaxResponseBytes),
		),
	}

	runtimeOpts := []gojaprerender.Option{
		gojaprerender.WithLogger(logger),
		gojaprerender.WithRendererOptions(rendererOpts...),
	}
	if len(cfg.Render.ModuleNames) != 0 {
		runtimeOpts = append(runtimeOpts, gojaprerender.WithModuleNames(cfg.Render.ModuleNames...))
	}

	runtime, err := gojaprerender.New(js, runtimeOpts...)
	if err != nil {
		_ = loop.Close()
		return nil, err
	}

	host, err := prerender.NewHost(loop, runtime, prerender.WithLogger(logger))
	if err != nil {
		_ = loop.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		loop:    loop,
		runtime: runtime,
		host:    host,
	}, nil
}

// runLoop runs the loop until ctx is canceled, which is not an error.
func (a *app) runLoop(ctx context.Context) error {
	err := a.loop.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return err
}

// Render renders req via the host, after filling in defaults from the
// config.
func (a *app) Render(ctx context.Context, req *prerender.Request) (*prerender.RenderResult, error) {
	if req.ApplicationBasePath == `` {
		req.ApplicationBasePath = a.cfg.Render.ApplicationBasePath
	}
	return a.host.Render(ctx, req)
}
