package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/joeycumines/go-prerender/prerenderhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func serveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   `serve`,
		Short: `Serve the render API over HTTP`,
		Long: `Serve POST /render, GET /healthz, and GET /metrics, until interrupted.

Boot modules are loaded from the filesystem, relative to each request's
applicationBasePath (or render.application_base_path).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			listener, err := net.Listen(`tcp`, cfg.HTTP.ListenAddr)
			if err != nil {
				return err
			}
			return a.serve(cmd.Context(), listener)
		},
	}
}

// serve runs the loop and the HTTP server, until ctx is canceled or either
// fails. The listener is closed on return.
func (a *app) serve(ctx context.Context, listener net.Listener) error {
	cfg := a.cfg.HTTP

	opts := []prerenderhttp.Option{
		prerenderhttp.WithLogger(a.logger),
		prerenderhttp.WithMaxBodyBytes(cfg.MaxBodyBytes),
		prerenderhttp.WithClientRateLimits(cfg.ClientRates()),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, prerenderhttp.WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}

	server := &http.Server{
		Handler:           prerenderhttp.NewHandler(a, opts...),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.runLoop(ctx)
	})

	group.Go(func() error {
		a.logger.Info().
			Str(`addr`, listener.Addr().String()).
			Log(`listening`)
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		a.logger.Info().Log(`shutting down`)
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
