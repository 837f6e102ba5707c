package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/joeycumines/go-prerender/prerender"
	"github.com/spf13/cobra"
)

func renderCmd(g *globals) *cobra.Command {
	var (
		req  prerender.Request
		data string
	)

	cmd := &cobra.Command{
		Use:     `render <absolute-url>`,
		Short:   `Render a single request, writing the result as JSON`,
		Example: `  prerender render --module ClientApp/dist/main-server --base-path ./app https://example.com/products?page=2`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}

			req.AbsoluteRequestURL = args[0]
			if req.RequestPathAndQuery == `` {
				u, err := url.Parse(req.AbsoluteRequestURL)
				if err != nil {
					return err
				}
				req.RequestPathAndQuery = u.RequestURI()
			}
			if data != `` {
				if err := json.Unmarshal([]byte(data), &req.CustomDataParameter); err != nil {
					return fmt.Errorf(`invalid --data: %w`, err)
				}
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}

			result, err := a.renderOnce(cmd.Context(), &req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(``, `  `)
			return enc.Encode(result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.BootModule.ModuleName, `module`, ``, `boot module, relative to the base path`)
	flags.StringVar(&req.BootModule.ExportName, `export`, ``, `name of the boot module's export`)
	flags.StringVar(&req.ApplicationBasePath, `base-path`, ``, `application base path (default render.application_base_path)`)
	flags.StringVar(&req.RequestPathAndQuery, `path`, ``, `request path and query (default derived from the url)`)
	flags.StringVar(&req.RequestPathBase, `path-base`, ``, `request path base, e.g. /app`)
	flags.IntVar(&req.OverrideTimeoutMilliseconds, `timeout-ms`, 0, `render timeout override, negative disables`)
	flags.StringVar(&data, `data`, ``, `custom data parameter, as JSON`)
	_ = cmd.MarkFlagRequired(`module`)

	return cmd
}

// renderOnce runs the loop for the duration of a single render.
func (a *app) renderOnce(ctx context.Context, req *prerender.Request) (*prerender.RenderResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.runLoop(ctx) }()

	result, err := a.Render(ctx, req)

	cancel()
	if loopErr := <-done; loopErr != nil {
		err = errors.Join(err, loopErr)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
