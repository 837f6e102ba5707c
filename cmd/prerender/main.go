// Command prerender renders JavaScript applications on the server, using
// boot modules loaded from the filesystem.
//
// Configuration is read from an optional YAML file (--config), overridden by
// PRERENDER_ environment variables, e.g. PRERENDER_HTTP__LISTEN_ADDR. See
// prerender.example.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/logiface"
	"github.com/spf13/cobra"
)

type globals struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var g globals

	cmd := &cobra.Command{
		Use:           `prerender`,
		Short:         `Server-side prerendering of JavaScript applications`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, `config`, `c`, ``, `path to a YAML config file`)
	cmd.PersistentFlags().StringVar(&g.logLevel, `log-level`, ``, `log level, overriding log.level`)

	cmd.AddCommand(
		serveCmd(&g),
		renderCmd(&g),
	)

	return cmd
}

// load reads the config, and builds the logger, which writes to stderr.
func (g *globals) load(cmd *cobra.Command) (*Config, *logiface.Logger[logiface.Event], error) {
	cfg, err := LoadConfig(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != `` {
		cfg.Log.Level = g.logLevel
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
