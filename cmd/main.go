// cmd/main.go is the application entry point.
// It builds the tigertix command tree; serve wires together all layers and
// starts the HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/Shivanand-hulikatti/tigertix/internal/config"
	"github.com/Shivanand-hulikatti/tigertix/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every command.
type rootOptions struct {
	ConfigPath string
}

func (o *rootOptions) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.Log), nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tigertix",
		Short:         "TigerTix ticket purchase service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config (default $"+config.EnvConfigPath+")")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tigertix:", err)
		os.Exit(1)
	}
}
