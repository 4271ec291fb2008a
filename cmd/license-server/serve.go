package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/antikraj/plugin-license-server1/internal/app"
	"github.com/antikraj/plugin-license-server1/internal/config"
	"github.com/antikraj/plugin-license-server1/internal/infrastructure"
	"github.com/antikraj/plugin-license-server1/pkg/contracts"
)

type serveOptions struct {
	host      string
	port      int
	backend   string
	storeFile string
}

func (o *serveOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.host, "host", "", "listen host")
	fs.IntVarP(&o.port, "port", "p", 0, "listen port")
	fs.StringVar(&o.backend, "store", "", "store backend: file, memory, postgres or redis")
	fs.StringVar(&o.storeFile, "store-file", "", "snapshot path for the file backend")
}

// apply overrides cfg with the flags the user actually set.
func (o *serveOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("host") {
		cfg.Server.Host = o.host
	}
	if fs.Changed("port") {
		cfg.Server.Port = o.port
	}
	if fs.Changed("store") {
		cfg.Store.Backend = o.backend
	}
	if fs.Changed("store-file") {
		cfg.Store.FilePath = o.storeFile
	}
}

func newCmdServe(g *globalOptions) *cobra.Command {
	o := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the license HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			o.apply(cmd.Flags(), cfg)

			logger, err := infrastructure.InitializeLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer infrastructure.CloseLogFile()

			logger.Info("starting license server",
				slog.String("version", contracts.GetVersionString()),
				slog.String("addr", cfg.Server.Address()),
				slog.String("store", cfg.Store.Backend),
			)

			application, err := app.NewApplication(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("failed to initialize application", slog.String("error", err.Error()))
				return err
			}
			if err := application.Run(cmd.Context()); err != nil {
				logger.Error("license server stopped with error", slog.String("error", err.Error()))
				return err
			}
			logger.Info("license server stopped")
			return nil
		},
	}

	o.AddFlags(cmd.Flags())
	return cmd
}
