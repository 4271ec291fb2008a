package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/antikraj/plugin-license-server1/internal/config"
	"github.com/antikraj/plugin-license-server1/internal/infrastructure"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

func (o *globalOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", "", "path to config.yaml (defaults to ./config.yaml or ./configs/config.yaml)")
	fs.StringVar(&o.logLevel, "log-level", "", "override the configured log level")
}

// loadConfig reads configuration and applies global flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// toolLogger logs offline commands to errOut so stdout stays clean for output.
func (o *globalOptions) toolLogger(cfg *config.Config, errOut io.Writer) *slog.Logger {
	return infrastructure.NewLogger(errOut, cfg.Logging.Level)
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:               "license-server [command]",
		Short:             "Plugin license server: verification, heartbeats and license administration",
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	g.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newCmdServe(g))
	rootCmd.AddCommand(newCmdExport(g, out, errOut))
	rootCmd.AddCommand(newCmdKeygen(out))
	rootCmd.AddCommand(newCmdHashPassword(in, out))
	rootCmd.AddCommand(newCmdVersion(out))

	return rootCmd
}
