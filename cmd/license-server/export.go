package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/antikraj/plugin-license-server1/internal/config"
	"github.com/antikraj/plugin-license-server1/internal/license"
	"github.com/antikraj/plugin-license-server1/internal/services"
	"github.com/antikraj/plugin-license-server1/internal/storage"
)

const formatJSON = "json"

type exportOptions struct {
	format string
	output string
	fs     afero.Fs
}

func (o *exportOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.format, "format", "f", formatJSON, "json (raw snapshot), csv or xlsx")
	fs.StringVarP(&o.output, "output", "o", "-", "output file, - for stdout")
}

func (o *exportOptions) Validate() error {
	o.format = strings.ToLower(o.format)
	switch o.format {
	case formatJSON, services.ReportCSV, services.ReportXLSX:
		return nil
	default:
		return fmt.Errorf("unknown export format %q", o.format)
	}
}

// render writes the requested format of the store's contents to w.
func (o *exportOptions) render(ctx context.Context, store license.Store, cfg *config.Config, logger *slog.Logger, w io.Writer) error {
	if o.format == formatJSON {
		data, err := store.Export(ctx)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	admin := license.NewAdmin(store,
		license.WithHeartbeatTimeout(cfg.Lifecycle.HeartbeatTimeout),
		license.WithLogger(logger),
	)
	svc := services.NewAdminService(admin, logger)
	return svc.Report(license.WithAdmin(ctx, "cli"), w, o.format)
}

func (o *exportOptions) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	store, err := storage.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("failed to open license store: %w", err)
	}
	defer store.Close()

	var buf bytes.Buffer
	if err := o.render(ctx, store, cfg, logger, &buf); err != nil {
		return err
	}

	if o.output == "" || o.output == "-" {
		_, err = out.Write(buf.Bytes())
		return err
	}
	if err := afero.WriteFile(o.fs, o.output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", o.output, err)
	}
	logger.Info("licenses exported",
		slog.String("format", o.format),
		slog.String("path", o.output),
		slog.Int("bytes", buf.Len()),
	)
	return nil
}

func newCmdExport(g *globalOptions, out, errOut io.Writer) *cobra.Command {
	o := &exportOptions{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the license store as a JSON snapshot or a CSV/XLSX report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			return o.Run(cmd.Context(), cfg, g.toolLogger(cfg, errOut), out)
		},
	}

	o.AddFlags(cmd.Flags())
	return cmd
}
