package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vegasq/parslice/internal/config"
	"github.com/vegasq/parslice/internal/logger"
	"github.com/vegasq/parslice/internal/output"
	"github.com/vegasq/parslice/internal/pipeline"
	"github.com/vegasq/parslice/internal/query"
	"github.com/vegasq/parslice/internal/reader"
	"github.com/vegasq/parslice/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by all commands once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	log        *slog.Logger
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "parslice",
		Short:         "Serve column and row subsets of Parquet catalog files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			a.cfg = cfg
			a.log = logger.Init(a.stderr, logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a config file (yaml, json or toml)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text, json")
	pf.Int("batch-size", pipeline.DefaultBatchSize, "Rows read per batch")
	pf.Int("workers", 1, "Batches processed concurrently")
	pf.String("index-column", pipeline.DefaultIndexColumn, "System index column hidden unless requested")
	pf.String("compression", "snappy", "Output compression: snappy, zstd, gzip, lz4, brotli, none")

	root.AddCommand(a.serveCmd(), a.subsetCmd(), a.schemaCmd())
	return root
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	codec, err := output.Codec(a.cfg.Output.Compression)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{
		BatchSize:   a.cfg.Pipeline.BatchSize,
		Workers:     a.cfg.Pipeline.Workers,
		IndexColumn: a.cfg.Pipeline.IndexColumn,
		Codec:       codec,
		Logger:      a.log,
	}), nil
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			srv := server.New(server.Options{
				Addr:          a.cfg.Server.Addr,
				Root:          a.cfg.Storage.Root,
				MaxConcurrent: a.cfg.Server.MaxConcurrent,
				ReadTimeout:   a.cfg.Server.ReadTimeout,
				WriteTimeout:  a.cfg.Server.WriteTimeout,
				RateLimit:     a.cfg.Server.RateLimit,
				RateBurst:     a.cfg.Server.RateBurst,
				Pipeline:      p,
				Logger:        a.log,
			})
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "0.0.0.0:5000", "Listen address")
	cmd.Flags().String("root", "/storage2/splus", "Directory request paths are resolved under")
	cmd.Flags().Int64("max-concurrent", 16, "Maximum number of concurrently running subsets")
	cmd.Flags().Float64("rate-limit", 0, "Subset requests per second allowed per client IP (0 disables)")
	return cmd
}

func (a *app) subsetCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "subset <file.parquet>",
		Short: "Subset a local Parquet file",
		Example: `  parslice subset Npix=0.parquet --columns RA,DEC -o out.parquet
  parslice subset Npix=0.parquet --filters 'RA>=30.0,DEC<=-10.0' -o out.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("missing output path (-o), use - for stdout")
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}

			res, err := p.Run(cmd.Context(), args[0], subsetParams(cmd))
			if err != nil {
				return fmt.Errorf("%s: %w", pipeline.Kind(err), err)
			}
			if out == "-" {
				_, err = a.stdout.Write(res.Data)
				return err
			}
			return writeFileAtomic(out, res.Data)
		},
	}
	cmd.Flags().String("columns", "", "Comma-separated columns to keep")
	cmd.Flags().String("exclude-cols", "", "Comma-separated columns to drop (wins over --columns)")
	cmd.Flags().String("filters", "", "Comma-separated predicates, e.g. 'RA>=30.0,DEC<=-10.0'")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file, - for stdout")
	return cmd
}

// subsetParams maps the flags that were set to request parameters. Unset
// flags are left out so that "not given" and "empty" stay distinct.
func subsetParams(cmd *cobra.Command) map[string]string {
	flagParams := []struct{ flag, param string }{
		{"columns", query.ParamColumns},
		{"exclude-cols", query.ParamExclude},
		{"filters", query.ParamFilters},
	}
	params := make(map[string]string)
	for _, fp := range flagParams {
		if cmd.Flags().Changed(fp.flag) {
			v, _ := cmd.Flags().GetString(fp.flag)
			params[fp.param] = v
		}
	}
	return params
}

// writeFileAtomic writes data next to path and renames it into place, so a
// failed write never leaves a truncated file behind.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".parslice-*")
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (a *app) schemaCmd() *cobra.Command {
	var (
		format       string
		includeIndex bool
	)
	cmd := &cobra.Command{
		Use:   "schema <file.parquet>",
		Short: "Print the columns a subset of the file returns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := output.NewSchemaFormatter(format, a.stdout)
			if err != nil {
				return err
			}
			infos, err := reader.ExtractSchemaInfo(args[0])
			if err != nil {
				return err
			}
			if !includeIndex {
				infos = withoutColumn(infos, a.cfg.Pipeline.IndexColumn)
			}
			return formatter.Format(infos)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, csv")
	cmd.Flags().BoolVar(&includeIndex, "include-index", false, "Also list the system index column")
	return cmd
}

func withoutColumn(infos []reader.SchemaInfo, name string) []reader.SchemaInfo {
	kept := make([]reader.SchemaInfo, 0, len(infos))
	for _, info := range infos {
		if info.Name != name {
			kept = append(kept, info)
		}
	}
	return kept
}
