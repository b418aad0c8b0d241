package summarize

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aryankumar/fanout/internal/config"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/aryankumar/fanout/internal/store"
	"github.com/aryankumar/fanout/internal/summary"
	"github.com/aryankumar/fanout/internal/table"
)

// options are the flags shared by every summarize subcommand
type options struct {
	store       string
	outDir      string
	processSize int
	maxWorkers  int
}

func (o *options) summaryOptions() summary.Options {
	return summary.Options{ProcessSize: o.processSize, MaxWorkers: o.maxWorkers}
}

func (o *options) validate() error {
	return config.SummaryConfig{
		Store:       o.store,
		ProcessSize: o.processSize,
		MaxWorkers:  o.maxWorkers,
	}.Validate()
}

// NewSummarizeCmd creates the summarize parent command
func NewSummarizeCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Compute per-unit statistics of stored datasets",
		Long: `Compute count-free descriptive statistics (mean, std, min, quartiles, max, sum)
for every unit of a dataset. Large datasets are read in chunks of --process-size
units, serially or on --max-workers local workers, and the chunk tables are merged
back in unit order.`,
		Example: `  # Summarize every dataset of a store into CSV files
  fanout summarize run --store out/gen_2012.db

  # Print the summary of one dataset, 4 workers, 500 units per chunk
  fanout summarize dataset cf_profile --store out/gen_2012.db --max-workers 4 --process-size 500

  # Site attributes joined with every 1-D dataset
  fanout summarize means --store out/gen_2012.db -o json`,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.store, "store", "", "store to summarize (required)")
	flags.StringVar(&opts.outDir, "out-dir", "", "directory for summary CSV files (default is the store's directory)")
	flags.IntVar(&opts.processSize, "process-size", 0, "units per chunk (0 uses the dataset's native chunking)")
	flags.IntVar(&opts.maxWorkers, "max-workers", 1, "local workers (1 runs serially, 0 uses every CPU)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newDatasetCmd(opts))
	cmd.AddCommand(newMeansCmd(opts))
	cmd.AddCommand(newFromConfigCmd())

	return cmd
}

func newRunCmd(opts *options) *cobra.Command {
	var datasets []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Write <dataset>_summary.csv for each dataset and <store>_summary.csv for the means",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return runSummary(cmd, opts.store, opts.outDir, datasets, opts.summaryOptions())
		},
	}

	cmd.Flags().StringSliceVar(&datasets, "dataset", nil, "datasets to summarize (default is every dataset)")

	return cmd
}

func newDatasetCmd(opts *options) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "dataset NAME",
		Short: "Print the per-unit statistics of one dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			name := args[0]

			return withStore(cmd.Context(), opts.store, func(ctx context.Context, r store.Reader) error {
				t, err := summary.New(r, slog.Default()).Dataset(ctx, name, opts.summaryOptions())
				if err != nil {
					return err
				}
				if save {
					path := filepath.Join(outDir(opts.outDir, opts.store), name+"_summary.csv")
					if err := t.SaveCSV(path); err != nil {
						return err
					}
					slog.Info("wrote dataset summary", "dataset", name, "path", path)
				}
				return printTable(cmd, t)
			})
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "also write <dataset>_summary.csv")

	return cmd
}

func newMeansCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "means",
		Short: "Print site attributes joined with every 1-D dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return withStore(cmd.Context(), opts.store, func(ctx context.Context, r store.Reader) error {
				t, err := summary.New(r, slog.Default()).Means(ctx)
				if err != nil {
					return err
				}
				return printTable(cmd, t)
			})
		},
	}
}

func newFromConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "from-config",
		Short: "Summarize the store named in the summary section of the run config",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager(viper.GetString("config"))
			cfg, err := manager.Load()
			if err != nil {
				return err
			}
			slog.Info("loaded run config", "file", manager.ConfigFile())
			s := cfg.Summary
			if err := s.Validate(); err != nil {
				return err
			}
			return runSummary(cmd, s.Store, s.OutputDirectory, s.Datasets, summary.Options{
				ProcessSize: s.ProcessSize,
				MaxWorkers:  s.MaxWorkers,
			})
		},
	}
}

func runSummary(cmd *cobra.Command, storePath, dir string, datasets []string, opts summary.Options) error {
	return withStore(cmd.Context(), storePath, func(ctx context.Context, r store.Reader) error {
		report, err := summary.Run(ctx, r, storePath, outDir(dir, storePath), datasets, opts, slog.Default())
		if err != nil {
			return err
		}
		return formatter().Format(cmd.OutOrStdout(), map[string]interface{}{
			"store":    storePath,
			"datasets": len(report.Datasets),
			"files":    report.Outputs,
		})
	})
}

// withStore opens storePath read-only for the duration of fn
func withStore(ctx context.Context, storePath string, fn func(ctx context.Context, r store.Reader) error) error {
	r, err := store.OpenReadOnly(storePath, slog.Default())
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(ctx, r)
}

func outDir(dir, storePath string) string {
	if dir != "" {
		return dir
	}
	return filepath.Dir(storePath)
}

func formatter() output.Formatter {
	f, _ := output.ParseFormat(viper.GetString("output"))
	return output.NewFormatter(f,
		output.WithNoColor(viper.GetBool("no-color")),
		output.WithNoHeaders(viper.GetBool("no-headers")))
}

func printTable(cmd *cobra.Command, t *table.Table) error {
	return formatter().FormatTable(cmd.OutOrStdout(), t)
}
