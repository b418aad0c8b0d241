package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aryankumar/fanout/internal/cli/gen"
	"github.com/aryankumar/fanout/internal/cli/summarize"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/aryankumar/fanout/internal/util"
)

// Execute runs the root command with the provided context
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fanout",
		Short: "Fanout - chunked parallel runs and batch sub-job submission",
		Long: `Fanout splits a unit-indexed workload into contiguous chunks, runs them on a
local worker pool or as one batch sub-job per node, and merges the chunk results
back in order.

It generates per-site model output (gen) and computes per-unit statistics of
stored datasets (summarize).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogging(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "run config file (default is ./.fanout.yaml or $HOME/.fanout.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (table, wide, json, yaml)")
	rootCmd.PersistentFlags().Bool("no-headers", false, "omit table headers")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output with debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output and log as JSON")

	// Subcommand packages read these through viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("no-headers", rootCmd.PersistentFlags().Lookup("no-headers"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(gen.NewGenCmd())
	rootCmd.AddCommand(summarize.NewSummarizeCmd())

	return rootCmd
}

// initLogging validates the global flags and installs the process logger
func initLogging(cmd *cobra.Command) error {
	viper.SetEnvPrefix("FANOUT")
	viper.AutomaticEnv()

	if _, err := output.ParseFormat(viper.GetString("output")); err != nil {
		return err
	}

	_, _, err := util.SetupLogging(util.LogOptions{
		Verbose: viper.GetBool("verbose"),
		JSON:    viper.GetBool("no-color"),
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	slog.Debug("verbose logging enabled", "command", cmd.CommandPath())
	return nil
}
