package gen

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aryankumar/fanout/internal/batch"
	"github.com/aryankumar/fanout/internal/config"
	"github.com/aryankumar/fanout/internal/dispatch"
	"github.com/aryankumar/fanout/internal/sim"
)

func newFromConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "from-config",
		Short: "Run every analysis year of a run config",
		Long: `Load the gen section of the run config (--config) and run it once per analysis
year. Each year reads its own resource store and writes <output_directory>/<name>_<year>.db,
locally or as batch sub-jobs depending on execution_control.option.`,
		Example: `  fanout gen from-config --config gen.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager(viper.GetString("config"))
			cfg, err := manager.Load()
			if err != nil {
				return err
			}
			slog.Info("loaded run config", "file", manager.ConfigFile())
			r := runner{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			return runFromConfig(cmd, r, cfg.Gen)
		},
	}
}

func runFromConfig(cmd *cobra.Command, r runner, gen config.GenConfig) error {
	if err := gen.Validate(); err != nil {
		return err
	}

	option, err := dispatch.ParseOption(gen.ExecutionControl.Option)
	if err != nil {
		return err
	}

	gids, err := sim.ParsePoints(gen.ProjectPoints)
	if err != nil {
		return err
	}

	runs, err := gen.Runs()
	if err != nil {
		return err
	}

	ec := gen.ExecutionControl
	local := dispatch.LocalOptions{
		Workers:        ec.Workers,
		SitesPerWorker: ec.SitesPerWorker,
	}
	bs := batchSettings{
		Backend: ec.Backend,
		Allocation: batch.Allocation{
			Account:    ec.Allocation,
			Queue:      ec.Queue,
			StdoutPath: ec.StdoutPath,
			Walltime:   ec.Walltime,
		},
		Kube: batch.KubeOptions{
			Kubeconfig: ec.Kubernetes.Kubeconfig,
			Context:    ec.Kubernetes.Context,
			Namespace:  ec.Kubernetes.Namespace,
			Image:      ec.Kubernetes.Image,
		},
		Nodes:       ec.Nodes,
		Concurrency: ec.Concurrency,
	}

	for _, run := range runs {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		slog.Info("starting analysis year", "name", run.Name, "year", run.Year, "resource", run.ResourceFile)

		j := job{
			Name:     run.Name,
			Model:    gen.Model,
			Points:   gen.ProjectPoints,
			Gids:     gids,
			Resource: run.ResourceFile,
			Dataset:  gen.ResourceDataset,
			OutFile:  run.OutputFile,
			LogDir:   gen.LogDirectory,
			Profiles: gen.Profiles,
		}
		if err := j.validate(); err != nil {
			return err
		}
		if err := r.run(cmd.Context(), j, option, local, bs); err != nil {
			return err
		}
	}

	return nil
}
