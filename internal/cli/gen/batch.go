package gen

import (
	"github.com/spf13/cobra"

	"github.com/aryankumar/fanout/internal/batch"
	"github.com/aryankumar/fanout/internal/dispatch"
)

func newBatchCmd(opts *directOptions) *cobra.Command {
	var bs batchSettings

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Submit one sub-job per node to a batch queue",
		Long: `Split the sites into one contiguous chunk per node and submit a sub-job for each
chunk. Every sub-job runs "gen direct local" on its own points range and writes
<out-file stem>_node_<i><ext>. A rejected submission never blocks the other
nodes; the report lists which nodes were kicked off.`,
		Example: `  # PBS, 4 nodes
  fanout gen direct batch --name gen --points 0:1000 --resource nsrdb.db --out-file out/gen.db --nodes 4 --allocation rev --walltime 01:00:00

  # Kubernetes Jobs
  fanout gen direct batch --name gen --points 0:1000 --resource /data/nsrdb.db --out-file /data/out/gen.db --nodes 8 --backend kubernetes --image fanout:latest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := opts.job()
			if err != nil {
				return err
			}

			r := runner{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			return r.run(cmd.Context(), j, dispatch.OptionBatch, dispatch.LocalOptions{}, bs)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&bs.Nodes, "nodes", 1, "number of sub-jobs")
	flags.IntVar(&bs.Concurrency, "concurrency", 1, "submissions in flight at once")
	flags.StringVar(&bs.Backend, "backend", string(batch.KindPBS), "batch queue: pbs, slurm or kubernetes")
	flags.StringVar(&bs.RunID, "run-id", "", "run id attached to every sub-job (generated when empty)")
	flags.StringVar(&bs.Allocation.Account, "allocation", "", "account charged for the sub-jobs")
	flags.StringVar(&bs.Allocation.Queue, "queue", batch.DefaultQueue, "target queue or partition")
	flags.StringVar(&bs.Allocation.StdoutPath, "stdout-path", batch.DefaultStdoutPath, "directory for sub-job stdout and stderr")
	flags.StringVar(&bs.Allocation.Walltime, "walltime", "", "per-node time limit as HH:MM:SS")
	flags.StringVar(&bs.Kube.Kubeconfig, "kubeconfig", "", "path to kubeconfig file (kubernetes backend)")
	flags.StringVar(&bs.Kube.Context, "context", "", "kubeconfig context (kubernetes backend)")
	flags.StringVar(&bs.Kube.Namespace, "namespace", "", "namespace for the Jobs (kubernetes backend)")
	flags.StringVar(&bs.Kube.Image, "image", "", "container image running fanout (kubernetes backend)")

	return cmd
}
