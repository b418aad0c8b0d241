package gen

import (
	"github.com/spf13/cobra"

	"github.com/aryankumar/fanout/internal/dispatch"
	"github.com/aryankumar/fanout/internal/sim"
)

func newLocalCmd(opts *directOptions) *cobra.Command {
	var (
		workers        int
		sitesPerWorker int
		pointsRange    sim.RangeValue
	)

	cmd := &cobra.Command{
		Use:   "local",
		Short: "Run the job on a local worker pool",
		Long: `Split the sites into contiguous chunks and run them on a bounded pool of local
workers. Chunk results are merged in site order and written to the output store;
if any chunk fails nothing is written.`,
		Example: `  # All CPUs, sites split evenly across workers
  fanout gen direct local --name gen --points 0:1000 --resource nsrdb_2012.db --out-file out/gen.db

  # Only positions 250..499 of the project points (what a batch node runs)
  fanout gen direct local --name gen_1 --points 0:1000 --resource nsrdb_2012.db --out-file out/gen_node_1.db --points-range 250:500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := opts.job()
			if err != nil {
				return err
			}
			j.Range = pointsRange.Range

			r := runner{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			return r.run(cmd.Context(), j, dispatch.OptionLocal, dispatch.LocalOptions{
				Workers:        workers,
				SitesPerWorker: sitesPerWorker,
			}, batchSettings{})
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of local workers (0 uses every CPU, 1 runs serially)")
	cmd.Flags().IntVar(&sitesPerWorker, "sites-per-worker", 0, "sites per chunk (0 splits the sites evenly across workers)")
	cmd.Flags().Var(&pointsRange, "points-range", "positional sub-range of the project points")

	return cmd
}
