package gen

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aryankumar/fanout/internal/batch"
	"github.com/aryankumar/fanout/internal/sim"
)

// Test seams
var (
	newBackend = batch.New
	executable = os.Executable
)

// directOptions are the flags shared by "gen direct local" and "gen direct batch"
type directOptions struct {
	name     string
	model    string
	points   sim.PointsValue
	resource string
	dataset  string
	outFile  string
	logDir   string
	profiles bool
}

// NewGenCmd creates the gen parent command
func NewGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate per-site model output",
		Long: `Run the per-site model over a set of project points.

Sites are split into contiguous chunks that run on a local worker pool, or into
one chunk per node that is submitted as a batch sub-job. Each sub-job re-runs
"gen direct local" on its own points range.`,
		Example: `  # Run every configured analysis year
  fanout gen from-config --config gen.yaml

  # Run sites 0..999 on 8 local workers
  fanout gen direct local --name gen --points 0:1000 --resource nsrdb_2012.db --out-file out/gen.db --workers 8

  # Submit 4 PBS sub-jobs
  fanout gen direct batch --name gen --points 0:1000 --resource nsrdb_2012.db --out-file out/gen.db --nodes 4 --allocation rev`,
	}

	cmd.AddCommand(newFromConfigCmd())
	cmd.AddCommand(newDirectCmd())

	return cmd
}

func newDirectCmd() *cobra.Command {
	opts := &directOptions{}

	cmd := &cobra.Command{
		Use:   "direct",
		Short: "Run a generation job from command-line arguments",
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.name, "name", "n", "", "job name (required)")
	flags.StringVar(&opts.model, "model", string(sim.ModelCapacityFactor), "per-site model")
	flags.Var(&opts.points, "points", "project points: start:stop, a gid list or a CSV file with a gid column (required)")
	flags.StringVar(&opts.resource, "resource", "", "resource store (required)")
	flags.StringVar(&opts.dataset, "dataset", sim.DefaultResourceDataset, "resource dataset read for each site")
	flags.StringVar(&opts.outFile, "out-file", "", "output store (required)")
	flags.StringVar(&opts.logDir, "log-dir", "", "directory for the per-run log file")
	flags.BoolVar(&opts.profiles, "profiles", false, "keep the per-step output of every site")

	cmd.AddCommand(newLocalCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))

	return cmd
}

// job converts the direct flags into a job
func (o *directOptions) job() (job, error) {
	j := job{
		Name:     o.name,
		Model:    o.model,
		Points:   o.points.Spec,
		Gids:     o.points.Gids,
		Resource: o.resource,
		Dataset:  o.dataset,
		OutFile:  o.outFile,
		LogDir:   o.logDir,
		Profiles: o.profiles,
	}
	return j, j.validate()
}
