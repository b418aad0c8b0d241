package gen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/viper"

	"github.com/aryankumar/fanout/internal/batch"
	"github.com/aryankumar/fanout/internal/dispatch"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/aryankumar/fanout/internal/sim"
	"github.com/aryankumar/fanout/internal/store"
	"github.com/aryankumar/fanout/internal/submit"
	"github.com/aryankumar/fanout/internal/util"
)

// job is one generation run
type job struct {
	Name     string
	Model    string
	Points   string
	Gids     []int
	Resource string
	Dataset  string
	OutFile  string
	LogDir   string
	Profiles bool

	// Range narrows Gids to a positional sub-range
	Range *sim.Range
}

func (j job) validate() error {
	merr := &util.MultiError{}
	if j.Name == "" {
		merr.Add(util.NewValidationError("name", j.Name, "required"))
	}
	if len(j.Gids) == 0 {
		merr.Add(util.NewValidationError("points", j.Points, "required"))
	}
	if j.Resource == "" {
		merr.Add(util.NewValidationError("resource", j.Resource, "required"))
	}
	if j.OutFile == "" {
		merr.Add(util.NewValidationError("out-file", j.OutFile, "required"))
	}
	if _, err := sim.ParseModel(j.Model); err != nil {
		merr.Add(err)
	}
	return merr.ErrorOrNil()
}

// sites returns the gids this job runs
func (j job) sites() ([]int, error) {
	if j.Range == nil {
		return j.Gids, nil
	}
	return j.Range.Apply(j.Gids)
}

// batchSettings configures a batch submission
type batchSettings struct {
	Backend     string
	Allocation  batch.Allocation
	Kube        batch.KubeOptions
	Nodes       int
	Concurrency int
	RunID       string
}

// template builds the sub-job command: every node re-runs "gen direct local" on its own
// points range and writes its own output store
func (j job) template(exe string) submit.Template {
	argv := []string{
		exe, "gen", "direct", "local",
		"--name", submit.PlaceholderName,
		"--model", j.Model,
		"--points", j.Points,
		"--resource", j.Resource,
		"--dataset", j.Dataset,
		"--out-file", submit.PlaceholderOutput,
		"--workers", "0",
		"--points-range", submit.PlaceholderRange,
	}
	if j.LogDir != "" {
		argv = append(argv, "--log-dir", j.LogDir)
	}
	if j.Profiles {
		argv = append(argv, "--profiles")
	}

	return submit.Template{Name: j.Name, Argv: argv, Output: j.OutFile}
}

// runner executes jobs and reports to the command's writers
type runner struct {
	out    io.Writer
	errOut io.Writer
}

// openLog sets up the per-run logger, teeing into <log dir>/<name>.log when a log
// directory is configured
func (r runner) openLog(j job) (*slog.Logger, func() error, error) {
	return util.SetupLogging(util.LogOptions{
		Verbose: viper.GetBool("verbose"),
		JSON:    viper.GetBool("no-color"),
		Dir:     j.LogDir,
		Name:    j.Name,
		Stderr:  r.errOut,
	})
}

func (r runner) formatter() output.Formatter {
	f, _ := output.ParseFormat(viper.GetString("output"))
	return output.NewFormatter(f,
		output.WithNoColor(viper.GetBool("no-color")),
		output.WithNoHeaders(viper.GetBool("no-headers")))
}

// run dispatches j locally or as batch sub-jobs
func (r runner) run(ctx context.Context, j job, option dispatch.Option, local dispatch.LocalOptions, bs batchSettings) error {
	logger, closeLog, err := r.openLog(j)
	if err != nil {
		return err
	}
	defer closeLog()

	gids, err := j.sites()
	if err != nil {
		return err
	}

	req := dispatch.Request{
		Option: option,
		Gids:   gids,
		Local:  local,
		Batch: dispatch.BatchOptions{
			Nodes:       bs.Nodes,
			Concurrency: bs.Concurrency,
			RunID:       bs.RunID,
		},
	}

	var resource *store.SQLite
	switch option {
	case dispatch.OptionBatch:
		kind, err := batch.ParseKind(bs.Backend)
		if err != nil {
			return err
		}
		backend, err := newBackend(ctx, kind, bs.Allocation, bs.Kube, logger)
		if err != nil {
			return err
		}
		exe, err := executable()
		if err != nil {
			return fmt.Errorf("failed to locate executable: %w", err)
		}
		req.Backend = backend
		req.Template = j.template(exe)

	default:
		model, err := sim.ParseModel(j.Model)
		if err != nil {
			return err
		}
		resource, err = store.OpenReadOnly(j.Resource, logger)
		if err != nil {
			return err
		}
		defer resource.Close()
		req.Generator = &sim.Generator{
			Model:    model,
			Resource: resource,
			Dataset:  j.Dataset,
			Profiles: j.Profiles,
		}
	}

	logger.Info("running job", "name", j.Name, "option", option, "sites", len(gids))

	outcome, err := dispatch.New(logger).Dispatch(ctx, req)
	if err != nil {
		return err
	}

	if outcome.Registry != nil {
		return r.report(outcome.Registry)
	}
	return r.write(ctx, j, outcome, resource, logger)
}

// write stores a merged local result
func (r runner) write(ctx context.Context, j job, outcome *dispatch.Outcome, resource store.Reader, logger *slog.Logger) error {
	res := outcome.Result
	for i := 0; i < len(outcome.Chunks); i++ {
		c := outcome.Chunks[i]
		logger.Debug("chunk result", "chunk", i, "range", sim.RangeOf(c.Chunk), "worker", c.WorkerID, "duration", c.Duration)
	}

	out, err := store.Create(j.OutFile, logger)
	if err != nil {
		return err
	}
	if err := sim.Write(ctx, out, res, resource); err != nil {
		return util.CombineErrors(err, out.Close())
	}
	if err := out.Close(); err != nil {
		return util.WrapErrorf(err, "failed to close %s", j.OutFile)
	}

	logger.Info("wrote output store", "name", j.Name, "path", j.OutFile, "sites", res.Means.Len())

	return r.formatter().Format(r.out, map[string]interface{}{
		"name":   j.Name,
		"output": j.OutFile,
		"sites":  strconv.Itoa(res.Means.Len()),
		"chunks": strconv.Itoa(len(outcome.Chunks)),
	})
}

// report prints the kick-off report; partial failures fail the command after reporting
func (r runner) report(reg *submit.Registry) error {
	if err := r.formatter().FormatJobs(r.out, reg.Handles()); err != nil {
		return err
	}
	if failed := reg.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d sub-jobs were not kicked off: %w", len(failed), reg.Len(), reg.Err())
	}
	return nil
}
