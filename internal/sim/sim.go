// Package sim holds the per-site models run by generation jobs. A model reads the
// resource series of its sites from a store and produces a mean value per site and,
// optionally, the full per-step profile.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/store"
	"github.com/aryankumar/fanout/internal/table"
	"github.com/aryankumar/fanout/internal/util"
)

// Model selects the per-site computation
type Model string

const (
	// ModelCapacityFactor converts irradiance to a capacity factor, clipped at 1
	ModelCapacityFactor Model = "capacity-factor"
)

// Models lists every built-in model
var Models = []Model{ModelCapacityFactor}

// ParseModel parses a model name
func ParseModel(s string) (Model, error) {
	switch Model(strings.ToLower(strings.TrimSpace(s))) {
	case ModelCapacityFactor, "cf", "pv":
		return ModelCapacityFactor, nil
	default:
		return "", util.NewValidationError("model", s, fmt.Sprintf("must be one of %v", Models))
	}
}

// Output dataset names
const (
	MeanDataset    = "cf_mean"
	ProfileDataset = "cf_profile"
)

// DefaultResourceDataset is the resource dataset read when none is configured
const DefaultResourceDataset = "ghi"

// ratedIrradiance is the irradiance (W/m2) at which output reaches nameplate capacity
const ratedIrradiance = 1000.0

// Generator runs a model over sites read from a resource store
type Generator struct {
	Model Model

	// Resource is the read-only resource store shared by every worker
	Resource store.Reader

	// Dataset is the resource dataset to read (DefaultResourceDataset when empty)
	Dataset string

	// Profiles keeps the per-step output of every site
	Profiles bool
}

// Output is the result for a contiguous block of sites
type Output struct {
	// Means has one row per site, indexed by gid, with a single MeanDataset column
	Means *table.Table

	// Profiles holds one series per site when requested
	Profiles [][]float64
}

func (g *Generator) dataset() string {
	if g.Dataset == "" {
		return DefaultResourceDataset
	}
	return g.Dataset
}

// Compute runs the model for the sites at positions [c.Start, c.Stop) of gids
func (g *Generator) Compute(ctx context.Context, gids []int, c chunk.Chunk, logger *slog.Logger) (*Output, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if c.Start < 0 || c.Stop > len(gids) {
		return nil, fmt.Errorf("%s is outside the %d project points", c, len(gids))
	}

	props, err := g.Resource.Properties(ctx, g.dataset())
	if err != nil {
		return nil, err
	}

	out := &Output{Means: table.New("gid", MeanDataset)}
	if g.Profiles {
		out.Profiles = make([][]float64, 0, c.Len())
	}

	for _, gid := range gids[c.Start:c.Stop] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if gid < 0 || gid >= props.Units() {
			return nil, fmt.Errorf("site gid %d is not in resource dataset %s (%d sites)", gid, props.Name, props.Units())
		}

		series, err := g.Resource.ReadUnits(ctx, props.Name, gid, gid+1)
		if err != nil {
			return nil, err
		}

		profile, err := g.run(series[0])
		if err != nil {
			return nil, fmt.Errorf("site %d: %w", gid, err)
		}

		if err := out.Means.AppendUnit(gid, []float64{floats.Sum(profile) / float64(len(profile))}); err != nil {
			return nil, err
		}
		if g.Profiles {
			out.Profiles = append(out.Profiles, profile)
		}
	}

	logger.Debug("computed sites", "sites", c.Len(), "model", g.Model)
	return out, nil
}

func (g *Generator) run(resource []float64) ([]float64, error) {
	if len(resource) == 0 {
		return nil, fmt.Errorf("empty resource series")
	}

	switch g.Model {
	case ModelCapacityFactor, "":
		profile := make([]float64, len(resource))
		for i, v := range resource {
			profile[i] = math.Max(0, math.Min(1, v/ratedIrradiance))
		}
		return profile, nil
	default:
		return nil, fmt.Errorf("unknown model %q", g.Model)
	}
}

// Func adapts Compute to the executor
func (g *Generator) Func(gids []int) executor.Func {
	return func(ctx context.Context, c chunk.Chunk, logger *slog.Logger) (interface{}, error) {
		return g.Compute(ctx, gids, c, logger)
	}
}
