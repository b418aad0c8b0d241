package sim

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/merge"
	"github.com/aryankumar/fanout/internal/store"
	"github.com/aryankumar/fanout/internal/table"
)

// Result is the merged output of a generation run, in project points order
type Result struct {
	Means    *table.Table
	Profiles [][]float64
}

// Gids returns the site gids of the result rows
func (r *Result) Gids() ([]int, error) {
	gids := make([]int, len(r.Means.Index))
	for i, label := range r.Means.Index {
		g, err := strconv.Atoi(label)
		if err != nil {
			return nil, fmt.Errorf("row %d has non-integer gid %q", i, label)
		}
		gids[i] = g
	}
	return gids, nil
}

// Combine merges per-chunk *Output payloads in chunk order
func Combine(results []executor.Result) (*Result, error) {
	ordered, err := merge.Ordered(results)
	if err != nil {
		return nil, err
	}

	meanParts := make([]executor.Result, len(ordered))
	var profiles [][]float64
	for i, r := range ordered {
		out, ok := r.Payload.(*Output)
		if !ok || out == nil {
			return nil, fmt.Errorf("chunk %d: payload is %T, want *sim.Output", r.Chunk.Index, r.Payload)
		}
		meanParts[i] = executor.Result{Chunk: r.Chunk, Payload: out.Means}
		if out.Profiles != nil {
			if len(out.Profiles) != r.Chunk.Len() {
				return nil, &merge.MergeIntegrityError{
					ChunkIndex: r.Chunk.Index,
					Expected:   r.Chunk.Len(),
					Actual:     len(out.Profiles),
					Reason:     "profile count does not match chunk span",
				}
			}
			profiles = append(profiles, out.Profiles...)
		}
	}

	means, err := merge.Merge(meanParts)
	if err != nil {
		return nil, err
	}
	return &Result{Means: means, Profiles: profiles}, nil
}

// Write stores the result: MeanDataset (1-D), ProfileDataset (2-D, when profiles were
// kept), the resource meta rows of the result's sites and the resource time index.
func Write(ctx context.Context, w store.Writer, res *Result, resource store.Reader) error {
	gids, err := res.Gids()
	if err != nil {
		return err
	}
	n := len(gids)
	if n == 0 {
		return fmt.Errorf("no sites to write")
	}

	means, ok := res.Means.Column(MeanDataset)
	if !ok {
		return fmt.Errorf("result has no %s column", MeanDataset)
	}
	if err := w.CreateDataset(ctx, store.Properties{Name: MeanDataset, Shape: []int{n}}); err != nil {
		return err
	}
	series := make([][]float64, n)
	for i, v := range means {
		series[i] = []float64{v}
	}
	if err := w.WriteUnits(ctx, MeanDataset, 0, series); err != nil {
		return err
	}

	if len(res.Profiles) > 0 {
		steps := len(res.Profiles[0])
		if err := w.CreateDataset(ctx, store.Properties{Name: ProfileDataset, Shape: []int{steps, n}}); err != nil {
			return err
		}
		if err := w.WriteUnits(ctx, ProfileDataset, 0, res.Profiles); err != nil {
			return err
		}
	}

	if resource == nil {
		sites := make([]store.Site, n)
		for i, g := range gids {
			sites[i] = store.Site{Gid: g}
		}
		return w.WriteMeta(ctx, sites)
	}

	sites := make([]store.Site, n)
	for i, g := range gids {
		meta, err := resource.Meta(ctx, g, g+1)
		if err != nil {
			return err
		}
		sites[i] = store.Site{Gid: g}
		if len(meta) == 1 {
			sites[i].Attrs = meta[0].Attrs
		}
	}
	if err := w.WriteMeta(ctx, sites); err != nil {
		return err
	}

	labels, err := resource.TimeIndex(ctx)
	if err != nil {
		return err
	}
	if len(labels) > 0 {
		return w.WriteTimeIndex(ctx, labels)
	}
	return nil
}
