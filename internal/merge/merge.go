// Package merge reassembles per-chunk results into a single unit-ordered result.
package merge

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/table"
)

// ErrMergeIntegrity is matched by every MergeIntegrityError via errors.Is
var ErrMergeIntegrity = errors.New("merge integrity violated")

// MergeIntegrityError reports merged output that does not line up with the chunk plan
type MergeIntegrityError struct {
	// ChunkIndex is the offending chunk, or -1 when the violation concerns the whole merge
	ChunkIndex int

	// Expected and Actual are row counts (or unit offsets for gaps and overlaps)
	Expected int
	Actual   int

	Reason string
}

// Error implements the error interface
func (e *MergeIntegrityError) Error() string {
	if e.ChunkIndex < 0 {
		return fmt.Sprintf("merge integrity: %s (expected %d, got %d)", e.Reason, e.Expected, e.Actual)
	}
	return fmt.Sprintf("merge integrity: chunk %d: %s (expected %d, got %d)", e.ChunkIndex, e.Reason, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrMergeIntegrity) true
func (e *MergeIntegrityError) Is(target error) bool {
	return target == ErrMergeIntegrity
}

// Ordered sorts results by chunk index and checks that their chunks tile a contiguous
// unit range with no duplicates. The input slice is not modified.
func Ordered(results []executor.Result) ([]executor.Result, error) {
	if len(results) == 0 {
		return nil, &MergeIntegrityError{ChunkIndex: -1, Reason: "no chunk results"}
	}

	sorted := make([]executor.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Chunk.Index < sorted[j].Chunk.Index
	})

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1].Chunk, sorted[i].Chunk
		if cur.Index == prev.Index {
			return nil, &MergeIntegrityError{
				ChunkIndex: cur.Index,
				Expected:   1,
				Actual:     2,
				Reason:     "duplicate chunk result",
			}
		}
		if cur.Start != prev.Stop {
			reason := "gap between chunks"
			if cur.Start < prev.Stop {
				reason = "overlapping chunks"
			}
			return nil, &MergeIntegrityError{
				ChunkIndex: cur.Index,
				Expected:   prev.Stop,
				Actual:     cur.Start,
				Reason:     reason,
			}
		}
	}

	return sorted, nil
}

// Merge concatenates the *table.Table payload of every result in chunk-index order.
//
// Each chunk's table must hold exactly one row per unit in its range, and the merged
// row count must equal the span of all chunks; any mismatch is a MergeIntegrityError.
func Merge(results []executor.Result) (*table.Table, error) {
	sorted, err := Ordered(results)
	if err != nil {
		return nil, err
	}

	parts := make([]*table.Table, len(sorted))
	span := 0
	for i, r := range sorted {
		t, ok := r.Payload.(*table.Table)
		if !ok || t == nil {
			return nil, fmt.Errorf("chunk %d: payload is %T, want *table.Table", r.Chunk.Index, r.Payload)
		}
		if t.Len() != r.Chunk.Len() {
			return nil, &MergeIntegrityError{
				ChunkIndex: r.Chunk.Index,
				Expected:   r.Chunk.Len(),
				Actual:     t.Len(),
				Reason:     "row count does not match chunk span",
			}
		}
		parts[i] = t
		span += r.Chunk.Len()
	}

	merged, err := table.Concat(parts...)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate chunk tables: %w", err)
	}

	if merged.Len() != span {
		return nil, &MergeIntegrityError{
			ChunkIndex: -1,
			Expected:   span,
			Actual:     merged.Len(),
			Reason:     "merged row count does not match total span",
		}
	}

	return merged, nil
}
