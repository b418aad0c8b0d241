// Package chunk partitions a unit-indexed workload into contiguous, ordered chunks.
//
// A workload is the half-open integer range [0, N). Plan splits it into chunks that are
// disjoint, ordered by index, and whose union is exactly [0, N). Plans are pure functions
// of their inputs: remote sub-job commands embed chunk ranges directly, so the same inputs
// must always produce the same plan.
package chunk

import (
	"errors"
	"fmt"
)

// ErrInvalidPartition is matched by every InvalidPartitionError via errors.Is
var ErrInvalidPartition = errors.New("invalid partition")

// Chunk is a half-open contiguous sub-range [Start, Stop) of the unit space
type Chunk struct {
	// Index is the position of the chunk in its plan
	Index int

	// Start is the first unit in the chunk
	Start int

	// Stop is one past the last unit in the chunk
	Stop int
}

// Len returns the number of units covered by the chunk
func (c Chunk) Len() int {
	return c.Stop - c.Start
}

// String returns a compact representation like "chunk 2 [200:250)"
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%d:%d)", c.Index, c.Start, c.Stop)
}

// Hint selects how the unit space is split. Exactly one field must be set.
type Hint struct {
	// ChunkSize is the number of units per chunk (the last chunk may be smaller)
	ChunkSize int

	// NodeCount is the number of chunks to produce; the chunk size is derived by ceiling division
	NodeCount int
}

// BySize returns a hint for a fixed chunk size
func BySize(size int) Hint {
	return Hint{ChunkSize: size}
}

// ByNodes returns a hint for a fixed number of chunks
func ByNodes(nodes int) Hint {
	return Hint{NodeCount: nodes}
}

// InvalidPartitionError reports chunking parameters that cannot describe a partition
type InvalidPartitionError struct {
	Total  int
	Hint   Hint
	Reason string
}

// Error implements the error interface
func (e *InvalidPartitionError) Error() string {
	return fmt.Sprintf("invalid partition of %d units (chunk_size=%d, node_count=%d): %s",
		e.Total, e.Hint.ChunkSize, e.Hint.NodeCount, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidPartition) true for any InvalidPartitionError
func (e *InvalidPartitionError) Is(target error) bool {
	return target == ErrInvalidPartition
}

// Plan splits [0, total) into ordered chunks according to hint
func Plan(total int, hint Hint) ([]Chunk, error) {
	size, err := resolveSize(total, hint)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, CeilDiv(total, size))
	for start := 0; start < total; start += size {
		stop := start + size
		if stop > total {
			stop = total
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			Stop:  stop,
		})
	}

	return chunks, nil
}

// Whole returns the single chunk covering [0, total)
func Whole(total int) Chunk {
	return Chunk{Index: 0, Start: 0, Stop: total}
}

// Span returns the total number of units covered by chunks
func Span(chunks []Chunk) int {
	n := 0
	for _, c := range chunks {
		n += c.Len()
	}
	return n
}

// CeilDiv returns ceil(a / b) for positive b
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

func resolveSize(total int, hint Hint) (int, error) {
	invalid := func(reason string) error {
		return &InvalidPartitionError{Total: total, Hint: hint, Reason: reason}
	}

	if total <= 0 {
		return 0, invalid("total units must be positive")
	}

	hasSize := hint.ChunkSize != 0
	hasNodes := hint.NodeCount != 0

	switch {
	case hasSize && hasNodes:
		return 0, invalid("exactly one of chunk size or node count may be given")
	case !hasSize && !hasNodes:
		return 0, invalid("one of chunk size or node count is required")
	case hasSize:
		if hint.ChunkSize < 0 {
			return 0, invalid("chunk size must be positive")
		}
		return hint.ChunkSize, nil
	default:
		if hint.NodeCount < 0 {
			return 0, invalid("node count must be positive")
		}
		// More nodes than units would leave some nodes with empty ranges.
		if hint.NodeCount > total {
			return 0, invalid("node count exceeds total units")
		}
		return CeilDiv(total, hint.NodeCount), nil
	}
}
