package executor

import (
	"fmt"
	"strings"
	"time"
)

// CountSuccessful returns the number of successful results (no error)
func CountSuccessful(results []Result) int {
	count := 0
	for _, r := range results {
		if r.Error == nil {
			count++
		}
	}
	return count
}

// CountFailed returns the number of failed results (has error)
func CountFailed(results []Result) int {
	return len(results) - CountSuccessful(results)
}

// FilterFailed returns only the failed results
func FilterFailed(results []Result) []Result {
	filtered := make([]Result, 0)
	for _, r := range results {
		if r.Error != nil {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Handles maps chunk index to result, the local-path equivalent of a job registry
func Handles(results []Result) map[int]Result {
	handles := make(map[int]Result, len(results))
	for _, r := range results {
		handles[r.Chunk.Index] = r
	}
	return handles
}

// Summary provides a summary of execution results
type Summary struct {
	Chunks      int
	Units       int
	Successful  int
	Failed      int
	AvgDuration time.Duration
	MaxDuration time.Duration
	MinDuration time.Duration
}

// Summarize creates a summary of the results
func Summarize(results []Result) Summary {
	s := Summary{
		Chunks:     len(results),
		Successful: CountSuccessful(results),
		Failed:     CountFailed(results),
	}
	if len(results) == 0 {
		return s
	}

	var total time.Duration
	s.MinDuration = results[0].Duration
	for _, r := range results {
		s.Units += r.Chunk.Len()
		total += r.Duration
		if r.Duration > s.MaxDuration {
			s.MaxDuration = r.Duration
		}
		if r.Duration < s.MinDuration {
			s.MinDuration = r.Duration
		}
	}
	s.AvgDuration = total / time.Duration(len(results))

	return s
}

// String returns a human-readable string representation of the summary
func (s Summary) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Chunks: %d, Units: %d, ", s.Chunks, s.Units))
	sb.WriteString(fmt.Sprintf("Successful: %d, ", s.Successful))
	sb.WriteString(fmt.Sprintf("Failed: %d", s.Failed))

	if s.Chunks > 0 {
		sb.WriteString(fmt.Sprintf(", Avg: %s", s.AvgDuration.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", Max: %s", s.MaxDuration.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", Min: %s", s.MinDuration.Round(time.Millisecond)))
	}

	return sb.String()
}
