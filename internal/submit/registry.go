package submit

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/util"
)

// Request is one rendered sub-job
type Request struct {
	// Name is the node job name
	Name string

	// Argv is the rendered argument vector; Command is the same vector shell-quoted
	Argv    []string
	Command string

	// Chunk is the unit range this node covers
	Chunk chunk.Chunk

	// Output is the node's output path
	Output string

	// RunID identifies the submission run the request belongs to
	RunID string
}

// SubmissionError records a chunk the backend did not accept
type SubmissionError struct {
	Chunk int
	Name  string
	Err   error
}

// Error implements the error interface
func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit %s (chunk %d): %v", e.Name, e.Chunk, e.Err)
}

// Unwrap returns the backend error
func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// JobHandle is the registry entry for one node
type JobHandle struct {
	Chunk   chunk.Chunk `json:"chunk" yaml:"chunk"`
	Name    string      `json:"name" yaml:"name"`
	Output  string      `json:"output,omitempty" yaml:"output,omitempty"`
	Command string      `json:"command" yaml:"command"`

	// ID is the backend job id; empty when submission failed
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Fingerprint is a stable hash of Command
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`

	// Err is set when the backend rejected the job
	Err error `json:"-" yaml:"-"`

	SubmittedAt time.Time `json:"submitted_at" yaml:"submitted_at"`
}

// Submitted reports whether the backend accepted the job
func (h JobHandle) Submitted() bool {
	return h.Err == nil
}

// Status returns "kicked off" or "failed"
func (h JobHandle) Status() string {
	if h.Submitted() {
		return "kicked off"
	}
	return "failed"
}

// Fingerprint hashes a command line
func Fingerprint(command string) string {
	return fmt.Sprintf("%016x", murmur3.Sum64([]byte(command)))
}

// Registry maps chunk index to job handle. It only grows while submissions are in flight.
type Registry struct {
	mu      sync.RWMutex
	runID   string
	handles map[int]JobHandle
}

// NewRegistry creates an empty registry for a run
func NewRegistry(runID string) *Registry {
	return &Registry{
		runID:   runID,
		handles: make(map[int]JobHandle),
	}
}

// RunID returns the run identifier
func (r *Registry) RunID() string {
	return r.runID
}

func (r *Registry) record(h JobHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.Chunk.Index] = h
}

// Get returns the handle for a chunk
func (r *Registry) Get(chunkIndex int) (JobHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[chunkIndex]
	return h, ok
}

// Len returns the number of recorded handles
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Handles returns every handle ordered by chunk index
func (r *Registry) Handles() []JobHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]JobHandle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Chunk.Index < out[j].Chunk.Index
	})
	return out
}

// Succeeded returns the handles the backend accepted
func (r *Registry) Succeeded() []JobHandle {
	return r.filter(true)
}

// Failed returns the handles the backend rejected
func (r *Registry) Failed() []JobHandle {
	return r.filter(false)
}

func (r *Registry) filter(submitted bool) []JobHandle {
	var out []JobHandle
	for _, h := range r.Handles() {
		if h.Submitted() == submitted {
			out = append(out, h)
		}
	}
	return out
}

// Err combines every submission failure, or returns nil
func (r *Registry) Err() error {
	merr := &util.MultiError{}
	for _, h := range r.Failed() {
		merr.Add(h.Err)
	}
	return merr.ErrorOrNil()
}
