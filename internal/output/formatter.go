package output

import (
	"io"
	"strings"

	"github.com/aryankumar/fanout/internal/submit"
	"github.com/aryankumar/fanout/internal/table"
	"github.com/aryankumar/fanout/internal/util"
)

// Format represents the output format type
type Format string

const (
	// FormatTable outputs data as a tab-separated table
	FormatTable Format = "table"
	// FormatJSON outputs data in JSON format
	FormatJSON Format = "json"
	// FormatYAML outputs data in YAML format
	FormatYAML Format = "yaml"
	// FormatWide is the table format with the output path and command of every job
	FormatWide Format = "wide"
)

// ParseFormat validates an output format name ("" means table)
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatWide, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", util.NewValidationError("output", s, "must be one of table, wide, json, yaml")
	}
}

// Formatter defines the interface for output formatting
type Formatter interface {
	// Format outputs a single data item to the writer
	Format(w io.Writer, data interface{}) error

	// FormatJobs outputs the kick-off report of a batch submission
	FormatJobs(w io.Writer, jobs []submit.JobHandle) error

	// FormatTable outputs a labelled numeric table
	FormatTable(w io.Writer, t *table.Table) error
}

// Option is a functional option for configuring formatters
type Option func(*Options)

// Options holds configuration for formatters
type Options struct {
	// NoColor disables color output
	NoColor bool

	// NoHeaders disables table headers
	NoHeaders bool

	// Wide adds the output path and command of each job
	Wide bool
}

// WithNoColor disables color output
func WithNoColor(noColor bool) Option {
	return func(o *Options) {
		o.NoColor = noColor
	}
}

// WithNoHeaders disables table headers
func WithNoHeaders(noHeaders bool) Option {
	return func(o *Options) {
		o.NoHeaders = noHeaders
	}
}

// WithWide enables wide output
func WithWide(wide bool) Option {
	return func(o *Options) {
		o.Wide = wide
	}
}

// NewFormatter creates a new formatter based on the specified format
func NewFormatter(format Format, opts ...Option) Formatter {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	switch format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatWide:
		WithWide(true)(options)
		return NewTableFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}

// JobRecord is the serialized form of a job handle
type JobRecord struct {
	Node        int    `json:"node" yaml:"node"`
	Name        string `json:"name" yaml:"name"`
	Range       string `json:"range" yaml:"range"`
	Status      string `json:"status" yaml:"status"`
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Output      string `json:"output,omitempty" yaml:"output,omitempty"`
	Command     string `json:"command,omitempty" yaml:"command,omitempty"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// JobRecords converts job handles into records; the command is only kept in wide mode
func JobRecords(jobs []submit.JobHandle, wide bool) []JobRecord {
	records := make([]JobRecord, len(jobs))
	for i, job := range jobs {
		rec := JobRecord{
			Node:        job.Chunk.Index,
			Name:        job.Name,
			Range:       submit.FormatRange(job.Chunk),
			Status:      job.Status(),
			ID:          job.ID,
			Output:      job.Output,
			Fingerprint: job.Fingerprint,
		}
		if wide {
			rec.Command = job.Command
		}
		if job.Err != nil {
			rec.Error = job.Err.Error()
		}
		records[i] = rec
	}
	return records
}

// countJobs returns the number of kicked off and failed jobs
func countJobs(jobs []submit.JobHandle) (kicked, failed int) {
	for _, job := range jobs {
		if job.Submitted() {
			kicked++
		} else {
			failed++
		}
	}
	return kicked, failed
}
