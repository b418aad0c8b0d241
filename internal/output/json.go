package output

import (
	"encoding/json"
	"io"
	"math"

	"github.com/aryankumar/fanout/internal/submit"
	"github.com/aryankumar/fanout/internal/table"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	options *Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(opts *Options) *JSONFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &JSONFormatter{
		options: opts,
	}
}

// Format outputs a single data item as JSON
func (f *JSONFormatter) Format(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FormatJobs outputs job records as a JSON array
func (f *JSONFormatter) FormatJobs(w io.Writer, jobs []submit.JobHandle) error {
	return f.Format(w, JobRecords(jobs, f.options.Wide))
}

// FormatTable outputs one object per row. NaN is not valid JSON and is written as null.
func (f *JSONFormatter) FormatTable(w io.Writer, t *table.Table) error {
	records := t.Records()
	for _, rec := range records {
		for k, v := range rec {
			if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
				rec[k] = nil
			}
		}
	}
	return f.Format(w, records)
}
