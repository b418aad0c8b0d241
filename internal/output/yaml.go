package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aryankumar/fanout/internal/submit"
	"github.com/aryankumar/fanout/internal/table"
)

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	options *Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(opts *Options) *YAMLFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &YAMLFormatter{
		options: opts,
	}
}

// Format outputs a single data item as YAML
func (f *YAMLFormatter) Format(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	return encoder.Encode(data)
}

// FormatJobs outputs job records as a YAML sequence
func (f *YAMLFormatter) FormatJobs(w io.Writer, jobs []submit.JobHandle) error {
	return f.Format(w, JobRecords(jobs, f.options.Wide))
}

// FormatTable outputs one mapping per row
func (f *YAMLFormatter) FormatTable(w io.Writer, t *table.Table) error {
	return f.Format(w, t.Records())
}
