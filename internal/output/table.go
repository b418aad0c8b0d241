package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/aryankumar/fanout/internal/submit"
	"github.com/aryankumar/fanout/internal/table"
)

// TableFormatter formats output as a tab-separated table
type TableFormatter struct {
	options *Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(opts *Options) *TableFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &TableFormatter{
		options: opts,
	}
}

// Format outputs a single data item as a table
func (f *TableFormatter) Format(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case map[string]interface{}:
		return f.formatMap(f.createTable(w, true), v)
	case nil:
		return nil
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

// FormatJobs outputs one row per node followed by a kick-off summary
func (f *TableFormatter) FormatJobs(w io.Writer, jobs []submit.JobHandle) error {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	tw := f.createTable(w, true)

	headers := []string{"NODE", "NAME", "RANGE", "STATUS", "JOB ID"}
	if f.options.Wide {
		headers = append(headers, "OUTPUT", "COMMAND")
	}
	f.setHeader(tw, headers, colors)

	for _, job := range jobs {
		status := colors.StatusColor(!job.Submitted())("%s", job.Status())
		id := job.ID
		if id == "" {
			id = "-"
		}

		row := []string{
			strconv.Itoa(job.Chunk.Index),
			colors.Name("%s", job.Name),
			colors.Range("%s", submit.FormatRange(job.Chunk)),
			status,
			id,
		}
		if f.options.Wide {
			detail := job.Command
			if job.Err != nil {
				detail = job.Err.Error()
			}
			row = append(row, job.Output, detail)
		}
		tw.Append(row)
	}

	tw.Render()

	kicked, failed := countJobs(jobs)
	failedText := fmt.Sprintf("%d failed", failed)
	if failed > 0 {
		failedText = colors.Error("%s", failedText)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Summary: %s, %s\n", colors.Success("%d kicked off", kicked), failedText)

	return nil
}

// FormatTable outputs the index as the first column and every value in shortest form
func (f *TableFormatter) FormatTable(w io.Writer, t *table.Table) error {
	if t == nil || t.Len() == 0 {
		fmt.Fprintln(w, "No rows")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	tw := f.createTable(w, false)

	f.setHeader(tw, append([]string{t.IndexName}, t.Columns...), colors)

	for i, row := range t.Rows {
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, t.Index[i])
		for _, v := range row {
			cells = append(cells, strconv.FormatFloat(v, 'g', 6, 64))
		}
		tw.Append(cells)
	}

	tw.Render()
	return nil
}

func (f *TableFormatter) setHeader(tw *tablewriter.Table, headers []string, colors *ColorScheme) {
	if f.options.NoHeaders {
		return
	}
	if !colors.Disabled {
		colored := make([]string, len(headers))
		for i, h := range headers {
			colored[i] = colors.Header("%s", h)
		}
		headers = colored
	}
	tw.SetHeader(headers)
}

// formatMap formats a map as a two-column table sorted by key
func (f *TableFormatter) formatMap(tw *tablewriter.Table, data map[string]interface{}) error {
	if !f.options.NoHeaders {
		tw.SetHeader([]string{"KEY", "VALUE"})
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		tw.Append([]string{k, fmt.Sprintf("%v", data[k])})
	}

	tw.Render()
	return nil
}

// createTable creates a borderless, tab-separated table. Dataset and statistic names
// keep their case unless autoHeaders is set.
func (f *TableFormatter) createTable(w io.Writer, autoHeaders bool) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)

	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(autoHeaders)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	tw.SetBorder(false)
	tw.SetTablePadding("\t")
	tw.SetNoWhiteSpace(true)

	return tw
}

