// Package output renders submission reports and summary tables for the terminal.
//
// Three formats are supported: a borderless, tab-separated table (the default), JSON
// and YAML. The wide table adds the output path and command of every job. Colors are only used when writing to a TTY and can be turned off with
// WithNoColor.
//
//	f := output.NewFormatter(output.FormatWide, output.WithNoHeaders(true))
//	f.FormatJobs(os.Stdout, registry.Handles())
//	f.FormatTable(os.Stdout, summary)
package output
