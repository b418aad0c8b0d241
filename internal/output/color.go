package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme provides color functions for different output elements
type ColorScheme struct {
	// Name colors job and dataset names
	Name func(format string, a ...interface{}) string

	// Success colors jobs that were kicked off
	Success func(format string, a ...interface{}) string

	// Error colors failed jobs and error messages
	Error func(format string, a ...interface{}) string

	// Warning colors warnings
	Warning func(format string, a ...interface{}) string

	// Header colors table headers
	Header func(format string, a ...interface{}) string

	// Range colors unit ranges
	Range func(format string, a ...interface{}) string

	// Disabled indicates if colors are disabled
	Disabled bool
}

// NewColorScheme creates a new color scheme.
// Colors are disabled for non-TTY writers or when noColor is true.
func NewColorScheme(w io.Writer, noColor bool) *ColorScheme {
	if noColor || !isTTY(w) {
		plain := color.New().Sprintf
		return &ColorScheme{
			Name:     plain,
			Success:  plain,
			Error:    plain,
			Warning:  plain,
			Header:   plain,
			Range:    plain,
			Disabled: true,
		}
	}

	return &ColorScheme{
		Name:    color.New(color.FgCyan, color.Bold).Sprintf,
		Success: color.New(color.FgGreen).Sprintf,
		Error:   color.New(color.FgRed, color.Bold).Sprintf,
		Warning: color.New(color.FgYellow).Sprintf,
		Header:  color.New(color.FgWhite, color.Bold).Sprintf,
		Range:   color.New(color.FgBlue).Sprintf,
	}
}

func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// StatusColor returns an appropriate color function based on error status
func (cs *ColorScheme) StatusColor(hasError bool) func(format string, a ...interface{}) string {
	if hasError {
		return cs.Error
	}
	return cs.Success
}
