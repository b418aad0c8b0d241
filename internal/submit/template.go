package submit

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/aryankumar/fanout/internal/chunk"
)

// Placeholders substituted into template arguments
const (
	PlaceholderNode   = "{node}"
	PlaceholderName   = "{name}"
	PlaceholderRange  = "{range}"
	PlaceholderStart  = "{start}"
	PlaceholderStop   = "{stop}"
	PlaceholderOutput = "{output}"
)

// Template describes the command every node runs. Each argument may contain placeholders
// that are replaced with the node's values when a chunk is rendered.
type Template struct {
	// Name is the base job name; node i runs as "<Name>_<i>"
	Name string

	// Argv is the command and its arguments
	Argv []string

	// Output is the base output path; node i writes "<stem>_node_<i><ext>"
	Output string
}

// Validate checks the template can be rendered
func (t Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("job template requires a name")
	}
	if len(t.Argv) == 0 {
		return fmt.Errorf("job template %q has no command", t.Name)
	}
	return nil
}

// NodeName returns the job name of node i
func NodeName(base string, i int) string {
	return fmt.Sprintf("%s_%d", base, i)
}

// NodeOutput returns the output path of node i, keeping the extension of base
func NodeOutput(base string, i int) string {
	if base == "" {
		return ""
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_node_%d%s", strings.TrimSuffix(base, ext), i, ext)
}

// FormatRange renders a unit range as "start:stop"
func FormatRange(c chunk.Chunk) string {
	return fmt.Sprintf("%d:%d", c.Start, c.Stop)
}

// Render builds the request for chunk c
func (t Template) Render(c chunk.Chunk) (Request, error) {
	if err := t.Validate(); err != nil {
		return Request{}, err
	}

	name := NodeName(t.Name, c.Index)
	output := NodeOutput(t.Output, c.Index)

	replacer := strings.NewReplacer(
		PlaceholderNode, strconv.Itoa(c.Index),
		PlaceholderName, name,
		PlaceholderRange, FormatRange(c),
		PlaceholderStart, strconv.Itoa(c.Start),
		PlaceholderStop, strconv.Itoa(c.Stop),
		PlaceholderOutput, output,
	)

	argv := make([]string, len(t.Argv))
	for i, arg := range t.Argv {
		argv[i] = replacer.Replace(arg)
	}

	return Request{
		Name:    name,
		Argv:    argv,
		Command: shellquote.Join(argv...),
		Chunk:   c,
		Output:  output,
	}, nil
}

// SplitCommand splits a rendered command line back into its arguments
func SplitCommand(command string) ([]string, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("failed to split command %q: %w", command, err)
	}
	return argv, nil
}
