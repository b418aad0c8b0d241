package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/aryankumar/fanout/internal/chunk"
	"github.com/aryankumar/fanout/internal/util"
)

// ParsePoints resolves a project points specification into site gids.
//
// Accepted forms are a half-open range "start:stop", an explicit list "1,4,9" (a single
// gid is a one-element list) or the path of a CSV file with a "gid" column.
func ParsePoints(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, util.NewValidationError("points", spec, "project points are required")
	}

	if strings.HasSuffix(strings.ToLower(spec), ".csv") {
		return readPointsFile(spec)
	}

	if strings.Contains(spec, ":") {
		r, err := ParseRange(spec)
		if err != nil {
			return nil, err
		}
		gids := make([]int, 0, r.Len())
		for g := r.Start; g < r.Stop; g++ {
			gids = append(gids, g)
		}
		return gids, nil
	}

	parts := strings.Split(strings.Trim(spec, "[]"), ",")
	gids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := strconv.Atoi(p)
		if err != nil {
			return nil, util.NewValidationError("points", spec, fmt.Sprintf("%q is not a site gid", p))
		}
		gids = append(gids, g)
	}
	if len(gids) == 0 {
		return nil, util.NewValidationError("points", spec, "no site gids given")
	}
	return gids, nil
}

func readPointsFile(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open project points: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read project points header: %w", err)
	}

	col := -1
	for i, h := range header {
		if strings.TrimSpace(h) == "gid" {
			col = i
		}
	}
	if col < 0 {
		return nil, util.NewValidationError("points", path, "project points file has no gid column")
	}

	var gids []int
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read project points: %w", err)
		}
		g, err := strconv.Atoi(strings.TrimSpace(rec[col]))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid gid %q", path, line, rec[col])
		}
		gids = append(gids, g)
	}
	if len(gids) == 0 {
		return nil, util.NewValidationError("points", path, "project points file is empty")
	}
	return gids, nil
}

// Range is a half-open positional range "start:stop"
type Range struct {
	Start int
	Stop  int
}

// ParseRange parses "start:stop"
func ParseRange(s string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Range{}, util.NewValidationError("range", s, "expected start:stop")
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	stop, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return Range{}, util.NewValidationError("range", s, "start and stop must be integers")
	}
	if start < 0 || stop < start {
		return Range{}, util.NewValidationError("range", s, "expected 0 <= start <= stop")
	}
	return Range{Start: start, Stop: stop}, nil
}

// RangeOf returns the range covered by a chunk
func RangeOf(c chunk.Chunk) Range {
	return Range{Start: c.Start, Stop: c.Stop}
}

// Len returns the number of positions in the range
func (r Range) Len() int {
	return r.Stop - r.Start
}

// String implements fmt.Stringer and pflag.Value
func (r Range) String() string {
	return fmt.Sprintf("%d:%d", r.Start, r.Stop)
}

// Apply narrows gids to the positions in r
func (r Range) Apply(gids []int) ([]int, error) {
	if r.Stop > len(gids) {
		return nil, fmt.Errorf("points range %s exceeds %d sites", r, len(gids))
	}
	return gids[r.Start:r.Stop], nil
}

// RangeValue is a pflag.Value for an optional --points-range flag
type RangeValue struct {
	Range *Range
}

// String implements pflag.Value
func (v *RangeValue) String() string {
	if v == nil || v.Range == nil {
		return ""
	}
	return v.Range.String()
}

// Set implements pflag.Value
func (v *RangeValue) Set(s string) error {
	r, err := ParseRange(s)
	if err != nil {
		return err
	}
	v.Range = &r
	return nil
}

// Type implements pflag.Value
func (v *RangeValue) Type() string {
	return "start:stop"
}

// PointsValue is a pflag.Value holding a project points specification
type PointsValue struct {
	Spec string
	Gids []int
}

// String implements pflag.Value
func (v *PointsValue) String() string {
	if v == nil {
		return ""
	}
	return v.Spec
}

// Set implements pflag.Value
func (v *PointsValue) Set(s string) error {
	gids, err := ParsePoints(s)
	if err != nil {
		return err
	}
	v.Spec = s
	v.Gids = gids
	return nil
}

// Type implements pflag.Value
func (v *PointsValue) Type() string {
	return "points"
}

var (
	_ pflag.Value = (*RangeValue)(nil)
	_ pflag.Value = (*PointsValue)(nil)
)
