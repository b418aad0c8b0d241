// Package store provides the unit-indexed dataset store read by summary and simulation runs.
//
// A store holds named datasets laid out as steps x units (2-D) or units (1-D), a per-unit
// meta table and an optional time index. Datasets are read by unit range, so a chunk of
// units can be loaded without touching the rest of the dataset.
package store

import (
	"context"
	"fmt"

	"github.com/aryankumar/fanout/internal/util"
)

// Reserved dataset names that are not value datasets
const (
	MetaDataset      = "meta"
	TimeIndexDataset = "time_index"
)

// IsReserved reports whether name is one of the reserved non-value datasets
func IsReserved(name string) bool {
	return name == MetaDataset || name == TimeIndexDataset
}

// Properties describes a value dataset
type Properties struct {
	// Name is the dataset name
	Name string

	// Shape is [units] for 1-D datasets or [steps, units] for 2-D datasets
	Shape []int

	// ChunkUnits is the native chunk width along the unit axis (0 when unchunked)
	ChunkUnits int
}

// Is1D reports whether the dataset holds one value per unit
func (p Properties) Is1D() bool {
	return len(p.Shape) == 1
}

// Units returns the length of the unit axis
func (p Properties) Units() int {
	if len(p.Shape) == 0 {
		return 0
	}
	return p.Shape[len(p.Shape)-1]
}

// Steps returns the number of values per unit (1 for 1-D datasets)
func (p Properties) Steps() int {
	if len(p.Shape) < 2 {
		return 1
	}
	return p.Shape[0]
}

// Validate checks the shape is 1-D or 2-D with positive extents
func (p Properties) Validate() error {
	if p.Name == "" {
		return util.NewValidationError("name", p.Name, "dataset name is required")
	}
	if IsReserved(p.Name) {
		return util.NewValidationError("name", p.Name, "dataset name is reserved")
	}
	if len(p.Shape) != 1 && len(p.Shape) != 2 {
		return util.NewValidationError("shape", p.Shape, "datasets must be 1-D or 2-D")
	}
	for _, n := range p.Shape {
		if n <= 0 {
			return util.NewValidationError("shape", p.Shape, "extents must be positive")
		}
	}
	if p.ChunkUnits < 0 {
		return util.NewValidationError("chunk_units", p.ChunkUnits, "must not be negative")
	}
	return nil
}

// Site is one row of the meta table
type Site struct {
	// Gid is the unit's global identifier
	Gid int `json:"gid" yaml:"gid"`

	// Attrs holds numeric per-unit attributes (latitude, elevation, ...)
	Attrs map[string]float64 `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// Reader is the read side of a dataset store. Implementations are safe for concurrent use.
type Reader interface {
	// Datasets lists every dataset name, including meta and time_index when present
	Datasets(ctx context.Context) ([]string, error)

	// Properties returns the shape and native chunking of a value dataset
	Properties(ctx context.Context, name string) (Properties, error)

	// ReadUnits returns one series per unit in [start, stop), each Steps() long
	ReadUnits(ctx context.Context, name string, start, stop int) ([][]float64, error)

	// Meta returns the meta rows for unit positions [start, stop)
	Meta(ctx context.Context, start, stop int) ([]Site, error)

	// TimeIndex returns the time index labels, if any
	TimeIndex(ctx context.Context) ([]string, error)

	Close() error
}

// Writer extends Reader with dataset creation and writes
type Writer interface {
	Reader

	CreateDataset(ctx context.Context, props Properties) error
	WriteUnits(ctx context.Context, name string, start int, series [][]float64) error
	WriteMeta(ctx context.Context, sites []Site) error
	WriteTimeIndex(ctx context.Context, labels []string) error
}

// GIDs returns the gid of every site, in order
func GIDs(sites []Site) []int {
	gids := make([]int, len(sites))
	for i, s := range sites {
		gids[i] = s.Gid
	}
	return gids
}

func checkRange(props Properties, start, stop int) error {
	if start < 0 || stop > props.Units() || start > stop {
		return fmt.Errorf("unit range [%d:%d) out of bounds for %s with %d units", start, stop, props.Name, props.Units())
	}
	return nil
}

func checkSeries(props Properties, start int, series [][]float64) error {
	if err := checkRange(props, start, start+len(series)); err != nil {
		return err
	}
	for i, s := range series {
		if len(s) != props.Steps() {
			return fmt.Errorf("unit %d of %s has %d values, want %d", start+i, props.Name, len(s), props.Steps())
		}
	}
	return nil
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", util.ErrDatasetNotFound, name)
}
