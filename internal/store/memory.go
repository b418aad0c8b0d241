package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process store, used for tests and for building small stores before saving
type Memory struct {
	mu        sync.RWMutex
	props     map[string]Properties
	series    map[string][][]float64
	meta      []Site
	timeIndex []string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		props:  make(map[string]Properties),
		series: make(map[string][][]float64),
	}
}

// Close implements Reader
func (m *Memory) Close() error { return nil }

// Datasets implements Reader
func (m *Memory) Datasets(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.props)+2)
	for name := range m.props {
		names = append(names, name)
	}
	if len(m.meta) > 0 {
		names = append(names, MetaDataset)
	}
	if len(m.timeIndex) > 0 {
		names = append(names, TimeIndexDataset)
	}
	sort.Strings(names)
	return names, nil
}

// Properties implements Reader
func (m *Memory) Properties(ctx context.Context, name string) (Properties, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	props, ok := m.props[name]
	if !ok {
		return Properties{}, notFound(name)
	}
	return props, nil
}

// ReadUnits implements Reader. The returned series are copies.
func (m *Memory) ReadUnits(ctx context.Context, name string, start, stop int) ([][]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	props, ok := m.props[name]
	if !ok {
		return nil, notFound(name)
	}
	if err := checkRange(props, start, stop); err != nil {
		return nil, err
	}

	out := make([][]float64, stop-start)
	for i := range out {
		out[i] = append([]float64(nil), m.series[name][start+i]...)
	}
	return out, nil
}

// Meta implements Reader
func (m *Memory) Meta(ctx context.Context, start, stop int) ([]Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if start < 0 {
		start = 0
	}
	if stop > len(m.meta) {
		stop = len(m.meta)
	}
	if start >= stop {
		return []Site{}, nil
	}
	return append([]Site(nil), m.meta[start:stop]...), nil
}

// TimeIndex implements Reader
func (m *Memory) TimeIndex(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.timeIndex...), nil
}

// CreateDataset implements Writer
func (m *Memory) CreateDataset(ctx context.Context, props Properties) error {
	if err := props.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data := make([][]float64, props.Units())
	for i := range data {
		data[i] = make([]float64, props.Steps())
	}
	m.props[props.Name] = props
	m.series[props.Name] = data
	return nil
}

// WriteUnits implements Writer
func (m *Memory) WriteUnits(ctx context.Context, name string, start int, series [][]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	props, ok := m.props[name]
	if !ok {
		return notFound(name)
	}
	if err := checkSeries(props, start, series); err != nil {
		return err
	}

	for i, values := range series {
		m.series[name][start+i] = append([]float64(nil), values...)
	}
	return nil
}

// WriteMeta implements Writer
func (m *Memory) WriteMeta(ctx context.Context, sites []Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = append([]Site(nil), sites...)
	return nil
}

// WriteTimeIndex implements Writer
func (m *Memory) WriteTimeIndex(ctx context.Context, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeIndex = append([]string(nil), labels...)
	return nil
}

// Copy writes every dataset, the meta table and the time index of src into dst
func Copy(ctx context.Context, dst Writer, src Reader) error {
	names, err := src.Datasets(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		if IsReserved(name) {
			continue
		}
		props, err := src.Properties(ctx, name)
		if err != nil {
			return err
		}
		if err := dst.CreateDataset(ctx, props); err != nil {
			return err
		}
		series, err := src.ReadUnits(ctx, name, 0, props.Units())
		if err != nil {
			return err
		}
		if err := dst.WriteUnits(ctx, name, 0, series); err != nil {
			return err
		}
	}

	meta, err := src.Meta(ctx, 0, int(^uint(0)>>1))
	if err != nil {
		return err
	}
	if len(meta) > 0 {
		if err := dst.WriteMeta(ctx, meta); err != nil {
			return err
		}
	}

	labels, err := src.TimeIndex(ctx)
	if err != nil {
		return err
	}
	if len(labels) > 0 {
		return dst.WriteTimeIndex(ctx, labels)
	}
	return nil
}
