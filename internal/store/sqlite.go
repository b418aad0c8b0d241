package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/aryankumar/fanout/internal/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	name TEXT PRIMARY KEY,
	shape TEXT NOT NULL,
	chunk_units INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS series (
	dataset TEXT NOT NULL,
	unit INTEGER NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (dataset, unit)
);
CREATE TABLE IF NOT EXISTS meta (
	position INTEGER PRIMARY KEY,
	gid INTEGER NOT NULL,
	attrs TEXT
);
CREATE TABLE IF NOT EXISTS time_index (
	position INTEGER PRIMARY KEY,
	label TEXT NOT NULL
);
`

// SQLite is a dataset store backed by a single SQLite file
type SQLite struct {
	db       *sql.DB
	path     string
	readOnly bool
	logger   *slog.Logger
}

// OpenReadOnly opens an existing store for reading. Every write returns util.ErrReadOnly.
func OpenReadOnly(path string, logger *slog.Logger) (*SQLite, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	return open(path, "file:"+path+"?mode=ro", true, logger)
}

// Create creates an empty store for writing. An existing file at path is replaced, so no
// dataset from an earlier run survives.
func Create(path string, logger *slog.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to replace store %s: %w", path, err)
		}
	}

	s, err := open(path, path, false, logger)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(schema); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}
	return s, nil
}

func open(path, dsn string, readOnly bool, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	if !readOnly {
		// single writer; readers share the pool
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}

	logger.Debug("opened dataset store", "path", path, "read_only", readOnly)
	return &SQLite{db: db, path: path, readOnly: readOnly, logger: logger}, nil
}

// Path returns the file the store was opened from
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the underlying database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Datasets implements Reader
func (s *SQLite) Datasets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM datasets")
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, reserved := range []string{MetaDataset, TimeIndexDataset} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+reserved).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s rows: %w", reserved, err)
		}
		if n > 0 {
			names = append(names, reserved)
		}
	}

	sort.Strings(names)
	return names, nil
}

// Properties implements Reader
func (s *SQLite) Properties(ctx context.Context, name string) (Properties, error) {
	var shapeJSON string
	props := Properties{Name: name}

	err := s.db.QueryRowContext(ctx,
		"SELECT shape, chunk_units FROM datasets WHERE name = ?", name,
	).Scan(&shapeJSON, &props.ChunkUnits)
	if errors.Is(err, sql.ErrNoRows) {
		return Properties{}, notFound(name)
	}
	if err != nil {
		return Properties{}, fmt.Errorf("failed to read properties of %s: %w", name, err)
	}

	if err := json.Unmarshal([]byte(shapeJSON), &props.Shape); err != nil {
		return Properties{}, fmt.Errorf("corrupt shape for %s: %w", name, err)
	}
	return props, nil
}

// ReadUnits implements Reader
func (s *SQLite) ReadUnits(ctx context.Context, name string, start, stop int) ([][]float64, error) {
	props, err := s.Properties(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := checkRange(props, start, stop); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT unit, data FROM series WHERE dataset = ? AND unit >= ? AND unit < ? ORDER BY unit",
		name, start, stop)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s[%d:%d]: %w", name, start, stop, err)
	}
	defer rows.Close()

	out := make([][]float64, stop-start)
	for rows.Next() {
		var unit int
		var blob []byte
		if err := rows.Scan(&unit, &blob); err != nil {
			return nil, err
		}
		out[unit-start] = decodeSeries(blob)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// units never written read as zeros
	for i := range out {
		if out[i] == nil {
			out[i] = make([]float64, props.Steps())
		}
	}
	return out, nil
}

// Meta implements Reader
func (s *SQLite) Meta(ctx context.Context, start, stop int) ([]Site, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT gid, attrs FROM meta WHERE position >= ? AND position < ? ORDER BY position",
		start, stop)
	if err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	defer rows.Close()

	sites := make([]Site, 0)
	for rows.Next() {
		var site Site
		var attrs sql.NullString
		if err := rows.Scan(&site.Gid, &attrs); err != nil {
			return nil, err
		}
		if attrs.Valid && attrs.String != "" {
			if err := json.Unmarshal([]byte(attrs.String), &site.Attrs); err != nil {
				return nil, fmt.Errorf("corrupt meta attributes for gid %d: %w", site.Gid, err)
			}
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// TimeIndex implements Reader
func (s *SQLite) TimeIndex(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT label FROM time_index ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to read time index: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// CreateDataset implements Writer
func (s *SQLite) CreateDataset(ctx context.Context, props Properties) error {
	if s.readOnly {
		return util.ErrReadOnly
	}
	if err := props.Validate(); err != nil {
		return err
	}

	shape, err := json.Marshal(props.Shape)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO datasets (name, shape, chunk_units) VALUES (?, ?, ?)",
		props.Name, string(shape), props.ChunkUnits)
	if err != nil {
		return fmt.Errorf("failed to create dataset %s: %w", props.Name, err)
	}

	s.logger.Debug("created dataset", "name", props.Name, "shape", props.Shape, "chunk_units", props.ChunkUnits)
	return nil
}

// WriteUnits implements Writer
func (s *SQLite) WriteUnits(ctx context.Context, name string, start int, series [][]float64) error {
	if s.readOnly {
		return util.ErrReadOnly
	}
	props, err := s.Properties(ctx, name)
	if err != nil {
		return err
	}
	if err := checkSeries(props, start, series); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO series (dataset, unit, data) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, values := range series {
			if _, err := stmt.ExecContext(ctx, name, start+i, encodeSeries(values)); err != nil {
				return fmt.Errorf("failed to write %s unit %d: %w", name, start+i, err)
			}
		}
		return nil
	})
}

// WriteMeta implements Writer. It replaces the whole meta table.
func (s *SQLite) WriteMeta(ctx context.Context, sites []Site) error {
	if s.readOnly {
		return util.ErrReadOnly
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM meta"); err != nil {
			return err
		}
		for i, site := range sites {
			var attrs []byte
			if len(site.Attrs) > 0 {
				var err error
				if attrs, err = json.Marshal(site.Attrs); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO meta (position, gid, attrs) VALUES (?, ?, ?)",
				i, site.Gid, string(attrs)); err != nil {
				return fmt.Errorf("failed to write meta row %d: %w", i, err)
			}
		}
		return nil
	})
}

// WriteTimeIndex implements Writer. It replaces the whole time index.
func (s *SQLite) WriteTimeIndex(ctx context.Context, labels []string) error {
	if s.readOnly {
		return util.ErrReadOnly
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM time_index"); err != nil {
			return err
		}
		for i, label := range labels {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO time_index (position, label) VALUES (?, ?)", i, label); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// encodeSeries packs values as little-endian float64
func encodeSeries(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeSeries(buf []byte) []float64 {
	values := make([]float64, len(buf)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return values
}
