package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/okian/gotsim/internal/domain/failure"
)

// CSVOptions controls how ReadCSV types columns.
type CSVOptions struct {
	// StringColumns are always read as strings, even when every cell parses as a number.
	StringColumns []string
	// Required columns must be present in the header.
	Required []string
}

// ReadCSV decodes a table with a header row. A column whose non-empty cells
// all parse as numbers becomes a float column with NaN for empty cells;
// anything else becomes a string column.
func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty csv, header row required", failure.ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", failure.ErrType, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if seen[h] {
			return nil, fmt.Errorf("%w: duplicate column %q", failure.ErrSchema, h)
		}
		seen[h] = true
	}
	for _, name := range opts.Required {
		if !seen[name] {
			return nil, fmt.Errorf("%w: column %q not found", failure.ErrSchema, name)
		}
	}

	cells := make([][]string, len(header))
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv line %d: %v", failure.ErrType, line+1, err)
		}
		line++
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: csv line %d has %d fields, header has %d", failure.ErrSchema, line, len(rec), len(header))
		}
		for j, v := range rec {
			cells[j] = append(cells[j], v)
		}
	}

	forced := make(map[string]bool, len(opts.StringColumns))
	for _, name := range opts.StringColumns {
		forced[name] = true
	}

	f := New(line - 1)
	for j, name := range header {
		vals := cells[j]
		if vals == nil {
			vals = []string{}
		}
		if !forced[name] {
			if floats, ok := parseFloats(vals); ok {
				if err := f.SetFloats(name, floats); err != nil {
					return nil, err
				}
				continue
			}
		}
		if err := f.SetStrings(name, vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func parseFloats(vals []string) ([]float64, bool) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			out[i] = math.NaN()
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		out[i] = x
	}
	return out, true
}

// WriteCSV encodes f with a header row. Null floats are written as empty cells.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.names); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, len(f.names))
	for i := 0; i < f.rows; i++ {
		for j, name := range f.names {
			c := f.cols[name]
			if c.kind == String {
				rec[j] = c.strings[i]
				continue
			}
			v := c.floats[i]
			if math.IsNaN(v) {
				rec[j] = ""
				continue
			}
			rec[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadCSV reads a CSV file from disk.
func LoadCSV(path string, opts CSVOptions) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", failure.ErrExternal, path, err)
	}
	defer file.Close()
	f, err := ReadCSV(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// SaveCSV writes f to path through a temporary file and rename, so a failed
// write never leaves a truncated table behind.
func SaveCSV(path string, f *Frame) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", failure.ErrExternal, dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", failure.ErrExternal, path, err)
	}
	defer os.Remove(tmp.Name())
	if err := WriteCSV(tmp, f); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %v", failure.ErrExternal, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", failure.ErrExternal, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: rename to %s: %v", failure.ErrExternal, path, err)
	}
	return nil
}
