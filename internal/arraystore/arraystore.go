// Package arraystore persists kernel.Field arrays to disk, addressed by a
// handle string the relational grid_snapshots catalog row points at (spec
// §3, §6). Grounded on the teacher's internal/store/raw_payloads.go: the
// same gzip-compression idiom, but laid out as a file tree keyed by
// (init_time, variable, lead_hour) instead of a single BLOB column, since
// array payloads are read far less often than relational rows and don't
// need to participate in sqlite transactions.
package arraystore

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/synopticspread/core/internal/kernel"
)

// ErrNotFound is returned when a handle has no corresponding object on disk.
var ErrNotFound = errors.New("arraystore: object not found")

// Store is a filesystem-backed array object store rooted at Root. Layout:
//
//	{root}/divergence/{YYYYMMDDHH}/{variable}/fhr{NNN}.bin.gz
type Store struct {
	Root string
}

func New(root string) *Store {
	return &Store{Root: root}
}

// handlePath returns the absolute filesystem path for a handle, and Put's
// relative handle string for the same triple.
func handlePath(root string, initTime time.Time, variable string, leadHour int) (abs, handle string) {
	rel := filepath.Join("divergence", initTime.UTC().Format("2006010215"), variable, fmt.Sprintf("fhr%03d.bin.gz", leadHour))
	return filepath.Join(root, rel), rel
}

// Put serializes and gzip-compresses a Field and writes it under the
// (init_time, variable, lead_hour) path, returning the handle the caller
// should persist in a GridSnapshot row.
func (s *Store) Put(initTime time.Time, variable string, leadHour int, field *kernel.Field) (string, error) {
	abs, handle := handlePath(s.Root, initTime, variable, leadHour)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("mkdir for %s: %w", handle, err)
	}

	encoded, err := encodeField(field)
	if err != nil {
		return "", fmt.Errorf("encode field for %s: %w", handle, err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(encoded); err != nil {
		return "", fmt.Errorf("compress %s: %w", handle, err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("close gzip for %s: %w", handle, err)
	}

	if err := os.WriteFile(abs, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", handle, err)
	}
	return handle, nil
}

// Get reads and decodes the Field stored at handle.
func (s *Store) Get(handle string) (*kernel.Field, error) {
	abs := filepath.Join(s.Root, handle)
	compressed, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", handle, err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip reader for %s: %w", handle, err)
	}
	defer gz.Close()

	var raw bytes.Buffer
	if _, err := raw.ReadFrom(gz); err != nil {
		return nil, fmt.Errorf("decompress %s: %w", handle, err)
	}

	return decodeField(raw.Bytes())
}

// DropTree removes every object under one init_time's directory.
func (s *Store) DropTree(initTime time.Time) error {
	dir := filepath.Join(s.Root, "divergence", initTime.UTC().Format("2006010215"))
	return os.RemoveAll(dir)
}

// encodeField/decodeField use a big-endian fixed-width layout: the Shape tag
// byte, rows and cols as uint32, then the full LatAxis and LonAxis (Regular)
// or the Lat2D and Lon2D grids (Projected), then Values row by row. Unlike
// fetcher's grib.go layout, Regular axes are stored in full rather than as
// start/step pairs.
func encodeField(f *kernel.Field) ([]byte, error) {
	rows, cols := f.Dims()
	var buf bytes.Buffer

	buf.WriteByte(byte(f.Shape))
	writeUint32(&buf, uint32(rows))
	writeUint32(&buf, uint32(cols))

	switch f.Shape {
	case kernel.Regular:
		if len(f.LatAxis) != rows || len(f.LonAxis) != cols {
			return nil, fmt.Errorf("regular field axis/value shape mismatch")
		}
		writeFloat64Slice(&buf, f.LatAxis)
		writeFloat64Slice(&buf, f.LonAxis)
	case kernel.Projected:
		writeFloat64Grid(&buf, f.Lat2D)
		writeFloat64Grid(&buf, f.Lon2D)
	default:
		return nil, kernel.ErrInvalidGrid
	}
	writeFloat64Grid(&buf, f.Values)

	return buf.Bytes(), nil
}

func decodeField(data []byte) (*kernel.Field, error) {
	if len(data) < 9 {
		return nil, fmt.Errorf("arraystore: encoded field too short")
	}
	shape := kernel.Shape(data[0])
	rows := int(binary.BigEndian.Uint32(data[1:5]))
	cols := int(binary.BigEndian.Uint32(data[5:9]))
	off := 9

	switch shape {
	case kernel.Regular:
		latAxis, off2, err := readFloat64Slice(data, off, rows)
		if err != nil {
			return nil, err
		}
		off = off2
		lonAxis, off3, err := readFloat64Slice(data, off, cols)
		if err != nil {
			return nil, err
		}
		off = off3
		values, _, err := readFloat64Grid(data, off, rows, cols)
		if err != nil {
			return nil, err
		}
		return kernel.NewRegular(latAxis, lonAxis, values), nil

	case kernel.Projected:
		lat2d, off2, err := readFloat64Grid(data, off, rows, cols)
		if err != nil {
			return nil, err
		}
		off = off2
		lon2d, off3, err := readFloat64Grid(data, off, rows, cols)
		if err != nil {
			return nil, err
		}
		off = off3
		values, _, err := readFloat64Grid(data, off, rows, cols)
		if err != nil {
			return nil, err
		}
		return kernel.NewProjected(lat2d, lon2d, values), nil

	default:
		return nil, kernel.ErrInvalidGrid
	}
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeFloat64Slice(buf *bytes.Buffer, vs []float64) {
	for _, v := range vs {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	}
}

func writeFloat64Grid(buf *bytes.Buffer, grid [][]float64) {
	for _, row := range grid {
		writeFloat64Slice(buf, row)
	}
}

func readFloat64Slice(data []byte, off, n int) ([]float64, int, error) {
	need := off + n*8
	if len(data) < need {
		return nil, 0, fmt.Errorf("arraystore: short read for %d-length axis", n)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.BigEndian.Uint64(data[off : off+8]))
		off += 8
	}
	return out, off, nil
}

func readFloat64Grid(data []byte, off, rows, cols int) ([][]float64, int, error) {
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row, newOff, err := readFloat64Slice(data, off, cols)
		if err != nil {
			return nil, 0, err
		}
		out[i] = row
		off = newOff
	}
	return out, off, nil
}
