package project

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/column/encoding"
	"github.com/relfeat/engine/relerr"
)

// ColumnSpec declares how DataFrame.FromCSV should interpret one CSV
// column: its kind (for Categorical/JoinKey, the kind also picks the
// dictionary to intern through), role and unit.
type ColumnSpec struct {
	Name string
	Kind column.Kind
	Role column.Role
	Unit string
}

// DataFrame wraps a column.Frame with the lifecycle operations spec §6
// names under DataFrame: from_csv, append, concat, freeze, save, load.
// The I/O-heavy siblings (from_db, from_arrow, from_query, from_view)
// are external collaborators and are not implemented here.
type DataFrame struct {
	mu    sync.RWMutex
	frame *column.Frame
}

// NewDataFrame wraps an already-built frame.
func NewDataFrame(frame *column.Frame) *DataFrame {
	return &DataFrame{frame: frame}
}

// Frame returns the underlying column.Frame. Callers must not mutate
// columns in place; Frame() is for read access (matching, aggregation).
func (df *DataFrame) Frame() *column.Frame {
	df.mu.RLock()
	defer df.mu.RUnlock()
	return df.frame
}

// FromCSV reads a CSV file at path into a new DataFrame per spec,
// interning Categorical/JoinKey columns through the Container's shared
// dictionaries as it goes. The header row is required and must name
// every column in cols.
func FromCSV(path string, name string, cols []ColumnSpec, categorical, joinKeys *encoding.Dictionary) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, relerr.WrapResource(errors.Wrap(err, "opening csv"))
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, relerr.Validation("reading csv header: %s", err)
	}
	colIndex := make(map[string]int, len(header))
	for i, h := range header {
		colIndex[h] = i
	}
	for _, c := range cols {
		if _, ok := colIndex[c.Name]; !ok {
			return nil, relerr.Validation("csv %q has no column %q declared in schema", path, c.Name)
		}
	}

	floatData := make(map[string][]float64, len(cols))
	codeData := make(map[string][]int32, len(cols))
	stringData := make(map[string][]string, len(cols))

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, relerr.Validation("reading csv row: %s", err)
		}
		for _, c := range cols {
			raw := row[colIndex[c.Name]]
			switch c.Kind {
			case column.Numerical, column.Timestamp:
				if raw == "" {
					floatData[c.Name] = append(floatData[c.Name], column.NullFloat())
					continue
				}
				v, err := cast.ToFloat64E(raw)
				if err != nil {
					return nil, relerr.Validation("column %q: %q is not numeric", c.Name, raw)
				}
				floatData[c.Name] = append(floatData[c.Name], v)
			case column.Categorical:
				if raw == "" {
					codeData[c.Name] = append(codeData[c.Name], encoding.Null)
					continue
				}
				codeData[c.Name] = append(codeData[c.Name], categorical.Intern(raw))
			case column.JoinKey:
				if raw == "" {
					codeData[c.Name] = append(codeData[c.Name], encoding.Null)
					continue
				}
				codeData[c.Name] = append(codeData[c.Name], joinKeys.Intern(raw))
			case column.Text:
				stringData[c.Name] = append(stringData[c.Name], raw)
			}
		}
	}

	frame := column.NewFrame(name)
	for _, c := range cols {
		switch c.Kind {
		case column.Numerical, column.Timestamp:
			col := column.NewFloat(c.Name, c.Kind, floatData[c.Name]).WithUnit(c.Unit)
			if err := frame.AddFloat(c.Role, col); err != nil {
				return nil, err
			}
		case column.Categorical, column.JoinKey:
			col := column.NewCode(c.Name, c.Kind, codeData[c.Name])
			if err := frame.AddCode(c.Role, col); err != nil {
				return nil, err
			}
		case column.Text:
			col := column.NewString(c.Name, stringData[c.Name])
			if err := frame.AddString(c.Role, col); err != nil {
				return nil, err
			}
		}
	}
	return &DataFrame{frame: frame}, nil
}

// Append adds other's rows to df in place, returning an error if the
// two frames' columns don't match (name, kind and role for every
// column must agree).
func (df *DataFrame) Append(other *DataFrame) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	merged, err := concatFrames(df.frame, other.frame)
	if err != nil {
		return err
	}
	df.frame = merged
	return nil
}

// Concat returns a new DataFrame holding df's rows followed by every
// frame in others, in order. df and others are left unmodified.
func (df *DataFrame) Concat(others ...*DataFrame) (*DataFrame, error) {
	df.mu.RLock()
	merged := df.frame
	df.mu.RUnlock()

	for _, o := range others {
		o.mu.RLock()
		next, err := concatFrames(merged, o.frame)
		o.mu.RUnlock()
		if err != nil {
			return nil, err
		}
		merged = next
	}
	return &DataFrame{frame: merged}, nil
}

func concatFrames(a, b *column.Frame) (*column.Frame, error) {
	if a.NumRows() == 0 {
		return b.Freeze(), nil
	}
	if b.NumRows() == 0 {
		return a.Freeze(), nil
	}

	aCols, bCols := a.All(), b.All()
	if len(aCols) != len(bCols) {
		return nil, relerr.Validation("cannot concat frames with different column sets (%d vs %d columns)", len(aCols), len(bCols))
	}

	out := column.NewFrame(a.Name())
	for _, ac := range aCols {
		role, _ := a.RoleOf(ac.Name())
		switch ac.Kind() {
		case column.Numerical, column.Timestamp:
			bc, ok := b.Float(ac.Name())
			if !ok {
				return nil, relerr.Validation("frame %q is missing numerical column %q", b.Name(), ac.Name())
			}
			fc, _ := a.Float(ac.Name())
			merged := append(append([]float64{}, fc.Data()...), bc.Data()...)
			if err := out.AddFloat(role, column.NewFloat(ac.Name(), ac.Kind(), merged).WithUnit(fc.Unit())); err != nil {
				return nil, err
			}
		case column.Categorical, column.JoinKey:
			bc, ok := b.Code(ac.Name())
			if !ok {
				return nil, relerr.Validation("frame %q is missing categorical column %q", b.Name(), ac.Name())
			}
			cc, _ := a.Code(ac.Name())
			merged := append(append([]int32{}, cc.Data()...), bc.Data()...)
			if err := out.AddCode(role, column.NewCode(ac.Name(), ac.Kind(), merged)); err != nil {
				return nil, err
			}
		case column.Text:
			bc, ok := b.String(ac.Name())
			if !ok {
				return nil, relerr.Validation("frame %q is missing text column %q", b.Name(), ac.Name())
			}
			sc, _ := a.String(ac.Name())
			merged := append(append([]string{}, sc.Data()...), bc.Data()...)
			if err := out.AddString(role, column.NewString(ac.Name(), merged)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Freeze returns a snapshotted DataFrame sharing column storage with df
// — further Append calls on df do not affect the snapshot.
func (df *DataFrame) Freeze() *DataFrame {
	df.mu.RLock()
	defer df.mu.RUnlock()
	return &DataFrame{frame: df.frame.Freeze()}
}

type columnManifestEntry struct {
	Name string
	Kind int
	Role int
	Unit string
}

type frameManifest struct {
	Name    string
	NumRows int
	Columns []columnManifestEntry
}

// Save writes df to dir (one binary file per column plus a manifest),
// per spec §6's persisted layout.
func (df *DataFrame) Save(dir string) error {
	df.mu.RLock()
	defer df.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return relerr.WrapResource(errors.Wrap(err, "creating data frame directory"))
	}

	manifest := frameManifest{Name: df.frame.Name(), NumRows: df.frame.NumRows()}
	for _, c := range df.frame.All() {
		role, _ := df.frame.RoleOf(c.Name())
		manifest.Columns = append(manifest.Columns, columnManifestEntry{
			Name: c.Name(), Kind: int(c.Kind()), Role: int(role), Unit: c.Unit(),
		})

		path := filepath.Join(dir, c.Name()+columnExtension(c.Kind()))
		w, err := os.Create(path)
		if err != nil {
			return relerr.WrapResource(errors.Wrap(err, "creating column file"))
		}
		var writeErr error
		switch c.Kind() {
		case column.Numerical, column.Timestamp:
			fc, _ := df.frame.Float(c.Name())
			writeErr = column.WriteFloats(w, fc.Data())
		case column.Categorical, column.JoinKey:
			cc, _ := df.frame.Code(c.Name())
			writeErr = column.WriteCodes(w, cc.Data())
		case column.Text:
			sc, _ := df.frame.String(c.Name())
			writeErr = column.WriteStrings(w, sc.Data())
		}
		closeErr := w.Close()
		if writeErr != nil {
			return writeErr
		}
		if closeErr != nil {
			return relerr.WrapResource(closeErr)
		}
	}

	manifestPath := filepath.Join(dir, "manifest.msgpack")
	data, err := msgpack.Marshal(manifest)
	if err != nil {
		return relerr.Internal("encoding data frame manifest: %s", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return relerr.WrapResource(errors.Wrap(err, "writing manifest"))
	}
	return nil
}

// Load reads a DataFrame previously written by Save.
func Load(dir string) (*DataFrame, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.msgpack"))
	if err != nil {
		return nil, relerr.WrapResource(errors.Wrap(err, "reading manifest"))
	}
	var manifest frameManifest
	if err := msgpack.Unmarshal(data, &manifest); err != nil {
		return nil, relerr.Internal("decoding data frame manifest: %s", err)
	}

	frame := column.NewFrame(manifest.Name)
	for _, entry := range manifest.Columns {
		kind := column.Kind(entry.Kind)
		role := column.Role(entry.Role)
		path := filepath.Join(dir, entry.Name+columnExtension(kind))
		f, err := os.Open(path)
		if err != nil {
			return nil, relerr.WrapResource(errors.Wrap(err, "opening column file"))
		}

		var addErr error
		switch kind {
		case column.Numerical, column.Timestamp:
			values, err := column.ReadFloats(f)
			if err == nil {
				addErr = frame.AddFloat(role, column.NewFloat(entry.Name, kind, values).WithUnit(entry.Unit))
			} else {
				addErr = err
			}
		case column.Categorical, column.JoinKey:
			values, err := column.ReadCodes(f)
			if err == nil {
				addErr = frame.AddCode(role, column.NewCode(entry.Name, kind, values))
			} else {
				addErr = err
			}
		case column.Text:
			values, err := column.ReadStrings(f)
			if err == nil {
				addErr = frame.AddString(role, column.NewString(entry.Name, values))
			} else {
				addErr = err
			}
		}
		_ = f.Close()
		if addErr != nil {
			return nil, addErr
		}
	}
	return &DataFrame{frame: frame}, nil
}

func columnExtension(k column.Kind) string {
	switch k {
	case column.Numerical, column.Timestamp:
		return ".f64"
	case column.Categorical, column.JoinKey:
		return ".i32"
	case column.Text:
		return ".str"
	default:
		return ".bin"
	}
}
