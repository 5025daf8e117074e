package column

import (
	"sort"

	"github.com/relfeat/engine/relerr"
)

// AnyColumn is the role-agnostic view of a Col[T], used when a Frame
// needs to hold columns of more than one underlying type in one bucket
// (e.g. iterating "every column" for persistence).
type AnyColumn interface {
	Name() string
	Kind() Kind
	Unit() string
	Len() int
}

// Frame is a named collection of columns partitioned into the six role
// buckets (plus "unused"). Role is not column-intrinsic: the same
// column may be re-roled in place by calling Reroute.
type Frame struct {
	name    string
	columns map[string]interface{} // name -> *Col[float64] | *Col[int32] | *Col[string]
	roles   map[string]Role
	length  int
}

// NewFrame creates an empty frame. Columns are added with Add*.
func NewFrame(name string) *Frame {
	return &Frame{
		name:    name,
		columns: make(map[string]interface{}),
		roles:   make(map[string]Role),
	}
}

func (f *Frame) Name() string { return f.name }

// NumRows returns the shared row count of every column in the frame
// (the invariant: all columns in one frame share length).
func (f *Frame) NumRows() int { return f.length }

func (f *Frame) checkLength(n int) error {
	if len(f.columns) == 0 {
		return nil
	}
	if n != f.length {
		return relerr.Validation("column length %d does not match frame %q length %d", n, f.name, f.length)
	}
	return nil
}

// AddFloat adds a Numerical or Timestamp column under the given role.
func (f *Frame) AddFloat(role Role, col *Float) error {
	if err := f.checkLength(col.Len()); err != nil {
		return err
	}
	if len(f.columns) == 0 {
		f.length = col.Len()
	}
	f.columns[col.Name()] = col
	f.roles[col.Name()] = role
	return nil
}

// AddCode adds a Categorical or JoinKey column under the given role.
func (f *Frame) AddCode(role Role, col *Code) error {
	if err := f.checkLength(col.Len()); err != nil {
		return err
	}
	if len(f.columns) == 0 {
		f.length = col.Len()
	}
	f.columns[col.Name()] = col
	f.roles[col.Name()] = role
	return nil
}

// AddString adds a Text column. Role is always RoleText or RoleUnused.
func (f *Frame) AddString(role Role, col *String) error {
	if err := f.checkLength(col.Len()); err != nil {
		return err
	}
	if len(f.columns) == 0 {
		f.length = col.Len()
	}
	f.columns[col.Name()] = col
	f.roles[col.Name()] = role
	return nil
}

// Remove drops a column from the frame entirely (used when the text
// splitter consumes a text column and the imputer needs to replace a
// numerical one).
func (f *Frame) Remove(name string) {
	delete(f.columns, name)
	delete(f.roles, name)
}

// Reroute assigns role to the column name in place. It returns a
// validation error if the frame has no such column.
func (f *Frame) Reroute(name string, role Role) error {
	if _, ok := f.columns[name]; !ok {
		return relerr.Validation("frame %q has no column %q to reroute", f.name, name)
	}
	f.roles[name] = role
	return nil
}

// RoleOf returns the Role currently assigned to name, and whether the
// column exists at all.
func (f *Frame) RoleOf(name string) (Role, bool) {
	r, ok := f.roles[name]
	return r, ok
}

// namesWithRole returns column names with the given role, sorted for
// deterministic iteration order (the splitter's tie-break, C7, depends
// on a stable column ordering).
func (f *Frame) namesWithRole(role Role) []string {
	var names []string
	for name, r := range f.roles {
		if r == role {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (f *Frame) Float(name string) (*Float, bool) {
	v, ok := f.columns[name]
	if !ok {
		return nil, false
	}
	c, ok := v.(*Float)
	return c, ok
}

func (f *Frame) Code(name string) (*Code, bool) {
	v, ok := f.columns[name]
	if !ok {
		return nil, false
	}
	c, ok := v.(*Code)
	return c, ok
}

func (f *Frame) String(name string) (*String, bool) {
	v, ok := f.columns[name]
	if !ok {
		return nil, false
	}
	c, ok := v.(*String)
	return c, ok
}

// JoinKeys returns every join-key column, name-sorted.
func (f *Frame) JoinKeys() []*Code {
	var out []*Code
	for _, name := range f.namesWithRole(RoleJoinKey) {
		c, _ := f.Code(name)
		out = append(out, c)
	}
	return out
}

// TimeStamps returns every time-stamp column, name-sorted.
func (f *Frame) TimeStamps() []*Float {
	var out []*Float
	for _, name := range f.namesWithRole(RoleTimeStamp) {
		c, _ := f.Float(name)
		out = append(out, c)
	}
	return out
}

// Categoricals returns every categorical column, name-sorted.
func (f *Frame) Categoricals() []*Code {
	var out []*Code
	for _, name := range f.namesWithRole(RoleCategorical) {
		c, _ := f.Code(name)
		out = append(out, c)
	}
	return out
}

// Numericals returns every numerical column, name-sorted.
func (f *Frame) Numericals() []*Float {
	var out []*Float
	for _, name := range f.namesWithRole(RoleNumerical) {
		c, _ := f.Float(name)
		out = append(out, c)
	}
	return out
}

// Targets returns every target column, name-sorted.
func (f *Frame) Targets() []*Float {
	var out []*Float
	for _, name := range f.namesWithRole(RoleTarget) {
		c, _ := f.Float(name)
		out = append(out, c)
	}
	return out
}

// Text returns every text column, name-sorted.
func (f *Frame) Text() []*String {
	var out []*String
	for _, name := range f.namesWithRole(RoleText) {
		c, _ := f.String(name)
		out = append(out, c)
	}
	return out
}

// All returns every column in the frame regardless of role, name-sorted,
// as the role-agnostic AnyColumn view (used by persistence).
func (f *Frame) All() []AnyColumn {
	var names []string
	for name := range f.columns {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]AnyColumn, 0, len(names))
	for _, name := range names {
		switch c := f.columns[name].(type) {
		case *Float:
			out = append(out, c)
		case *Code:
			out = append(out, c)
		case *String:
			out = append(out, c)
		}
	}
	return out
}

// Freeze returns a shallow copy of f. Because columns are themselves
// immutable after construction, a shallow copy is a full value-semantic
// snapshot: further Add/Remove/Reroute calls on the original no longer
// affect the frozen copy. Used when an Ensemble stores the population
// schema it was fit against (E's "frozen schema snapshots").
func (f *Frame) Freeze() *Frame {
	cp := &Frame{
		name:    f.name,
		length:  f.length,
		columns: make(map[string]interface{}, len(f.columns)),
		roles:   make(map[string]Role, len(f.roles)),
	}
	for k, v := range f.columns {
		cp.columns[k] = v
	}
	for k, v := range f.roles {
		cp.roles[k] = v
	}
	return cp
}
