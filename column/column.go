package column

// Col is a named, typed, contiguous sequence of values. T is one of the
// three on-disk representations (float64, int32, string). Columns are
// immutable after construction — "mutation" always means constructing a
// new column and swapping it into a Frame, never touching Data() of an
// existing one in place.
type Col[T any] struct {
	name     string
	unit     string
	subroles map[Subrole]struct{}
	kind     Kind
	data     []T
}

// New constructs a column by copying data. The copy is deliberate: the
// caller's backing slice may be reused or mutated afterward, and a
// published column must never change under a reader.
func New[T any](name string, kind Kind, data []T) *Col[T] {
	cp := make([]T, len(data))
	copy(cp, data)
	return &Col[T]{name: name, kind: kind, data: cp}
}

// Wrap constructs a column that takes ownership of data without
// copying — used by the mmap pool (pool.go) and by deserialization,
// where the slice is already exclusively owned by the new column.
func Wrap[T any](name string, kind Kind, data []T) *Col[T] {
	return &Col[T]{name: name, kind: kind, data: data}
}

func (c *Col[T]) Name() string { return c.name }
func (c *Col[T]) Kind() Kind   { return c.kind }
func (c *Col[T]) Unit() string { return c.unit }
func (c *Col[T]) Len() int     { return len(c.data) }

// Data returns the backing slice. Callers must not mutate it; there is
// no copy-on-write enforcement beyond this convention, matching the
// teacher corpus's general preference for explicit discipline over
// defensive copying on every read.
func (c *Col[T]) Data() []T { return c.data }

// At returns the value at row i.
func (c *Col[T]) At(i int) T { return c.data[i] }

// WithUnit returns a shallow copy of c tagged with unit. Used for
// same-units equality/difference split conditions (C7).
func (c *Col[T]) WithUnit(unit string) *Col[T] {
	cp := *c
	cp.unit = unit
	return &cp
}

// HasSubrole reports whether s is set on c.
func (c *Col[T]) HasSubrole(s Subrole) bool {
	_, ok := c.subroles[s]
	return ok
}

// WithSubrole returns a shallow copy of c with s added to its subrole set.
func (c *Col[T]) WithSubrole(s Subrole) *Col[T] {
	cp := *c
	cp.subroles = make(map[Subrole]struct{}, len(c.subroles)+1)
	for k := range c.subroles {
		cp.subroles[k] = struct{}{}
	}
	cp.subroles[s] = struct{}{}
	return &cp
}

// Float is a numerical or timestamp column.
type Float = Col[float64]

// Code is a categorical or join-key column.
type Code = Col[int32]

// String is a text column.
type String = Col[string]

// NewFloat is a convenience constructor for Numerical/Timestamp columns.
func NewFloat(name string, kind Kind, data []float64) *Float {
	return New(name, kind, data)
}

// NewCode is a convenience constructor for Categorical/JoinKey columns.
func NewCode(name string, kind Kind, data []int32) *Code {
	return New(name, kind, data)
}

// NewString is a convenience constructor for Text columns.
func NewString(name string, data []string) *String {
	return New(name, Text, data)
}
