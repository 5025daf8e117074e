// Package encoding implements the bidirectional string<->int32 codec
// (C2) shared across categorical and join-key columns. A Dictionary is
// append-only and monotonic: once a string is assigned a code, that
// code is stable for the lifetime of the process/model.
package encoding

import (
	"sync"

	"github.com/mitchellh/hashstructure"
)

// Null is the sentinel code for "no value" / "unseen at transform".
const Null int32 = -1

// Dictionary is a bidirectional string<->int32 map. Codes 0..n-1 are
// densely assigned in intern order. Safe for concurrent use: interning
// is the only mutating operation and is guarded by a mutex, while
// decode/lookup take a read lock.
type Dictionary struct {
	mu      sync.RWMutex
	toCode  map[string]int32
	toValue []string
}

// New creates an empty dictionary.
func New() *Dictionary {
	return &Dictionary{toCode: make(map[string]int32)}
}

// Intern returns the code for s, assigning a new dense code if s has
// not been seen before. O(1) amortized.
func (d *Dictionary) Intern(s string) int32 {
	d.mu.RLock()
	if code, ok := d.toCode[s]; ok {
		d.mu.RUnlock()
		return code
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if code, ok := d.toCode[s]; ok {
		return code
	}
	code := int32(len(d.toValue))
	d.toValue = append(d.toValue, s)
	d.toCode[s] = code
	return code
}

// Lookup returns the code for s without assigning one if it doesn't
// exist yet. Used at transform time: unseen strings decode to Null.
func (d *Dictionary) Lookup(s string) (int32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	code, ok := d.toCode[s]
	return code, ok
}

// Decode returns the string for code, or "" and false if code is Null
// or out of range.
func (d *Dictionary) Decode(code int32) (string, bool) {
	if code < 0 {
		return "", false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(code) >= len(d.toValue) {
		return "", false
	}
	return d.toValue[code], true
}

// Len returns the number of distinct strings interned so far.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.toValue)
}

// Merge appends every string in other not already present in d,
// returning a remap table from other's codes to d's codes. Existing
// codes in d are never altered, preserving the "stable for the
// lifetime of the model" invariant for anyone already holding d's codes.
func (d *Dictionary) Merge(other *Dictionary) []int32 {
	other.mu.RLock()
	values := make([]string, len(other.toValue))
	copy(values, other.toValue)
	other.mu.RUnlock()

	remap := make([]int32, len(values))
	for i, s := range values {
		remap[i] = d.Intern(s)
	}
	return remap
}

// Hash fingerprints the dictionary's current contents, used to tag a
// fitted model's encodings in the persisted manifest so a transform
// call can detect an encoding mismatch without comparing every string.
func (d *Dictionary) Hash() (uint64, error) {
	d.mu.RLock()
	snapshot := make([]string, len(d.toValue))
	copy(snapshot, d.toValue)
	d.mu.RUnlock()
	return hashstructure.Hash(snapshot, nil)
}

// Snapshot returns an immutable copy of the dictionary's values in code
// order, suitable for serialization (see column.SaveDictionary).
func (d *Dictionary) Snapshot() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.toValue))
	copy(out, d.toValue)
	return out
}

// FromSnapshot rebuilds a Dictionary from a code-ordered value list, as
// produced by Snapshot, used when loading a persisted model.
func FromSnapshot(values []string) *Dictionary {
	d := &Dictionary{
		toCode:  make(map[string]int32, len(values)),
		toValue: make([]string, len(values)),
	}
	copy(d.toValue, values)
	for i, s := range values {
		d.toCode[s] = int32(i)
	}
	return d
}
