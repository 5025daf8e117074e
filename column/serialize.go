package column

import (
	"encoding/binary"
	"io"

	"github.com/relfeat/engine/relerr"
)

// Persisted model layout (§6): little-endian on disk regardless of
// host byte order (§9 Open Question, resolved in DESIGN.md), floats are
// IEEE 754 double, integer codes are signed 32-bit, and the string file
// format is length-prefixed UTF-8, written sequentially.

// WriteFloats writes a Numerical/Timestamp column's raw data as
// little-endian float64, with an 8-byte row-count header.
func WriteFloats(w io.Writer, data []float64) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(data))); err != nil {
		return relerr.WrapResource(err)
	}
	if err := binary.Write(w, binary.LittleEndian, data); err != nil {
		return relerr.WrapResource(err)
	}
	return nil
}

// ReadFloats reads data written by WriteFloats.
func ReadFloats(r io.Reader) ([]float64, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, relerr.WrapResource(err)
	}
	out := make([]float64, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, relerr.WrapResource(err)
	}
	return out, nil
}

// WriteCodes writes a Categorical/JoinKey column's raw int32 codes.
func WriteCodes(w io.Writer, data []int32) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(data))); err != nil {
		return relerr.WrapResource(err)
	}
	if err := binary.Write(w, binary.LittleEndian, data); err != nil {
		return relerr.WrapResource(err)
	}
	return nil
}

// ReadCodes reads data written by WriteCodes.
func ReadCodes(r io.Reader) ([]int32, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, relerr.WrapResource(err)
	}
	out := make([]int32, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, relerr.WrapResource(err)
	}
	return out, nil
}

// WriteStrings writes a sequence of strings length-prefixed (uint32,
// little-endian) followed by raw UTF-8 bytes, preceded by an 8-byte
// count header. Used both for Text columns and for Dictionary.Snapshot.
func WriteStrings(w io.Writer, values []string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(values))); err != nil {
		return relerr.WrapResource(err)
	}
	for _, s := range values {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
			return relerr.WrapResource(err)
		}
		if _, err := io.WriteString(w, s); err != nil {
			return relerr.WrapResource(err)
		}
	}
	return nil
}

// ReadStrings reads a sequence written by WriteStrings.
func ReadStrings(r io.Reader) ([]string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, relerr.WrapResource(err)
	}
	out := make([]string, n)
	for i := range out {
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, relerr.WrapResource(err)
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, relerr.WrapResource(err)
		}
		out[i] = string(buf)
	}
	return out, nil
}
