package preprocess

import (
	"strconv"
	"strings"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/column/encoding"
)

// SynthesizeRowID encodes a surrogate row_id join-key column: one
// distinct code per row, via dict — used when a many-to-many join is
// declared with no key at all (§4.8 stage 3).
func SynthesizeRowID(n int, dict *encoding.Dictionary) *column.Code {
	codes := make([]int32, n)
	for i := 0; i < n; i++ {
		codes[i] = dict.Intern(strconv.Itoa(i))
	}
	return column.NewCode("row_id", column.JoinKey, codes)
}

// SynthesizeCompositeKey encodes a surrogate join-key column from the
// string concatenation of several component columns' decoded values
// (composite-key many-to-many joins, §4.8 stage 3). Components must all
// have the same length.
func SynthesizeCompositeKey(components []*column.Code, dicts []*encoding.Dictionary, out *encoding.Dictionary) *column.Code {
	if len(components) == 0 {
		return column.NewCode("composite_key", column.JoinKey, nil)
	}
	n := components[0].Len()
	codes := make([]int32, n)
	var sb strings.Builder
	for row := 0; row < n; row++ {
		sb.Reset()
		for i, c := range components {
			code := c.At(row)
			if column.IsNullCode(code) {
				sb.WriteString("\x00NULL\x00")
			} else if v, ok := dicts[i].Decode(code); ok {
				sb.WriteString(v)
			}
			sb.WriteByte('\x1f') // unit separator, avoids accidental collisions
		}
		codes[row] = out.Intern(sb.String())
	}
	return column.NewCode("composite_key", column.JoinKey, codes)
}
