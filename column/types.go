// Package column implements the columnar store (C1): typed, named,
// role-tagged columns and the Frame that groups them, plus the
// mmap/bolt-backed scratch pool used for large peripheral columns.
package column

import "math"

// Kind identifies the on-disk/in-memory representation of a column, one
// of the five kinds below: category code (Categorical and JoinKey, each
// with its own dictionary), numeric, encoded (unsplit) string,
// timestamp-as-seconds.
type Kind int

const (
	// Numerical columns store float64; the null sentinel is NaN.
	Numerical Kind = iota
	// Categorical columns store int32 codes from the shared category
	// encoding.Dictionary; the null sentinel is encoding.Null (-1).
	Categorical
	// JoinKey columns store int32 codes from the shared join-key
	// encoding.Dictionary; the null sentinel is encoding.Null (-1).
	JoinKey
	// Timestamp columns store float64 seconds since the Unix epoch; the
	// null sentinel is NaN.
	Timestamp
	// Text columns store raw, un-encoded strings (pre text-splitting).
	// There is no separate null marker: a null is stored as the empty
	// string, which the text splitter turns into no tokens.
	Text
)

func (k Kind) String() string {
	switch k {
	case Numerical:
		return "numerical"
	case Categorical:
		return "categorical"
	case JoinKey:
		return "join_key"
	case Timestamp:
		return "timestamp"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Role is the bucket a column currently sits in within a Frame. Role is
// not column-intrinsic — the same column may be re-roled by copying it
// into a different bucket.
type Role int

const (
	RoleJoinKey Role = iota
	RoleTimeStamp
	RoleCategorical
	RoleNumerical
	RoleTarget
	RoleText
	RoleUnused
)

func (r Role) String() string {
	switch r {
	case RoleJoinKey:
		return "join_key"
	case RoleTimeStamp:
		return "time_stamp"
	case RoleCategorical:
		return "categorical"
	case RoleNumerical:
		return "numerical"
	case RoleTarget:
		return "target"
	case RoleText:
		return "text"
	case RoleUnused:
		return "unused"
	default:
		return "unknown"
	}
}

// Subrole is a tag influencing preprocessing, e.g. "exclude_imputation"
// or "comparison_only". Subroles are a set, not a single value.
type Subrole string

const (
	// SubroleExcludeImputation marks a numerical column whose NaNs
	// should be left alone (not mean-imputed) — e.g. a column that is
	// itself the output of a subfeature, which has its own null policy.
	SubroleExcludeImputation Subrole = "exclude_imputation"
	// SubroleComparisonOnly marks a column usable only in same-units
	// comparisons, never standalone as a split candidate.
	SubroleComparisonOnly Subrole = "comparison_only"
)

// IsNullFloat reports whether v is the float64 null sentinel (NaN).
func IsNullFloat(v float64) bool { return math.IsNaN(v) }

// NullFloat is the float64 null sentinel.
func NullFloat() float64 { return math.NaN() }

// IsNullCode reports whether c is the int32 code null sentinel.
func IsNullCode(c int32) bool { return c < 0 }

// NullCode is the int32 null sentinel for categorical/join-key columns.
const NullCode int32 = -1
