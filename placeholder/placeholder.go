// Package placeholder implements Ph, the declarative schema of a
// relational data model: a tree of tables connected by typed joins.
// Self-joins are permitted via aliasing (Edge.Alias).
package placeholder

import "math"

// Relationship tags an edge, controlling whether matches are
// aggregated (many-to-many), collapsed to a single key lookup
// (one-to-one), or flattened into flat FastProp features without
// boosting (propositionalization).
type Relationship int

const (
	ManyToMany Relationship = iota
	OneToOne
	Propositionalization
)

func (r Relationship) String() string {
	switch r {
	case ManyToMany:
		return "many_to_many"
	case OneToOne:
		return "one_to_one"
	case Propositionalization:
		return "propositionalization"
	default:
		return "unknown"
	}
}

// NoMemory indicates an edge has no memory bound — every peripheral row
// back to the beginning of time is eligible, subject only to the
// lower/upper timestamp window.
const NoMemory = math.MaxFloat64

// Edge describes one outgoing join from a Placeholder to a child table.
type Edge struct {
	// LeftKeyCol/RightKeyCol name the join-key columns on the parent
	// (left) and child (right) tables.
	LeftKeyCol  string
	RightKeyCol string

	// LeftTimeStampCol is the parent's reference timestamp column, or
	// "" if this edge has no temporal window (a pure key-equality join).
	LeftTimeStampCol string
	// RightLowerTimeStampCol/RightUpperTimeStampCol bound the child
	// row's validity window. RightUpperTimeStampCol may be "" — when
	// absent, the upper bound is synthesized as lower + Memory (C4).
	RightLowerTimeStampCol string
	RightUpperTimeStampCol string

	// Horizon shifts the parent's reference timestamp forward before
	// matching: Matchmaker.Make queries the time-window index at
	// ts+horizon.
	Horizon float64
	// Memory bounds how far back a peripheral row may lie: rows with
	// lower_ts + Memory < t are pruned. NoMemory disables the bound.
	Memory float64

	Relationship Relationship
	// AllowLaggedTargets permits the child table's own target columns
	// to be used as feature inputs (only sound when Horizon keeps the
	// child strictly in the parent's past).
	AllowLaggedTargets bool

	// Alias names this edge distinctly from its Child.Table when the
	// same table joins to itself (or appears more than once) in the
	// schema, so two edges to the same underlying table don't collide
	// in join/time-window index caches keyed by table name.
	Alias string

	// Child is the nested schema for the joined table. Child.Table is
	// the underlying table name; Alias (if set) is how this edge's
	// joined rows are addressed from the parent.
	Child *Placeholder
}

// Name returns the Alias if set, else the child table's own name —
// the identifier other components should use to key caches for rows
// reached through this edge.
func (e *Edge) Name() string {
	if e.Alias != "" {
		return e.Alias
	}
	if e.Child != nil {
		return e.Child.Table
	}
	return ""
}

// Placeholder is one node of the relational schema tree: a table name,
// its declared target columns (empty for peripheral tables that are
// never themselves a prediction target), and its outgoing joins.
type Placeholder struct {
	Table   string
	Targets []string
	Joins   []Edge
}

// New creates a placeholder for table with no joins yet; use AddJoin to
// attach children.
func New(table string, targets ...string) *Placeholder {
	return &Placeholder{Table: table, Targets: targets}
}

// AddJoin attaches an outgoing edge and returns p for chaining.
func (p *Placeholder) AddJoin(edge Edge) *Placeholder {
	p.Joins = append(p.Joins, edge)
	return p
}

// PropositionalizationJoins returns the subset of p's joins tagged for
// flat FastProp feature emission rather than boosted subfeature
// recursion (§4.9).
func (p *Placeholder) PropositionalizationJoins() []Edge {
	var out []Edge
	for _, e := range p.Joins {
		if e.Relationship == Propositionalization {
			out = append(out, e)
		}
	}
	return out
}

// Walk visits p and every descendant placeholder depth-first, calling
// visit(alias, node) for each. alias is "" for the root.
func (p *Placeholder) Walk(visit func(alias string, node *Placeholder)) {
	p.walk("", visit)
}

func (p *Placeholder) walk(alias string, visit func(string, *Placeholder)) {
	visit(alias, p)
	for _, e := range p.Joins {
		if e.Child != nil {
			e.Child.walk(e.Name(), visit)
		}
	}
}
