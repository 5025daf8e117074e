package project

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/relfeat/engine/aggregation"
	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/deploy"
	"github.com/relfeat/engine/ensemble"
	"github.com/relfeat/engine/fastprop"
	"github.com/relfeat/engine/index"
	"github.com/relfeat/engine/loss"
	"github.com/relfeat/engine/match"
	"github.com/relfeat/engine/placeholder"
	"github.com/relfeat/engine/relerr"
	"github.com/relfeat/engine/tree"
	"github.com/relfeat/engine/warn"
)

// Config bundles the hyperparameters one Pipeline is fit with.
type Config struct {
	Target              string
	Loss                loss.Loss
	FitConfig           ensemble.FitConfig
	Quantiles           []float64 // candidate-threshold grid, e.g. deciles
	MaxCategoricalCodes int       // cap on CategoricalSetMembershipCandidates pair generation
	MaxTextTokens       int
}

// DefaultConfig returns getML-compatible defaults for everything not
// specific to one fit.
func DefaultConfig(target string) Config {
	return Config{
		Target:              target,
		Loss:                loss.NewSquare(),
		FitConfig:           ensemble.FitConfig{NumTrees: 50, SamplingFactor: 1.0, Params: tree.DefaultParams(), RandSeed: 1},
		Quantiles:           []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
		MaxCategoricalCodes: 20,
		MaxTextTokens:       50,
	}
}

// Pipeline implements spec §6's Pipeline operations: fit, transform,
// check, column_importances, feature_importances, refresh, refresh_all,
// deploy, to_sql, save, load — adapted as Go methods on one struct
// rather than a remote-dispatch object, with the actual relational
// learning delegated to match/fastprop/tree/ensemble (C5, C9, C11).
type Pipeline struct {
	id   uuid.UUID
	name string
	cfg  Config

	mu       sync.RWMutex
	fitted   bool
	schema   *placeholder.Placeholder
	catalog  []fastprop.Feature // FastProp (propositionalization) feature catalog, for Deploy/ToSQL/feature_importances
	sources  []boostSource      // every placeholder the ensemble boosted over, fastprop + relational
	model    *ensemble.Ensemble
	warner   *warn.Warner
	log      *logrus.Entry

	lastSQL map[string]string // dialect -> last generated DDL, set by Deploy
}

// boostSource is one candidate root the boosting loop samples from: a
// FastProp-propositionalized flat feature (identity matches, single
// threshold candidate over itself) or a raw relational (edge, value
// column) pair (matches from the edge's Matchmaker, candidates drawn
// from every other column on the same child table).
type boostSource struct {
	label      string // used by feature_importances
	numPopRows int
	matches    func() []tree.RowMatches
	values     []float64
	candidates []tree.Candidate
	satisfies  ensemble.Satisfies

	// columnLabel resolves a Condition.ColumnIndex grown against this
	// source back to a human-readable "table.column" name, for
	// ColumnImportances. Mirrors the exact column ordering satisfies
	// was built against.
	columnLabel func(colIndex int) string
}

// NewPipeline creates an unfitted pipeline. name is the catalog key
// Container publishes it under.
func NewPipeline(name string, cfg Config, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	id, err := uuid.NewV4()
	if err != nil {
		// NewV4 only fails if crypto/rand is exhausted; fall back to the
		// nil UUID rather than panicking a fit that doesn't need ids for
		// anything but logging/catalog keys.
		id = uuid.UUID{}
	}
	return &Pipeline{
		id:   id,
		name: name,
		cfg:  cfg,
		log:  logrus.NewEntry(log).WithField("pipeline", name),
	}
}

func (p *Pipeline) ID() string { return p.id.String() }

// Fit implements Pipeline.fit: walks schema's direct joins, builds a
// Matchmaker per edge, routes Propositionalization edges through
// FastProp (flat, unboosted features) and ManyToMany/OneToOne edges
// through the relational tree booster, then fits one Ensemble over the
// union of both kinds of placeholder, per §4.9's "AVG and SUM are the
// only two aggregations crossing a propositionalization boundary linearly"
// — simplified here to the SUM-aggregated-leaf tree booster described in
// DESIGN.md's `tree`/`ensemble` entries, with the aggregation kinds
// fastprop.Kinds lists exercised at the flat-feature layer instead.
func (p *Pipeline) Fit(ctx context.Context, schema *placeholder.Placeholder, frames map[string]*DataFrame) (*warn.Warner, error) {
	rootFrame, ok := frames[schema.Table]
	if !ok {
		return nil, relerr.Validation("no data frame supplied for population table %q", schema.Table)
	}
	target, ok := rootFrame.Frame().Float(p.cfg.Target)
	if !ok {
		return nil, relerr.Validation("population frame %q has no target column %q", schema.Table, p.cfg.Target)
	}

	warner := warn.New(nil)
	allNull := true
	for _, v := range target.Data() {
		if !column.IsNullFloat(v) {
			allNull = false
			break
		}
	}
	if allNull {
		return nil, relerr.Plausibility("target column %q is all-null", p.cfg.Target)
	}

	sources, catalog, err := buildSources(schema, frames, p.cfg, warner)
	if err != nil {
		return nil, err
	}

	model := ensemble.New(p.cfg.Loss, p.log)
	build := func(round int, placeholderIdx int) ([]tree.RowMatches, []float64, []tree.Candidate, ensemble.Satisfies) {
		src := sources[placeholderIdx]
		return src.matches(), src.values, src.candidates, src.satisfies
	}
	model.Fit(ctx, target.Data(), len(sources), build, p.cfg.FitConfig)

	p.mu.Lock()
	p.fitted = true
	p.schema = schema
	p.catalog = catalog
	p.sources = sources
	p.model = model
	p.warner = warner
	p.mu.Unlock()

	return warner, nil
}

// buildSources walks schema's direct joins against frames and produces
// the full list of boostSources plus the FastProp catalog, shared by
// Fit and Transform so a refit and a later transform derive identical
// placeholder indexing from the same (schema, cfg) pair.
func buildSources(schema *placeholder.Placeholder, frames map[string]*DataFrame, cfg Config, warner *warn.Warner) ([]boostSource, []fastprop.Feature, error) {
	if err := materializeNestedAggregates(schema, frames); err != nil {
		return nil, nil, err
	}

	root, ok := frames[schema.Table]
	if !ok {
		return nil, nil, relerr.Validation("no data frame supplied for population table %q", schema.Table)
	}
	rootFrame := root.Frame()
	numPopRows := rootFrame.NumRows()

	var sources []boostSource
	var catalog []fastprop.Feature

	for _, edge := range schema.Joins {
		childDF, ok := frames[edge.Name()]
		if !ok {
			return nil, nil, relerr.Validation("no data frame supplied for joined table %q", edge.Name())
		}
		matcher, err := buildMatchmaker(rootFrame, childDF.Frame(), edge)
		if err != nil {
			return nil, nil, err
		}

		if edge.Relationship == placeholder.Propositionalization {
			srcCatalog, feats, err := fastpropSources(edge, childDF.Frame(), matcher, numPopRows)
			if err != nil {
				return nil, nil, err
			}
			sources = append(sources, srcCatalog...)
			catalog = append(catalog, feats...)
			continue
		}

		relSources, warnings := relationalSources(edge, childDF.Frame(), matcher, numPopRows, cfg)
		if warner != nil {
			for _, w := range warnings {
				warner.Record(w.Code, w.Message, w.Fields)
			}
		}
		sources = append(sources, relSources...)
	}

	if len(sources) == 0 {
		return nil, nil, relerr.Validation("schema for %q declares no joins to learn features from", schema.Table)
	}

	if warner != nil {
		for _, src := range sources {
			kern := aggregation.NewKernel(src.values, nil)
			kern.ActivateAll()
			if v, ok := kern.Eval(aggregation.Var); ok && v == 0 {
				warner.Record(warn.ZeroVariance, fmt.Sprintf("placeholder %q has zero variance", src.label), map[string]interface{}{"placeholder": src.label})
			}
		}
	}

	return sources, catalog, nil
}

// materializeNestedAggregates flattens a schema deeper than one level
// (a placeholder whose Joins themselves carry a Child with its own
// Joins, §4.9's snowflake-schema case) by recursing depth-first and
// SUM-aggregating each descendant table's numerical columns onto its
// immediate parent frame as ordinary numerical columns, bottom-up.
// buildSources's own join walk only ever looks one level deep (schema.Joins),
// so by the time it runs, every frame it touches already carries its
// grandchildren's contributions flattened in — a table three joins deep
// ends up folded into its grandparent through two rounds of this.
func materializeNestedAggregates(schema *placeholder.Placeholder, frames map[string]*DataFrame) error {
	for i := range schema.Joins {
		edge := &schema.Joins[i]
		if edge.Child == nil || len(edge.Child.Joins) == 0 {
			continue
		}
		if err := materializeNestedAggregates(edge.Child, frames); err != nil {
			return err
		}

		childDF, ok := frames[edge.Name()]
		if !ok {
			return relerr.Validation("no data frame supplied for joined table %q", edge.Name())
		}
		childFrame := childDF.Frame()
		numChildRows := childFrame.NumRows()

		for _, grandEdge := range edge.Child.Joins {
			grandDF, ok := frames[grandEdge.Name()]
			if !ok {
				return relerr.Validation("no data frame supplied for joined table %q", grandEdge.Name())
			}
			matcher, err := buildMatchmaker(childFrame, grandDF.Frame(), grandEdge)
			if err != nil {
				return err
			}
			grandNumericals := grandDF.Frame().Numericals()
			sums := make([][]float64, len(grandNumericals))
			for k := range sums {
				sums[k] = make([]float64, numChildRows)
			}
			for row := 0; row < numChildRows; row++ {
				m := matcher.Make(row)
				for k, col := range grandNumericals {
					var sum float64
					data := col.Data()
					for _, mm := range m {
						v := data[mm.IxInput]
						if !column.IsNullFloat(v) {
							sum += v
						}
					}
					sums[k][row] = sum
				}
				matcher.Release(m)
			}
			for k, col := range grandNumericals {
				name := grandEdge.Name() + "__" + col.Name() + "__sum"
				if err := childFrame.AddFloat(column.RoleNumerical, column.NewFloat(name, column.Numerical, sums[k])); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// buildMatchmaker constructs the index+matcher pair for one edge,
// choosing a plain key-only join or a temporal one depending on which
// timestamp columns the edge declares.
func buildMatchmaker(parent, child *column.Frame, edge placeholder.Edge) (*match.Matchmaker, error) {
	popKey, ok := parent.Code(edge.LeftKeyCol)
	if !ok {
		return nil, relerr.Validation("population frame has no join key column %q", edge.LeftKeyCol)
	}
	perKey, ok := child.Code(edge.RightKeyCol)
	if !ok {
		return nil, relerr.Validation("table %q has no join key column %q", edge.Name(), edge.RightKeyCol)
	}

	if edge.LeftTimeStampCol == "" {
		joinIdx := index.BuildJoinIndex(perKey)
		return match.NewKeyOnly(edge, popKey, joinIdx), nil
	}

	popTS, ok := parent.Float(edge.LeftTimeStampCol)
	if !ok {
		return nil, relerr.Validation("population frame has no time stamp column %q", edge.LeftTimeStampCol)
	}
	lower, ok := child.Float(edge.RightLowerTimeStampCol)
	if !ok {
		return nil, relerr.Validation("table %q has no lower time stamp column %q", edge.Name(), edge.RightLowerTimeStampCol)
	}
	var upper *column.Float
	if edge.RightUpperTimeStampCol != "" {
		upper, _ = child.Float(edge.RightUpperTimeStampCol)
	}
	twIdx := index.Build(perKey, lower, upper, edge.Memory)
	return match.NewTemporal(edge, popKey, popTS, twIdx), nil
}

// fastpropSources materializes the flat FastProp catalog for edge's
// numerical columns, then wraps each resulting feature column as its
// own single-candidate boostSource (identity matches, a NumericalThreshold
// split over the feature itself) so the same ensemble booster can mix
// propositionalized and raw relational placeholders in one fit.
func fastpropSources(edge placeholder.Edge, child *column.Frame, matcher *match.Matchmaker, numPopRows int) ([]boostSource, []fastprop.Feature, error) {
	var fsSources []fastprop.ColumnSource
	for _, col := range child.Numericals() {
		fsSources = append(fsSources, fastprop.ColumnSource{Table: edge.Name(), Column: col.Name(), Values: col.Data()})
	}
	if len(fsSources) == 0 {
		return nil, nil, nil
	}

	catalog := fastprop.Enumerate(fsSources)
	makeMatches := func(popRow int) []match.Match {
		m := matcher.Make(popRow)
		out := make([]match.Match, len(m))
		copy(out, m)
		matcher.Release(m)
		return out
	}
	materialized := fastprop.Materialize(catalog, fsSources, numPopRows, makeMatches)

	names := make([]string, 0, len(materialized))
	for n := range materialized {
		names = append(names, n)
	}
	sort.Strings(names)

	var out []boostSource
	for _, name := range names {
		values := materialized[name]
		col := column.NewFloat(name, column.Numerical, values)
		cands := tree.NumericalThresholdCandidates(0, col, []float64{0.5})
		if len(cands) == 0 {
			continue
		}
		identity := identityMatches(numPopRows)
		featureName := name
		out = append(out, boostSource{
			label:      name,
			numPopRows: numPopRows,
			matches:    func() []tree.RowMatches { return identity },
			values:     values,
			candidates: cands,
			satisfies: func(c *tree.Condition, row int) bool {
				v := values[row]
				return !column.IsNullFloat(v) && v > c.Threshold
			},
			columnLabel: func(int) string { return featureName },
		})
	}
	return out, catalog, nil
}

func identityMatches(n int) []tree.RowMatches {
	out := make([]tree.RowMatches, n)
	for i := range out {
		out[i] = tree.RowMatches{PopRow: i, Peripheral: []int{i}}
	}
	return out
}

// relationalSources builds one boostSource per numerical column of
// child, using that column as the SUM-aggregated leaf value and every
// other numerical/categorical column on the same table as split
// candidates (§4.6: the split search draws on the whole row, the leaf
// aggregate is fixed to one column). Same-units/timestamp-diff
// conditions (kinds 4-6) are not wired here: they require a live
// population-row value at predict time, which the ensemble.Satisfies
// signature (cond, peripheralRow) has no slot for — see DESIGN.md.
func relationalSources(edge placeholder.Edge, child *column.Frame, matcher *match.Matchmaker, numPopRows int, cfg Config) ([]boostSource, []warn.Warning) {
	numericals := child.Numericals()
	categoricals := child.Categoricals()
	if len(numericals) == 0 {
		return nil, nil
	}

	makeMatches := func() []tree.RowMatches {
		out := make([]tree.RowMatches, 0, numPopRows)
		for popRow := 0; popRow < numPopRows; popRow++ {
			m := matcher.Make(popRow)
			peripheral := make([]int, len(m))
			for i, mm := range m {
				peripheral[i] = int(mm.IxInput)
			}
			matcher.Release(m)
			out = append(out, tree.RowMatches{PopRow: popRow, Peripheral: peripheral})
		}
		return out
	}

	var out []boostSource
	var warnings []warn.Warning
	for i, valueCol := range numericals {
		var candidates []tree.Candidate
		colIndex := 0
		for _, cc := range categoricals {
			candidates = append(candidates, tree.CategoricalEqualityCandidates(colIndex, cc)...)
			candidates = append(candidates, tree.CategoricalSetMembershipCandidates(colIndex, cc, cfg.MaxCategoricalCodes)...)
			colIndex++
		}
		for j, other := range numericals {
			if j == i {
				continue
			}
			candidates = append(candidates, tree.NumericalThresholdCandidates(colIndex, other, cfg.Quantiles)...)
			colIndex++
		}
		if len(candidates) == 0 {
			warnings = append(warnings, warn.Warning{
				Code:    warn.ZeroVariance,
				Message: fmt.Sprintf("table %q column %q has no split candidates from sibling columns", edge.Name(), valueCol.Name()),
			})
			continue
		}

		values := valueCol.Data()
		skip := i
		out = append(out, boostSource{
			label:       fmt.Sprintf("%s.%s", edge.Name(), valueCol.Name()),
			numPopRows:  numPopRows,
			matches:     makeMatches,
			values:      values,
			candidates:  candidates,
			satisfies:   relationalSatisfies(categoricals, numericals, skip),
			columnLabel: relationalColumnLabel(edge, categoricals, numericals, skip),
		})
	}
	return out, warnings
}

// relationalSatisfies reconstructs, at Predict/Transform time, the
// Satisfies closure for a condition grown against the same column
// ordering relationalSources used: categoricals first (by index in
// order), then every numerical column except the one at skipIndex.
func relationalSatisfies(categoricals []*column.Code, numericals []*column.Float, skipIndex int) ensemble.Satisfies {
	return func(cond *tree.Condition, row int) bool {
		idx := cond.ColumnIndex
		if idx < len(categoricals) {
			cc := categoricals[idx]
			switch cond.Kind {
			case tree.CategoricalEquality:
				return cc.At(row) == cond.Category
			case tree.CategoricalSetMembership:
				v := cc.At(row)
				for _, c := range cond.Categories {
					if v == c {
						return true
					}
				}
				return false
			}
			return false
		}
		numIdx := idx - len(categoricals)
		// walk numericals skipping skipIndex the same way relationalSources did
		pos := 0
		for j, col := range numericals {
			if j == skipIndex {
				continue
			}
			if pos == numIdx {
				v := col.At(row)
				return !column.IsNullFloat(v) && v > cond.Threshold
			}
			pos++
		}
		return false
	}
}

// relationalColumnLabel mirrors relationalSatisfies' column-index
// ordering to resolve a Condition.ColumnIndex back to a "table.column"
// name for ColumnImportances.
func relationalColumnLabel(edge placeholder.Edge, categoricals []*column.Code, numericals []*column.Float, skipIndex int) func(int) string {
	return func(colIndex int) string {
		if colIndex < len(categoricals) {
			return fmt.Sprintf("%s.%s", edge.Name(), categoricals[colIndex].Name())
		}
		numIdx := colIndex - len(categoricals)
		pos := 0
		for j, col := range numericals {
			if j == skipIndex {
				continue
			}
			if pos == numIdx {
				return fmt.Sprintf("%s.%s", edge.Name(), col.Name())
			}
			pos++
		}
		return fmt.Sprintf("%s.col%d", edge.Name(), colIndex)
	}
}

// Transform implements Pipeline.transform: rebuilds the same placeholder
// sources Fit derived (against frames, which may carry new or updated
// data) and replays every boosted tree's contribution, keyed back to its
// source via Tree.PlaceholderIndex.
func (p *Pipeline) Transform(ctx context.Context, frames map[string]*DataFrame) ([]float64, error) {
	p.mu.RLock()
	if !p.fitted {
		p.mu.RUnlock()
		return nil, relerr.Validation("pipeline %q has not been fit", p.name)
	}
	schema, cfg, model := p.schema, p.cfg, p.model
	p.mu.RUnlock()

	sources, _, err := buildSources(schema, frames, cfg, nil)
	if err != nil {
		return nil, err
	}

	root, ok := frames[schema.Table]
	if !ok {
		return nil, relerr.Validation("no data frame supplied for population table %q", schema.Table)
	}
	numPopRows := root.Frame().NumRows()

	buildMatches := func(treeIdx int) ([]tree.RowMatches, []float64, ensemble.Satisfies) {
		src := sources[model.Trees[treeIdx].PlaceholderIndex]
		return src.matches(), src.values, src.satisfies
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return model.Transform(ctx, numPopRows, buildMatches), nil
}

// Check implements Pipeline.check: validates that frames satisfy schema
// (every declared join key/timestamp column present, at least one
// learnable placeholder) without fitting anything.
func (p *Pipeline) Check(schema *placeholder.Placeholder, frames map[string]*DataFrame) (*warn.Warner, error) {
	warner := warn.New(nil)
	if _, _, err := buildSources(schema, frames, p.cfg, warner); err != nil {
		return nil, err
	}
	return warner, nil
}

// Rehydrate rebuilds the in-memory placeholder sources against frames
// without fitting — required after Load, since sources (closures over
// live columns) are never persisted. Callers needing ColumnImportances
// or FeatureImportances on a pipeline restored from disk must call this
// first with frames shaped like the ones it was fit against.
func (p *Pipeline) Rehydrate(frames map[string]*DataFrame) error {
	p.mu.RLock()
	schema, cfg := p.schema, p.cfg
	p.mu.RUnlock()
	if schema == nil {
		return relerr.Validation("pipeline %q has no schema to rehydrate against", p.name)
	}

	sources, catalog, err := buildSources(schema, frames, cfg, nil)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.sources = sources
	if len(catalog) > 0 {
		p.catalog = catalog
	}
	p.mu.Unlock()
	return nil
}

// Refresh implements Pipeline.refresh: re-fits the pipeline's existing
// schema against updated frames.
func (p *Pipeline) Refresh(ctx context.Context, frames map[string]*DataFrame) (*warn.Warner, error) {
	p.mu.RLock()
	fitted, schema := p.fitted, p.schema
	p.mu.RUnlock()
	if !fitted {
		return nil, relerr.Validation("pipeline %q has not been fit yet", p.name)
	}
	return p.Fit(ctx, schema, frames)
}

// ColumnImportances implements Pipeline.column_importances: the
// update-rate-weighted split frequency of every raw column reached by a
// relational tree's conditions, summed across the whole ensemble. A
// simplified frequency-importance variant — Node carries no per-split
// gain, only a fitted leaf weight, so true gain-based importance is not
// reconstructable from a grown tree alone (see DESIGN.md).
func (p *Pipeline) ColumnImportances() (map[string]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.fitted {
		return nil, relerr.Validation("pipeline %q has not been fit", p.name)
	}
	out := make(map[string]float64)
	for _, t := range p.model.Trees {
		src := p.sources[t.PlaceholderIndex]
		if src.columnLabel == nil {
			continue
		}
		accumulateColumnImportance(t.Root, src.columnLabel, math.Abs(t.UpdateRate), out)
	}
	return out, nil
}

func accumulateColumnImportance(n *tree.Node, label func(int) string, weight float64, out map[string]float64) {
	if n.IsLeaf {
		return
	}
	out[label(n.Condition.ColumnIndex)] += weight
	accumulateColumnImportance(n.MatchSide, label, weight, out)
	accumulateColumnImportance(n.NoMatchSide, label, weight, out)
}

// FeatureImportances implements Pipeline.feature_importances: the
// update-rate-weighted contribution of every placeholder (FastProp
// feature or relational edge/column pair) across the trees grown from
// it.
func (p *Pipeline) FeatureImportances() (map[string]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.fitted {
		return nil, relerr.Validation("pipeline %q has not been fit", p.name)
	}
	out := make(map[string]float64)
	for _, t := range p.model.Trees {
		src := p.sources[t.PlaceholderIndex]
		out[src.label] += math.Abs(t.UpdateRate)
	}
	return out, nil
}

// ToSQL implements Pipeline.to_sql: renders the fitted FastProp feature
// catalog as one dialect's DDL. conditionSQL supplies, per joined table
// name, the SQL predicate for each NamedCondition label the catalog
// references (the condition's Go-side Passes closure has no SQL
// equivalent and cannot be transpiled automatically) — features whose
// condition has no matching entry are skipped with a comment, not an
// error.
func (p *Pipeline) ToSQL(dialect deploy.Dialect, popKeyCol string, conditionSQL map[string]map[string]string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.fitted {
		return "", relerr.Validation("pipeline %q has not been fit", p.name)
	}

	edges := make(map[string]deploy.Edge, len(p.schema.Joins))
	for _, e := range p.schema.Joins {
		edges[e.Name()] = deploy.Edge{
			ChildTable:   e.Name(),
			ChildKeyCol:  e.RightKeyCol,
			ConditionSQL: conditionSQL[e.Name()],
		}
	}
	return deploy.GenerateDDL(dialect, p.schema.Table, popKeyCol, edges, p.catalog)
}

// Deploy implements Pipeline.deploy: renders and caches to_sql's output
// for dialect, so a later caller can retrieve the last-generated DDL
// without regenerating it.
func (p *Pipeline) Deploy(dialect deploy.Dialect, popKeyCol string, conditionSQL map[string]map[string]string) (string, error) {
	sql, err := p.ToSQL(dialect, popKeyCol, conditionSQL)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	if p.lastSQL == nil {
		p.lastSQL = make(map[string]string)
	}
	p.lastSQL[dialect.String()] = sql
	p.mu.Unlock()
	return sql, nil
}

// configManifest is Config's persisted form: Loss is a closed interface
// (Square/CrossEntropy) so it is stored as a kind tag and reconstructed
// on Load.
type configManifest struct {
	Target              string
	LossKind            string
	FitConfig           ensemble.FitConfig
	Quantiles           []float64
	MaxCategoricalCodes int
	MaxTextTokens       int
}

func lossKind(l loss.Loss) string {
	switch l.(type) {
	case *loss.CrossEntropy:
		return "cross_entropy"
	default:
		return "square"
	}
}

func lossFromKind(kind string) loss.Loss {
	if kind == "cross_entropy" {
		return loss.NewCrossEntropy()
	}
	return loss.NewSquare()
}

func (c Config) toManifest() configManifest {
	return configManifest{
		Target:              c.Target,
		LossKind:            lossKind(c.Loss),
		FitConfig:           c.FitConfig,
		Quantiles:           c.Quantiles,
		MaxCategoricalCodes: c.MaxCategoricalCodes,
		MaxTextTokens:       c.MaxTextTokens,
	}
}

func (m configManifest) toConfig() Config {
	return Config{
		Target:              m.Target,
		Loss:                lossFromKind(m.LossKind),
		FitConfig:           m.FitConfig,
		Quantiles:           m.Quantiles,
		MaxCategoricalCodes: m.MaxCategoricalCodes,
		MaxTextTokens:       m.MaxTextTokens,
	}
}

// pipelineManifest is Pipeline's persisted form, per spec §6's
// save/load: id, config, schema and the fitted ensemble (msgpack via
// ensemble.MarshalBinary). sources are never persisted — Rehydrate
// rebuilds them against whatever frames the caller supplies after Load.
type pipelineManifest struct {
	ID      string
	Name    string
	Cfg     configManifest
	Catalog []fastprop.Feature
	Schema  *placeholder.Placeholder
	Fitted  bool
	Model   []byte
}

// Save writes the pipeline's fitted state to dir, per spec §6's
// persisted pipeline layout.
func (p *Pipeline) Save(dir string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	manifest := pipelineManifest{
		ID:      p.id.String(),
		Name:    p.name,
		Cfg:     p.cfg.toManifest(),
		Catalog: p.catalog,
		Schema:  p.schema,
		Fitted:  p.fitted,
	}
	if p.fitted {
		modelBytes, err := p.model.MarshalBinary()
		if err != nil {
			return relerr.Internal("encoding pipeline model: %s", err)
		}
		manifest.Model = modelBytes
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return relerr.WrapResource(errors.Wrap(err, "creating pipeline directory"))
	}
	data, err := msgpack.Marshal(manifest)
	if err != nil {
		return relerr.Internal("encoding pipeline manifest: %s", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pipeline.msgpack"), data, 0o644); err != nil {
		return relerr.WrapResource(errors.Wrap(err, "writing pipeline manifest"))
	}
	return nil
}

// LoadPipeline reads a pipeline previously written by Save. Call
// Rehydrate afterward before using ColumnImportances/FeatureImportances
// or calling Transform with frames that were not already live in the
// process that saved it.
func LoadPipeline(dir string, log *logrus.Logger) (*Pipeline, error) {
	data, err := os.ReadFile(filepath.Join(dir, "pipeline.msgpack"))
	if err != nil {
		return nil, relerr.WrapResource(errors.Wrap(err, "reading pipeline manifest"))
	}
	var manifest pipelineManifest
	if err := msgpack.Unmarshal(data, &manifest); err != nil {
		return nil, relerr.Internal("decoding pipeline manifest: %s", err)
	}

	id, err := uuid.FromString(manifest.ID)
	if err != nil {
		id = uuid.UUID{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg := manifest.Cfg.toConfig()
	p := &Pipeline{
		id:      id,
		name:    manifest.Name,
		cfg:     cfg,
		schema:  manifest.Schema,
		catalog: manifest.Catalog,
		fitted:  manifest.Fitted,
		log:     logrus.NewEntry(log).WithField("pipeline", manifest.Name),
	}
	if manifest.Fitted {
		model := ensemble.New(cfg.Loss, p.log)
		if err := model.UnmarshalBinary(manifest.Model); err != nil {
			return nil, relerr.Internal("decoding pipeline model: %s", err)
		}
		p.model = model
	}
	return p, nil
}
