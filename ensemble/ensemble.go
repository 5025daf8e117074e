// Package ensemble implements the boosting driver (C9): a Tree owns one
// grown root node plus the update rate found for it; an Ensemble owns a
// sequence of Trees plus the intercept and loss-function identity, and
// orchestrates Fit/Transform per §4.7. Sub-ensembles (§4.9) let an
// intermediate aggregation's input column be itself the output of a
// deeper Ensemble, for the snowflake-schema subfeature case.
package ensemble

import (
	"context"
	"math/rand"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/relfeat/engine/coordinator"
	"github.com/relfeat/engine/loss"
	"github.com/relfeat/engine/tree"
)

// Tree is one boosted round: a grown root plus the update rate it was
// compiled with (§4.7's "multiply all node weights by it").
type Tree struct {
	Root       *tree.Node
	UpdateRate float64

	// PlaceholderIndex is the index, among Fit's CandidateBuilder
	// placeholders, that grew this tree — callers (project.Pipeline)
	// use it at Transform time to know which matches/values/satisfies
	// to rebuild for a given tree without re-running the selection.
	PlaceholderIndex int

	// Satisfies replays this tree's split conditions against live
	// columns; not persisted (MarshalBinary omits it) — reconstructed
	// by the caller from schema at load time, the same way it was
	// supplied to Fit via CandidateBuilder.
	Satisfies Satisfies
}

// Satisfies tests one peripheral row against a condition, resolving
// whichever column(s) the condition's Kind references. Owned by the
// caller (project.Pipeline), which alone knows how to map a
// Condition's ColumnIndex/OtherColumnIndex back to live frame columns —
// Tree itself only walks the node structure.
type Satisfies func(cond *tree.Condition, peripheralRow int) bool

// Predict evaluates the tree's contribution for one population row
// given its eligible peripheral rows and the peripheral value column
// used for leaf SUM aggregation, routing rows through internal nodes
// with t.Satisfies.
func (t *Tree) Predict(peripheral []int, values []float64) float64 {
	return t.UpdateRate * evalNode(t.Root, peripheral, values, t.Satisfies)
}

func evalNode(n *tree.Node, peripheral []int, values []float64, satisfies Satisfies) float64 {
	if n.IsLeaf {
		return n.Weight * sumOf(peripheral, values)
	}
	var matchSide, noMatchSide []int
	for _, p := range peripheral {
		if satisfies(n.Condition, p) {
			matchSide = append(matchSide, p)
		} else {
			noMatchSide = append(noMatchSide, p)
		}
	}
	return evalNode(n.MatchSide, matchSide, values, satisfies) + evalNode(n.NoMatchSide, noMatchSide, values, satisfies)
}

func sumOf(rows []int, values []float64) float64 {
	var s float64
	for _, r := range rows {
		s += values[r]
	}
	return s
}

// Ensemble is a fitted additive model: yhat = loss.Transform(intercept
// + Σ_k trees[k].Predict(...)).
type Ensemble struct {
	Intercept float64
	Trees     []Tree
	Loss      loss.Loss

	// SubEnsembles holds, per joined table tagged propositionalization
	// that feeds an intermediate aggregation, the inner ensembles fit
	// under AVG and SUM (§4.9) — keyed by the edge's Name().
	SubEnsembles map[string]*SubEnsemblePair

	log *logrus.Entry
}

// SubEnsemblePair holds the two sub-ensembles required at a
// propositionalization boundary: one fit against outer residuals
// aggregated back under AVG, one under SUM, since the outer aggregation
// distributes over either linearly (§4.9).
type SubEnsemblePair struct {
	AvgEnsemble *Ensemble
	SumEnsemble *Ensemble
}

// New creates an empty ensemble using l as its loss function.
func New(l loss.Loss, log *logrus.Entry) *Ensemble {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ensemble{Loss: l, SubEnsembles: make(map[string]*SubEnsemblePair), log: log}
}

// FitConfig bundles per-fit hyperparameters.
type FitConfig struct {
	NumTrees       int
	SamplingFactor float64 // fraction of candidate placeholders sampled per round
	Params         tree.Params
	RandSeed       int64

	// NumWorkers requests a fixed candidate-evaluation worker count
	// (§4.10); 0 resolves to coordinator.NumThreads' hardware-sized
	// default.
	NumWorkers int
}

// CandidateBuilder produces, for round k (for reproducible sampling)
// and a chosen peripheral table/column, the Grow inputs for one
// candidate root: its matches, value column, condition catalog, and a
// Satisfies oracle able to replay any of those candidates' conditions
// later for Predict/Transform. Supplied by the caller (project.Pipeline), which owns
// schema/frame knowledge this package intentionally has none of.
type CandidateBuilder func(round int, placeholderIndex int) (matches []tree.RowMatches, values []float64, candidates []tree.Candidate, satisfies Satisfies)

// Fit runs the boosting loop of §4.7: intercept, then NumTrees rounds
// each sampling candidate placeholders, growing one tree per candidate,
// and keeping the best by loss reduction on the current residual.
func (e *Ensemble) Fit(ctx context.Context, target []float64, numPlaceholders int, build CandidateBuilder, cfg FitConfig) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ensemble.Fit")
	defer span.Finish()
	_ = ctx

	e.Intercept = e.Loss.Intercept(target)
	yhat := make([]float64, len(target))
	for i := range yhat {
		yhat[i] = e.Intercept
	}

	rng := rand.New(rand.NewSource(cfg.RandSeed))
	k := int(cfg.SamplingFactor * float64(numPlaceholders))
	if k < 1 {
		k = 1
	}
	if k > numPlaceholders {
		k = numPlaceholders
	}

	for round := 0; round < cfg.NumTrees; round++ {
		select {
		case <-ctx.Done():
			e.log.WithField("round", round).Warn("ensemble fit cancelled")
			return
		default:
		}

		g, h := e.Loss.CalcGradients(target, yhat)

		candidates := rng.Perm(numPlaceholders)[:k]
		bestTree, bestPrediction := selectBestCandidate(candidates, cfg.NumWorkers, func(placeholderIdx int) candidateResult {
			matches, values, conds, satisfies := build(round, placeholderIdx)
			root, reduction := tree.Grow(matches, values, g, h, conds, e.Loss, cfg.Params, 0, 0)
			prediction := predictAll(root, matches, values, satisfies)
			return candidateResult{
				tree:       &Tree{Root: root, Satisfies: satisfies, PlaceholderIndex: placeholderIdx},
				prediction: prediction,
				reduction:  reduction,
			}
		})
		if bestTree == nil {
			continue
		}

		rate := e.Loss.CalcUpdateRate(target, yhat, bestPrediction)
		bestTree.UpdateRate = rate
		e.Trees = append(e.Trees, *bestTree)

		for i := range yhat {
			yhat[i] += rate * bestPrediction[i]
		}
		e.log.WithField("round", round).WithField("num_trees", len(e.Trees)).Debug("tree added")
	}
}

func predictAll(root *tree.Node, matches []tree.RowMatches, values []float64, satisfies Satisfies) []float64 {
	out := make([]float64, len(matches))
	for i, rm := range matches {
		out[i] = evalNode(root, rm.Peripheral, values, satisfies)
	}
	return out
}

// candidateResult is one sampled placeholder's grown tree, its
// per-population-row prediction, and the loss reduction tree.Grow
// achieved relative to predicting 0 for every row (the sum of
// EvaluateLeaf over its leaves) — the quantity §4.7 picks the
// winning candidate by, not the magnitude of its prediction.
type candidateResult struct {
	tree       *Tree
	prediction []float64
	reduction  float64
}

// selectBestCandidate evaluates grow(idx) for every candidate
// placeholder and returns the tree with the greatest loss reduction,
// ties broken toward the first candidate index encountered (same
// tie-break grow would see run single-threaded, since results are
// reduced in candidates' fixed order regardless of which worker
// finishes first). Work is fanned out across numWorkers goroutines
// (C12's thread count, §4.10/§5's "one coordinator thread plus N-1
// workers") since growing each candidate's tree is independent of every
// other candidate.
func selectBestCandidate(candidates []int, numWorkers int, grow func(placeholderIdx int) candidateResult) (*Tree, []float64) {
	results := make([]candidateResult, len(candidates))

	numWorkers = coordinator.NumThreads(numWorkers)
	if numWorkers > len(candidates) {
		numWorkers = len(candidates)
	}
	sem := make(chan struct{}, numWorkers)
	var wg sync.WaitGroup
	for i, placeholderIdx := range candidates {
		i, placeholderIdx := i, placeholderIdx
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = grow(placeholderIdx)
		}()
	}
	wg.Wait()

	var bestTree *Tree
	var bestPrediction []float64
	var bestReduction float64
	for _, res := range results {
		if bestTree == nil || res.reduction > bestReduction {
			bestTree, bestPrediction, bestReduction = res.tree, res.prediction, res.reduction
		}
	}
	return bestTree, bestPrediction
}

// Transform produces yhat for a population of size n given, for each
// tree in the ensemble, its matches/value column via buildMatches. If a
// tree's own Satisfies oracle is nil (e.g. restored from disk before
// the caller rebinds it), buildMatches' oracle is used instead. Each
// tree's row loop is fanned out across coordinator.Partition row ranges
// (§5's "per transform, the same fan-out applied over row ranges") since
// matches carries exactly one entry per population row and distinct
// ranges therefore touch disjoint positions of yhat.
func (e *Ensemble) Transform(ctx context.Context, n int, buildMatches func(treeIdx int) (matches []tree.RowMatches, values []float64, satisfies Satisfies)) []float64 {
	yhat := make([]float64, n)
	for i := range yhat {
		yhat[i] = e.Intercept
	}
	for ti, t := range e.Trees {
		matches, values, satisfies := buildMatches(ti)
		if t.Satisfies != nil {
			satisfies = t.Satisfies
		}
		root, rate := t.Root, t.UpdateRate
		coordinator.Run(ctx, "transform", len(matches), 0, func(ctx context.Context, r coordinator.Range) coordinator.Stats {
			for _, rm := range matches[r.Start:r.End] {
				yhat[rm.PopRow] += rate * evalNode(root, rm.Peripheral, values, satisfies)
			}
			return coordinator.Stats{}
		})
	}
	return e.Loss.Transform(yhat)
}

// MarshalBinary serializes the ensemble's trees and intercept via
// msgpack, the teacher corpus's binary serialization library for
// persisted model state.
func (e *Ensemble) MarshalBinary() ([]byte, error) {
	type wireTree struct {
		Root             *tree.Node
		UpdateRate       float64
		PlaceholderIndex int
	}
	wire := struct {
		Intercept float64
		Trees     []wireTree
	}{Intercept: e.Intercept}
	for _, t := range e.Trees {
		wire.Trees = append(wire.Trees, wireTree{Root: t.Root, UpdateRate: t.UpdateRate, PlaceholderIndex: t.PlaceholderIndex})
	}
	return msgpack.Marshal(wire)
}

// UnmarshalBinary restores trees and intercept from msgpack bytes. Loss
// must be set by the caller afterward (it identifies a function, not
// serializable state).
func (e *Ensemble) UnmarshalBinary(data []byte) error {
	type wireTree struct {
		Root             *tree.Node
		UpdateRate       float64
		PlaceholderIndex int
	}
	var wire struct {
		Intercept float64
		Trees     []wireTree
	}
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.Intercept = wire.Intercept
	e.Trees = nil
	for _, wt := range wire.Trees {
		e.Trees = append(e.Trees, Tree{Root: wt.Root, UpdateRate: wt.UpdateRate, PlaceholderIndex: wt.PlaceholderIndex})
	}
	return nil
}
