package project

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/column/encoding"
	"github.com/relfeat/engine/deploy"
	"github.com/relfeat/engine/loss"
	"github.com/relfeat/engine/placeholder"
)

func buildTestFrames(t *testing.T) (*placeholder.Placeholder, map[string]*DataFrame) {
	t.Helper()
	joinKeys := encoding.New()
	categorical := encoding.New()

	popIDs := []string{"a", "b", "c"}
	popCodes := make([]int32, len(popIDs))
	for i, s := range popIDs {
		popCodes[i] = joinKeys.Intern(s)
	}
	target := []float64{1, 2, 3}

	popFrame := column.NewFrame("customers")
	if err := popFrame.AddCode(column.RoleJoinKey, column.NewCode("id", column.JoinKey, popCodes)); err != nil {
		t.Fatalf("adding pop join key: %s", err)
	}
	if err := popFrame.AddFloat(column.RoleTarget, column.NewFloat("churned", column.Numerical, target)); err != nil {
		t.Fatalf("adding pop target: %s", err)
	}

	orderCustomer := []string{"a", "a", "b", "c", "c", "c"}
	orderCodes := make([]int32, len(orderCustomer))
	for i, s := range orderCustomer {
		orderCodes[i] = joinKeys.Intern(s)
	}
	amounts := []float64{10, 20, 5, 1, 2, 30}
	categories := []string{"books", "books", "toys", "toys", "toys", "books"}
	catCodes := make([]int32, len(categories))
	for i, s := range categories {
		catCodes[i] = categorical.Intern(s)
	}

	ordersFrame := column.NewFrame("orders")
	if err := ordersFrame.AddCode(column.RoleJoinKey, column.NewCode("customer_id", column.JoinKey, orderCodes)); err != nil {
		t.Fatalf("adding orders join key: %s", err)
	}
	if err := ordersFrame.AddFloat(column.RoleNumerical, column.NewFloat("amount", column.Numerical, amounts)); err != nil {
		t.Fatalf("adding orders amount: %s", err)
	}
	if err := ordersFrame.AddCode(column.RoleCategorical, column.NewCode("category", column.Categorical, catCodes)); err != nil {
		t.Fatalf("adding orders category: %s", err)
	}

	eventCustomer := []string{"a", "b", "b", "c"}
	eventCodes := make([]int32, len(eventCustomer))
	for i, s := range eventCustomer {
		eventCodes[i] = joinKeys.Intern(s)
	}
	durations := []float64{3, 4, 5, 6}

	eventsFrame := column.NewFrame("events")
	if err := eventsFrame.AddCode(column.RoleJoinKey, column.NewCode("customer_id", column.JoinKey, eventCodes)); err != nil {
		t.Fatalf("adding events join key: %s", err)
	}
	if err := eventsFrame.AddFloat(column.RoleNumerical, column.NewFloat("duration", column.Numerical, durations)); err != nil {
		t.Fatalf("adding events duration: %s", err)
	}

	schema := placeholder.New("customers", "churned").
		AddJoin(placeholder.Edge{
			LeftKeyCol:   "id",
			RightKeyCol:  "customer_id",
			Relationship: placeholder.ManyToMany,
			Child:        placeholder.New("orders"),
		}).
		AddJoin(placeholder.Edge{
			LeftKeyCol:   "id",
			RightKeyCol:  "customer_id",
			Relationship: placeholder.Propositionalization,
			Child:        placeholder.New("events"),
		})

	frames := map[string]*DataFrame{
		"customers": NewDataFrame(popFrame),
		"orders":    NewDataFrame(ordersFrame),
		"events":    NewDataFrame(eventsFrame),
	}
	return schema, frames
}

func TestPipelineFitTransform(t *testing.T) {
	schema, frames := buildTestFrames(t)
	cfg := DefaultConfig("churned")
	cfg.FitConfig.NumTrees = 5

	p := NewPipeline("churn_model", cfg, nil)
	warner, err := p.Fit(context.Background(), schema, frames)
	if err != nil {
		t.Fatalf("Fit: %s", err)
	}
	if warner == nil {
		t.Fatal("Fit returned a nil warner")
	}

	yhat, err := p.Transform(context.Background(), frames)
	if err != nil {
		t.Fatalf("Transform: %s", err)
	}
	if len(yhat) != 3 {
		t.Fatalf("Transform returned %d predictions, want 3", len(yhat))
	}
	for _, v := range yhat {
		if column.IsNullFloat(v) {
			t.Fatal("Transform produced a null prediction")
		}
	}
}

func TestPipelineImportances(t *testing.T) {
	schema, frames := buildTestFrames(t)
	cfg := DefaultConfig("churned")
	cfg.FitConfig.NumTrees = 5

	p := NewPipeline("churn_model", cfg, nil)
	if _, err := p.Fit(context.Background(), schema, frames); err != nil {
		t.Fatalf("Fit: %s", err)
	}

	cols, err := p.ColumnImportances()
	if err != nil {
		t.Fatalf("ColumnImportances: %s", err)
	}
	feats, err := p.FeatureImportances()
	if err != nil {
		t.Fatalf("FeatureImportances: %s", err)
	}
	if len(feats) == 0 {
		t.Fatal("expected at least one feature importance")
	}
	_ = cols // column importances may legitimately be empty if every tree is a bare leaf
}

func TestPipelineSaveLoad(t *testing.T) {
	schema, frames := buildTestFrames(t)
	cfg := DefaultConfig("churned")
	cfg.FitConfig.NumTrees = 5

	p := NewPipeline("churn_model", cfg, nil)
	if _, err := p.Fit(context.Background(), schema, frames); err != nil {
		t.Fatalf("Fit: %s", err)
	}

	dir := t.TempDir()
	if err := p.Save(dir); err != nil {
		t.Fatalf("Save: %s", err)
	}

	loaded, err := LoadPipeline(dir, nil)
	if err != nil {
		t.Fatalf("LoadPipeline: %s", err)
	}
	if loaded.name != p.name {
		t.Fatalf("loaded pipeline name = %q, want %q", loaded.name, p.name)
	}
	if !loaded.fitted {
		t.Fatal("loaded pipeline should be marked fitted")
	}
	if len(loaded.model.Trees) != len(p.model.Trees) {
		t.Fatalf("loaded model has %d trees, want %d", len(loaded.model.Trees), len(p.model.Trees))
	}

	if err := loaded.Rehydrate(frames); err != nil {
		t.Fatalf("Rehydrate: %s", err)
	}
	yhat, err := loaded.Transform(context.Background(), frames)
	if err != nil {
		t.Fatalf("Transform after load: %s", err)
	}
	if len(yhat) != 3 {
		t.Fatalf("Transform after load returned %d predictions, want 3", len(yhat))
	}
}

func TestPipelineCheck(t *testing.T) {
	schema, frames := buildTestFrames(t)
	cfg := DefaultConfig("churned")
	p := NewPipeline("churn_model", cfg, nil)

	if _, err := p.Check(schema, frames); err != nil {
		t.Fatalf("Check: %s", err)
	}

	delete(frames, "orders")
	if _, err := p.Check(schema, frames); err == nil {
		t.Fatal("Check should fail when a joined table's frame is missing")
	}
}

func TestPipelineToSQL(t *testing.T) {
	schema, frames := buildTestFrames(t)
	cfg := DefaultConfig("churned")
	cfg.FitConfig.NumTrees = 3

	p := NewPipeline("churn_model", cfg, nil)
	if _, err := p.Fit(context.Background(), schema, frames); err != nil {
		t.Fatalf("Fit: %s", err)
	}

	sql, err := p.ToSQL(deploy.PostgreSQL, "id", nil)
	if err != nil {
		t.Fatalf("ToSQL: %s", err)
	}
	if sql == "" {
		t.Fatal("ToSQL returned empty DDL")
	}
}

// buildSnowflakeFrames builds a schema nested two joins deep —
// population joined to orders, orders themselves joined to events —
// mirroring the original multirel test suite's snowflake_model fixture
// (population -> peripheral1 -> peripheral2), scaled down for test
// speed. Every event carries a 0/1 qualifies column; a population row's
// ground truth is the count of qualifying events reachable only through
// its orders, a genuinely two-level nested sum.
func buildSnowflakeFrames(t *testing.T) (*placeholder.Placeholder, map[string]*DataFrame, []float64) {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	custKeys := encoding.New()
	orderKeys := encoding.New()
	orderTypes := encoding.New()

	const nPop = 20
	const ordersPerPop = 5
	const eventsPerOrder = 4

	popCodes := make([]int32, nPop)
	for i := 0; i < nPop; i++ {
		popCodes[i] = custKeys.Intern(fmt.Sprintf("c%d", i))
	}

	var orderCustCodes, orderIDCodes, orderTypeCodes []int32
	var eventOrderCodes []int32
	var eventQualifies []float64
	orderSubtarget := map[int32]float64{}

	orderIdx := 0
	for i := 0; i < nPop; i++ {
		for k := 0; k < ordersPerPop; k++ {
			orderID := orderKeys.Intern(fmt.Sprintf("o%d", orderIdx))
			orderCustCodes = append(orderCustCodes, popCodes[i])
			orderIDCodes = append(orderIDCodes, orderID)
			otype := "a"
			if rng.Float64() < 0.5 {
				otype = "b"
			}
			orderTypeCodes = append(orderTypeCodes, orderTypes.Intern(otype))

			var subtarget float64
			for j := 0; j < eventsPerOrder; j++ {
				q := 0.0
				if rng.Float64() < 0.4 {
					q = 1.0
				}
				eventOrderCodes = append(eventOrderCodes, orderID)
				eventQualifies = append(eventQualifies, q)
				subtarget += q
			}
			orderSubtarget[orderID] = subtarget
			orderIdx++
		}
	}

	popFrame := column.NewFrame("population")
	if err := popFrame.AddCode(column.RoleJoinKey, column.NewCode("id", column.JoinKey, popCodes)); err != nil {
		t.Fatalf("adding population join key: %s", err)
	}

	ordersFrame := column.NewFrame("orders")
	if err := ordersFrame.AddCode(column.RoleJoinKey, column.NewCode("customer_id", column.JoinKey, orderCustCodes)); err != nil {
		t.Fatalf("adding orders customer key: %s", err)
	}
	if err := ordersFrame.AddCode(column.RoleJoinKey, column.NewCode("id", column.JoinKey, orderIDCodes)); err != nil {
		t.Fatalf("adding orders own key: %s", err)
	}
	if err := ordersFrame.AddCode(column.RoleCategorical, column.NewCode("order_type", column.Categorical, orderTypeCodes)); err != nil {
		t.Fatalf("adding orders type: %s", err)
	}

	eventsFrame := column.NewFrame("events")
	if err := eventsFrame.AddCode(column.RoleJoinKey, column.NewCode("order_id", column.JoinKey, eventOrderCodes)); err != nil {
		t.Fatalf("adding events order key: %s", err)
	}
	if err := eventsFrame.AddFloat(column.RoleNumerical, column.NewFloat("qualifies", column.Numerical, eventQualifies)); err != nil {
		t.Fatalf("adding events qualifies: %s", err)
	}

	target := make([]float64, nPop)
	for i := 0; i < nPop; i++ {
		for k := 0; k < ordersPerPop; k++ {
			idx := i*ordersPerPop + k
			target[i] += orderSubtarget[orderIDCodes[idx]]
		}
	}
	if err := popFrame.AddFloat(column.RoleTarget, column.NewFloat("target", column.Numerical, target)); err != nil {
		t.Fatalf("adding population target: %s", err)
	}

	schema := placeholder.New("population", "target").
		AddJoin(placeholder.Edge{
			LeftKeyCol:   "id",
			RightKeyCol:  "customer_id",
			Relationship: placeholder.ManyToMany,
			Child: placeholder.New("orders").
				AddJoin(placeholder.Edge{
					LeftKeyCol:   "id",
					RightKeyCol:  "order_id",
					Relationship: placeholder.ManyToMany,
					Child:        placeholder.New("events"),
				}),
		})

	frames := map[string]*DataFrame{
		"population": NewDataFrame(popFrame),
		"orders":     NewDataFrame(ordersFrame),
		"events":     NewDataFrame(eventsFrame),
	}
	return schema, frames, target
}

// TestPipelineTwoLevelSnowflake exercises a schema nested two joins
// deep, grounded on the original multirel test suite's snowflake_model
// fixture: a population row's target is only reachable by aggregating
// through an intermediate peripheral table (orders) down to a second
// peripheral table (events) never directly joined to the population.
func TestPipelineTwoLevelSnowflake(t *testing.T) {
	schema, frames, target := buildSnowflakeFrames(t)
	cfg := DefaultConfig("target")
	cfg.FitConfig.NumTrees = 30

	p := NewPipeline("snowflake_model", cfg, nil)
	if _, err := p.Fit(context.Background(), schema, frames); err != nil {
		t.Fatalf("Fit: %s", err)
	}

	yhat, err := p.Transform(context.Background(), frames)
	if err != nil {
		t.Fatalf("Transform: %s", err)
	}
	if len(yhat) != len(target) {
		t.Fatalf("Transform returned %d predictions, want %d", len(yhat), len(target))
	}
	for i, want := range target {
		if math.Abs(yhat[i]-want) >= 10.0 {
			t.Fatalf("row %d: prediction %.3f too far from target %.3f", i, yhat[i], want)
		}
	}
}

// buildBinaryClassificationFrames builds a population of customers
// whose binary label is separable by the sign of their total order
// amount, for exercising a cross-entropy-boosted ensemble's training
// accuracy.
func buildBinaryClassificationFrames(t *testing.T) (*placeholder.Placeholder, map[string]*DataFrame, []float64) {
	t.Helper()
	joinKeys := encoding.New()
	channels := encoding.New()
	rng := rand.New(rand.NewSource(7))

	const nPop = 40
	const ordersPerPop = 6

	popCodes := make([]int32, nPop)
	for i := 0; i < nPop; i++ {
		popCodes[i] = joinKeys.Intern(fmt.Sprintf("c%d", i))
	}

	var orderCustCodes []int32
	var amounts []float64
	var channelCodes []int32
	custTotal := make([]float64, nPop)
	for i := 0; i < nPop; i++ {
		sign := 1.0
		if i%2 == 0 {
			sign = -1.0
		}
		for k := 0; k < ordersPerPop; k++ {
			amt := sign * (5 + rng.Float64()*10)
			orderCustCodes = append(orderCustCodes, popCodes[i])
			amounts = append(amounts, amt)
			ch := "web"
			if rng.Float64() < 0.5 {
				ch = "store"
			}
			channelCodes = append(channelCodes, channels.Intern(ch))
			custTotal[i] += amt
		}
	}

	target := make([]float64, nPop)
	for i, total := range custTotal {
		if total > 0 {
			target[i] = 1
		}
	}

	popFrame := column.NewFrame("customers")
	if err := popFrame.AddCode(column.RoleJoinKey, column.NewCode("id", column.JoinKey, popCodes)); err != nil {
		t.Fatalf("adding pop join key: %s", err)
	}
	if err := popFrame.AddFloat(column.RoleTarget, column.NewFloat("label", column.Numerical, target)); err != nil {
		t.Fatalf("adding pop target: %s", err)
	}

	ordersFrame := column.NewFrame("orders")
	if err := ordersFrame.AddCode(column.RoleJoinKey, column.NewCode("customer_id", column.JoinKey, orderCustCodes)); err != nil {
		t.Fatalf("adding orders join key: %s", err)
	}
	if err := ordersFrame.AddFloat(column.RoleNumerical, column.NewFloat("amount", column.Numerical, amounts)); err != nil {
		t.Fatalf("adding orders amount: %s", err)
	}
	if err := ordersFrame.AddCode(column.RoleCategorical, column.NewCode("channel", column.Categorical, channelCodes)); err != nil {
		t.Fatalf("adding orders channel: %s", err)
	}

	schema := placeholder.New("customers", "label").
		AddJoin(placeholder.Edge{
			LeftKeyCol:   "id",
			RightKeyCol:  "customer_id",
			Relationship: placeholder.ManyToMany,
			Child:        placeholder.New("orders"),
		})

	frames := map[string]*DataFrame{
		"customers": NewDataFrame(popFrame),
		"orders":    NewDataFrame(ordersFrame),
	}
	return schema, frames, target
}

// TestPipelineCrossEntropyTrainingAccuracy fits a 10-tree cross-entropy
// ensemble against a separable binary label and checks that training
// accuracy clears 0.95 — the gradient-boosted classification counterpart
// to TestPipelineFitTransform's regression-only coverage.
func TestPipelineCrossEntropyTrainingAccuracy(t *testing.T) {
	schema, frames, target := buildBinaryClassificationFrames(t)
	cfg := DefaultConfig("label")
	cfg.Loss = loss.NewCrossEntropy()
	cfg.FitConfig.NumTrees = 10

	p := NewPipeline("binary_model", cfg, nil)
	if _, err := p.Fit(context.Background(), schema, frames); err != nil {
		t.Fatalf("Fit: %s", err)
	}

	yhat, err := p.Transform(context.Background(), frames)
	if err != nil {
		t.Fatalf("Transform: %s", err)
	}

	var correct int
	for i, want := range target {
		pred := 0.0
		if yhat[i] > 0.5 {
			pred = 1.0
		}
		if pred == want {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(target))
	if accuracy <= 0.95 {
		t.Fatalf("training accuracy %.3f, want > 0.95", accuracy)
	}
}

