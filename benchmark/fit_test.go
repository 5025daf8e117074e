package benchmark

import (
	"context"
	"testing"

	"github.com/relfeat/engine/project"
)

func TestGenerateProducesConsistentFrames(t *testing.T) {
	schema, frames := Generate(DatasetConfig{NumCustomers: 50, OrdersPerCustomer: 3, EventsPerCustomer: 2, Seed: 1})

	pop, ok := frames[schema.Table]
	if !ok {
		t.Fatalf("no population frame for table %q", schema.Table)
	}
	if pop.Frame().NumRows() != 50 {
		t.Fatalf("NumRows = %d, want 50", pop.Frame().NumRows())
	}
	for _, edge := range schema.Joins {
		if _, ok := frames[edge.Name()]; !ok {
			t.Fatalf("no frame for joined table %q", edge.Name())
		}
	}
}

func fitConfig(numTrees int) project.Config {
	cfg := project.DefaultConfig("churned")
	cfg.FitConfig.NumTrees = numTrees
	return cfg
}

func runFit(b *testing.B, cfg DatasetConfig, numTrees int) {
	schema, frames := Generate(cfg)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := project.NewPipeline("bench", fitConfig(numTrees), nil)
		if _, err := p.Fit(context.Background(), schema, frames); err != nil {
			b.Fatalf("Fit: %s", err)
		}
	}
}

func BenchmarkPipelineFitSmall(b *testing.B) {
	runFit(b, DatasetConfig{NumCustomers: 200, OrdersPerCustomer: 5, EventsPerCustomer: 3, Seed: 1}, 20)
}

func BenchmarkPipelineFitMedium(b *testing.B) {
	runFit(b, DatasetConfig{NumCustomers: 2000, OrdersPerCustomer: 5, EventsPerCustomer: 3, Seed: 1}, 20)
}

func BenchmarkPipelineTransform(b *testing.B) {
	cfg := DatasetConfig{NumCustomers: 2000, OrdersPerCustomer: 5, EventsPerCustomer: 3, Seed: 1}
	schema, frames := Generate(cfg)
	p := project.NewPipeline("bench", fitConfig(20), nil)
	if _, err := p.Fit(context.Background(), schema, frames); err != nil {
		b.Fatalf("Fit: %s", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Transform(context.Background(), frames); err != nil {
			b.Fatalf("Transform: %s", err)
		}
	}
}
