package relfeat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/project"
	"github.com/relfeat/engine/server"
)

func TestNewEngineOpensProjectRoot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectRoot = t.TempDir()

	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	defer e.Close()

	if _, err := e.Manager().Open("churn"); err != nil {
		t.Fatalf("Open: %s", err)
	}
}

func TestEngineDispatcherRoutesProjectOps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectRoot = t.TempDir()

	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	defer e.Close()

	ctx := context.Background()
	d := e.Dispatcher()

	if _, err := d.Handle(ctx, server.Request{Type: "open_project", Name: "churn"}); err != nil {
		t.Fatalf("open_project: %s", err)
	}

	c, err := e.Manager().Open("churn")
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	frame := column.NewFrame("customers")
	if err := frame.AddFloat(column.RoleTarget, column.NewFloat("churned", column.Numerical, []float64{1, 0})); err != nil {
		t.Fatalf("AddFloat: %s", err)
	}
	if err := c.PublishDataFrame("customers", project.NewDataFrame(frame)); err != nil {
		t.Fatalf("PublishDataFrame: %s", err)
	}

	resp, err := d.Handle(ctx, server.Request{Type: "list_data_frames", Name: "churn"})
	if err != nil {
		t.Fatalf("list_data_frames: %s", err)
	}
	if resp.Status != "Found!" {
		t.Fatalf("Status = %q, want Found!", resp.Status)
	}
	if len(resp.Frame) == 0 {
		t.Fatal("expected a non-empty frame-name payload")
	}
}

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relfeat.toml")
	cfg := DefaultConfig()
	cfg.DefaultNumTrees = 77
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %s", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %s", err)
	}
	if loaded.DefaultNumTrees != 77 {
		t.Fatalf("DefaultNumTrees = %d, want 77", loaded.DefaultNumTrees)
	}
}

func TestNewPipelineConfigAppliesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectRoot = t.TempDir()
	cfg.DefaultNumTrees = 10
	cfg.DefaultShrinkage = 0.05
	cfg.DefaultMinLeafSupport = 5
	cfg.DefaultLoss = "cross_entropy"

	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	defer e.Close()

	pc := e.NewPipelineConfig("churned")
	if pc.FitConfig.NumTrees != 10 {
		t.Fatalf("NumTrees = %d, want 10", pc.FitConfig.NumTrees)
	}
	if pc.FitConfig.Params.Shrinkage != 0.05 {
		t.Fatalf("Shrinkage = %v, want 0.05", pc.FitConfig.Params.Shrinkage)
	}
	if pc.FitConfig.Params.MinLeafSupport != 5 {
		t.Fatalf("MinLeafSupport = %d, want 5", pc.FitConfig.Params.MinLeafSupport)
	}
}
