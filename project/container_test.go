package project

import (
	"testing"

	"github.com/relfeat/engine/column"
)

func TestManagerOpenListDelete(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, nil)
	if err != nil {
		t.Fatalf("NewManager: %s", err)
	}

	c, err := m.Open("churn")
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	if c.Name() != "churn" {
		t.Fatalf("Name() = %q, want %q", c.Name(), "churn")
	}

	again, err := m.Open("churn")
	if err != nil {
		t.Fatalf("second Open: %s", err)
	}
	if again != c {
		t.Fatal("Open should return the cached Container on repeat calls")
	}

	names, err := m.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %s", err)
	}
	if len(names) != 1 || names[0] != "churn" {
		t.Fatalf("ListProjects = %v, want [churn]", names)
	}

	if err := m.Delete("churn"); err != nil {
		t.Fatalf("Delete: %s", err)
	}
	names, err = m.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects after delete: %s", err)
	}
	if len(names) != 0 {
		t.Fatalf("ListProjects after delete = %v, want none", names)
	}
}

func TestContainerPublishDataFrame(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, nil)
	if err != nil {
		t.Fatalf("NewManager: %s", err)
	}
	c, err := m.Open("churn")
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer c.Close()

	frame := column.NewFrame("customers")
	if err := frame.AddFloat(column.RoleTarget, column.NewFloat("churned", column.Numerical, []float64{1, 0})); err != nil {
		t.Fatalf("AddFloat: %s", err)
	}
	df := NewDataFrame(frame)

	if err := c.PublishDataFrame("customers", df); err != nil {
		t.Fatalf("PublishDataFrame: %s", err)
	}

	got, ok := c.DataFrame("customers")
	if !ok || got != df {
		t.Fatal("DataFrame should return the just-published frame")
	}

	names := c.ListDataFrames()
	if len(names) != 1 || names[0] != "customers" {
		t.Fatalf("ListDataFrames = %v, want [customers]", names)
	}

	if err := c.DeleteDataFrame("customers"); err != nil {
		t.Fatalf("DeleteDataFrame: %s", err)
	}
	if _, ok := c.DataFrame("customers"); ok {
		t.Fatal("DataFrame should be gone after DeleteDataFrame")
	}
}
