package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/column/encoding"
)

func writeCSV(t *testing.T, rows []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	content := ""
	for _, r := range rows {
		content += r + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing csv fixture: %s", err)
	}
	return path
}

func TestFromCSV(t *testing.T) {
	path := writeCSV(t, []string{
		"id,amount,category",
		"a,10.5,books",
		"b,,toys",
		"c,3,books",
	})

	cols := []ColumnSpec{
		{Name: "id", Kind: column.JoinKey, Role: column.RoleJoinKey},
		{Name: "amount", Kind: column.Numerical, Role: column.RoleNumerical},
		{Name: "category", Kind: column.Categorical, Role: column.RoleCategorical},
	}

	df, err := FromCSV(path, "orders", cols, encoding.New(), encoding.New())
	if err != nil {
		t.Fatalf("FromCSV: %s", err)
	}
	if df.Frame().NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", df.Frame().NumRows())
	}

	amount, ok := df.Frame().Float("amount")
	if !ok {
		t.Fatal("missing amount column")
	}
	if amount.At(0) != 10.5 {
		t.Fatalf("amount[0] = %v, want 10.5", amount.At(0))
	}
	if !column.IsNullFloat(amount.At(1)) {
		t.Fatalf("amount[1] should be null for an empty CSV field, got %v", amount.At(1))
	}
}

func TestFromCSVMissingColumn(t *testing.T) {
	path := writeCSV(t, []string{"id,amount", "a,1"})
	cols := []ColumnSpec{
		{Name: "id", Kind: column.JoinKey, Role: column.RoleJoinKey},
		{Name: "missing", Kind: column.Numerical, Role: column.RoleNumerical},
	}
	if _, err := FromCSV(path, "orders", cols, encoding.New(), encoding.New()); err == nil {
		t.Fatal("expected an error for a schema column absent from the CSV header")
	}
}

func TestDataFrameAppendAndConcat(t *testing.T) {
	a := column.NewFrame("orders")
	if err := a.AddFloat(column.RoleNumerical, column.NewFloat("amount", column.Numerical, []float64{1, 2})); err != nil {
		t.Fatalf("AddFloat a: %s", err)
	}
	b := column.NewFrame("orders")
	if err := b.AddFloat(column.RoleNumerical, column.NewFloat("amount", column.Numerical, []float64{3})); err != nil {
		t.Fatalf("AddFloat b: %s", err)
	}

	dfA := NewDataFrame(a)
	dfB := NewDataFrame(b)

	merged, err := dfA.Concat(dfB)
	if err != nil {
		t.Fatalf("Concat: %s", err)
	}
	if merged.Frame().NumRows() != 3 {
		t.Fatalf("Concat NumRows = %d, want 3", merged.Frame().NumRows())
	}
	if dfA.Frame().NumRows() != 2 {
		t.Fatal("Concat must not mutate its receiver")
	}

	if err := dfA.Append(dfB); err != nil {
		t.Fatalf("Append: %s", err)
	}
	if dfA.Frame().NumRows() != 3 {
		t.Fatalf("Append NumRows = %d, want 3", dfA.Frame().NumRows())
	}
}

func TestDataFrameSaveLoad(t *testing.T) {
	frame := column.NewFrame("orders")
	if err := frame.AddFloat(column.RoleNumerical, column.NewFloat("amount", column.Numerical, []float64{1.5, 2.5})); err != nil {
		t.Fatalf("AddFloat: %s", err)
	}
	codes := []int32{0, 1}
	if err := frame.AddCode(column.RoleCategorical, column.NewCode("category", column.Categorical, codes)); err != nil {
		t.Fatalf("AddCode: %s", err)
	}
	df := NewDataFrame(frame)

	dir := t.TempDir()
	if err := df.Save(dir); err != nil {
		t.Fatalf("Save: %s", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if loaded.Frame().NumRows() != 2 {
		t.Fatalf("loaded NumRows = %d, want 2", loaded.Frame().NumRows())
	}
	amount, ok := loaded.Frame().Float("amount")
	if !ok || amount.At(0) != 1.5 {
		t.Fatalf("loaded amount column wrong: ok=%v, v=%v", ok, amount)
	}
}
