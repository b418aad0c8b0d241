package table

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTable_AppendAndColumn(t *testing.T) {
	tbl := New("gid", "mean", "sum")

	if err := tbl.AppendUnit(7, []float64{1.5, 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tbl.AppendUnit(9, []float64{2.5, 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tbl.AppendUnit(10, []float64{1}); err == nil {
		t.Error("expected error for short row")
	}

	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}

	sums, ok := tbl.Column("sum")
	if !ok {
		t.Fatal("expected sum column")
	}
	if diff := cmp.Diff([]float64{3, 5}, sums); diff != "" {
		t.Errorf("sum column mismatch (-want +got):\n%s", diff)
	}

	if _, ok := tbl.Column("missing"); ok {
		t.Error("expected missing column lookup to fail")
	}

	v, ok := tbl.Value("9", "mean")
	if !ok || v != 2.5 {
		t.Errorf("expected mean 2.5 for gid 9, got %v (ok=%v)", v, ok)
	}
}

func TestConcat(t *testing.T) {
	a := New("gid", "x")
	a.AppendUnit(0, []float64{1})
	a.AppendUnit(1, []float64{2})

	b := New("gid", "x")
	b.AppendUnit(2, []float64{3})

	got, err := Concat(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"0", "1", "2"}, got.Index); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}

	c := New("gid", "y")
	if _, err := Concat(a, c); err == nil {
		t.Error("expected error for mismatched columns")
	}

	if _, err := Concat(); err == nil {
		t.Error("expected error for empty concat")
	}
}

func TestTable_AddColumn(t *testing.T) {
	tbl := New("gid", "a")
	tbl.AppendUnit(0, []float64{1})
	tbl.AppendUnit(1, []float64{2})

	if err := tbl.AddColumn("b", []float64{10, 20}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tbl.AddColumn("c", []float64{1}); err == nil {
		t.Error("expected error for wrong length column")
	}

	if diff := cmp.Diff([][]float64{{1, 10}, {2, 20}}, tbl.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_WriteCSV(t *testing.T) {
	tbl := New("gid", "mean", "25%")
	tbl.AppendUnit(0, []float64{0.5, 0.25})
	tbl.AppendUnit(1, []float64{1, 2})

	var buf bytes.Buffer
	if err := tbl.WriteCSV(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "gid,mean,25%\n0,0.5,0.25\n1,1,2\n"
	if buf.String() != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, buf.String())
	}
}

func TestTable_SaveCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")

	tbl := New("stat", "ghi")
	tbl.Append("mean", []float64{3})

	if err := tbl.SaveCSV(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if !strings.HasPrefix(string(data), "stat,ghi\n") {
		t.Errorf("unexpected output %q", string(data))
	}
}

func TestTable_Records(t *testing.T) {
	tbl := New("gid", "mean")
	tbl.AppendUnit(4, []float64{2})

	recs := tbl.Records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0]["gid"] != "4" || recs[0]["mean"] != 2.0 {
		t.Errorf("unexpected record %v", recs[0])
	}
}
