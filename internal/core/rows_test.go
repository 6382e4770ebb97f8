package core

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func row(path string, fields map[string]any) Row {
	return Row{Ref: RefFromPath(path), Fields: fields}
}

func TestRefFromPath(t *testing.T) {
	tests := []struct {
		path   string
		wantID string
	}{
		{"users/abc", "abc"},
		{"users/abc/posts/p1", "p1"},
		{"single", "single"},
		{"trailing/", "trailing/"},
	}
	for _, tt := range tests {
		if got := RefFromPath(tt.path).ID; got != tt.wantID {
			t.Errorf("RefFromPath(%q).ID = %q, want %q", tt.path, got, tt.wantID)
		}
	}
}

func TestReduceLocalRows_Set(t *testing.T) {
	prev := []Row{row("t/a", map[string]any{"x": 1.0})}
	got := ReduceLocalRows(prev, SetRows{Rows: []Row{row("t/b", nil)}})

	if len(got) != 1 || got[0].Ref.Path != "t/b" {
		t.Errorf("SetRows = %v, want only t/b", got)
	}
}

func TestReduceLocalRows_AddPrepends(t *testing.T) {
	prev := []Row{row("t/a", nil)}
	got := ReduceLocalRows(prev, AddRows{Rows: []Row{row("t/b", nil), row("t/c", nil)}})

	want := []string{"t/b", "t/c", "t/a"}
	if diff := cmp.Diff(want, paths(got)); diff != "" {
		t.Errorf("AddRows paths mismatch (-want +got):\n%s", diff)
	}
	if len(prev) != 1 {
		t.Errorf("prev modified: len = %d, want 1", len(prev))
	}
}

func TestReduceLocalRows_UpdatePreservesUntouchedFields(t *testing.T) {
	prev := []Row{row("t/a", map[string]any{"a": 0.0, "b": 2.0})}
	got := ReduceLocalRows(prev, UpdateRow{Path: "t/a", Fields: map[string]any{"a": 1.0}})

	want := map[string]any{"a": 1.0, "b": 2.0}
	if diff := cmp.Diff(want, got[0].Fields); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}
	if prev[0].Fields["a"] != 0.0 {
		t.Errorf("prev row modified: a = %v, want 0", prev[0].Fields["a"])
	}
}

func TestReduceLocalRows_DeleteFieldsBeforeMerge(t *testing.T) {
	prev := []Row{row("t/a", map[string]any{"a": 0.0, "b": 2.0, "c": 3.0})}
	got := ReduceLocalRows(prev, UpdateRow{
		Path:         "t/a",
		Fields:       map[string]any{"a": 1.0},
		DeleteFields: []string{"b"},
	})

	want := map[string]any{"a": 1.0, "c": 3.0}
	if diff := cmp.Diff(want, got[0].Fields); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}
	if _, ok := prev[0].Fields["b"]; !ok {
		t.Error("prev row lost field b")
	}
}

func TestReduceLocalRows_UpdateNestedAndArrays(t *testing.T) {
	prev := []Row{row("t/a", map[string]any{
		"address": map[string]any{"city": "Oslo", "zip": "0150"},
		"tags":    []any{"a", "b", "c"},
	})}
	got := ReduceLocalRows(prev, UpdateRow{
		Path: "t/a",
		Fields: map[string]any{
			"address": map[string]any{"city": "Bergen"},
			"tags":    []any{"x"},
		},
		DeleteFields: []string{"address.zip"},
	})

	want := map[string]any{
		"address": map[string]any{"city": "Bergen"},
		"tags":    []any{"x", "b", "c"},
	}
	if diff := cmp.Diff(want, got[0].Fields); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"a", "b", "c"}, prev[0].Fields["tags"]); diff != "" {
		t.Errorf("prev tags modified (-want +got):\n%s", diff)
	}
}

func TestReduceLocalRows_UpdateMissingSynthesizes(t *testing.T) {
	prev := []Row{row("t/a", nil)}
	got := ReduceLocalRows(prev, UpdateRow{Path: "t/new", Fields: map[string]any{"a": 1.0}})

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	want := Row{Ref: RowRef{Path: "t/new", ID: "new"}, Fields: map[string]any{"a": 1.0}}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("synthesized row mismatch (-want +got):\n%s", diff)
	}
}

func TestReduceLocalRows_Delete(t *testing.T) {
	prev := []Row{row("t/a", nil), row("t/b", nil), row("t/c", nil)}
	got := ReduceLocalRows(prev, DeleteRows{Paths: []string{"t/a", "t/c"}})

	if diff := cmp.Diff([]string{"t/b"}, paths(got)); diff != "" {
		t.Errorf("delete mismatch (-want +got):\n%s", diff)
	}
	if len(prev) != 3 {
		t.Errorf("prev modified: len = %d, want 3", len(prev))
	}
}

func TestReduceLocalRows_NilActionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ReduceLocalRows(nil action) did not panic")
		}
	}()
	ReduceLocalRows(nil, nil)
}

func TestMergeRows_LocalWins(t *testing.T) {
	local := []Row{row("t/a", map[string]any{"v": "local"})}
	db := []Row{row("t/a", map[string]any{"v": "db"}), row("t/b", map[string]any{"v": "db"})}

	got := MergeRows(local, db)

	want := []Row{
		row("t/a", map[string]any{"v": "local"}),
		row("t/b", map[string]any{"v": "db"}),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeRows_SortsByPath(t *testing.T) {
	local := []Row{row("t/c", nil)}
	db := []Row{row("t/b", nil), row("t/a", nil)}

	got := MergeRows(local, db)

	if diff := cmp.Diff([]string{"t/a", "t/b", "t/c"}, paths(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeRows_Uniqueness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pathOf := func() string { return fmt.Sprintf("t/%d", rng.Intn(8)) }

	var local, db []Row
	for step := 0; step < 2000; step++ {
		switch rng.Intn(5) {
		case 0:
			local = ReduceLocalRows(local, AddRows{Rows: []Row{row(pathOf(), map[string]any{"n": float64(step)})}})
		case 1:
			local = ReduceLocalRows(local, UpdateRow{Path: pathOf(), Fields: map[string]any{"n": float64(step)}})
		case 2:
			local = ReduceLocalRows(local, DeleteRows{Paths: []string{pathOf()}})
		case 3:
			db = nil
			for i := rng.Intn(6); i > 0; i-- {
				db = append(db, row(pathOf(), map[string]any{"db": true}))
			}
		case 4:
			local = ReduceLocalRows(local, SetRows{})
		}

		merged := MergeRows(local, db)
		seen := make(map[string]bool)
		for _, r := range merged {
			if seen[r.Ref.Path] {
				t.Fatalf("step %d: duplicate path %s in merged view", step, r.Ref.Path)
			}
			seen[r.Ref.Path] = true
		}
	}
}

func TestGetPath(t *testing.T) {
	fields := map[string]any{"a": map[string]any{"b": 1.0}, "c": "x"}

	if v, ok := GetPath(fields, "a.b"); !ok || v != 1.0 {
		t.Errorf("GetPath(a.b) = %v, %v, want 1, true", v, ok)
	}
	if _, ok := GetPath(fields, "c.d"); ok {
		t.Error("GetPath(c.d) ok = true, want false")
	}
}

func paths(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Ref.Path
	}
	return out
}
