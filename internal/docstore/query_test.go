package docstore

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

func TestBuildSingleFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   core.Filter
		wantSQL  string
		wantArgs []any
		wantNext int
	}{
		{
			name:     "equal",
			filter:   core.Filter{Key: "status", Operator: core.OpEqual, Value: "open"},
			wantSQL:  "(data #> $2) = $3::jsonb",
			wantArgs: []any{[]string{"status"}, `"open"`},
			wantNext: 4,
		},
		{
			name:     "nested greater",
			filter:   core.Filter{Key: "a.b", Operator: core.OpGreater, Value: 3},
			wantSQL:  "(jsonb_typeof((data #> $2)) = jsonb_typeof($3::jsonb) AND (data #> $2) > $3::jsonb)",
			wantArgs: []any{[]string{"a", "b"}, "3"},
			wantNext: 4,
		},
		{
			name:     "in",
			filter:   core.Filter{Key: "status", Operator: core.OpIn, Value: []string{"a", "b"}},
			wantSQL:  "$3::jsonb @> jsonb_build_array((data #> $2))",
			wantArgs: []any{[]string{"status"}, `["a","b"]`},
			wantNext: 4,
		},
		{
			name:     "id",
			filter:   core.Filter{Operator: core.OpIDEqual, Value: "o1"},
			wantSQL:  "id = $2",
			wantArgs: []any{"o1"},
			wantNext: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, next, err := buildSingleFilter(tt.filter, 2)
			if err != nil {
				t.Fatalf("buildSingleFilter() error = %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if diff := cmp.Diff(tt.wantArgs, args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
			if next != tt.wantNext {
				t.Errorf("next = %d, want %d", next, tt.wantNext)
			}
		})
	}
}

func TestBuildSingleFilter_DateBounds(t *testing.T) {
	_, args, next, err := buildSingleFilter(core.Filter{Key: "due", Operator: core.OpDateEqual, Value: "2024-03-10T18:00:00Z"}, 2)
	if err != nil {
		t.Fatalf("buildSingleFilter() error = %v", err)
	}
	want := []any{
		[]string{"due"},
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if next != 5 {
		t.Errorf("next = %d, want 5", next)
	}
}

func TestBuildSingleFilter_Unsupported(t *testing.T) {
	if _, _, _, err := buildSingleFilter(core.Filter{Key: "a", Operator: "~=", Value: 1}, 1); err == nil {
		t.Error("buildSingleFilter(unknown op) error = nil, want error")
	}
}

func TestBuildQuery(t *testing.T) {
	q := core.Query{
		Collection: "shops/s1/orders",
		Filters: []core.Filter{
			{Key: "status", Operator: core.OpEqual, Value: "open"},
			{Key: "price", Operator: core.OpLess, Value: 5},
		},
		Join:   core.JoinOr,
		Orders: []core.Order{{Key: "price", Direction: core.SortDesc}},
		Limit:  60,
	}
	sql, args, err := buildQuery(q)
	if err != nil {
		t.Fatalf("buildQuery() error = %v", err)
	}

	for _, part := range []string{
		"WHERE collection = $1 AND (",
		" OR ",
		"(data #> $6) IS NOT NULL",
		"ORDER BY (data #> $6) DESC, path ASC",
		"LIMIT $7",
	} {
		if !strings.Contains(sql, part) {
			t.Errorf("sql missing %q:\n%s", part, sql)
		}
	}
	if len(args) != 7 || args[0] != "shops/s1/orders" || args[6] != 60 {
		t.Errorf("args = %v, want collection first and limit last", args)
	}
}

func TestBuildQuery_CollectionGroup(t *testing.T) {
	sql, args, err := buildQuery(core.Query{Collection: "shops/s1/orders", CollectionGroup: true})
	if err != nil {
		t.Fatalf("buildQuery() error = %v", err)
	}
	if !strings.Contains(sql, "collection_id = $1") || args[0] != "orders" {
		t.Errorf("buildQuery(group) = %q %v, want collection_id match on orders", sql, args)
	}
	if strings.Contains(sql, "LIMIT") {
		t.Errorf("sql has LIMIT without a limit: %s", sql)
	}
}
