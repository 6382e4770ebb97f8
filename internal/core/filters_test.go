package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var (
	admin   = User{UID: "admin", Roles: []string{RoleAdmin}}
	editor  = User{UID: "editor", Roles: []string{"EDITOR"}}
	statusF = Filter{Key: "status", Operator: OpEqual, Value: "open"}
	ownerF  = Filter{Key: "owner", Operator: OpEqual, Value: "me"}
)

func TestResolveFilters(t *testing.T) {
	tests := []struct {
		name       string
		in         FilterInputs
		want       []Filter
		wantJoin   JoinOperator
		wantSource FilterSource
	}{
		{
			name: "overridable table filters suppressed by null user filters",
			in: FilterInputs{
				TableFilters:     []Filter{statusF},
				TableOverridable: true,
				TableJoin:        JoinAnd,
				UserFilters:      SuppressedFilters(),
				UserJoin:         JoinOr,
			},
			want:       []Filter{},
			wantJoin:   JoinOr,
			wantSource: FilterSourceUser,
		},
		{
			name: "non-overridable table filters beat user filters",
			in: FilterInputs{
				TableFilters:     []Filter{statusF},
				TableOverridable: false,
				TableJoin:        JoinAnd,
				UserFilters:      FilterList(ownerF),
				UserJoin:         JoinOr,
			},
			want:       []Filter{statusF},
			wantJoin:   JoinAnd,
			wantSource: FilterSourceTable,
		},
		{
			name: "overridable table filters replaced by user filters",
			in: FilterInputs{
				TableFilters:     []Filter{statusF},
				TableOverridable: true,
				UserFilters:      FilterList(ownerF),
				UserJoin:         JoinOr,
			},
			want:       []Filter{ownerF},
			wantJoin:   JoinOr,
			wantSource: FilterSourceUser,
		},
		{
			name: "overridable table filters kept when user has none",
			in: FilterInputs{
				TableFilters:     []Filter{statusF},
				TableOverridable: true,
				TableJoin:        JoinOr,
				UserFilters:      FilterList(),
			},
			want:       []Filter{statusF},
			wantJoin:   JoinOr,
			wantSource: FilterSourceTable,
		},
		{
			name: "user filters without table filters",
			in: FilterInputs{
				UserFilters: FilterList(ownerF),
				UserJoin:    JoinAnd,
			},
			want:       []Filter{ownerF},
			wantJoin:   JoinAnd,
			wantSource: FilterSourceUser,
		},
		{
			name:       "nothing stored",
			in:         FilterInputs{},
			want:       []Filter{},
			wantJoin:   JoinAnd,
			wantSource: FilterSourceNone,
		},
		{
			name: "unknown join normalised to OR",
			in: FilterInputs{
				TableFilters: []Filter{statusF},
				TableJoin:    "XOR",
			},
			want:       []Filter{statusF},
			wantJoin:   JoinOr,
			wantSource: FilterSourceTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveFilters(tt.in)
			if diff := cmp.Diff(tt.want, got.Filters); diff != "" {
				t.Errorf("Filters mismatch (-want +got):\n%s", diff)
			}
			if got.Join != tt.wantJoin {
				t.Errorf("Join = %q, want %q", got.Join, tt.wantJoin)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", got.Source, tt.wantSource)
			}
			if got.ClearOrders != (len(tt.want) > 0) {
				t.Errorf("ClearOrders = %v, want %v", got.ClearOrders, len(tt.want) > 0)
			}
		})
	}
}

func TestStoredFilters_JSON(t *testing.T) {
	var settings UserTableSettings
	if err := json.Unmarshal([]byte(`{"filters": null}`), &settings); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !settings.Filters.IsNull() {
		t.Error("null filters did not decode as the suppress sentinel")
	}

	settings = UserTableSettings{}
	if err := json.Unmarshal([]byte(`{}`), &settings); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if settings.Filters.IsSet() {
		t.Error("missing filters decoded as set")
	}

	settings = UserTableSettings{}
	if err := json.Unmarshal([]byte(`{"filters": []}`), &settings); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !settings.Filters.IsSet() || settings.Filters.IsNull() || settings.Filters.HasFilters() {
		t.Error("empty filters should be a set, non-null, empty list")
	}
}

func TestFilterPanelFor(t *testing.T) {
	tests := []struct {
		name string
		user User
		in   FilterInputs
		want FilterPanel
	}{
		{
			name: "admin with table filters",
			user: admin,
			in:   FilterInputs{TableFilters: []Filter{statusF}},
			want: FilterPanel{Mode: PanelAdmin, DefaultTab: TabTable, HasTableFilters: true,
				CanEditTable: true, CanEditUser: true, CanOverride: true},
		},
		{
			name: "admin overriding table filters",
			user: admin,
			in:   FilterInputs{TableFilters: []Filter{statusF}, UserFilters: FilterList(ownerF)},
			want: FilterPanel{Mode: PanelAdmin, DefaultTab: TabUser, HasTableFilters: true, Overridden: true,
				CanEditTable: true, CanEditUser: true, CanOverride: true},
		},
		{
			name: "user with locked table filters",
			user: editor,
			in:   FilterInputs{TableFilters: []Filter{statusF}},
			want: FilterPanel{Mode: PanelTableReadOnly, DefaultTab: TabTable, HasTableFilters: true},
		},
		{
			name: "user with overridable table filters",
			user: editor,
			in:   FilterInputs{TableFilters: []Filter{statusF}, TableOverridable: true, UserFilters: SuppressedFilters()},
			want: FilterPanel{Mode: PanelUserOverride, DefaultTab: TabUser, HasTableFilters: true, Overridden: true,
				CanEditUser: true, CanOverride: true},
		},
		{
			name: "user without table filters",
			user: editor,
			in:   FilterInputs{},
			want: FilterPanel{Mode: PanelUser, DefaultTab: TabUser, CanEditUser: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterPanelFor(tt.user, tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FilterPanelFor mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheckEditFilters(t *testing.T) {
	if err := CheckEditTableFilters(editor); !errors.Is(err, ErrFiltersForbidden) {
		t.Errorf("CheckEditTableFilters(editor) = %v, want ErrFiltersForbidden", err)
	}
	if err := CheckEditTableFilters(admin); err != nil {
		t.Errorf("CheckEditTableFilters(admin) = %v, want nil", err)
	}

	locked := FilterInputs{TableFilters: []Filter{statusF}}
	if err := CheckEditUserFilters(editor, locked); !errors.Is(err, ErrFiltersForbidden) {
		t.Errorf("CheckEditUserFilters(locked) = %v, want ErrFiltersForbidden", err)
	}
	locked.TableOverridable = true
	if err := CheckEditUserFilters(editor, locked); err != nil {
		t.Errorf("CheckEditUserFilters(overridable) = %v, want nil", err)
	}
}

func TestClearedUserFilters(t *testing.T) {
	overridable := FilterInputs{TableFilters: []Filter{statusF}, TableOverridable: true}

	if got := ClearedUserFilters(editor, overridable, true); !got.IsNull() {
		t.Error("clear with override = list, want null sentinel")
	}
	if got := ClearedUserFilters(editor, overridable, false); got.IsNull() || got.HasFilters() {
		t.Error("clear without override should be an empty list")
	}
	if got := ClearedUserFilters(editor, FilterInputs{}, true); got.IsNull() {
		t.Error("clear without table filters should be an empty list")
	}
	locked := FilterInputs{TableFilters: []Filter{statusF}}
	if got := ClearedUserFilters(editor, locked, true); got.IsNull() {
		t.Error("clear of locked table filters by non-admin should be an empty list")
	}
	if got := ClearedUserFilters(admin, locked, true); !got.IsNull() {
		t.Error("admin clear with override = list, want null sentinel")
	}
}

func TestCanApplyFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters []Filter
		want    bool
	}{
		{"no filters", nil, false},
		{"zero number", []Filter{{Key: "n", Operator: OpEqual, Value: 0}}, true},
		{"zero float", []Filter{{Key: "n", Operator: OpEqual, Value: 0.0}}, true},
		{"false boolean", []Filter{{Key: "b", Operator: OpEqual, Value: false}}, true},
		{"date", []Filter{{Key: "d", Operator: OpDateBefore, Value: time.Time{}}}, true},
		{"empty string", []Filter{{Key: "s", Operator: OpEqual, Value: ""}}, false},
		{"nil value", []Filter{{Key: "s", Operator: OpEqual, Value: nil}}, false},
		{"empty list", []Filter{{Key: "s", Operator: OpIn, Value: []any{}}}, false},
		{"one empty among valid", []Filter{statusF, {Key: "s", Operator: OpEqual, Value: ""}}, false},
		{"string", []Filter{statusF}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanApplyFilters(tt.filters); got != tt.want {
				t.Errorf("CanApplyFilters() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateFilters(t *testing.T) {
	ensureTestFields(t)
	cols := OrderedColumns(testSchema())

	if err := ValidateFilters(cols, []Filter{{Key: "price", Operator: OpGreater, Value: 1}}); err != nil {
		t.Errorf("ValidateFilters(price >) = %v, want nil", err)
	}

	var verr *ValidationError
	err := ValidateFilters(cols, []Filter{{Key: "price", Operator: OpArrayContains, Value: 1}})
	if !errors.As(err, &verr) || verr.FieldType != FieldNumber {
		t.Errorf("ValidateFilters(price array-contains) = %v, want ValidationError for NUMBER", err)
	}
	err = ValidateFilters(cols, []Filter{{Key: "missing", Operator: OpEqual, Value: 1}})
	if !errors.As(err, &verr) {
		t.Errorf("ValidateFilters(missing) = %v, want ValidationError", err)
	}
}
