package core

// filters.go resolves which filters the listener query uses.
//
// Two owners write filters: the table (admin-set, on the schema document,
// optionally overridable) and the user (personal, on the user settings
// document). A stored user value of null means "ignore the table filter".

import (
	"fmt"
	"reflect"
	"slices"
	"time"
)

// FilterSource names the owner whose filters won.
type FilterSource string

const (
	FilterSourceNone  FilterSource = ""
	FilterSourceTable FilterSource = "table"
	FilterSourceUser  FilterSource = "user"
)

// FilterInputs are the stored filter configurations for one table and user.
type FilterInputs struct {
	TableFilters     []Filter
	TableOverridable bool
	TableJoin        JoinOperator
	UserFilters      StoredFilters
	UserJoin         JoinOperator
}

// FilterInputsFor collects the inputs from the schema and user documents.
func FilterInputsFor(schema TableSchema, user UserTableSettings) FilterInputs {
	return FilterInputs{
		TableFilters:     schema.Filters,
		TableOverridable: schema.FiltersOverridable,
		TableJoin:        schema.JoinOperator,
		UserFilters:      user.Filters,
		UserJoin:         user.JoinOperator,
	}
}

// HasTableFilters reports whether the table sets a non-empty filter.
func (in FilterInputs) HasTableFilters() bool { return len(in.TableFilters) > 0 }

// HasUserFilters reports whether the user stored a non-empty filter.
func (in FilterInputs) HasUserFilters() bool { return in.UserFilters.HasFilters() }

// userOverrides reports whether the user's value replaces the table's.
func (in FilterInputs) userOverrides() bool {
	return in.TableOverridable && (in.HasUserFilters() || in.UserFilters.IsNull())
}

// ResolvedFilters is the effective filter set for the listener query.
type ResolvedFilters struct {
	Filters []Filter     `json:"filters"`
	Join    JoinOperator `json:"joinOperator"`
	Source  FilterSource `json:"source"`
	// ClearOrders is set when a non-empty filter became active; manual sorts
	// are dropped so the query does not need a composite index.
	ClearOrders bool `json:"clearOrders"`
}

// ResolveFilters applies the precedence: overriding user value, then table
// filters, then user filters, then nothing. The join operator follows the
// same source.
func ResolveFilters(in FilterInputs) ResolvedFilters {
	var out ResolvedFilters
	switch {
	case in.userOverrides():
		out = ResolvedFilters{Filters: in.UserFilters.Filters, Join: in.UserJoin, Source: FilterSourceUser}
	case in.HasTableFilters():
		out = ResolvedFilters{Filters: in.TableFilters, Join: in.TableJoin, Source: FilterSourceTable}
	case in.HasUserFilters():
		out = ResolvedFilters{Filters: in.UserFilters.Filters, Join: in.UserJoin, Source: FilterSourceUser}
	default:
		out = ResolvedFilters{Join: JoinAnd}
	}
	if out.Filters == nil {
		out.Filters = []Filter{}
	} else {
		out.Filters = slices.Clone(out.Filters)
	}
	out.Join = normalizeJoin(out.Join)
	out.ClearOrders = len(out.Filters) > 0
	return out
}

// TableFiltersOverridden reports whether the user's value is shown as
// overriding the table filter.
func TableFiltersOverridden(user User, in FilterInputs) bool {
	return (in.TableOverridable || user.IsAdmin()) &&
		(in.HasUserFilters() || in.UserFilters.IsNull()) &&
		in.HasTableFilters()
}

// FilterPanelMode is the filter editor variant shown to a user.
type FilterPanelMode string

const (
	// PanelAdmin shows both the personal and the table tab.
	PanelAdmin FilterPanelMode = "admin"
	// PanelTableReadOnly shows the table filter, not editable.
	PanelTableReadOnly FilterPanelMode = "table_read_only"
	// PanelUserOverride shows an editable personal filter that can override.
	PanelUserOverride FilterPanelMode = "user_override"
	// PanelUser shows a plain personal filter.
	PanelUser FilterPanelMode = "user"
)

// FilterTab is the active tab in the admin panel.
type FilterTab string

const (
	TabUser  FilterTab = "user"
	TabTable FilterTab = "table"
)

// FilterPanel describes what a user may see and do in the filter editor.
type FilterPanel struct {
	Mode            FilterPanelMode `json:"mode"`
	DefaultTab      FilterTab       `json:"defaultTab"`
	HasTableFilters bool            `json:"hasTableFilters"`
	Overridden      bool            `json:"overridden"`
	CanEditTable    bool            `json:"canEditTable"`
	CanEditUser     bool            `json:"canEditUser"`
	CanOverride     bool            `json:"canOverride"`
}

// FilterPanelFor applies the permission policy.
func FilterPanelFor(user User, in FilterInputs) FilterPanel {
	p := FilterPanel{
		HasTableFilters: in.HasTableFilters(),
		Overridden:      TableFiltersOverridden(user, in),
		DefaultTab:      TabUser,
	}
	switch {
	case user.IsAdmin():
		p.Mode = PanelAdmin
		p.CanEditTable = true
		p.CanEditUser = true
		p.CanOverride = p.HasTableFilters
		if p.HasTableFilters && !p.Overridden {
			p.DefaultTab = TabTable
		}
	case p.HasTableFilters && !in.TableOverridable:
		p.Mode = PanelTableReadOnly
		p.DefaultTab = TabTable
	case p.HasTableFilters:
		p.Mode = PanelUserOverride
		p.CanEditUser = true
		p.CanOverride = true
	default:
		p.Mode = PanelUser
		p.CanEditUser = true
	}
	return p
}

// CheckEditTableFilters returns ErrFiltersForbidden unless user is an admin.
func CheckEditTableFilters(user User) error {
	if !user.IsAdmin() {
		return fmt.Errorf("edit table filters: %w", ErrFiltersForbidden)
	}
	return nil
}

// CheckEditUserFilters returns ErrFiltersForbidden when the panel is read-only.
func CheckEditUserFilters(user User, in FilterInputs) error {
	if !FilterPanelFor(user, in).CanEditUser {
		return fmt.Errorf("edit personal filters: %w", ErrFiltersForbidden)
	}
	return nil
}

// ClearedUserFilters returns the value written by "Clear all" on the user
// tab. With table filters present and override requested (and allowed) it is
// the null sentinel; otherwise an empty list.
func ClearedUserFilters(user User, in FilterInputs, override bool) StoredFilters {
	if override && in.HasTableFilters() && (in.TableOverridable || user.IsAdmin()) {
		return SuppressedFilters()
	}
	return FilterList()
}

// CanApplyFilters reports whether the Apply action is enabled for filters.
func CanApplyFilters(filters []Filter) bool {
	if len(filters) == 0 {
		return false
	}
	for _, f := range filters {
		if IsEmptyFilterValue(f.Value) {
			return false
		}
	}
	return true
}

// IsEmptyFilterValue treats nil, "" and empty collections as empty. Numbers
// (including 0), booleans (including false) and dates are never empty.
func IsEmptyFilterValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool, time.Time, *time.Time:
		return false
	case string:
		return t == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return false
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// ValidateFilters checks each filter names a known column and uses an
// operator allowed for that column's field type.
func ValidateFilters(cols []ColumnConfig, filters []Filter) error {
	for _, f := range filters {
		i := slices.IndexFunc(cols, func(c ColumnConfig) bool { return c.Key == f.Key || c.FieldName == f.Key })
		if i < 0 {
			return &ValidationError{Field: f.Key, Reason: "unknown column"}
		}
		if !slices.Contains(OperatorsFor(cols[i].Type), f.Operator) {
			return &ValidationError{
				Field:     f.Key,
				FieldType: cols[i].Type,
				Reason:    fmt.Sprintf("operator %q not supported", f.Operator),
			}
		}
	}
	return nil
}
