package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"
)

// RowRef is the stable identity of a row inside the document hierarchy.
type RowRef struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

// RefFromPath builds a RowRef, deriving the ID from the last path segment.
func RefFromPath(path string) RowRef {
	id := path
	if i := strings.LastIndex(path, "/"); i >= 0 && i < len(path)-1 {
		id = path[i+1:]
	}
	return RowRef{Path: path, ID: id}
}

// rowRefField is the reserved key carrying the reference in JSON form.
const rowRefField = "_rowy_ref"

// Row is a single document: its field map plus the reference identity.
type Row struct {
	Ref    RowRef
	Fields map[string]any
}

// MarshalJSON flattens the row into its fields with the reference under _rowy_ref.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[rowRefField] = r.Ref
	return json.Marshal(out)
}

// UnmarshalJSON reads the flattened form produced by MarshalJSON.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Fields = raw
	if ref, ok := raw[rowRefField].(map[string]any); ok {
		r.Ref.Path, _ = ref["path"].(string)
		r.Ref.ID, _ = ref["id"].(string)
		delete(raw, rowRefField)
	}
	if r.Ref.ID == "" && r.Ref.Path != "" {
		r.Ref = RefFromPath(r.Ref.Path)
	}
	return nil
}

// FieldType names a column's cell type (see internal/core/fields).
type FieldType string

const (
	FieldShortText     FieldType = "SHORT_TEXT"
	FieldLongText      FieldType = "LONG_TEXT"
	FieldRichText      FieldType = "RICH_TEXT"
	FieldEmail         FieldType = "EMAIL"
	FieldPhone         FieldType = "PHONE_NUMBER"
	FieldURL           FieldType = "URL"
	FieldNumber        FieldType = "NUMBER"
	FieldPercentage    FieldType = "PERCENTAGE"
	FieldCheckbox      FieldType = "CHECK_BOX"
	FieldDate          FieldType = "DATE"
	FieldDateTime      FieldType = "DATE_TIME"
	FieldSingleSelect  FieldType = "SINGLE_SELECT"
	FieldMultiSelect   FieldType = "MULTI_SELECT"
	FieldJSON          FieldType = "JSON"
	FieldCode          FieldType = "CODE"
	FieldArraySubTable FieldType = "ARRAY_SUB_TABLE"
	FieldCreatedAt     FieldType = "CREATED_AT"
	FieldUpdatedAt     FieldType = "UPDATED_AT"
	FieldCreatedBy     FieldType = "CREATED_BY"
	FieldUpdatedBy     FieldType = "UPDATED_BY"
	FieldID            FieldType = "ID"
)

// ColumnConfig describes one column in a table schema.
type ColumnConfig struct {
	Key       string         `json:"key"`
	FieldName string         `json:"fieldName"`
	Name      string         `json:"name,omitempty"`
	Type      FieldType      `json:"type"`
	Index     int            `json:"index"`
	Width     int            `json:"width,omitempty"`
	Fixed     bool           `json:"fixed,omitempty"`
	Hidden    bool           `json:"hidden,omitempty"`
	Editable  *bool          `json:"editable,omitempty"`
	Resizable *bool          `json:"resizable,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

// IsEditable reports whether cells in the column accept edits. Unset means editable.
func (c ColumnConfig) IsEditable() bool {
	return c.Editable == nil || *c.Editable
}

// JoinOperator combines all active filters.
type JoinOperator string

const (
	JoinAnd JoinOperator = "AND"
	JoinOr  JoinOperator = "OR"
)

// normalizeJoin maps anything other than AND to OR.
func normalizeJoin(op JoinOperator) JoinOperator {
	if op == JoinAnd {
		return JoinAnd
	}
	return JoinOr
}

// FilterOperator is a comparison applied by a Filter.
type FilterOperator string

const (
	OpEqual            FilterOperator = "=="
	OpNotEqual         FilterOperator = "!="
	OpLess             FilterOperator = "<"
	OpLessEqual        FilterOperator = "<="
	OpGreater          FilterOperator = ">"
	OpGreaterEqual     FilterOperator = ">="
	OpIn               FilterOperator = "in"
	OpNotIn            FilterOperator = "not-in"
	OpArrayContains    FilterOperator = "array-contains"
	OpArrayContainsAny FilterOperator = "array-contains-any"
	OpIDEqual          FilterOperator = "id-equal"
	OpDateEqual        FilterOperator = "date-equal"
	OpDateBefore       FilterOperator = "date-before"
	OpDateAfter        FilterOperator = "date-after"
	OpDateBeforeEqual  FilterOperator = "date-before-equal"
	OpDateAfterEqual   FilterOperator = "date-after-equal"
)

// Filter is a single condition on a field.
type Filter struct {
	Key      string         `json:"key"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value"`
}

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Order is one sort key.
type Order struct {
	Key       string        `json:"key"`
	Direction SortDirection `json:"direction"`
}

// filtersPresence distinguishes the three stored states of user filters.
type filtersPresence int

const (
	filtersUnset filtersPresence = iota
	filtersNull
	filtersList
)

// StoredFilters is a persisted filter list that remembers whether it was
// absent, explicitly null, or a (possibly empty) list.
type StoredFilters struct {
	Filters  []Filter
	presence filtersPresence
}

// FilterList returns a stored list.
func FilterList(filters ...Filter) StoredFilters {
	if filters == nil {
		filters = []Filter{}
	}
	return StoredFilters{Filters: filters, presence: filtersList}
}

// SuppressedFilters returns the null sentinel.
func SuppressedFilters() StoredFilters {
	return StoredFilters{presence: filtersNull}
}

// IsNull reports whether the stored value is the explicit null sentinel.
func (s StoredFilters) IsNull() bool { return s.presence == filtersNull }

// IsSet reports whether anything (null or a list) was stored.
func (s StoredFilters) IsSet() bool { return s.presence != filtersUnset }

// HasFilters reports whether a non-empty list is stored.
func (s StoredFilters) HasFilters() bool {
	return s.presence == filtersList && len(s.Filters) > 0
}

// Value returns the representation written to the document store:
// nil for the sentinel, the list otherwise.
func (s StoredFilters) Value() any {
	if s.presence != filtersList {
		return nil
	}
	return s.Filters
}

// UnmarshalJSON records null as the sentinel.
func (s *StoredFilters) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = SuppressedFilters()
		return nil
	}
	var filters []Filter
	if err := json.Unmarshal(data, &filters); err != nil {
		return err
	}
	*s = FilterList(filters...)
	return nil
}

// MarshalJSON writes null for both the sentinel and an unset value.
func (s StoredFilters) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Value())
}

// TableSchema is the per-table schema document.
type TableSchema struct {
	Columns            map[string]ColumnConfig `json:"columns,omitempty"`
	Filters            []Filter                `json:"filters,omitempty"`
	FiltersOverridable bool                    `json:"filtersOverridable,omitempty"`
	JoinOperator       JoinOperator            `json:"joinOperator,omitempty"`
	RowHeight          int                     `json:"rowHeight,omitempty"`
}

// TableType is the kind of collection backing a table.
type TableType string

const (
	TablePrimaryCollection TableType = "primaryCollection"
	TableCollectionGroup   TableType = "collectionGroup"
)

// TableSettings is a table's entry in the project settings document.
type TableSettings struct {
	ID                  string    `json:"id"`
	Collection          string    `json:"collection"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	Roles               []string  `json:"roles"`
	Section             string    `json:"section"`
	TableType           TableType `json:"tableType"`
	ReadOnly            bool      `json:"readOnly,omitempty"`
	Audit               bool      `json:"audit,omitempty"`
	AuditFieldCreatedBy bool      `json:"auditFieldCreatedBy,omitempty"`
	AuditFieldUpdatedBy bool      `json:"auditFieldUpdatedBy,omitempty"`
}

// ProjectSettings is the project settings document.
type ProjectSettings struct {
	Tables []TableSettings `json:"tables"`
}

// UserTableSettings is a user's per-table preferences.
type UserTableSettings struct {
	Filters      StoredFilters `json:"filters"`
	JoinOperator JoinOperator  `json:"joinOperator,omitempty"`
	Sorts        []Order       `json:"sorts,omitempty"`
	HiddenFields []string      `json:"hiddenFields,omitempty"`
}

// UserSettings is the per-user settings document.
type UserSettings struct {
	Tables         map[string]UserTableSettings `json:"tables,omitempty"`
	FavoriteTables []string                     `json:"favoriteTables,omitempty"`
}

// Table returns the preferences for a table, zero value if none.
func (u UserSettings) Table(tableID string) UserTableSettings {
	if u.Tables == nil {
		return UserTableSettings{}
	}
	return u.Tables[tableID]
}

// RoleAdmin grants schema and table filter edits.
const RoleAdmin = "ADMIN"

// User is the authenticated caller.
type User struct {
	UID         string   `json:"uid"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// IsAdmin reports whether the user holds the administrator role.
func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// HasRole reports whether the user holds role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanAccess reports whether the user may open the table.
func (u User) CanAccess(t TableSettings) bool {
	if u.IsAdmin() {
		return true
	}
	for _, r := range t.Roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

// stamp is the audit-field value written to _createdBy/_updatedBy.
func (u User) stamp(now time.Time) map[string]any {
	return map[string]any{
		"uid":         u.UID,
		"email":       u.Email,
		"displayName": u.DisplayName,
		"timestamp":   now.UTC().Format(time.RFC3339Nano),
	}
}

// Query is what the database listener is subscribed to.
type Query struct {
	Collection      string
	CollectionGroup bool
	Filters         []Filter
	Join            JoinOperator
	Orders          []Order
	Limit           int
}

// Unsubscribe cancels a listener. Safe to call more than once.
type Unsubscribe func()

// DocumentStore is the document database collaborator.
//
// GetDoc returns nil, nil for a missing document.
// SetDoc has set-with-merge semantics: nested maps are merged, untouched
// fields are preserved and deleteFields (dotted paths) are removed.
type DocumentStore interface {
	GetDoc(ctx context.Context, path string) (map[string]any, error)
	SetDoc(ctx context.Context, path string, data map[string]any, deleteFields []string) error
	DeleteDoc(ctx context.Context, path string) error
	Listen(ctx context.Context, q Query, onSnapshot func([]Row), onError func(error)) (Unsubscribe, error)
}

// UpdateDocFunction writes a partial update to a single known document.
type UpdateDocFunction func(ctx context.Context, update map[string]any, deleteFields []string) error

// UpdateCollectionDocFunction writes a partial update to a row document.
type UpdateCollectionDocFunction func(ctx context.Context, path string, update map[string]any, deleteFields []string) error

// DeleteCollectionDocFunction deletes a row document.
type DeleteCollectionDocFunction func(ctx context.Context, path string) error
