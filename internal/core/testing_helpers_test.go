package core

import (
	"sync"
	"testing"
)

var testFieldsOnce sync.Once

// testFields mirrors the subset of internal/core/fields used by these tests.
var testFields = []FieldDefinition{
	{Type: FieldShortText, Name: "Short Text", Group: "Text", DataType: DataString, InitialValue: "", Clipboard: true,
		Operators: []FilterOperator{OpEqual, OpNotEqual, OpIn, OpNotIn, OpIDEqual}},
	{Type: FieldNumber, Name: "Number", Group: "Numeric", DataType: DataNumber, Clipboard: true,
		Operators: []FilterOperator{OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpIDEqual}},
	{Type: FieldCheckbox, Name: "Toggle", Group: "Numeric", DataType: DataBoolean, InitialValue: false,
		Operators: []FilterOperator{OpEqual, OpNotEqual, OpIDEqual}},
	{Type: FieldJSON, Name: "JSON", Group: "Code", DataType: DataMap, Clipboard: true},
	{Type: FieldMultiSelect, Name: "Multi Select", Group: "Select", DataType: DataArray, InitialValue: []any{},
		Operators: []FilterOperator{OpArrayContains, OpArrayContainsAny, OpIDEqual}},
	{Type: FieldCreatedBy, Name: "Created By", Group: "Auditing", DataType: DataMap, ReadOnly: true},
}

// ensureTestFields registers testFields unless the fields package already did.
func ensureTestFields(t *testing.T) {
	t.Helper()
	testFieldsOnce.Do(func() {
		for _, def := range testFields {
			if _, ok := GetField(def.Type); !ok {
				RegisterField(def)
			}
		}
	})
}
