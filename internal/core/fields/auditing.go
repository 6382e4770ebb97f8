package fields

import "github.com/JonMunkholm/rowgrid/internal/core"

// Auditing fields read the _createdBy/_updatedBy stamps and are never edited.
func init() {
	for _, def := range []core.FieldDefinition{
		{Type: core.FieldCreatedAt, Name: "Created At", DataType: core.DataTimestamp, Operators: dateOperators},
		{Type: core.FieldUpdatedAt, Name: "Updated At", DataType: core.DataTimestamp, Operators: dateOperators},
		{Type: core.FieldCreatedBy, Name: "Created By", DataType: core.DataMap, Operators: []core.FilterOperator{core.OpIDEqual}},
		{Type: core.FieldUpdatedBy, Name: "Updated By", DataType: core.DataMap, Operators: []core.FilterOperator{core.OpIDEqual}},
		{Type: core.FieldID, Name: "Row ID", DataType: core.DataString, Operators: []core.FilterOperator{core.OpIDEqual}},
	} {
		def.Group = "Auditing"
		def.ReadOnly = true
		core.RegisterField(def)
	}
}
