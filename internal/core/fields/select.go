package fields

import "github.com/JonMunkholm/rowgrid/internal/core"

func init() {
	core.RegisterField(core.FieldDefinition{
		Type:      core.FieldSingleSelect,
		Name:      "Single Select",
		Group:     "Select",
		DataType:  core.DataString,
		Operators: textOperators,
	})
	core.RegisterField(core.FieldDefinition{
		Type:         core.FieldMultiSelect,
		Name:         "Multi Select",
		Group:        "Select",
		DataType:     core.DataArray,
		InitialValue: []any{},
		Operators:    arrayOperators,
	})
}
