package fields

import "github.com/JonMunkholm/rowgrid/internal/core"

func init() {
	core.RegisterField(core.FieldDefinition{
		Type:         core.FieldCode,
		Name:         "Code",
		Group:        "Code",
		DataType:     core.DataString,
		InitialValue: "",
		Operators:    textOperators,
	})
	core.RegisterField(core.FieldDefinition{
		Type:      core.FieldJSON,
		Name:      "JSON",
		Group:     "Code",
		DataType:  core.DataMap,
		Operators: []core.FilterOperator{core.OpIDEqual},
		Clipboard: true,
	})
}
