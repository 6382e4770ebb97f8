package fields

import "github.com/JonMunkholm/rowgrid/internal/core"

func init() {
	core.RegisterField(core.FieldDefinition{
		Type:      core.FieldNumber,
		Name:      "Number",
		Group:     "Numeric",
		DataType:  core.DataNumber,
		Operators: numberOperators,
		Clipboard: true,
	})
	core.RegisterField(core.FieldDefinition{
		Type:      core.FieldPercentage,
		Name:      "Percentage",
		Group:     "Numeric",
		DataType:  core.DataNumber,
		Operators: numberOperators,
		Clipboard: true,
	})
	core.RegisterField(core.FieldDefinition{
		Type:         core.FieldCheckbox,
		Name:         "Toggle",
		Group:        "Numeric",
		DataType:     core.DataBoolean,
		InitialValue: false,
		Operators:    []core.FilterOperator{core.OpEqual, core.OpNotEqual, core.OpIDEqual},
	})
}
