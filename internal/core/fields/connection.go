package fields

import "github.com/JonMunkholm/rowgrid/internal/core"

func init() {
	core.RegisterField(core.FieldDefinition{
		Type:      core.FieldArraySubTable,
		Name:      "Array Sub Table",
		Group:     "Connection",
		DataType:  core.DataUndefined,
		Operators: []core.FilterOperator{core.OpIDEqual},
	})
}
