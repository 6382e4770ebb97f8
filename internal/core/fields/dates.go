package fields

import "github.com/JonMunkholm/rowgrid/internal/core"

func init() {
	core.RegisterField(core.FieldDefinition{
		Type:      core.FieldDate,
		Name:      "Date",
		Group:     "Date & Time",
		DataType:  core.DataTimestamp,
		Operators: dateOperators,
	})
	core.RegisterField(core.FieldDefinition{
		Type:      core.FieldDateTime,
		Name:      "Date & Time",
		Group:     "Date & Time",
		DataType:  core.DataTimestamp,
		Operators: dateOperators,
	})
}
