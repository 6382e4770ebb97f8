// Package fields registers all field type definitions with the core registry.
// Import this package to ensure all field types are registered.
package fields

import "github.com/JonMunkholm/rowgrid/internal/core"

// Operator sets shared by several field types.
var (
	textOperators = []core.FilterOperator{
		core.OpEqual, core.OpNotEqual, core.OpIn, core.OpNotIn, core.OpIDEqual,
	}
	numberOperators = []core.FilterOperator{
		core.OpEqual, core.OpNotEqual,
		core.OpLess, core.OpLessEqual, core.OpGreater, core.OpGreaterEqual,
		core.OpIn, core.OpNotIn, core.OpIDEqual,
	}
	dateOperators = []core.FilterOperator{
		core.OpDateEqual, core.OpDateBefore, core.OpDateAfter,
		core.OpDateBeforeEqual, core.OpDateAfterEqual, core.OpIDEqual,
	}
	arrayOperators = []core.FilterOperator{
		core.OpArrayContains, core.OpArrayContainsAny, core.OpIDEqual,
	}
)
