package core

import (
	"fmt"
	"sort"
	"sync"
)

// DataType is how a field's value is represented in the document.
type DataType string

const (
	DataString    DataType = "string"
	DataNumber    DataType = "number"
	DataBoolean   DataType = "boolean"
	DataTimestamp DataType = "timestamp"
	DataArray     DataType = "array"
	DataMap       DataType = "map"
	DataUndefined DataType = "undefined"
)

// FieldDefinition is the registered behaviour of a field type.
type FieldDefinition struct {
	Type         FieldType
	Name         string
	Group        string
	DataType     DataType
	InitialValue any
	Operators    []FilterOperator
	// Clipboard enables keyboard copy and cut for the type.
	Clipboard bool
	// ReadOnly types are written by the system, never by cell edits.
	ReadOnly bool
}

var (
	fieldRegistry   = make(map[FieldType]FieldDefinition)
	fieldRegistryMu sync.RWMutex
)

// RegisterField adds a field definition to the registry.
// Panics if the type is already registered.
func RegisterField(def FieldDefinition) {
	fieldRegistryMu.Lock()
	defer fieldRegistryMu.Unlock()

	if _, exists := fieldRegistry[def.Type]; exists {
		panic(fmt.Sprintf("field type already registered: %s", def.Type))
	}
	fieldRegistry[def.Type] = def
}

// GetField returns a field definition by type.
func GetField(t FieldType) (FieldDefinition, bool) {
	fieldRegistryMu.RLock()
	defer fieldRegistryMu.RUnlock()

	def, ok := fieldRegistry[t]
	return def, ok
}

// AllFields returns all field definitions, sorted by group then type.
func AllFields() []FieldDefinition {
	fieldRegistryMu.RLock()
	defer fieldRegistryMu.RUnlock()

	result := make([]FieldDefinition, 0, len(fieldRegistry))
	for _, def := range fieldRegistry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Type < result[j].Type
	})
	return result
}

// FieldCount returns the number of registered field types.
func FieldCount() int {
	fieldRegistryMu.RLock()
	defer fieldRegistryMu.RUnlock()
	return len(fieldRegistry)
}

// defaultOperators applies to unregistered types.
var defaultOperators = []FilterOperator{OpEqual, OpNotEqual, OpIDEqual}

// OperatorsFor returns the filter operators allowed for a field type.
func OperatorsFor(t FieldType) []FilterOperator {
	if def, ok := GetField(t); ok && len(def.Operators) > 0 {
		return def.Operators
	}
	return defaultOperators
}

// DataTypeOf returns the registered data type, DataUndefined if unknown.
func DataTypeOf(t FieldType) DataType {
	if def, ok := GetField(t); ok {
		return def.DataType
	}
	return DataUndefined
}
