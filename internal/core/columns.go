package core

import (
	"fmt"
	"slices"
)

// OrderedColumns returns the schema's columns sorted by Index.
// Ties keep key order so the result is deterministic.
func OrderedColumns(schema TableSchema) []ColumnConfig {
	cols := make([]ColumnConfig, 0, len(schema.Columns))
	for _, c := range schema.Columns {
		cols = append(cols, c)
	}
	slices.SortStableFunc(cols, func(a, b ColumnConfig) int {
		if a.Index != b.Index {
			return a.Index - b.Index
		}
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return cols
}

// VisibleColumns drops columns hidden in the schema or by the user.
func VisibleColumns(ordered []ColumnConfig, hiddenFields []string) []ColumnConfig {
	return slices.DeleteFunc(slices.Clone(ordered), func(c ColumnConfig) bool {
		return c.Hidden || slices.Contains(hiddenFields, c.Key)
	})
}

// ReindexColumns converts an ordered column array back into the schema
// columns map. Index is always the array position; any stale value is ignored.
func ReindexColumns(cols []ColumnConfig) map[string]ColumnConfig {
	out := make(map[string]ColumnConfig, len(cols))
	for i, c := range cols {
		c.Index = i
		out[c.Key] = c
	}
	return out
}

// ReorderColumns orders the columns by keys. Every existing column must be
// listed exactly once.
func ReorderColumns(ordered []ColumnConfig, keys []string) ([]ColumnConfig, error) {
	if len(keys) != len(ordered) {
		return nil, fmt.Errorf("reorder columns: got %d keys for %d columns", len(keys), len(ordered))
	}
	byKey := make(map[string]ColumnConfig, len(ordered))
	for _, c := range ordered {
		byKey[c.Key] = c
	}
	out := make([]ColumnConfig, 0, len(keys))
	for _, k := range keys {
		c, ok := byKey[k]
		if !ok {
			return nil, fmt.Errorf("reorder columns: %w: %s", ErrColumnNotFound, k)
		}
		delete(byKey, k)
		out = append(out, c)
	}
	return out, nil
}

// MoveColumn moves the column key to position index (clamped).
func MoveColumn(ordered []ColumnConfig, key string, index int) ([]ColumnConfig, error) {
	from := slices.IndexFunc(ordered, func(c ColumnConfig) bool { return c.Key == key })
	if from < 0 {
		return nil, fmt.Errorf("move column: %w: %s", ErrColumnNotFound, key)
	}
	col := ordered[from]
	out := slices.Delete(slices.Clone(ordered), from, from+1)
	index = min(max(index, 0), len(out))
	return slices.Insert(out, index, col), nil
}

// InsertColumn adds col at index (clamped). The key must be new.
func InsertColumn(ordered []ColumnConfig, col ColumnConfig, index int) ([]ColumnConfig, error) {
	if col.Key == "" {
		return nil, fmt.Errorf("insert column: empty key")
	}
	if slices.ContainsFunc(ordered, func(c ColumnConfig) bool { return c.Key == col.Key }) {
		return nil, fmt.Errorf("insert column: duplicate key %s", col.Key)
	}
	if col.FieldName == "" {
		col.FieldName = col.Key
	}
	index = min(max(index, 0), len(ordered))
	return slices.Insert(slices.Clone(ordered), index, col), nil
}

// RemoveColumn drops the column key.
func RemoveColumn(ordered []ColumnConfig, key string) ([]ColumnConfig, error) {
	from := slices.IndexFunc(ordered, func(c ColumnConfig) bool { return c.Key == key })
	if from < 0 {
		return nil, fmt.Errorf("remove column: %w: %s", ErrColumnNotFound, key)
	}
	return slices.Delete(slices.Clone(ordered), from, from+1), nil
}
