package core

// rows.go holds the local row buffer reducer and the merge with listener rows.
//
// The local buffer carries rows that are out of order or not yet confirmed by
// the listener. The merged view is [local..., db...] de-duplicated by path
// (first occurrence wins, so local edits shadow listener rows) and sorted by
// path. User-facing ordering comes from the listener query, not from here.

import (
	"fmt"
	"slices"
	"strings"
)

// LocalRowAction is one of SetRows, AddRows, UpdateRow or DeleteRows.
type LocalRowAction interface {
	localRowAction()
}

// SetRows overwrites the whole local buffer.
type SetRows struct {
	Rows []Row
}

// AddRows prepends rows to the local buffer.
type AddRows struct {
	Rows []Row
}

// UpdateRow merges Fields into the row at Path after removing DeleteFields.
type UpdateRow struct {
	Path         string
	Fields       map[string]any
	DeleteFields []string
}

// DeleteRows removes rows by path.
type DeleteRows struct {
	Paths []string
}

func (SetRows) localRowAction()    {}
func (AddRows) localRowAction()    {}
func (UpdateRow) localRowAction()  {}
func (DeleteRows) localRowAction() {}

// ReduceLocalRows applies action to prev and returns the new buffer.
// prev is never modified.
func ReduceLocalRows(prev []Row, action LocalRowAction) []Row {
	switch a := action.(type) {
	case SetRows:
		return slices.Clone(a.Rows)

	case AddRows:
		out := make([]Row, 0, len(a.Rows)+len(prev))
		out = append(out, a.Rows...)
		return append(out, prev...)

	case UpdateRow:
		index := slices.IndexFunc(prev, func(r Row) bool { return r.Ref.Path == a.Path })
		if index == -1 {
			synthesized := Row{Ref: RefFromPath(a.Path), Fields: cloneMap(a.Fields)}
			if synthesized.Fields == nil {
				synthesized.Fields = map[string]any{}
			}
			out := make([]Row, 0, len(prev)+1)
			out = append(out, synthesized)
			return append(out, prev...)
		}

		out := slices.Clone(prev)
		fields := cloneMap(prev[index].Fields)
		for _, field := range a.DeleteFields {
			unsetPath(fields, field)
		}
		out[index] = Row{Ref: prev[index].Ref, Fields: UpdateRowData(fields, a.Fields)}
		return out

	case DeleteRows:
		return slices.DeleteFunc(slices.Clone(prev), func(r Row) bool {
			return slices.Contains(a.Paths, r.Ref.Path)
		})
	}

	panic(fmt.Sprintf("core: invalid local row action %T", action))
}

// MergeRows combines the local buffer with the listener rows.
func MergeRows(local, db []Row) []Row {
	seen := make(map[string]struct{}, len(local)+len(db))
	merged := make([]Row, 0, len(local)+len(db))
	for _, rows := range [][]Row{local, db} {
		for _, r := range rows {
			if _, dup := seen[r.Ref.Path]; dup {
				continue
			}
			seen[r.Ref.Path] = struct{}{}
			merged = append(merged, r)
		}
	}
	slices.SortStableFunc(merged, func(a, b Row) int {
		return strings.Compare(a.Ref.Path, b.Ref.Path)
	})
	return merged
}

// FindRow returns the row with the given path.
func FindRow(rows []Row, path string) (Row, bool) {
	i := slices.IndexFunc(rows, func(r Row) bool { return r.Ref.Path == path })
	if i < 0 {
		return Row{}, false
	}
	return rows[i], true
}

// UpdateRowData deep-assigns update onto row and returns the result.
// Nested maps merge key by key and arrays merge by index, so fields absent
// from update survive. Neither argument is modified.
func UpdateRowData(row, update map[string]any) map[string]any {
	out := cloneMap(row)
	if out == nil {
		out = make(map[string]any, len(update))
	}
	for k, v := range update {
		out[k] = deepAssign(out[k], v)
	}
	return out
}

func deepAssign(dst, src any) any {
	switch s := src.(type) {
	case map[string]any:
		d, ok := dst.(map[string]any)
		if !ok {
			return cloneValue(s)
		}
		return UpdateRowData(d, s)

	case []any:
		d, ok := dst.([]any)
		if !ok {
			return cloneValue(s)
		}
		out := make([]any, max(len(d), len(s)))
		for i := range out {
			switch {
			case i < len(s) && i < len(d):
				out[i] = deepAssign(d[i], s[i])
			case i < len(s):
				out[i] = cloneValue(s[i])
			default:
				out[i] = cloneValue(d[i])
			}
		}
		return out
	}
	return src
}

// GetPath reads a dotted field path from fields.
func GetPath(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// nestPath expands a dotted field path into nested maps holding value.
func nestPath(path string, value any) map[string]any {
	parts := strings.Split(path, ".")
	out := map[string]any{parts[len(parts)-1]: value}
	for i := len(parts) - 2; i >= 0; i-- {
		out = map[string]any{parts[i]: out}
	}
	return out
}

// unsetPath removes a dotted field path from fields in place.
func unsetPath(fields map[string]any, path string) {
	parts := strings.Split(path, ".")
	cur := fields
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
