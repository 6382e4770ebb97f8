package docstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// fieldPath splits a dotted field key into a Postgres text[] path.
func fieldPath(key string) []string {
	return strings.Split(key, ".")
}

func jsonArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode filter value: %w", err)
	}
	return string(b), nil
}

// timestampExpr reads a field as timestamptz. Strings are parsed, timestamp
// maps use their seconds; anything else is NULL.
func timestampExpr(pathArg int) string {
	field := fmt.Sprintf("(data #> $%d)", pathArg)
	return fmt.Sprintf("(CASE jsonb_typeof(%[1]s)"+
		" WHEN 'string' THEN (%[1]s #>> '{}')::timestamptz"+
		" WHEN 'object' THEN to_timestamp(COALESCE(%[1]s ->> 'seconds', %[1]s ->> '_seconds')::double precision)"+
		" END)", field)
}

// buildSingleFilter generates SQL for a single filter.
func buildSingleFilter(f core.Filter, argIdx int) (string, []any, int, error) {
	if f.Operator == core.OpIDEqual {
		id, ok := f.Value.(string)
		if !ok {
			return "", nil, argIdx, fmt.Errorf("id filter value must be a string")
		}
		return fmt.Sprintf("id = $%d", argIdx), []any{id}, argIdx + 1, nil
	}

	path := fieldPath(f.Key)
	field := fmt.Sprintf("(data #> $%d)", argIdx)

	switch f.Operator {
	case core.OpDateEqual, core.OpDateBefore, core.OpDateAfter, core.OpDateBeforeEqual, core.OpDateAfterEqual:
		want, err := normalize(f.Value)
		if err != nil {
			return "", nil, argIdx, err
		}
		day, ok := toTime(want)
		if !ok {
			return "", nil, argIdx, fmt.Errorf("date filter on %s: unreadable value", f.Key)
		}
		start, end := dayBounds(day)
		ts := timestampExpr(argIdx)
		var cond string
		switch f.Operator {
		case core.OpDateEqual:
			cond = fmt.Sprintf("%s >= $%d AND %s < $%d", ts, argIdx+1, ts, argIdx+2)
			return "(" + cond + ")", []any{path, start, end}, argIdx + 3, nil
		case core.OpDateBefore:
			cond = fmt.Sprintf("%s < $%d", ts, argIdx+1)
			return cond, []any{path, start}, argIdx + 2, nil
		case core.OpDateAfter:
			cond = fmt.Sprintf("%s >= $%d", ts, argIdx+1)
			return cond, []any{path, end}, argIdx + 2, nil
		case core.OpDateBeforeEqual:
			cond = fmt.Sprintf("%s < $%d", ts, argIdx+1)
			return cond, []any{path, end}, argIdx + 2, nil
		default:
			cond = fmt.Sprintf("%s >= $%d", ts, argIdx+1)
			return cond, []any{path, start}, argIdx + 2, nil
		}
	}

	value, err := jsonArg(f.Value)
	if err != nil {
		return "", nil, argIdx, err
	}
	v := fmt.Sprintf("$%d::jsonb", argIdx+1)
	args := []any{path, value}
	next := argIdx + 2

	switch f.Operator {
	case core.OpEqual:
		return fmt.Sprintf("%s = %s", field, v), args, next, nil
	case core.OpNotEqual:
		return fmt.Sprintf("(%s IS NOT NULL AND %s <> %s)", field, field, v), args, next, nil
	case core.OpLess, core.OpLessEqual, core.OpGreater, core.OpGreaterEqual:
		return fmt.Sprintf("(jsonb_typeof(%s) = jsonb_typeof(%s) AND %s %s %s)", field, v, field, f.Operator, v),
			args, next, nil
	case core.OpIn:
		return fmt.Sprintf("%s @> jsonb_build_array(%s)", v, field), args, next, nil
	case core.OpNotIn:
		return fmt.Sprintf("(%s IS NOT NULL AND NOT %s @> jsonb_build_array(%s))", field, v, field), args, next, nil
	case core.OpArrayContains:
		return fmt.Sprintf("(jsonb_typeof(%s) = 'array' AND %s @> jsonb_build_array(%s))", field, field, v),
			args, next, nil
	case core.OpArrayContainsAny:
		return fmt.Sprintf("(jsonb_typeof(%s) = 'array' AND EXISTS (SELECT 1 FROM jsonb_array_elements(%s) e WHERE %s @> jsonb_build_array(e)))",
			field, v, field), args, next, nil
	default:
		return "", nil, argIdx, fmt.Errorf("unsupported filter operator %q", f.Operator)
	}
}

// buildQuery generates the SELECT for a document query.
func buildQuery(q core.Query) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	if q.CollectionGroup {
		where = append(where, "collection_id = $1")
		args = append(args, collectionID(q.Collection))
	} else {
		where = append(where, "collection = $1")
		args = append(args, q.Collection)
	}
	argIdx := 2

	var conds []string
	for _, f := range q.Filters {
		cond, fargs, next, err := buildSingleFilter(f, argIdx)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, fargs...)
		argIdx = next
	}
	if len(conds) > 0 {
		sep := " AND "
		if q.Join == core.JoinOr {
			sep = " OR "
		}
		where = append(where, "("+strings.Join(conds, sep)+")")
	}

	var orderParts []string
	for _, o := range q.Orders {
		field := fmt.Sprintf("(data #> $%d)", argIdx)
		args = append(args, fieldPath(o.Key))
		argIdx++
		where = append(where, field+" IS NOT NULL")
		dir := "ASC"
		if o.Direction == core.SortDesc {
			dir = "DESC"
		}
		orderParts = append(orderParts, field+" "+dir)
	}
	orderParts = append(orderParts, "path ASC")

	sql := "SELECT path, id, data FROM documents WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + strings.Join(orderParts, ", ")
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, q.Limit)
	}
	return sql, args, nil
}
