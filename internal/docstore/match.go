package docstore

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// normalize converts a Go value into its JSON form (float64 numbers, []any
// arrays, map[string]any objects).
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

// normalizeDoc normalizes a document map.
func normalizeDoc(doc map[string]any) (map[string]any, error) {
	if doc == nil {
		return map[string]any{}, nil
	}
	v, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// matchFilters evaluates q's filters against one document.
func matchFilters(q core.Query, id string, doc map[string]any) bool {
	if len(q.Filters) == 0 {
		return true
	}
	or := q.Join == core.JoinOr
	for _, f := range q.Filters {
		ok := matchFilter(f, id, doc)
		if or && ok {
			return true
		}
		if !or && !ok {
			return false
		}
	}
	return !or
}

func matchFilter(f core.Filter, id string, doc map[string]any) bool {
	if f.Operator == core.OpIDEqual {
		s, ok := f.Value.(string)
		return ok && s == id
	}

	want, err := normalize(f.Value)
	if err != nil {
		return false
	}
	got, present := fieldValue(doc, f.Key)
	if !present {
		return false
	}

	switch f.Operator {
	case core.OpEqual:
		return equalJSON(got, want)
	case core.OpNotEqual:
		return !equalJSON(got, want)
	case core.OpLess, core.OpLessEqual, core.OpGreater, core.OpGreaterEqual:
		c, ok := compareJSON(got, want)
		if !ok {
			return false
		}
		switch f.Operator {
		case core.OpLess:
			return c < 0
		case core.OpLessEqual:
			return c <= 0
		case core.OpGreater:
			return c > 0
		}
		return c >= 0
	case core.OpIn, core.OpNotIn:
		list, ok := want.([]any)
		if !ok {
			return false
		}
		in := slices.ContainsFunc(list, func(v any) bool { return equalJSON(got, v) })
		return in == (f.Operator == core.OpIn)
	case core.OpArrayContains:
		arr, ok := got.([]any)
		return ok && slices.ContainsFunc(arr, func(v any) bool { return equalJSON(v, want) })
	case core.OpArrayContainsAny:
		arr, ok := got.([]any)
		list, listOK := want.([]any)
		if !ok || !listOK {
			return false
		}
		return slices.ContainsFunc(arr, func(v any) bool {
			return slices.ContainsFunc(list, func(w any) bool { return equalJSON(v, w) })
		})
	case core.OpDateEqual, core.OpDateBefore, core.OpDateAfter, core.OpDateBeforeEqual, core.OpDateAfterEqual:
		t, ok := toTime(got)
		if !ok {
			return false
		}
		day, ok := toTime(want)
		if !ok {
			return false
		}
		start, end := dayBounds(day)
		switch f.Operator {
		case core.OpDateEqual:
			return !t.Before(start) && t.Before(end)
		case core.OpDateBefore:
			return t.Before(start)
		case core.OpDateAfter:
			return !t.Before(end)
		case core.OpDateBeforeEqual:
			return t.Before(end)
		}
		return !t.Before(start)
	}
	return false
}

func equalJSON(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

// compareJSON orders two values of the same JSON type. Mixed types do not
// compare.
func compareJSON(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// toTime reads an RFC 3339 string or a {seconds|_seconds} timestamp map.
func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
	case map[string]any:
		for _, key := range []string{"seconds", "_seconds"} {
			if s, ok := t[key].(float64); ok {
				return time.Unix(int64(s), 0).UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// dayBounds returns the UTC start of t's day and the start of the next day.
func dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// docEntry is a stored document with its identity.
type docEntry struct {
	path string
	id   string
	data map[string]any
}

// sortEntries orders entries by q.Orders, then by path. Entries missing an
// order field are dropped.
func sortEntries(q core.Query, entries []docEntry) []docEntry {
	if len(q.Orders) > 0 {
		entries = slices.DeleteFunc(entries, func(e docEntry) bool {
			for _, o := range q.Orders {
				if _, ok := fieldValue(e.data, o.Key); !ok {
					return true
				}
			}
			return false
		})
	}
	slices.SortStableFunc(entries, func(a, b docEntry) int {
		for _, o := range q.Orders {
			av, _ := fieldValue(a.data, o.Key)
			bv, _ := fieldValue(b.data, o.Key)
			c, ok := compareJSON(av, bv)
			if !ok || c == 0 {
				continue
			}
			if o.Direction == core.SortDesc {
				return -c
			}
			return c
		}
		return strings.Compare(a.path, b.path)
	})
	return entries
}
