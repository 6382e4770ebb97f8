package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Clipboard is the user's system clipboard. ReadText returns an error
// wrapping ErrClipboardPermission when access is refused.
type Clipboard interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, text string) error
}

// CanCopy reports whether keyboard copy and cut are enabled for t.
func CanCopy(t FieldType) bool {
	def, ok := GetField(t)
	return ok && def.Clipboard
}

// ClipboardText renders a cell value for the clipboard. Empty values become
// the empty string; non-strings are written as JSON.
func ClipboardText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode clipboard value: %w", err)
	}
	return string(b), nil
}

// ParsePaste converts clipboard text to a value for a field of type t.
// Number fields require a numeric string, string fields take the text as-is
// and everything else must be valid JSON.
func ParsePaste(t FieldType, text string) (any, error) {
	switch DataTypeOf(t) {
	case DataNumber:
		s := strings.TrimSpace(text)
		if s == "" {
			return float64(0), nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, &UnsupportedFieldError{FieldType: t, Paste: true}
		}
		return n, nil
	case DataString:
		return text, nil
	}
	if !gjson.Valid(text) {
		return nil, &UnsupportedFieldError{FieldType: t, Paste: true}
	}
	return gjson.Parse(text).Value(), nil
}

// MemoryClipboard is a process-local Clipboard.
type MemoryClipboard struct {
	Text string
	// Denied makes ReadText fail with ErrClipboardPermission.
	Denied bool
}

func (c *MemoryClipboard) ReadText(context.Context) (string, error) {
	if c.Denied {
		return "", ErrClipboardPermission
	}
	return c.Text, nil
}

func (c *MemoryClipboard) WriteText(_ context.Context, text string) error {
	c.Text = text
	return nil
}
