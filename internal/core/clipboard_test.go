package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClipboardText(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, ""},
		{"string", "hello", "hello"},
		{"number", 42.5, "42.5"},
		{"map", map[string]any{"a": 1.0}, `{"a":1}`},
		{"list", []any{"x", "y"}, `["x","y"]`},
		{"bool", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClipboardText(tt.value)
			if err != nil {
				t.Fatalf("ClipboardText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ClipboardText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePaste(t *testing.T) {
	ensureTestFields(t)

	tests := []struct {
		name    string
		field   FieldType
		text    string
		want    any
		wantErr bool
	}{
		{"number", FieldNumber, " 12.5 ", 12.5, false},
		{"number empty is zero", FieldNumber, "", 0.0, false},
		{"number invalid", FieldNumber, "abc", nil, true},
		{"number NaN", FieldNumber, "NaN", nil, true},
		{"number Inf", FieldNumber, "Inf", nil, true},
		{"number Infinity", FieldNumber, "-Infinity", nil, true},
		{"number overflow", FieldNumber, "1e400", nil, true},
		{"string raw", FieldShortText, `{"a":1}`, `{"a":1}`, false},
		{"json object", FieldJSON, `{"a":1}`, map[string]any{"a": 1.0}, false},
		{"json invalid", FieldJSON, `{a`, nil, true},
		{"array", FieldMultiSelect, `["x"]`, []any{"x"}, false},
		{"boolean", FieldCheckbox, "true", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePaste(tt.field, tt.text)
			if tt.wantErr {
				var unsupported *UnsupportedFieldError
				if !errors.As(err, &unsupported) || !unsupported.Paste || unsupported.FieldType != tt.field {
					t.Errorf("ParsePaste() error = %v, want paste UnsupportedFieldError for %s", err, tt.field)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePaste() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParsePaste() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCanCopy(t *testing.T) {
	ensureTestFields(t)

	if !CanCopy(FieldShortText) {
		t.Error("CanCopy(SHORT_TEXT) = false, want true")
	}
	if CanCopy(FieldCheckbox) {
		t.Error("CanCopy(CHECK_BOX) = true, want false")
	}
	if CanCopy("UNKNOWN") {
		t.Error("CanCopy(UNKNOWN) = true, want false")
	}
}

func TestUnsupportedFieldError_Messages(t *testing.T) {
	copyErr := &UnsupportedFieldError{FieldType: FieldCheckbox}
	if got, want := copyErr.Error(), "CHECK_BOX field cannot be copied using keyboard shortcut"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	pasteErr := &UnsupportedFieldError{FieldType: FieldNumber, Paste: true}
	if got, want := pasteErr.Error(), "NUMBER field does not support the data type being pasted"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if n := NotificationFor(copyErr); n.Variant != NotifyInfo {
		t.Errorf("NotificationFor(copy).Variant = %q, want info", n.Variant)
	}
	if n := NotificationFor(pasteErr); n.Variant != NotifyError {
		t.Errorf("NotificationFor(paste).Variant = %q, want error", n.Variant)
	}
}
