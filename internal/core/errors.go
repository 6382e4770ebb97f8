package core

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned by a DocumentStore when the caller may
	// not write the document.
	ErrPermissionDenied = errors.New("permission denied")

	ErrTableNotFound   = errors.New("table not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrColumnNotFound  = errors.New("column not found")
	ErrRowNotFound     = errors.New("row not found")

	// ErrFiltersForbidden is returned when a user edits filters the panel
	// shows read-only.
	ErrFiltersForbidden = errors.New("filters are read-only")

	// ErrReadOnlyTable is returned for edits to a read-only table by a
	// non-admin.
	ErrReadOnlyTable = errors.New("table is read-only")

	// ErrClipboardPermission is returned when the clipboard cannot be read.
	ErrClipboardPermission = errors.New("clipboard read denied")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// ValidationError reports a value or operator a field type does not accept.
type ValidationError struct {
	Field     string
	FieldType FieldType
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.FieldType == "" {
		return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s field %s: %s", e.FieldType, e.Field, e.Reason)
}

// UnsupportedFieldError is returned when a clipboard action targets a field
// type that does not support it.
type UnsupportedFieldError struct {
	FieldType FieldType
	Paste     bool
}

func (e *UnsupportedFieldError) Error() string {
	if e.Paste {
		return fmt.Sprintf("%s field does not support the data type being pasted", e.FieldType)
	}
	return fmt.Sprintf("%s field cannot be copied using keyboard shortcut", e.FieldType)
}
