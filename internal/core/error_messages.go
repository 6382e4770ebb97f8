package core

// # Error Codes Reference
//
// User-facing messages with codes for support reference. Sentinel errors are
// matched first with errors.Is / errors.As; anything else falls back to
// case-insensitive substring patterns on the error text.
//
// # Permission Errors (PERM001-PERM099)
//
//	PERM001 - Permission denied: the document store rejected the write
//	          Action: Ask a project admin for access to this table
//	          Match: ErrPermissionDenied, "permission denied", "insufficient privilege"
//
//	PERM002 - Read-only table: only admins may edit this table
//	          Action: Ask a project admin to make the change
//	          Match: ErrReadOnlyTable
//
// # Filter Errors (FLT001-FLT099)
//
//	FLT001 - Filters locked: table filters cannot be changed
//	         Action: Ask a project admin to change the table filters
//	         Match: ErrFiltersForbidden
//
//	FLT002 - Invalid filter: operator or column not supported
//	         Action: Pick an operator offered for the column type
//	         Match: *ValidationError
//
// # Clipboard Errors (CLIP001-CLIP099)
//
//	CLIP001 - Clipboard denied: the clipboard could not be read
//	          Action: Allow clipboard access and try again
//	          Match: ErrClipboardPermission
//
//	CLIP002 - Unsupported field: the field type does not support the action
//	          Action: Edit the cell directly
//	          Match: *UnsupportedFieldError
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Table not found: the table does not exist or is hidden
//	         Match: ErrTableNotFound
//
//	TBL002 - Session expired: the table session was closed
//	         Match: ErrSessionNotFound, ErrSessionClosed
//
//	TBL003 - Column not found
//	         Match: ErrColumnNotFound
//
//	TBL004 - Row not found
//	         Match: ErrRowNotFound
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused: "connection refused"
//	DB002 - Connection reset: "connection reset"
//	DB003 - Timeout: "timeout", "context deadline exceeded"
//	DB004 - Cancelled: "context canceled"
//
// # Rate Limiting (RATE001-RATE002)
//
//	RATE001 - Too many requests: "rate limit"
//	RATE002 - Write slots exhausted: ErrTooManyWrites
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application logs for the
// technical error when a user reports ERR000.

import (
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// PermissionDeniedMessage is shown when a write is rejected.
const PermissionDeniedMessage = "You don't have permissions to make this change"

// ClipboardDeniedMessage is shown when the clipboard cannot be read.
const ClipboardDeniedMessage = "Read clilboard permission denied."

// sentinelMessage maps a sentinel error to its user message.
type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrPermissionDenied, UserMessage{
		Message: PermissionDeniedMessage,
		Action:  "Ask a project admin for access to this table",
		Code:    "PERM001",
	}},
	{ErrReadOnlyTable, UserMessage{
		Message: "This table is read-only",
		Action:  "Ask a project admin to make the change",
		Code:    "PERM002",
	}},
	{ErrFiltersForbidden, UserMessage{
		Message: "Table filters cannot be changed",
		Action:  "Ask a project admin to change the table filters",
		Code:    "FLT001",
	}},
	{ErrClipboardPermission, UserMessage{
		Message: ClipboardDeniedMessage,
		Action:  "Allow clipboard access and try again",
		Code:    "CLIP001",
	}},
	{ErrTableNotFound, UserMessage{
		Message: "Table not found",
		Action:  "Verify the table exists and you have access to it",
		Code:    "TBL001",
	}},
	{ErrSessionNotFound, UserMessage{
		Message: "Table session expired",
		Action:  "Reload the table",
		Code:    "TBL002",
	}},
	{ErrSessionClosed, UserMessage{
		Message: "Table session expired",
		Action:  "Reload the table",
		Code:    "TBL002",
	}},
	{ErrTooManyWrites, UserMessage{
		Message: "The server is busy saving other changes",
		Action:  "Please try again in a few seconds",
		Code:    "RATE002",
	}},
	{ErrColumnNotFound, UserMessage{
		Message: "Column not found",
		Action:  "Reload the table to pick up schema changes",
		Code:    "TBL003",
	}},
	{ErrRowNotFound, UserMessage{
		Message: "Row not found",
		Action:  "The row may have been deleted. Reload the table",
		Code:    "TBL004",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "permission denied",
		msg:     sentinelMessages[0].msg,
	},
	{
		pattern: "insufficient privilege",
		msg:     sentinelMessages[0].msg,
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("update row: %w", ErrPermissionDenied))
//	// msg.Code == "PERM001"
//	// msg.Message == "You don't have permissions to make this change"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var unsupported *UnsupportedFieldError
	if errors.As(err, &unsupported) {
		return UserMessage{
			Message: unsupported.Error(),
			Action:  "Edit the cell directly",
			Code:    "CLIP002",
		}
	}
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return UserMessage{
			Message: invalid.Error(),
			Action:  "Pick an operator offered for the column type",
			Code:    "FLT002",
		}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}
