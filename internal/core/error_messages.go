// Package core provides the validation engine for listing files.
//
// # Error Codes Reference
//
// This file defines the codes carried by findings and the user-friendly
// messages for fatal errors. Users can quote a code to support staff for
// faster diagnosis.
//
// # Finding Codes
//
// Structural findings (STR001-STR099):
//
//	STR001 - Column shift: every line has the same wrong number of columns
//	STR002 - Too few columns on one line
//	STR003 - Too many columns on one line
//
// Quoting and keys:
//
//	QUO001 - Value is not enclosed in quotes
//	DUP001 - Business key used on more than one line
//
// Field findings (VAL001-VAL099):
//
//	VAL001 - Mandatory field is empty
//	VAL002 - Not an integer
//	VAL003 - Not a number
//	VAL004 - Invalid date
//	VAL005 - Value not in the allowed list
//	VAL006 - Invalid postal code
//	VAL007 - Value too long
//
// Advisory findings:
//
//	ALN001 - Likely column misalignment (warning)
//	ERR001 - A line could not be checked
//
// # Fatal Errors
//
// Fatal errors abort a run; no partial report is produced.
//
//	SCH001 - Schema error: rule table or header resource is invalid
//	SCH002 - Unknown schema version
//	FILE001 - File too large
//	FILE003 - Encoding error: no candidate encoding decodes the file
//	FILE004 - No file provided
//	FILE005 - Empty file
//	UPL002 - Too many validations in progress
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//	RUN001 - Validation run not found
//	DB004  - Run history database unreachable
//	RATE001 - Too many requests
//	ERR000 - Unknown error
//
// # Matching
//
// Errors from this module are matched by identity (errors.Is and errors.As)
// first, since their text can carry user input such as file names. Anything
// else is matched case-insensitively against the patterns using
// strings.Contains; the first matching pattern wins.
package core

import (
	"context"
	"errors"
	"strings"

	"github.com/JonMunkholm/annonces/internal/schema"
)

// Finding codes.
const (
	CodeColumnShift       = "STR001"
	CodeTooFewColumns     = "STR002"
	CodeTooManyColumns    = "STR003"
	CodeNotQuoted         = "QUO001"
	CodeDuplicateKey      = "DUP001"
	CodeMandatoryEmpty    = "VAL001"
	CodeNotInteger        = "VAL002"
	CodeNotNumber         = "VAL003"
	CodeInvalidDate       = "VAL004"
	CodeNotAllowed        = "VAL005"
	CodeInvalidPostalCode = "VAL006"
	CodeTooLong           = "VAL007"
	CodeMisalignment      = "ALN001"
	CodeCheckFailed       = "ERR001"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// findingHelp maps finding codes to guidance shown next to the report.
var findingHelp = map[string]UserMessage{
	CodeColumnShift: {
		Message: "Every line has the wrong number of columns",
		Action:  "Check that the export uses the expected schema version",
		Code:    CodeColumnShift,
	},
	CodeTooFewColumns: {
		Message: "A line has too few columns",
		Action:  "Look for a truncated line or a missing delimiter",
		Code:    CodeTooFewColumns,
	},
	CodeTooManyColumns: {
		Message: "A line has too many columns",
		Action:  "Look for a delimiter inside a text value",
		Code:    CodeTooManyColumns,
	},
	CodeNotQuoted: {
		Message: "A value is not enclosed in quotes",
		Action:  "Enclose every value in double quotes",
		Code:    CodeNotQuoted,
	},
	CodeDuplicateKey: {
		Message: "A reference is used more than once",
		Action:  "Give every listing a unique reference",
		Code:    CodeDuplicateKey,
	},
	CodeMandatoryEmpty: {
		Message: "A mandatory field is empty",
		Action:  "Fill in every mandatory field",
		Code:    CodeMandatoryEmpty,
	},
	CodeNotInteger: {
		Message: "A field expects a whole number",
		Action:  "Use digits only, without sign or separators",
		Code:    CodeNotInteger,
	},
	CodeNotNumber: {
		Message: "A field expects a number",
		Action:  "Use digits with an optional comma or period as decimal separator",
		Code:    CodeNotNumber,
	},
	CodeInvalidDate: {
		Message: "A date has an invalid format",
		Action:  "Use the DD/MM/YYYY format with a real calendar date",
		Code:    CodeInvalidDate,
	},
	CodeNotAllowed: {
		Message: "A value is not in the allowed list",
		Action:  "Use one of the values listed in the finding",
		Code:    CodeNotAllowed,
	},
	CodeInvalidPostalCode: {
		Message: "A postal code is invalid",
		Action:  "Use exactly five digits",
		Code:    CodeInvalidPostalCode,
	},
	CodeTooLong: {
		Message: "A value is too long",
		Action:  "Shorten the value to the documented length",
		Code:    CodeTooLong,
	},
	CodeMisalignment: {
		Message: "Columns are likely shifted on this line",
		Action:  "Check the fields preceding this one for a missing or extra value",
		Code:    CodeMisalignment,
	},
	CodeCheckFailed: {
		Message: "A line could not be checked",
		Action:  "Contact support with the line number",
		Code:    CodeCheckFailed,
	},
}

// ExplainFinding returns guidance for a finding code.
func ExplainFinding(code string) (UserMessage, bool) {
	msg, ok := findingHelp[code]
	return msg, ok
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Schema Errors (SCH001-SCH002)
	// =========================================================================
	{
		pattern: "unknown schema",
		msg: UserMessage{
			Message: "Unknown schema version",
			Action:  "Choose one of the schema versions listed by /api/schemas",
			Code:    "SCH002",
		},
	},
	{
		pattern: "schema error",
		msg: UserMessage{
			Message: "The validation schema is invalid or incomplete",
			Action:  "Check the rule table and header resource configuration",
			Code:    "SCH001",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE005)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains characters that no supported encoding can read",
			Action:  "Save the file as UTF-8 or Windows-1252",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a listing file to validate",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with at least one listing",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Upload Errors (UPL002-UPL005)
	// =========================================================================
	{
		pattern: "too many concurrent",
		msg: UserMessage{
			Message: "System is busy validating other files",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	// =========================================================================
	// Run History (RUN001, DB004)
	// =========================================================================
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Validation run not found",
			Action:  "The run may have expired. Please validate the file again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the run history database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If nothing matches, a generic fallback with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if code, ok := typedCode(err); ok {
		return messageFor(code)
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// typedCode returns the code of a known error found in err's chain.
// Timeouts and cancellation are checked first: they abort whatever was
// running and say the most about the failure.
func typedCode(err error) (string, bool) {
	var (
		encErr    *EncodingError
		schemaErr *schema.SchemaError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "UPL005", true
	case errors.Is(err, context.Canceled):
		return "UPL004", true
	case errors.Is(err, ErrUnknownSchema):
		return "SCH002", true
	case errors.As(err, &schemaErr):
		return "SCH001", true
	case errors.Is(err, ErrFileTooLarge):
		return "FILE001", true
	case errors.As(err, &encErr):
		return "FILE003", true
	case errors.Is(err, ErrEmptyFile):
		return "FILE005", true
	case errors.Is(err, ErrTooManyUploads):
		return "UPL002", true
	case errors.Is(err, ErrRunNotFound):
		return "RUN001", true
	}
	return "", false
}

// messageFor returns the pattern message carrying code.
func messageFor(code string) UserMessage {
	for _, ep := range errorPatterns {
		if ep.msg.Code == code {
			return ep.msg
		}
	}
	return defaultMessage
}

// IsUserFacing reports whether err maps to a known message rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil; an err
// that already is a UserError is returned as is.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
