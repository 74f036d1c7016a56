package errors

import "sort"

// ErrorCode represents a unique identifier for error types.
// Codes are organized by category:
//   - E1xxx: Parse errors
//   - E2xxx: Compile errors
//   - E3xxx: Render errors
type ErrorCode string

const (
	// Parse errors (E1xxx)
	E1001 ErrorCode = "E1001" // Unexpected token
	E1002 ErrorCode = "E1002" // Unterminated string literal
	E1003 ErrorCode = "E1003" // Invalid token
	E1004 ErrorCode = "E1004" // Mismatched close tag
	E1005 ErrorCode = "E1005" // Invalid path
	E1006 ErrorCode = "E1006" // Invalid block
	E1007 ErrorCode = "E1007" // Unclosed delimiter

	// Compile errors (E2xxx)
	E2001 ErrorCode = "E2001" // Unknown node type
	E2002 ErrorCode = "E2002" // Too many partial parameters
	E2003 ErrorCode = "E2003" // Unknown helper with knownHelpersOnly
	E2004 ErrorCode = "E2004" // Invalid compile input
	E2005 ErrorCode = "E2005" // Internal compiler error

	// Render errors (E3xxx)
	E3001 ErrorCode = "E3001" // Missing helper
	E3002 ErrorCode = "E3002" // Missing partial
	E3003 ErrorCode = "E3003" // Undefined property in strict mode
	E3004 ErrorCode = "E3004" // Revision mismatch
	E3005 ErrorCode = "E3005" // Nil reference
	E3006 ErrorCode = "E3006" // Missing decorator
	E3007 ErrorCode = "E3007" // Value is not callable
	E3008 ErrorCode = "E3008" // Helper failed
	E3009 ErrorCode = "E3009" // Partial compile failure
)

// codeDescriptions maps error codes to their short descriptions.
var codeDescriptions = map[ErrorCode]string{
	E1001: "unexpected token",
	E1002: "unterminated string literal",
	E1003: "invalid token",
	E1004: "mismatched close tag",
	E1005: "invalid path",
	E1006: "invalid block",
	E1007: "unclosed delimiter",

	E2001: "unknown node type",
	E2002: "too many partial parameters",
	E2003: "unknown helper",
	E2004: "invalid compile input",
	E2005: "internal compiler error",

	E3001: "missing helper",
	E3002: "missing partial",
	E3003: "undefined property",
	E3004: "revision mismatch",
	E3005: "nil reference",
	E3006: "missing decorator",
	E3007: "value is not callable",
	E3008: "helper failed",
	E3009: "partial compile failure",
}

// Description returns the short description for an error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// Category returns the error category based on the code prefix.
func (c ErrorCode) Category() string {
	if len(c) < 2 {
		return "unknown"
	}
	switch c[1] {
	case '1':
		return "parse"
	case '2':
		return "compile"
	case '3':
		return "render"
	default:
		return "unknown"
	}
}

// Codes returns every known error code in ascending order.
func Codes() []ErrorCode {
	codes := make([]ErrorCode, 0, len(codeDescriptions))
	for code := range codeDescriptions {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
