package mcpserver

import (
	stderrors "errors"
	"fmt"

	cqserrors "github.com/cqs-dev/cqs/internal/errors"
)

// Standard JSON-RPC error codes.
const (
	errCodeInvalidParams = -32602
	errCodeInternalError = -32603
	errCodeNotFound      = -32001
)

// toolError is returned from tool handlers as the error value; the MCP SDK
// serializes it into the JSON-RPC error envelope.
type toolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *toolError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

func invalidParams(msg string) *toolError {
	return &toolError{Code: errCodeInvalidParams, Message: msg}
}

// mapError converts an engine-level error into a tool error, mapping
// *errors.CqsError by category.
func mapError(err error) *toolError {
	if err == nil {
		return nil
	}
	var ce *cqserrors.CqsError
	if stderrors.As(err, &ce) {
		message := ce.Message
		if ce.Suggestion != "" {
			message = fmt.Sprintf("%s %s", ce.Message, ce.Suggestion)
		}
		switch ce.Category {
		case cqserrors.CategoryNotFound:
			return &toolError{Code: errCodeNotFound, Message: message}
		case cqserrors.CategoryValidation:
			return &toolError{Code: errCodeInvalidParams, Message: message}
		default:
			return &toolError{Code: errCodeInternalError, Message: message}
		}
	}
	return &toolError{Code: errCodeInternalError, Message: err.Error()}
}
