package api

import (
	"errors"
	"fmt"

	"github.com/memehub/memehub/internal/achievements"
	"github.com/memehub/memehub/internal/db"
	"github.com/memehub/memehub/internal/graph"
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// Application error codes (JSON-RPC server error range)
const (
	ErrCodeSelfFollow       = -32001
	ErrCodeAlreadyFollowing = -32002
	ErrCodeNotFollowing     = -32003
	ErrCodeUnavailable      = -32004
	ErrCodeRetryable        = -32005
)

// classifyError maps a domain error to a JSON-RPC error code and message.
// State errors surface directly; transient failures map to retryable codes.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, graph.ErrSelfFollow):
		return ErrCodeSelfFollow, "Cannot follow self"
	case errors.Is(err, graph.ErrAlreadyFollowing):
		return ErrCodeAlreadyFollowing, "Already following"
	case errors.Is(err, graph.ErrNotFollowing):
		return ErrCodeNotFollowing, "Not following"
	case errors.Is(err, db.ErrUnavailable):
		return ErrCodeUnavailable, "Temporarily unavailable, retry later"
	case errors.Is(err, achievements.ErrRetryable), errors.Is(err, achievements.ErrInconsistent):
		return ErrCodeRetryable, "Achievement update incomplete, retry later"
	default:
		return -32000, "Server error"
	}
}
