package function

import (
	"errors"
	"fmt"
)

// ErrUnknownFunction is returned when a strategy name is not registered.
var ErrUnknownFunction = errors.New("unknown generation function")

// ErrFileUniverseExhausted is returned by a strategy when the parameters
// leave no file to draw a request from on a given day.
var ErrFileUniverseExhausted = errors.New("file universe exhausted")

// ParamError reports an invalid strategy parameter.
// It is always a configuration error: it is raised before generation starts.
type ParamError struct {
	Function string
	Param    string
	Message  string
}

// Error implements the error interface.
func (e *ParamError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Function, e.Message)
	}
	return fmt.Sprintf("%s: parameter %q: %s", e.Function, e.Param, e.Message)
}

// IsParamError returns true if err is or wraps a ParamError.
func IsParamError(err error) bool {
	var pe *ParamError
	return errors.As(err, &pe)
}

func paramErrorf(function, param, format string, args ...any) *ParamError {
	return &ParamError{
		Function: function,
		Param:    param,
		Message:  fmt.Sprintf(format, args...),
	}
}
