package generator

import (
	"errors"
	"fmt"
)

// ErrMixedOutput is returned by Prepare when the destination holds output
// of a different configuration. Clean the destination first.
var ErrMixedOutput = errors.New("destination holds output of another configuration")

// ErrNotPrepared is returned by operations that need a prepared run.
var ErrNotPrepared = errors.New("generator is not prepared")

// ConfigError reports a rejected configuration. Prepare returns it before
// any generation or I/O takes place.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DayError reports a failure to generate one day.
type DayError struct {
	DayIdx int
	Err    error
}

func (e *DayError) Error() string {
	return fmt.Sprintf("day %d: %v", e.DayIdx, e.Err)
}

func (e *DayError) Unwrap() error { return e.Err }

// IOError reports a failed filesystem or remote operation.
type IOError struct {
	// Op is the operation: "flush", "save", "publish" or "clean".
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is a *ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsDayError reports whether err is a *DayError.
func IsDayError(err error) bool {
	var de *DayError
	return errors.As(err, &de)
}

// IsIOError reports whether err is an *IOError.
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
