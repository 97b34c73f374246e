package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/roach88/datasetgen/internal/generator"
)

// Process exit codes.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Generation failure (a day failed, save or clean failed)
	ExitCommandError = 2 // Command error (invalid configuration, file not found, etc.)
)

// Error codes for CLI responses.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeInvalidConfig = "E002" // Configuration rejected
	ErrCodeDayFailed     = "E003" // A day could not be generated
	ErrCodeIOFailed      = "E004" // Save, publish or clean failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeMixedOutput   = "E006" // Destination holds another configuration's output
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeCancelled     = "E008" // Interrupted
)

// ExitError carries the process exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and message to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode reports the exit code carried by err, or ExitFailure when err
// is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the JSON envelope every command prints.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error half of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with its String method when it has one.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error prints a failure with its response code.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog prints a progress line to the diagnostic writer when verbose
// output is on. JSON results stay clean as long as ErrWriter is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when none is set.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// classify maps a command failure to its response code and exit code.
func classify(err error) (string, int) {
	var ie *generator.IOError
	switch {
	case generator.IsConfigError(err):
		return ErrCodeInvalidConfig, ExitCommandError
	case errors.Is(err, generator.ErrMixedOutput):
		return ErrCodeMixedOutput, ExitCommandError
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled, ExitFailure
	case errors.As(err, &ie) && ie.Op == "save":
		return ErrCodeWriteFailed, ExitFailure
	case ie != nil:
		return ErrCodeIOFailed, ExitFailure
	case generator.IsDayError(err):
		return ErrCodeDayFailed, ExitFailure
	case errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound, ExitCommandError
	case errors.Is(err, fs.ErrExist):
		return ErrCodeWriteFailed, ExitCommandError
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// reportError prints err through f and returns the ExitError the command
// should return.
func reportError(f *OutputFormatter, message string, err error) error {
	code, exit := classify(err)

	var details any
	var de *generator.DayError
	if errors.As(err, &de) {
		details = map[string]int{"day": de.DayIdx}
	}
	if outErr := f.Error(code, fmt.Sprintf("%s: %v", message, err), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, message, err)
}
