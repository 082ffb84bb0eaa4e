package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation ran and was rejected or partly failed
	ExitCommandError = 2 // bad arguments or no store
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
	// Reported is set once the formatter has already printed the error.
	Reported bool
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that are not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse mirrors the API envelope so scripts can share a parser.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data as JSON, or calls text with a tabwriter in text mode.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.writeJSON(CLIResponse{Status: "ok", Data: data})
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

// Error reports err and returns it as an ExitError so main exits non-zero.
func (f *OutputFormatter) Error(err error) error {
	if err == nil {
		return nil
	}
	code := string(pkgerrors.CodeInternal)
	var details any
	if typed := pkgerrors.As(err); typed != nil {
		code = string(typed.Code())
		details = typed.Details()
	}
	if f.Format == "json" {
		_ = f.writeJSON(CLIResponse{Status: "error", Error: &CLIError{Code: code, Message: err.Error(), Details: details}})
	} else {
		w := f.ErrWriter
		if w == nil {
			w = f.Writer
		}
		fmt.Fprintf(w, "error [%s]: %v\n", code, err)
		if f.Verbose && details != nil {
			raw, _ := json.Marshal(details)
			fmt.Fprintf(w, "details: %s\n", raw)
		}
	}
	exitErr := WrapExitError(ExitFailure, code, err)
	exitErr.Reported = true
	return exitErr
}

// Reported reports whether err was already printed by an OutputFormatter.
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// Debug prints diagnostics in verbose mode only.
func (f *OutputFormatter) Debug(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func (f *OutputFormatter) writeJSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
