// Package errors provides the unified error type and factory functions for the
// dockprep pipeline.  Every layer (domain, application, infrastructure,
// interfaces) uses AppError as the single carrier for structured error
// information, enabling consistent CLI output, logging, and metrics labels.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		// Trim standard-library noise to keep traces readable.
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError — the canonical pipeline error type
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the single structured error type used throughout dockprep.
// It satisfies the standard error interface and supports Go 1.13+ error
// wrapping so that errors.Is / errors.As / errors.Unwrap work transparently
// across all layers.
//
// Usage:
//
//	return errors.New(errors.CodeStructureNotFound, "structure 9XYZ not found")
//	return errors.Wrap(execErr, errors.CodeEngineExecution, "vina exited abnormally")
//	return errors.EmptySelection("selection matched no atoms").
//	           WithDetail("selection=" + sel.String())
type AppError struct {
	// Code is the typed error code that uniquely identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description of the error.
	Message string

	// Detail carries supplementary context (accession codes, selection text,
	// captured engine diagnostics) that aids debugging.  For engine failures
	// Detail holds the raw combined stdout/stderr so a failed dock is never
	// reported without its diagnostic text.
	Detail string

	// Cause is the underlying error that triggered this AppError, enabling
	// errors.Is / errors.As traversal of the full error chain.
	Cause error

	// Stack contains the formatted call-stack captured at the point of error
	// creation.  It is intentionally not included in Error() output; callers
	// that need it (structured logging) inspect the field directly.
	Stack string
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>"; the detail segment is omitted when
// Detail is empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap returns the underlying cause error, enabling errors.Is and errors.As
// to traverse the full error chain.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ─────────────────────────────────────────────────────────────────────────────
// Fluent builder methods
// ─────────────────────────────────────────────────────────────────────────────

// WithDetail returns a shallow copy of the receiver with Detail set to the
// supplied string.  Safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Primary factory functions
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.
// A call-stack snapshot is captured automatically.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error.
// If err is nil, Wrap returns nil so it can be used inline:
//
//	return errors.Wrap(fetchErr, errors.CodeExternalService, "fetch failed")
//
// When err is already an *AppError and code is CodeUnknown the original code
// is preserved, preventing loss of the original classification during
// cross-layer propagation.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error-chain inspection helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.  It is the idiomatic way to check pipeline failure modes:
//
//	if errors.IsCode(err, errors.CodeEngineTimeout) { ... }
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether any error in err's chain is an *AppError with
// CodeNotFound or CodeStructureNotFound.
func IsNotFound(err error) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) {
			switch ae.Code {
			case CodeNotFound, CodeStructureNotFound:
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsValidation reports whether any error in err's chain is a validation-class
// failure that must never be retried (malformed accession, SMILES, selection
// or box specification).
func IsValidation(err error) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) {
			switch ae.Code {
			case CodeValidation, CodeInvalidParam, CodeInvalidAccession,
				CodeInvalidSMILES, CodeEmptySelection, CodeAmbiguousBoxSpec,
				CodeInvalidBoxExtent:
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the ErrorCode from the first *AppError found in err's
// chain.  If no *AppError is present, CodeUnknown is returned.  Useful in
// logging and metrics layers that need a single code as a label.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// ─────────────────────────────────────────────────────────────────────────────
// Convenience factory functions for the pipeline's failure taxonomy
// ─────────────────────────────────────────────────────────────────────────────
// Each function keeps call sites short and self-documenting:
//
//   return errors.InvalidSMILES("unbalanced ring bond", smiles)
//   return errors.EngineNotFound(cfg.EnginePath)

// NotFound constructs a CodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, Stack: captureStack(1)}
}

// InvalidParam constructs a CodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{Code: CodeInvalidParam, Message: message, Stack: captureStack(1)}
}

// Internal constructs a CodeInternal AppError.  Use for unexpected failures
// where no more specific code applies.
func Internal(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Stack: captureStack(1)}
}

// InvalidAccession constructs a CodeInvalidAccession AppError carrying the
// rejected accession code in the detail.
func InvalidAccession(code string) *AppError {
	return &AppError{
		Code:    CodeInvalidAccession,
		Message: "invalid structure accession code",
		Detail:  code,
		Stack:   captureStack(1),
	}
}

// StructureNotFound constructs a CodeStructureNotFound AppError carrying the
// queried accession code.
func StructureNotFound(code string) *AppError {
	return &AppError{
		Code:    CodeStructureNotFound,
		Message: "structure not found in remote repository",
		Detail:  code,
		Stack:   captureStack(1),
	}
}

// EmptySelection constructs a CodeEmptySelection AppError.
func EmptySelection(message string) *AppError {
	return &AppError{Code: CodeEmptySelection, Message: message, Stack: captureStack(1)}
}

// AmbiguousBoxSpec constructs a CodeAmbiguousBoxSpec AppError.
func AmbiguousBoxSpec(message string) *AppError {
	return &AppError{Code: CodeAmbiguousBoxSpec, Message: message, Stack: captureStack(1)}
}

// InvalidSMILES constructs a CodeInvalidSMILES AppError.  fragment is the
// offending substring when the parser can isolate one; it travels in Detail.
func InvalidSMILES(message, fragment string) *AppError {
	return &AppError{
		Code:    CodeInvalidSMILES,
		Message: message,
		Detail:  fragment,
		Stack:   captureStack(1),
	}
}

// ProtonationUnavailable constructs a CodeProtonationUnavailable AppError.
func ProtonationUnavailable(message string) *AppError {
	return &AppError{Code: CodeProtonationUnavailable, Message: message, Stack: captureStack(1)}
}

// ConformerGeneration constructs a CodeConformerGeneration AppError for a
// single variant; the variant label travels in Detail.
func ConformerGeneration(message, variantLabel string) *AppError {
	return &AppError{
		Code:    CodeConformerGeneration,
		Message: message,
		Detail:  variantLabel,
		Stack:   captureStack(1),
	}
}

// NoValidVariant constructs a CodeNoValidVariant AppError.
func NoValidVariant(message string) *AppError {
	return &AppError{Code: CodeNoValidVariant, Message: message, Stack: captureStack(1)}
}

// LigandEncoding constructs a CodeLigandEncoding AppError.
func LigandEncoding(message string) *AppError {
	return &AppError{Code: CodeLigandEncoding, Message: message, Stack: captureStack(1)}
}

// EngineNotFound constructs a CodeEngineNotFound AppError carrying the
// unresolvable path.
func EngineNotFound(path string) *AppError {
	return &AppError{
		Code:    CodeEngineNotFound,
		Message: "docking engine binary not found",
		Detail:  path,
		Stack:   captureStack(1),
	}
}

// EngineTimeout constructs a CodeEngineTimeout AppError.
func EngineTimeout(message string) *AppError {
	return &AppError{Code: CodeEngineTimeout, Message: message, Stack: captureStack(1)}
}

// EngineExecution constructs a CodeEngineExecution AppError; diagnostic is
// the captured combined stdout/stderr of the failed engine process.
func EngineExecution(message, diagnostic string) *AppError {
	return &AppError{
		Code:    CodeEngineExecution,
		Message: message,
		Detail:  diagnostic,
		Stack:   captureStack(1),
	}
}

// MalformedOutput constructs a CodeMalformedOutput AppError.
func MalformedOutput(message string) *AppError {
	return &AppError{Code: CodeMalformedOutput, Message: message, Stack: captureStack(1)}
}
