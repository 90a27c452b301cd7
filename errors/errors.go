// Package errors provides error handling for cystub.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details shown to the user by the CLI
//
// Usage:
//
//	// Wrap with context
//	if err := compile(); err != nil {
//	    return errors.Wrap(err, "failed to compile extensions")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "is Cython installed in this interpreter?")
//
//	// Check errors
//	if errors.Is(err, errors.ErrCompileFailed) {
//	    // handle build failure
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"strings"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors for the stub pipeline.
// Use these with errors.Is(); wrap them with Mark to keep the message of the cause.
var (
	// ErrCompileFailed indicates the extension compiler aborted the batch
	ErrCompileFailed = New("extension compilation failed")

	// ErrParseStub indicates a generated stub file is not valid syntax
	ErrParseStub = New("invalid stub syntax")

	// ErrDuplicateModule indicates two source files map to the same module name
	ErrDuplicateModule = New("duplicate module name")

	// ErrToolUnavailable indicates a required external tool could not be started
	ErrToolUnavailable = New("tool unavailable")
)

// IsCompileError checks if an error is or wraps ErrCompileFailed
func IsCompileError(err error) bool {
	return err != nil && Is(err, ErrCompileFailed)
}

// IsParseError checks if an error is or wraps ErrParseStub
func IsParseError(err error) bool {
	return err != nil && Is(err, ErrParseStub)
}

// WithToolOutput attaches the tail of a tool's stderr as a detail.
// Empty output leaves err unchanged.
func WithToolOutput(err error, stderr []byte) error {
	if err == nil {
		return nil
	}
	out := strings.TrimSpace(string(stderr))
	if out == "" {
		return err
	}
	const maxLines = 40
	lines := strings.Split(out, "\n")
	if len(lines) > maxLines {
		lines = append([]string{"..."}, lines[len(lines)-maxLines:]...)
	}
	return WithDetail(err, strings.Join(lines, "\n"))
}
