package manifest

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ErrUsage marks caller mistakes (missing or conflicting options). These are
// returned before any file is touched.
var ErrUsage = errors.New("usage")

// ReadError is returned when the manifest file cannot be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return "problem reading manifest " + e.Path + ": " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// ParseError is returned when the manifest file is not a JSON (or TOML) object.
type ParseError struct {
	Path    string
	Content string
	Err     error
}

func (e *ParseError) Error() string { return "problem parsing manifest " + e.Path + ": " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// SchemaVersionError reports a missing, mistyped or unsupported schemaVersion.
type SchemaVersionError struct {
	Requested any // nil when absent
	Supported []int
	Reason    string
}

func (e *SchemaVersionError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("schema version: %s (supported %v)", e.Reason, e.Supported)
	default:
		return fmt.Sprintf("schema version %v not supported (supported %v)", e.Requested, e.Supported)
	}
}

// Violation is one structural schema failure.
type Violation struct {
	InstanceLocation string // JSON pointer into the manifest
	KeywordLocation  string // JSON pointer into the schema
	Message          string
	Value            any
}

func (v Violation) Error() string {
	loc := v.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + v.Message
}

// ValidationError aggregates every structural violation found in a manifest.
type ValidationError struct {
	Violations []Violation
	errs       error
}

func newValidationError(vs []Violation) *ValidationError {
	var errs error
	for _, v := range vs {
		errs = multierr.Append(errs, v)
	}
	return &ValidationError{Violations: vs, errs: errs}
}

func (e *ValidationError) Error() string {
	if e.errs == nil {
		return "invalid manifest"
	}
	return fmt.Sprintf("invalid manifest (%d violations): %s", len(e.Violations), e.errs.Error())
}

// Unwrap exposes each violation to errors.Is/As.
func (e *ValidationError) Unwrap() []error { return multierr.Errors(e.errs) }

// Locations lists the instance location of every violation.
func (e *ValidationError) Locations() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.InstanceLocation)
	}
	return out
}

// Messages joins the violation messages, one per line.
func (e *ValidationError) Messages() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		lines = append(lines, v.Error())
	}
	return strings.Join(lines, "\n")
}
