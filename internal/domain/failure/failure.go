// Package failure defines the error kinds shared by every pipeline stage.
//
// Stages wrap exactly one kind with %w and name the offending column or key,
// so callers can classify with errors.Is and the CLI can pick an exit status.
package failure

import (
	"context"
	"errors"
)

// Error kinds.
var (
	// ErrSchema: a column or mapping key is missing or renamed.
	ErrSchema = errors.New("schema error")
	// ErrType: a value or container has the wrong type.
	ErrType = errors.New("type error")
	// ErrMissingValues: null/NaN/Inf survived imputation.
	ErrMissingValues = errors.New("missing values after imputation")
	// ErrDegenerate: training data cannot produce a model.
	ErrDegenerate = errors.New("degenerate training data")
	// ErrLookup: a predicted class has no label or remark.
	ErrLookup = errors.New("lookup error")
	// ErrExternal: storage, credentials or artifact files are unavailable.
	ErrExternal = errors.New("external resource error")
	// ErrConfig: a caller-supplied parameter is out of range.
	ErrConfig = errors.New("invalid configuration")
)

// Code is a short error classification used in logs and metric labels.
type Code string

const (
	CodeUnknown    Code = "unknown"
	CodeSchema     Code = "schema"
	CodeType       Code = "type"
	CodeMissing    Code = "missing_values"
	CodeDegenerate Code = "degenerate"
	CodeLookup     Code = "lookup"
	CodeExternal   Code = "external"
	CodeConfig     Code = "config"
	CodeCancel     Code = "cancel"
)

var kinds = []struct {
	err  error
	code Code
	exit int
}{
	{ErrConfig, CodeConfig, 2},
	{ErrSchema, CodeSchema, 3},
	{ErrType, CodeType, 4},
	{ErrMissingValues, CodeMissing, 5},
	{ErrDegenerate, CodeDegenerate, 6},
	{ErrLookup, CodeLookup, 7},
	{ErrExternal, CodeExternal, 8},
}

// Classify maps err onto a Code using sentinel matching only.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return CodeUnknown
}

// ExitCode returns the process exit status for err: 0 for nil, 1 for
// unclassified errors, and a distinct status per kind otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.exit
		}
	}
	return 1
}
