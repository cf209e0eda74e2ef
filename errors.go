package tsinfergo

import "fmt"

const (
	// InvalidFloatParameterError is printed when a float parameter fails
	// a validity check.
	InvalidFloatParameterError = "invalid %s %f, %s"
	// InvalidIntParameterError is printed when an int parameter fails a
	// validity check.
	InvalidIntParameterError = "invalid %s %d, %s"
	// InvalidStringParameterError is printed when a string parameter
	// fails a validity check.
	InvalidStringParameterError = "invalid %s %s, %s"
)

const (
	// UnequalFloatParameterError is printed when an expected float value
	// does not match what was observed.
	UnequalFloatParameterError = "expected %s %f, instead got %f"
	// UnequalIntParameterError is printed when an expected int value does
	// not match what was observed.
	UnequalIntParameterError = "expected %s %d, instead got %d"
	// UnequalStringParameterError is printed when an expected string
	// value does not match what was observed.
	UnequalStringParameterError = "expected %s %s, instead got %s"
	// UnexpectedErrorWhileError is printed when an operation that should
	// not fail returns an error.
	UnexpectedErrorWhileError = "encountered error while %s: %s"
	// ExpectedErrorWhileError is printed when an operation expected to
	// fail did not.
	ExpectedErrorWhileError = "expected an error while %s, instead got none"
)

// InvariantError reports a broken data-model invariant (spec.md §7: a
// "contract violation", fatal by definition). It is always raised via
// panic; there is no recoverable error path internal to the core.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated (%s): %s", e.Invariant, e.Detail)
}

// violate panics with an InvariantError identifying the broken
// invariant, per spec.md §7 ("must halt processing with a diagnostic
// that identifies the invariant breached").
func violate(invariant, format string, args ...interface{}) {
	panic(&InvariantError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)})
}
