package domain

import "fmt"

// InvalidParameterError reports a run parameter outside its documented
// domain. It is fatal at initialisation and never raised mid-run.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

// NewInvalidParameter builds an InvalidParameterError for the named
// parameter.
func NewInvalidParameter(param, format string, args ...any) error {
	return &InvalidParameterError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// NumericDomainError reports geodesic math leaving its valid domain, for
// example a negative or non-finite distance. It is fatal.
type NumericDomainError struct {
	Op     string
	Detail string
}

func (e *NumericDomainError) Error() string {
	return fmt.Sprintf("numeric domain error in %s: %s", e.Op, e.Detail)
}

// GeometryError reports a polygon operation that could not produce valid
// output. It is recoverable: the caller may retry once with perturbed
// input and otherwise continue with the previous geometry.
type GeometryError struct {
	Op   string
	Step int
	Err  error
}

func (e *GeometryError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("geometry error in %s at step %d: %v", e.Op, e.Step, e.Err)
	}
	return fmt.Sprintf("geometry error in %s: %v", e.Op, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

// ProviderError reports a failure to obtain external land geometry. It is
// fatal because clipping cannot proceed without a barrier dataset.
type ProviderError struct {
	Source string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("land provider %s: %v", e.Source, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
