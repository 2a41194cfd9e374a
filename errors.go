package quantpool

import "fmt"

// ConfigurationError reports misuse of the builder API: finishing twice,
// writing to an ignored feature, using a writer of the wrong kind.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigurationError struct {
	Op     string
	Reason string
	cause  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("quantpool: %s: %s", e.Op, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.cause }

func configErrf(op, format string, args ...any) error {
	return &ConfigurationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// DataConsistencyError reports input that violates a dataset invariant:
// pairwise data without group ids, a NaN under forbidden NaN handling, a
// raw buffer whose size disagrees with the document count, or a NaN mode
// that conflicts across calls.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type DataConsistencyError struct {
	Reason string
	cause  error
}

func (e *DataConsistencyError) Error() string {
	return fmt.Sprintf("quantpool: inconsistent data: %s", e.Reason)
}

func (e *DataConsistencyError) Unwrap() error { return e.cause }

func consistencyErrf(cause error, format string, args ...any) error {
	return &DataConsistencyError{Reason: fmt.Sprintf(format, args...), cause: cause}
}

// DegenerateDatasetError reports a dataset nothing could be learned from:
// negative or all-zero weights, or a constant target without pairwise
// data.
type DegenerateDatasetError struct {
	Reason string
}

func (e *DegenerateDatasetError) Error() string {
	return fmt.Sprintf("quantpool: degenerate dataset: %s", e.Reason)
}

func degenerateErrf(format string, args ...any) error {
	return &DegenerateDatasetError{Reason: fmt.Sprintf(format, args...)}
}
