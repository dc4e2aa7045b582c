package recurrence

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFrequency is returned when a pattern's restriction rejects its frequency.
	ErrUnsupportedFrequency = errors.New("unsupported frequency")
	// ErrEvaluationOutOfRange is returned for a BYDAY ordinal that cannot exist in its scope,
	// such as a sixth Monday within a month.
	ErrEvaluationOutOfRange = errors.New("evaluation out of range")
	// ErrMissingFrequency is returned when a pattern without frequency is evaluated.
	ErrMissingFrequency = errors.New("missing frequency")
	// ErrIterationLimit is returned when an expansion takes more frequency steps than allowed.
	ErrIterationLimit = errors.New("iteration limit exceeded")
)

// EvaluationError describes a failed expansion.
type EvaluationError struct {
	Op      string
	Message string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func evalError(op string, err error, format string, args ...any) error {
	return &EvaluationError{Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}
