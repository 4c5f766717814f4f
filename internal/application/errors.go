package application

import (
	"errors"
	"fmt"
)

// Kind classifies chart computation failures and warnings
type Kind string

const (
	// KindInput rejects a request before any computation
	KindInput Kind = "input"
	// KindReferenceData is a missing solar-term year or rule file, recovered by a fallback
	KindReferenceData Kind = "reference_data_missing"
	// KindRuleEvaluation is a single marker rule that could not be evaluated
	KindRuleEvaluation Kind = "rule_evaluation"
	// KindUnknown is an unexpected failure while assembling the result
	KindUnknown Kind = "unknown"
)

// Error wraps an underlying error with the operation and its kind
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err carries kind anywhere in its chain
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindUnknown for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func inputError(op string, err error) error {
	return &Error{Op: op, Kind: KindInput, Err: err}
}

// Warning is a recovered problem attached to a result
type Warning struct {
	Kind    Kind   `json:"kind"`
	Source  string `json:"source,omitempty"` // rule key, file or component
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Source == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Source, w.Message)
}
