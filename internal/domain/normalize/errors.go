package normalize

import "errors"

// ErrValidation is the sentinel matched by errors.Is for any ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a missing or malformed required field. The record is
// rejected with no state mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return "invalid field " + e.Field + ": " + e.Reason
	}
	return "missing required field: " + e.Field
}

// Is lets errors.Is(err, ErrValidation) succeed for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
