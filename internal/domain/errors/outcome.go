package errors

// Outcome is the typed result of a public access-control operation. Callers
// switch on it instead of inspecting error types.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeDenied        Outcome = "denied"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeInternalError Outcome = "internal_error"
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	return string(o)
}

// OutcomeOf maps an error to the outcome a caller should see. A nil error is
// a success; unknown errors are internal. Denials are decisions, not errors,
// so no error maps to OutcomeDenied.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsValidation(err):
		return OutcomeInvalid
	case IsNotFound(err):
		return OutcomeNotFound
	default:
		return OutcomeInternalError
	}
}
