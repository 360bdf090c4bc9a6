package schedtime

// Kind identifies which rule rejected a candidate.
type Kind uint8

const (
	KindValid Kind = iota
	KindMissing
	KindParse
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindValid:
		return "valid"
	case KindMissing:
		return "missing"
	case KindParse:
		return "parse"
	case KindRange:
		return "range"
	default:
		return "unknown"
	}
}

// Result is the outcome of Validate.
//
// The zero value is a valid result. An invalid result carries exactly one
// Reason, meant to be shown to the user verbatim.
type Result struct {
	Kind   Kind
	Reason string
}

func (r Result) Valid() bool { return r.Kind == KindValid }

// Err returns nil for a valid result, otherwise a *ValidationError that
// unwraps to ErrMissing, ErrParse or ErrRange.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Kind: r.Kind, Reason: r.Reason}
}

type ValidationError struct {
	Kind   Kind
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error {
	switch e.Kind {
	case KindMissing:
		return ErrMissing
	case KindParse:
		return ErrParse
	case KindRange:
		return ErrRange
	default:
		return nil
	}
}

func invalid(k Kind, reason string) Result { return Result{Kind: k, Reason: reason} }
