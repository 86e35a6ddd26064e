package result

import (
	"errors"
	"fmt"
)

// ParseErrorKind classifies why output could not be interpreted.
type ParseErrorKind int

const (
	// EmptyResponse means blank output where rows were expected.
	EmptyResponse ParseErrorKind = iota

	// Malformed means the output was not the expected JSON shape.
	Malformed
)

// String returns the kind name.
func (k ParseErrorKind) String() string {
	switch k {
	case EmptyResponse:
		return "empty response"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// maxRawInMessage bounds how much of the offending text Error repeats.
const maxRawInMessage = 200

// ParseError reports output that could not be interpreted.
type ParseError struct {
	Kind ParseErrorKind

	// Reason describes what was wrong.
	Reason string

	// Raw is the offending text, verbatim.
	Raw string
}

func (e *ParseError) Error() string {
	if e.Kind == EmptyResponse {
		return "query returned no output"
	}

	raw := e.Raw
	if len(raw) > maxRawInMessage {
		raw = raw[:maxRawInMessage] + "..."
	}
	return fmt.Sprintf("malformed query output (%s): %q", e.Reason, raw)
}

// IsKind reports whether err is a ParseError of the given kind.
func IsKind(err error, kind ParseErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}

func malformed(raw, reason string) *ParseError {
	return &ParseError{Kind: Malformed, Reason: reason, Raw: raw}
}
