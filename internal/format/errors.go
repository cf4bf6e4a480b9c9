package format

import (
	"errors"
	"fmt"

	"oats/internal/codec"
	"oats/internal/services"
)

// Kind classifies a ParseError.
type Kind int

const (
	// KindSyntax is a malformed string or an unknown codec/mode combination.
	KindSyntax Kind = iota
	// KindUnsupported means the combination exists but no available tool declares it.
	KindUnsupported
	// KindRange means the parameter lies outside every available tool's range.
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindRange:
		return "range"
	default:
		return "syntax"
	}
}

var (
	// ErrSyntax matches ParseErrors of KindSyntax.
	ErrSyntax = errors.New("invalid format string")
	// ErrUnsupported matches ParseErrors of KindUnsupported.
	ErrUnsupported = errors.New("format unsupported by available tools")
	// ErrRange matches ParseErrors of KindRange.
	ErrRange = errors.New("format parameter out of range")
)

// ParseError describes why a format string was rejected.
type ParseError struct {
	Input  string
	Kind   Kind
	Codec  codec.Codec
	Mode   codec.Mode
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("format %q: %s", e.Input, e.Reason)
}

// Unwrap exposes the kind sentinel and the service marker used for
// classification: syntax and range problems are configuration errors, an
// unsupported combination is a missing external tool.
func (e *ParseError) Unwrap() []error {
	switch e.Kind {
	case KindUnsupported:
		return []error{ErrUnsupported, services.ErrExternalTool}
	case KindRange:
		return []error{ErrRange, services.ErrConfiguration}
	default:
		return []error{ErrSyntax, services.ErrConfiguration}
	}
}

func syntaxError(input, format string, args ...any) *ParseError {
	return &ParseError{Input: input, Kind: KindSyntax, Reason: fmt.Sprintf(format, args...)}
}
