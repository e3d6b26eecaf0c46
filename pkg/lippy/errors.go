package lippy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a modeling failure. Kinds are stable strings so
// callers can report or branch on them without string-matching messages.
type ErrorKind string

const (
	ErrUndefinedSymbol            ErrorKind = "UndefinedSymbol"
	ErrUndefinedVariable          ErrorKind = "UndefinedVariable"
	ErrUndefinedConstant          ErrorKind = "UndefinedConstant"
	ErrAmbiguousSymbol            ErrorKind = "AmbiguousSymbol"
	ErrDuplicateFamily            ErrorKind = "DuplicateFamily"
	ErrInvalidBounds              ErrorKind = "InvalidBounds"
	ErrInvalidIndex               ErrorKind = "InvalidIndex"
	ErrInvalidDomain              ErrorKind = "InvalidDomain"
	ErrIndexOutOfBounds           ErrorKind = "IndexOutOfBounds"
	ErrMissingKey                 ErrorKind = "MissingKey"
	ErrNonlinearExpression        ErrorKind = "NonlinearExpression"
	ErrUnsupportedOperation       ErrorKind = "UnsupportedOperation"
	ErrWildcardOutsideAggregation ErrorKind = "WildcardOutsideAggregation"
	ErrUnresolvedWildcardDomain   ErrorKind = "UnresolvedWildcardDomain"
	ErrInvalidDirection           ErrorKind = "InvalidDirection"
)

// Error is the failure type returned by every modeling operation. It keeps
// enough structure for a caller to point at the offending declaration: the
// symbol involved, the declaration being compiled, and the generator
// bindings that were active when compilation failed.
type Error struct {
	Kind     ErrorKind
	Symbol   string
	Decl     string
	Bindings string
	Detail   string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Detail)
	if e.Decl != "" {
		fmt.Fprintf(&b, " in %s", e.Decl)
	}
	if e.Bindings != "" {
		fmt.Fprintf(&b, " [%s]", e.Bindings)
	}
	return b.String()
}

func newError(kind ErrorKind, symbol string, format string, args ...interface{}) *Error {
	return &Error{
		Kind:   kind,
		Symbol: symbol,
		Detail: fmt.Sprintf(format, args...),
	}
}

// IsKind reports whether err is (or wraps) a modeling Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var me *Error
	return errors.As(err, &me) && me.Kind == kind
}

// AsError unwraps err into a modeling Error, if it is one.
func AsError(err error) (*Error, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
