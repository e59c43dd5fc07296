package engine

import (
	"errors"
	"strings"
)

// Kind is the classification of a query failure.
type Kind int

const (
	// Recoverable failures are resolved by narrowing the time range.
	Recoverable Kind = iota
	// Permanent failures abort the whole operation.
	Permanent
)

func (k Kind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "recoverable"
}

// permanentPatterns are matched against the lower-cased failure message.
var permanentPatterns = []string{
	"table not found",
	"not found",
	"unauthorized",
	"unauthenticated",
	"permission denied",
	"invalid token",
	"database not found",
	"bucket not found",
	"syntax error",
}

// Classify maps a failure to Permanent or Recoverable using its message only.
func Classify(err error) Kind {
	if err == nil {
		return Recoverable
	}

	msg := strings.ToLower(err.Error())
	for _, p := range permanentPatterns {
		if strings.Contains(msg, p) {
			return Permanent
		}
	}
	return Recoverable
}

// PermanentError is a failure that splitting the time range will not fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is or wraps a *PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ErrContractViolation marks a recoverable failure that escaped the splitter.
var ErrContractViolation = errors.New("recoverable failure escaped the range splitter")
