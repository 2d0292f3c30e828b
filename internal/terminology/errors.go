package terminology

import "fmt"

// ErrorKind is the shared closed failure taxonomy for all terminology
// operations.
type ErrorKind int

const (
	ErrNotFound ErrorKind = iota
	ErrInvalidParameters
	ErrNotSupported
	ErrInternal
)

// OperationError is a typed terminology-operation failure, constructed via
// the errNotFound/errInvalidParameters/errNotSupported helpers
// rather than raw fmt.Errorf, matching the closed-taxonomy style the
// search package's BuildError/CacheError already use.
type OperationError struct {
	Kind    ErrorKind
	Message string
}

func (e *OperationError) Error() string {
	switch e.Kind {
	case ErrNotFound:
		return "not found: " + e.Message
	case ErrInvalidParameters:
		return "invalid parameters: " + e.Message
	case ErrNotSupported:
		return "not supported: " + e.Message
	default:
		return "internal error: " + e.Message
	}
}

func errNotFound(format string, args ...interface{}) error {
	return &OperationError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func errInvalidParameters(format string, args ...interface{}) error {
	return &OperationError{Kind: ErrInvalidParameters, Message: fmt.Sprintf(format, args...)}
}

func errNotSupported(format string, args ...interface{}) error {
	return &OperationError{Kind: ErrNotSupported, Message: fmt.Sprintf(format, args...)}
}
