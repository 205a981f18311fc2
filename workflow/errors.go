package workflow

import (
	"errors"
	"fmt"
)

// ErrorCode classifies errors raised by the adapter itself. Errors raised by
// the inner pipeline are passed through untouched and carry no code.
type ErrorCode string

const (
	// CodeConfiguration marks a bad initializer result. It is fatal.
	CodeConfiguration ErrorCode = "CONFIGURATION"
	// CodeProtocol marks misuse of the write/read contract.
	CodeProtocol ErrorCode = "PROTOCOL"
	// CodeInvalidEncoding marks a string chunk that could not be decoded.
	CodeInvalidEncoding ErrorCode = "INVALID_ENCODING"
)

// Error is an adapter error.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

var (
	ErrNoTerminal    = errors.New("initializer must return a terminal")
	ErrAsyncInit     = errors.New("asynchronous pipeline construction is not supported")
	ErrPendingWrite  = errors.New("a write is already pending")
	ErrWriteAfterEnd = errors.New("write after end")
	ErrFlowing       = errors.New("read side is in flowing mode")
	ErrSlotBusy      = errors.New("source slot is occupied")
	ErrDestroyed     = errors.New("adapter is destroyed")
)

func configurationError(cause error) *Error {
	return &Error{Code: CodeConfiguration, Message: "invalid pipeline initializer", Cause: cause}
}

func protocolError(cause error) *Error {
	return &Error{Code: CodeProtocol, Message: "stream contract violated", Cause: cause}
}

func encodingError(encoding string, cause error) *Error {
	return &Error{Code: CodeInvalidEncoding, Message: fmt.Sprintf("cannot decode chunk as %q", encoding), Cause: cause}
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	return hasCode(err, CodeConfiguration)
}

// IsProtocol reports whether err is a ProtocolError.
func IsProtocol(err error) bool {
	return hasCode(err, CodeProtocol)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
