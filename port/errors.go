package port

import (
	"errors"
	"fmt"

	"github.com/mklimuk/visca/nibble"
)

var (
	ErrProtocol      = errors.New("visca protocol error")
	ErrNotConnected  = errors.New("port is not connected")
	ErrClosed        = errors.New("port closed")
	ErrSyntax        = errors.New("camera reported syntax error")
	ErrNotExecutable = errors.New("camera reported command not executable")
	ErrBufferFull    = errors.New("camera command buffer full")
	ErrReplyMismatch = errors.New("reply does not match expected shape")
)

var errReplaced = errors.New("connection replaced by a new one")

// NonfatalError settles a single request. The connection stays usable.
type NonfatalError struct {
	Message string
	Sent    []byte
	Err     error
}

func (e *NonfatalError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Message, nibble.Format(e.Sent), e.Err)
}

func (e *NonfatalError) Unwrap() error { return e.Err }

// FatalError is handed to every outstanding request when the connection is
// torn down. All requests failed by the same teardown share one value.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("connection failed: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

func IsNonfatal(err error) bool {
	var ne *NonfatalError
	return errors.As(err, &ne)
}

func protocolErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}
