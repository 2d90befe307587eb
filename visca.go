package visca

import (
	"context"
	"io"
)

// Dialer establishes the byte stream a port talks VISCA over.
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusOk
	StatusConnectionFailure
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOk:
		return "ok"
	case StatusConnectionFailure:
		return "connection failure"
	default:
		return "disconnected"
	}
}

// StatusHandler receives connection status transitions. The message is empty
// for transitions that need no explanation.
type StatusHandler func(status Status, message string)
