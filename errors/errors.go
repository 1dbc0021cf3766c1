package errors

import "fmt"

// Startup failures. They surface synchronously from session.Manager.Connect
// and abort the process before the input loop starts.
var (
	ErrConnect   = fmt.Errorf("connect failed")
	ErrSubscribe = fmt.Errorf("subscribe failed")
	ErrAnnounce  = fmt.Errorf("announce failed")
)

// Per-message failures, never fatal on their own.
var (
	ErrSend   = fmt.Errorf("send failed")
	ErrEncode = fmt.Errorf("text is not valid UTF-8")
	ErrDecode = fmt.Errorf("malformed chat envelope")
)

// Session lifecycle failures.
var (
	ErrConnectionLost = fmt.Errorf("Lost connection")
	ErrNotConnected   = fmt.Errorf("not connected")
	ErrInvalidState   = fmt.Errorf("invalid session state")
	ErrInvalidConfig  = fmt.Errorf("invalid session config")
)

var ErrWorkerPanic = fmt.Errorf("worker panic")
