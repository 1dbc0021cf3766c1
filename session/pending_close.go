package session

import (
	chaterrors "mqtt-chat/errors"
	"sync"
)

// PendingClose is the single-fire "session has ended" signal.
// Any number of goroutines may try to resolve it; only the first call wins
// and later calls are no-ops. A nil result means a clean, requested shutdown.
type PendingClose struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewPendingClose() *PendingClose {
	return &PendingClose{done: make(chan struct{})}
}

// Succeed resolves the signal as a requested shutdown.
// It reports whether this call resolved it.
func (p *PendingClose) Succeed() bool {
	return p.settle(nil)
}

// Fail resolves the signal with err. A nil err is treated as a lost connection.
// It reports whether this call resolved it.
func (p *PendingClose) Fail(err error) bool {
	if err == nil {
		err = chaterrors.ErrConnectionLost
	}
	return p.settle(err)
}

func (p *PendingClose) settle(err error) (won bool) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
		won = true
	})
	return won
}

// Done is closed once the signal is resolved.
func (p *PendingClose) Done() <-chan struct{} {
	return p.done
}

// Resolved reports whether the signal already fired.
func (p *PendingClose) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err returns the failure the signal was resolved with.
// It is nil while unresolved and after a clean shutdown.
func (p *PendingClose) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}
