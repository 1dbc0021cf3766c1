package memory

import (
	"mqtt-chat/contract"
	"sync"
)

// mailbox is an unbounded FIFO of events. Producers never block, so the
// broker can deliver while holding its lock.
type mailbox struct {
	mu     sync.Mutex
	items  []contract.Event
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) push(evt contract.Event) {
	m.mu.Lock()
	m.items = append(m.items, evt)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []contract.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}
