package runtime

import (
	"mqtt-chat/contract"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry keeps the named listeners of one transport connection.
// Registration is idempotent per name: a second registration under the same
// name replaces the first one instead of adding a duplicate.
type Registry struct {
	mu       sync.RWMutex
	messages map[string]contract.MessageListener
	closed   map[string]contract.ClosedListener
}

func NewRegistry() *Registry {
	return &Registry{
		messages: make(map[string]contract.MessageListener),
		closed:   make(map[string]contract.ClosedListener),
	}
}

func (r *Registry) AddMessageListener(name string, listener contract.MessageListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[name] = listener
}

func (r *Registry) AddClosedListener(name string, listener contract.ClosedListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed[name] = listener
}

// Names lists registered message and closed listener names, sorted.
func (r *Registry) Names() (messages []string, closed []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	messages = lo.Keys(r.messages)
	closed = lo.Keys(r.closed)
	sort.Strings(messages)
	sort.Strings(closed)
	return messages, closed
}

// DispatchMessage hands evt to every message listener.
// Listeners are called outside the lock so they may register listeners themselves.
func (r *Registry) DispatchMessage(evt contract.Event) {
	r.mu.RLock()
	listeners := lo.Values(r.messages)
	r.mu.RUnlock()

	for _, listener := range listeners {
		listener(evt)
	}
}

// DispatchClosed notifies every closed listener that the connection dropped.
func (r *Registry) DispatchClosed(err error) {
	r.mu.RLock()
	listeners := lo.Values(r.closed)
	r.mu.RUnlock()

	for _, listener := range listeners {
		listener(err)
	}
}

// Reset drops every listener.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.messages)
	clear(r.closed)
}
