// Package memory is an in-process pub/sub broker and the matching
// contract.Transport. It follows MQTT session semantics closely enough to
// exercise the chat session without a network: durable sessions keep their
// subscriptions and queue QoS 1/2 messages while the client is away,
// deliveries run on a per-connection goroutine, and a dropped connection
// notifies the closed listeners.
package memory

import (
	"fmt"
	"log/slog"
	"mqtt-chat/contract"
	"sync"
)

type brokerSession struct {
	clean         bool
	subscriptions map[string]contract.QoS
	queued        []contract.Event
}

type Broker struct {
	log      *slog.Logger
	mu       sync.Mutex
	down     bool
	online   map[string]*Client
	sessions map[string]*brokerSession
}

func NewBroker(log *slog.Logger) *Broker {
	return &Broker{
		log:      log,
		online:   make(map[string]*Client),
		sessions: make(map[string]*brokerSession),
	}
}

// NewClient returns a transport bound to this broker.
func (b *Broker) NewClient() *Client {
	return newClient(b)
}

// Stop makes the broker unreachable and drops every connected client.
func (b *Broker) Stop() {
	b.mu.Lock()
	b.down = true
	clients := make([]*Client, 0, len(b.online))
	for _, c := range b.online {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		b.Drop(c.clientID(), fmt.Errorf("broker stopped"))
	}
}

// Drop severs the connection of clientID as a network failure would.
func (b *Broker) Drop(clientID string, cause error) bool {
	b.mu.Lock()
	c, ok := b.online[clientID]
	if ok {
		b.detach(clientID)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	c.lost(cause)
	return true
}

// Inject publishes payload on topic as an unrelated publisher would.
func (b *Broker) Inject(topic string, payload []byte, qos contract.QoS) {
	b.publish(topic, payload, qos)
}

// HasSession reports whether the broker keeps state for clientID.
func (b *Broker) HasSession(clientID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[clientID]
	return ok
}

// Subscriptions lists the topic filters held for clientID.
func (b *Broker) Subscriptions(clientID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[clientID]
	if !ok {
		return nil
	}
	filters := make([]string, 0, len(s.subscriptions))
	for filter := range s.subscriptions {
		filters = append(filters, filter)
	}
	return filters
}

func (b *Broker) connect(c *Client, opts contract.ConnectOptions) (bool, error) {
	b.mu.Lock()
	if b.down {
		b.mu.Unlock()
		return false, fmt.Errorf("broker %s:%d unreachable", opts.Host, opts.Port)
	}

	// A second connection with the same identifier takes the session over.
	previous, takeover := b.online[opts.ClientID]
	if takeover {
		b.detach(opts.ClientID)
	}

	s, present := b.sessions[opts.ClientID]
	if opts.CleanSession || !present {
		s = &brokerSession{subscriptions: make(map[string]contract.QoS)}
		present = false
	}
	s.clean = opts.CleanSession
	b.sessions[opts.ClientID] = s
	b.online[opts.ClientID] = c

	queued := s.queued
	s.queued = nil
	for _, evt := range queued {
		c.inbox.push(evt)
	}
	b.mu.Unlock()

	if takeover {
		b.log.Debug("Session taken over", "client_id", opts.ClientID,
			"previous_connection_id", previous.ID, "connection_id", c.ID)
		previous.lost(fmt.Errorf("session taken over by a new connection"))
	}
	b.log.Debug("Client connected", "client_id", opts.ClientID, "connection_id", c.ID, "session_present", present)
	return present, nil
}

func (b *Broker) subscribe(clientID, filter string, qos contract.QoS) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[clientID]
	if !ok || b.online[clientID] == nil {
		return fmt.Errorf("no session for %s", clientID)
	}
	s.subscriptions[filter] = qos
	return nil
}

func (b *Broker) publish(topic string, payload []byte, qos contract.QoS) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for clientID, s := range b.sessions {
		granted, ok := s.grantedQoS(topic)
		if !ok {
			continue
		}
		evt := contract.Event{Topic: topic, Payload: append([]byte(nil), payload...)}
		if c, online := b.online[clientID]; online {
			c.inbox.push(evt)
			continue
		}
		if min(granted, qos) > contract.AtMostOnce {
			s.queued = append(s.queued, evt)
		}
	}
}

func (b *Broker) disconnect(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detach(clientID)
}

// detach takes clientID offline. Clean sessions end with their connection.
// Must hold b.mu.
func (b *Broker) detach(clientID string) {
	delete(b.online, clientID)
	if s, ok := b.sessions[clientID]; ok && s.clean {
		delete(b.sessions, clientID)
	}
}

func (s *brokerSession) grantedQoS(topic string) (contract.QoS, bool) {
	best, found := contract.AtMostOnce, false
	for filter, qos := range s.subscriptions {
		if Match(filter, topic) {
			if !found || qos > best {
				best = qos
			}
			found = true
		}
	}
	return best, found
}
