// Package session owns the lifecycle of one topic-scoped chat session:
// connect, subscribe, listener registration, announce, send, loss of
// connection and shutdown.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mqtt-chat/codec"
	"mqtt-chat/contract"
	"mqtt-chat/domain"
	chaterrors "mqtt-chat/errors"
	"sync"
	"sync/atomic"
)

// Listener names. Registering under a stable name keeps re-registration
// from stacking duplicate listeners on the transport.
const (
	MessageListenerName = "ListenForChat"
	ClosedListenerName  = "CheckForClose"
)

const defaultEventBuffer = 64

var _ contract.FailureSink = (*Manager)(nil)

type Manager struct {
	log       *slog.Logger
	transport contract.Transport
	config    domain.SessionConfig
	state     atomic.Int32
	connected atomic.Bool
	pending   *PendingClose
	events    chan contract.Event
	// released is closed by Shutdown so a blocked message listener can return.
	released     chan struct{}
	shutdownOnce sync.Once
}

func NewManager(log *slog.Logger, transport contract.Transport, config domain.SessionConfig, eventBuffer int) *Manager {
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}
	config = config.WithDerivedClientID()
	return &Manager{
		log:       log.With("topic", config.TopicName(), "identity", config.Identity),
		transport: transport,
		config:    config,
		pending:   NewPendingClose(),
		events:    make(chan contract.Event, eventBuffer),
		released:  make(chan struct{}),
	}
}

func (m *Manager) Config() domain.SessionConfig {
	return m.config
}

func (m *Manager) State() domain.SessionState {
	return domain.SessionState(m.state.Load())
}

func (m *Manager) transition(from, to domain.SessionState) bool {
	return m.state.CompareAndSwap(int32(from), int32(to))
}

// Events is fed by the message listener and consumed by the dispatcher.
func (m *Manager) Events() <-chan contract.Event {
	return m.events
}

// Done is closed when the session has ended, for whatever reason.
func (m *Manager) Done() <-chan struct{} {
	return m.pending.Done()
}

// Err is the reason the session ended; nil after a requested shutdown.
func (m *Manager) Err() error {
	return m.pending.Err()
}

// Connect runs the whole handshake and only returns once it completed:
// connect, subscribe when the broker holds no session for us, register the
// listeners, then announce. Listeners must be in place before the input
// loop starts, so nothing here runs in the background.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.config.Validate(); err != nil {
		return err
	}
	if !m.transition(domain.Disconnected, domain.Connecting) {
		return fmt.Errorf("%w: cannot connect while %s", chaterrors.ErrInvalidState, m.State())
	}

	topic := m.config.TopicName()
	sessionPresent, err := m.transport.Connect(ctx, contract.ConnectOptions{
		Host:         m.config.Host,
		Port:         m.config.Port,
		ClientID:     m.config.ClientIdentifier(),
		CleanSession: m.config.CleanSession,
	})
	if err != nil {
		err = fmt.Errorf("%w to %s: %w", chaterrors.ErrConnect, m.config.Address(), err)
		m.abort(ctx, err)
		return err
	}
	m.connected.Store(true)
	m.log.Debug("Connected", "address", m.config.Address(), "session_present", sessionPresent)

	if sessionPresent {
		m.log.Debug("Broker kept our session, subscription skipped")
	} else {
		if err := m.transport.Subscribe(ctx, topic, contract.ExactlyOnce); err != nil {
			err = fmt.Errorf("%w to %s: %w", chaterrors.ErrSubscribe, topic, err)
			m.abort(ctx, err)
			return err
		}
		m.log.Debug("Subscribed", "qos", contract.ExactlyOnce)
	}

	m.transport.AddMessageListener(MessageListenerName, m.enqueue)
	m.transport.AddClosedListener(ClosedListenerName, m.OnClosed)

	if err := m.publish(ctx, domain.AnnounceText); err != nil {
		err = fmt.Errorf("%w: %w", chaterrors.ErrAnnounce, err)
		m.abort(ctx, err)
		return err
	}

	if !m.transition(domain.Connecting, domain.SubscribedAndAnnounced) {
		// The connection dropped while we were announcing.
		err := fmt.Errorf("%w: %w", chaterrors.ErrConnect, m.closeReason())
		m.abort(ctx, err)
		return err
	}
	m.log.Info("Session joined")
	return nil
}

// Activate marks the session as serving an interactive loop.
func (m *Manager) Activate() bool {
	return m.transition(domain.SubscribedAndAnnounced, domain.Active)
}

// Send publishes text authored by the local identity at the subscription's
// delivery guarantee. A failure caused by a lost connection also ends the
// session.
func (m *Manager) Send(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("%w: empty message", chaterrors.ErrSend)
	}
	if state := m.State(); !state.CanSend() {
		return fmt.Errorf("%w: %w: session is %s", chaterrors.ErrSend, chaterrors.ErrInvalidState, state)
	}
	if err := m.publish(ctx, text); err != nil {
		if errors.Is(err, chaterrors.ErrNotConnected) {
			m.OnClosed(err)
		}
		return fmt.Errorf("%w: %w", chaterrors.ErrSend, err)
	}
	return nil
}

func (m *Manager) publish(ctx context.Context, text string) error {
	payload, err := codec.Encode(domain.NewChatMessage(m.config.Identity, text))
	if err != nil {
		return err
	}
	return m.transport.Publish(ctx, m.config.TopicName(), payload, contract.ExactlyOnce)
}

// enqueue is the registered message listener. It blocks rather than drop
// an inbound message, until the session is shut down.
func (m *Manager) enqueue(evt contract.Event) {
	select {
	case m.events <- evt:
	case <-m.released:
	}
}

// OnClosed is the registered closed listener: the connection dropped
// without being asked to.
func (m *Manager) OnClosed(err error) {
	if state := m.State(); state == domain.Closing || state == domain.Closed {
		return
	}
	m.log.Warn("Connection closed by transport", "error", err)
	m.closeWith(chaterrors.ErrConnectionLost)
}

// Fail ends the session with an asynchronous transport failure.
func (m *Manager) Fail(err error) {
	if state := m.State(); state == domain.Closing || state == domain.Closed {
		return
	}
	m.log.Warn("Transport reported a failure", "error", err)
	m.closeWith(err)
}

// Quit requests a clean end of the session.
func (m *Manager) Quit() {
	if m.pending.Succeed() {
		m.log.Debug("Quit requested")
	}
}

func (m *Manager) closeWith(err error) {
	if m.pending.Fail(err) {
		m.state.Store(int32(domain.Closed))
	}
}

func (m *Manager) closeReason() error {
	if err := m.pending.Err(); err != nil {
		return err
	}
	return chaterrors.ErrConnectionLost
}

// abort releases the transport after a failed handshake. Nothing is
// registered yet when the connect itself failed.
func (m *Manager) abort(ctx context.Context, err error) {
	m.pending.Fail(err)
	if shutdownErr := m.Shutdown(ctx); shutdownErr != nil {
		m.log.Debug("Release after failed handshake", "error", shutdownErr)
	}
}

// Shutdown disconnects and releases the transport. Only the first call does
// anything; later calls return nil.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.shutdownOnce.Do(func() {
		previous := domain.SessionState(m.state.Swap(int32(domain.Closing)))
		m.pending.Succeed()
		close(m.released)

		var errs []error
		if m.connected.Load() {
			if disconnectErr := m.transport.Disconnect(ctx); disconnectErr != nil &&
				!errors.Is(disconnectErr, chaterrors.ErrNotConnected) {
				errs = append(errs, disconnectErr)
			}
		}
		if shutdownErr := m.transport.Shutdown(); shutdownErr != nil {
			errs = append(errs, shutdownErr)
		}
		m.state.Store(int32(domain.Closed))
		err = errors.Join(errs...)
		m.log.Debug("Session shut down", "previous_state", previous)
	})
	return err
}
