// Package mqtt adapts the Eclipse Paho client to contract.Transport.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mqtt-chat/contract"
	chaterrors "mqtt-chat/errors"
	"mqtt-chat/runtime"
	"net"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

var _ contract.Transport = (*Transport)(nil)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultKeepAlive      = 30 * time.Second
	disconnectQuiesce     = 250 // milliseconds
	subscriptionFailure   = 0x80
)

type Options struct {
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	// Store keeps in-flight QoS 1/2 packets. Paho's memory store is used when nil.
	Store paho.Store
}

// Transport owns one Paho client. Every inbound publish, whether it matches
// a subscription made here or one the broker restored from a durable
// session, goes through the default publish handler to the named listeners.
// Automatic reconnection is disabled: a lost connection ends the session.
type Transport struct {
	log      *slog.Logger
	opts     Options
	registry *runtime.Registry

	mu       sync.Mutex
	client   paho.Client
	shutdown bool
}

func New(log *slog.Logger, opts Options) *Transport {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = defaultKeepAlive
	}
	return &Transport{log: log, opts: opts, registry: runtime.NewRegistry()}
}

func BrokerURL(host string, port int) string {
	return "tcp://" + net.JoinHostPort(host, strconv.Itoa(port))
}

func (t *Transport) Connect(ctx context.Context, o contract.ConnectOptions) (bool, error) {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return false, fmt.Errorf("%w: transport shut down", chaterrors.ErrInvalidState)
	}
	if t.client != nil && t.client.IsConnectionOpen() {
		t.mu.Unlock()
		return false, fmt.Errorf("%w: already connected", chaterrors.ErrInvalidState)
	}
	t.mu.Unlock()

	clientOpts := paho.NewClientOptions().
		AddBroker(BrokerURL(o.Host, o.Port)).
		SetClientID(o.ClientID).
		SetCleanSession(o.CleanSession).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(t.opts.ConnectTimeout).
		SetKeepAlive(t.opts.KeepAlive).
		SetDefaultPublishHandler(t.onMessage).
		SetConnectionLostHandler(t.onConnectionLost)
	if t.opts.Store != nil {
		clientOpts.SetStore(t.opts.Store)
	}

	client := paho.NewClient(clientOpts)
	token := client.Connect()
	if err := wait(ctx, token); err != nil {
		if errors.Is(err, ctx.Err()) {
			client.Disconnect(0)
		}
		return false, err
	}

	sessionPresent := false
	if connectToken, ok := token.(*paho.ConnectToken); ok {
		sessionPresent = connectToken.SessionPresent()
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	t.log.Debug("MQTT connected", "broker", BrokerURL(o.Host, o.Port), "client_id", o.ClientID,
		"clean_session", o.CleanSession, "session_present", sessionPresent)
	return sessionPresent, nil
}

func (t *Transport) Subscribe(ctx context.Context, topicFilter string, qos contract.QoS) error {
	client, err := t.connected()
	if err != nil {
		return err
	}
	// A nil callback routes deliveries to the default publish handler.
	token := client.Subscribe(topicFilter, byte(qos), nil)
	if err := wait(ctx, token); err != nil {
		return err
	}
	if subscribeToken, ok := token.(*paho.SubscribeToken); ok {
		if granted, ok := subscribeToken.Result()[topicFilter]; ok && granted == subscriptionFailure {
			return fmt.Errorf("broker rejected subscription to %s", topicFilter)
		}
	}
	return nil
}

// Publish waits for the delivery flow of qos to complete. When ctx ends
// first the flow keeps going, and a later failure is delivered to the
// message listeners as an error event.
func (t *Transport) Publish(ctx context.Context, topic string, payload []byte, qos contract.QoS) error {
	client, err := t.connected()
	if err != nil {
		return err
	}
	token := client.Publish(topic, byte(qos), false, payload)
	select {
	case <-token.Done():
		return translate(token.Error())
	case <-ctx.Done():
		go func() {
			<-token.Done()
			if err := token.Error(); err != nil {
				t.registry.DispatchMessage(contract.Event{Topic: topic, Err: translate(err)})
			}
		}()
		return ctx.Err()
	}
}

func (t *Transport) AddMessageListener(name string, listener contract.MessageListener) {
	t.registry.AddMessageListener(name, listener)
}

func (t *Transport) AddClosedListener(name string, listener contract.ClosedListener) {
	t.registry.AddClosedListener(name, listener)
}

func (t *Transport) Disconnect(ctx context.Context) error {
	client, err := t.connected()
	if err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		client.Disconnect(disconnectQuiesce)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) Shutdown() error {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return nil
	}
	t.shutdown = true
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client != nil && client.IsConnectionOpen() {
		client.Disconnect(0)
	}
	t.registry.Reset()
	return nil
}

func (t *Transport) connected() (paho.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil || !t.client.IsConnectionOpen() {
		return nil, chaterrors.ErrNotConnected
	}
	return t.client, nil
}

func (t *Transport) onMessage(_ paho.Client, message paho.Message) {
	t.registry.DispatchMessage(contract.Event{Topic: message.Topic(), Payload: message.Payload()})
}

func (t *Transport) onConnectionLost(_ paho.Client, err error) {
	t.log.Debug("MQTT connection lost", "error", err)
	t.registry.DispatchClosed(err)
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return translate(token.Error())
	case <-ctx.Done():
		return ctx.Err()
	}
}

func translate(err error) error {
	if errors.Is(err, paho.ErrNotConnected) {
		return fmt.Errorf("%w: %w", chaterrors.ErrNotConnected, err)
	}
	return err
}
