package memory

import (
	"context"
	"mqtt-chat/contract"
	chaterrors "mqtt-chat/errors"
	"mqtt-chat/runtime"
	"sync"

	"github.com/google/uuid"
)

var _ contract.Transport = (*Client)(nil)

// Client is one connection to a Broker.
type Client struct {
	broker   *Broker
	registry *runtime.Registry
	inbox    *mailbox
	// ID distinguishes connections sharing a client id in the broker's logs.
	ID uuid.UUID

	mu        sync.Mutex
	connected bool
	shutdown  bool
	opts      contract.ConnectOptions
	stop      chan struct{}
	stopped   chan struct{}
}

func newClient(broker *Broker) *Client {
	return &Client{
		broker:   broker,
		registry: runtime.NewRegistry(),
		ID:       uuid.New(),
	}
}

func (c *Client) clientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.ClientID
}

func (c *Client) Connect(ctx context.Context, opts contract.ConnectOptions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	if c.connected || c.shutdown {
		c.mu.Unlock()
		return false, chaterrors.ErrInvalidState
	}
	c.opts = opts
	c.inbox = newMailbox()
	c.connected = true
	c.stop = make(chan struct{})
	c.stopped = make(chan struct{})
	go c.deliver(c.inbox, c.stop, c.stopped)
	c.mu.Unlock()

	present, err := c.broker.connect(c, opts)
	if err != nil {
		c.halt()
		return false, err
	}
	return present, nil
}

func (c *Client) Subscribe(ctx context.Context, topicFilter string, qos contract.QoS) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	return c.broker.subscribe(c.clientID(), topicFilter, qos)
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos contract.QoS) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	c.broker.publish(topic, payload, qos)
	return nil
}

func (c *Client) AddMessageListener(name string, listener contract.MessageListener) {
	c.registry.AddMessageListener(name, listener)
}

func (c *Client) AddClosedListener(name string, listener contract.ClosedListener) {
	c.registry.AddClosedListener(name, listener)
}

// Registry exposes the listeners registered on this connection.
func (c *Client) Registry() *runtime.Registry {
	return c.registry
}

// Deliver queues evt as if the transport produced it, e.g. an
// asynchronous publish failure.
func (c *Client) Deliver(evt contract.Event) {
	c.mu.Lock()
	inbox := c.inbox
	c.mu.Unlock()
	if inbox != nil {
		inbox.push(evt)
	}
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return chaterrors.ErrNotConnected
	}
	c.broker.disconnect(c.clientID())
	c.halt()
	return nil
}

func (c *Client) Shutdown() error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil
	}
	c.shutdown = true
	connected := c.connected
	c.mu.Unlock()

	if connected {
		c.broker.disconnect(c.clientID())
		c.halt()
	}
	c.registry.Reset()
	return nil
}

func (c *Client) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return chaterrors.ErrNotConnected
	}
	return nil
}

// lost is called by the broker once it forgot about this connection.
func (c *Client) lost(cause error) {
	if c.halt() {
		c.registry.DispatchClosed(cause)
	}
}

// halt stops the delivery goroutine. It reports whether the client was connected.
func (c *Client) halt() bool {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return false
	}
	c.connected = false
	stop, stopped := c.stop, c.stopped
	c.mu.Unlock()

	close(stop)
	<-stopped
	return true
}

func (c *Client) deliver(inbox *mailbox, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	for {
		select {
		case <-stop:
			return
		case <-inbox.notify:
			for _, evt := range inbox.drain() {
				select {
				case <-stop:
					return
				default:
				}
				c.registry.DispatchMessage(evt)
			}
		}
	}
}
