// Package redis adapts Redis Pub/Sub to contract.Transport.
//
// Redis Pub/Sub is fire-and-forget: the broker keeps no session, so Connect
// never reports a prior session and every delivery guarantee degrades to
// at most once. A periodic PING detects a dead connection, since the
// subscriber side of go-redis reconnects silently on its own.
package redis

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

	"github.com/redis/go-redis/v9"
)

var _ contract.Transport = (*Transport)(nil)

const defaultHealthInterval = 5 * time.Second

type Options struct {
	Password       string
	DB             int
	HealthInterval time.Duration
}

type Transport struct {
	log      *slog.Logger
	opts     Options
	registry *runtime.Registry

	mu       sync.Mutex
	client   *redis.Client
	pubsub   *redis.PubSub
	stop     chan struct{}
	wg       sync.WaitGroup
	shutdown bool
}

func New(log *slog.Logger, opts Options) *Transport {
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = defaultHealthInterval
	}
	return &Transport{log: log, opts: opts, registry: runtime.NewRegistry()}
}

func (t *Transport) Connect(ctx context.Context, o contract.ConnectOptions) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return false, fmt.Errorf("%w: transport shut down", chaterrors.ErrInvalidState)
	}
	if t.client != nil {
		return false, fmt.Errorf("%w: already connected", chaterrors.ErrInvalidState)
	}

	client := redis.NewClient(&redis.Options{
		Addr:            net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		Password:        t.opts.Password,
		DB:              t.opts.DB,
		DisableIdentity: true,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return false, err
	}

	t.client = client
	t.pubsub = client.Subscribe(ctx)
	t.stop = make(chan struct{})
	t.wg.Add(2)
	go t.receive(t.pubsub.Channel(), t.stop)
	go t.health(client, t.stop)

	t.log.Debug("Redis connected", "address", client.Options().Addr, "client_id", o.ClientID)
	return false, nil
}

func (t *Transport) Subscribe(ctx context.Context, topicFilter string, qos contract.QoS) error {
	t.mu.Lock()
	pubsub := t.pubsub
	t.mu.Unlock()
	if pubsub == nil {
		return chaterrors.ErrNotConnected
	}
	if qos > contract.AtMostOnce {
		t.log.Debug("Redis Pub/Sub delivers at most once", "requested_qos", qos)
	}
	return translate(pubsub.Subscribe(ctx, topicFilter))
}

func (t *Transport) Publish(ctx context.Context, topic string, payload []byte, _ contract.QoS) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return chaterrors.ErrNotConnected
	}
	return translate(client.Publish(ctx, topic, payload).Err())
}

func (t *Transport) AddMessageListener(name string, listener contract.MessageListener) {
	t.registry.AddMessageListener(name, listener)
}

func (t *Transport) AddClosedListener(name string, listener contract.ClosedListener) {
	t.registry.AddClosedListener(name, listener)
}

func (t *Transport) Disconnect(context.Context) error {
	if !t.release() {
		return chaterrors.ErrNotConnected
	}
	return nil
}

func (t *Transport) Shutdown() error {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return nil
	}
	t.shutdown = true
	t.mu.Unlock()

	t.release()
	t.registry.Reset()
	return nil
}

// release closes the connection and waits for the background loops.
// It reports whether there was a connection to close.
func (t *Transport) release() bool {
	t.mu.Lock()
	client, pubsub, stop := t.client, t.pubsub, t.stop
	t.client, t.pubsub, t.stop = nil, nil, nil
	t.mu.Unlock()

	if client == nil {
		return false
	}
	close(stop)
	_ = pubsub.Close()
	_ = client.Close()
	t.wg.Wait()
	return true
}

func (t *Transport) receive(messages <-chan *redis.Message, stop <-chan struct{}) {
	defer t.wg.Done()
	for {
		select {
		case <-stop:
			return
		case message, ok := <-messages:
			if !ok {
				return
			}
			t.registry.DispatchMessage(contract.Event{Topic: message.Channel, Payload: []byte(message.Payload)})
		}
	}
}

func (t *Transport) health(client *redis.Client, stop <-chan struct{}) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.opts.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), t.opts.HealthInterval)
			err := client.Ping(ctx).Err()
			cancel()
			if err == nil {
				continue
			}
			select {
			case <-stop:
				return
			default:
			}
			t.log.Debug("Redis health check failed", "error", err)
			// release waits for this goroutine, so hand it off.
			go t.lost(err)
			return
		}
	}
}

func (t *Transport) lost(cause error) {
	if t.release() {
		t.registry.DispatchClosed(cause)
	}
}

func translate(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: %w", chaterrors.ErrNotConnected, err)
	}
	return err
}
