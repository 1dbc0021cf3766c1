package memory

import (
	"context"
	"errors"
	"log/slog"
	"mqtt-chat/contract"
	chaterrors "mqtt-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	req := require.New(t)

	req.True(Match("chat/room1", "chat/room1"))
	req.False(Match("chat/room1", "chat/room2"))
	req.True(Match("chat/+", "chat/room1"))
	req.False(Match("chat/+", "chat/room1/extra"))
	req.True(Match("chat/#", "chat/room1/extra"))
	req.True(Match("#", "anything/at/all"))
	req.False(Match("chat/#/x", "chat/a/x"))
	req.False(Match("chat/room1/more", "chat/room1"))
}

func connect(t *testing.T, c *Client, clientID string, clean bool) bool {
	t.Helper()
	present, err := c.Connect(context.Background(), contract.ConnectOptions{
		Host: "localhost", Port: 1883, ClientID: clientID, CleanSession: clean,
	})
	require.NoError(t, err)
	return present
}

func collect(c *Client) chan contract.Event {
	received := make(chan contract.Event, 16)
	c.AddMessageListener("test", func(evt contract.Event) { received <- evt })
	return received
}

func TestBroker_PublishReachesSubscribers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	broker := NewBroker(slog.Default())
	alice, bob := broker.NewClient(), broker.NewClient()
	connect(t, alice, "alice", true)
	connect(t, bob, "bob", true)
	req.NoError(bob.Subscribe(ctx, "room", contract.ExactlyOnce))
	received := collect(bob)

	req.NoError(alice.Publish(ctx, "room", []byte("hi"), contract.ExactlyOnce))
	req.NoError(alice.Publish(ctx, "elsewhere", []byte("nope"), contract.ExactlyOnce))

	select {
	case evt := <-received:
		req.Equal("room", evt.Topic)
		req.Equal([]byte("hi"), evt.Payload)
	case <-time.After(time.Second):
		req.Fail("message not delivered")
	}
	req.Never(func() bool { return len(received) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestBroker_DurableSessionIsResumed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	broker := NewBroker(slog.Default())

	// Given a durable session subscribed to a topic
	first := broker.NewClient()
	req.False(connect(t, first, "bob", false))
	req.NoError(first.Subscribe(ctx, "room", contract.ExactlyOnce))
	req.NoError(first.Disconnect(ctx))

	// And a QoS 2 message published while bob is away
	broker.Inject("room", []byte("while away"), contract.ExactlyOnce)
	broker.Inject("room", []byte("fire and forget"), contract.AtMostOnce)

	// When bob reconnects with the same identifier
	second := broker.NewClient()
	received := collect(second)
	present := connect(t, second, "bob", false)

	// Then the broker reports the session and delivers the queued message
	req.True(present)
	req.Equal([]string{"room"}, broker.Subscriptions("bob"))
	select {
	case evt := <-received:
		req.Equal([]byte("while away"), evt.Payload)
	case <-time.After(time.Second):
		req.Fail("queued message not delivered")
	}
}

func TestBroker_CleanSessionIsDiscarded(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	broker := NewBroker(slog.Default())

	c := broker.NewClient()
	connect(t, c, "bob", true)
	req.NoError(c.Subscribe(ctx, "room", contract.ExactlyOnce))
	req.NoError(c.Disconnect(ctx))

	req.False(broker.HasSession("bob"))
	req.False(connect(t, broker.NewClient(), "bob", false))
}

func TestBroker_DropNotifiesClosedListeners(t *testing.T) {
	req := require.New(t)
	broker := NewBroker(slog.Default())
	c := broker.NewClient()
	connect(t, c, "bob", true)
	cause := errors.New("connection reset")
	closed := make(chan error, 1)
	c.AddClosedListener("test", func(err error) { closed <- err })

	req.True(broker.Drop("bob", cause))

	req.Equal(cause, <-closed)
	req.ErrorIs(c.Publish(context.Background(), "room", []byte("x"), contract.ExactlyOnce), chaterrors.ErrNotConnected)
	req.ErrorIs(c.Disconnect(context.Background()), chaterrors.ErrNotConnected)
}

func TestBroker_DisconnectDoesNotNotifyClosedListeners(t *testing.T) {
	req := require.New(t)
	broker := NewBroker(slog.Default())
	c := broker.NewClient()
	connect(t, c, "bob", true)
	closed := make(chan error, 1)
	c.AddClosedListener("test", func(err error) { closed <- err })

	req.NoError(c.Disconnect(context.Background()))
	req.NoError(c.Shutdown())
	req.NoError(c.Shutdown())

	req.Empty(closed)
}

func TestBroker_StoppedBrokerIsUnreachable(t *testing.T) {
	req := require.New(t)
	broker := NewBroker(slog.Default())
	broker.Stop()

	_, err := broker.NewClient().Connect(context.Background(), contract.ConnectOptions{
		Host: "nowhere", Port: 1883, ClientID: "bob",
	})

	req.ErrorContains(err, "unreachable")
}
