package redis

import (
	"context"
	"log/slog"
	"mqtt-chat/contract"
	chaterrors "mqtt-chat/errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func options(t *testing.T, server *miniredis.Miniredis, clientID string) contract.ConnectOptions {
	t.Helper()
	port, err := strconv.Atoi(server.Port())
	require.NoError(t, err)
	return contract.ConnectOptions{Host: server.Host(), Port: port, ClientID: clientID}
}

func TestTransport_PublishSubscribe(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	server := miniredis.RunT(t)

	alice := New(slog.Default(), Options{})
	bob := New(slog.Default(), Options{})
	defer alice.Shutdown()
	defer bob.Shutdown()

	present, err := alice.Connect(ctx, options(t, server, "alice"))
	req.NoError(err)
	req.False(present)
	_, err = bob.Connect(ctx, options(t, server, "bob"))
	req.NoError(err)

	received := make(chan contract.Event, 4)
	bob.AddMessageListener("ListenForChat", func(evt contract.Event) { received <- evt })
	req.NoError(bob.Subscribe(ctx, "MQTTNIOChat-room1", contract.ExactlyOnce))

	// The subscription is confirmed asynchronously
	req.Eventually(func() bool {
		return len(server.PubSubChannels("MQTTNIOChat-*")) == 1
	}, time.Second, 10*time.Millisecond)

	req.NoError(alice.Publish(ctx, "MQTTNIOChat-room1", []byte("hi"), contract.ExactlyOnce))

	select {
	case evt := <-received:
		req.Equal("MQTTNIOChat-room1", evt.Topic)
		req.Equal([]byte("hi"), evt.Payload)
	case <-time.After(2 * time.Second):
		req.Fail("message not delivered")
	}
}

func TestTransport_Connect_Unreachable(t *testing.T) {
	req := require.New(t)
	server, err := miniredis.Run()
	req.NoError(err)
	opts := options(t, server, "alice")
	server.Close()

	transport := New(slog.Default(), Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = transport.Connect(ctx, opts)

	req.Error(err)
	req.ErrorIs(transport.Publish(ctx, "t", []byte("x"), contract.AtMostOnce), chaterrors.ErrNotConnected)
}

func TestTransport_LostConnectionNotifiesClosedListener(t *testing.T) {
	req := require.New(t)
	server, err := miniredis.Run()
	req.NoError(err)
	transport := New(slog.Default(), Options{HealthInterval: 20 * time.Millisecond})
	defer transport.Shutdown()

	_, err = transport.Connect(context.Background(), options(t, server, "alice"))
	req.NoError(err)
	closed := make(chan error, 1)
	transport.AddClosedListener("CheckForClose", func(err error) { closed <- err })

	// When the server goes away
	server.Close()

	select {
	case err := <-closed:
		req.Error(err)
	case <-time.After(3 * time.Second):
		req.Fail("closed listener not called")
	}
	req.ErrorIs(transport.Disconnect(context.Background()), chaterrors.ErrNotConnected)
}

func TestTransport_DisconnectAndShutdown(t *testing.T) {
	req := require.New(t)
	server := miniredis.RunT(t)
	transport := New(slog.Default(), Options{HealthInterval: 20 * time.Millisecond})
	closed := make(chan error, 1)
	transport.AddClosedListener("CheckForClose", func(err error) { closed <- err })

	_, err := transport.Connect(context.Background(), options(t, server, "alice"))
	req.NoError(err)

	req.NoError(transport.Disconnect(context.Background()))
	req.ErrorIs(transport.Disconnect(context.Background()), chaterrors.ErrNotConnected)
	req.NoError(transport.Shutdown())
	req.NoError(transport.Shutdown())

	// A requested disconnect is not a lost connection
	req.Never(func() bool { return len(closed) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}
