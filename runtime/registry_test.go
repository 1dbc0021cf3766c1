package runtime

import (
	"errors"
	"mqtt-chat/contract"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_AddMessageListener_SameNameReplaces(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	var first, second atomic.Int32

	// Given a listener registered twice under the same name
	registry.AddMessageListener("ListenForChat", func(contract.Event) { first.Add(1) })
	registry.AddMessageListener("ListenForChat", func(contract.Event) { second.Add(1) })

	// When an event is dispatched
	registry.DispatchMessage(contract.Event{Topic: "t", Payload: []byte("x")})

	// Then only the latest registration is called
	req.Equal(int32(0), first.Load())
	req.Equal(int32(1), second.Load())
	messages, _ := registry.Names()
	req.Equal([]string{"ListenForChat"}, messages)
}

func TestRegistry_DispatchMessage_AllNamedListeners(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	var received []string

	registry.AddMessageListener("a", func(evt contract.Event) { received = append(received, "a:"+evt.Topic) })
	registry.AddMessageListener("b", func(evt contract.Event) { received = append(received, "b:"+evt.Topic) })

	registry.DispatchMessage(contract.Event{Topic: "room"})

	req.ElementsMatch([]string{"a:room", "b:room"}, received)
}

func TestRegistry_DispatchClosed(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	boom := errors.New("boom")
	var got error

	registry.AddClosedListener("CheckForClose", func(err error) { got = err })
	registry.DispatchClosed(boom)

	req.Equal(boom, got)
}

func TestRegistry_ListenerMayRegisterDuringDispatch(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given a listener that registers another listener while being called
	registry.AddMessageListener("outer", func(contract.Event) {
		registry.AddMessageListener("inner", func(contract.Event) {})
	})

	// When dispatching, no deadlock occurs
	registry.DispatchMessage(contract.Event{})

	messages, _ := registry.Names()
	req.Equal([]string{"inner", "outer"}, messages)
}

func TestRegistry_Reset(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.AddMessageListener("m", func(contract.Event) {})
	registry.AddClosedListener("c", func(error) {})

	registry.Reset()

	messages, closed := registry.Names()
	req.Empty(messages)
	req.Empty(closed)
}
