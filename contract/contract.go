//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"mqtt-chat/domain"
	"reflect"
)

// QoS is the delivery guarantee requested for a subscription or publish.
type QoS byte

const (
	AtMostOnce QoS = iota
	AtLeastOnce
	ExactlyOnce
)

// ConnectOptions identifies the session towards the broker.
type ConnectOptions struct {
	Host     string
	Port     int
	ClientID string
	// CleanSession false asks the broker to resume any prior session state
	// stored for ClientID.
	CleanSession bool
}

// Event is one delivery from the transport: either a message received on
// Topic, or an asynchronous failure reported in Err.
type Event struct {
	Topic   string
	Payload []byte
	Err     error
}

// MessageListener receives every message delivered to the connection,
// whatever its topic.
type MessageListener func(Event)

// ClosedListener is called when the connection drops without Disconnect.
type ClosedListener func(err error)

// Transport is the pub/sub client the session is built on. Listener
// registration is keyed by name: registering a second listener under the
// same name replaces the first.
type Transport interface {
	// Connect returns whether the broker still held session state for the
	// client identifier.
	Connect(ctx context.Context, opts ConnectOptions) (sessionPresent bool, err error)
	Subscribe(ctx context.Context, topicFilter string, qos QoS) error
	Publish(ctx context.Context, topic string, payload []byte, qos QoS) error
	AddMessageListener(name string, listener MessageListener)
	AddClosedListener(name string, listener ClosedListener)
	Disconnect(ctx context.Context) error
	// Shutdown releases everything the transport owns. Safe to call twice.
	Shutdown() error
}

// Renderer shows an inbound chat message to the operator.
type Renderer interface {
	Render(message domain.ChatMessage)
}

// FailureSink receives asynchronous failures that end the session.
type FailureSink interface {
	Fail(err error)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
