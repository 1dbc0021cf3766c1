// Package dispatch routes transport deliveries to the operator.
package dispatch

import (
	"context"
	"log/slog"
	"mqtt-chat/codec"
	"mqtt-chat/contract"
)

// Ensure *Dispatcher implements the contract.Worker interface at compile time.
var _ contract.Worker = (*Dispatcher)(nil)

// Dispatcher consumes every event delivered by the transport. The transport
// may be shared, so events are filtered by topic before anything else.
// Malformed payloads and the local user's own echo are dropped; transport
// failures end the session through the FailureSink.
type Dispatcher struct {
	log      *slog.Logger
	topic    string
	identity string
	events   <-chan contract.Event
	renderer contract.Renderer
	failures contract.FailureSink
}

func NewDispatcher(
	log *slog.Logger,
	topic, identity string,
	events <-chan contract.Event,
	renderer contract.Renderer,
	failures contract.FailureSink) *Dispatcher {
	return &Dispatcher{
		log:      log,
		topic:    topic,
		identity: identity,
		events:   events,
		renderer: renderer,
		failures: failures,
	}
}

// Run handles events until ctx is done or the event channel is closed.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Stopping dispatcher")
			return nil
		case evt, ok := <-d.events:
			if !ok {
				d.log.Debug("Event channel is closed")
				return nil
			}
			d.Handle(evt)
		}
	}
}

// Handle processes a single event.
func (d *Dispatcher) Handle(evt contract.Event) {
	if evt.Err != nil {
		d.failures.Fail(evt.Err)
		return
	}
	if evt.Topic != d.topic {
		return
	}
	message, err := codec.Decode(evt.Payload)
	if err != nil {
		d.log.Debug("Dropping malformed payload", "error", err, "size", len(evt.Payload))
		return
	}
	if message.IsFrom(d.identity) {
		return
	}
	d.renderer.Render(message)
}
