// Package cloudevents publishes catalog lifecycle events as CloudEvents to
// a configured sink, decoupled from the internal/hooks fan-out so a slow
// or unreachable sink never blocks a commit.
package cloudevents

import (
	"context"
	"fmt"

	ce "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"catalog.icecat.io/internal/logging"
)

var log = logging.For("hooks/cloudevents")

// Publisher is a bounded channel producer/consumer: Publish enqueues and
// returns immediately, a single background goroutine drains the channel
// and performs the actual send, so a slow sink backs up the channel rather
// than the caller.
type Publisher struct {
	client ce.Client
	source string
	queue  chan ce.Event
	done   chan struct{}
}

// NewPublisher dials target (an HTTP(S) CloudEvents receiver) and starts
// the single consumer goroutine. bufferSize bounds how many events may be
// queued before Publish starts dropping them.
func NewPublisher(target, source string, bufferSize int) (*Publisher, error) {
	client, err := ce.NewClientHTTP(ce.WithTarget(target))
	if err != nil {
		return nil, fmt.Errorf("hooks/cloudevents: new client for %s: %w", target, err)
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	p := &Publisher{
		client: client,
		source: source,
		queue:  make(chan ce.Event, bufferSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p, nil
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.queue {
		result := p.client.Send(context.Background(), event)
		if ce.IsUndelivered(result) || ce.IsNACK(result) {
			log.WithField("event_type", event.Type()).WithField("event_id", event.ID()).
				Warnf("cloudevent delivery failed: %v", result)
		}
	}
}

// Publish builds and enqueues one CloudEvent. Publish never blocks: if the
// queue is full the event is dropped and logged rather than backing up
// the caller.
func (p *Publisher) Publish(eventType, subject string, data interface{}) {
	event := ce.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(p.source)
	event.SetType(eventType)
	event.SetSubject(subject)
	if err := event.SetData(ce.ApplicationJSON, data); err != nil {
		log.WithField("event_type", eventType).Warnf("failed to encode cloudevent payload: %v", err)
		return
	}
	select {
	case p.queue <- event:
	default:
		log.WithField("event_type", eventType).Warn("cloudevent queue full, dropping event")
	}
}

// Close drains in-flight sends and stops the consumer goroutine.
func (p *Publisher) Close() {
	close(p.queue)
	<-p.done
}
