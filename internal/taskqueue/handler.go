package taskqueue

import (
	"context"

	"catalog.icecat.io/internal/catalogstore"
)

// Handler processes one queue's tasks, keyed by catalogstore.Task instead
// of an untyped job value.
type Handler interface {
	// QueueName is the queue this handler is registered for.
	QueueName() string
	// Handle executes one attempt of task. It is responsible for its own
	// transactions against catalogstore; Handle does not receive one,
	// matching how internal/iceberg's CommitEngine methods each begin
	// their own transaction rather than threading one through callers.
	Handle(ctx context.Context, task *catalogstore.Task, heartbeat Heartbeater) error
}

// Heartbeater lets a long-running Handle call report progress and learn
// whether stop_tasks has asked it to terminate cooperatively.
type Heartbeater interface {
	Heartbeat(ctx context.Context, progress int, details []byte) (catalogstore.TaskCheckState, error)
}

// Registry maps queue name to its Handler, used by Pool to dispatch picked
// tasks without a type switch per queue.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(h Handler) {
	r.handlers[h.QueueName()] = h
}

func (r *Registry) Lookup(queueName string) (Handler, bool) {
	h, ok := r.handlers[queueName]
	return h, ok
}

// QueueNames returns every registered queue, for Pool construction.
func (r *Registry) QueueNames() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
