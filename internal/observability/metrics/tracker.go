// Package metrics implements the endpoint-statistics tracker: it counts
// (project_id, endpoint_id, warehouse_id?, status_code) tuples into an
// atomic counter map, flushed on a timer into configured sinks.
package metrics

import (
	"context"
	"sync"
	"time"

	"catalog.icecat.io/internal/logging"
)

var log = logging.For("observability/metrics")

// Stat is one endpoint-call observation.
type Stat struct {
	ProjectID   string
	EndpointID  string
	WarehouseID string // empty when the endpoint isn't warehouse-scoped
	StatusCode  int
}

// Sink receives the tracker's periodic flush. Implementations must not
// retain counts beyond the call.
type Sink interface {
	Flush(ctx context.Context, counts map[Stat]int64) error
}

// Tracker accumulates Stat observations in memory and periodically hands
// the accumulated counts to a Sink. Record never blocks: a full input
// channel drops the observation and logs it.
type Tracker struct {
	sink     Sink
	interval time.Duration
	input    chan Stat

	mu     sync.Mutex
	counts map[Stat]int64

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewTracker builds a Tracker and starts its background flush loop.
// bufferSize bounds how many in-flight Record calls can queue before
// Record starts dropping observations.
func NewTracker(sink Sink, interval time.Duration, bufferSize int) *Tracker {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	t := &Tracker{
		sink:     sink,
		interval: interval,
		input:    make(chan Stat, bufferSize),
		counts:   make(map[Stat]int64),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go t.run()
	return t
}

// Record enqueues one observation. Never blocks.
func (t *Tracker) Record(stat Stat) {
	select {
	case t.input <- stat:
	default:
		log.WithField("endpoint_id", stat.EndpointID).Warn("endpoint statistics channel full, dropping observation")
	}
}

func (t *Tracker) run() {
	defer close(t.doneChan)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case stat := <-t.input:
			t.mu.Lock()
			t.counts[stat]++
			t.mu.Unlock()
		case <-ticker.C:
			t.flush()
		case <-t.stopChan:
			for drained := false; !drained; {
				select {
				case stat := <-t.input:
					t.mu.Lock()
					t.counts[stat]++
					t.mu.Unlock()
				default:
					drained = true
				}
			}
			t.flush()
			return
		}
	}
}

func (t *Tracker) flush() {
	t.mu.Lock()
	if len(t.counts) == 0 {
		t.mu.Unlock()
		return
	}
	snapshot := t.counts
	t.counts = make(map[Stat]int64)
	t.mu.Unlock()

	if err := t.sink.Flush(context.Background(), snapshot); err != nil {
		log.Warnf("endpoint statistics flush failed: %v", err)
	}
}

// Stop drains the final batch through the sink and stops the background
// goroutine.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
	<-t.doneChan
}
