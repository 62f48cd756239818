// Package health implements a periodic backend health prober: Postgres
// ping, Redis ping, storage-profile reachability, secret-backend ping,
// aggregated into one status document. Checks run on a continuously
// refreshed background snapshot so a health endpoint never blocks a
// request on a live probe.
package health

import (
	"context"
	"sync"
	"time"

	"catalog.icecat.io/internal/logging"
)

var log = logging.For("health")

// Check is one named backend probe. Check should return quickly and
// respect ctx's deadline; Prober wraps every Check call with a per-probe
// timeout so one hung dependency can't stall the whole cycle.
type Check struct {
	Name  string
	Check func(ctx context.Context) error
}

// ComponentStatus is one Check's most recent result.
type ComponentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Status is the aggregated document a health endpoint serves.
type Status struct {
	Healthy    bool              `json:"healthy"`
	Components []ComponentStatus `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Prober runs every registered Check on an interval and keeps the latest
// Status available for Snapshot to return without blocking on live I/O.
type Prober struct {
	checks      []Check
	interval    time.Duration
	probeTimeout time.Duration

	mu   sync.RWMutex
	last Status

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewProber starts the background probe loop immediately (an initial
// probe runs before NewProber returns, so the first Snapshot is never
// empty) and then every interval thereafter.
func NewProber(interval time.Duration, checks ...Check) *Prober {
	p := &Prober{
		checks:       checks,
		interval:     interval,
		probeTimeout: 5 * time.Second,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	p.probeOnce()
	go p.run()
	return p
}

func (p *Prober) run() {
	defer close(p.doneChan)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.probeOnce()
		case <-p.stopChan:
			return
		}
	}
}

func (p *Prober) probeOnce() {
	components := make([]ComponentStatus, 0, len(p.checks))
	healthy := true
	for _, check := range p.checks {
		ctx, cancel := context.WithTimeout(context.Background(), p.probeTimeout)
		err := check.Check(ctx)
		cancel()
		status := ComponentStatus{Name: check.Name, Healthy: err == nil}
		if err != nil {
			status.Error = err.Error()
			healthy = false
			log.WithField("component", check.Name).Warnf("health check failed: %v", err)
		}
		components = append(components, status)
	}

	p.mu.Lock()
	p.last = Status{Healthy: healthy, Components: components, CheckedAt: time.Now()}
	p.mu.Unlock()
}

// Snapshot returns the most recently computed Status.
func (p *Prober) Snapshot() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Stop halts the background probe loop.
func (p *Prober) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	<-p.doneChan
}
