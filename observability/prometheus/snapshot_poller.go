package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-task-scheduler/core"
)

// RunnerSnapshotProvider is implemented by SequencedTaskRunner.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// PoolSnapshotProvider is implemented by GoroutineThreadPool.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller copies Stats() of registered pools and runners into
// gauges on a fixed interval.
type SnapshotPoller struct {
	interval time.Duration

	mu      sync.RWMutex
	runners map[string]RunnerSnapshotProvider
	pools   map[string]PoolSnapshotProvider

	runnerPending *prom.GaugeVec
	runnerClosed  *prom.GaugeVec

	poolQueued   *prom.GaugeVec
	poolActive   *prom.GaugeVec
	poolDelayed  *prom.GaugeVec
	poolWorkers  *prom.GaugeVec
	poolRunning  *prom.GaugeVec
	poolRejected *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a poller and registers its gauges with reg.
// A non-positive interval defaults to one second.
func NewSnapshotPoller(reg prom.Registerer, namespace string, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}
	namespace = normalizeLabel(namespace, DefaultNamespace)

	gauge := func(name, help string, labels ...string) (*prom.GaugeVec, error) {
		return registerCollector(reg, prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels))
	}

	p := &SnapshotPoller{
		interval: interval,
		runners:  make(map[string]RunnerSnapshotProvider),
		pools:    make(map[string]PoolSnapshotProvider),
	}

	var err error
	if p.runnerPending, err = gauge("runner_pending_tasks", "Tasks waiting in the runner's sequence.", "runner", "type"); err != nil {
		return nil, err
	}
	if p.runnerClosed, err = gauge("runner_closed", "Runner closed state (1=closed, 0=open).", "runner", "type"); err != nil {
		return nil, err
	}
	if p.poolQueued, err = gauge("pool_queued_sequences", "Sequences waiting for a worker.", "pool"); err != nil {
		return nil, err
	}
	if p.poolActive, err = gauge("pool_active_tasks", "Tasks currently executing.", "pool"); err != nil {
		return nil, err
	}
	if p.poolDelayed, err = gauge("pool_delayed_tasks", "Delayed tasks not yet ready.", "pool"); err != nil {
		return nil, err
	}
	if p.poolWorkers, err = gauge("pool_workers", "Worker count per pool.", "pool"); err != nil {
		return nil, err
	}
	if p.poolRunning, err = gauge("pool_running", "Pool running state (1=running, 0=stopped).", "pool"); err != nil {
		return nil, err
	}
	if p.poolRejected, err = gauge("pool_rejected_tasks", "Rejected task count snapshot.", "pool"); err != nil {
		return nil, err
	}
	return p, nil
}

// AddRunner adds or replaces a runner by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.runners[normalizeLabel(name, "runner")] = provider
	p.mu.Unlock()
}

// AddPool adds or replaces a pool by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.pools[normalizeLabel(name, "pool")] = provider
	p.mu.Unlock()
}

// RemoveRunner stops polling a runner and deletes its series.
func (p *SnapshotPoller) RemoveRunner(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	delete(p.runners, name)
	p.mu.Unlock()
	p.runnerPending.DeletePartialMatch(prom.Labels{"runner": name})
	p.runnerClosed.DeletePartialMatch(prom.Labels{"runner": name})
}

// Start begins polling until ctx is done or Stop is called. Calling Start
// on a running poller is a no-op.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	go p.loop(loopCtx, p.done)
}

// Stop halts polling and waits for the loop to exit.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}
	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()

	cancel()
	<-done
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce takes one snapshot of every registered provider.
func (p *SnapshotPoller) CollectOnce() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for name, provider := range p.runners {
		stats := provider.Stats()
		typeLabel := normalizeLabel(stats.Type, "unknown")
		p.runnerPending.WithLabelValues(name, typeLabel).Set(float64(stats.Pending))
		p.runnerClosed.WithLabelValues(name, typeLabel).Set(boolGauge(stats.Closed))
	}

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolDelayed.WithLabelValues(name).Set(float64(stats.Delayed))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
		p.poolRejected.WithLabelValues(name).Set(float64(stats.Rejected))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
