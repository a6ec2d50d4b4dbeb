package telemetry

import (
	"sync"
	"time"
)

// SessionSource reports the number of open client sessions
type SessionSource interface {
	SessionCount() int
}

// StatementSource reports the number of tracked statements
type StatementSource interface {
	TrackedCount() int
}

// MetricsCollector periodically samples components and updates telemetry gauges
type MetricsCollector struct {
	sessions   SessionSource
	statements StatementSource
	interval   time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewMetricsCollector creates a new metrics collector. Either source may be nil.
func NewMetricsCollector(sessions SessionSource, statements StatementSource, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		sessions:   sessions,
		statements: statements,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic collection
func (mc *MetricsCollector) Start() {
	mc.wg.Add(1)
	go mc.collectLoop()
}

// Stop stops the collector
func (mc *MetricsCollector) Stop() {
	close(mc.stopCh)
	mc.wg.Wait()
}

func (mc *MetricsCollector) collectLoop() {
	defer mc.wg.Done()

	ticker := time.NewTicker(mc.interval)
	defer ticker.Stop()

	mc.collect()

	for {
		select {
		case <-ticker.C:
			mc.collect()
		case <-mc.stopCh:
			return
		}
	}
}

func (mc *MetricsCollector) collect() {
	if mc.sessions != nil {
		MySQLConnections.Set(float64(mc.sessions.SessionCount()))
	}
	if mc.statements != nil {
		TrackedStatements.Set(float64(mc.statements.TrackedCount()))
	}
}
