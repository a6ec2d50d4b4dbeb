package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGauge struct {
	NoopStat
	mu  sync.Mutex
	val float64
}

func (g *recordingGauge) Set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.val = v
}

func (g *recordingGauge) value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.val
}

type fixedSessions int

func (f fixedSessions) SessionCount() int { return int(f) }

type fixedStatements int

func (f fixedStatements) TrackedCount() int { return int(f) }

func TestMetricsCollectorSamplesSources(t *testing.T) {
	origConn, origTracked := MySQLConnections, TrackedStatements
	defer func() { MySQLConnections, TrackedStatements = origConn, origTracked }()

	conns := &recordingGauge{}
	tracked := &recordingGauge{}
	MySQLConnections = conns
	TrackedStatements = tracked

	mc := NewMetricsCollector(fixedSessions(3), fixedStatements(7), time.Hour)
	mc.Start()
	defer mc.Stop()

	require.Eventually(t, func() bool {
		return conns.value() == 3 && tracked.value() == 7
	}, time.Second, 5*time.Millisecond)
}

func TestMetricsCollectorNilSources(t *testing.T) {
	mc := NewMetricsCollector(nil, nil, time.Millisecond)
	mc.Start()
	time.Sleep(5 * time.Millisecond)
	mc.Stop()
}

func TestNoopMetricsWithoutRegistry(t *testing.T) {
	if registry != nil {
		t.Skip("registry initialized by another test")
	}
	assert.Equal(t, NoopStat{}, NewGauge("x", "x"))
	assert.Nil(t, GetMetricsHandler())

	// Must not panic
	StatementsTotal.With("rewrite", "ok").Inc()
	StatementDurationSeconds.With("rewrite").Observe(0.1)
}
