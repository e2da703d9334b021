package server

import (
	"io"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Metric names registered by the server.
const (
	metricConnsAccepted    = "conns.accepted"
	metricConnsActive      = "conns.active"
	metricJoinsAccepted    = "joins.accepted"
	metricJoinsRejected    = "joins.rejected"
	metricMessagesAppended = "messages.appended"
	metricMessagesRejected = "messages.rejected"
	metricEventsPushed     = "events.pushed"
	metricEventsFailed     = "events.failed"
)

// Metrics tracks server runtime counters in a go-metrics registry.
type Metrics struct {
	reg gometrics.Registry
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics() *Metrics {
	return &Metrics{reg: gometrics.NewRegistry()}
}

func (m *Metrics) incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Inc(i)
}

func (m *Metrics) decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Dec(i)
}

// Count returns the current value of a counter.
func (m *Metrics) Count(name string) int64 {
	return gometrics.GetOrRegisterCounter(name, m.reg).Count()
}

// StartReporting writes a JSON snapshot of the registry to w every
// interval until done is closed, then writes one final snapshot.
func (m *Metrics) StartReporting(interval time.Duration, w io.Writer, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gometrics.WriteJSONOnce(m.reg, w)
			case <-done:
				gometrics.WriteJSONOnce(m.reg, w)
				return
			}
		}
	}()
}
