package services

import (
	"time"

	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

// nopMetrics discards every observation.
type nopMetrics struct{}

func (nopMetrics) EventEmitted(string) {}
func (nopMetrics) CacheWrite(string) {}
func (nopMetrics) ExecutionFinished(string, string, time.Duration) {}
func (nopMetrics) StepAttempt(string, string, bool, time.Duration) {}
func (nopMetrics) Resync(int, time.Duration) {}
func (nopMetrics) SetDegraded(bool) {}

var _ driven.Metrics = nopMetrics{}

// metricsOrNop substitutes a no-op recorder for nil.
func metricsOrNop(m driven.Metrics) driven.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
