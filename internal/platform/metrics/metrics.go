package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests    uint64
	errorRequests    uint64
	rateLimited      uint64
	totalDurationMs  uint64
	payrollRuns      uint64
	retentionsIssued uint64
	degradedCalcs    uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RecordPayrollRun() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.payrollRuns, 1)
}

func (c *Collector) RecordRetentionIssued() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.retentionsIssued, 1)
}

// RecordDegradedCalculation counts progressive tax lookups that matched no
// bracket and silently yielded zero tax.
func (c *Collector) RecordDegradedCalculation() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.degradedCalcs, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":         total,
		"errorsTotal":           errs,
		"rateLimitedTotal":      limited,
		"avgDurationMs":         avg,
		"totalDurationMs":       totalMs,
		"payrollRunsTotal":      atomic.LoadUint64(&c.payrollRuns),
		"retentionsIssuedTotal": atomic.LoadUint64(&c.retentionsIssued),
		"degradedCalcsTotal":    atomic.LoadUint64(&c.degradedCalcs),
	}
}
