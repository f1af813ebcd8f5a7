package metrics

import (
	"sync"
	"time"
)

// Counters are the process-wide validation counters exposed through the
// metrics operation. AverageValidationTime is a running mean in seconds.
type Counters struct {
	TotalValidations      int64   `json:"total_validations"`
	SuccessfulValidations int64   `json:"successful_validations"`
	IssuesDetected        int64   `json:"issues_detected"`
	AutoFixesApplied      int64   `json:"auto_fixes_applied"`
	AverageValidationTime float64 `json:"average_validation_time"`
}

// Collector accumulates validation counters. The count increment and the
// incremental mean update must happen as one atomic step, so all updates go
// through a single mutex regardless of how many validations run concurrently.
type Collector struct {
	mu       sync.Mutex
	counters Counters
}

// NewCollector returns a zeroed collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordValidation folds one completed run into the counters, updating the
// running average via the incremental mean.
func (c *Collector) RecordValidation(duration time.Duration, issues, autoFixes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters.TotalValidations++
	c.counters.SuccessfulValidations++
	c.counters.IssuesDetected += int64(issues)
	c.counters.AutoFixesApplied += int64(autoFixes)

	n := float64(c.counters.TotalValidations)
	c.counters.AverageValidationTime = (c.counters.AverageValidationTime*(n-1) + duration.Seconds()) / n
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}
