package controller

import (
	"runtime"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// Stop reasons reported by the controller.
const (
	StopMaxIterations    = "max_iterations"
	StopMaxDomains       = "max_total_domains"
	StopMaxRuntime       = "max_runtime"
	StopConsecutiveEmpty = "consecutive_empty_iterations"
	StopMemoryLimit      = "memory_limit"
	StopLowDiscoveryRate = "low_discovery_rate"
	StopQueuesEmpty      = "queues_empty"
)

// rateWindow is the number of trailing discovery rates averaged for the
// minimum-rate predicate.
const rateWindow = 5

// Controller drives the iteration state machine, evaluates the stopping
// predicates and retunes batch size, concurrency and delay after every
// iteration. It only answers "continue?"; actually halting the loop is the
// pipeline executor's job, and only at iteration boundaries.
type Controller struct {
	cond   StoppingCondition
	tuning Tuning

	state      State
	startedAt  time.Time
	current    *IterationMetrics
	history    []*IterationMetrics
	rates      []float64
	emptyRun   int
	stopReason string

	queueSizes func() QueueSizes
	snapshot   func() ResourceSnapshot
	log        *logrus.Logger
}

// New creates a controller. queueSizes supplies the per-iteration queue
// snapshot; it must not be nil.
func New(cond StoppingCondition, initial Tuning, queueSizes func() QueueSizes, log *logrus.Logger) *Controller {
	if log == nil {
		log = logrus.New()
	}
	s := newSampler()
	return &Controller{
		cond:       cond,
		tuning:     clampTuning(initial),
		state:      StateInitializing,
		startedAt:  time.Now(),
		queueSizes: queueSizes,
		snapshot:   s.Snapshot,
		log:        log,
	}
}

// State returns the current state-machine state.
func (c *Controller) State() State {
	return c.state
}

// SetState forces a state transition (used for the final drain and terminal
// states).
func (c *Controller) SetState(s State) {
	c.state = s
}

// Tuning returns the current adaptive knob values.
func (c *Controller) Tuning() Tuning {
	return c.tuning
}

// StopReason returns the first stopping predicate that fired, if any.
func (c *Controller) StopReason() string {
	return c.stopReason
}

// History returns all closed iteration metrics in order.
func (c *Controller) History() []*IterationMetrics {
	return c.history
}

// RateHistory returns the per-iteration discovery rates in order.
func (c *Controller) RateHistory() []float64 {
	return c.rates
}

// Elapsed returns the runtime since the controller was created.
func (c *Controller) Elapsed() time.Duration {
	return time.Since(c.startedAt)
}

// StartIteration opens metrics for iteration n.
func (c *Controller) StartIteration(n int) *IterationMetrics {
	c.state = StateSubdomainDiscovery
	c.current = &IterationMetrics{
		Iteration: n,
		Phase:     c.state,
		StartedAt: time.Now(),
	}
	return c.current
}

// UpdatePhase records a phase transition within the current iteration.
func (c *Controller) UpdatePhase(s State) {
	c.state = s
	if c.current != nil {
		c.current.Phase = s
	}
}

// Current returns the open iteration metrics, for the executor to fill
// counts into.
func (c *Controller) Current() *IterationMetrics {
	return c.current
}

// EndIteration closes the current iteration, evaluates the stopping
// predicates in fixed order and retunes the adaptive knobs. It returns true
// when the loop should continue. The predicate order is deliberate and kept
// for behavioral compatibility; reordering changes which reason fires first.
func (c *Controller) EndIteration(newCount, totalCount int) bool {
	m := c.current
	if m == nil {
		return false
	}
	m.EndedAt = time.Now()
	m.NewDomains = newCount
	m.Resources = c.snapshot()
	if c.queueSizes != nil {
		m.QueueSizes = c.queueSizes()
	}

	denom := totalCount
	if denom < 1 {
		denom = 1
	}
	rate := float64(newCount) / float64(denom)
	m.DiscoveryRate = rate
	c.rates = append(c.rates, rate)

	if newCount == 0 {
		c.emptyRun++
	} else {
		c.emptyRun = 0
	}

	c.history = append(c.history, m)
	c.current = nil

	stop := c.evaluateStop(m, totalCount)
	c.tune(m, newCount)

	if stop {
		c.log.WithFields(logrus.Fields{
			"iteration": m.Iteration,
			"reason":    c.stopReason,
		}).Info("stopping condition met")
		return false
	}
	return true
}

// evaluateStop walks the predicates in fixed order, short-circuiting on the
// first that fires.
func (c *Controller) evaluateStop(m *IterationMetrics, totalCount int) bool {
	if c.cond.MaxIterations > 0 && m.Iteration >= c.cond.MaxIterations {
		c.stopReason = StopMaxIterations
		return true
	}
	if c.cond.MaxTotalDomains > 0 && totalCount >= c.cond.MaxTotalDomains {
		c.stopReason = StopMaxDomains
		return true
	}
	if c.cond.MaxRuntime > 0 && c.Elapsed() >= c.cond.MaxRuntime {
		c.stopReason = StopMaxRuntime
		return true
	}
	if c.cond.ConsecutiveEmptyIterations > 0 && c.emptyRun >= c.cond.ConsecutiveEmptyIterations {
		c.stopReason = StopConsecutiveEmpty
		return true
	}
	if c.cond.MemoryLimitMB > 0 && m.Resources.HeapMB > float64(c.cond.MemoryLimitMB) {
		// One forced reclaim attempt before giving up.
		runtime.GC()
		debug.FreeOSMemory()
		after := c.snapshot()
		m.Resources = after
		if after.HeapMB > float64(c.cond.MemoryLimitMB) {
			c.stopReason = StopMemoryLimit
			return true
		}
	}
	if c.cond.MinDiscoveryRate > 0 && len(c.rates) >= rateWindow {
		sum := 0.0
		for _, r := range c.rates[len(c.rates)-rateWindow:] {
			sum += r
		}
		if sum/rateWindow < c.cond.MinDiscoveryRate {
			c.stopReason = StopLowDiscoveryRate
			return true
		}
	}
	if m.QueueSizes.empty() {
		c.stopReason = StopQueuesEmpty
		return true
	}
	return false
}

// tune adjusts batch size, concurrency and delay, best effort and
// independent of the stopping decision. CPU over the ceiling never stops the
// run; it only slows it down.
func (c *Controller) tune(m *IterationMetrics, newCount int) {
	batch := float64(c.tuning.BatchSize)
	if batch > 0 && float64(newCount)/batch > 0.5 {
		batch *= 1.2
	} else {
		batch *= 0.8
	}
	c.tuning.BatchSize = int(batch)

	cpu := m.Resources.CPUPercent
	switch {
	case cpu > cpuHighWater:
		c.tuning.ConcurrencyLimit -= 2
	case cpu < cpuLowWater:
		c.tuning.ConcurrencyLimit += 2
	}

	delay := float64(c.tuning.Delay)
	if m.Errors > errorDelayThreshold {
		delay *= 1.3
	} else {
		delay *= 0.9
	}
	if c.cond.CPULimitPercent > 0 && cpu > c.cond.CPULimitPercent {
		delay *= 1.3
	}
	c.tuning.Delay = time.Duration(delay)

	c.tuning = clampTuning(c.tuning)
}

func clampTuning(t Tuning) Tuning {
	if t.BatchSize < MinBatchSize {
		t.BatchSize = MinBatchSize
	}
	if t.BatchSize > MaxBatchSize {
		t.BatchSize = MaxBatchSize
	}
	if t.ConcurrencyLimit < MinConcurrency {
		t.ConcurrencyLimit = MinConcurrency
	}
	if t.ConcurrencyLimit > MaxConcurrency {
		t.ConcurrencyLimit = MaxConcurrency
	}
	if t.Delay < MinDelay {
		t.Delay = MinDelay
	}
	if t.Delay > MaxDelay {
		t.Delay = MaxDelay
	}
	return t
}
