// Package perfbudget measures operation latency against per-operation
// budgets.
//
// End-to-end suites use a Meter to catch performance regressions the way
// functional assertions catch behavioral ones: each key user flow (login,
// checkout, search) gets a budget, every measured run is recorded as a
// Sample, and runs that exceed their budget accumulate as violations the
// suite can fail on in teardown. Violations never interrupt the measured
// operation itself.
//
// Every sample is also published to Prometheus under the e2e_perf_*
// metrics, so CI dashboards see latency trends across runs, not just the
// pass/fail edge.
package perfbudget

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Sample is one measured run of an operation.
type Sample struct {
	// Op is the operation label the sample was recorded under.
	Op string

	// Elapsed is the measured duration.
	Elapsed time.Duration

	// Budget is the operation's latency budget. Zero means the operation
	// has no budget; such samples are recorded but can never be violations.
	Budget time.Duration

	// Over reports whether Elapsed exceeded Budget.
	Over bool
}

// Meter records operation latencies and tracks budget violations.
// It is safe for concurrent use by multiple goroutines.
type Meter struct {
	// mu protects samples from concurrent access.
	mu sync.Mutex

	// samples is every recorded run, in recording order. Violations and
	// Report derive from it, so one Reset clears everything.
	samples []Sample

	// budgets is read-only after NewMeter.
	budgets map[string]time.Duration

	logger *slog.Logger
}

// Option customizes a Meter.
type Option func(*Meter)

// WithLogger sets the logger used to warn about budget violations.
// Defaults to slog.Default(). Panics if l is nil.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("perfbudget: logger must not be nil")
	}
	return func(m *Meter) {
		m.logger = l
	}
}

// NewMeter creates a Meter with the given budgets, keyed by operation label.
// The map is copied; later mutation by the caller has no effect. Operations
// missing from the map can still be measured, they just have no budget.
// Panics if any budget is not positive.
func NewMeter(budgets map[string]time.Duration, opts ...Option) *Meter {
	m := &Meter{budgets: make(map[string]time.Duration, len(budgets))}
	for op, budget := range budgets {
		if budget <= 0 {
			panic(fmt.Sprintf("perfbudget: budget for %q must be greater than 0, got %v", op, budget))
		}
		m.budgets[op] = budget
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// log returns the configured logger, falling back to slog.Default().
func (m *Meter) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// Measure times fn and records the elapsed duration against op's budget.
// fn's error is returned unchanged; a failing operation is still timed,
// since slow failures are regressions too.
func (m *Meter) Measure(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.Check(op, time.Since(start))
	return err
}

// Start begins timing op and returns a stop function that records the
// sample and returns it. Intended for defer:
//
//	stop := meter.Start("checkout")
//	defer stop()
//
// The stop function records a new sample on every call, so call it once.
func (m *Meter) Start(op string) func() Sample {
	start := time.Now()
	return func() Sample {
		return m.Check(op, time.Since(start))
	}
}

// Check records an externally measured duration against op's budget and
// returns the resulting sample. Use this when the duration comes from
// somewhere the Meter cannot time itself, such as a browser performance API
// or a server-reported latency.
func (m *Meter) Check(op string, elapsed time.Duration) Sample {
	m.mu.Lock()
	budget := m.budgets[op]
	sample := Sample{
		Op:      op,
		Elapsed: elapsed,
		Budget:  budget,
		Over:    budget > 0 && elapsed > budget,
	}
	m.samples = append(m.samples, sample)
	m.mu.Unlock()

	publishSample(sample)
	if sample.Over {
		m.log().Warn("operation exceeded latency budget",
			"op", op, "elapsed", elapsed, "budget", budget)
	}
	return sample
}

// Samples returns a copy of every recorded sample, in recording order.
func (m *Meter) Samples() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// Violations returns the samples that exceeded their budget, in recording
// order. The returned slice is a copy.
func (m *Meter) Violations() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Sample
	for _, s := range m.samples {
		if s.Over {
			out = append(out, s)
		}
	}
	return out
}

// HasViolations reports whether any recorded sample exceeded its budget.
// Suites typically assert this once in teardown.
func (m *Meter) HasViolations() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.samples {
		if s.Over {
			return true
		}
	}
	return false
}

// Reset discards every recorded sample, violations included. Budgets are
// retained. Prometheus metrics are cumulative and are not reset.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
}

// Report renders the violations as a human-readable multi-line string for
// CI logs and teardown summaries.
func (m *Meter) Report() string {
	violations := m.Violations()
	if len(violations) == 0 {
		return "no latency budget violations"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d latency budget violation(s):\n", len(violations))
	for i, s := range violations {
		fmt.Fprintf(&b, "  %d. %s: took %v, budget %v (over by %v)\n",
			i+1, s.Op, s.Elapsed, s.Budget, s.Elapsed-s.Budget)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
