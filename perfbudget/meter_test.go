package perfbudget_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/studytab/e2ekit/perfbudget"
)

// newLoginMeter returns a Meter with a 100ms budget on the login operation.
func newLoginMeter() *perfbudget.Meter {
	return perfbudget.NewMeter(map[string]time.Duration{
		"login": 100 * time.Millisecond,
	})
}

// TestCheckRecordsOutcome verifies budget classification: under budget, over
// budget, exactly on budget, and unbudgeted operations.
func TestCheckRecordsOutcome(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		op       string
		elapsed  time.Duration
		wantOver bool
	}{
		"well under budget": {op: "login", elapsed: 10 * time.Millisecond, wantOver: false},
		"exactly on budget": {op: "login", elapsed: 100 * time.Millisecond, wantOver: false},
		"over budget":       {op: "login", elapsed: 150 * time.Millisecond, wantOver: true},
		"no budget set":     {op: "logout", elapsed: time.Hour, wantOver: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			meter := newLoginMeter()
			sample := meter.Check(tc.op, tc.elapsed)

			if sample.Over != tc.wantOver {
				t.Errorf("Over = %v, want %v", sample.Over, tc.wantOver)
			}
			if sample.Op != tc.op || sample.Elapsed != tc.elapsed {
				t.Errorf("sample = %+v, want op %q elapsed %v", sample, tc.op, tc.elapsed)
			}
			if got := meter.HasViolations(); got != tc.wantOver {
				t.Errorf("HasViolations() = %v, want %v", got, tc.wantOver)
			}
		})
	}
}

// TestNewMeterCopiesBudgets verifies that mutating the caller's map after
// construction does not change the meter's budgets.
func TestNewMeterCopiesBudgets(t *testing.T) {
	t.Parallel()

	budgets := map[string]time.Duration{"search": 200 * time.Millisecond}
	meter := perfbudget.NewMeter(budgets)
	budgets["search"] = time.Nanosecond

	sample := meter.Check("search", 100*time.Millisecond)
	if sample.Over {
		t.Errorf("sample over budget after caller mutation; budget = %v", sample.Budget)
	}
	if sample.Budget != 200*time.Millisecond {
		t.Errorf("Budget = %v, want 200ms", sample.Budget)
	}
}

// TestNewMeterPanicsOnInvalidBudget verifies the constructor guard against
// zero and negative budgets.
func TestNewMeterPanicsOnInvalidBudget(t *testing.T) {
	t.Parallel()

	want := `perfbudget: budget for "login" must be greater than 0, got 0s`
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic %q, got none", want)
		}
		if got := fmt.Sprint(r); got != want {
			t.Fatalf("panic message = %q, want %q", got, want)
		}
	}()
	perfbudget.NewMeter(map[string]time.Duration{"login": 0})
}

// TestWithLoggerPanicsOnNil verifies the option guard.
func TestWithLoggerPanicsOnNil(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic, got none")
		}
		if got := fmt.Sprint(r); got != "perfbudget: logger must not be nil" {
			t.Fatalf("panic message = %q", got)
		}
	}()
	perfbudget.WithLogger(nil)
}

// TestMeasurePassesErrorThrough verifies that Measure returns fn's error
// unchanged and records the sample regardless.
func TestMeasurePassesErrorThrough(t *testing.T) {
	t.Parallel()

	sentinelErr := errors.New("login rejected")
	meter := perfbudget.NewMeter(map[string]time.Duration{"login": time.Minute})

	err := meter.Measure("login", func() error {
		return sentinelErr
	})
	if !errors.Is(err, sentinelErr) {
		t.Errorf("Measure error = %v, want the fn error", err)
	}

	samples := meter.Samples()
	if len(samples) != 1 {
		t.Fatalf("Samples() returned %d samples, want 1", len(samples))
	}
	if samples[0].Op != "login" || samples[0].Over {
		t.Errorf("sample = %+v, want login within budget", samples[0])
	}
}

// TestStartStopRecordsSample verifies the Start/stop pair records a sample
// with a plausible elapsed time.
func TestStartStopRecordsSample(t *testing.T) {
	t.Parallel()

	meter := perfbudget.NewMeter(map[string]time.Duration{"checkout": time.Minute})
	stop := meter.Start("checkout")
	time.Sleep(5 * time.Millisecond)
	sample := stop()

	if sample.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want > 0", sample.Elapsed)
	}
	if sample.Over {
		t.Errorf("sample over a one-minute budget: %+v", sample)
	}
	if got := len(meter.Samples()); got != 1 {
		t.Errorf("Samples() length = %d, want 1", got)
	}
}

// TestViolationsReturnsCopy verifies that mutating the returned slice does
// not affect the meter's state.
func TestViolationsReturnsCopy(t *testing.T) {
	t.Parallel()

	meter := newLoginMeter()
	meter.Check("login", time.Second)

	violations := meter.Violations()
	if len(violations) != 1 {
		t.Fatalf("Violations() returned %d, want 1", len(violations))
	}
	violations[0].Op = "tampered"

	if got := meter.Violations()[0].Op; got != "login" {
		t.Errorf("violation op after tampering = %q, want %q", got, "login")
	}
}

// TestViolationsOrder verifies recording order is preserved and samples
// within budget are excluded.
func TestViolationsOrder(t *testing.T) {
	t.Parallel()

	meter := perfbudget.NewMeter(map[string]time.Duration{
		"login":  100 * time.Millisecond,
		"search": 50 * time.Millisecond,
	})
	meter.Check("login", time.Second)
	meter.Check("search", 10*time.Millisecond)
	meter.Check("search", 80*time.Millisecond)

	violations := meter.Violations()
	if len(violations) != 2 {
		t.Fatalf("Violations() returned %d, want 2: %+v", len(violations), violations)
	}
	if violations[0].Op != "login" || violations[1].Op != "search" {
		t.Errorf("violation order = [%s, %s], want [login, search]", violations[0].Op, violations[1].Op)
	}
}

// TestReset verifies that Reset clears samples and violations but keeps
// budgets in force.
func TestReset(t *testing.T) {
	t.Parallel()

	meter := newLoginMeter()
	meter.Check("login", time.Second)
	meter.Reset()

	if meter.HasViolations() {
		t.Error("HasViolations() = true after Reset")
	}
	if got := len(meter.Samples()); got != 0 {
		t.Errorf("Samples() length = %d after Reset, want 0", got)
	}

	// Budgets survive the reset.
	if sample := meter.Check("login", time.Second); !sample.Over {
		t.Error("budget no longer enforced after Reset")
	}
}

// TestReport verifies the violation summary format and the empty-state text.
func TestReport(t *testing.T) {
	t.Parallel()

	meter := newLoginMeter()
	if got := meter.Report(); got != "no latency budget violations" {
		t.Errorf("empty Report() = %q", got)
	}

	meter.Check("login", 350*time.Millisecond)
	report := meter.Report()
	for _, want := range []string{"1 latency budget violation(s):", "login", "350ms", "100ms", "over by 250ms"} {
		if !strings.Contains(report, want) {
			t.Errorf("Report() missing %q:\n%s", want, report)
		}
	}
}

// TestMeterConcurrentChecks verifies that concurrent recording loses no
// samples and races nowhere.
func TestMeterConcurrentChecks(t *testing.T) {
	t.Parallel()

	const goroutines = 16
	const perGoroutine = 50

	meter := newLoginMeter()
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				meter.Check("login", time.Duration(i)*time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := len(meter.Samples()); got != goroutines*perGoroutine {
		t.Errorf("Samples() length = %d, want %d", got, goroutines*perGoroutine)
	}
}
