// Package guardrail applies deterministic checks to candidate answers before
// any model-based score is trusted.
package guardrail

import (
	"go.uber.org/zap"

	"github.com/frymyresume/interviewd/internal/ai"
)

// NoCap is the cap of a verdict that does not limit the score.
const NoCap = 100

// Check is a single deterministic rule applied to the consolidated answers.
type Check interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(answers []string) Finding
}

// Finding describes the outcome of one check.
type Finding struct {
	Check        string
	Triggered    bool
	Cap          int
	Disqualified bool
	Flags        ai.Flags
	Reason       string
	// Count is the number of answers the check matched, when meaningful.
	Count int
}

// Verdict aggregates the findings of every enabled check.
type Verdict struct {
	Cap          int
	Disqualified bool
	Flags        ai.Flags
	Nonsense     int
	Answers      int
	Findings     []Finding
}

// ShortCircuit reports whether the verdict is final and the model scorer must
// not be consulted.
func (v Verdict) ShortCircuit() bool { return v.Disqualified }

// Limit applies the verdict cap to score.
func (v Verdict) Limit(score int) int { return min(score, v.Cap) }

// Reasons lists the reasons of triggered findings in check order.
func (v Verdict) Reasons() []string {
	reasons := make([]string, 0, len(v.Findings))
	for _, f := range v.Findings {
		if f.Triggered {
			reasons = append(reasons, f.Check+": "+f.Reason)
		}
	}
	return reasons
}

// Status represents runtime information about a check.
type Status struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// Evaluator runs the configured checks in order.
type Evaluator struct {
	checks []Check
	logger *zap.Logger
}

// New builds an evaluator with the nonsense check followed by the
// disqualifying-content checks.
func New(cfg Config, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}

	checks := []Check{NewNonsense(cfg)}
	checks = append(checks, ContentChecks()...)

	for _, name := range cfg.Disabled {
		DisableByName(checks, name, "disabled by configuration")
	}

	return &Evaluator{checks: checks, logger: logger}
}

// NewWithChecks builds an evaluator over an explicit check list.
func NewWithChecks(logger *zap.Logger, checks ...Check) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{checks: checks, logger: logger}
}

// Evaluate applies every enabled check. The result depends only on answers and
// the configuration, never on model output.
func (e *Evaluator) Evaluate(answers []string) Verdict {
	verdict := Verdict{Cap: NoCap, Answers: len(answers)}

	for _, check := range e.checks {
		if !check.IsEnabled() {
			continue
		}

		finding := check.Apply(answers)
		finding.Check = check.Name()
		verdict.Findings = append(verdict.Findings, finding)

		if check.Name() == nonsenseCheckName {
			verdict.Nonsense = finding.Count
		}

		if !finding.Triggered {
			continue
		}

		verdict.Cap = min(verdict.Cap, finding.Cap)
		verdict.Disqualified = verdict.Disqualified || finding.Disqualified
		verdict.Flags = verdict.Flags.Union(finding.Flags)

		e.logger.Info("guardrail check triggered",
			zap.String("name", check.Name()),
			zap.Int("cap", finding.Cap),
			zap.Bool("disqualified", finding.Disqualified),
			zap.String("reason", finding.Reason),
		)
	}

	return verdict
}

// Describe returns status entries for the evaluator's checks.
func (e *Evaluator) Describe() []Status {
	statuses := make([]Status, 0, len(e.checks))
	for _, check := range e.checks {
		status := Status{Name: check.Name(), Enabled: check.IsEnabled()}
		if reporter, ok := check.(interface{ DisabledReason() string }); ok {
			status.Reason = reporter.DisabledReason()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// DisableByName marks a check with the provided name as disabled while keeping it in the list.
func DisableByName(checks []Check, name, reason string) {
	for _, check := range checks {
		if check.Name() == name {
			check.Disable(reason)
		}
	}
}

// toggle carries the enable state shared by all checks.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func (t *toggle) DisabledReason() string { return t.reason }
