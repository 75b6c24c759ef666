// Package scoring combines deterministic guardrail verdicts with a model-based
// STAR evaluation into the final interview score.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/frymyresume/interviewd/internal/ai"
	"github.com/frymyresume/interviewd/internal/guardrail"
	"github.com/frymyresume/interviewd/internal/utils"
)

// Version tags every Evaluation produced by this package.
const Version = "star-guardrail-v1"

// Score caps applied after the model reply is parsed.
const (
	FallbackScore         = 40
	CapSevereFlags        = 15
	CapUnprofessional     = 35
	CapLowProfessionalism = 20

	lowProfessionalism  = 1
	defaultMaxLogLength = 200
)

const systemInstruction = "You evaluate behavioral interviews. Reply with strict JSON only."

//go:embed prompt.md
var promptTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Aggregator implements ai.Evaluator.
type Aggregator struct {
	generator contentGenerator
	guard     *guardrail.Evaluator
	logger    *zap.Logger
	maxLogLen int
}

// NewAggregator builds an Aggregator. The guardrail always runs first and may
// skip the model call entirely.
func NewAggregator(generator contentGenerator, guard *guardrail.Evaluator, logger *zap.Logger, maxLogLength int) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = guardrail.New(guardrail.DefaultConfig(), logger)
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Aggregator{
		generator: generator,
		guard:     guard,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Evaluate scores interview. It never fails: model errors and unparsable
// replies degrade to FallbackScore, which is still subject to every cap.
func (a *Aggregator) Evaluate(ctx context.Context, interview ai.Interview) ai.Evaluation {
	verdict := a.guard.Evaluate(interview.Answers())

	if verdict.ShortCircuit() {
		a.logger.Info("guardrail short-circuited scoring",
			zap.Int("cap", verdict.Cap),
			zap.Strings("reasons", verdict.Reasons()),
		)
		return ai.Evaluation{
			Score:          clamp(verdict.Cap),
			Disqualified:   true,
			Flags:          verdict.Flags,
			ScoringVersion: Version,
			Basis:          ai.BasisGuardrail,
		}
	}

	model, err := a.score(ctx, interview)
	if err != nil {
		a.logger.Warn("model scoring failed, using fallback score",
			zap.Int("fallback", FallbackScore),
			zap.Error(err),
		)
		return ai.Evaluation{
			Score:          clamp(verdict.Limit(FallbackScore)),
			Disqualified:   verdict.Disqualified,
			Flags:          verdict.Flags,
			ScoringVersion: Version,
			Basis:          ai.BasisFallback,
		}
	}

	score := ApplyCaps(model.Overall(), *model)
	score = clamp(verdict.Limit(score))

	evaluation := ai.Evaluation{
		Score:          score,
		Disqualified:   verdict.Disqualified,
		Flags:          model.Flags.Union(verdict.Flags),
		ScoringVersion: Version,
		Basis:          ai.BasisModel,
	}

	a.logger.Info("interview scored",
		zap.Int("model_score", model.Overall()),
		zap.Int("score", evaluation.Score),
		zap.Bool("disqualified", evaluation.Disqualified),
	)

	return evaluation
}

// ApplyCaps limits score according to the model's own flags and ratings.
func ApplyCaps(score int, model ModelScore) int {
	if model.Flags.Severe() {
		score = min(score, CapSevereFlags)
	}
	if model.Flags.Unprofessional {
		score = min(score, CapUnprofessional)
	}
	if model.MinProfessionalism() <= lowProfessionalism {
		score = min(score, CapLowProfessionalism)
	}
	return clamp(score)
}

func (a *Aggregator) score(ctx context.Context, interview ai.Interview) (*ModelScore, error) {
	if a.generator == nil {
		return nil, errors.New("no scoring model configured")
	}

	prompt := BuildPrompt(interview)
	a.logger.Debug("scoring request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("scoring response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	return ParseModelScore(raw)
}

// BuildPrompt renders the scoring prompt for interview.
func BuildPrompt(interview ai.Interview) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Company: {{COMPANY}}\nRole: {{ROLE}}\n\n{{TRANSCRIPT}}\n\nJSON Response:"
	}

	replacer := strings.NewReplacer(
		"{{COMPANY}}", orUnknown(interview.Company),
		"{{ROLE}}", orUnknown(interview.Role),
		"{{TRANSCRIPT}}", renderTranscript(interview.Turns),
	)
	return replacer.Replace(template)
}

func renderTranscript(turns []ai.Turn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(ai.SpeakerInterviewer)), strings.TrimSpace(turn.Question))
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(ai.SpeakerCandidate)), strings.TrimSpace(turn.Answer))
	}
	return strings.TrimRight(b.String(), "\n")
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "Unknown"
	}
	return s
}
