package guardrail

import (
	"fmt"
	"strings"
	"unicode"
)

const nonsenseCheckName = "nonsense"

// Caps applied by the nonsense check.
const (
	CapAllNonsense  = 0
	CapManyNonsense = 5
	CapOneNonsense  = 20
)

var nonAnswers = map[string]struct{}{
	"pass": {}, "skip": {}, "n/a": {}, "na": {}, "no comment": {}, "no answer": {},
	"idk": {}, "i don't know": {}, "i dont know": {}, "next": {}, "next question": {},
	"nothing": {}, "none": {},
}

type nonsenseCheck struct {
	toggle
	cfg Config
}

// NewNonsense creates the low-effort answer check.
func NewNonsense(cfg Config) Check {
	return &nonsenseCheck{cfg: cfg.withDefaults()}
}

func (c *nonsenseCheck) Name() string { return nonsenseCheckName }

func (c *nonsenseCheck) Apply(answers []string) Finding {
	count := 0
	reasons := make([]string, 0, len(answers))
	for i, answer := range answers {
		if ok, reason := IsNonsense(answer, c.cfg); ok {
			count++
			reasons = append(reasons, fmt.Sprintf("answer %d %s", i+1, reason))
		}
	}

	limit, disqualified := NonsenseCap(count, len(answers))
	return Finding{
		Triggered:    limit < NoCap,
		Cap:          limit,
		Disqualified: disqualified,
		Reason:       strings.Join(reasons, "; "),
		Count:        count,
	}
}

// NonsenseCap maps the number of nonsense answers to a cap. An interview with
// no answers at all counts as all-nonsense.
func NonsenseCap(nonsense, total int) (limit int, disqualified bool) {
	switch {
	case total == 0 || nonsense >= total:
		return CapAllNonsense, true
	case nonsense >= 2:
		return CapManyNonsense, true
	case nonsense == 1:
		return CapOneNonsense, false
	default:
		return NoCap, false
	}
}

// IsNonsense classifies a single answer and returns a short reason when it is
// considered a non-answer.
func IsNonsense(answer string, cfg Config) (bool, string) {
	cfg = cfg.withDefaults()

	text := strings.TrimSpace(answer)
	if text == "" {
		return true, "is empty"
	}

	if _, ok := nonAnswers[normalizePhrase(text)]; ok {
		return true, "is a non-answer phrase"
	}

	words := Words(text)
	if len(words) < cfg.MinWords {
		return true, fmt.Sprintf("has %d words (minimum %d)", len(words), cfg.MinWords)
	}

	if len(words) >= cfg.RepeatMinWords {
		if top := dominantCount(words); float64(top)/float64(len(words)) >= cfg.RepeatRatio {
			return true, "is dominated by one repeated word"
		}
	}

	if density := alphaDensity(text); density < cfg.AlphaDensity {
		return true, fmt.Sprintf("has alphabetic density %.2f", density)
	}

	if len(words) >= cfg.DiversityMinWords {
		if ratio := float64(distinct(words)) / float64(len(words)); ratio < cfg.DiversityRatio {
			return true, fmt.Sprintf("has distinct-word ratio %.2f", ratio)
		}
	}

	return false, ""
}

// Words splits text into lowercase word tokens.
func Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	})

	words := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'’")
		if f != "" {
			words = append(words, f)
		}
	}
	return words
}

func normalizePhrase(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.TrimRight(text, ".!?,;: ")
	text = strings.ReplaceAll(text, "’", "'")
	return strings.Join(strings.Fields(text), " ")
}

func dominantCount(words []string) int {
	counts := make(map[string]int, len(words))
	top := 0
	for _, w := range words {
		counts[w]++
		top = max(top, counts[w])
	}
	return top
}

func distinct(words []string) int {
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	return len(seen)
}

func alphaDensity(text string) float64 {
	letters, visible := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if visible == 0 {
		return 0
	}
	return float64(letters) / float64(visible)
}
