package guardrail

import (
	"regexp"
	"strings"

	"github.com/frymyresume/interviewd/internal/ai"
)

// Names of the disqualifying-content checks.
const (
	CheckYelling         = "yelling_at_colleagues"
	CheckNonPerformance  = "deliberate_non_performance"
	CheckViolence        = "violence_threat"
	CheckIllegal         = "illegal_intent"
	CheckConditionalHarm = "harm_once_hired"
)

// Caps applied by the content checks.
const (
	CapYelling         = 5
	CapNonPerformance  = 10
	CapViolence        = 5
	CapIllegal         = 10
	CapConditionalHarm = 10
)

const (
	colleagues = `(co-?workers?|colleagues?|team ?mates?|team|staff|employees?|reports|juniors?|interns?|peers?)`
	persons    = `(him|her|them|you|someone|somebody|everyone|people|my (boss|manager|supervisor|co-?workers?|colleagues?|team ?mates?|team))`
	hiredWhen  = `(once|when|after|if|as soon as)\s+(i(?:'m| am| get| got)?\s+)?hired`
	harmIntent = `(get back at|revenge|destroy|ruin|make (them|you|everyone|people) (pay|regret|suffer)|take (them|you|it|everything) down|do (some)?thing bad|bad things|teach (them|you|everyone) a lesson|harm|damage|hurt)`

	violentVerb       = `(kill|murder|shoot|stab|hurt|attack|punch|strangle|beat up)`
	firstPersonIntent = `i(?:'ll|'d|'m going to|'m gonna|\s+(?:will|would|am going to|am gonna|want to|wanna|plan to|intend to|gonna))(?:\s+(?:really|just|actually|definitely|literally|seriously))*`
	firstPersonFiller = `((just|once|also|actually|basically|even|then|secretly|quietly|sometimes|often|regularly|still|would|will|could|did|have|had|used to|was|am|kind of|sort of)\s+){0,3}`
)

var (
	yellingPatterns = compile(
		`\b(yell|yelled|yelling|scream|screamed|screaming|shout|shouted|shouting|cursed|swore)\b[^.!?\n]{0,60}\b(at|to)\b[^.!?\n]{0,40}\b`+colleagues+`\b`,
	)

	nonPerformancePatterns = compile(
		`\b(deliberately|intentionally|purposely|on purpose)\b[^.!?\n]{0,40}\b(ignored|skipped|missed|stopped|didn'?t|did not|refused|abandoned|slacked|blew off|ghosted)\b`,
		`\b(ignored|skipped|missed|stopped doing|refused to do|abandoned|slacked off on|blew off)\b[^.!?\n]{0,40}\b(deliberately|intentionally|purposely|on purpose)\b`,
		`\b(abandoned|walked (out|away) (on|from)|ghosted|quit on)\s+(my|the|our)\s+(team|project|responsibilit(y|ies)|duties|work|clients?|customers?|shift)\b`,
		`\bi\s+(just\s+)?(refused|stopped|quit)\s+(to\s+)?(do|doing)\s+(my|any)\s+(job|work|tasks?|duties)\b`,
		`\bi\s+(just\s+)?(stopped|quit)\s+showing up\b`,
		`\bi\s+(just\s+)?(didn'?t|did not)\s+(bother|care)\s+(to\s+)?(do|finish|complete|show up)\b`,
	)

	violencePatterns = compile(
		`\b(kill|murder|shoot|stab|strangle|punch|attack)\s+`+persons+`\b(\s+\S+){0,2}`,
		`\bbeat\s+(him|her|them|you|someone|somebody)\s+up\b`,
		`\b(killed|murdered|stabbed|strangled|punched|beat up|attacked|assaulted|slapped)\s+`+persons+`\b`,
		`\bthreaten(ed|ing)?\s+(to\s+)?(kill|hurt|harm|beat|him|her|them|you|my)\b`,
		`\b`+firstPersonIntent+`\s+`+violentVerb+`\s+\S+(\s+\S+){0,2}`,
		`\b`+firstPersonIntent+`\s+`+violentVerb+`\s*([.!?,;]|$)`,
		`\b(bring|brought|bringing)\s+a\s+(gun|knife|weapon)\b`,
		`\b(bomb|blow up)\s+(the|their|your|this)\s+(office|building|company|place)\b`,
	)

	// Work jargon that reuses violent verbs ("kill the process", "shoot you an email").
	benignViolence = compile(
		`\b`+violentVerb+`\s+(it|this|that)\b`,
		`\b(shoot|send)\s+(him|her|them|you|me|us)\s+(an?\s+)?(e-?mail|message|note|text|line|dm|invite|link|update)\b`,
		`\b(process(es)?|jobs?|tasks?|servers?|containers?|pods?|builds?|quer(y|ies)|threads?|sessions?|connections?|bugs?|features?|ideas?|problems?|issues?|questions?|presentations?|demos?|deadlines?|goals?|chances?|morale|performance|competition|backlog|tickets?|tests?|meetings?|branch(es)?|deploys?|deployments?|scripts?|services?|workloads?|instances?|back|knees?|feelings)\b`,
	)

	illegalPatterns = compile(
		`\bi(\s+|'m\s+|'ve\s+|'d\s+)`+firstPersonFiller+`(steal|stole|stealing|embezzl\w*|sabotag\w*|blackmail(ed|ing)?|extort(ed|ing)?|brib(e|ed|ing)|falsif\w*|forg(e|ed|ing)|committed fraud|commit fraud|hack(ed|ing)?\s+(into|the|their|our|his|her)|leak(ed|ing)?\s+(the|our|their|company|customer|client|confidential))\b`,
		`\bi(\s+|'m\s+|'ve\s+)`+firstPersonFiller+`(took|take|pocketed|skimmed|kept|taking)\s+(\w+\s+){0,2}(money|cash|funds|equipment|inventory|merchandise)\s+(from|out of)\b`,
		`\bi\s+`+firstPersonFiller+`(committed|got away with|covered up|hid)\s+(the\s+|a\s+|my\s+)?(theft|fraud|embezzlement)\b`,
		`\bmy\s+(theft|fraud|embezzlement)\b`,
		`\b(would|will|could|plan to|going to|gonna|want to|wanna)\s+(steal|embezzle|sabotage|blackmail|extort|bribe|commit fraud|hack into|falsify|forge)\b`,
		`\bleak(ed|ing)?\s+(confidential|customer|client|company)\s+(data|information|secrets|files)\b`,
	)

	conditionalHarmPatterns = compile(
		`\b`+hiredWhen+`\b[^.!?\n]{0,80}\b`+harmIntent+`\b`,
		`\b`+harmIntent+`\b[^.!?\n]{0,80}\b`+hiredWhen+`\b`,
	)
)

type patternCheck struct {
	toggle
	name         string
	patterns     []*regexp.Regexp
	benign       []*regexp.Regexp
	cap          int
	disqualifies bool
	flags        ai.Flags
	reason       string
}

// ContentChecks returns the disqualifying-content checks in evaluation order.
func ContentChecks() []Check {
	return []Check{
		&patternCheck{
			name:         CheckYelling,
			patterns:     yellingPatterns,
			cap:          CapYelling,
			disqualifies: true,
			flags:        ai.Flags{Unprofessional: true},
			reason:       "admits yelling at colleagues",
		},
		&patternCheck{
			name:         CheckNonPerformance,
			patterns:     nonPerformancePatterns,
			cap:          CapNonPerformance,
			disqualifies: true,
			flags:        ai.Flags{Unprofessional: true},
			reason:       "admits deliberately abandoning responsibilities",
		},
		&patternCheck{
			name:         CheckViolence,
			patterns:     violencePatterns,
			benign:       benignViolence,
			cap:          CapViolence,
			disqualifies: true,
			flags:        ai.Flags{ViolenceThreat: true},
			reason:       "contains violent or threatening language",
		},
		&patternCheck{
			name:         CheckIllegal,
			patterns:     illegalPatterns,
			cap:          CapIllegal,
			disqualifies: true,
			flags:        ai.Flags{Unprofessional: true},
			reason:       "describes illegal or unethical intent",
		},
		&patternCheck{
			name:         CheckConditionalHarm,
			patterns:     conditionalHarmPatterns,
			cap:          CapConditionalHarm,
			disqualifies: true,
			flags:        ai.Flags{Unprofessional: true},
			reason:       "states harmful intent once hired",
		},
	}
}

func (c *patternCheck) Name() string { return c.name }

func (c *patternCheck) Apply(answers []string) Finding {
	text := normalizeQuotes(strings.Join(answers, "\n"))

	for _, re := range c.patterns {
		for _, match := range re.FindAllString(text, -1) {
			if matchesAny(c.benign, match) {
				continue
			}
			return Finding{
				Triggered:    true,
				Cap:          c.cap,
				Disqualified: c.disqualifies,
				Flags:        c.flags,
				Reason:       c.reason + " (" + strings.TrimSpace(match) + ")",
				Count:        1,
			}
		}
	}

	return Finding{Cap: NoCap}
}

func compile(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(`(?i)`+p))
	}
	return compiled
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func normalizeQuotes(s string) string {
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}
