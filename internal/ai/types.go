// Package ai holds the domain types shared by the interview orchestrator, the
// scorer and the model providers.
package ai

import "context"

// Speaker identifies who produced a conversation entry.
type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerCandidate   Speaker = "candidate"
)

// Entry is one line of the conversation history.
type Entry struct {
	Role    Speaker `json:"role"`
	Content string  `json:"content"`
}

// Turn pairs a canonical question with the best transcript of its answer.
type Turn struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// Interview is the input of the final evaluation.
type Interview struct {
	Company string `json:"company" yaml:"company"`
	Role    string `json:"role" yaml:"role"`
	Turns   []Turn `json:"turns" yaml:"turns"`
}

// Answers returns the candidate answers in question order.
func (i Interview) Answers() []string {
	answers := make([]string, 0, len(i.Turns))
	for _, turn := range i.Turns {
		answers = append(answers, turn.Answer)
	}
	return answers
}

// Flags marks content categories that cap or disqualify a score.
type Flags struct {
	Unprofessional bool `json:"unprofessional" mapstructure:"unprofessional"`
	HarassmentHate bool `json:"harassment_hate" mapstructure:"harassment_hate"`
	Sexual         bool `json:"sexual" mapstructure:"sexual"`
	ViolenceThreat bool `json:"violence_threat" mapstructure:"violence_threat"`
}

// Severe reports whether any flag other than Unprofessional is set.
func (f Flags) Severe() bool {
	return f.HarassmentHate || f.Sexual || f.ViolenceThreat
}

// Union returns the flags set in either f or other.
func (f Flags) Union(other Flags) Flags {
	return Flags{
		Unprofessional: f.Unprofessional || other.Unprofessional,
		HarassmentHate: f.HarassmentHate || other.HarassmentHate,
		Sexual:         f.Sexual || other.Sexual,
		ViolenceThreat: f.ViolenceThreat || other.ViolenceThreat,
	}
}

// Basis records which stage produced an Evaluation.
type Basis string

const (
	BasisGuardrail Basis = "guardrail"
	BasisModel     Basis = "model"
	BasisFallback  Basis = "fallback"
)

// Evaluation is the terminal result of an interview.
type Evaluation struct {
	Score          int    `json:"score"`
	Disqualified   bool   `json:"disqualified"`
	Flags          Flags  `json:"flags"`
	ScoringVersion string `json:"scoring_version"`
	Basis          Basis  `json:"basis"`
}

// Evaluator turns a finished interview into an Evaluation. Implementations
// never fail: problems degrade to conservative scores.
type Evaluator interface {
	Evaluate(ctx context.Context, interview Interview) Evaluation
}
