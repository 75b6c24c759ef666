package interview

import "fmt"

// Phase is a turn-taking state.
type Phase int

const (
	PhaseAskingQuestion Phase = iota
	PhaseAwaitingAnswer
	PhaseClosing
	PhaseEvaluating
	PhaseComplete
)

var phaseNames = map[Phase]string{
	PhaseAskingQuestion: "asking_question",
	PhaseAwaitingAnswer: "awaiting_answer",
	PhaseClosing:        "closing",
	PhaseEvaluating:     "evaluating",
	PhaseComplete:       "complete",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// TurnState is the current phase plus the question it refers to. Question is
// zero for phases after the last answer.
type TurnState struct {
	Phase    Phase
	Question int
}

func (s TurnState) String() string {
	if s.Question > 0 {
		return fmt.Sprintf("%s(%d)", s.Phase, s.Question)
	}
	return s.Phase.String()
}

// ForwardsInterviewerAudio reports whether upstream audio may reach the
// client in this state.
func (s TurnState) ForwardsInterviewerAudio() bool {
	return s.Phase == PhaseAskingQuestion || s.Phase == PhaseClosing
}
