package interview

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/frymyresume/interviewd/internal/ai"
)

// MaxQuestions is the fixed number of questions per interview.
const MaxQuestions = 3

// ErrInvalidTransition is returned when an operation does not fit the current
// turn state.
var ErrInvalidTransition = errors.New("invalid turn transition")

// AudioFloor is the minimum amount of candidate audio an answer needs.
type AudioFloor struct {
	MinDuration time.Duration
	MinChunks   int
	SampleRate  int
}

// Duration converts a byte count of 16-bit mono PCM to playback time.
func (f AudioFloor) Duration(bytes int) time.Duration {
	if f.SampleRate <= 0 || bytes <= 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(2*f.SampleRate)
}

// EndTurnResult describes how an end_of_turn signal was handled.
type EndTurnResult struct {
	// Ignored is set when no answer was expected.
	Ignored bool
	// Resume holds the resume_listening reason when a guard failed.
	Resume string
	// Audio and Chunks are the amounts received before the guard decision.
	Audio  time.Duration
	Chunks int
	// Question is the committed question number.
	Question int
	// Next is the question to ask next, or zero when the interview closes.
	Next int
	// Answer is the committed transcript.
	Answer string
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID               string    `json:"id"`
	Company          string    `json:"company"`
	Role             string    `json:"role"`
	State            string    `json:"state"`
	QuestionsAsked   int       `json:"questions_asked"`
	AnswersCompleted int       `json:"answers_completed"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session is the state of one interview. It is shared by the inbound task,
// which owns turn progress, counters and history commits, and the outbound
// task, which owns live transcript accumulation. All access is serialized by
// an internal mutex.
type Session struct {
	mu sync.Mutex

	id        string
	company   string
	role      string
	questions []string
	createdAt time.Time

	state            TurnState
	questionsAsked   int
	answersCompleted int
	history          []ai.Entry
	answers          map[int]string
	clientFinals     map[int]string
	recorded         map[int]struct{}

	audioBytes    int
	audioChunks   int
	audioStreamed bool

	evaluation *ai.Evaluation
}

// NewSession creates a session in AskingQuestion(1). questions must hold
// exactly MaxQuestions non-empty entries.
func NewSession(id, company, role string, questions []string) (*Session, error) {
	if len(questions) != MaxQuestions {
		return nil, fmt.Errorf("expected %d questions, got %d", MaxQuestions, len(questions))
	}
	for i, q := range questions {
		if strings.TrimSpace(q) == "" {
			return nil, fmt.Errorf("question %d is empty", i+1)
		}
	}

	return &Session{
		id:           id,
		company:      company,
		role:         role,
		questions:    append([]string(nil), questions...),
		createdAt:    time.Now(),
		state:        TurnState{Phase: PhaseAskingQuestion, Question: 1},
		answers:      make(map[int]string, MaxQuestions),
		clientFinals: make(map[int]string, MaxQuestions),
		recorded:     make(map[int]struct{}, MaxQuestions),
	}, nil
}

func (s *Session) ID() string      { return s.id }
func (s *Session) Company() string { return s.company }
func (s *Session) Role() string    { return s.role }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Question returns the canonical text of question n.
func (s *Session) Question(n int) string {
	if n < 1 || n > len(s.questions) {
		return ""
	}
	return s.questions[n-1]
}

// State returns the current turn state.
func (s *Session) State() TurnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Counters returns questionsAsked and answersCompleted.
func (s *Session) Counters() (asked, completed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionsAsked, s.answersCompleted
}

// BeginQuestion moves to AskingQuestion(n), records the canonical question in
// the history and returns its text. Questions are asked strictly in order.
func (s *Session) BeginQuestion(n int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n != s.questionsAsked+1 || n > MaxQuestions {
		return "", fmt.Errorf("%w: ask question %d after %d", ErrInvalidTransition, n, s.questionsAsked)
	}
	if n > 1 && !s.isRecorded(n-1) {
		return "", fmt.Errorf("%w: question %d is not answered", ErrInvalidTransition, n-1)
	}
	if s.state.Phase != PhaseAskingQuestion && s.state.Phase != PhaseAwaitingAnswer {
		return "", fmt.Errorf("%w: ask question from %s", ErrInvalidTransition, s.state)
	}

	text := s.questions[n-1]
	s.state = TurnState{Phase: PhaseAskingQuestion, Question: n}
	s.questionsAsked = n
	s.history = append(s.history, ai.Entry{Role: ai.SpeakerInterviewer, Content: text})
	s.resetAudio()
	return text, nil
}

// FinishDelivery handles an upstream turn-complete signal. It moves
// AskingQuestion(n) to AwaitingAnswer(n) and Closing to Evaluating; in any
// other state the signal is ignored and ok is false.
func (s *Session) FinishDelivery() (state TurnState, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state.Phase == PhaseAskingQuestion && s.questionsAsked == s.state.Question:
		s.state = TurnState{Phase: PhaseAwaitingAnswer, Question: s.state.Question}
		s.resetAudio()
		return s.state, true
	case s.state.Phase == PhaseClosing:
		s.state = TurnState{Phase: PhaseEvaluating}
		return s.state, true
	default:
		return s.state, false
	}
}

// AcceptAudio records a chunk of candidate audio and reports whether it may be
// forwarded upstream. Audio outside an open answer is dropped.
func (s *Session) AcceptAudio(size int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.answerOpen() {
		return false
	}
	s.audioBytes += size
	s.audioChunks++
	s.audioStreamed = true
	return true
}

// EndTurn applies the speech and minimum-audio guards to an end_of_turn
// signal. When both pass, the best transcript for the current question is
// committed to the history exactly once.
func (s *Session) EndTurn(hadSpeech bool, floor AudioFloor) EndTurnResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.answerOpen() {
		return EndTurnResult{Ignored: true}
	}

	result := EndTurnResult{
		Audio:  floor.Duration(s.audioBytes),
		Chunks: s.audioChunks,
	}

	if !hadSpeech {
		s.resetAudio()
		result.Resume = ReasonNoSpeech
		return result
	}
	if result.Audio < floor.MinDuration || result.Chunks < floor.MinChunks {
		s.resetAudio()
		result.Resume = ReasonTooShort
		return result
	}

	n := s.state.Question
	result.Question = n
	result.Answer = s.commit(n)

	if s.audioStreamed && s.answersCompleted < s.questionsAsked {
		s.answersCompleted++
	}
	s.resetAudio()

	if n < MaxQuestions {
		result.Next = n + 1
	}
	return result
}

// StartClosing moves to Closing once the last answer is committed.
func (s *Session) StartClosing() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase != PhaseAwaitingAnswer || s.state.Question != MaxQuestions || !s.isRecorded(MaxQuestions) {
		return fmt.Errorf("%w: close from %s", ErrInvalidTransition, s.state)
	}
	s.state = TurnState{Phase: PhaseClosing}
	return nil
}

// Complete stores the final evaluation and moves to Complete.
func (s *Session) Complete(evaluation ai.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase != PhaseEvaluating {
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, s.state)
	}
	s.evaluation = &evaluation
	s.state = TurnState{Phase: PhaseComplete}
	return nil
}

// Evaluation returns the final evaluation once the session is complete.
func (s *Session) Evaluation() (ai.Evaluation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evaluation == nil {
		return ai.Evaluation{}, false
	}
	return *s.evaluation, true
}

// TranscriptTurn returns the question whose answer live input transcription
// currently belongs to, or zero before the first answer window opens.
func (s *Session) TranscriptTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.Phase {
	case PhaseAwaitingAnswer:
		return s.state.Question
	case PhaseAskingQuestion:
		return s.state.Question - 1
	default:
		return s.questionsAsked
	}
}

// RecordTranscript stores the merged live transcript of answer n. Text
// replaces the stored answer only when it is longer.
func (s *Session) RecordTranscript(n int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offerAnswer(n, text)
}

// RecordClientFinal stores the client's final transcript of answer n. Before
// the commit it takes precedence over the live transcript; after the commit it
// can only lengthen the stored answer.
func (s *Session) RecordClientFinal(n int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text = strings.TrimSpace(text)
	if n < 1 || n > MaxQuestions || text == "" {
		return
	}
	if s.isRecorded(n) {
		s.offerAnswer(n, text)
		return
	}
	s.clientFinals[n] = text
}

// Answers returns the best transcript of every question, in order. Missing
// answers are empty strings.
func (s *Session) Answers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := make([]string, MaxQuestions)
	for i := range answers {
		answers[i] = s.answers[i+1]
	}
	return answers
}

// Interview returns the evaluation input for this session.
func (s *Session) Interview() ai.Interview {
	answers := s.Answers()

	turns := make([]ai.Turn, 0, MaxQuestions)
	for i, q := range s.questions {
		turns = append(turns, ai.Turn{Question: q, Answer: answers[i]})
	}
	return ai.Interview{Company: s.company, Role: s.role, Turns: turns}
}

// History returns a copy of the conversation history.
func (s *Session) History() []ai.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.Entry(nil), s.history...)
}

// Recorded reports whether answer n has been committed.
func (s *Session) Recorded(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRecorded(n)
}

// Snapshot returns a point-in-time view for listings.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:               s.id,
		Company:          s.company,
		Role:             s.role,
		State:            s.state.String(),
		QuestionsAsked:   s.questionsAsked,
		AnswersCompleted: s.answersCompleted,
		CreatedAt:        s.createdAt,
	}
}

func (s *Session) answerOpen() bool {
	return s.state.Phase == PhaseAwaitingAnswer && !s.isRecorded(s.state.Question)
}

func (s *Session) isRecorded(n int) bool {
	_, ok := s.recorded[n]
	return ok
}

func (s *Session) commit(n int) string {
	answer := s.clientFinals[n]
	if answer == "" {
		answer = strings.TrimSpace(s.answers[n])
	}
	s.answers[n] = answer
	s.recorded[n] = struct{}{}
	s.history = append(s.history, ai.Entry{Role: ai.SpeakerCandidate, Content: answer})
	return answer
}

func (s *Session) offerAnswer(n int, text string) {
	text = strings.TrimSpace(text)
	if n < 1 || n > MaxQuestions || text == "" {
		return
	}
	if utf8.RuneCountInString(text) > utf8.RuneCountInString(s.answers[n]) {
		s.answers[n] = text
	}
}

func (s *Session) resetAudio() {
	s.audioBytes = 0
	s.audioChunks = 0
	s.audioStreamed = false
}
