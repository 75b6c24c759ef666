package interview

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/frymyresume/interviewd/internal/ai"
)

var testFloor = AudioFloor{MinDuration: 900 * time.Millisecond, MinChunks: 3, SampleRate: 16000}

func newTestSession(t *testing.T) *Session {
	t.Helper()

	s, err := NewSession("session-1", "Acme", "Engineer", DefaultQuestions)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

// openAnswer asks question n and lets the interviewer finish it.
func openAnswer(t *testing.T, s *Session, n int) {
	t.Helper()

	if _, err := s.BeginQuestion(n); err != nil {
		t.Fatalf("begin question %d: %v", n, err)
	}
	if state, ok := s.FinishDelivery(); !ok || state != (TurnState{Phase: PhaseAwaitingAnswer, Question: n}) {
		t.Fatalf("finish delivery of %d: state=%s ok=%v", n, state, ok)
	}
}

func streamAnswer(s *Session, chunks, bytesPerChunk int) {
	for i := 0; i < chunks; i++ {
		s.AcceptAudio(bytesPerChunk)
	}
}

func TestNewSessionValidatesQuestions(t *testing.T) {
	if _, err := NewSession("id", "c", "r", DefaultQuestions[:2]); err == nil {
		t.Fatal("expected error for two questions")
	}
	if _, err := NewSession("id", "c", "r", []string{"a", " ", "c"}); err == nil {
		t.Fatal("expected error for blank question")
	}

	s := newTestSession(t)
	if state := s.State(); state != (TurnState{Phase: PhaseAskingQuestion, Question: 1}) {
		t.Fatalf("unexpected initial state %s", state)
	}
	if asked, completed := s.Counters(); asked != 0 || completed != 0 {
		t.Fatalf("unexpected initial counters %d/%d", asked, completed)
	}
}

func TestAudioFloorDuration(t *testing.T) {
	if got := testFloor.Duration(28800); got != 900*time.Millisecond {
		t.Fatalf("28800 bytes at 16kHz = %s, want 900ms", got)
	}
	if got := (AudioFloor{}).Duration(1000); got != 0 {
		t.Fatalf("zero sample rate must yield zero, got %s", got)
	}
}

func TestBeginQuestionEnforcesOrder(t *testing.T) {
	s := newTestSession(t)

	if _, err := s.BeginQuestion(2); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	openAnswer(t, s, 1)
	if _, err := s.BeginQuestion(2); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("question 2 must wait for answer 1, got %v", err)
	}

	streamAnswer(s, 3, 12800)
	if res := s.EndTurn(true, testFloor); res.Next != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := s.BeginQuestion(2); err != nil {
		t.Fatalf("begin question 2: %v", err)
	}
}

func TestAcceptAudioOnlyWhileAnswerIsOpen(t *testing.T) {
	s := newTestSession(t)

	if _, err := s.BeginQuestion(1); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if s.AcceptAudio(100) {
		t.Fatal("audio must be dropped while the question is asked")
	}

	if _, ok := s.FinishDelivery(); !ok {
		t.Fatal("expected delivery to finish")
	}
	if !s.AcceptAudio(100) {
		t.Fatal("audio must be accepted while awaiting the answer")
	}

	streamAnswer(s, 3, 12800)
	s.EndTurn(true, testFloor)
	if s.AcceptAudio(100) {
		t.Fatal("audio must be dropped after the answer is committed")
	}
}

func TestEndTurnGuards(t *testing.T) {
	s := newTestSession(t)

	if res := s.EndTurn(true, testFloor); !res.Ignored {
		t.Fatalf("end_of_turn before the answer window must be ignored, got %+v", res)
	}

	openAnswer(t, s, 1)

	streamAnswer(s, 5, 12800)
	res := s.EndTurn(false, testFloor)
	if res.Resume != ReasonNoSpeech {
		t.Fatalf("expected no_speech, got %+v", res)
	}

	// The no_speech guard discarded the earlier audio.
	streamAnswer(s, 2, 12800)
	res = s.EndTurn(true, testFloor)
	if res.Resume != ReasonTooShort || res.Chunks != 2 {
		t.Fatalf("expected too_short with 2 chunks, got %+v", res)
	}

	streamAnswer(s, 4, 6400)
	res = s.EndTurn(true, testFloor)
	if res.Resume != ReasonTooShort || res.Audio != 800*time.Millisecond {
		t.Fatalf("expected too_short at 800ms, got %+v", res)
	}

	if s.Recorded(1) || len(s.History()) != 1 {
		t.Fatalf("guards must not commit anything")
	}
	if _, completed := s.Counters(); completed != 0 {
		t.Fatalf("guards must not complete answers")
	}
	if state := s.State(); state != (TurnState{Phase: PhaseAwaitingAnswer, Question: 1}) {
		t.Fatalf("guards must keep the state, got %s", state)
	}
}

func TestEndTurnCommitsOnce(t *testing.T) {
	s := newTestSession(t)
	openAnswer(t, s, 1)

	s.RecordTranscript(1, "I rebuilt the deploy pipeline.")
	streamAnswer(s, 3, 12800)

	res := s.EndTurn(true, testFloor)
	if res.Question != 1 || res.Next != 2 || res.Answer != "I rebuilt the deploy pipeline." {
		t.Fatalf("unexpected commit %+v", res)
	}

	if again := s.EndTurn(true, testFloor); !again.Ignored {
		t.Fatalf("second end_of_turn must be ignored, got %+v", again)
	}

	history := s.History()
	if len(history) != 2 || history[1] != (ai.Entry{Role: ai.SpeakerCandidate, Content: "I rebuilt the deploy pipeline."}) {
		t.Fatalf("unexpected history %+v", history)
	}
	if asked, completed := s.Counters(); asked != 1 || completed != 1 {
		t.Fatalf("unexpected counters %d/%d", asked, completed)
	}
}

func TestClientFinalPreferredOverLiveTranscript(t *testing.T) {
	s := newTestSession(t)
	openAnswer(t, s, 1)

	s.RecordTranscript(1, "I rebuilt the deploy pipe line and it was much faster")
	s.RecordClientFinal(1, "I rebuilt the deploy pipeline.")
	streamAnswer(s, 3, 12800)

	res := s.EndTurn(true, testFloor)
	if res.Answer != "I rebuilt the deploy pipeline." {
		t.Fatalf("expected client final, got %q", res.Answer)
	}
	if got := s.Answers()[0]; got != "I rebuilt the deploy pipeline." {
		t.Fatalf("unexpected stored answer %q", got)
	}
}

func TestLateTranscriptUpdatesAnswerNotHistory(t *testing.T) {
	s := newTestSession(t)
	openAnswer(t, s, 1)

	s.RecordTranscript(1, "I led")
	streamAnswer(s, 3, 12800)
	s.EndTurn(true, testFloor)

	s.RecordTranscript(1, "I led the incident review")
	s.RecordTranscript(1, "short")
	s.RecordClientFinal(1, "I")

	if got := s.Answers()[0]; got != "I led the incident review" {
		t.Fatalf("expected late transcript to extend the answer, got %q", got)
	}
	if history := s.History(); history[1].Content != "I led" {
		t.Fatalf("history must keep the committed text, got %q", history[1].Content)
	}
}

func TestTranscriptTurn(t *testing.T) {
	s := newTestSession(t)

	if n := s.TranscriptTurn(); n != 0 {
		t.Fatalf("expected no transcript turn before the first answer, got %d", n)
	}
	openAnswer(t, s, 1)
	if n := s.TranscriptTurn(); n != 1 {
		t.Fatalf("expected turn 1, got %d", n)
	}

	streamAnswer(s, 3, 12800)
	s.EndTurn(true, testFloor)
	if _, err := s.BeginQuestion(2); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if n := s.TranscriptTurn(); n != 1 {
		t.Fatalf("late fragments while asking 2 belong to answer 1, got %d", n)
	}
}

func TestClosingAndCompletion(t *testing.T) {
	s := newTestSession(t)

	if err := s.StartClosing(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	for n := 1; n <= MaxQuestions; n++ {
		openAnswer(t, s, n)
		streamAnswer(s, 3, 12800)
		if res := s.EndTurn(true, testFloor); res.Question != n {
			t.Fatalf("unexpected commit %+v", res)
		}
	}

	if err := s.Complete(ai.Evaluation{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete before evaluating must fail, got %v", err)
	}
	if err := s.StartClosing(); err != nil {
		t.Fatalf("start closing: %v", err)
	}
	if state, ok := s.FinishDelivery(); !ok || state.Phase != PhaseEvaluating {
		t.Fatalf("expected evaluating, got %s", state)
	}
	if err := s.Complete(ai.Evaluation{Score: 70}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	evaluation, ok := s.Evaluation()
	if !ok || evaluation.Score != 70 {
		t.Fatalf("unexpected evaluation %+v", evaluation)
	}
	snapshot := s.Snapshot()
	if snapshot.State != "complete" || snapshot.QuestionsAsked != 3 || snapshot.AnswersCompleted != 3 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

// TestSessionCountersStayOrdered drives random event sequences and checks
// the counter and history invariants after every step.
func TestSessionCountersStayOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		s := newTestSession(t)
		prevAsked, prevCompleted := 0, 0

		for step := 0; step < 60; step++ {
			switch rng.Intn(7) {
			case 0:
				asked, _ := s.Counters()
				_, _ = s.BeginQuestion(asked + 1)
			case 1:
				s.FinishDelivery()
			case 2, 3:
				s.AcceptAudio(rng.Intn(16000))
			case 4:
				s.EndTurn(rng.Intn(4) != 0, testFloor)
			case 5:
				s.RecordTranscript(rng.Intn(4), "answer text")
			case 6:
				_ = s.StartClosing()
			}

			asked, completed := s.Counters()
			if completed > asked || asked > MaxQuestions {
				t.Fatalf("run %d step %d: completed=%d asked=%d", run, step, completed, asked)
			}
			if asked < prevAsked || completed < prevCompleted {
				t.Fatalf("run %d step %d: counters decreased", run, step)
			}
			prevAsked, prevCompleted = asked, completed

			history := s.History()
			for n := 1; n <= asked; n++ {
				if entry := history[2*n-2]; entry.Role != ai.SpeakerInterviewer || entry.Content != DefaultQuestions[n-1] {
					t.Fatalf("run %d step %d: history[%d] = %+v", run, step, 2*n-2, entry)
				}
			}
		}
	}
}
