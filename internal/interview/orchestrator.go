package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/frymyresume/interviewd/internal/ai"
	"github.com/frymyresume/interviewd/internal/logger"
	"github.com/frymyresume/interviewd/internal/transcript"
	"github.com/frymyresume/interviewd/internal/utils"
)

const (
	askInstruction     = "Ask the following question exactly as written, with no extra words: "
	closingInstruction = "Thank the candidate, provide a brief closing remark, and end the interview."
	reviewingText      = "Reviewing your interview..."
)

// ClientConn is the candidate-facing message stream. WriteMessage must be safe
// for concurrent use; ReadMessage is called from a single goroutine.
type ClientConn interface {
	ReadHandshake() (Handshake, error)
	ReadMessage() (ClientMessage, error)
	WriteMessage(msg ServerMessage) error
	Close() error
}

// Orchestrator drives one interview between a client and a live session.
type Orchestrator struct {
	session   *Session
	client    ClientConn
	live      ai.LiveSession
	evaluator ai.Evaluator
	cfg       Config
	logger    *zap.Logger

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error

	reportOnce sync.Once
}

// NewOrchestrator wires the collaborators of a session.
func NewOrchestrator(session *Session, client ClientConn, live ai.LiveSession, evaluator ai.Evaluator, cfg Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		session:   session,
		client:    client,
		live:      live,
		evaluator: evaluator,
		cfg:       cfg.withDefaults(),
		logger:    log,
		now:       time.Now,
		wait:      utils.WaitFor,
	}
}

// Run asks the first question and relays both directions until the interview
// completes, either side fails, or ctx is cancelled. Both connections are
// closed on return.
func (o *Orchestrator) Run(ctx context.Context) (ai.Evaluation, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := o.ask(1); err != nil {
		o.teardown()
		return ai.Evaluation{}, err
	}

	errs := make(chan error, 2)
	go func() { errs <- o.outbound(ctx) }()
	go func() { errs <- o.inbound(ctx) }()

	pending := 2
	var err error
	select {
	case err = <-errs:
		pending--
	case <-ctx.Done():
		err = ctx.Err()
	}

	cancel()
	o.teardown()
	for ; pending > 0; pending-- {
		<-errs
	}

	if evaluation, ok := o.session.Evaluation(); ok {
		return evaluation, nil
	}
	if err == nil {
		err = errors.New("interview ended before completion")
	}
	return ai.Evaluation{}, err
}

func (o *Orchestrator) teardown() {
	if err := o.live.Close(); err != nil {
		o.logger.Debug("close live session", zap.Error(err))
	}
	if err := o.client.Close(); err != nil {
		o.logger.Debug("close client connection", zap.Error(err))
	}
}

// reportError sends a single terminal error message to the client.
func (o *Orchestrator) reportError(message string, err error) {
	o.reportOnce.Do(func() {
		o.logger.Error(message, zap.Error(err))
		if werr := o.client.WriteMessage(ErrorMessage{Message: fmt.Sprintf("%s: %v", message, err)}); werr != nil {
			o.logger.Debug("report error to client", zap.Error(werr))
		}
	})
}

func (o *Orchestrator) ask(n int) error {
	text, err := o.session.BeginQuestion(n)
	if err != nil {
		return err
	}

	if err := o.client.WriteMessage(QuestionMessage{QuestionNumber: n, TotalQuestions: MaxQuestions, Content: text}); err != nil {
		return fmt.Errorf("send question: %w", err)
	}
	if err := o.live.SendText(askInstruction + text); err != nil {
		o.reportError("upstream send failed", err)
		return fmt.Errorf("instruct upstream: %w", err)
	}

	o.logger.Info("question delivered", logger.Question(n))
	return nil
}

func (o *Orchestrator) closeInterview() error {
	if err := o.session.StartClosing(); err != nil {
		return err
	}
	if err := o.live.SendText(closingInstruction); err != nil {
		o.reportError("upstream send failed", err)
		return fmt.Errorf("instruct upstream: %w", err)
	}
	o.logger.Info("closing interview")
	return nil
}

// outbound relays upstream events to the client. It returns nil once the
// interview is complete.
func (o *Orchestrator) outbound(ctx context.Context) error {
	buffer := transcript.NewBuffer(o.cfg.TranscriptWindow)
	var lastFlush time.Time

	for {
		event, err := o.live.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.reportError("upstream connection lost", err)
			return fmt.Errorf("receive from upstream: %w", err)
		}

		if err := o.forwardAudio(event.Audio); err != nil {
			return err
		}

		if event.Text != "" {
			o.logger.Debug("interviewer text suppressed", zap.String("text", utils.TruncateForLog(event.Text, 80)))
		}

		if in := event.InputTranscription; in != nil && in.Text != "" {
			if n := o.session.TranscriptTurn(); n > 0 {
				merged := buffer.Add(n, in.Text)
				o.session.RecordTranscript(n, merged)

				now := o.now()
				if in.Finished || now.Sub(lastFlush) >= o.cfg.FlushInterval {
					lastFlush = now
					if err := o.client.WriteMessage(TextMessage{Content: merged, Speaker: ai.SpeakerCandidate}); err != nil {
						return fmt.Errorf("send transcript: %w", err)
					}
				}
			}
		}

		if event.TurnComplete {
			done, err := o.turnComplete(ctx)
			if err != nil || done {
				return err
			}
		}
	}
}

func (o *Orchestrator) forwardAudio(chunks []ai.AudioChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if state := o.session.State(); !state.ForwardsInterviewerAudio() {
		o.logger.Debug("interviewer audio dropped", zap.Stringer("state", state), zap.Int("chunks", len(chunks)))
		return nil
	}

	for _, chunk := range chunks {
		msg := OutputAudioMessage{
			Format:     AudioFormat,
			SampleRate: chunk.SampleRate,
			MIMEType:   chunk.MIMEType,
			Data:       chunk.Data,
		}
		if err := o.client.WriteMessage(msg); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) turnComplete(ctx context.Context) (bool, error) {
	state, ok := o.session.FinishDelivery()
	if !ok {
		o.logger.Debug("turn complete ignored", zap.Stringer("state", state))
		return false, nil
	}

	switch state.Phase {
	case PhaseAwaitingAnswer:
		o.logger.Info("interviewer finished question", logger.Question(state.Question))
		msg := TurnCompleteMessage{QuestionNumber: state.Question, TotalQuestions: MaxQuestions}
		if err := o.client.WriteMessage(msg); err != nil {
			return false, fmt.Errorf("send turn complete: %w", err)
		}
		return false, nil

	case PhaseEvaluating:
		if err := o.client.WriteMessage(ReviewingMessage{Message: reviewingText}); err != nil {
			return false, fmt.Errorf("send reviewing: %w", err)
		}

		evaluation := o.evaluator.Evaluate(ctx, o.session.Interview())
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := o.session.Complete(evaluation); err != nil {
			return false, err
		}

		o.logger.Info("interview complete",
			zap.Int("score", evaluation.Score),
			zap.Bool("disqualified", evaluation.Disqualified),
			zap.String("basis", string(evaluation.Basis)),
		)

		msg := InterviewCompleteMessage{
			Score:          evaluation.Score,
			Disqualified:   evaluation.Disqualified,
			Flags:          evaluation.Flags,
			ScoringVersion: evaluation.ScoringVersion,
		}
		if err := o.client.WriteMessage(msg); err != nil {
			o.logger.Warn("send interview result", zap.Error(err))
		}
		return true, nil
	}

	return false, nil
}

// inbound relays client messages upstream and drives answer commits.
func (o *Orchestrator) inbound(ctx context.Context) error {
	for {
		msg, err := o.client.ReadMessage()
		if err != nil {
			if errors.Is(err, ErrUnknownMessage) || errors.Is(err, ErrMalformedMessage) {
				o.logger.Debug("client message skipped", zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read client message: %w", err)
		}

		switch m := msg.(type) {
		case AudioMessage:
			if !o.session.AcceptAudio(len(m.Data)) {
				continue
			}
			if err := o.live.SendAudio(m.Data); err != nil {
				o.reportError("upstream send failed", err)
				return fmt.Errorf("forward audio: %w", err)
			}

		case TranscriptFinalMessage:
			o.session.RecordClientFinal(m.QuestionNumber, m.Text)

		case EndOfTurnMessage:
			if err := o.endTurn(ctx, m); err != nil {
				return err
			}
		}
	}
}

func (o *Orchestrator) endTurn(ctx context.Context, m EndOfTurnMessage) error {
	floor := o.cfg.Floor()
	result := o.session.EndTurn(m.SpeechDetected(), floor)

	switch {
	case result.Ignored:
		o.logger.Debug("end of turn ignored", zap.Stringer("state", o.session.State()))
		return nil

	case result.Resume != "":
		msg := ResumeListeningMessage{Reason: result.Resume}
		if result.Resume == ReasonTooShort {
			msg.MinAudioMS = int(floor.MinDuration / time.Millisecond)
			msg.MinChunks = floor.MinChunks
		}
		o.logger.Info("resume listening",
			zap.String("reason", result.Resume),
			zap.Duration("audio", result.Audio),
			zap.Int("chunks", result.Chunks),
		)
		if err := o.client.WriteMessage(msg); err != nil {
			return fmt.Errorf("send resume listening: %w", err)
		}
		return nil
	}

	o.logger.Info("answer committed",
		logger.Question(result.Question),
		zap.Duration("audio", result.Audio),
		zap.Int("answer_length", len(result.Answer)),
	)

	if err := o.live.EndAudio(); err != nil {
		o.reportError("upstream send failed", err)
		return fmt.Errorf("end upstream audio: %w", err)
	}

	if err := o.wait(ctx, o.cfg.GraceDelay); err != nil {
		return err
	}

	if result.Next > 0 {
		return o.ask(result.Next)
	}
	return o.closeInterview()
}
