// Package interview runs real-time voice interviews: it owns the per-session
// state machine, relays audio between the candidate and a live speech model,
// and scores the result once the last answer is in.
package interview

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/frymyresume/interviewd/internal/ai"
	"github.com/frymyresume/interviewd/internal/logger"
)

// Service accepts candidate connections and runs one interview per connection.
type Service struct {
	questions *QuestionSource
	dialer    ai.LiveDialer
	evaluator ai.Evaluator
	registry  *Registry
	cfg       Config
	logger    *zap.Logger
}

// NewService wires the per-connection dependencies.
func NewService(questions *QuestionSource, dialer ai.LiveDialer, evaluator ai.Evaluator, registry *Registry, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if registry == nil {
		registry = NewRegistry(DefaultRegistryConfig(), log)
	}
	if questions == nil {
		questions = NewQuestionSource(nil, nil, log, 0)
	}
	return &Service{
		questions: questions,
		dialer:    dialer,
		evaluator: evaluator,
		registry:  registry,
		cfg:       cfg.withDefaults(),
		logger:    log,
	}
}

// Registry returns the registry of live sessions.
func (s *Service) Registry() *Registry { return s.registry }

// Serve runs a complete interview over conn and closes it on return.
func (s *Service) Serve(ctx context.Context, conn ClientConn) error {
	defer conn.Close()

	hs, err := conn.ReadHandshake()
	if err != nil {
		s.logger.Warn("invalid handshake", zap.Error(err))
		if werr := conn.WriteMessage(ErrorMessage{Message: fmt.Sprintf("invalid handshake: %v", err)}); werr != nil {
			s.logger.Debug("report error to client", zap.Error(werr))
		}
		return fmt.Errorf("read handshake: %w", err)
	}

	id := NewID()
	log := logger.WithSession(s.logger, id, hs.Company, hs.Role)
	log.Info("interview started", zap.Bool("resume_provided", hs.ResumeText != ""))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session, err := NewSession(id, hs.Company, hs.Role, s.questions.Questions(ctx, hs))
	if err != nil {
		return err
	}

	s.registry.Register(session, cancel)
	defer s.registry.Remove(id)

	live, err := s.dialer.Dial(ctx, ai.LiveSetup{SystemInstruction: SystemInstruction(hs.Company, hs.Role)})
	if err != nil {
		log.Error("live session unavailable", zap.Error(err))
		if werr := conn.WriteMessage(ErrorMessage{Message: fmt.Sprintf("live session unavailable: %v", err)}); werr != nil {
			log.Debug("report error to client", zap.Error(werr))
		}
		return err
	}

	orchestrator := NewOrchestrator(session, conn, live, s.evaluator, s.cfg, log)
	evaluation, err := orchestrator.Run(ctx)
	if err != nil {
		log.Info("interview ended without result", zap.Error(err))
		return err
	}

	log.Info("interview finished", zap.Int("score", evaluation.Score))
	return nil
}
