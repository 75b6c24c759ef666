package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/frymyresume/interviewd/internal/utils"
)

const (
	questionSystemInstruction = "You write behavioral interview questions. Reply with strict JSON only."
	defaultMaxLogLength       = 200
	maxResumeRunes            = 4000
)

var (
	//go:embed prompts/questions.md
	questionsTemplate string

	//go:embed prompts/interviewer.md
	interviewerTemplate string
)

// DefaultQuestions are asked when question generation fails.
var DefaultQuestions = []string{
	"Tell me about a time you faced a challenging problem at work or school. What did you do and what was the outcome?",
	"Describe a time you had to work with a difficult teammate or resolve a conflict. How did you handle it?",
	"Tell me about a time you took initiative or led a project. What actions did you take and what did you learn?",
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// QuestionSource produces the fixed question set of a session.
type QuestionSource struct {
	generator contentGenerator
	fallback  []string
	logger    *zap.Logger
	maxLogLen int
}

// NewQuestionSource creates a source. A nil generator always yields the
// fallback set; an empty fallback selects DefaultQuestions.
func NewQuestionSource(generator contentGenerator, fallback []string, logger *zap.Logger, maxLogLength int) *QuestionSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fallback) < MaxQuestions {
		fallback = DefaultQuestions
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &QuestionSource{
		generator: generator,
		fallback:  append([]string(nil), fallback[:MaxQuestions]...),
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Questions returns exactly MaxQuestions questions. It tries a personalized
// prompt when resume text is present, then a generic prompt, then the
// fallback set. It never fails.
func (q *QuestionSource) Questions(ctx context.Context, hs Handshake) []string {
	if q.generator == nil {
		return q.Fallback()
	}

	attempts := []string{""}
	if hs.ResumeText != "" {
		attempts = []string{hs.ResumeText, ""}
	}

	for _, resume := range attempts {
		questions, err := q.generate(ctx, hs.Company, hs.Role, resume)
		if err == nil {
			return questions
		}
		q.logger.Warn("question generation failed",
			zap.Bool("personalized", resume != ""),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	q.logger.Info("using fallback questions")
	return q.Fallback()
}

// Fallback returns a copy of the fallback set.
func (q *QuestionSource) Fallback() []string {
	return append([]string(nil), q.fallback...)
}

func (q *QuestionSource) generate(ctx context.Context, company, role, resume string) ([]string, error) {
	prompt := BuildQuestionPrompt(company, role, resume)
	q.logger.Debug("question generation request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, q.maxLogLen)),
	)

	raw, err := q.generator.GenerateContent(ctx, questionSystemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	q.logger.Debug("question generation response",
		zap.String("response_preview", utils.TruncateForLog(raw, q.maxLogLen)),
	)

	return ParseQuestions(raw)
}

// BuildQuestionPrompt renders the question generation prompt.
func BuildQuestionPrompt(company, role, resume string) string {
	resumeBlock := ""
	if resume = strings.TrimSpace(resume); resume != "" {
		if runes := []rune(resume); len(runes) > maxResumeRunes {
			resume = string(runes[:maxResumeRunes])
		}
		resumeBlock = "Tailor the questions to the candidate's background:\n" + resume + "\n"
	}

	return strings.NewReplacer(
		"{{COMPANY}}", company,
		"{{ROLE}}", role,
		"{{RESUME}}\n", resumeBlock,
	).Replace(questionsTemplate)
}

// ParseQuestions accepts {"questions": [...]} holding exactly MaxQuestions
// non-empty strings, optionally wrapped in a code fence.
func ParseQuestions(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}

	var payload struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}

	questions := make([]string, 0, len(payload.Questions))
	for _, question := range payload.Questions {
		if question = strings.TrimSpace(question); question != "" {
			questions = append(questions, question)
		}
	}
	if len(questions) != MaxQuestions {
		return nil, fmt.Errorf("expected %d questions, got %d", MaxQuestions, len(questions))
	}
	return questions, nil
}

// SystemInstruction renders the live interviewer persona.
func SystemInstruction(company, role string) string {
	return strings.NewReplacer("{{COMPANY}}", company, "{{ROLE}}", role).Replace(interviewerTemplate)
}

// QuestionBank is the YAML document read by LoadQuestionBank.
type QuestionBank struct {
	Questions []string `yaml:"questions"`
}

// LoadQuestionBank reads fallback questions from a YAML file. The first
// MaxQuestions non-empty entries are used.
func LoadQuestionBank(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}

	var bank QuestionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse question bank %s: %w", path, err)
	}

	questions := make([]string, 0, MaxQuestions)
	for _, question := range bank.Questions {
		if question = strings.TrimSpace(question); question != "" {
			questions = append(questions, question)
		}
		if len(questions) == MaxQuestions {
			return questions, nil
		}
	}
	return nil, fmt.Errorf("question bank %s holds fewer than %d questions", path, MaxQuestions)
}
