package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/frymyresume/interviewd/internal/ai"
	"github.com/frymyresume/interviewd/internal/guardrail"
	"github.com/frymyresume/interviewd/internal/interview"
	"github.com/frymyresume/interviewd/internal/logger"
	"github.com/frymyresume/interviewd/internal/scoring"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [transcript-file]",
	Short: "Score a finished interview from a YAML/JSON transcript or typed answers",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		evaluate(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().Bool("guardrail-only", false, "run the deterministic checks only, without the scoring model")
	evaluateCmd.Flags().String("company", "", "company name for typed answers")
	evaluateCmd.Flags().String("role", "", "role name for typed answers")
}

// guardrailReport is printed by evaluate --guardrail-only.
type guardrailReport struct {
	Cap          int                `json:"cap"`
	Disqualified bool               `json:"disqualified"`
	Flags        ai.Flags           `json:"flags"`
	Nonsense     int                `json:"nonsense_answers"`
	Reasons      []string           `json:"reasons"`
	Checks       []guardrail.Status `json:"checks"`
}

func evaluate(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	var iv ai.Interview
	if len(args) == 1 {
		iv, err = loadTranscript(args[0])
	} else {
		iv, err = promptTranscript(flagString(cmd, "company"), flagString(cmd, "role"), config.Interview.FallbackQuestionsFile)
	}
	if err != nil {
		logger.Fatal("reading the interview", zap.Error(err))
	}

	logger.Info("evaluating interview",
		zap.String("company", iv.Company),
		zap.String("role", iv.Role),
		zap.Int("answers", len(iv.Turns)),
	)

	guard := guardrail.New(config.Guardrail, logger.Named("guardrail"))

	var result any
	if guardrailOnly, _ := cmd.Flags().GetBool("guardrail-only"); guardrailOnly {
		verdict := guard.Evaluate(iv.Answers())
		result = guardrailReport{
			Cap:          verdict.Cap,
			Disqualified: verdict.Disqualified,
			Flags:        verdict.Flags,
			Nonsense:     verdict.Nonsense,
			Reasons:      verdict.Reasons(),
			Checks:       guard.Describe(),
		}
	} else {
		client, err := newGeminiClient(ctx, config.Gemini)
		if err != nil {
			logger.Fatal("creating gemini client", zap.Error(err),
				zap.String("hint", "set GEMINI_API_KEY or use --guardrail-only"),
			)
		}
		generator, err := newGenerator(client, config.Gemini, logger)
		if err != nil {
			logger.Fatal("creating gemini generator", zap.Error(err))
		}

		result = scoring.NewAggregator(generator, guard, logger.Named("scoring"), config.Gemini.MaxLogLength).Evaluate(ctx, iv)
	}

	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal("encoding the result", zap.Error(err))
	}
	fmt.Println(string(pretty))
}

// loadTranscript reads company, role and turns from a YAML or JSON file.
func loadTranscript(path string) (ai.Interview, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ai.Interview{}, fmt.Errorf("read transcript: %w", err)
	}

	var iv ai.Interview
	if err := yaml.Unmarshal(data, &iv); err != nil {
		return ai.Interview{}, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	if len(iv.Turns) == 0 {
		return ai.Interview{}, fmt.Errorf("transcript %s has no turns", path)
	}
	if len(iv.Turns) > interview.MaxQuestions {
		return ai.Interview{}, fmt.Errorf("transcript %s has %d turns, at most %d are allowed", path, len(iv.Turns), interview.MaxQuestions)
	}
	return iv, nil
}

func promptTranscript(company, role, bankFile string) (ai.Interview, error) {
	questions := interview.DefaultQuestions
	if bankFile != "" {
		bank, err := interview.LoadQuestionBank(bankFile)
		if err != nil {
			return ai.Interview{}, err
		}
		questions = bank
	}

	if company == "" {
		company = "a company"
	}
	if role == "" {
		role = "a role"
	}

	iv := ai.Interview{Company: company, Role: role}
	for i, question := range questions {
		answerPrompt := promptui.Prompt{
			Label: fmt.Sprintf("Q%d %s\nAnswer", i+1, question),
		}

		answer, err := answerPrompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				return ai.Interview{}, errors.New("interrupted")
			}
			return ai.Interview{}, err
		}
		iv.Turns = append(iv.Turns, ai.Turn{Question: question, Answer: strings.TrimSpace(answer)})
	}
	return iv, nil
}

func flagString(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return strings.TrimSpace(value)
}
