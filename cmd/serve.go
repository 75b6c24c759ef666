package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/frymyresume/interviewd/internal/ai/gemini"
	"github.com/frymyresume/interviewd/internal/api"
	"github.com/frymyresume/interviewd/internal/guardrail"
	"github.com/frymyresume/interviewd/internal/interview"
	"github.com/frymyresume/interviewd/internal/logger"
	"github.com/frymyresume/interviewd/internal/scoring"
	"github.com/frymyresume/interviewd/internal/secrets"
)

const redacted = "<redacted>"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interview server",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default :8000)")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "origins allowed to open interview connections")

	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("allowed-origins", serveCmd.Flags().Lookup("allowed-origins"))
}

// serve wires the interview stack and blocks until a termination signal.
func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the interviewd", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redactConfig(*config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	client, err := newGeminiClient(ctx, config.Gemini)
	if err != nil {
		logger.Fatal("creating gemini client", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or GEMINI_API_KEY_FILE, or gemini.api-key-file in the configuration file"),
		)
	}

	generator, err := newGenerator(client, config.Gemini, logger)
	if err != nil {
		logger.Fatal("creating gemini generator", zap.Error(err))
	}

	dialer, err := newLiveDialer(client, config, logger)
	if err != nil {
		logger.Fatal("creating gemini live dialer", zap.Error(err))
	}

	fallback, err := loadFallbackQuestions(config.Interview.FallbackQuestionsFile, logger)
	if err != nil {
		logger.Fatal("loading fallback questions", zap.Error(err))
	}

	guard := guardrail.New(config.Guardrail, logger.Named("guardrail"))
	for _, status := range guard.Describe() {
		if !status.Enabled {
			logger.Info("guardrail check disabled", zap.String("name", status.Name), zap.String("reason", status.Reason))
		}
	}

	evaluator := scoring.NewAggregator(generator, guard, logger.Named("scoring"), config.Gemini.MaxLogLength)
	questions := interview.NewQuestionSource(generator, fallback, logger.Named("questions"), config.Gemini.MaxLogLength)

	registry := interview.NewRegistry(config.Sessions, logger)
	registry.Start(ctx, config.Sessions.SweepInterval)

	service := interview.NewService(questions, dialer, evaluator, registry, config.Interview, logger)
	server := api.NewServer(service, config.API, logger)

	if err := server.ListenAndServe(ctx); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}

	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}

func newGeminiClient(ctx context.Context, cfg *GeminiConfig) (*genai.Client, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.APIKeyFile,
		Value: cfg.APIKey,
		Env:   []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	})
	if err != nil {
		return nil, err
	}

	return gemini.NewClient(ctx, apiKey)
}

func newGenerator(client *genai.Client, cfg *GeminiConfig, log *zap.Logger) (*gemini.Generator, error) {
	genLogger := logger.WithCommonFields(log, "gemini", cfg.Model).With(
		zap.Int("ai_retry_attempts", cfg.MaxRetries),
	)

	return gemini.NewGenerator(client, cfg.Model, cfg.MaxRetries, genLogger)
}

func newLiveDialer(client *genai.Client, cfg *Config, log *zap.Logger) (*gemini.LiveDialer, error) {
	return gemini.NewLiveDialer(client, gemini.LiveOptions{
		Model:           cfg.Gemini.LiveModel,
		Voice:           cfg.Gemini.Voice,
		InputSampleRate: cfg.Interview.InputSampleRate,
	}, logger.WithCommonFields(log, "gemini", cfg.Gemini.LiveModel))
}

func loadFallbackQuestions(path string, log *zap.Logger) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	questions, err := interview.LoadQuestionBank(path)
	if err != nil {
		return nil, err
	}

	log.Info("using fallback question bank", zap.String("filename", path), zap.Int("count", len(questions)))
	return questions, nil
}

func redactConfig(config Config) Config {
	if config.Gemini != nil {
		gem := *config.Gemini
		if gem.APIKey != "" {
			gem.APIKey = redacted
		}
		config.Gemini = &gem
	}
	return config
}
