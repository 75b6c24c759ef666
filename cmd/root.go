package cmd

import (
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frymyresume/interviewd/internal/ai/gemini"
	"github.com/frymyresume/interviewd/internal/api"
	"github.com/frymyresume/interviewd/internal/guardrail"
	"github.com/frymyresume/interviewd/internal/interview"
)

const (
	app = "interviewd"
)

type Config struct {
	API       api.Config               `mapstructure:",squash"`
	Gemini    *GeminiConfig            `mapstructure:"gemini"`
	Interview interview.Config         `mapstructure:"interview"`
	Guardrail guardrail.Config         `mapstructure:"guardrail"`
	Sessions  interview.RegistryConfig `mapstructure:"sessions"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	LiveModel    string `mapstructure:"live-model"`
	Voice        string `mapstructure:"voice"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interviewd runs real-time voice behavioral interviews and scores them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("gemini.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}
	if err := viper.BindEnv("gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interviewd.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("listen", ":8000")
	viper.SetDefault("allowed-origins", api.DefaultAllowedOrigins)
	viper.SetDefault("write-timeout", "10s")

	viper.SetDefault("gemini.model", gemini.DefaultModel)
	viper.SetDefault("gemini.live-model", gemini.DefaultLiveModel)
	viper.SetDefault("gemini.voice", gemini.DefaultVoice)
	viper.SetDefault("gemini.max-retries", 3)
	viper.SetDefault("gemini.max-log-length", 200)

	iv := interview.DefaultConfig()
	viper.SetDefault("interview.min-audio-ms", iv.MinAudioMS)
	viper.SetDefault("interview.min-audio-chunks", iv.MinAudioChunks)
	viper.SetDefault("interview.input-sample-rate", iv.InputSampleRate)
	viper.SetDefault("interview.grace-delay", iv.GraceDelay)
	viper.SetDefault("interview.transcript-window", iv.TranscriptWindow)
	viper.SetDefault("interview.transcript-flush-interval", iv.FlushInterval)

	gr := guardrail.DefaultConfig()
	viper.SetDefault("guardrail.min-words", gr.MinWords)
	viper.SetDefault("guardrail.repeat-ratio", gr.RepeatRatio)
	viper.SetDefault("guardrail.repeat-min-words", gr.RepeatMinWords)
	viper.SetDefault("guardrail.alpha-density", gr.AlphaDensity)
	viper.SetDefault("guardrail.diversity-ratio", gr.DiversityRatio)
	viper.SetDefault("guardrail.diversity-min-words", gr.DiversityMinWords)

	sessions := interview.DefaultRegistryConfig()
	viper.SetDefault("sessions.max-sessions", sessions.MaxSessions)
	viper.SetDefault("sessions.max-age", sessions.MaxAge)
	viper.SetDefault("sessions.sweep-interval", sessions.SweepInterval)
}

func initConfig() {
	// A missing .env is fine; the key may come from the environment or a file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	err := viper.ReadInConfig()
	if err == nil {
		return
	}

	// The config file is optional unless it was named explicitly.
	var notFound viper.ConfigFileNotFoundError
	if cfgFile == "" && errors.As(err, &notFound) {
		return
	}
	log.Fatal(err)
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Gemini == nil {
		config.Gemini = &GeminiConfig{}
	}

	return config, nil
}
