package interview

import "time"

// Config holds the turn-taking thresholds. Every value is tunable; the
// defaults are empirically chosen.
type Config struct {
	MinAudioMS            int           `mapstructure:"min-audio-ms"`
	MinAudioChunks        int           `mapstructure:"min-audio-chunks"`
	InputSampleRate       int           `mapstructure:"input-sample-rate"`
	GraceDelay            time.Duration `mapstructure:"grace-delay"`
	TranscriptWindow      int           `mapstructure:"transcript-window"`
	FlushInterval         time.Duration `mapstructure:"transcript-flush-interval"`
	FallbackQuestionsFile string        `mapstructure:"fallback-questions-file"`
}

// RegistryConfig bounds the number and age of live sessions.
type RegistryConfig struct {
	MaxSessions   int           `mapstructure:"max-sessions"`
	MaxAge        time.Duration `mapstructure:"max-age"`
	SweepInterval time.Duration `mapstructure:"sweep-interval"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MinAudioMS:       900,
		MinAudioChunks:   3,
		InputSampleRate:  16000,
		GraceDelay:       2200 * time.Millisecond,
		TranscriptWindow: 80,
		FlushInterval:    120 * time.Millisecond,
	}
}

// DefaultRegistryConfig returns the stock session bounds.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxSessions:   100,
		MaxAge:        time.Hour,
		SweepInterval: time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinAudioMS < 0 {
		c.MinAudioMS = 0
	}
	if c.MinAudioChunks < 0 {
		c.MinAudioChunks = 0
	}
	if c.InputSampleRate <= 0 {
		c.InputSampleRate = def.InputSampleRate
	}
	if c.GraceDelay < 0 {
		c.GraceDelay = 0
	}
	if c.TranscriptWindow <= 0 {
		c.TranscriptWindow = def.TranscriptWindow
	}
	if c.FlushInterval < 0 {
		c.FlushInterval = 0
	}
	return c
}

// Floor returns the minimum-audio guard.
func (c Config) Floor() AudioFloor {
	c = c.withDefaults()
	return AudioFloor{
		MinDuration: time.Duration(c.MinAudioMS) * time.Millisecond,
		MinChunks:   c.MinAudioChunks,
		SampleRate:  c.InputSampleRate,
	}
}
