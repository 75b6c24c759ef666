package guardrail

// Config holds the empirically chosen nonsense thresholds. Zero values fall
// back to the defaults.
type Config struct {
	MinWords          int      `mapstructure:"min-words"`
	RepeatRatio       float64  `mapstructure:"repeat-ratio"`
	RepeatMinWords    int      `mapstructure:"repeat-min-words"`
	AlphaDensity      float64  `mapstructure:"alpha-density"`
	DiversityRatio    float64  `mapstructure:"diversity-ratio"`
	DiversityMinWords int      `mapstructure:"diversity-min-words"`
	Disabled          []string `mapstructure:"disabled-checks"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MinWords:          6,
		RepeatRatio:       0.45,
		RepeatMinWords:    10,
		AlphaDensity:      0.35,
		DiversityRatio:    0.25,
		DiversityMinWords: 25,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinWords <= 0 {
		c.MinWords = def.MinWords
	}
	if c.RepeatRatio <= 0 {
		c.RepeatRatio = def.RepeatRatio
	}
	if c.RepeatMinWords <= 0 {
		c.RepeatMinWords = def.RepeatMinWords
	}
	if c.AlphaDensity <= 0 {
		c.AlphaDensity = def.AlphaDensity
	}
	if c.DiversityRatio <= 0 {
		c.DiversityRatio = def.DiversityRatio
	}
	if c.DiversityMinWords <= 0 {
		c.DiversityMinWords = def.DiversityMinWords
	}
	return c
}
