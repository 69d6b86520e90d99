package speech

import (
	"fmt"
	"time"

	"github.com/bigairlab/narrate/speech/text"
)

// Config holds the per-utterance voice settings and the controller timings.
type Config struct {
	Rate     float64 `yaml:"rate"`
	Pitch    float64 `yaml:"pitch"`
	Volume   float64 `yaml:"volume"`
	Language string  `yaml:"language"`

	// MaxChunkWords is the word threshold at which a chunk is sealed.
	MaxChunkWords int `yaml:"max_chunk_words"`

	ChunkDelay     time.Duration `yaml:"chunk_delay"`
	StartTimeout   time.Duration `yaml:"start_timeout"`
	VoicePollDelay time.Duration `yaml:"voice_poll_delay"`
}

// DefaultConfig returns the settings the blog reader has always used.
func DefaultConfig() Config {
	return Config{
		Rate:           0.9,
		Pitch:          1.0,
		Volume:         1.0,
		Language:       "en-US",
		MaxChunkWords:  text.DefaultMaxWords,
		ChunkDelay:     100 * time.Millisecond,
		StartTimeout:   2 * time.Second,
		VoicePollDelay: 500 * time.Millisecond,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Rate < 0.1 || c.Rate > 10.0 {
		return fmt.Errorf("rate must be between 0.1 and 10.0, got %f", c.Rate)
	}
	if c.Pitch < 0.0 || c.Pitch > 2.0 {
		return fmt.Errorf("pitch must be between 0.0 and 2.0, got %f", c.Pitch)
	}
	if c.Volume < 0.0 || c.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", c.Volume)
	}
	if c.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if c.MaxChunkWords < 1 {
		return fmt.Errorf("max_chunk_words must be at least 1, got %d", c.MaxChunkWords)
	}
	if c.ChunkDelay < 0 {
		return fmt.Errorf("chunk_delay cannot be negative, got %v", c.ChunkDelay)
	}
	if c.StartTimeout <= 0 {
		return fmt.Errorf("start_timeout must be positive, got %v", c.StartTimeout)
	}
	if c.VoicePollDelay <= 0 {
		return fmt.Errorf("voice_poll_delay must be positive, got %v", c.VoicePollDelay)
	}
	return nil
}
