package speech

import (
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads speech configuration from the global viper
// instance, falling back to DefaultConfig for unset keys.
func LoadConfigFromViper() Config {
	return LoadConfig(viper.GetViper())
}

// LoadConfig loads speech configuration from v.
func LoadConfig(v *viper.Viper) Config {
	cfg := DefaultConfig()

	if v.IsSet("speech.rate") {
		cfg.Rate = v.GetFloat64("speech.rate")
	}
	if v.IsSet("speech.pitch") {
		cfg.Pitch = v.GetFloat64("speech.pitch")
	}
	if v.IsSet("speech.volume") {
		cfg.Volume = v.GetFloat64("speech.volume")
	}
	if v.IsSet("speech.language") {
		cfg.Language = v.GetString("speech.language")
	}
	if v.IsSet("speech.max_chunk_words") {
		cfg.MaxChunkWords = v.GetInt("speech.max_chunk_words")
	}
	cfg.ChunkDelay = loadDuration(v, "speech.chunk_delay", cfg.ChunkDelay)
	cfg.StartTimeout = loadDuration(v, "speech.start_timeout", cfg.StartTimeout)
	cfg.VoicePollDelay = loadDuration(v, "speech.voice_poll_delay", cfg.VoicePollDelay)

	return cfg
}

func loadDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	if !v.IsSet(key) {
		return fallback
	}
	if d, err := time.ParseDuration(v.GetString(key)); err == nil {
		return d
	}
	return fallback
}

// SetDefaults sets default values in viper for speech configuration.
func SetDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("speech.rate", defaults.Rate)
	v.SetDefault("speech.pitch", defaults.Pitch)
	v.SetDefault("speech.volume", defaults.Volume)
	v.SetDefault("speech.language", defaults.Language)
	v.SetDefault("speech.max_chunk_words", defaults.MaxChunkWords)
	v.SetDefault("speech.chunk_delay", defaults.ChunkDelay.String())
	v.SetDefault("speech.start_timeout", defaults.StartTimeout.String())
	v.SetDefault("speech.voice_poll_delay", defaults.VoicePollDelay.String())
}
