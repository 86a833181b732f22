// Package config resolves, parses, validates, and defaults intervue configuration.
package config

import (
	"os"
	"strings"
	"time"
)

// Config is the fully materialized runtime configuration.
type Config struct {
	Gemini     GeminiConfig
	Interview  InterviewConfig
	AudioStore AudioStoreConfig
	Audio      AudioConfig
	Playback   PlaybackConfig
	Server     ServerConfig
}

// GeminiConfig selects the generation and speech models.
type GeminiConfig struct {
	APIKeyEnv string
	Model     string
	TTSModel  string
	Voice     string
	TimeoutMS int
}

// APIKey reads the key from the configured environment variable.
func (c GeminiConfig) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

// Timeout returns TimeoutMS as a duration.
func (c GeminiConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// InterviewConfig controls question loading and session timing.
type InterviewConfig struct {
	QuestionsFile        string
	SettleDelayMS        int
	InactivityWindowMS   int
	CapitalizeTranscript bool
}

// AudioStoreConfig locates prerecorded prompt audio.
type AudioStoreConfig struct {
	Backend       string
	Bucket        string
	Region        string
	Endpoint      string
	Prefix        string
	Extension     string
	URLTTLSeconds int
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// PlaybackConfig controls local interviewer audio output.
type PlaybackConfig struct {
	Sink      string
	LatencyMS int
	// Cues plays a short tone whenever capture opens or closes.
	Cues bool
}

// ServerConfig controls the HTTP, websocket, and health listeners.
type ServerConfig struct {
	Listen            string
	HealthListen      string
	RateRPS           float64
	RateBurst         int
	AllowedOrigins    []string
	ShutdownTimeoutMS int
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
