package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Gemini.APIKeyEnv) == "" {
		return nil, fmt.Errorf("gemini.api_key_env must not be empty")
	}
	if strings.TrimSpace(cfg.Gemini.Model) == "" {
		return nil, fmt.Errorf("gemini.model must not be empty")
	}
	if strings.TrimSpace(cfg.Gemini.TTSModel) == "" {
		return nil, fmt.Errorf("gemini.tts_model must not be empty")
	}
	if cfg.Gemini.TimeoutMS <= 0 {
		return nil, fmt.Errorf("gemini.timeout_ms must be > 0")
	}
	if cfg.Gemini.APIKey() == "" {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("%s is not set; generation is disabled", cfg.Gemini.APIKeyEnv)})
	}

	if cfg.Interview.SettleDelayMS <= 0 {
		return nil, fmt.Errorf("interview.settle_delay_ms must be > 0")
	}
	if cfg.Interview.InactivityWindowMS <= 0 {
		return nil, fmt.Errorf("interview.inactivity_window_ms must be > 0")
	}

	switch backend := strings.ToLower(strings.TrimSpace(cfg.AudioStore.Backend)); backend {
	case "none":
	case "s3", "gcs":
		if strings.TrimSpace(cfg.AudioStore.Bucket) == "" {
			return nil, fmt.Errorf("audio_store.bucket must not be empty when audio_store.backend=%s", backend)
		}
		if backend == "s3" && strings.TrimSpace(cfg.AudioStore.Region) == "" {
			warnings = append(warnings, Warning{Message: "audio_store.region is empty; using the AWS default chain"})
		}
	default:
		return nil, fmt.Errorf("audio_store.backend must be one of: none, s3, gcs")
	}
	if cfg.AudioStore.URLTTLSeconds <= 0 {
		return nil, fmt.Errorf("audio_store.url_ttl_s must be > 0")
	}

	if cfg.Playback.LatencyMS < 0 {
		return nil, fmt.Errorf("playback.latency_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.Server.Listen) == "" {
		return nil, fmt.Errorf("server.listen must not be empty")
	}
	if strings.TrimSpace(cfg.Server.HealthListen) == "" {
		return nil, fmt.Errorf("server.health_listen must not be empty")
	}
	if cfg.Server.RateRPS < 0 {
		return nil, fmt.Errorf("server.rate_rps must be >= 0")
	}
	if cfg.Server.RateRPS > 0 && cfg.Server.RateBurst <= 0 {
		return nil, fmt.Errorf("server.rate_burst must be > 0 when server.rate_rps > 0")
	}
	if cfg.Server.RateRPS == 0 {
		warnings = append(warnings, Warning{Message: "server.rate_rps=0; /api/chat is not rate limited"})
	}
	if cfg.Server.ShutdownTimeoutMS <= 0 {
		return nil, fmt.Errorf("server.shutdown_timeout_ms must be > 0")
	}

	return warnings, nil
}
