package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Gemini: GeminiConfig{
			APIKeyEnv: "GEMINI_API_KEY",
			Model:     "gemini-2.5-flash",
			TTSModel:  "gemini-2.5-flash-preview-tts",
			Voice:     "Kore",
			TimeoutMS: 30000,
		},
		Interview: InterviewConfig{
			SettleDelayMS:        2000,
			InactivityWindowMS:   60000,
			CapitalizeTranscript: true,
		},
		AudioStore: AudioStoreConfig{
			Backend:       "none",
			Extension:     ".mp3",
			URLTTLSeconds: 900,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Playback: PlaybackConfig{
			LatencyMS: 60,
			Cues:      true,
		},
		Server: ServerConfig{
			Listen:            "127.0.0.1:8080",
			HealthListen:      "127.0.0.1:8081",
			RateRPS:           2,
			RateBurst:         5,
			ShutdownTimeoutMS: 10000,
		},
	}
}
