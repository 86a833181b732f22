package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Gemini     *jsoncGemini     `json:"gemini"`
	Interview  *jsoncInterview  `json:"interview"`
	AudioStore *jsoncAudioStore `json:"audio_store"`
	Audio      *jsoncAudio      `json:"audio"`
	Playback   *jsoncPlayback   `json:"playback"`
	Server     *jsoncServer     `json:"server"`
}

type jsoncGemini struct {
	APIKeyEnv *string `json:"api_key_env"`
	Model     *string `json:"model"`
	TTSModel  *string `json:"tts_model"`
	Voice     *string `json:"voice"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type jsoncInterview struct {
	QuestionsFile        *string `json:"questions_file"`
	SettleDelayMS        *int    `json:"settle_delay_ms"`
	InactivityWindowMS   *int    `json:"inactivity_window_ms"`
	CapitalizeTranscript *bool   `json:"capitalize_transcript"`
}

type jsoncAudioStore struct {
	Backend       *string `json:"backend"`
	Bucket        *string `json:"bucket"`
	Region        *string `json:"region"`
	Endpoint      *string `json:"endpoint"`
	Prefix        *string `json:"prefix"`
	Extension     *string `json:"extension"`
	URLTTLSeconds *int    `json:"url_ttl_s"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncPlayback struct {
	Sink      *string `json:"sink"`
	LatencyMS *int    `json:"latency_ms"`
	Cues      *bool   `json:"cues"`
}

type jsoncServer struct {
	Listen            *string          `json:"listen"`
	HealthListen      *string          `json:"health_listen"`
	RateRPS           *float64         `json:"rate_rps"`
	RateBurst         *int             `json:"rate_burst"`
	AllowedOrigins    *jsoncStringList `json:"allowed_origins"`
	ShutdownTimeoutMS *int             `json:"shutdown_timeout_ms"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if g := payload.Gemini; g != nil {
		setString(&cfg.Gemini.APIKeyEnv, g.APIKeyEnv)
		setString(&cfg.Gemini.Model, g.Model)
		setString(&cfg.Gemini.TTSModel, g.TTSModel)
		setString(&cfg.Gemini.Voice, g.Voice)
		setInt(&cfg.Gemini.TimeoutMS, g.TimeoutMS)
	}

	if in := payload.Interview; in != nil {
		setString(&cfg.Interview.QuestionsFile, in.QuestionsFile)
		setInt(&cfg.Interview.SettleDelayMS, in.SettleDelayMS)
		setInt(&cfg.Interview.InactivityWindowMS, in.InactivityWindowMS)
		if in.CapitalizeTranscript != nil {
			cfg.Interview.CapitalizeTranscript = *in.CapitalizeTranscript
		}
	}

	if st := payload.AudioStore; st != nil {
		setString(&cfg.AudioStore.Backend, st.Backend)
		cfg.AudioStore.Backend = strings.ToLower(cfg.AudioStore.Backend)
		setString(&cfg.AudioStore.Bucket, st.Bucket)
		setString(&cfg.AudioStore.Region, st.Region)
		setString(&cfg.AudioStore.Endpoint, st.Endpoint)
		setString(&cfg.AudioStore.Prefix, st.Prefix)
		setString(&cfg.AudioStore.Extension, st.Extension)
		setInt(&cfg.AudioStore.URLTTLSeconds, st.URLTTLSeconds)
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if p := payload.Playback; p != nil {
		setString(&cfg.Playback.Sink, p.Sink)
		setInt(&cfg.Playback.LatencyMS, p.LatencyMS)
		if p.Cues != nil {
			cfg.Playback.Cues = *p.Cues
		}
	}

	if srv := payload.Server; srv != nil {
		setString(&cfg.Server.Listen, srv.Listen)
		setString(&cfg.Server.HealthListen, srv.HealthListen)
		if srv.RateRPS != nil {
			cfg.Server.RateRPS = *srv.RateRPS
		}
		setInt(&cfg.Server.RateBurst, srv.RateBurst)
		if srv.AllowedOrigins != nil {
			cfg.Server.AllowedOrigins = append([]string(nil), *srv.AllowedOrigins...)
		}
		setInt(&cfg.Server.ShutdownTimeoutMS, srv.ShutdownTimeoutMS)
	}
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
