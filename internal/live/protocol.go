package live

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/intervue/internal/conversation"
	"github.com/rbright/intervue/internal/question"
	"github.com/rbright/intervue/internal/session"
)

// DecodeError is a client frame that cannot be applied.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// Client frames.

type ClientHello struct {
	Type             string              `json:"type"`
	Questions        []question.Question `json:"questions,omitempty"`
	QuestionSet      string              `json:"question_set,omitempty"`
	Meta             question.Meta       `json:"meta"`
	CaptureAvailable *bool               `json:"capture_available,omitempty"`
}

type ClientTranscript struct {
	Type    string `json:"type"`
	Interim string `json:"interim"`
	Final   string `json:"final"`
}

type ClientCode struct {
	Type     string `json:"type"`
	Language string `json:"language"`
	Source   string `json:"source"`
}

type ClientSubmit struct {
	Type string                  `json:"type"`
	Code *session.CodeSubmission `json:"code,omitempty"`
}

type ClientPlaybackEnded struct {
	Type   string `json:"type"`
	ClipID string `json:"clip_id"`
	Error  string `json:"error,omitempty"`
}

// ClientCommand is a frame with no payload: ask, toggle_code, next, replay.
type ClientCommand struct {
	Type string `json:"type"`
}

// Server frames.

type ServerReady struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type ServerState struct {
	Type  string           `json:"type"`
	State session.Snapshot `json:"state"`
}

type ServerTurn struct {
	Type    string               `json:"type"`
	Speaker conversation.Speaker `json:"speaker"`
	Text    string               `json:"text"`
	At      time.Time            `json:"at"`
}

type ServerPlay struct {
	Type     string `json:"type"`
	ClipID   string `json:"clip_id"`
	URL      string `json:"url,omitempty"`
	AudioB64 string `json:"audio_b64,omitempty"`
	MIME     string `json:"mime,omitempty"`
	Label    string `json:"label,omitempty"`
}

type ServerStopAudio struct {
	Type   string `json:"type"`
	ClipID string `json:"clip_id"`
}

type ServerToggle struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

type ServerResult struct {
	Type      string `json:"type"`
	Submitted string `json:"submitted"`
	State     string `json:"state"`
	Text      string `json:"text,omitempty"`
	Budget    int    `json:"budget"`
	Advanced  bool   `json:"advanced"`
	Finished  bool   `json:"finished"`
	Completed bool   `json:"completed"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Op      string `json:"op,omitempty"`
	// Retry tells the client the same request may succeed if sent again.
	Retry bool `json:"retry,omitempty"`
	Close bool `json:"close,omitempty"`
}

// DecodeClientMessage decodes one client text frame into its typed struct.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		return msg, nil
	case "transcript":
		var msg ClientTranscript
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid transcript frame", "")
		}
		return msg, nil
	case "code":
		var msg ClientCode
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid code frame", "")
		}
		return msg, nil
	case "submit":
		var msg ClientSubmit
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid submit frame", "")
		}
		return msg, nil
	case "playback_ended":
		var msg ClientPlaybackEnded
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid playback_ended frame", "")
		}
		if strings.TrimSpace(msg.ClipID) == "" {
			return nil, badRequest("playback_ended.clip_id is required", "clip_id")
		}
		return msg, nil
	case "ask", "toggle_code", "next", "replay":
		return ClientCommand{Type: typ}, nil
	default:
		return nil, &DecodeError{Code: "unsupported", Message: "unsupported frame type", Param: typ}
	}
}
