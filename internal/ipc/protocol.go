// Package ipc carries newline-delimited JSON control requests to a locally owned session.
package ipc

// Request is one control command. Text carries spoken text for "say"; Code and Language
// carry the editor snapshot for "code" and "submit".
type Request struct {
	Command  string `json:"command"`
	Text     string `json:"text,omitempty"`
	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`
}

// Response reports the session after the command was applied.
type Response struct {
	OK            bool   `json:"ok"`
	State         string `json:"state,omitempty"`
	QuestionIndex int    `json:"question_index"`
	Budget        int    `json:"budget"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}
