// Package conversation records the attributed turns of one interview session.
package conversation

import (
	"sync"
	"time"
)

// Speaker attributes a turn.
type Speaker string

const (
	Interviewer Speaker = "Interviewer"
	Candidate   Speaker = "Candidate"
)

// Turn is one immutable utterance in the record.
type Turn struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Log is an append-only, insertion-ordered sequence of turns.
type Log struct {
	now func() time.Time

	mu    sync.RWMutex
	turns []Turn
}

// NewLog constructs an empty log. A nil clock defaults to time.Now.
func NewLog(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now, turns: make([]Turn, 0, 16)}
}

// Append records one turn and returns it.
func (l *Log) Append(speaker Speaker, text string) Turn {
	t := Turn{Speaker: speaker, Text: text, At: l.now()}

	l.mu.Lock()
	l.turns = append(l.turns, t)
	l.mu.Unlock()
	return t
}

// Len returns the number of recorded turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Turns returns a copy of the record.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Since returns a copy of the turns recorded at or after index.
func (l *Log) Since(index int) []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 {
		index = 0
	}
	if index >= len(l.turns) {
		return nil
	}
	out := make([]Turn, len(l.turns)-index)
	copy(out, l.turns[index:])
	return out
}

// QuestionWithCode formats a candidate question asked alongside the current code.
func QuestionWithCode(text, code string) string {
	return text + ". The current code is: \n " + code
}

// CodeSnapshot formats the candidate's code as submitted for a follow-up.
func CodeSnapshot(code string) string {
	return code + " before submitting the answer."
}
