// Package question models the ordered question list and interview metadata of a session.
package question

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type classifies a question.
type Type string

const (
	TypeDSA      Type = "dsa"
	TypeStandard Type = "standard"
)

// Question is immutable once loaded.
type Question struct {
	ID string `yaml:"id" json:"id"`
	// Text is the spoken prompt transcript.
	Text string `yaml:"text" json:"text"`
	// Body is the markdown problem statement shown in code mode.
	Body              string `yaml:"body,omitempty" json:"body,omitempty"`
	Type              Type   `yaml:"type" json:"type"`
	FollowupAllowance int    `yaml:"followup_allowance" json:"followup_allowance"`
}

// Meta describes the interview as a whole.
type Meta struct {
	Title       string    `yaml:"title" json:"title"`
	MaxMinutes  int       `yaml:"max_minutes,omitempty" json:"max_minutes,omitempty"`
	ScheduledAt time.Time `yaml:"scheduled_at,omitempty" json:"scheduled_at,omitempty"`
}

// Set is an ordered question list plus its metadata.
type Set struct {
	Meta      Meta       `yaml:"meta" json:"meta"`
	Questions []Question `yaml:"questions" json:"questions"`
}

// ErrEmptySet is returned when a set has no questions.
var ErrEmptySet = errors.New("question set has no questions")

// IsDSA reports whether q carries a coding exercise.
func (q Question) IsDSA() bool { return q.Type == TypeDSA }

// PromptBody returns the body, falling back to the spoken text.
func (q Question) PromptBody() string {
	if strings.TrimSpace(q.Body) != "" {
		return q.Body
	}
	return q.Text
}

// Validate checks one question in isolation.
func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return errors.New("id must not be empty")
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question %q: text must not be empty", q.ID)
	}
	switch q.Type {
	case TypeDSA, TypeStandard:
	default:
		return fmt.Errorf("question %q: type must be %q or %q", q.ID, TypeDSA, TypeStandard)
	}
	if q.FollowupAllowance < 0 {
		return fmt.Errorf("question %q: followup_allowance must be >= 0", q.ID)
	}
	return nil
}

// Validate checks the set and the uniqueness of question ids.
func (s Set) Validate() error {
	if len(s.Questions) == 0 {
		return ErrEmptySet
	}
	if s.Meta.MaxMinutes < 0 {
		return errors.New("meta.max_minutes must be >= 0")
	}

	seen := make(map[string]struct{}, len(s.Questions))
	for i, q := range s.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("questions[%d]: %w", i, err)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("questions[%d]: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}
