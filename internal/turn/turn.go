// Package turn defines the interview submit-state machine as a pure transition table.
package turn

import "fmt"

// State is the submit phase of the active question.
type State string

// Event is an input to the transition table.
type Event string

const (
	StateStart    State = "start"
	StateAsk      State = "ask"
	StateFollowup State = "followup"
	StateEnd      State = "end"
)

const (
	EventSubmit Event = "submit"
	EventAsk    Event = "ask-question"
	EventReopen Event = "reopen"
	EventFinish Event = "finish"
)

// Generation names the gateway call a transition performs.
type Generation int

const (
	GenerateNone Generation = iota
	GenerateRespond
	GenerateExplain
	GenerateFollowup
)

func (g Generation) String() string {
	switch g {
	case GenerateNone:
		return "none"
	case GenerateRespond:
		return "respond"
	case GenerateExplain:
		return "explain"
	case GenerateFollowup:
		return "followup"
	default:
		return fmt.Sprintf("generation(%d)", int(g))
	}
}

// CandidateRecord names the shape of the candidate turn appended on commit.
type CandidateRecord int

const (
	RecordNothing CandidateRecord = iota
	RecordAnswer
	RecordQuestionWithCode
	RecordCodeSnapshot
)

// Step is the full outcome of one transition: the next state plus its side effects.
type Step struct {
	Next State

	Generate Generation
	// RecordPrompt appends the question transcript as an interviewer turn before the
	// candidate turn.
	RecordPrompt bool
	Candidate    CandidateRecord
	// Speak appends the generated text as an interviewer turn and synthesizes it.
	Speak bool
	// EnableCapture opens the microphone without a generation call.
	EnableCapture bool
	// Complete reports that the question has no further submit work.
	Complete bool
	// RequiresAnswer rejects the transition when the candidate's final text is empty.
	RequiresAnswer bool
}

// Transition returns the step for one (state, event) pair. Every known pair is defined.
func Transition(current State, event Event) (Step, error) {
	if !known(current) {
		return Step{Next: current}, fmt.Errorf("unknown state %q", current)
	}

	switch event {
	case EventSubmit:
		return submit(current), nil
	case EventAsk:
		if current == StateEnd {
			return Step{Next: StateEnd, Complete: true}, nil
		}
		return Step{Next: StateAsk, EnableCapture: true}, nil
	case EventReopen:
		if current == StateEnd {
			return Step{Next: StateFollowup}, nil
		}
		return Step{Next: current}, nil
	case EventFinish:
		return Step{Next: StateEnd, Complete: true}, nil
	default:
		return Step{Next: current}, fmt.Errorf("unknown event %q", event)
	}
}

func submit(current State) Step {
	switch current {
	case StateStart:
		return Step{
			Next:           StateFollowup,
			Generate:       GenerateRespond,
			RecordPrompt:   true,
			Candidate:      RecordAnswer,
			Speak:          true,
			RequiresAnswer: true,
		}
	case StateAsk:
		return Step{
			Next:           StateFollowup,
			Generate:       GenerateExplain,
			Candidate:      RecordQuestionWithCode,
			Speak:          true,
			RequiresAnswer: true,
		}
	case StateFollowup:
		return Step{
			Next:           StateEnd,
			Generate:       GenerateFollowup,
			Candidate:      RecordCodeSnapshot,
			Speak:          true,
			RequiresAnswer: true,
		}
	default:
		return Step{Next: StateEnd, Complete: true}
	}
}

func known(state State) bool {
	switch state {
	case StateStart, StateAsk, StateFollowup, StateEnd:
		return true
	default:
		return false
	}
}

// States lists every state in table order.
func States() []State {
	return []State{StateStart, StateAsk, StateFollowup, StateEnd}
}

// Events lists every event in table order.
func Events() []Event {
	return []Event{EventSubmit, EventAsk, EventReopen, EventFinish}
}
