package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState rejects an operation called out of turn. State is not mutated.
	ErrInvalidState = errors.New("invalid session state")
	// ErrEmptyAnswer rejects a submit with no finalized candidate text.
	ErrEmptyAnswer = errors.New("empty answer: no finalized candidate speech")
	// ErrGenerationFailed wraps a failed generation or synthesis call.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrAudioFetchFailed wraps a failed prompt-audio lookup.
	ErrAudioFetchFailed = errors.New("prompt audio unavailable")
	// ErrStaleResult reports a gateway result discarded because the session moved on.
	ErrStaleResult = errors.New("stale result discarded")
	// ErrSessionFinished rejects operations after the last question.
	ErrSessionFinished = fmt.Errorf("%w: session finished", ErrInvalidState)
	// ErrGatewayUnavailable is returned by the placeholder gateways.
	ErrGatewayUnavailable = errors.New("generation gateway not configured")
)

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// IsRecoverable reports whether the candidate may retry the operation unchanged.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrGenerationFailed) || errors.Is(err, ErrAudioFetchFailed) || errors.Is(err, ErrStaleResult)
}
