package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rbright/intervue/internal/conversation"
	"github.com/rbright/intervue/internal/followup"
	"github.com/rbright/intervue/internal/playback"
	"github.com/rbright/intervue/internal/question"
	"github.com/rbright/intervue/internal/turn"
	"github.com/stretchr/testify/require"
)

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) followup.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

type fakeGenerator struct {
	mu        sync.Mutex
	calls     []string
	lastCode  string
	lastBody  string
	lastInput string
	err       error
	block     chan struct{}
	entered   chan struct{}
}

func (g *fakeGenerator) record(op, body, code, input string) error {
	g.mu.Lock()
	g.calls = append(g.calls, op)
	g.lastBody, g.lastCode, g.lastInput = body, code, input
	block, entered, err := g.block, g.entered, g.err
	g.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return err
}

func (g *fakeGenerator) Respond(_ context.Context, transcript, answer string) (string, error) {
	if err := g.record("respond", transcript, "", answer); err != nil {
		return "", err
	}
	return "Thanks. Can you go deeper?", nil
}

func (g *fakeGenerator) Explain(_ context.Context, body, code, answer string) (string, error) {
	if err := g.record("explain", body, code, answer); err != nil {
		return "", err
	}
	return "The input is unsorted.", nil
}

func (g *fakeGenerator) Followup(_ context.Context, body, code string) (string, error) {
	if err := g.record("followup", body, code, ""); err != nil {
		return "", err
	}
	return "What is the complexity?", nil
}

func (g *fakeGenerator) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type manualPlayer struct {
	mu      sync.Mutex
	clips   []playback.Clip
	dones   []func(error)
	stopped int
}

func (p *manualPlayer) Start(_ context.Context, clip playback.Clip, done func(error)) error {
	p.mu.Lock()
	p.clips = append(p.clips, clip)
	p.dones = append(p.dones, done)
	p.mu.Unlock()
	return nil
}

func (p *manualPlayer) Stop(context.Context) error {
	p.mu.Lock()
	p.stopped++
	p.mu.Unlock()
	return nil
}

// finishLatest completes the most recently started clip.
func (p *manualPlayer) finishLatest() {
	p.mu.Lock()
	done := p.dones[len(p.dones)-1]
	p.mu.Unlock()
	done(nil)
}

func (p *manualPlayer) started() []playback.Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]playback.Clip(nil), p.clips...)
}

type recordingObserver struct {
	mu       sync.Mutex
	turns    []conversation.Turn
	failures []string
	states   int
}

func (o *recordingObserver) StateChanged(Snapshot) {
	o.mu.Lock()
	o.states++
	o.mu.Unlock()
}

func (o *recordingObserver) TurnAppended(t conversation.Turn) {
	o.mu.Lock()
	o.turns = append(o.turns, t)
	o.mu.Unlock()
}

func (o *recordingObserver) Failed(op string, _ error) {
	o.mu.Lock()
	o.failures = append(o.failures, op)
	o.mu.Unlock()
}

type fakeCapture struct {
	unavailable bool
}

func (f fakeCapture) Available(context.Context) bool { return !f.unavailable }
func (fakeCapture) SetCapture(bool)                  {}
func (fakeCapture) SetCaptions(bool)                 {}

type harness struct {
	c        *Controller
	clock    *manualClock
	gen      *fakeGenerator
	player   *manualPlayer
	observer *recordingObserver
	fetches  []string
	fetchErr error
	mu       sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:    &manualClock{},
		gen:      &fakeGenerator{},
		player:   &manualPlayer{},
		observer: &recordingObserver{},
	}
	h.c = New(Options{
		Generator: h.gen,
		Synthesizer: SynthesizeFunc(func(_ context.Context, text string) ([]byte, string, error) {
			return []byte(text), "audio/L16;rate=24000", nil
		}),
		PromptAudio: PromptAudioFunc(func(_ context.Context, id string) (string, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.fetches = append(h.fetches, id)
			if h.fetchErr != nil {
				return "", h.fetchErr
			}
			return "https://audio.example/" + id + ".mp3?sig=x", nil
		}),
		Capture:          fakeCapture{},
		Player:           h.player,
		Observer:         h.observer,
		Clock:            h.clock,
		SettleDelay:      2 * time.Second,
		InactivityWindow: time.Minute,
	})
	t.Cleanup(func() { _ = h.c.Close(context.Background()) })
	return h
}

// startAndListen starts the session and plays the first prompt to completion.
func (h *harness) startAndListen(t *testing.T, questions ...question.Question) {
	t.Helper()
	require.NoError(t, h.c.Start(context.Background(), questions, question.Meta{Title: "screen"}))
	h.listen(t)
}

// listen lets the settle delay pass and completes every queued clip.
func (h *harness) listen(t *testing.T) {
	t.Helper()
	h.clock.Advance(2 * time.Second)
	for h.c.Snapshot().Playing {
		h.player.finishLatest()
	}
	require.True(t, h.c.Snapshot().Capture)
}

// answer speaks final text and submits.
func (h *harness) answer(t *testing.T, text string) Result {
	t.Helper()
	require.True(t, h.c.UpdateTranscript("", text))
	res, err := h.c.Submit(context.Background(), nil)
	require.NoError(t, err)
	return res
}

func standard(id string, allowance int) question.Question {
	return question.Question{ID: id, Text: "Tell me about " + id, Type: question.TypeStandard, FollowupAllowance: allowance}
}

func dsa(id string, allowance int) question.Question {
	return question.Question{ID: id, Text: "Let's code " + id, Body: "Solve " + id, Type: question.TypeDSA, FollowupAllowance: allowance}
}

func TestStartSchedulesPromptAfterSettleDelay(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Start(context.Background(), []question.Question{standard("intro", 1)}, question.Meta{}))

	snap := h.c.Snapshot()
	require.Equal(t, turn.StateStart, snap.State)
	require.False(t, snap.Capture)
	require.Empty(t, h.player.started())

	h.clock.Advance(time.Second)
	require.Empty(t, h.player.started())

	h.clock.Advance(time.Second)
	clips := h.player.started()
	require.Len(t, clips, 1)
	require.Contains(t, clips[0].URL, "intro.mp3")
	require.False(t, h.c.Snapshot().Capture)

	h.player.finishLatest()
	require.True(t, h.c.Snapshot().Capture)
}

func TestStartRejectsUnavailableCaptureAndEmptySet(t *testing.T) {
	c := New(Options{Capture: fakeCapture{unavailable: true}})
	err := c.Start(context.Background(), []question.Question{standard("a", 0)}, question.Meta{})
	require.ErrorIs(t, err, ErrInvalidState)

	c = New(Options{})
	err = c.Start(context.Background(), nil, question.Meta{})
	require.ErrorIs(t, err, question.ErrEmptySet)
}

func TestStartTwiceRejected(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("a", 0))
	err := h.c.Start(context.Background(), []question.Question{standard("b", 0)}, question.Meta{})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestFollowupAllowanceTwoRunsThreeSubmissionsThenAdvances(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("q1", 2), standard("q2", 0))

	var states []turn.State
	states = append(states, h.c.Snapshot().State)

	res := h.answer(t, "I built a queue")
	require.Equal(t, turn.StateStart, res.Submitted)
	require.Equal(t, turn.StateFollowup, res.State)
	require.Equal(t, 2, res.Budget)
	require.Equal(t, 3, h.c.Log().Len())
	require.Empty(t, h.c.Transcript().Final)
	states = append(states, res.State)
	h.player.finishLatest()

	res = h.answer(t, "it was sharded")
	require.Equal(t, turn.StateFollowup, res.Submitted)
	require.Equal(t, 1, res.Budget)
	require.Equal(t, turn.StateFollowup, res.State, "budget remains so the question reopens")
	require.False(t, res.Advanced)
	require.Equal(t, 5, h.c.Log().Len())
	states = append(states, res.State)
	h.player.finishLatest()

	res = h.answer(t, "with consistent hashing")
	require.Equal(t, 0, res.Budget)
	require.True(t, res.Advanced)
	require.Equal(t, 1, res.QuestionIndex)
	require.Equal(t, turn.StateStart, res.State)
	require.Equal(t, 7, h.c.Log().Len())
	require.Empty(t, h.c.Transcript().Final)

	require.Equal(t, []turn.State{turn.StateStart, turn.StateFollowup, turn.StateFollowup}, states)
	require.Equal(t, []string{"respond", "followup", "followup"}, h.gen.Calls())
}

func TestZeroAllowanceAdvancesAfterOneSubmission(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("q1", 0), standard("q2", 0))

	res := h.answer(t, "hello")
	require.True(t, res.Advanced)
	require.Equal(t, 1, res.QuestionIndex)
	require.Equal(t, turn.StateStart, h.c.Snapshot().State)
}

func TestConversationLogRecordsTurnsInOrder(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, dsa("two-sum", 1))
	h.c.UpdateCode(CodeSubmission{Language: "go", Source: "func f() {}"})

	h.answer(t, "use a map")
	h.player.finishLatest()
	h.answer(t, "done")

	turns := h.c.Log().Turns()
	require.Len(t, turns, 5)
	require.Equal(t, conversation.Turn{Speaker: conversation.Interviewer, Text: "Let's code two-sum", At: turns[0].At}, turns[0])
	require.Equal(t, "use a map", turns[1].Text)
	require.Equal(t, conversation.Interviewer, turns[2].Speaker)
	require.Equal(t, "func f() {} before submitting the answer.", turns[3].Text)
	require.Equal(t, "What is the complexity?", turns[4].Text)

	h.observer.mu.Lock()
	require.Len(t, h.observer.turns, 5)
	h.observer.mu.Unlock()
}

func TestSubmitWhilePlayingRejectedWithoutStateChange(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Start(context.Background(), []question.Question{standard("q1", 1)}, question.Meta{}))
	h.clock.Advance(2 * time.Second)

	before := h.c.Snapshot()
	require.True(t, before.Playing)

	_, err := h.c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, before, h.c.Snapshot())
	require.Empty(t, h.gen.Calls())
	require.Zero(t, h.c.Log().Len())
}

func TestSubmitRejectsEmptyAnswer(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("q1", 1))

	_, err := h.c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyAnswer)
	require.Equal(t, turn.StateStart, h.c.Snapshot().State)
	require.Empty(t, h.gen.Calls())
}

func TestSubmitBeforeStartRejected(t *testing.T) {
	c := New(Options{})
	_, err := c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestGenerationFailureIsRecoverable(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("q1", 1))
	h.gen.err = errors.New("deadline exceeded")

	require.True(t, h.c.UpdateTranscript("", "my answer"))
	_, err := h.c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ErrGenerationFailed)
	require.True(t, IsRecoverable(err))
	require.Contains(t, err.Error(), "deadline exceeded")

	snap := h.c.Snapshot()
	require.Equal(t, turn.StateStart, snap.State)
	require.Zero(t, snap.Turns)
	require.Equal(t, "my answer", h.c.Transcript().Final)

	h.gen.err = nil
	res, err := h.c.Submit(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, turn.StateFollowup, res.State)

	h.observer.mu.Lock()
	require.Contains(t, h.observer.failures, "submit")
	h.observer.mu.Unlock()
}

func TestSynthesisFailureIsRecoverable(t *testing.T) {
	h := newHarness(t)
	h.c.speak = SynthesizeFunc(func(context.Context, string) ([]byte, string, error) {
		return nil, "", errors.New("quota")
	})
	h.startAndListen(t, standard("q1", 1))

	require.True(t, h.c.UpdateTranscript("", "answer"))
	_, err := h.c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ErrGenerationFailed)
	require.Contains(t, err.Error(), "synthesize")
	require.Zero(t, h.c.Log().Len())
}

func TestStaleResultDiscardedAfterAdvance(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("q1", 1), standard("q2", 1))
	h.gen.block = make(chan struct{})
	h.gen.entered = make(chan struct{})

	require.True(t, h.c.UpdateTranscript("", "slow answer"))
	errCh := make(chan error, 1)
	go func() {
		_, err := h.c.Submit(context.Background(), nil)
		errCh <- err
	}()

	<-h.gen.entered
	_, err := h.c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidState, "a second submit is rejected while busy")

	require.NoError(t, h.c.AdvanceToNextQuestion(context.Background()))
	close(h.gen.block)

	require.ErrorIs(t, <-errCh, ErrStaleResult)
	require.Zero(t, h.c.Log().Len())
	require.Equal(t, 1, h.c.Snapshot().QuestionIndex)
	require.Equal(t, turn.StateStart, h.c.Snapshot().State)
}

func TestAskQuestionFlow(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, dsa("two-sum", 1))

	require.NoError(t, h.c.AskQuestion(context.Background()))
	snap := h.c.Snapshot()
	require.Equal(t, turn.StateAsk, snap.State)
	require.True(t, snap.Capture)
	require.Empty(t, h.gen.Calls())

	require.True(t, h.c.UpdateTranscript("", "is the input sorted"))
	res, err := h.c.Submit(context.Background(), &CodeSubmission{Language: "go", Source: "x := 1"})
	require.NoError(t, err)
	require.Equal(t, turn.StateAsk, res.Submitted)
	require.Equal(t, turn.StateFollowup, res.State)
	require.Equal(t, 1, res.Budget)

	require.Equal(t, []string{"explain"}, h.gen.Calls())
	require.Equal(t, "Solve two-sum", h.gen.lastBody)
	require.Equal(t, "x := 1", h.gen.lastCode)

	turns := h.c.Log().Turns()
	require.Len(t, turns, 2)
	require.Equal(t, "is the input sorted. The current code is: \n x := 1", turns[0].Text)
	require.Equal(t, "The input is unsorted.", turns[1].Text)
}

func TestAskWhilePlayingRejected(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Start(context.Background(), []question.Question{standard("q1", 1)}, question.Meta{}))
	h.clock.Advance(2 * time.Second)

	require.ErrorIs(t, h.c.AskQuestion(context.Background()), ErrInvalidState)
	require.Equal(t, turn.StateStart, h.c.Snapshot().State)
}

func TestInactivityFollowupUsesLiveCode(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, dsa("two-sum", 2))

	h.c.UpdateCode(CodeSubmission{Source: "v1"})
	h.clock.Advance(30 * time.Second)
	h.c.UpdateCode(CodeSubmission{Source: "v2"})
	h.clock.Advance(30 * time.Second)

	require.Equal(t, []string{"followup"}, h.gen.Calls())
	require.Equal(t, "v2", h.gen.lastCode)
	require.Equal(t, 2, h.c.Snapshot().Budget, "inactivity follow-ups do not consume budget")

	turns := h.c.Log().Turns()
	require.Len(t, turns, 1)
	require.Equal(t, conversation.Interviewer, turns[0].Speaker)
	require.True(t, h.c.Snapshot().Playing)
}

func TestAdvanceCancelsInactivityTimer(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, dsa("two-sum", 1), standard("wrap-up", 0))

	h.clock.Advance(30 * time.Second)
	require.NoError(t, h.c.AdvanceToNextQuestion(context.Background()))
	h.clock.Advance(10 * time.Minute)

	require.Empty(t, h.gen.Calls())
}

func TestStandardQuestionHasNoInactivityTimer(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("intro", 1))
	h.clock.Advance(10 * time.Minute)
	require.Empty(t, h.gen.Calls())
}

func TestCodeModeFollowsQuestionType(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, dsa("two-sum", 0), standard("wrap-up", 0))
	require.True(t, h.c.Snapshot().CodeMode)

	require.False(t, h.c.ToggleCodeMode())
	require.True(t, h.c.ToggleCodeMode())

	require.NoError(t, h.c.AdvanceToNextQuestion(context.Background()))
	require.False(t, h.c.Snapshot().CodeMode)
}

func TestPromptFetchFailureOpensCaptureAndReplayRetries(t *testing.T) {
	h := newHarness(t)
	h.fetchErr = errors.New("not found")
	require.NoError(t, h.c.Start(context.Background(), []question.Question{standard("q1", 0)}, question.Meta{}))

	h.clock.Advance(2 * time.Second)
	snap := h.c.Snapshot()
	require.True(t, snap.Capture)
	require.False(t, snap.Playing)
	h.observer.mu.Lock()
	require.Contains(t, h.observer.failures, "prompt_audio")
	h.observer.mu.Unlock()

	err := h.c.ReplayPrompt(context.Background())
	require.ErrorIs(t, err, ErrAudioFetchFailed)

	h.mu.Lock()
	h.fetchErr = nil
	h.mu.Unlock()
	require.NoError(t, h.c.ReplayPrompt(context.Background()))
	require.True(t, h.c.Snapshot().Playing)
	require.Len(t, h.fetches, 3)
}

func TestNextPromptQueuesBehindReply(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("q1", 0), standard("q2", 0))

	h.answer(t, "answer")
	h.clock.Advance(2 * time.Second)

	clips := h.player.started()
	require.Len(t, clips, 2, "prompt for q2 waits for the reply")
	require.Equal(t, "reply", clips[1].Label)
	require.Equal(t, 1, h.c.Snapshot().QuestionIndex)

	h.player.finishLatest()
	clips = h.player.started()
	require.Len(t, clips, 3)
	require.Equal(t, "prompt:q2", clips[2].Label)
}

func TestLastQuestionFinishesSession(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("only", 0))

	res := h.answer(t, "bye")
	require.True(t, res.Finished)
	require.Equal(t, turn.StateEnd, res.State)

	h.player.finishLatest()
	_, err := h.c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ErrSessionFinished)
	require.ErrorIs(t, err, ErrInvalidState)
	require.ErrorIs(t, h.c.AdvanceToNextQuestion(context.Background()), ErrSessionFinished)
}

func TestAdvancePastLastReleasesAudio(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Start(context.Background(), []question.Question{standard("only", 0)}, question.Meta{}))
	h.clock.Advance(2 * time.Second)
	require.True(t, h.c.Snapshot().Playing)

	require.NoError(t, h.c.AdvanceToNextQuestion(context.Background()))
	snap := h.c.Snapshot()
	require.True(t, snap.Finished)
	require.False(t, snap.Playing)
	require.False(t, snap.Capture)
	require.Equal(t, 1, h.player.stopped)
}

func TestCloseMakesLaterCallsInvalid(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, dsa("q1", 1))

	require.NoError(t, h.c.Close(context.Background()))
	require.NoError(t, h.c.Close(context.Background()))

	_, err := h.c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidState)

	h.clock.Advance(time.Hour)
	require.Empty(t, h.gen.Calls())
}

func TestTranscriptDroppedWhileCaptureDisabled(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Start(context.Background(), []question.Question{standard("q1", 0)}, question.Meta{}))

	require.False(t, h.c.UpdateTranscript("", "too early"))
	require.Empty(t, h.c.Transcript().Final)
}

func clipLabels(clips []playback.Clip) []string {
	labels := make([]string, 0, len(clips))
	for _, c := range clips {
		labels = append(labels, c.Label)
	}
	return labels
}

func TestAdvanceDropsQueuedFollowupFromPreviousQuestion(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, dsa("q1", 2), standard("q2", 0))

	h.answer(t, "use a heap")
	require.True(t, h.c.Snapshot().Playing)

	h.clock.Advance(time.Minute)
	require.Contains(t, h.gen.Calls(), "followup")

	require.NoError(t, h.c.AdvanceToNextQuestion(context.Background()))
	require.Equal(t, 1, h.c.Snapshot().QuestionIndex)

	h.player.finishLatest()
	require.False(t, h.c.Snapshot().Playing, "the q1 follow-up must not play once q2 is active")

	h.clock.Advance(2 * time.Second)
	require.Equal(t, []string{"prompt:q1", "reply", "prompt:q2"}, clipLabels(h.player.started()))
}

func TestAdvanceDropsQueuedReplay(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("q1", 1), standard("q2", 0))

	h.answer(t, "queues everywhere")
	require.NoError(t, h.c.ReplayPrompt(context.Background()))
	require.NoError(t, h.c.AdvanceToNextQuestion(context.Background()))

	h.player.finishLatest()
	h.clock.Advance(2 * time.Second)
	require.Equal(t, []string{"prompt:q1", "reply", "prompt:q2"}, clipLabels(h.player.started()))
}

func TestFinalReplySurvivesAdvance(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("q1", 0), standard("q2", 0))

	res := h.answer(t, "answer")
	require.True(t, res.Advanced)

	clips := h.player.started()
	require.Equal(t, "reply", clips[len(clips)-1].Label)
	h.c.mu.Lock()
	epoch := h.c.token
	h.c.mu.Unlock()
	require.Equal(t, epoch, clips[len(clips)-1].Epoch)
}

func TestStartBeforeScheduledTimeRejected(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 10, 20, 14, 55, 0, 0, time.UTC)
	h.c.now = func() time.Time { return now }
	meta := question.Meta{Title: "screen", ScheduledAt: time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC)}

	err := h.c.Start(context.Background(), []question.Question{standard("q1", 0)}, meta)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Contains(t, err.Error(), "2026-10-20T15:00:00Z")
	require.False(t, h.c.Snapshot().Started)

	now = meta.ScheduledAt
	require.NoError(t, h.c.Start(context.Background(), []question.Question{standard("q1", 0)}, meta))
	require.True(t, h.c.Snapshot().Started)
}

func TestTimeLimitFinishesSession(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC)
	h.c.now = func() time.Time { return now }

	meta := question.Meta{Title: "screen", MaxMinutes: 30}
	require.NoError(t, h.c.Start(context.Background(), []question.Question{standard("q1", 1), standard("q2", 1)}, meta))
	h.listen(t)
	require.Equal(t, now.Add(30*time.Minute), h.c.Snapshot().Deadline)

	h.answer(t, "first answer")
	require.True(t, h.c.Snapshot().Playing)

	h.clock.Advance(30 * time.Minute)

	snap := h.c.Snapshot()
	require.True(t, snap.Finished)
	require.Equal(t, turn.StateEnd, snap.State)
	require.False(t, snap.Playing)
	require.False(t, snap.Capture)
	require.Equal(t, 1, h.player.stopped)

	_, err := h.c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ErrSessionFinished)
}

func TestTimeLimitCancelledByClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Start(context.Background(), []question.Question{standard("q1", 0)}, question.Meta{MaxMinutes: 5}))
	require.NoError(t, h.c.Close(context.Background()))

	h.clock.Advance(time.Hour)
	snap := h.c.Snapshot()
	require.True(t, snap.Closed)
	require.False(t, snap.Finished)
}

func TestUntimedSessionHasNoDeadline(t *testing.T) {
	h := newHarness(t)
	h.startAndListen(t, standard("q1", 0))
	h.clock.Advance(24 * time.Hour)

	snap := h.c.Snapshot()
	require.True(t, snap.Deadline.IsZero())
	require.False(t, snap.Finished)
}
