// Package session owns one interview: question sequencing, the submit turn machine,
// follow-up scheduling, and audio/capture synchronization.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/intervue/internal/conversation"
	"github.com/rbright/intervue/internal/followup"
	"github.com/rbright/intervue/internal/playback"
	"github.com/rbright/intervue/internal/question"
	"github.com/rbright/intervue/internal/transcript"
	"github.com/rbright/intervue/internal/turn"
)

// DefaultSettleDelay separates loading a question from requesting its prompt audio.
const DefaultSettleDelay = 2 * time.Second

// CodeSubmission is the candidate's editor snapshot.
type CodeSubmission struct {
	Language string `json:"language,omitempty"`
	Source   string `json:"source"`
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	SessionID     string     `json:"session_id"`
	Title         string     `json:"title,omitempty"`
	QuestionIndex int        `json:"question_index"`
	QuestionID    string     `json:"question_id,omitempty"`
	QuestionCount int        `json:"question_count"`
	State         turn.State `json:"submit_state"`
	Budget        int        `json:"followup_budget"`
	Capture       bool       `json:"capture"`
	Captions      bool       `json:"captions"`
	Playing       bool       `json:"playing"`
	ClipID        string     `json:"clip_id,omitempty"`
	CodeMode      bool       `json:"code_mode"`
	Busy          bool       `json:"busy"`
	Started       bool       `json:"started"`
	Finished      bool       `json:"finished"`
	Closed        bool       `json:"closed"`
	Turns         int        `json:"turns"`
	// Deadline is when a timed interview ends on its own; zero when untimed.
	Deadline time.Time `json:"deadline,omitzero"`
}

// Result reports one accepted submission.
type Result struct {
	Submitted     turn.State
	State         turn.State
	Text          string
	Budget        int
	Advanced      bool
	Finished      bool
	Completed     bool
	QuestionIndex int
}

// Options wires a controller. Zero values fall back to safe defaults.
type Options struct {
	Logger      *slog.Logger
	Generator   Generator
	Synthesizer Synthesizer
	PromptAudio PromptAudio
	Capture     Capture
	Player      playback.Player
	Observer    Observer
	Metrics     Metrics
	Clock       followup.Clock
	Now         func() time.Time

	SettleDelay      time.Duration
	InactivityWindow time.Duration
	Transcript       transcript.Options
}

// Controller is one isolated interview session.
type Controller struct {
	id       string
	logger   *slog.Logger
	generate Generator
	speak    Synthesizer
	prompts  PromptAudio
	capture  Capture
	observer Observer
	metrics  Metrics
	clock    followup.Clock
	now      func() time.Time
	settle   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	log       *conversation.Log
	buffer    *transcript.Buffer
	audio     *playback.Coordinator
	scheduler *followup.Scheduler

	mu          sync.Mutex
	token       uint64
	questions   []question.Question
	meta        question.Meta
	index       int
	state       turn.State
	code        CodeSubmission
	codeMode    bool
	busy        bool
	started     bool
	finished    bool
	closed      bool
	settleTimer followup.Timer
	limitTimer  followup.Timer
	deadline    time.Time
}

// New constructs an unstarted session.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Generator == nil {
		opts.Generator = PlaceholderGenerator{}
	}
	if opts.Synthesizer == nil {
		opts.Synthesizer = SynthesizeFunc(func(context.Context, string) ([]byte, string, error) {
			return nil, "", ErrGatewayUnavailable
		})
	}
	if opts.PromptAudio == nil {
		opts.PromptAudio = PromptAudioFunc(func(context.Context, string) (string, error) {
			return "", errNoPromptAudio
		})
	}
	if opts.Capture == nil {
		opts.Capture = alwaysAvailable{}
	}
	if opts.Player == nil {
		opts.Player = instantPlayer{}
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Clock == nil {
		opts.Clock = followup.RealClock()
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	id := uuid.NewString()
	logger = logger.With("session_id", id)
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		id:       id,
		logger:   logger,
		generate: opts.Generator,
		speak:    opts.Synthesizer,
		prompts:  opts.PromptAudio,
		capture:  opts.Capture,
		observer: opts.Observer,
		metrics:  opts.Metrics,
		clock:    opts.Clock,
		now:      opts.Now,
		settle:   opts.SettleDelay,
		ctx:      ctx,
		cancel:   cancel,
		log:      conversation.NewLog(opts.Now),
		buffer:   transcript.NewBuffer(opts.Transcript),
		state:    turn.StateStart,
	}
	c.audio = playback.NewCoordinator(logger, opts.Player, opts.Capture, c.clipEnded)
	c.scheduler = followup.New(logger, opts.Clock, opts.InactivityWindow, c.inactivityFired)
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Log returns the conversation record.
func (c *Controller) Log() *conversation.Log { return c.log }

// Start loads the first question and schedules its prompt audio. A scheduled interview
// cannot start early; a timed one finishes by itself once meta.MaxMinutes elapse.
func (c *Controller) Start(ctx context.Context, questions []question.Question, meta question.Meta) error {
	set := question.Set{Meta: meta, Questions: questions}
	if err := set.Validate(); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if !meta.ScheduledAt.IsZero() && c.now().Before(meta.ScheduledAt) {
		return invalidState("interview is scheduled for %s", meta.ScheduledAt.Format(time.RFC3339))
	}
	if !c.capture.Available(ctx) {
		return invalidState("capture service unavailable")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return invalidState("session closed")
	}
	if c.started {
		c.mu.Unlock()
		return invalidState("session already started")
	}
	c.started = true
	c.questions = append([]question.Question(nil), questions...)
	c.meta = meta
	if meta.MaxMinutes > 0 {
		limit := time.Duration(meta.MaxMinutes) * time.Minute
		c.deadline = c.now().Add(limit)
		c.limitTimer = c.clock.AfterFunc(limit, c.timeUp)
	}
	c.loadLocked(0)
	c.mu.Unlock()

	c.logger.Info("session started", "title", meta.Title, "questions", len(questions), "max_minutes", meta.MaxMinutes)
	c.publish()
	return nil
}

// AdvanceToNextQuestion moves to the next question, or finishes the session after the
// last one.
func (c *Controller) AdvanceToNextQuestion(ctx context.Context) error {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.advanceLocked(ctx)
	finished := c.finished
	c.mu.Unlock()

	if finished {
		if err := c.audio.Stop(ctx); err != nil {
			c.logger.Warn("release audio failed", "error", err)
		}
	}
	c.publish()
	return nil
}

// Submit consumes the current submit state. code, when non-nil, replaces the stored
// editor snapshot first.
func (c *Controller) Submit(ctx context.Context, code *CodeSubmission) (Result, error) {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	if c.busy {
		c.mu.Unlock()
		return Result{}, invalidState("a generation is already in flight")
	}
	if c.audio.Playing() {
		c.mu.Unlock()
		return Result{}, invalidState("audio is playing")
	}
	if !c.audio.CaptureEnabled() {
		c.mu.Unlock()
		return Result{}, invalidState("capture is disabled")
	}

	submitted := c.state
	step, err := turn.Transition(submitted, turn.EventSubmit)
	if err != nil {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if step.Generate == turn.GenerateNone {
		res := Result{Submitted: submitted, State: step.Next, Completed: step.Complete, QuestionIndex: c.index}
		c.mu.Unlock()
		return res, nil
	}

	answer := c.buffer.Final()
	if step.RequiresAnswer && strings.TrimSpace(answer) == "" {
		c.mu.Unlock()
		return Result{}, ErrEmptyAnswer
	}

	if code != nil {
		c.code = *code
	}
	q := c.questions[c.index]
	snapshot := c.code
	token := c.token
	c.busy = true
	c.mu.Unlock()

	text, audio, mime, err := c.produce(ctx, step.Generate, q, snapshot.Source, answer)

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("submit failed", "submit_state", string(submitted), "error", err)
		c.observer.Failed("submit", err)
		c.publish()
		return Result{}, err
	}
	if token != c.token || c.closed {
		c.mu.Unlock()
		c.logger.Warn("submit result discarded", "submit_state", string(submitted))
		c.publish()
		return Result{}, ErrStaleResult
	}

	start := c.log.Len()
	if step.RecordPrompt {
		c.log.Append(conversation.Interviewer, q.Text)
	}
	switch step.Candidate {
	case turn.RecordAnswer:
		c.log.Append(conversation.Candidate, answer)
	case turn.RecordQuestionWithCode:
		c.log.Append(conversation.Candidate, conversation.QuestionWithCode(answer, snapshot.Source))
	case turn.RecordCodeSnapshot:
		c.log.Append(conversation.Candidate, conversation.CodeSnapshot(snapshot.Source))
	}
	if step.Speak {
		c.log.Append(conversation.Interviewer, text)
	}
	appended := c.log.Since(start)

	c.buffer.Reset()
	c.state = step.Next

	outcome := c.scheduler.CompleteTurn(submitted, step.Next)
	if outcome.Finish {
		c.applyLocked(turn.EventFinish)
	}
	if outcome.Reopen {
		c.applyLocked(turn.EventReopen)
	}
	if outcome.Advance {
		c.advanceLocked(ctx)
	}

	epoch := c.token
	res := Result{
		Submitted:     submitted,
		State:         c.state,
		Text:          text,
		Budget:        outcome.Budget,
		Advanced:      outcome.Advance,
		Finished:      c.finished,
		QuestionIndex: c.index,
	}
	c.mu.Unlock()

	c.metrics.Submission(ctx, submitted)
	c.logger.Info("submit complete",
		"submit_state", string(submitted),
		"next_state", string(res.State),
		"question_index", res.QuestionIndex,
		"budget", res.Budget,
		"advanced", res.Advanced,
	)
	for _, t := range appended {
		c.observer.TurnAppended(t)
	}
	c.enqueue(playback.Clip{ID: uuid.NewString(), Audio: audio, MIME: mime, Label: "reply", Epoch: epoch})
	c.publish()
	return res, nil
}

// AskQuestion switches to ASK and opens capture for the candidate's question.
func (c *Controller) AskQuestion(_ context.Context) error {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.busy {
		c.mu.Unlock()
		return invalidState("a generation is already in flight")
	}
	if c.audio.Playing() {
		c.mu.Unlock()
		return invalidState("audio is playing")
	}

	step := c.applyLocked(turn.EventAsk)
	if step.EnableCapture {
		c.audio.EnableCapture()
	}
	c.mu.Unlock()

	c.publish()
	return nil
}

// ToggleCodeMode flips the editor view and returns the new value.
func (c *Controller) ToggleCodeMode() bool {
	c.mu.Lock()
	c.codeMode = !c.codeMode
	enabled := c.codeMode
	c.mu.Unlock()

	c.publish()
	return enabled
}

// UpdateTranscript applies one capture event. Events arriving while capture is disabled
// are dropped and reported as not accepted.
func (c *Controller) UpdateTranscript(interim, final string) bool {
	if !c.audio.CaptureEnabled() {
		c.logger.Debug("transcript dropped while capture disabled")
		return false
	}
	c.buffer.Update(interim, final)
	return true
}

// UpdateCode replaces the stored editor snapshot.
func (c *Controller) UpdateCode(code CodeSubmission) {
	c.mu.Lock()
	c.code = code
	c.mu.Unlock()
}

// Transcript returns the current transcription buffer.
func (c *Controller) Transcript() transcript.Snapshot {
	return c.buffer.Snapshot()
}

// ReplayPrompt re-requests the active question's prompt audio.
func (c *Controller) ReplayPrompt(ctx context.Context) error {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	token := c.token
	questionID := c.questions[c.index].ID
	c.mu.Unlock()

	return c.playPrompt(ctx, token, questionID)
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close tears the session down: timers are cancelled, in-flight results go stale, and
// the audio resource is released.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.token++
	c.scheduler.Cancel()
	c.stopSettleLocked()
	c.stopLimitLocked()
	c.mu.Unlock()

	c.cancel()
	err := c.audio.Stop(ctx)
	c.logger.Info("session closed", "turns", c.log.Len())
	c.publish()
	return err
}

func (c *Controller) activeLocked() error {
	switch {
	case c.closed:
		return invalidState("session closed")
	case !c.started:
		return invalidState("session not started")
	case c.finished:
		return ErrSessionFinished
	default:
		return nil
	}
}

// applyLocked runs a bookkeeping event through the transition table.
func (c *Controller) applyLocked(event turn.Event) turn.Step {
	step, err := turn.Transition(c.state, event)
	if err != nil {
		c.logger.Error("turn transition failed", "submit_state", string(c.state), "event", string(event), "error", err)
		return turn.Step{Next: c.state}
	}
	c.state = step.Next
	return step
}

func (c *Controller) advanceLocked(ctx context.Context) {
	c.metrics.QuestionAdvanced(ctx)
	if c.index+1 >= len(c.questions) {
		c.finishLocked()
		c.logger.Info("session finished", "question_index", c.index, "turns", c.log.Len())
		return
	}
	c.loadLocked(c.index + 1)
	c.logger.Info("question advanced", "question_index", c.index)
}

// finishLocked ends the interview. Pending work for the current question goes stale.
func (c *Controller) finishLocked() {
	c.finished = true
	c.token++
	c.state = turn.StateEnd
	c.audio.Retire(c.token)
	c.scheduler.Cancel()
	c.stopSettleLocked()
	c.stopLimitLocked()
}

// timeUp finishes a timed interview and cuts off whatever is playing.
func (c *Controller) timeUp() {
	c.mu.Lock()
	if c.closed || c.finished {
		c.mu.Unlock()
		return
	}
	c.limitTimer = nil
	c.finishLocked()
	index := c.index
	c.mu.Unlock()

	c.logger.Info("session time limit reached", "question_index", index, "max_minutes", c.meta.MaxMinutes, "turns", c.log.Len())
	if err := c.audio.Stop(c.ctx); err != nil {
		c.logger.Warn("release audio failed", "error", err)
	}
	c.publish()
}

// loadLocked makes question i active and schedules its prompt audio after the settle delay.
func (c *Controller) loadLocked(i int) {
	q := c.questions[i]
	c.index = i
	c.state = turn.StateStart
	c.token++
	c.audio.Retire(c.token)
	c.buffer.Reset()
	c.codeMode = q.IsDSA()
	c.scheduler.Prime(q.ID, q.FollowupAllowance, q.IsDSA())
	c.audio.DisableCapture()

	c.stopSettleLocked()
	token := c.token
	c.settleTimer = c.clock.AfterFunc(c.settle, func() {
		if err := c.playPrompt(c.ctx, token, q.ID); err != nil && !errors.Is(err, ErrStaleResult) {
			c.logger.Warn("prompt audio failed", "question_id", q.ID, "error", err)
		}
	})
}

func (c *Controller) stopLimitLocked() {
	if c.limitTimer != nil {
		c.limitTimer.Stop()
		c.limitTimer = nil
	}
}

func (c *Controller) stopSettleLocked() {
	if c.settleTimer != nil {
		c.settleTimer.Stop()
		c.settleTimer = nil
	}
}

// playPrompt fetches and queues the prompt clip. On failure capture opens so the
// candidate can still answer.
func (c *Controller) playPrompt(ctx context.Context, token uint64, questionID string) error {
	url, err := c.prompts.FetchPromptAudio(ctx, questionID)

	c.mu.Lock()
	if token != c.token || c.closed {
		c.mu.Unlock()
		return ErrStaleResult
	}
	c.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrAudioFetchFailed, questionID, err)
		c.audio.EnableCapture()
		c.observer.Failed("prompt_audio", err)
		c.publish()
		return err
	}

	c.enqueue(playback.Clip{ID: uuid.NewString(), URL: url, Label: "prompt:" + questionID, Epoch: token})
	c.publish()
	return nil
}

// produce runs the generation call for kind and synthesizes the result.
func (c *Controller) produce(ctx context.Context, kind turn.Generation, q question.Question, code, answer string) (string, []byte, string, error) {
	var (
		text string
		err  error
	)
	switch kind {
	case turn.GenerateRespond:
		text, err = c.generate.Respond(ctx, q.Text, answer)
	case turn.GenerateExplain:
		text, err = c.generate.Explain(ctx, q.PromptBody(), code, answer)
	case turn.GenerateFollowup:
		text, err = c.generate.Followup(ctx, q.PromptBody(), code)
	default:
		return "", nil, "", fmt.Errorf("%w: no generation for %s", ErrInvalidState, kind)
	}
	if err != nil {
		c.metrics.GenerationFailure(ctx, kind.String())
		return "", nil, "", fmt.Errorf("%w: %s: %w", ErrGenerationFailed, kind, err)
	}
	if strings.TrimSpace(text) == "" {
		c.metrics.GenerationFailure(ctx, kind.String())
		return "", nil, "", fmt.Errorf("%w: %s: empty text", ErrGenerationFailed, kind)
	}

	audio, mime, err := c.speak.Synthesize(ctx, text)
	if err != nil {
		c.metrics.GenerationFailure(ctx, "synthesize")
		return "", nil, "", fmt.Errorf("%w: synthesize: %w", ErrGenerationFailed, err)
	}
	return text, audio, mime, nil
}

// inactivityFired issues an unsolicited follow-up using the live code snapshot.
func (c *Controller) inactivityFired(fire followup.Fire) {
	c.mu.Lock()
	if c.closed || c.finished || !c.started || !c.scheduler.Current(fire.Token) {
		c.mu.Unlock()
		return
	}
	if c.busy {
		c.mu.Unlock()
		c.logger.Info("followup skipped while busy", "question_id", fire.QuestionID)
		return
	}
	q := c.questions[c.index]
	code := c.code.Source
	token := c.token
	c.busy = true
	c.mu.Unlock()

	ctx := c.ctx
	text, audio, mime, err := c.produce(ctx, turn.GenerateFollowup, q, code, "")

	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("followup failed", "question_id", q.ID, "error", err)
		c.observer.Failed("followup", err)
		c.publish()
		return
	}
	if token != c.token || c.closed || !c.scheduler.Current(fire.Token) {
		c.mu.Unlock()
		c.logger.Warn("followup result discarded", "question_id", q.ID)
		c.publish()
		return
	}
	t := c.log.Append(conversation.Interviewer, text)
	c.mu.Unlock()

	c.metrics.FollowupFired(ctx)
	c.logger.Info("followup fired", "question_id", q.ID)
	c.observer.TurnAppended(t)
	c.enqueue(playback.Clip{ID: uuid.NewString(), Audio: audio, MIME: mime, Label: "followup", Epoch: token})
	c.publish()
}

// enqueue hands a clip to the coordinator. It must be called without c.mu held. A clip
// whose question was left in the meantime is dropped quietly.
func (c *Controller) enqueue(clip playback.Clip) {
	err := c.audio.Enqueue(c.ctx, clip)
	if errors.Is(err, playback.ErrRetiredClip) {
		c.logger.Debug("clip dropped for retired question", "clip_id", clip.ID, "label", clip.Label)
		return
	}
	if err != nil {
		c.logger.Error("clip playback failed", "clip_id", clip.ID, "error", err)
		c.observer.Failed("playback", err)
	}
}

func (c *Controller) clipEnded(ended playback.Ended) {
	if !ended.Stopped && ended.Err == nil {
		c.metrics.ClipPlayed(c.ctx)
	}
	c.logger.Debug("clip ended", "clip_id", ended.Clip.ID, "stopped", ended.Stopped)
	c.publish()
}

func (c *Controller) publish() {
	c.observer.StateChanged(c.Snapshot())
}

func (c *Controller) snapshotLocked() Snapshot {
	audio := c.audio.State()
	s := Snapshot{
		SessionID:     c.id,
		Title:         c.meta.Title,
		QuestionIndex: c.index,
		QuestionCount: len(c.questions),
		State:         c.state,
		Budget:        c.scheduler.Budget(),
		Capture:       audio.Capture,
		Captions:      audio.Captions,
		Playing:       audio.Playing,
		ClipID:        audio.ClipID,
		CodeMode:      c.codeMode,
		Busy:          c.busy,
		Started:       c.started,
		Finished:      c.finished,
		Closed:        c.closed,
		Turns:         c.log.Len(),
		Deadline:      c.deadline,
	}
	if c.started && c.index < len(c.questions) {
		s.QuestionID = c.questions[c.index].ID
	}
	return s
}

// instantPlayer completes every clip immediately; used when no audio output is wired.
type instantPlayer struct{}

func (instantPlayer) Start(_ context.Context, _ playback.Clip, done func(error)) error {
	go done(nil)
	return nil
}

func (instantPlayer) Stop(context.Context) error { return nil }
