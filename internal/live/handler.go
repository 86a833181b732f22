// Package live serves interview sessions to a browser over a websocket. Each connection
// owns one session; the browser renders audio and captions and reports playback
// completion back.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/intervue/internal/question"
	"github.com/rbright/intervue/internal/session"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultMaxMessageBytes  = 1 << 20
)

// Handler upgrades /v1/live requests and runs one session per connection.
type Handler struct {
	Logger *slog.Logger
	// Session is the template for each connection. Player, Capture and Observer are
	// replaced with connection-bound adapters.
	Session session.Options
	// Sets are the server-side question sets a hello frame may name.
	Sets map[string]question.Set
	// Default is used when the hello frame neither carries questions nor names a set.
	Default *question.Set

	AllowedOrigins   []string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	// ClipTimeout completes a clip the browser never acknowledges; zero means three minutes.
	ClipTimeout     time.Duration
	MaxMessageBytes int64
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger()
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	maxBytes := h.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxMessageBytes
	}
	ws.SetReadLimit(maxBytes)

	hello, err := h.readHello(ws)
	if err != nil {
		h.writeWSError(ws, err)
		return
	}
	questions, meta, err := h.resolveQuestions(hello)
	if err != nil {
		h.writeWSError(ws, err)
		return
	}
	_ = ws.SetReadDeadline(time.Time{})

	// The request context outlives the hijack; servers cancel it to end the session.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writer := newOutboundWriter(ws, h.PingInterval, h.WriteTimeout)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := writer.run(ctx); err != nil {
			logger.Warn("websocket write failed", "error", err)
			cancel()
			_ = ws.Close()
		}
	}()

	available := true
	if hello.CaptureAvailable != nil {
		available = *hello.CaptureAvailable
	}
	player := newRemotePlayer(ctx, writer, h.ClipTimeout)
	opts := h.Session
	opts.Logger = logger
	opts.Player = player
	opts.Capture = remoteCapture{ctx: ctx, out: writer, available: available}
	opts.Observer = frameObserver{ctx: ctx, out: writer}
	ctrl := session.New(opts)

	conn := &connection{
		logger: logger.With("session_id", ctrl.ID()),
		ctrl:   ctrl,
		player: player,
		out:    writer,
	}
	writer.send(ctx, ServerReady{Type: "ready", SessionID: ctrl.ID()})

	if err := ctrl.Start(ctx, questions, meta); err != nil {
		conn.logger.Warn("session start rejected", "error", err)
		writer.send(ctx, ServerError{Type: "error", Code: errorCode(err), Message: err.Error(), Op: "start", Close: true})
	} else {
		conn.readLoop(ctx, ws)
	}

	if err := ctrl.Close(context.Background()); err != nil {
		conn.logger.Warn("session close failed", "error", err)
	}
	conn.wg.Wait()
	cancel()
	<-writerDone
}

func (h Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.Logger
}

func (h Handler) readHello(ws *websocket.Conn) (ClientHello, error) {
	timeout := h.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	_ = ws.SetReadDeadline(time.Now().Add(timeout))

	messageType, data, err := ws.ReadMessage()
	if err != nil {
		return ClientHello{}, badRequest("failed to read hello", "")
	}
	if messageType != websocket.TextMessage {
		return ClientHello{}, badRequest("hello must be a text frame", "")
	}
	msg, err := DecodeClientMessage(data)
	if err != nil {
		return ClientHello{}, err
	}
	hello, ok := msg.(ClientHello)
	if !ok {
		return ClientHello{}, badRequest("first frame must be hello", "type")
	}
	return hello, nil
}

func (h Handler) resolveQuestions(hello ClientHello) ([]question.Question, question.Meta, error) {
	if len(hello.Questions) > 0 {
		return hello.Questions, hello.Meta, nil
	}
	if name := strings.TrimSpace(hello.QuestionSet); name != "" {
		set, ok := h.Sets[name]
		if !ok {
			return nil, question.Meta{}, badRequest("unknown question set", "question_set")
		}
		return set.Questions, set.Meta, nil
	}
	if h.Default != nil {
		return h.Default.Questions, h.Default.Meta, nil
	}
	return nil, hello.Meta, nil
}

// checkOrigin allows same-origin requests plus any configured origin.
func (h Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (h Handler) writeWSError(ws *websocket.Conn, err error) {
	frame := ServerError{Type: "error", Code: errorCode(err), Message: err.Error(), Close: true}
	data, marshalErr := json.Marshal(frame)
	if marshalErr == nil {
		_ = ws.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
		_ = ws.WriteMessage(websocket.TextMessage, data)
	}
	closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, frame.Code)
	_ = ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
}

// connection dispatches client frames for one session.
type connection struct {
	logger *slog.Logger
	ctrl   *session.Controller
	player *remotePlayer
	out    *outboundWriter

	// wg tracks gateway-bound work started from the read loop.
	wg sync.WaitGroup
}

func (c *connection) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				c.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.reject(ctx, "", badRequest("binary frames are not supported", ""))
			continue
		}
		msg, err := DecodeClientMessage(data)
		if err != nil {
			c.reject(ctx, "", err)
			continue
		}
		c.dispatch(ctx, msg)
	}
}

func (c *connection) dispatch(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case ClientHello:
		c.reject(ctx, "hello", badRequest("session already started", "type"))
	case ClientTranscript:
		if !c.ctrl.UpdateTranscript(m.Interim, m.Final) {
			c.logger.Debug("transcript frame dropped")
		}
	case ClientCode:
		c.ctrl.UpdateCode(session.CodeSubmission{Language: m.Language, Source: m.Source})
	case ClientSubmit:
		c.async(func() {
			res, err := c.ctrl.Submit(ctx, m.Code)
			if err != nil {
				c.reject(ctx, "submit", err)
				return
			}
			c.out.send(ctx, ServerResult{
				Type:      "result",
				Submitted: string(res.Submitted),
				State:     string(res.State),
				Text:      res.Text,
				Budget:    res.Budget,
				Advanced:  res.Advanced,
				Finished:  res.Finished,
				Completed: res.Completed,
			})
		})
	case ClientPlaybackEnded:
		if !c.player.ended(m.ClipID, m.Error) {
			c.logger.Debug("playback_ended for unknown clip", "clip_id", m.ClipID)
		}
	case ClientCommand:
		switch m.Type {
		case "ask":
			c.reject(ctx, "ask", c.ctrl.AskQuestion(ctx))
		case "toggle_code":
			c.ctrl.ToggleCodeMode()
		case "next":
			c.reject(ctx, "next", c.ctrl.AdvanceToNextQuestion(ctx))
		case "replay":
			c.async(func() {
				c.reject(ctx, "replay", c.ctrl.ReplayPrompt(ctx))
			})
		}
	}
}

func (c *connection) async(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// reject reports err to the client. Gateway failures already reach the client through
// the session observer, and stale results are silent.
func (c *connection) reject(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	if session.IsRecoverable(err) {
		return
	}
	c.logger.Info("client frame rejected", "op", op, "error", err)
	c.out.send(ctx, ServerError{Type: "error", Code: errorCode(err), Message: err.Error(), Op: op})
}
