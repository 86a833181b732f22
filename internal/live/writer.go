package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultPingInterval = 20 * time.Second
	defaultWriteTimeout = 5 * time.Second
	outboundQueueSize   = 64
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// outboundWriter is the single goroutine allowed to write to the socket.
type outboundWriter struct {
	ws           wsWriter
	frames       chan any
	pingInterval time.Duration
	writeTimeout time.Duration
}

func newOutboundWriter(ws wsWriter, pingInterval, writeTimeout time.Duration) *outboundWriter {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &outboundWriter{
		ws:           ws,
		frames:       make(chan any, outboundQueueSize),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
	}
}

// send queues one frame. It gives up once ctx is done.
func (w *outboundWriter) send(ctx context.Context, frame any) bool {
	select {
	case w.frames <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

// run writes queued frames until ctx is done, then flushes what is already queued and
// closes the socket normally.
func (w *outboundWriter) run(ctx context.Context) error {
	ping := time.NewTicker(w.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush()
			_ = w.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(w.writeTimeout))
			_ = w.ws.Close()
			return nil
		case <-ping.C:
			if err := w.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(w.writeTimeout)); err != nil {
				return err
			}
		case frame := <-w.frames:
			if err := w.write(frame); err != nil {
				return err
			}
		}
	}
}

func (w *outboundWriter) flush() {
	for {
		select {
		case frame := <-w.frames:
			if err := w.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (w *outboundWriter) write(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := w.ws.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, data)
}
