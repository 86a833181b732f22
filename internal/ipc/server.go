package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// MaxRequestBytes bounds one request line; code snapshots are the largest payload.
const MaxRequestBytes = 1 << 20

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// readTimeout bounds how long a connected client may take to send its request line,
// so an idle client cannot hold Serve open past shutdown.
const readTimeout = 2 * time.Second

// Serve accepts unix-socket clients until context cancellation or listener close. It
// returns once every in-flight command has answered.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			_ = json.NewEncoder(conn).Encode(serveConn(ctx, conn, handler))
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler) Response {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	line, err := bufio.NewReader(io.LimitReader(conn, MaxRequestBytes+1)).ReadBytes('\n')
	switch {
	case len(line) > MaxRequestBytes:
		return Response{Error: fmt.Sprintf("request exceeds %d bytes", MaxRequestBytes)}
	case err != nil:
		return Response{Error: fmt.Sprintf("read request: %v", err)}
	}
	_ = conn.SetReadDeadline(time.Time{})

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Error: fmt.Sprintf("decode request: %v", err)}
	}
	if strings.TrimSpace(req.Command) == "" {
		return Response{Error: "missing command"}
	}
	return handler.Handle(ctx, req)
}
