// Package health checks a running intervue server over the gRPC health protocol.
package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultDialTimeout bounds connection readiness before the check is sent.
const DefaultDialTimeout = 3 * time.Second

// ErrNotServing is returned when the server answers with any status but SERVING.
var ErrNotServing = errors.New("server is not serving")

// Probe dials addr and runs one health check for service ("" for the whole server).
// It returns the reported status; err is ErrNotServing when the status is not SERVING.
func Probe(ctx context.Context, addr, service string, dialTimeout time.Duration) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", errors.New("health address is empty")
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return "", fmt.Errorf("dial health grpc %q: %w", addr, err)
	}
	defer conn.Close()

	readyCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		return "", fmt.Errorf("wait for health grpc readiness: %w", err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(readyCtx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	status := resp.GetStatus().String()
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return status, fmt.Errorf("%w: %s", ErrNotServing, status)
	}
	return status, nil
}

// waitForReady blocks until conn is READY or ctx ends.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
