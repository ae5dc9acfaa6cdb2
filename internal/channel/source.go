package channel

import (
	"context"
	"errors"
)

// ErrStreamClosed is returned by Stream.Next after Close.
var ErrStreamClosed = errors.New("stream closed")

// Source opens a per-job event stream from the render backend.
type Source interface {
	Connect(ctx context.Context, jobID string) (Stream, error)
}

// Stream is one open transport. Next blocks until a raw JSON event arrives.
// Heartbeat and Next may be called concurrently. Close unblocks Next.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
	Heartbeat(ctx context.Context) error
	Close() error
}
