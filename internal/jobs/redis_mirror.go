package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipdeck/api/internal/model"
)

const mirrorTTL = 24 * time.Hour

type mirrorOp struct {
	job     model.Job
	removed bool
}

// RedisMirror persists registry snapshots under job:<id> so job state can
// still be read after a restart.
type RedisMirror struct {
	redis  *redis.Client
	logger *slog.Logger
	queue  chan mirrorOp
	done   chan struct{}
}

func NewRedisMirror(redisClient *redis.Client, logger *slog.Logger) *RedisMirror {
	return &RedisMirror{
		redis:  redisClient,
		logger: logger,
		queue:  make(chan mirrorOp, 256),
		done:   make(chan struct{}),
	}
}

// Attach registers the mirror on r. Run must be started to drain writes.
func (m *RedisMirror) Attach(r *Registry) {
	r.AddListener(func(job model.Job, removed bool) {
		select {
		case m.queue <- mirrorOp{job: job, removed: removed}:
		default:
			m.logger.Warn("job mirror queue full, dropping snapshot", "job_id", job.ID)
		}
	})
}

// Run writes queued snapshots until ctx is done.
func (m *RedisMirror) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-m.queue:
			var err error
			if op.removed {
				err = m.redis.Del(ctx, jobKey(op.job.ID)).Err()
			} else {
				err = m.Save(ctx, op.job)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("job mirror write failed", "job_id", op.job.ID, "error", err)
			}
		}
	}
}

// Done is closed when Run returns.
func (m *RedisMirror) Done() <-chan struct{} {
	return m.done
}

// Save stores one snapshot.
func (m *RedisMirror) Save(ctx context.Context, job model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return m.redis.Set(ctx, jobKey(job.ID), data, mirrorTTL).Err()
}

// Load reads a persisted snapshot.
func (m *RedisMirror) Load(ctx context.Context, id string) (model.Job, error) {
	data, err := m.redis.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Job{}, ErrNotFound
		}
		return model.Job{}, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return model.Job{}, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return job, nil
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}
