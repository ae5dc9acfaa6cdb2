package jobs

import (
	"context"

	"github.com/clipdeck/api/internal/model"
)

// Observation modes
const (
	ModePoll = "poll"
	ModePush = "push"
)

// Observer follows a remote job and reflects its progress into a Registry
// until the job reaches a terminal status.
type Observer interface {
	Mode() string
	Observe(ctx context.Context, handle model.JobHandle) (Observation, error)
}

// Observation is a running Observer. Stop is idempotent.
type Observation interface {
	Stop()
}

// WaitTerminal blocks until job id reaches a terminal status, the job is
// removed, or ctx is done.
func WaitTerminal(ctx context.Context, r *Registry, id string) (model.Job, error) {
	updates, cancel := r.Subscribe(id)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return model.Job{}, ctx.Err()
		case job, ok := <-updates:
			if !ok {
				return model.Job{}, ErrNotFound
			}
			if job.Status.IsTerminal() {
				return job, nil
			}
		}
	}
}
