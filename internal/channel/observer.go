package channel

import (
	"context"

	"github.com/clipdeck/api/internal/jobs"
	"github.com/clipdeck/api/internal/model"
)

// PushObserver adapts Channel to the jobs.Observer strategy.
type PushObserver struct {
	channel *Channel
}

func NewPushObserver(c *Channel) *PushObserver {
	return &PushObserver{channel: c}
}

func (o *PushObserver) Mode() string { return jobs.ModePush }

func (o *PushObserver) Observe(ctx context.Context, handle model.JobHandle) (jobs.Observation, error) {
	o.channel.metrics.ObserverStarted(jobs.ModePush)
	h, err := o.channel.Open(ctx, handle.JobID)
	if err != nil {
		o.channel.metrics.ObserverStopped(jobs.ModePush)
		return nil, err
	}
	go func() {
		<-h.Done()
		o.channel.metrics.ObserverStopped(jobs.ModePush)
	}()
	return h, nil
}
