package tracker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/clipdeck/api/internal/jobs"
	"github.com/clipdeck/api/internal/model"
)

// PollObserver adapts Tracker to the jobs.Observer strategy by mirroring
// session progress into the registry. Sessions run in one Slot per handle
// owner, so a new job for the same clip fully stops the previous session.
type PollObserver struct {
	tracker  *Tracker
	registry *jobs.Registry
	opts     Options

	mu    sync.Mutex
	slots map[string]*Slot
}

func NewPollObserver(t *Tracker, registry *jobs.Registry, opts Options) *PollObserver {
	return &PollObserver{tracker: t, registry: registry, opts: opts, slots: make(map[string]*Slot)}
}

// Slots returns the number of owners with a live slot
func (o *PollObserver) Slots() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.slots)
}

// track starts the session in the owner's slot. The lookup and the restart
// happen under one lock so a concurrent release cannot orphan the slot.
func (o *PollObserver) track(ctx context.Context, owner string, handle model.JobHandle, cb Callbacks) *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	sl, ok := o.slots[owner]
	if !ok {
		sl = NewSlot(o.tracker)
		o.slots[owner] = sl
	}
	return sl.Track(ctx, handle.JobID, handle.Provider, o.opts, cb)
}

// release drops the owner's slot once its current session is the one stopped.
func (o *PollObserver) release(owner string, session *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if sl, ok := o.slots[owner]; ok && sl.Current() == session {
		delete(o.slots, owner)
	}
}

type pollObservation struct {
	observer *PollObserver
	owner    string
	session  *Session
}

func (p *pollObservation) Stop() {
	p.session.Stop()
	p.observer.release(p.owner, p.session)
}

func (o *PollObserver) Mode() string { return jobs.ModePoll }

func (o *PollObserver) Observe(ctx context.Context, handle model.JobHandle) (jobs.Observation, error) {
	id := handle.JobID
	if _, ok := o.registry.Get(id); !ok {
		o.registry.Register(model.Job{ID: id, Provider: handle.Provider})
	}

	owner := handle.Owner
	if owner == "" {
		owner = id
	}

	session := o.track(ctx, owner, handle, Callbacks{
		OnUpdate: func(st Status) {
			if st.State != StatePolling || st.Attempts == 0 {
				return
			}
			u := model.JobUpdate{Status: model.StatusPtr(model.JobStatusRunning)}
			if st.Response != nil && st.Response.Progress != nil {
				u.Progress = model.IntPtr(*st.Response.Progress)
			}
			if st.Response != nil && st.Response.Message != "" {
				u.Message = model.StringPtr(st.Response.Message)
			}
			o.registry.Update(id, u)
		},
		OnComplete: func(resp model.StatusResponse) {
			result, _ := json.Marshal(resp)
			o.registry.Update(id, model.JobUpdate{
				Status:   model.StatusPtr(model.JobStatusSucceeded),
				Progress: model.IntPtr(100),
				Result:   result,
			})
		},
		OnError: func(f *Failure) {
			status := model.JobStatusFailed
			if f.State == StateTimeout {
				status = model.JobStatusTimedOut
			}
			u := model.JobUpdate{
				Status:    model.StatusPtr(status),
				Message:   model.StringPtr(f.Message),
				Retryable: model.BoolPtr(f.Retryable),
			}
			if f.Response != nil {
				if result, err := json.Marshal(f.Response); err == nil {
					u.Result = result
				}
			}
			o.registry.Update(id, u)
		},
	})
	return &pollObservation{observer: o, owner: owner, session: session}, nil
}
