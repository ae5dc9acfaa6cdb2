// Package jobs keeps the process-wide table of remote generation jobs
// and fans state changes out to subscribers.
package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/clipdeck/api/internal/model"
)

// ErrNotFound is returned when a job id is not registered
var ErrNotFound = errors.New("job not found")

// Listener is notified after every change. removed is true when the job
// left the registry through Remove or Clear.
type Listener func(job model.Job, removed bool)

type subscription struct {
	ch chan model.Job
}

// Registry is an in-memory job table. Updates are last-write-wins per field.
// Readers always receive value snapshots.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[string]*model.Job
	subs      map[string]map[*subscription]struct{}
	listeners []Listener
	now       func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*model.Job),
		subs: make(map[string]map[*subscription]struct{}),
		now:  time.Now,
	}
}

// AddListener registers l for every subsequent change.
func (r *Registry) AddListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Register inserts job, overwriting any existing entry with the same id.
// Status defaults to queued.
func (r *Registry) Register(job model.Job) model.Job {
	now := r.now()
	job = job.Clone()
	if job.Status == "" {
		job.Status = model.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	r.mu.Lock()
	stored := job
	r.jobs[job.ID] = &stored
	snapshot := stored.Clone()
	r.publishLocked(snapshot)
	listeners := r.listeners
	r.mu.Unlock()

	notify(listeners, snapshot, false)
	return snapshot
}

// Update merges the set fields of u into the job. It is a no-op returning
// false when id is not registered.
func (r *Registry) Update(id string, u model.JobUpdate) (model.Job, bool) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return model.Job{}, false
	}
	u.Apply(job)
	job.UpdatedAt = r.now()
	snapshot := job.Clone()
	r.publishLocked(snapshot)
	listeners := r.listeners
	r.mu.Unlock()

	notify(listeners, snapshot, false)
	return snapshot, true
}

// Remove deletes the job and closes its subscriptions.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	snapshot := job.Clone()
	delete(r.jobs, id)
	r.closeSubsLocked(id)
	listeners := r.listeners
	r.mu.Unlock()

	notify(listeners, snapshot, true)
	return true
}

// Clear removes every job and closes every subscription.
func (r *Registry) Clear() {
	r.mu.Lock()
	removed := make([]model.Job, 0, len(r.jobs))
	for id, job := range r.jobs {
		removed = append(removed, job.Clone())
		r.closeSubsLocked(id)
	}
	r.jobs = make(map[string]*model.Job)
	for id := range r.subs {
		r.closeSubsLocked(id)
	}
	listeners := r.listeners
	r.mu.Unlock()

	for _, job := range removed {
		notify(listeners, job, true)
	}
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return job.Clone(), true
}

// List returns snapshots of all jobs ordered by creation time.
func (r *Registry) List() []model.Job {
	r.mu.RLock()
	out := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Subscribe streams snapshots of job id. The current state, if any, is
// delivered first. A slow reader only ever sees the newest snapshot.
// The stream closes when the job is removed or cancel is called.
func (r *Registry) Subscribe(id string) (<-chan model.Job, func()) {
	sub := &subscription{ch: make(chan model.Job, 1)}

	r.mu.Lock()
	if r.subs[id] == nil {
		r.subs[id] = make(map[*subscription]struct{})
	}
	r.subs[id][sub] = struct{}{}
	if job, ok := r.jobs[id]; ok {
		sub.ch <- job.Clone()
	}
	r.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if set, ok := r.subs[id]; ok {
				if _, ok := set[sub]; ok {
					delete(set, sub)
					close(sub.ch)
				}
				if len(set) == 0 {
					delete(r.subs, id)
				}
			}
		})
	}
	return sub.ch, cancel
}

func (r *Registry) publishLocked(job model.Job) {
	for sub := range r.subs[job.ID] {
		select {
		case sub.ch <- job:
			continue
		default:
		}
		// drop the stale snapshot so the reader sees the newest one
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- job:
		default:
		}
	}
}

func (r *Registry) closeSubsLocked(id string) {
	for sub := range r.subs[id] {
		close(sub.ch)
	}
	delete(r.subs, id)
}

func notify(listeners []Listener, job model.Job, removed bool) {
	for _, l := range listeners {
		l(job, removed)
	}
}
