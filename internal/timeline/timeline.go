// Package timeline holds the ordered, trimmed clip sequence of a project.
//
// Invariants kept after every mutation:
//   - OrderIndex values are exactly 0..N-1 in slice order
//   - 0 <= TrimStart < TrimEnd <= SourceDuration for every clip with media;
//     a placeholder clip awaiting generation has an all-zero range
//   - the aggregate duration equals the sum of trimmed lengths
//
// Operations on an unknown clip id are no-ops reported by a false return.
package timeline

import (
	"sort"
	"sync"

	"github.com/clipdeck/api/internal/model"
)

// Timeline is safe for concurrent use.
type Timeline struct {
	mu        sync.RWMutex
	clips     []model.Clip
	selected  string
	scrubTime float64
	total     float64
}

func New() *Timeline {
	return &Timeline{}
}

// SetAll replaces the sequence. Clips are ordered by OrderIndex (stable),
// renumbered densely, and trims outside the source range are reset to the
// full clip.
func (t *Timeline) SetAll(clips []model.Clip) {
	next := make([]model.Clip, 0, len(clips))
	seen := make(map[string]struct{}, len(clips))
	for _, c := range clips {
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		next = append(next, normalizeTrim(c))
	}
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].OrderIndex < next[j].OrderIndex
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	t.clips = next
	if _, ok := seen[t.selected]; !ok {
		t.selected = ""
	}
	t.renumberLocked()
	t.recomputeLocked()
}

// Insert appends clip at the end of the sequence. Clips without an id or
// with an id already present are rejected.
func (t *Timeline) Insert(clip model.Clip) (model.Clip, bool) {
	if clip.ID == "" {
		return model.Clip{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.indexLocked(clip.ID) >= 0 {
		return model.Clip{}, false
	}
	clip = normalizeTrim(clip)
	clip.OrderIndex = len(t.clips)
	t.clips = append(t.clips, clip)
	t.recomputeLocked()
	return clip, true
}

// Remove deletes the clip, closes the gap in ordering and clears the
// selection if it pointed at the clip.
func (t *Timeline) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(id)
	if i < 0 {
		return false
	}
	t.clips = append(t.clips[:i], t.clips[i+1:]...)
	if t.selected == id {
		t.selected = ""
	}
	t.renumberLocked()
	t.recomputeLocked()
	return true
}

// MoveTo reinserts the clip at newIndex, clamped to [0, len-1], and
// renumbers the sequence. Moving to the current index changes nothing.
func (t *Timeline) MoveTo(id string, newIndex int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.indexLocked(id)
	if from < 0 {
		return false
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if last := len(t.clips) - 1; newIndex > last {
		newIndex = last
	}
	if newIndex == from {
		return true
	}

	clip := t.clips[from]
	rest := make([]model.Clip, 0, len(t.clips))
	rest = append(rest, t.clips[:from]...)
	rest = append(rest, t.clips[from+1:]...)

	out := make([]model.Clip, 0, len(t.clips))
	out = append(out, rest[:newIndex]...)
	out = append(out, clip)
	out = append(out, rest[newIndex:]...)
	t.clips = out

	t.renumberLocked()
	t.recomputeLocked()
	return true
}

// Trim sets the clip's trim bounds. It is rejected when start >= end or
// either bound lies outside [0, SourceDuration].
func (t *Timeline) Trim(id string, start, end float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(id)
	if i < 0 {
		return false
	}
	c := &t.clips[i]
	if !ValidTrim(start, end, c.SourceDuration) {
		return false
	}
	c.TrimStart = start
	c.TrimEnd = end
	t.recomputeLocked()
	return true
}

// ValidTrim reports whether [start, end] is a usable trim of a clip with
// the given source duration.
func ValidTrim(start, end, sourceDuration float64) bool {
	if start >= end {
		return false
	}
	return start >= 0 && end <= sourceDuration
}

// Select focuses a clip. An empty id clears the selection.
func (t *Timeline) Select(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id == "" {
		t.selected = ""
		return true
	}
	if t.indexLocked(id) < 0 {
		return false
	}
	t.selected = id
	return true
}

// SetScrubTime moves the playhead, clamped to [0, TotalDuration].
func (t *Timeline) SetScrubTime(at float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scrubTime = clamp(at, 0, t.total)
	return t.scrubTime
}

// UpdateClip applies media or generation changes without touching the
// clip's identity or position. It reports false when the clip is missing or
// no longer bound to patch.IfJobID.
func (t *Timeline) UpdateClip(id string, patch model.ClipPatch) (model.Clip, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(id)
	if i < 0 {
		return model.Clip{}, false
	}
	c := &t.clips[i]
	if patch.IfJobID != nil && c.JobID != *patch.IfJobID {
		return *c, false
	}
	if patch.Path != nil {
		c.Path = *patch.Path
	}
	if patch.URL != nil {
		c.URL = *patch.URL
	}
	if patch.ThumbnailURL != nil {
		c.ThumbnailURL = *patch.ThumbnailURL
	}
	if patch.Provider != nil {
		c.Provider = *patch.Provider
	}
	if patch.Prompt != nil {
		c.Prompt = *patch.Prompt
	}
	if patch.JobID != nil {
		c.JobID = *patch.JobID
	}
	if patch.GenerationStatus != nil {
		c.GenerationStatus = *patch.GenerationStatus
	}
	if patch.SourceDuration != nil && *patch.SourceDuration > 0 {
		c.SourceDuration = *patch.SourceDuration
		*c = normalizeTrim(*c)
	}
	t.recomputeLocked()
	return *c, true
}

// Get returns a copy of the clip.
func (t *Timeline) Get(id string) (model.Clip, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i := t.indexLocked(id)
	if i < 0 {
		return model.Clip{}, false
	}
	return t.clips[i], true
}

// Clips returns a copy of the ordered sequence.
func (t *Timeline) Clips() []model.Clip {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Clip, len(t.clips))
	copy(out, t.clips)
	return out
}

// Len returns the number of clips
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clips)
}

// Selected returns the focused clip id, or "".
func (t *Timeline) Selected() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.selected
}

// ScrubTime returns the playhead position
func (t *Timeline) ScrubTime() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scrubTime
}

// TotalDuration returns the sum of trimmed clip lengths.
func (t *Timeline) TotalDuration() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// AssemblyDescriptors returns the ordered {path, start, end} list for the
// assembly endpoint. Clips with no media are skipped.
func (t *Timeline) AssemblyDescriptors() []model.AssemblyClip {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.AssemblyClip, 0, len(t.clips))
	for _, c := range t.clips {
		path := c.Path
		if path == "" {
			path = c.URL
		}
		if path == "" {
			continue
		}
		out = append(out, model.AssemblyClip{Path: path, Start: c.TrimStart, End: c.TrimEnd})
	}
	return out
}

// Snapshot returns a consistent read model of the whole timeline.
func (t *Timeline) Snapshot(projectID string) model.TimelineResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	clips := make([]model.Clip, len(t.clips))
	copy(clips, t.clips)
	return model.TimelineResponse{
		ProjectID:      projectID,
		Clips:          clips,
		SelectedClipID: t.selected,
		ScrubTime:      t.scrubTime,
		TotalDuration:  t.total,
	}
}

func (t *Timeline) indexLocked(id string) int {
	for i := range t.clips {
		if t.clips[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Timeline) renumberLocked() {
	for i := range t.clips {
		t.clips[i].OrderIndex = i
	}
}

func (t *Timeline) recomputeLocked() {
	var total float64
	for _, c := range t.clips {
		total += c.Length()
	}
	t.total = total
	if t.scrubTime > total {
		t.scrubTime = total
	}
}

// normalizeTrim resets an unusable trim to the full source range. A clip
// without a known duration keeps a zero-length range.
func normalizeTrim(c model.Clip) model.Clip {
	if c.SourceDuration <= 0 {
		c.SourceDuration = 0
		c.TrimStart = 0
		c.TrimEnd = 0
		return c
	}
	if c.TrimStart == 0 && c.TrimEnd == 0 {
		c.TrimEnd = c.SourceDuration
	}
	if !ValidTrim(c.TrimStart, c.TrimEnd, c.SourceDuration) {
		c.TrimStart = 0
		c.TrimEnd = c.SourceDuration
	}
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
