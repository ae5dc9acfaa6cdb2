package timeline

import (
	"math"
	"sync"
	"testing"

	"github.com/clipdeck/api/internal/model"
)

func clip(id string, order int, dur float64) model.Clip {
	return model.Clip{ID: id, OrderIndex: order, SourceDuration: dur, TrimEnd: dur, Path: id + ".mp4"}
}

func ids(clips []model.Clip) []string {
	out := make([]string, len(clips))
	for i, c := range clips {
		out[i] = c.ID
	}
	return out
}

func assertOrder(t *testing.T, tl *Timeline, want ...string) {
	t.Helper()
	clips := tl.Clips()
	got := ids(clips)
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
		if clips[i].OrderIndex != i {
			t.Fatalf("clip %s has OrderIndex %d at position %d", clips[i].ID, clips[i].OrderIndex, i)
		}
	}
}

func assertTotal(t *testing.T, tl *Timeline) {
	t.Helper()
	var sum float64
	for _, c := range tl.Clips() {
		sum += c.TrimEnd - c.TrimStart
	}
	if math.Abs(sum-tl.TotalDuration()) > 1e-9 {
		t.Fatalf("total duration %v is stale, clips sum to %v", tl.TotalDuration(), sum)
	}
}

func TestSetAll_SortsAndRenumbers(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{clip("c", 7, 3), clip("a", 0, 2), clip("b", 3, 5)})

	assertOrder(t, tl, "a", "b", "c")
	if tl.TotalDuration() != 10 {
		t.Errorf("total = %v, want 10", tl.TotalDuration())
	}
	assertTotal(t, tl)
}

func TestSetAll_NormalizesTrim(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{
		{ID: "untrimmed", SourceDuration: 4},
		{ID: "bad", SourceDuration: 4, TrimStart: 3, TrimEnd: 9},
	})
	for _, c := range tl.Clips() {
		if c.TrimStart != 0 || c.TrimEnd != 4 {
			t.Errorf("%s trim = [%v,%v], want [0,4]", c.ID, c.TrimStart, c.TrimEnd)
		}
	}
}

func TestInsert_AppendsAtEnd(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{clip("a", 0, 2), clip("b", 1, 2)})

	got, ok := tl.Insert(model.Clip{ID: "c", OrderIndex: 0, SourceDuration: 4})
	if !ok {
		t.Fatal("insert rejected")
	}
	if got.OrderIndex != 2 {
		t.Errorf("inserted OrderIndex = %d, want 2", got.OrderIndex)
	}
	assertOrder(t, tl, "a", "b", "c")
	if tl.TotalDuration() != 8 {
		t.Errorf("total = %v", tl.TotalDuration())
	}

	if _, ok := tl.Insert(model.Clip{ID: "a", SourceDuration: 1}); ok {
		t.Error("duplicate id accepted")
	}
	if _, ok := tl.Insert(model.Clip{SourceDuration: 1}); ok {
		t.Error("clip without id accepted")
	}
}

func TestRemove_RenumbersAndClearsSelection(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{clip("a", 0, 1), clip("b", 1, 2), clip("c", 2, 3), clip("d", 3, 4)})
	tl.Select("b")

	if !tl.Remove("b") {
		t.Fatal("remove returned false")
	}
	assertOrder(t, tl, "a", "c", "d")
	if tl.Selected() != "" {
		t.Errorf("selection = %q, want cleared", tl.Selected())
	}
	if tl.TotalDuration() != 8 {
		t.Errorf("total = %v, want 8", tl.TotalDuration())
	}

	tl.Select("a")
	tl.Remove("d")
	if tl.Selected() != "a" {
		t.Error("removing another clip cleared the selection")
	}
	if tl.Remove("missing") {
		t.Error("remove of unknown id returned true")
	}
}

func TestMoveTo(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		newIndex int
		want     []string
	}{
		{"forward", "a", 2, []string{"b", "c", "a", "d"}},
		{"backward", "d", 0, []string{"d", "a", "b", "c"}},
		{"clamped high", "b", 99, []string{"a", "c", "d", "b"}},
		{"clamped low", "c", -5, []string{"c", "a", "b", "d"}},
		{"same index", "b", 1, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := New()
			tl.SetAll([]model.Clip{clip("a", 0, 1), clip("b", 1, 2), clip("c", 2, 3), clip("d", 3, 4)})
			if !tl.MoveTo(tt.id, tt.newIndex) {
				t.Fatal("move returned false")
			}
			assertOrder(t, tl, tt.want...)
			assertTotal(t, tl)
		})
	}
}

func TestMoveTo_UnknownID(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{clip("a", 0, 1)})
	if tl.MoveTo("zzz", 0) {
		t.Error("move of unknown id returned true")
	}
	assertOrder(t, tl, "a")
}

func TestTrim(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		wantOK     bool
	}{
		{"valid", 1, 4, true},
		{"full range", 0, 5, true},
		{"start equals end", 2, 2, false},
		{"start after end", 4, 1, false},
		{"negative start", -1, 3, false},
		{"end beyond source", 1, 6, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := New()
			tl.SetAll([]model.Clip{clip("a", 0, 5), clip("b", 1, 2)})

			ok := tl.Trim("a", tt.start, tt.end)
			if ok != tt.wantOK {
				t.Fatalf("Trim ok = %v, want %v", ok, tt.wantOK)
			}
			c, _ := tl.Get("a")
			if ok {
				if c.TrimStart != tt.start || c.TrimEnd != tt.end {
					t.Errorf("trim = [%v,%v]", c.TrimStart, c.TrimEnd)
				}
			} else if c.TrimStart != 0 || c.TrimEnd != 5 {
				t.Errorf("rejected trim changed clip to [%v,%v]", c.TrimStart, c.TrimEnd)
			}
			assertTotal(t, tl)
		})
	}
}

func TestTrim_UnknownID(t *testing.T) {
	tl := New()
	if tl.Trim("missing", 0, 1) {
		t.Error("trim of unknown id returned true")
	}
}

func TestSelect(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{clip("a", 0, 1), clip("b", 1, 1)})

	if !tl.Select("b") || tl.Selected() != "b" {
		t.Error("select failed")
	}
	if tl.Select("missing") {
		t.Error("select of unknown id returned true")
	}
	if tl.Selected() != "b" {
		t.Error("selection changed by unknown id")
	}
	before := tl.TotalDuration()
	tl.Select("")
	if tl.Selected() != "" || tl.TotalDuration() != before {
		t.Error("clearing selection misbehaved")
	}
	assertOrder(t, tl, "a", "b")
}

func TestSetScrubTime_Clamped(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{clip("a", 0, 4)})

	if got := tl.SetScrubTime(10); got != 4 {
		t.Errorf("scrub = %v, want 4", got)
	}
	if got := tl.SetScrubTime(-1); got != 0 {
		t.Errorf("scrub = %v, want 0", got)
	}
	tl.SetScrubTime(3)
	tl.Trim("a", 0, 2)
	if tl.ScrubTime() != 2 {
		t.Errorf("scrub not clamped after shrink: %v", tl.ScrubTime())
	}
}

func TestUpdateClip_KeepsIdentityAndOrder(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{clip("a", 0, 1), {ID: "pending", OrderIndex: 1}, clip("c", 2, 3)})

	url := "https://cdn/new.mp4"
	dur := 6.0
	status := model.GenerationStatusCompleted
	got, ok := tl.UpdateClip("pending", model.ClipPatch{URL: &url, SourceDuration: &dur, GenerationStatus: &status})
	if !ok {
		t.Fatal("update returned false")
	}
	if got.ID != "pending" || got.OrderIndex != 1 || got.URL != url {
		t.Errorf("unexpected clip %+v", got)
	}
	if got.TrimStart != 0 || got.TrimEnd != 6 {
		t.Errorf("trim = [%v,%v], want [0,6]", got.TrimStart, got.TrimEnd)
	}
	if tl.TotalDuration() != 10 {
		t.Errorf("total = %v, want 10", tl.TotalDuration())
	}
	assertOrder(t, tl, "a", "pending", "c")

	if _, ok := tl.UpdateClip("missing", model.ClipPatch{URL: &url}); ok {
		t.Error("update of unknown id returned true")
	}
}

func TestUpdateClip_ConditionalOnJob(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{{ID: "c1", JobID: "job-2"}})

	url := "https://cdn/old.mp4"
	stale := "job-1"
	if _, ok := tl.UpdateClip("c1", model.ClipPatch{URL: &url, IfJobID: &stale}); ok {
		t.Error("patch for another job applied")
	}
	if c, _ := tl.Get("c1"); c.URL != "" {
		t.Errorf("clip changed: %+v", c)
	}

	current := "job-2"
	if _, ok := tl.UpdateClip("c1", model.ClipPatch{URL: &url, IfJobID: &current}); !ok {
		t.Error("patch for the bound job rejected")
	}
}

func TestAssemblyDescriptors(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{
		clip("a", 0, 5),
		{ID: "pending", OrderIndex: 1},
		{ID: "remote", OrderIndex: 2, SourceDuration: 3, TrimEnd: 3, URL: "https://cdn/r.mp4"},
	})
	tl.Trim("a", 1, 4)

	got := tl.AssemblyDescriptors()
	want := []model.AssemblyClip{
		{Path: "a.mp4", Start: 1, End: 4},
		{Path: "https://cdn/r.mp4", Start: 0, End: 3},
	}
	if len(got) != len(want) {
		t.Fatalf("descriptors = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("descriptor %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMutationSequence_InvariantsHold(t *testing.T) {
	tl := New()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		tl.Insert(clip(id, 0, float64(i+1)))
	}
	tl.MoveTo("e", 0)
	tl.Trim("c", 0.5, 2.5)
	tl.Remove("a")
	tl.MoveTo("b", 10)
	tl.Insert(clip("f", 0, 2))

	assertOrder(t, tl, "e", "c", "d", "b", "f")
	assertTotal(t, tl)
}

func TestConcurrentMutations(t *testing.T) {
	tl := New()
	tl.SetAll([]model.Clip{clip("a", 0, 1), clip("b", 1, 2), clip("c", 2, 3)})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tl.MoveTo("a", i%3)
			tl.Trim("b", 0, 1)
			tl.TotalDuration()
			tl.Clips()
		}(i)
	}
	wg.Wait()

	clips := tl.Clips()
	for i, c := range clips {
		if c.OrderIndex != i {
			t.Fatalf("OrderIndex %d at %d", c.OrderIndex, i)
		}
	}
	assertTotal(t, tl)
}
