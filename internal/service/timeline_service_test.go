package service

import (
	"context"
	"errors"
	"testing"

	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/timeline"
)

type fakeAssembler struct {
	projectID string
	clips     []model.AssemblyClip
	err       error
}

func (a *fakeAssembler) Assemble(ctx context.Context, projectID string, clips []model.AssemblyClip) (*model.AssembleResponse, error) {
	a.projectID = projectID
	a.clips = clips
	if a.err != nil {
		return nil, a.err
	}
	return &model.AssembleResponse{VideoURL: "https://cdn/final.mp4"}, nil
}

func TestTimelineService_InsertGeneratesID(t *testing.T) {
	s := NewTimelineService(nil, nil)
	start := 1.0

	resp := s.Insert("p1", &model.InsertClipRequest{SourceDuration: 4, TrimStart: &start, Path: "/a.mp4"}, func() string { return "gen-1" })
	if !resp.Applied {
		t.Fatal("insert not applied")
	}
	if len(resp.Timeline.Clips) != 1 || resp.Timeline.Clips[0].ID != "gen-1" {
		t.Fatalf("clips = %+v", resp.Timeline.Clips)
	}
	c := resp.Timeline.Clips[0]
	if c.TrimStart != 1 || c.TrimEnd != 4 {
		t.Errorf("trim = [%v, %v]", c.TrimStart, c.TrimEnd)
	}
	if resp.Timeline.TotalDuration != 3 {
		t.Errorf("total = %v", resp.Timeline.TotalDuration)
	}

	dup := s.Insert("p1", &model.InsertClipRequest{ID: "gen-1", SourceDuration: 2}, nil)
	if dup.Applied {
		t.Error("duplicate id inserted")
	}
}

func TestTimelineService_MutateUnknownProject(t *testing.T) {
	s := NewTimelineService(nil, nil)
	_, err := s.Mutate("missing", func(tl *timeline.Timeline) bool { return tl.Select("x") })
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestTimelineService_Mutate(t *testing.T) {
	s := NewTimelineService(nil, nil)
	s.Set("p1", []model.Clip{
		{ID: "a", OrderIndex: 0, SourceDuration: 2},
		{ID: "b", OrderIndex: 1, SourceDuration: 3},
	})

	resp, err := s.Mutate("p1", func(tl *timeline.Timeline) bool { return tl.MoveTo("b", 0) })
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Applied || resp.Timeline.Clips[0].ID != "b" || resp.Timeline.Clips[0].OrderIndex != 0 {
		t.Errorf("resp = %+v", resp)
	}

	resp, _ = s.Mutate("p1", func(tl *timeline.Timeline) bool { return tl.Trim("a", 1.5, 1.0) })
	if resp.Applied {
		t.Error("invalid trim applied")
	}
}

func TestTimelineService_Assemble(t *testing.T) {
	asm := &fakeAssembler{}
	s := NewTimelineService(asm, nil)

	if _, err := s.Assemble(context.Background(), "p1"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("unknown project err = %v", err)
	}

	s.Set("p1", []model.Clip{{ID: "placeholder"}})
	if _, err := s.Assemble(context.Background(), "p1"); !errors.Is(err, ErrNothingToAssemble) {
		t.Errorf("empty timeline err = %v", err)
	}

	s.Set("p1", []model.Clip{
		{ID: "a", OrderIndex: 0, SourceDuration: 5, TrimStart: 1, TrimEnd: 4, Path: "/a.mp4"},
		{ID: "b", OrderIndex: 1, SourceDuration: 2, Path: "/b.mp4"},
	})
	resp, err := s.Assemble(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if resp.VideoURL != "https://cdn/final.mp4" || asm.projectID != "p1" {
		t.Errorf("resp = %+v", resp)
	}
	want := []model.AssemblyClip{{Path: "/a.mp4", Start: 1, End: 4}, {Path: "/b.mp4", Start: 0, End: 2}}
	if len(asm.clips) != len(want) {
		t.Fatalf("clips = %+v", asm.clips)
	}
	for i := range want {
		if asm.clips[i] != want[i] {
			t.Errorf("clip %d = %+v, want %+v", i, asm.clips[i], want[i])
		}
	}

	asm.err = errors.New("boom")
	if _, err := s.Assemble(context.Background(), "p1"); !errors.Is(err, asm.err) {
		t.Errorf("err = %v", err)
	}
}

func TestTimelineService_Delete(t *testing.T) {
	s := NewTimelineService(nil, nil)
	s.Timeline("p1")
	if !s.Delete("p1") {
		t.Error("Delete returned false")
	}
	if s.Delete("p1") {
		t.Error("second Delete returned true")
	}
	if _, err := s.Lookup("p1"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("err = %v", err)
	}
}
