package scene

import (
	"strings"
	"testing"

	"github.com/clipdeck/api/internal/model"
)

func TestParse_Markers(t *testing.T) {
	got := Parse("[SCENE 1: Intro]\nHello world\n\n[SCENE 2: Outro]\nBye")

	want := []model.Scene{
		{ID: "scene-1", Number: 1, Title: "Intro", Description: "Hello world"},
		{ID: "scene-2", Number: 2, Title: "Outro", Description: "Bye"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d scenes: %+v", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("scene %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParse_MarkerVariants(t *testing.T) {
	script := strings.Join([]string{
		"scene 4: Opening shot",
		"A city at dawn.",
		"Traffic hums.",
		"",
		"Ignored trailing line",
		"[Scene 9:   The Chase  ]",
		"[SCENE 10: Empty]",
	}, "\r\n")

	got := Parse(script)
	if len(got) != 3 {
		t.Fatalf("got %d scenes: %+v", len(got), got)
	}
	if got[0].Title != "Opening shot" || got[0].Description != "A city at dawn. Traffic hums." {
		t.Errorf("scene 1 = %+v", got[0])
	}
	if got[1].Title != "The Chase" || got[1].Description != "The Chase" {
		t.Errorf("scene 2 = %+v", got[1])
	}
	if got[2].Title != "Empty" || got[2].Description != "Empty" {
		t.Errorf("scene 3 = %+v", got[2])
	}
	for i, s := range got {
		if s.Number != i+1 {
			t.Errorf("scene %d numbered %d", i, s.Number)
		}
	}
}

func TestParse_DescriptionSkipsLeadingBlankLines(t *testing.T) {
	got := Parse("[SCENE 1: Title]\n\n\nFirst line\nSecond line\n\nNot included")
	if len(got) != 1 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Description != "First line Second line" {
		t.Errorf("description = %q", got[0].Description)
	}
}

func TestParse_ParagraphFallback(t *testing.T) {
	script := "A lonely lighthouse stands on the cliff.\nWaves crash below.\n\nShort one\n\nThe keeper climbs the spiral stairs at night."

	got := Parse(script)
	if len(got) != 2 {
		t.Fatalf("got %d scenes: %+v", len(got), got)
	}
	if got[0].Number != 1 || got[1].Number != 2 {
		t.Errorf("numbers = %d, %d", got[0].Number, got[1].Number)
	}
	if got[0].Title != "A lonely lighthouse stands on the cliff." || got[0].Description != "Waves crash below." {
		t.Errorf("scene 1 = %+v", got[0])
	}
	if got[1].Description != got[1].Title {
		t.Errorf("single-line paragraph description = %q", got[1].Description)
	}
}

func TestParse_ParagraphFallbackCapsAndTruncates(t *testing.T) {
	long := strings.Repeat("x", 60)
	var paras []string
	for i := 0; i < 12; i++ {
		paras = append(paras, long)
	}

	got := Parse(strings.Join(paras, "\n\n"))
	if len(got) != 10 {
		t.Fatalf("got %d scenes, want 10", len(got))
	}
	if got[0].Title != strings.Repeat("x", 50)+"..." {
		t.Errorf("title = %q", got[0].Title)
	}
	if got[0].Description != long {
		t.Errorf("description = %q", got[0].Description)
	}
}

func TestParse_Empty(t *testing.T) {
	if got := Parse("   \n  "); len(got) != 0 {
		t.Errorf("got %+v", got)
	}
	if got := Parse("too short"); len(got) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestRenumber_KeepsIDs(t *testing.T) {
	got := Renumber([]model.Scene{{ID: "keep", Number: 7}, {Number: 3}})
	if got[0].ID != "keep" || got[0].Number != 1 {
		t.Errorf("scene 0 = %+v", got[0])
	}
	if got[1].ID != "scene-2" || got[1].Number != 2 {
		t.Errorf("scene 1 = %+v", got[1])
	}
}

func TestPromptFor(t *testing.T) {
	tests := []struct {
		scene model.Scene
		want  string
	}{
		{model.Scene{Prompt: "custom", Description: "ignored"}, "custom"},
		{model.Scene{Description: "A red car"}, "Cinematic A red car"},
		{model.Scene{Description: "Wide shot of a valley"}, "Wide shot of a valley"},
		{model.Scene{Description: "cinematic sunset"}, "cinematic sunset"},
		{model.Scene{Title: "Fallback title"}, "Cinematic Fallback title"},
	}
	for _, tt := range tests {
		if got := PromptFor(tt.scene); got != tt.want {
			t.Errorf("PromptFor(%+v) = %q, want %q", tt.scene, got, tt.want)
		}
	}
}
