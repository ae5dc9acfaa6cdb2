// Package scene splits a free-form script into ordered scenes.
package scene

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/clipdeck/api/internal/model"
)

const (
	minParagraphLen = 20
	maxParagraphs   = 10
	maxTitleLen     = 50
)

var (
	markerRe    = regexp.MustCompile(`(?i)\[?\s*SCENE\s+(\d+)\s*:\s*(.+?)\s*\]?\s*$`)
	markerStart = regexp.MustCompile(`(?i)\[?\s*SCENE\s+\d+\s*:`)
	blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)
)

// Parse returns the scenes of script in document order, numbered 1..N.
//
// Lines like "[SCENE 2: Title]" or "Scene 2: Title" start a scene; the
// following non-empty lines up to a blank line or the next marker form its
// description. Without any marker, paragraphs longer than 20 characters
// become scenes, at most 10 of them.
func Parse(script string) []model.Scene {
	script = strings.ReplaceAll(script, "\r\n", "\n")
	if strings.TrimSpace(script) == "" {
		return []model.Scene{}
	}

	scenes := parseMarkers(script)
	if len(scenes) == 0 {
		scenes = parseParagraphs(script)
	}
	return Renumber(scenes)
}

func parseMarkers(script string) []model.Scene {
	lines := strings.Split(script, "\n")
	var scenes []model.Scene

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		m := markerRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		number, _ := strconv.Atoi(m[1])
		title := strings.TrimSpace(strings.TrimSuffix(m[2], "]"))

		var desc []string
		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if markerStart.MatchString(next) {
				break
			}
			if next == "" {
				if len(desc) > 0 {
					break
				}
				continue
			}
			desc = append(desc, next)
		}

		description := strings.Join(desc, " ")
		if description == "" {
			description = title
		}
		scenes = append(scenes, model.Scene{
			Number:      number,
			Title:       title,
			Description: description,
		})
	}
	return scenes
}

func parseParagraphs(script string) []model.Scene {
	var scenes []model.Scene
	for _, para := range blankLineRe.Split(script, -1) {
		para = strings.TrimSpace(para)
		if utf8.RuneCountInString(para) <= minParagraphLen {
			continue
		}
		if len(scenes) == maxParagraphs {
			break
		}

		lines := strings.Split(para, "\n")
		first := strings.TrimSpace(lines[0])

		rest := make([]string, 0, len(lines)-1)
		for _, l := range lines[1:] {
			if l = strings.TrimSpace(l); l != "" {
				rest = append(rest, l)
			}
		}
		description := strings.Join(rest, " ")
		if description == "" {
			description = first
		}

		scenes = append(scenes, model.Scene{
			Title:       truncate(first, maxTitleLen),
			Description: description,
		})
	}
	return scenes
}

// Renumber assigns numbers 1..N in slice order and fills missing ids.
func Renumber(scenes []model.Scene) []model.Scene {
	out := make([]model.Scene, len(scenes))
	for i, s := range scenes {
		s.Number = i + 1
		if s.ID == "" {
			s.ID = fmt.Sprintf("scene-%d", i+1)
		}
		out[i] = s
	}
	return out
}

// PromptFor builds the generation prompt for a scene. An explicit prompt
// wins; otherwise the description is used, prefixed with "Cinematic" unless
// it already reads like a shot description.
func PromptFor(s model.Scene) string {
	if strings.TrimSpace(s.Prompt) != "" {
		return s.Prompt
	}
	desc := s.Description
	if desc == "" {
		desc = s.Title
	}
	lower := strings.ToLower(desc)
	if strings.Contains(lower, "cinematic") || strings.Contains(lower, "shot") {
		return desc
	}
	return "Cinematic " + desc
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
