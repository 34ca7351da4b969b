package ai

import (
	"errors"
	"strings"
	"testing"
)

func TestParseBreakdownPlainJSON(t *testing.T) {
	raw := `{"subtasks":[{"title":" Schema ","description":"tables","story_points":3},{"title":"API","story_points":2}],"notes":"ok"}`
	bd, err := ParseBreakdown(raw)
	if err != nil {
		t.Fatalf("ParseBreakdown returned error: %v", err)
	}
	if len(bd.Subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(bd.Subtasks))
	}
	if bd.Subtasks[0].Title != "Schema" || bd.Subtasks[0].StoryPoints != 3 {
		t.Fatalf("unexpected first subtask: %+v", bd.Subtasks[0])
	}
	if bd.Notes != "ok" {
		t.Fatalf("unexpected notes: %q", bd.Notes)
	}
}

func TestParseBreakdownStripsFencesAndProse(t *testing.T) {
	raw := "Here is the plan:\n```json\n{\"subtasks\":[{\"title\":\"Only\",\"story_points\":1}]}\n```\nGood luck."
	bd, err := ParseBreakdown(raw)
	if err != nil {
		t.Fatalf("ParseBreakdown returned error: %v", err)
	}
	if len(bd.Subtasks) != 1 || bd.Subtasks[0].Title != "Only" {
		t.Fatalf("unexpected breakdown: %+v", bd)
	}
}

func TestParseBreakdownErrors(t *testing.T) {
	cases := map[string]error{
		"no json here":                                  ErrInvalidResponse,
		`{"subtasks": [}`:                               ErrInvalidResponse,
		`{"subtasks": []}`:                              ErrEmptyBreakdown,
		`{"subtasks": [{"title":"  ","story_points":1}]}`: ErrInvalidResponse,
	}
	for raw, want := range cases {
		if _, err := ParseBreakdown(raw); !errors.Is(err, want) {
			t.Fatalf("%q: expected %v, got %v", raw, want, err)
		}
	}
}

func TestBuildPromptMentionsConstraints(t *testing.T) {
	prompt := BuildPrompt(BreakdownRequest{
		Title:            "Checkout",
		Description:      "Card payments",
		Size:             "m",
		AllowedPoints:    []int{1, 2, 3},
		ExistingSubtasks: []string{"Design"},
	})
	for _, want := range []string{"Task: Checkout", "Card payments", "Top-level size: m", "1, 2, 3", "Design"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
