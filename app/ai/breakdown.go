// Package ai asks a language model to split a task into estimated subtasks
// and parses what comes back.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyBreakdown  = errors.New("ai: breakdown has no subtasks")
	ErrInvalidResponse = errors.New("ai: invalid breakdown response")
)

// BreakdownRequest describes the task to split.
type BreakdownRequest struct {
	Title            string
	Description      string
	Size             string
	AllowedPoints    []int
	ExistingSubtasks []string
}

// Provider returns the raw model output for a breakdown request.
type Provider interface {
	Breakdown(ctx context.Context, req BreakdownRequest) (string, error)
}

// Subtask is one suggested piece of work.
type Subtask struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description,omitempty"`
	StoryPoints int    `json:"story_points"`
}

// Breakdown is the decoded model answer.
type Breakdown struct {
	Subtasks []Subtask `json:"subtasks"`
	Notes    string    `json:"notes,omitempty"`
}

const systemPrompt = "You are an agile delivery lead. Split the given task into small, independently deliverable subtasks " +
	"and estimate each one in Fibonacci story points. Respond with JSON only, shaped as " +
	`{"subtasks":[{"title":"...","description":"...","story_points":3}],"notes":"..."}.`

// BuildPrompt renders the user message for req.
func BuildPrompt(req BreakdownRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", strings.TrimSpace(req.Title))
	if d := strings.TrimSpace(req.Description); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}
	if req.Size != "" {
		fmt.Fprintf(&b, "Top-level size: %s\n", req.Size)
	}
	if len(req.AllowedPoints) > 0 {
		pts := make([]string, 0, len(req.AllowedPoints))
		for _, p := range req.AllowedPoints {
			pts = append(pts, fmt.Sprint(p))
		}
		fmt.Fprintf(&b, "Each subtask must use one of these story point values: %s\n", strings.Join(pts, ", "))
	}
	if len(req.ExistingSubtasks) > 0 {
		fmt.Fprintf(&b, "Already planned (do not repeat): %s\n", strings.Join(req.ExistingSubtasks, "; "))
	}
	return b.String()
}

// ParseBreakdown decodes a model response. Markdown code fences and prose
// around the JSON object are ignored.
func ParseBreakdown(raw string) (*Breakdown, error) {
	body := strings.TrimSpace(raw)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrInvalidResponse)
	}
	body = body[start : end+1]

	var out Breakdown
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(out.Subtasks) == 0 {
		return nil, ErrEmptyBreakdown
	}
	for i := range out.Subtasks {
		out.Subtasks[i].Title = strings.TrimSpace(out.Subtasks[i].Title)
		out.Subtasks[i].Description = strings.TrimSpace(out.Subtasks[i].Description)
		if out.Subtasks[i].Title == "" {
			return nil, fmt.Errorf("%w: subtask %d has no title", ErrInvalidResponse, i+1)
		}
	}
	out.Notes = strings.TrimSpace(out.Notes)
	return &out, nil
}
