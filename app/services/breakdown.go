package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskboard/app/ai"
	"taskboard/app/models"
	"taskboard/app/sizing"
)

var (
	ErrAIUnavailable     = errors.New("ai provider not configured")
	ErrBreakdownRejected = errors.New("breakdown rejected")
)

// BreakdownError lists every rule a proposed breakdown broke.
type BreakdownError struct {
	Violations []string
}

func (e *BreakdownError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBreakdownRejected, strings.Join(e.Violations, "; "))
}

func (e *BreakdownError) Unwrap() error { return ErrBreakdownRejected }

// BreakdownResult is a breakdown checked against the owning top-level size.
type BreakdownResult struct {
	TaskID         string       `json:"task_id"`
	RootID         string       `json:"root_id"`
	Size           string       `json:"size,omitempty"`
	MaxStoryPoints *int         `json:"max_story_points"`
	Subtasks       []ai.Subtask `json:"subtasks"`
	Notes          string       `json:"notes,omitempty"`
	Violations     []string     `json:"violations,omitempty"`
}

// SuggestBreakdown asks the AI provider to split a task. When any suggested
// subtask breaks the sizing rules the result is still returned, together with
// a *BreakdownError.
func (s *TaskService) SuggestBreakdown(ctx context.Context, taskID string) (*BreakdownResult, error) {
	if s.ai == nil {
		return nil, ErrAIUnavailable
	}
	task, root, err := s.taskAndRoot(ctx, taskID)
	if err != nil {
		return nil, err
	}
	children, err := s.store.Children(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	existing := make([]string, 0, len(children))
	for _, c := range children {
		existing = append(existing, c.Title)
	}

	raw, err := s.ai.Breakdown(ctx, ai.BreakdownRequest{
		Title:            task.Title,
		Description:      task.Description,
		Size:             root.SizeValue(),
		AllowedPoints:    sizing.AllowedPointsForSize(root.SizeValue()),
		ExistingSubtasks: existing,
	})
	if err != nil {
		return nil, fmt.Errorf("services: ai breakdown for %s: %w", task.ID, err)
	}
	bd, err := ai.ParseBreakdown(raw)
	if err != nil {
		return nil, err
	}

	res := newBreakdownResult(task, root)
	res.Subtasks = bd.Subtasks
	res.Notes = bd.Notes
	if violations := validateSubtasks(root.SizeValue(), bd.Subtasks); len(violations) > 0 {
		res.Violations = violations
		s.log.Warn().Str("task", task.ID).Strs("violations", violations).Msg("ai breakdown rejected")
		return res, &BreakdownError{Violations: violations}
	}
	return res, nil
}

// AcceptBreakdown re-validates subtasks and creates them under taskID.
// Nothing is written when any subtask breaks the rules.
func (s *TaskService) AcceptBreakdown(ctx context.Context, taskID string, subtasks []ai.Subtask) ([]models.Task, error) {
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("%w: no subtasks to accept", ErrInvalidInput)
	}
	task, root, err := s.taskAndRoot(ctx, taskID)
	if err != nil {
		return nil, err
	}
	for i, st := range subtasks {
		if strings.TrimSpace(st.Title) == "" {
			return nil, fmt.Errorf("%w: subtask %d has no title", ErrInvalidInput, i+1)
		}
	}
	if violations := validateSubtasks(root.SizeValue(), subtasks); len(violations) > 0 {
		return nil, &BreakdownError{Violations: violations}
	}

	created := make([]models.Task, 0, len(subtasks))
	for _, st := range subtasks {
		now := s.now()
		parentID := task.ID
		child := &models.Task{
			ID:          newID(),
			Title:       strings.TrimSpace(st.Title),
			Description: strings.TrimSpace(st.Description),
			ParentID:    &parentID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := sizing.SetStoryPoints(child, st.StoryPoints); err != nil {
			return created, err
		}
		if err := s.store.Create(ctx, child); err != nil {
			return created, fmt.Errorf("services: create subtask %q: %w", child.Title, err)
		}
		created = append(created, *child)
	}
	s.log.Info().Str("task", task.ID).Int("subtasks", len(created)).Msg("breakdown accepted")
	return created, nil
}

func (s *TaskService) taskAndRoot(ctx context.Context, taskID string) (*models.Task, *models.Task, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	root, err := s.TopLevelAncestor(ctx, task)
	if err != nil {
		return nil, nil, err
	}
	return task, root, nil
}

func newBreakdownResult(task, root *models.Task) *BreakdownResult {
	res := &BreakdownResult{TaskID: task.ID, RootID: root.ID, Size: root.SizeValue()}
	if limit, ok := sizing.MaxStoryPointsForSize(root.SizeValue()); ok {
		res.MaxStoryPoints = &limit
	}
	return res
}

func validateSubtasks(size string, subtasks []ai.Subtask) []string {
	estimates := make([]sizing.Estimate, 0, len(subtasks))
	for _, st := range subtasks {
		estimates = append(estimates, sizing.Estimate{Title: st.Title, StoryPoints: st.StoryPoints})
	}
	return sizing.ValidateBreakdown(size, estimates)
}
