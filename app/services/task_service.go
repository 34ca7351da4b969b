package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/app/ai"
	"taskboard/app/models"
	"taskboard/app/sizing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrParentNotFound   = errors.New("parent task not found")
	ErrHierarchyTooDeep = errors.New("task hierarchy too deep")
)

// TaskStore persists tasks. Delete removes the task and all of its descendants.
type TaskStore interface {
	List(ctx context.Context) ([]models.Task, error)
	Get(ctx context.Context, id string) (*models.Task, error)
	Children(ctx context.Context, parentID string) ([]models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
}

// TaskService handles task-related operations.
type TaskService struct {
	store    TaskStore
	ai       ai.Provider
	log      zerolog.Logger
	maxDepth int
	now      func() time.Time
}

// NewTaskService creates a new instance of TaskService. provider may be nil,
// in which case breakdown suggestions return ErrAIUnavailable.
func NewTaskService(store TaskStore, provider ai.Provider, log zerolog.Logger, maxDepth int) *TaskService {
	if maxDepth <= 0 {
		maxDepth = 32
	}
	return &TaskService{
		store:    store,
		ai:       provider,
		log:      log,
		maxDepth: maxDepth,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func newID() string { return uuid.New().String() }

// CreateTaskInput carries the fields accepted when creating a task.
type CreateTaskInput struct {
	Title       string
	Description string
	ParentID    *string
	Size        *string
	StoryPoints *int
}

// UpdateTaskInput carries optional changes. A nil field is left untouched;
// the Clear flags remove a value.
type UpdateTaskInput struct {
	Title            *string
	Description      *string
	Completed        *bool
	Size             *string
	ClearSize        bool
	StoryPoints      *int
	ClearStoryPoints bool
}

// GetTasks retrieves all tasks.
func (s *TaskService) GetTasks(ctx context.Context) ([]models.Task, error) {
	return s.store.List(ctx)
}

// GetTaskByID retrieves a single task by its ID.
func (s *TaskService) GetTaskByID(ctx context.Context, taskID string) (*models.Task, error) {
	return s.store.Get(ctx, taskID)
}

// GetSubtasks returns the direct children of a task.
func (s *TaskService) GetSubtasks(ctx context.Context, taskID string) ([]models.Task, error) {
	if _, err := s.store.Get(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.Children(ctx, taskID)
}

// CreateTask validates the sizing fields against the hierarchy and stores a new task.
func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	now := s.now()
	task := &models.Task{
		ID:          newID(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	root := &models.Task{}
	if in.ParentID != nil && *in.ParentID != "" {
		parent, err := s.store.Get(ctx, *in.ParentID)
		if errors.Is(err, models.ErrTaskNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrParentNotFound, *in.ParentID)
		}
		if err != nil {
			return nil, err
		}
		r, hops, err := s.ancestry(ctx, parent)
		if err != nil {
			return nil, err
		}
		if hops+1 > s.maxDepth {
			return nil, fmt.Errorf("%w: %s is already %d levels deep", ErrHierarchyTooDeep, parent.ID, hops)
		}
		root = r
		parentID := parent.ID
		task.ParentID = &parentID
	}

	if in.Size != nil {
		if err := sizing.SetSize(task, *in.Size); err != nil {
			return nil, err
		}
	}
	if in.StoryPoints != nil {
		if err := sizing.SetStoryPoints(task, *in.StoryPoints); err != nil {
			return nil, err
		}
		if err := sizing.CheckPointsCap(root.SizeValue(), *in.StoryPoints); err != nil {
			return nil, err
		}
	}

	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}
	s.log.Info().Str("task", task.ID).Bool("top_level", task.IsTopLevel()).Msg("task created")
	return task, nil
}

// UpdateTask applies in to an existing task.
//
// Shrinking a top-level size is refused while any descendant holds more
// points than the new size allows.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, in UpdateTaskInput) (*models.Task, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Completed != nil {
		task.Completed = *in.Completed
	}

	switch {
	case in.ClearSize:
		sizing.ClearSize(task)
	case in.Size != nil:
		if err := sizing.SetSize(task, *in.Size); err != nil {
			return nil, err
		}
		if err := s.checkDescendantsFit(ctx, task); err != nil {
			return nil, err
		}
	}

	switch {
	case in.ClearStoryPoints:
		sizing.ClearStoryPoints(task)
	case in.StoryPoints != nil:
		if err := sizing.SetStoryPoints(task, *in.StoryPoints); err != nil {
			return nil, err
		}
		root, err := s.TopLevelAncestor(ctx, task)
		if err != nil {
			return nil, err
		}
		if err := sizing.CheckPointsCap(root.SizeValue(), *in.StoryPoints); err != nil {
			return nil, err
		}
	}

	task.UpdatedAt = s.now()
	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask deletes a task and its subtasks.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.store.Get(ctx, taskID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, taskID); err != nil {
		return err
	}
	s.log.Info().Str("task", taskID).Msg("task deleted")
	return nil
}

func (s *TaskService) checkDescendantsFit(ctx context.Context, root *models.Task) error {
	descendants, err := s.Descendants(ctx, root.ID)
	if err != nil {
		return err
	}
	var estimates []sizing.Estimate
	for _, d := range descendants {
		if d.CurrentStoryPoints != nil {
			estimates = append(estimates, sizing.Estimate{Title: d.Title, StoryPoints: *d.CurrentStoryPoints})
		}
	}
	if violations := sizing.ValidateBreakdown(root.SizeValue(), estimates); len(violations) > 0 {
		return &sizing.ValidationError{Kind: sizing.ErrExceedsCap, Field: "size", Msg: strings.Join(violations, "; ")}
	}
	return nil
}
