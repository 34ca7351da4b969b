package models

import (
	"errors"
	"time"
)

// ErrTaskNotFound is returned by stores when no task matches the given ID.
var ErrTaskNotFound = errors.New("task not found")

// Task represents a task with optional parent ID.
//
// A top-level task (ParentID == nil) may carry a Size. A subtask may carry
// story points. The sizing package enforces which fields are allowed.
type Task struct {
	ID                     string    `json:"id"`
	Title                  string    `json:"title"`
	Description            string    `json:"description,omitempty"`
	Completed              bool      `json:"completed"`
	ParentID               *string   `json:"parent_id"`
	Size                   *string   `json:"size"`
	CurrentStoryPoints     *int      `json:"current_story_points"`
	InitialStoryPoints     *int      `json:"initial_story_points"`
	StoryPointsChangeCount int       `json:"story_points_change_count"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// IsTopLevel reports whether the task has no parent.
func (t *Task) IsTopLevel() bool {
	return t.ParentID == nil || *t.ParentID == ""
}

// SizeValue returns the size or "" when unset.
func (t *Task) SizeValue() string {
	if t.Size == nil {
		return ""
	}
	return *t.Size
}
