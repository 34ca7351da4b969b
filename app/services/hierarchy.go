package services

import (
	"context"
	"fmt"

	"taskboard/app/models"
	"taskboard/app/sizing"
)

// TopLevelAncestor follows parent links from task up to the task with no
// parent. A nil task yields a task with no size, which carries no cap.
func (s *TaskService) TopLevelAncestor(ctx context.Context, task *models.Task) (*models.Task, error) {
	root, _, err := s.ancestry(ctx, task)
	return root, err
}

// ancestry returns the top-level ancestor of task and the number of parent
// hops to reach it. At most maxDepth hops are followed.
func (s *TaskService) ancestry(ctx context.Context, task *models.Task) (*models.Task, int, error) {
	if task == nil {
		return &models.Task{}, 0, nil
	}
	cur := task
	hops := 0
	for ; !cur.IsTopLevel(); hops++ {
		if hops >= s.maxDepth {
			return nil, hops, fmt.Errorf("%w: stopped after %d levels at %s", ErrHierarchyTooDeep, hops, cur.ID)
		}
		parent, err := s.store.Get(ctx, *cur.ParentID)
		if err != nil {
			return nil, hops, fmt.Errorf("services: load parent of %s: %w", cur.ID, err)
		}
		cur = parent
	}
	return cur, hops, nil
}

// Descendants returns every task below taskID, breadth first. It fails only
// when a task sits more than maxDepth levels below taskID.
func (s *TaskService) Descendants(ctx context.Context, taskID string) ([]models.Task, error) {
	var out []models.Task
	frontier := []string{taskID}
	for depth := 0; len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			children, err := s.store.Children(ctx, id)
			if err != nil {
				return nil, err
			}
			if len(children) > 0 && depth >= s.maxDepth {
				return nil, fmt.Errorf("%w: below %s", ErrHierarchyTooDeep, taskID)
			}
			for _, c := range children {
				out = append(out, c)
				next = append(next, c.ID)
			}
		}
		frontier = next
	}
	return out, nil
}

// SizingSummary describes the size budget of a top-level task.
type SizingSummary struct {
	TaskID              string `json:"task_id"`
	Size                string `json:"size,omitempty"`
	MaxStoryPoints      *int   `json:"max_story_points"`
	AllowedStoryPoints  []int  `json:"allowed_story_points"`
	SubtaskCount        int    `json:"subtask_count"`
	EstimatedSubtasks   int    `json:"estimated_subtasks"`
	TotalStoryPoints    int    `json:"total_story_points"`
	InitialStoryPoints  int    `json:"initial_story_points"`
	ReestimatedSubtasks int    `json:"reestimated_subtasks"`
}

// SizingSummary reports the size and point totals of the top-level task that
// owns taskID. MaxStoryPoints is the exclusive cap, nil when unsized.
func (s *TaskService) SizingSummary(ctx context.Context, taskID string) (*SizingSummary, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	root, err := s.TopLevelAncestor(ctx, task)
	if err != nil {
		return nil, err
	}
	descendants, err := s.Descendants(ctx, root.ID)
	if err != nil {
		return nil, err
	}

	out := &SizingSummary{
		TaskID:             root.ID,
		Size:               root.SizeValue(),
		AllowedStoryPoints: sizing.AllowedPointsForSize(root.SizeValue()),
		SubtaskCount:       len(descendants),
	}
	if limit, ok := sizing.MaxStoryPointsForSize(root.SizeValue()); ok {
		out.MaxStoryPoints = &limit
	}
	for _, d := range descendants {
		if d.CurrentStoryPoints != nil {
			out.EstimatedSubtasks++
			out.TotalStoryPoints += *d.CurrentStoryPoints
		}
		if d.InitialStoryPoints != nil {
			out.InitialStoryPoints += *d.InitialStoryPoints
		}
		if d.StoryPointsChangeCount > 0 {
			out.ReestimatedSubtasks++
		}
	}
	return out, nil
}
