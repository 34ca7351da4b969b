package services

import (
	"context"
	"fmt"
	"sort"

	"taskboard/app/models"
	"taskboard/app/sizing"
)

// Finding is one task whose stored sizing fields break the rules.
type Finding struct {
	TaskID  string `json:"task_id"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const kindOrphaned = "OrphanedTask"

// AuditSizing scans every task for sizing drift: fields on the wrong kind of
// task, invalid values, and subtask points over the top-level cap. Findings are
// ordered by task ID.
func (s *TaskService) AuditSizing(ctx context.Context) ([]Finding, error) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}

	var findings []Finding
	add := func(t *models.Task, kind error, format string, args ...any) {
		findings = append(findings, Finding{TaskID: t.ID, Title: t.Title, Kind: kind.Error(), Message: fmt.Sprintf(format, args...)})
	}

	for i := range tasks {
		t := &tasks[i]
		if t.Size != nil {
			if _, ok := sizing.MaxStoryPointsForSize(*t.Size); !ok {
				add(t, sizing.ErrInvalidSize, "size %q is not valid", *t.Size)
			}
			if !t.IsTopLevel() {
				add(t, sizing.ErrNotTopLevel, "subtask carries size %q", *t.Size)
			}
		}
		if t.CurrentStoryPoints == nil {
			continue
		}
		points := *t.CurrentStoryPoints
		if t.IsTopLevel() {
			add(t, sizing.ErrTopLevelCannotHavePoints, "top-level task carries %d story points", points)
			continue
		}
		if !sizing.IsFibonacci(points) {
			add(t, sizing.ErrNotFibonacci, "%d is not in the Fibonacci sequence", points)
		}
		root, ok := s.rootIn(byID, t)
		if !ok {
			findings = append(findings, Finding{TaskID: t.ID, Title: t.Title, Kind: kindOrphaned,
				Message: "parent chain is broken or too deep"})
			continue
		}
		if err := sizing.CheckPointsCap(root.SizeValue(), points); err != nil {
			add(t, sizing.ErrExceedsCap, "%d story points under %s task %q, maximum allowed is %d",
				points, root.SizeValue(), root.Title, capOf(root.SizeValue())-1)
		}
	}

	sort.SliceStable(findings, func(i, j int) bool { return findings[i].TaskID < findings[j].TaskID })
	return findings, nil
}

func (s *TaskService) rootIn(byID map[string]*models.Task, t *models.Task) (*models.Task, bool) {
	cur := t
	for depth := 0; !cur.IsTopLevel(); depth++ {
		if depth >= s.maxDepth {
			return nil, false
		}
		parent, ok := byID[*cur.ParentID]
		if !ok {
			return nil, false
		}
		cur = parent
	}
	return cur, true
}

func capOf(size string) int {
	limit, _ := sizing.MaxStoryPointsForSize(size)
	return limit
}
