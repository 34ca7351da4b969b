// Package memory keeps tasks in process memory. It backs tests and
// STORE=memory local runs; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"taskboard/app/models"
)

// Store is a TaskStore over a map.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]models.Task
}

// New returns an empty Store.
func New() *Store {
	return &Store{tasks: map[string]models.Task{}}
}

// List returns every task, oldest first.
func (s *Store) List(ctx context.Context) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, clone(t))
	}
	sortTasks(out)
	return out, nil
}

// Get returns a copy of the task with id.
func (s *Store) Get(ctx context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, models.ErrTaskNotFound
	}
	c := clone(t)
	return &c, nil
}

// Children returns the direct subtasks of parentID.
func (s *Store) Children(ctx context.Context, parentID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, clone(t))
		}
	}
	sortTasks(out)
	return out, nil
}

// Create stores a new task. The parent must already exist.
func (s *Store) Create(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("memory: task %s already exists", task.ID)
	}
	if task.ParentID != nil {
		if _, ok := s.tasks[*task.ParentID]; !ok {
			return fmt.Errorf("memory: parent %s: %w", *task.ParentID, models.ErrTaskNotFound)
		}
	}
	s.tasks[task.ID] = clone(*task)
	return nil
}

// Update replaces a stored task.
func (s *Store) Update(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return models.ErrTaskNotFound
	}
	s.tasks[task.ID] = clone(*task)
	return nil
}

// Delete removes id and everything below it.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return models.ErrTaskNotFound
	}
	doomed := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for tid, t := range s.tasks {
			if !doomed[tid] && t.ParentID != nil && doomed[*t.ParentID] {
				doomed[tid] = true
				changed = true
			}
		}
	}
	for tid := range doomed {
		delete(s.tasks, tid)
	}
	return nil
}

func clone(t models.Task) models.Task {
	t.ParentID = copyPtr(t.ParentID)
	t.Size = copyPtr(t.Size)
	t.CurrentStoryPoints = copyPtr(t.CurrentStoryPoints)
	t.InitialStoryPoints = copyPtr(t.InitialStoryPoints)
	return t
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortTasks(ts []models.Task) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
}
