// Package neo4jstore persists tasks as (:Task) nodes linked child-to-parent
// with [:HAS_PARENT] relationships.
package neo4jstore

import (
	"context"
	"fmt"
	"time"

	"taskboard/app/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const returnTask = "RETURN t.id AS id, t.title AS title, t.description AS description, t.completed AS completed, " +
	"p.id AS parent_id, t.size AS size, t.current_story_points AS current_story_points, " +
	"t.initial_story_points AS initial_story_points, t.story_points_change_count AS story_points_change_count, " +
	"t.created_at AS created_at, t.updated_at AS updated_at"

// Store handles task persistence in Neo4j.
type Store struct {
	driver neo4j.DriverWithContext
}

// New creates a Store over an open driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{driver: driver}
}

// EnsureSchema creates the uniqueness constraint on task IDs.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, err := session.Run(ctx, "CREATE CONSTRAINT task_id IF NOT EXISTS FOR (t:Task) REQUIRE t.id IS UNIQUE", nil)
	if err != nil {
		return fmt.Errorf("neo4jstore: ensure schema: %w", err)
	}
	return nil
}

// List retrieves all tasks from the database.
func (s *Store) List(ctx context.Context) ([]models.Task, error) {
	return s.readMany(ctx,
		"MATCH (t:Task) "+
			"OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Task) "+
			returnTask+" ORDER BY t.created_at, t.id",
		nil,
	)
}

// Children retrieves the direct subtasks of parentID.
func (s *Store) Children(ctx context.Context, parentID string) ([]models.Task, error) {
	return s.readMany(ctx,
		"MATCH (t:Task)-[:HAS_PARENT]->(p:Task {id: $parentID}) "+
			returnTask+" ORDER BY t.created_at, t.id",
		map[string]any{"parentID": parentID},
	)
}

// Get retrieves a single task by its ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Task, error) {
	tasks, err := s.readMany(ctx,
		"MATCH (t:Task {id: $id}) "+
			"OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Task) "+
			returnTask,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, models.ErrTaskNotFound
	}
	return &tasks[0], nil
}

// Create adds a new task and, if it has one, the link to its parent in a
// single transaction.
func (s *Store) Create(ctx context.Context, task *models.Task) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := taskParams(task)
		if task.ParentID == nil {
			_, err := tx.Run(ctx, "CREATE (t:Task) SET t = $props", params)
			return nil, err
		}
		params["parentID"] = *task.ParentID
		res, err := tx.Run(ctx,
			"MATCH (parent:Task {id: $parentID}) "+
				"CREATE (t:Task)-[:HAS_PARENT]->(parent) SET t = $props "+
				"RETURN t.id",
			params,
		)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("neo4jstore: parent %s: %w", *task.ParentID, models.ErrTaskNotFound)
		}
		return nil, nil
	})
	return err
}

// Update overwrites the stored properties of an existing task.
func (s *Store) Update(ctx context.Context, task *models.Task) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (t:Task {id: $id}) SET t = $props RETURN t.id",
			taskParams(task),
		)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, models.ErrTaskNotFound
		}
		return nil, nil
	})
	return err
}

// Delete deletes a task, every task below it, and their relationships.
func (s *Store) Delete(ctx context.Context, id string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			"MATCH (t:Task {id: $id}) "+
				"OPTIONAL MATCH (d:Task)-[:HAS_PARENT*1..]->(t) "+
				"DETACH DELETE d, t",
			map[string]any{"id": id},
		)
		return nil, err
	})
	return err
}

func (s *Store) readMany(ctx context.Context, cypher string, params map[string]any) ([]models.Task, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		var tasks []models.Task
		for res.Next(ctx) {
			task, err := recordToTask(res.Record())
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Task), nil
}

// taskParams builds the $props map. Nil fields are omitted so SET t = $props
// removes them from the node.
func taskParams(task *models.Task) map[string]any {
	props := map[string]any{
		"id":                        task.ID,
		"title":                     task.Title,
		"description":               task.Description,
		"completed":                 task.Completed,
		"story_points_change_count": int64(task.StoryPointsChangeCount),
		"created_at":                task.CreatedAt,
		"updated_at":                task.UpdatedAt,
	}
	if task.Size != nil {
		props["size"] = *task.Size
	}
	if task.CurrentStoryPoints != nil {
		props["current_story_points"] = int64(*task.CurrentStoryPoints)
	}
	if task.InitialStoryPoints != nil {
		props["initial_story_points"] = int64(*task.InitialStoryPoints)
	}
	return map[string]any{"id": task.ID, "props": props}
}

func recordToTask(record *neo4j.Record) (models.Task, error) {
	var task models.Task
	id, _ := record.Get("id")
	s, ok := id.(string)
	if !ok {
		return task, fmt.Errorf("neo4jstore: task without id: %v", record.Values)
	}
	task.ID = s
	task.Title = stringValue(record, "title")
	task.Description = stringValue(record, "description")
	if v, _ := record.Get("completed"); v != nil {
		task.Completed, _ = v.(bool)
	}
	if v := stringValue(record, "parent_id"); v != "" {
		task.ParentID = &v
	}
	if v := stringValue(record, "size"); v != "" {
		task.Size = &v
	}
	task.CurrentStoryPoints = intPtr(record, "current_story_points")
	task.InitialStoryPoints = intPtr(record, "initial_story_points")
	if n := intPtr(record, "story_points_change_count"); n != nil {
		task.StoryPointsChangeCount = *n
	}
	task.CreatedAt = timeValue(record, "created_at")
	task.UpdatedAt = timeValue(record, "updated_at")
	return task, nil
}

func stringValue(record *neo4j.Record, key string) string {
	v, _ := record.Get(key)
	s, _ := v.(string)
	return s
}

func intPtr(record *neo4j.Record, key string) *int {
	v, _ := record.Get(key)
	n, ok := v.(int64)
	if !ok {
		return nil
	}
	i := int(n)
	return &i
}

func timeValue(record *neo4j.Record, key string) time.Time {
	v, _ := record.Get(key)
	t, _ := v.(time.Time)
	return t.UTC()
}
