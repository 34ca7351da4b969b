// Package pgstore persists tasks in a Postgres table with a self-referencing
// parent_id foreign key.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskboard/app/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS tasks (
    id                        TEXT PRIMARY KEY,
    title                     TEXT NOT NULL,
    description               TEXT NOT NULL DEFAULT '',
    completed                 BOOLEAN NOT NULL DEFAULT FALSE,
    parent_id                 TEXT REFERENCES tasks(id) ON DELETE CASCADE,
    size                      TEXT,
    current_story_points      INTEGER,
    initial_story_points      INTEGER,
    story_points_change_count INTEGER NOT NULL DEFAULT 0,
    created_at                TIMESTAMPTZ NOT NULL,
    updated_at                TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS tasks_parent_id_idx ON tasks(parent_id)`,
}

const selectTask = `SELECT id, title, description, completed, parent_id, size,
    current_story_points, initial_story_points, story_points_change_count, created_at, updated_at
FROM tasks`

// Store handles task persistence in Postgres.
type Store struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open connects and pings the database.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return &Store{Pool: pool, log: log}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.Pool.Close() }

// EnsureSchema creates the tasks table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgstore: ensure schema: %w", err)
		}
	}
	s.log.Info().Msg("tasks schema ready")
	return nil
}

// List returns every task, oldest first.
func (s *Store) List(ctx context.Context) ([]models.Task, error) {
	return s.query(ctx, selectTask+` ORDER BY created_at, id`)
}

// Children returns the direct subtasks of parentID.
func (s *Store) Children(ctx context.Context, parentID string) ([]models.Task, error) {
	return s.query(ctx, selectTask+` WHERE parent_id = $1 ORDER BY created_at, id`, parentID)
}

// Get returns a single task by ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Task, error) {
	row := s.Pool.QueryRow(ctx, selectTask+` WHERE id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Create inserts a new task.
func (s *Store) Create(ctx context.Context, task *models.Task) error {
	const q = `INSERT INTO tasks(id, title, description, completed, parent_id, size,
            current_story_points, initial_story_points, story_points_change_count, created_at, updated_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := s.Pool.Exec(ctx, q,
		task.ID, task.Title, task.Description, task.Completed, task.ParentID, task.Size,
		task.CurrentStoryPoints, task.InitialStoryPoints, task.StoryPointsChangeCount, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: insert task %s: %w", task.ID, err)
	}
	return nil
}

// Update writes every mutable column. parent_id is fixed at creation.
func (s *Store) Update(ctx context.Context, task *models.Task) error {
	const q = `UPDATE tasks SET title=$2, description=$3, completed=$4, size=$5,
            current_story_points=$6, initial_story_points=$7, story_points_change_count=$8, updated_at=$9
        WHERE id=$1`
	tag, err := s.Pool.Exec(ctx, q,
		task.ID, task.Title, task.Description, task.Completed, task.Size,
		task.CurrentStoryPoints, task.InitialStoryPoints, task.StoryPointsChangeCount, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: update task %s: %w", task.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrTaskNotFound
	}
	return nil
}

// Delete removes the task; the foreign key cascades to its descendants.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgstore: delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrTaskNotFound
	}
	return nil
}

// WithAdvisoryLock runs fn while holding the session advisory lock key. Lock
// and unlock run on the same pooled connection. ran is false when another
// session holds the lock.
func (s *Store) WithAdvisoryLock(ctx context.Context, key int64, fn func(ctx context.Context) error) (ran bool, err error) {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("pgstore: acquire: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&locked); err != nil {
		return false, fmt.Errorf("pgstore: advisory lock: %w", err)
	}
	if !locked {
		return false, nil
	}
	defer func() {
		var unlocked bool
		uerr := conn.QueryRow(context.Background(), "SELECT pg_advisory_unlock($1)", key).Scan(&unlocked)
		if uerr == nil && !unlocked {
			uerr = errors.New("advisory unlock returned false")
		}
		if uerr != nil {
			s.log.Error().Err(uerr).Int64("key", key).Msg("advisory unlock failed; dropping connection")
			// A closed conn is destroyed on Release, which frees the session lock.
			_ = conn.Conn().Close(context.Background())
			err = errors.Join(err, fmt.Errorf("pgstore: advisory unlock: %w", uerr))
		}
	}()
	return true, fn(ctx)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]models.Task, error) {
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func scanTask(row pgx.Row) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.ParentID, &t.Size,
		&t.CurrentStoryPoints, &t.InitialStoryPoints, &t.StoryPointsChangeCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
