package neo4jstore

import (
	"testing"
	"time"

	"taskboard/app/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func TestTaskParamsOmitsNilFields(t *testing.T) {
	params := taskParams(&models.Task{ID: "a", Title: "A"})
	props := params["props"].(map[string]any)
	for _, key := range []string{"size", "current_story_points", "initial_story_points"} {
		if _, ok := props[key]; ok {
			t.Fatalf("expected %s to be omitted, got %v", key, props[key])
		}
	}
	if params["id"] != "a" || props["title"] != "A" {
		t.Fatalf("unexpected params: %v", params)
	}
}

func TestTaskParamsConvertsPoints(t *testing.T) {
	size, pts := "m", 3
	props := taskParams(&models.Task{ID: "a", Size: &size, CurrentStoryPoints: &pts, StoryPointsChangeCount: 2})["props"].(map[string]any)
	if props["current_story_points"] != int64(3) || props["story_points_change_count"] != int64(2) || props["size"] != "m" {
		t.Fatalf("unexpected props: %v", props)
	}
}

func TestRecordToTask(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := &neo4j.Record{
		Keys: []string{"id", "title", "description", "completed", "parent_id", "size",
			"current_story_points", "initial_story_points", "story_points_change_count", "created_at", "updated_at"},
		Values: []any{"c1", "Child", "", true, "root", nil, int64(5), int64(3), int64(1), created, created},
	}
	task, err := recordToTask(record)
	if err != nil {
		t.Fatalf("recordToTask returned error: %v", err)
	}
	if task.ID != "c1" || !task.Completed || task.ParentID == nil || *task.ParentID != "root" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Size != nil {
		t.Fatalf("expected nil size")
	}
	if *task.CurrentStoryPoints != 5 || *task.InitialStoryPoints != 3 || task.StoryPointsChangeCount != 1 {
		t.Fatalf("unexpected points: %+v", task)
	}
	if !task.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created_at: %v", task.CreatedAt)
	}
}

func TestRecordToTaskRequiresID(t *testing.T) {
	if _, err := recordToTask(&neo4j.Record{Keys: []string{"id"}, Values: []any{nil}}); err == nil {
		t.Fatalf("expected error for missing id")
	}
}
