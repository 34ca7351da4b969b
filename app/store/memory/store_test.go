package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskboard/app/models"
)

func strPtr(s string) *string { return &s }

func TestCreateGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	task := &models.Task{ID: "a", Title: "A", Size: strPtr("m")}
	if err := s.Create(ctx, task); err != nil {
		t.Fatal(err)
	}
	*task.Size = "xl"

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.SizeValue() != "m" {
		t.Fatalf("store must not alias caller pointers, got size %q", got.SizeValue())
	}
	got.Title = "changed"
	again, _ := s.Get(ctx, "a")
	if again.Title != "A" {
		t.Fatalf("Get must return a copy")
	}
}

func TestCreateRejectsUnknownParentAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Create(ctx, &models.Task{ID: "c", ParentID: strPtr("missing")}); !errors.Is(err, models.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := s.Create(ctx, &models.Task{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, &models.Task{ID: "a"}); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestChildrenOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = s.Create(ctx, &models.Task{ID: "root", CreatedAt: base})
	_ = s.Create(ctx, &models.Task{ID: "z", ParentID: strPtr("root"), CreatedAt: base.Add(time.Minute)})
	_ = s.Create(ctx, &models.Task{ID: "y", ParentID: strPtr("root"), CreatedAt: base.Add(2 * time.Minute)})

	kids, err := s.Children(ctx, "root")
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 2 || kids[0].ID != "z" || kids[1].ID != "y" {
		t.Fatalf("unexpected children order: %+v", kids)
	}
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Create(ctx, &models.Task{ID: "root"})
	_ = s.Create(ctx, &models.Task{ID: "child", ParentID: strPtr("root")})
	_ = s.Create(ctx, &models.Task{ID: "grandchild", ParentID: strPtr("child")})
	_ = s.Create(ctx, &models.Task{ID: "other"})

	if err := s.Delete(ctx, "root"); err != nil {
		t.Fatal(err)
	}
	all, _ := s.List(ctx)
	if len(all) != 1 || all[0].ID != "other" {
		t.Fatalf("expected only 'other' to remain, got %+v", all)
	}
	if err := s.Delete(ctx, "root"); !errors.Is(err, models.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestUpdateMissing(t *testing.T) {
	if err := New().Update(context.Background(), &models.Task{ID: "x"}); !errors.Is(err, models.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}
