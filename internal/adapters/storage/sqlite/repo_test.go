package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "tavla.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestRepository_TaskLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	member, err := domain.NewTeamMember("m1", "Ada", "", "ada@example.com", domain.RoleLead)
	if err != nil {
		t.Fatalf("NewTeamMember() error = %v", err)
	}
	if err := repo.CreateTeamMember(ctx, member); err != nil {
		t.Fatalf("CreateTeamMember() error = %v", err)
	}

	due := now.Add(24 * time.Hour)
	task, err := domain.NewTask(domain.TaskInput{
		ID:          "t1",
		Title:       "Task title",
		Description: "Task details",
		Priority:    domain.PriorityHigh,
		ProjectTag:  "docs",
		DueAt:       &due,
		Assignee:    member,
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	created, err := repo.CreateTask(ctx, task)
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if created.ID == 0 || created.Operation != domain.ChangeOperationCreate {
		t.Fatalf("unexpected create event %#v", created)
	}

	loaded, err := repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if loaded.Title != "Task title" || loaded.Priority != domain.PriorityHigh || loaded.ProjectTag != "docs" {
		t.Fatalf("unexpected loaded task %#v", loaded)
	}
	if loaded.Assignee != member {
		t.Fatalf("expected assignee stored by value, got %#v", loaded.Assignee)
	}
	if loaded.DueAt == nil || !loaded.DueAt.Equal(due) {
		t.Fatalf("unexpected due date %v", loaded.DueAt)
	}

	if err := loaded.SetStatus(domain.StatusInProgress, now.Add(time.Hour)); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	loaded.UpdatedBy = "m1"
	moved, err := repo.UpdateTask(ctx, loaded)
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if moved.Operation != domain.ChangeOperationMove || moved.Metadata["to_status"] != "in_progress" || moved.ActorID != "m1" {
		t.Fatalf("unexpected move event %#v", moved)
	}

	loaded.ClearAssignee(now.Add(2 * time.Hour))
	assigned, err := repo.UpdateTask(ctx, loaded)
	if err != nil {
		t.Fatalf("UpdateTask() assign error = %v", err)
	}
	if assigned.Operation != domain.ChangeOperationAssign {
		t.Fatalf("expected assign event, got %#v", assigned)
	}

	tasks, err := repo.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != domain.StatusInProgress || !tasks[0].Assignee.Unassigned() {
		t.Fatalf("unexpected task list %#v", tasks)
	}

	events, err := repo.ListChangeEvents(ctx, task.ID, 10)
	if err != nil {
		t.Fatalf("ListChangeEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Operation != domain.ChangeOperationAssign || events[2].Operation != domain.ChangeOperationCreate {
		t.Fatalf("expected newest-first ordering, got %#v", events)
	}

	limited, err := repo.ListChangeEvents(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListChangeEvents(all) error = %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit 1, got %d", len(limited))
	}
}

func TestRepository_TeamMembers(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	for _, m := range []domain.TeamMember{
		{ID: "m2", Name: "Bo", Role: domain.RoleMember},
		{ID: "m1", Name: "Ada", Role: domain.RoleAdmin},
	} {
		if err := repo.CreateTeamMember(ctx, m); err != nil {
			t.Fatalf("CreateTeamMember() error = %v", err)
		}
	}
	members, err := repo.ListTeamMembers(ctx)
	if err != nil {
		t.Fatalf("ListTeamMembers() error = %v", err)
	}
	if len(members) != 2 || members[0].Name != "Ada" {
		t.Fatalf("expected name-ordered members, got %#v", members)
	}

	if err := repo.UpdateTeamMember(ctx, domain.TeamMember{ID: "m2", Name: "Bo B.", Role: domain.RoleViewer}); err != nil {
		t.Fatalf("UpdateTeamMember() error = %v", err)
	}
	updated, err := repo.GetTeamMember(ctx, "m2")
	if err != nil {
		t.Fatalf("GetTeamMember() error = %v", err)
	}
	if updated.Name != "Bo B." || updated.Role != domain.RoleViewer {
		t.Fatalf("unexpected updated member %#v", updated)
	}
}

func TestRepository_NotFoundCases(t *testing.T) {
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	ctx := context.Background()
	if _, err := repo.GetTask(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected app.ErrNotFound for task, got %v", err)
	}
	if _, err := repo.GetTeamMember(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected app.ErrNotFound for member, got %v", err)
	}
	if err := repo.UpdateTeamMember(ctx, domain.TeamMember{ID: "missing", Name: "x"}); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected app.ErrNotFound for member update, got %v", err)
	}
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if _, err := repo.UpdateTask(ctx, domain.Task{ID: "missing", Title: "x", Status: domain.StatusNotStarted, CreatedAt: now, UpdatedAt: now}); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected app.ErrNotFound for task update, got %v", err)
	}
}

func TestRepository_ServiceIntegration(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	ids := []string{"t1", "t2"}
	svc := app.NewService(repo, func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}, func() time.Time {
		return time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	}, app.ServiceConfig{})

	task, err := svc.CreateTask(ctx, app.CreateTaskInput{Title: "Write docs"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if _, changed, err := svc.MoveTask(ctx, task.ID, "Completed"); err != nil || !changed {
		t.Fatalf("MoveTask() changed=%t err=%v", changed, err)
	}
	stored, err := repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if stored.Status != domain.StatusComplete {
		t.Fatalf("expected complete status, got %q", stored.Status)
	}
}
