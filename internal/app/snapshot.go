package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "tavla.snapshot.v1"

// Snapshot represents snapshot data used by this package.
type Snapshot struct {
	Version    string           `json:"version" yaml:"version"`
	ExportedAt time.Time        `json:"exported_at" yaml:"exported_at"`
	Members    []SnapshotMember `json:"members" yaml:"members"`
	Tasks      []SnapshotTask   `json:"tasks" yaml:"tasks"`
}

// SnapshotMember represents snapshot member data used by this package.
type SnapshotMember struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Avatar string      `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Email  string      `json:"email,omitempty" yaml:"email,omitempty"`
	Role   domain.Role `json:"role" yaml:"role"`
}

// SnapshotTask represents snapshot task data used by this package.
type SnapshotTask struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description" yaml:"description"`
	Priority    domain.Priority `json:"priority" yaml:"priority"`
	ProjectTag  string          `json:"project_tag,omitempty" yaml:"project_tag,omitempty"`
	Status      domain.Status   `json:"status" yaml:"status"`
	DueAt       *time.Time      `json:"due_at,omitempty" yaml:"due_at,omitempty"`
	AssigneeID  string          `json:"assignee_id,omitempty" yaml:"assignee_id,omitempty"`
	CreatedBy   string          `json:"created_by" yaml:"created_by"`
	UpdatedBy   string          `json:"updated_by" yaml:"updated_by"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
}

// ExportSnapshot captures every member and task.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	if err := authorize(ctx, domain.ActionViewBoard, nil); err != nil {
		return Snapshot{}, err
	}
	members, err := s.repo.ListTeamMembers(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Members:    make([]SnapshotMember, 0, len(members)),
		Tasks:      make([]SnapshotTask, 0, len(tasks)),
	}
	known := map[string]struct{}{}
	for _, member := range members {
		snap.Members = append(snap.Members, snapshotMemberFromDomain(member))
		known[member.ID] = struct{}{}
	}
	for _, task := range tasks {
		// Assignees are copied by value, so one may outlive its member row.
		if !task.Assignee.Unassigned() {
			if _, ok := known[task.Assignee.ID]; !ok {
				snap.Members = append(snap.Members, snapshotMemberFromDomain(task.Assignee))
				known[task.Assignee.ID] = struct{}{}
			}
		}
		snap.Tasks = append(snap.Tasks, snapshotTaskFromDomain(task))
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot upserts the members and tasks of snap.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := authorize(ctx, domain.ActionManageMembers, nil); err != nil {
		return err
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	members := make(map[string]domain.TeamMember, len(snap.Members))
	for _, sm := range snap.Members {
		member, err := sm.toDomain()
		if err != nil {
			return err
		}
		if _, err := s.repo.GetTeamMember(ctx, member.ID); err == nil {
			if err := s.repo.UpdateTeamMember(ctx, member); err != nil {
				return err
			}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		} else if err := s.repo.CreateTeamMember(ctx, member); err != nil {
			return err
		}
		members[member.ID] = member
	}

	for _, st := range snap.Tasks {
		task := st.toDomain(members)
		if _, err := s.repo.GetTask(ctx, task.ID); err == nil {
			event, err := s.repo.UpdateTask(ctx, task)
			if err != nil {
				return err
			}
			s.broker.Publish(event)
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		event, err := s.repo.CreateTask(ctx, task)
		if err != nil {
			return err
		}
		s.broker.Publish(event)
	}
	return nil
}

// Validate checks the snapshot version and references before import.
func (s *Snapshot) Validate() error {
	if strings.TrimSpace(s.Version) != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}
	members := map[string]struct{}{}
	for idx, m := range s.Members {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return fmt.Errorf("%w: members[%d].id is required", ErrInvalidSnapshot, idx)
		}
		if _, dup := members[id]; dup {
			return fmt.Errorf("%w: duplicate member id %q", ErrInvalidSnapshot, id)
		}
		members[id] = struct{}{}
	}
	tasks := map[string]struct{}{}
	for idx, t := range s.Tasks {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return fmt.Errorf("%w: tasks[%d].id is required", ErrInvalidSnapshot, idx)
		}
		if _, dup := tasks[id]; dup {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidSnapshot, id)
		}
		tasks[id] = struct{}{}
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("%w: tasks[%d].title is required", ErrInvalidSnapshot, idx)
		}
		if !t.Status.Valid() {
			return fmt.Errorf("%w: tasks[%d].status %q", ErrInvalidSnapshot, idx, t.Status)
		}
		if _, err := domain.ParsePriority(string(t.Priority)); err != nil {
			return fmt.Errorf("%w: tasks[%d].priority %q", ErrInvalidSnapshot, idx, t.Priority)
		}
		if t.AssigneeID != "" {
			if _, ok := members[t.AssigneeID]; !ok {
				return fmt.Errorf("%w: tasks[%d].assignee_id %q has no member", ErrInvalidSnapshot, idx, t.AssigneeID)
			}
		}
		if !t.CreatedAt.IsZero() && t.UpdatedAt.Before(t.CreatedAt) {
			return fmt.Errorf("%w: tasks[%d].updated_at precedes created_at", ErrInvalidSnapshot, idx)
		}
	}
	return nil
}

func (s *Snapshot) sort() {
	sort.Slice(s.Members, func(i, j int) bool {
		return s.Members[i].ID < s.Members[j].ID
	})
	sort.Slice(s.Tasks, func(i, j int) bool {
		if s.Tasks[i].CreatedAt.Equal(s.Tasks[j].CreatedAt) {
			return s.Tasks[i].ID < s.Tasks[j].ID
		}
		return s.Tasks[i].CreatedAt.Before(s.Tasks[j].CreatedAt)
	})
}

func snapshotMemberFromDomain(m domain.TeamMember) SnapshotMember {
	return SnapshotMember{ID: m.ID, Name: m.Name, Avatar: m.Avatar, Email: m.Email, Role: m.Role}
}

func snapshotTaskFromDomain(t domain.Task) SnapshotTask {
	return SnapshotTask{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		ProjectTag:  t.ProjectTag,
		Status:      t.Status,
		DueAt:       copyTimePtr(t.DueAt),
		AssigneeID:  t.Assignee.ID,
		CreatedBy:   t.CreatedBy,
		UpdatedBy:   t.UpdatedBy,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (m SnapshotMember) toDomain() (domain.TeamMember, error) {
	member, err := domain.NewTeamMember(m.ID, m.Name, m.Avatar, m.Email, m.Role)
	if err != nil {
		return domain.TeamMember{}, fmt.Errorf("%w: member %q: %v", ErrInvalidSnapshot, m.ID, err)
	}
	return member, nil
}

func (t SnapshotTask) toDomain(members map[string]domain.TeamMember) domain.Task {
	priority, _ := domain.ParsePriority(string(t.Priority))
	createdBy := strings.TrimSpace(t.CreatedBy)
	if createdBy == "" {
		createdBy = domain.LocalActorID
	}
	updatedBy := strings.TrimSpace(t.UpdatedBy)
	if updatedBy == "" {
		updatedBy = createdBy
	}
	createdAt := t.CreatedAt.UTC()
	updatedAt := t.UpdatedAt.UTC()
	if updatedAt.Before(createdAt) {
		updatedAt = createdAt
	}
	return domain.Task{
		ID:          strings.TrimSpace(t.ID),
		Title:       strings.TrimSpace(t.Title),
		Description: strings.TrimSpace(t.Description),
		Priority:    priority,
		ProjectTag:  strings.TrimSpace(t.ProjectTag),
		Status:      t.Status,
		DueAt:       copyTimePtr(t.DueAt),
		Assignee:    members[t.AssigneeID],
		CreatedBy:   createdBy,
		UpdatedBy:   updatedBy,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	out := in.UTC()
	return &out
}
