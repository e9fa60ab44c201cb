package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Vocabulary   domain.Vocabulary
	StoreOverdue bool
	Broker       *EventBroker
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service represents service data used by this package.
type Service struct {
	repo         Repository
	idGen        IDGenerator
	clock        Clock
	vocab        domain.Vocabulary
	storeOverdue bool
	broker       *EventBroker
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Vocabulary == nil {
		cfg.Vocabulary = domain.DisplayVocabulary
	}
	if cfg.Broker == nil {
		cfg.Broker = NewEventBroker()
	}
	return &Service{
		repo:         repo,
		idGen:        idGen,
		clock:        clock,
		vocab:        cfg.Vocabulary,
		storeOverdue: cfg.StoreOverdue,
		broker:       cfg.Broker,
	}
}

// Vocabulary returns the status vocabulary used to resolve column keys.
func (s *Service) Vocabulary() domain.Vocabulary {
	return s.vocab
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.clock()
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    domain.Priority
	ProjectTag  string
	Status      domain.Status
	DueAt       *time.Time
	AssigneeID  string
}

// UpdateTaskInput holds input values for update task operations. Nil fields keep their current value.
type UpdateTaskInput struct {
	TaskID      string
	Title       *string
	Description *string
	Priority    *domain.Priority
	ProjectTag  *string
	DueAt       *time.Time
	ClearDueAt  bool
}

// CreateTask creates task.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	if err := authorize(ctx, domain.ActionCreateTask, nil); err != nil {
		return domain.Task{}, err
	}

	var assignee domain.TeamMember
	if id := strings.TrimSpace(in.AssigneeID); id != "" {
		member, err := s.repo.GetTeamMember(ctx, id)
		if err != nil {
			return domain.Task{}, fmt.Errorf("assignee %q: %w", id, err)
		}
		if actor, ok := ActorFromContext(ctx); ok && actor.ID != member.ID {
			if err := authorize(ctx, domain.ActionAssignTask, nil); err != nil {
				return domain.Task{}, err
			}
		}
		assignee = member
	}

	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		ProjectTag:  in.ProjectTag,
		Status:      in.Status,
		DueAt:       in.DueAt,
		Assignee:    assignee,
		CreatedBy:   actorID(ctx),
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}

	event, err := s.repo.CreateTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	s.broker.Publish(event)
	return task, nil
}

// UpdateTask updates the details of one task.
func (s *Service) UpdateTask(ctx context.Context, in UpdateTaskInput) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, in.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := authorize(ctx, domain.ActionEditTask, &task); err != nil {
		return domain.Task{}, err
	}

	title, description, priority, projectTag, dueAt := task.Title, task.Description, task.Priority, task.ProjectTag, task.DueAt
	if in.Title != nil {
		title = *in.Title
	}
	if in.Description != nil {
		description = *in.Description
	}
	if in.Priority != nil {
		priority = *in.Priority
	}
	if in.ProjectTag != nil {
		projectTag = *in.ProjectTag
	}
	if in.DueAt != nil {
		dueAt = in.DueAt
	}
	if in.ClearDueAt {
		dueAt = nil
	}
	if err := task.UpdateDetails(title, description, priority, projectTag, dueAt, s.clock()); err != nil {
		return domain.Task{}, err
	}
	return s.save(ctx, task)
}

// AssignTask assigns taskID to memberID. A blank memberID clears the assignee.
func (s *Service) AssignTask(ctx context.Context, taskID, memberID string) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := authorize(ctx, domain.ActionAssignTask, &task); err != nil {
		return domain.Task{}, err
	}

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		task.ClearAssignee(s.clock())
		return s.save(ctx, task)
	}
	member, err := s.repo.GetTeamMember(ctx, memberID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("assignee %q: %w", memberID, err)
	}
	if err := task.Assign(member, s.clock()); err != nil {
		return domain.Task{}, err
	}
	return s.save(ctx, task)
}

// GetTask returns task.
func (s *Service) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	if err := authorize(ctx, domain.ActionViewBoard, nil); err != nil {
		return domain.Task{}, err
	}
	return s.repo.GetTask(ctx, taskID)
}

// ListTasks lists tasks in creation order.
func (s *Service) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if err := authorize(ctx, domain.ActionViewBoard, nil); err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// BoardView derives the grouped board for filter at the service clock.
func (s *Service) BoardView(ctx context.Context, filter board.FilterState) (board.View, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return board.View{}, err
	}
	return board.ComputeView(tasks, filter, s.clock()), nil
}

// MoveTask drops taskID onto columnKey without an interactive drag.
// changed is false when the task already holds the column's status.
func (s *Service) MoveTask(ctx context.Context, taskID, columnKey string) (domain.Task, bool, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, false, err
	}
	if err := authorize(ctx, domain.ActionMoveTask, &task); err != nil {
		return domain.Task{}, false, err
	}
	mutation, changed, err := board.ResolveDrop(task, columnKey, s.vocab, s.clock())
	if err != nil {
		return domain.Task{}, false, err
	}
	if !changed {
		return task, false, nil
	}
	moved, err := s.ApplyStatusMutation(ctx, mutation)
	if err != nil {
		return domain.Task{}, false, err
	}
	return moved, true, nil
}

// ApplyStatusMutation stores the status change requested by a drop.
func (s *Service) ApplyStatusMutation(ctx context.Context, mutation board.Mutation) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, mutation.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := authorize(ctx, domain.ActionMoveTask, &task); err != nil {
		return domain.Task{}, err
	}
	if task.Status == mutation.NewStatus {
		return task, nil
	}
	at := mutation.UpdatedAt
	if at.IsZero() {
		at = s.clock()
	}
	if err := task.SetStatus(mutation.NewStatus, at); err != nil {
		return domain.Task{}, err
	}
	return s.save(ctx, task)
}

// SweepOverdue stores Overdue on every past-due task. It requires ServiceConfig.StoreOverdue.
func (s *Service) SweepOverdue(ctx context.Context) ([]domain.Task, error) {
	if !s.storeOverdue {
		return nil, ErrOverdueSweepDisabled
	}
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	swept := make([]domain.Task, 0)
	for _, task := range tasks {
		if !task.IsOverdue(now) || task.Status == domain.StatusOverdue {
			continue
		}
		if err := task.SetStatus(domain.StatusOverdue, now); err != nil {
			return swept, err
		}
		task.UpdatedBy = domain.SweepActorID
		event, err := s.repo.UpdateTask(ctx, task)
		if err != nil {
			return swept, err
		}
		s.broker.Publish(event)
		swept = append(swept, task)
	}
	return swept, nil
}

// CreateTeamMemberInput holds input values for create team member operations.
type CreateTeamMemberInput struct {
	ID     string
	Name   string
	Avatar string
	Email  string
	Role   domain.Role
}

// CreateTeamMember creates team member.
func (s *Service) CreateTeamMember(ctx context.Context, in CreateTeamMemberInput) (domain.TeamMember, error) {
	if err := authorize(ctx, domain.ActionManageMembers, nil); err != nil {
		return domain.TeamMember{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = s.idGen()
	}
	member, err := domain.NewTeamMember(id, in.Name, in.Avatar, in.Email, in.Role)
	if err != nil {
		return domain.TeamMember{}, err
	}
	if err := s.repo.CreateTeamMember(ctx, member); err != nil {
		return domain.TeamMember{}, err
	}
	return member, nil
}

// EnsureTeamMember returns the stored member with member.ID, creating it when missing.
func (s *Service) EnsureTeamMember(ctx context.Context, member domain.TeamMember) (domain.TeamMember, error) {
	existing, err := s.repo.GetTeamMember(ctx, strings.TrimSpace(member.ID))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.TeamMember{}, err
	}
	created, err := domain.NewTeamMember(member.ID, member.Name, member.Avatar, member.Email, member.Role)
	if err != nil {
		return domain.TeamMember{}, err
	}
	if err := s.repo.CreateTeamMember(ctx, created); err != nil {
		return domain.TeamMember{}, err
	}
	return created, nil
}

// GetTeamMember returns team member.
func (s *Service) GetTeamMember(ctx context.Context, memberID string) (domain.TeamMember, error) {
	return s.repo.GetTeamMember(ctx, strings.TrimSpace(memberID))
}

// ListTeamMembers lists team members.
func (s *Service) ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error) {
	return s.repo.ListTeamMembers(ctx)
}

// ListChangeEvents lists recent ledger rows, newest first. A blank taskID lists every task.
func (s *Service) ListChangeEvents(ctx context.Context, taskID string, limit int) ([]domain.ChangeEvent, error) {
	if err := authorize(ctx, domain.ActionViewBoard, nil); err != nil {
		return nil, err
	}
	return s.repo.ListChangeEvents(ctx, strings.TrimSpace(taskID), limit)
}

// Subscribe streams committed change events until ctx is done.
func (s *Service) Subscribe(ctx context.Context) <-chan domain.ChangeEvent {
	return s.broker.Subscribe(ctx)
}

// save persists an edited task with actor attribution and publishes the ledger event.
func (s *Service) save(ctx context.Context, task domain.Task) (domain.Task, error) {
	task.UpdatedBy = actorID(ctx)
	event, err := s.repo.UpdateTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	s.broker.Publish(event)
	return task, nil
}
