package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

var (
	_ BoardService = (*AppServiceAdapter)(nil)
	_ EventSource  = (*AppServiceAdapter)(nil)
)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// BoardView returns the filtered board grouped by display status.
func (a *AppServiceAdapter) BoardView(ctx context.Context, in BoardRequest) (Board, error) {
	if err := a.ready(); err != nil {
		return Board{}, err
	}
	filter, err := a.filter(in)
	if err != nil {
		return Board{}, err
	}
	view, err := a.service.BoardView(ctx, filter)
	if err != nil {
		return Board{}, mapAppError("board view", err)
	}

	vocab := a.service.Vocabulary()
	now := a.service.Now()
	out := Board{
		Vocabulary:   vocab.Name(),
		SearchQuery:  strings.TrimSpace(filter.SearchQuery),
		StatusFilter: string(filter.StatusFilter),
		Total:        view.Stats.Total,
		Columns:      make([]Column, 0, len(domain.Statuses())),
		ComputedAt:   now.UTC(),
	}
	for _, column := range view.Columns() {
		tasks := make([]Task, 0, len(column.Tasks))
		for _, task := range column.Tasks {
			tasks = append(tasks, MapTask(task, vocab, now))
		}
		out.Columns = append(out.Columns, Column{
			Status: string(column.Status),
			Label:  labelFor(vocab, column.Status),
			Count:  view.Stats.Counts[column.Status],
			Tasks:  tasks,
		})
	}
	return out, nil
}

// ListTasks returns the filtered tasks in board order.
func (a *AppServiceAdapter) ListTasks(ctx context.Context, in BoardRequest) ([]Task, error) {
	view, err := a.BoardView(ctx, in)
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, view.Total)
	for _, column := range view.Columns {
		out = append(out, column.Tasks...)
	}
	return out, nil
}

// GetTask returns one task.
func (a *AppServiceAdapter) GetTask(ctx context.Context, taskID string) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	if strings.TrimSpace(taskID) == "" {
		return Task{}, fmt.Errorf("task id is required: %w", ErrInvalidRequest)
	}
	task, err := a.service.GetTask(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return Task{}, mapAppError("get task", err)
	}
	return MapTask(task, a.service.Vocabulary(), a.service.Now()), nil
}

// CreateTask creates one task. Column, when set, is resolved through the configured vocabulary.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	priority, err := domain.ParsePriority(in.Priority)
	if err != nil {
		return Task{}, mapAppError("create task", err)
	}
	var status domain.Status
	if strings.TrimSpace(in.Column) != "" {
		status, err = board.ResolveColumn(in.Column, a.service.Vocabulary())
		if err != nil {
			return Task{}, mapAppError("create task", err)
		}
	}
	task, err := a.service.CreateTask(ctx, app.CreateTaskInput{
		Title:       in.Title,
		Description: in.Description,
		Priority:    priority,
		ProjectTag:  in.ProjectTag,
		Status:      status,
		DueAt:       in.DueAt,
		AssigneeID:  in.AssigneeID,
	})
	if err != nil {
		return Task{}, mapAppError("create task", err)
	}
	return MapTask(task, a.service.Vocabulary(), a.service.Now()), nil
}

// UpdateTask applies a partial update and, when requested, a reassignment.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, taskID string, in UpdateTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return Task{}, fmt.Errorf("task id is required: %w", ErrInvalidRequest)
	}
	update := app.UpdateTaskInput{
		TaskID:      taskID,
		Title:       in.Title,
		Description: in.Description,
		ProjectTag:  in.ProjectTag,
		DueAt:       in.DueAt,
		ClearDueAt:  in.ClearDueAt,
	}
	if in.Priority != nil {
		priority, err := domain.ParsePriority(*in.Priority)
		if err != nil {
			return Task{}, mapAppError("update task", err)
		}
		update.Priority = &priority
	}
	task, err := a.service.UpdateTask(ctx, update)
	if err != nil {
		return Task{}, mapAppError("update task", err)
	}
	if in.AssigneeID != nil && strings.TrimSpace(*in.AssigneeID) != task.Assignee.ID {
		task, err = a.service.AssignTask(ctx, taskID, *in.AssigneeID)
		if err != nil {
			return Task{}, mapAppError("assign task", err)
		}
	}
	return MapTask(task, a.service.Vocabulary(), a.service.Now()), nil
}

// MoveTask drops one task onto a column.
func (a *AppServiceAdapter) MoveTask(ctx context.Context, taskID string, in MoveTaskRequest) (MoveResult, error) {
	if err := a.ready(); err != nil {
		return MoveResult{}, err
	}
	if strings.TrimSpace(in.Column) == "" {
		return MoveResult{}, fmt.Errorf("column is required: %w", ErrInvalidRequest)
	}
	task, changed, err := a.service.MoveTask(ctx, strings.TrimSpace(taskID), in.Column)
	if err != nil {
		return MoveResult{}, mapAppError("move task", err)
	}
	vocab := a.service.Vocabulary()
	out := MoveResult{Task: MapTask(task, vocab, a.service.Now()), Changed: changed}
	if changed {
		out.Notification = board.MoveNotification(task, task.Status, vocab).Description
	}
	return out, nil
}

// ListMembers lists team members.
func (a *AppServiceAdapter) ListMembers(ctx context.Context) ([]Member, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	members, err := a.service.ListTeamMembers(ctx)
	if err != nil {
		return nil, mapAppError("list members", err)
	}
	out := make([]Member, 0, len(members))
	for _, member := range members {
		out = append(out, MapMember(member))
	}
	return out, nil
}

// CreateMember creates one team member.
func (a *AppServiceAdapter) CreateMember(ctx context.Context, in CreateMemberRequest) (Member, error) {
	if err := a.ready(); err != nil {
		return Member{}, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return Member{}, mapAppError("create member", err)
	}
	member, err := a.service.CreateTeamMember(ctx, app.CreateTeamMemberInput{
		ID:     in.ID,
		Name:   in.Name,
		Avatar: in.Avatar,
		Email:  in.Email,
		Role:   role,
	})
	if err != nil {
		return Member{}, mapAppError("create member", err)
	}
	return MapMember(member), nil
}

// ListEvents lists recent ledger events, newest first.
func (a *AppServiceAdapter) ListEvents(ctx context.Context, taskID string, limit int) ([]Event, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	events, err := a.service.ListChangeEvents(ctx, taskID, limit)
	if err != nil {
		return nil, mapAppError("list events", err)
	}
	out := make([]Event, 0, len(events))
	for _, event := range events {
		out = append(out, MapEvent(event))
	}
	return out, nil
}

// StatusVocabulary lists the configured column labels.
func (a *AppServiceAdapter) StatusVocabulary() Vocabulary {
	vocab := domain.DisplayVocabulary
	if a != nil && a.service != nil {
		vocab = a.service.Vocabulary()
	}
	out := Vocabulary{Name: vocab.Name()}
	for _, status := range domain.Statuses() {
		out.Statuses = append(out.Statuses, StatusLabel{Status: string(status), Label: labelFor(vocab, status)})
	}
	return out
}

// WithActor attributes ctx to memberID. A blank memberID leaves ctx untouched.
func (a *AppServiceAdapter) WithActor(ctx context.Context, memberID string) (context.Context, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return ctx, nil
	}
	if err := a.ready(); err != nil {
		return ctx, err
	}
	member, err := a.service.GetTeamMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			return ctx, fmt.Errorf("actor %q: %w", memberID, errors.Join(ErrForbidden, err))
		}
		return ctx, mapAppError("resolve actor", err)
	}
	return app.WithActor(ctx, member), nil
}

// Subscribe streams committed ledger events until ctx is done.
func (a *AppServiceAdapter) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event)
	if a == nil || a.service == nil {
		close(out)
		return out
	}
	feed := a.service.Subscribe(ctx)
	go func() {
		defer close(out)
		for event := range feed {
			select {
			case out <- MapEvent(event):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

func (a *AppServiceAdapter) filter(in BoardRequest) (board.FilterState, error) {
	status, err := board.ParseStatusFilter(in.Status, a.service.Vocabulary())
	if err != nil {
		return board.FilterState{}, fmt.Errorf("status filter %q: %w", in.Status, errors.Join(ErrInvariantViolation, err))
	}
	return board.FilterState{SearchQuery: in.Query, StatusFilter: status}, nil
}

// MapTask converts one domain task into its transport shape at now.
func MapTask(task domain.Task, vocab domain.Vocabulary, now time.Time) Task {
	at := now.UTC()
	display := task.DisplayStatus(at)
	out := Task{
		ID:            task.ID,
		Title:         task.Title,
		Description:   task.Description,
		Priority:      string(task.Priority),
		ProjectTag:    task.ProjectTag,
		Status:        string(task.Status),
		StatusLabel:   labelFor(vocab, task.Status),
		DisplayStatus: string(display),
		DisplayLabel:  labelFor(vocab, display),
		Overdue:       task.IsOverdue(at),
		DueAt:         task.DueAt,
		CreatedBy:     task.CreatedBy,
		UpdatedBy:     task.UpdatedBy,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
	}
	if !task.Assignee.Unassigned() {
		member := MapMember(task.Assignee)
		out.Assignee = &member
	}
	return out
}

// MapMember converts one domain member into its transport shape.
func MapMember(member domain.TeamMember) Member {
	return Member{
		ID:     member.ID,
		Name:   member.Name,
		Avatar: member.Avatar,
		Email:  member.Email,
		Role:   string(member.Role),
	}
}

// MapEvent converts one ledger event into its transport shape.
func MapEvent(event domain.ChangeEvent) Event {
	return Event{
		ID:         event.ID,
		TaskID:     event.TaskID,
		Operation:  string(event.Operation),
		ActorID:    event.ActorID,
		Metadata:   event.Metadata,
		OccurredAt: event.OccurredAt,
	}
}

func labelFor(vocab domain.Vocabulary, status domain.Status) string {
	label, err := vocab.Label(status)
	if err != nil {
		return string(status)
	}
	return label
}

// mapAppError maps app and domain errors onto transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrForbidden):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrForbidden, err))
	case errors.Is(err, domain.ErrInvariantViolation):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvariantViolation, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, board.ErrUnknownColumn),
		errors.Is(err, app.ErrInvalidSnapshot),
		errors.Is(err, app.ErrOverdueSweepDisabled):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
