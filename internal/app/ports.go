package app

import (
	"context"

	"github.com/hylla/tavla/internal/domain"
)

// Repository represents repository data used by this package.
// Task writes persist the task and its ledger row together and return the recorded event.
type Repository interface {
	CreateTeamMember(context.Context, domain.TeamMember) error
	UpdateTeamMember(context.Context, domain.TeamMember) error
	GetTeamMember(context.Context, string) (domain.TeamMember, error)
	ListTeamMembers(context.Context) ([]domain.TeamMember, error)

	CreateTask(context.Context, domain.Task) (domain.ChangeEvent, error)
	UpdateTask(context.Context, domain.Task) (domain.ChangeEvent, error)
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context) ([]domain.Task, error)

	ListChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
}
