package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// defaultEventLimit caps ListChangeEvents when the caller passes no limit.
const defaultEventLimit = 50

// Repository represents repository data used by this package.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS team_members (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			avatar TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'member'
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL,
			project_tag TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'not_started',
			due_at TEXT,
			assignee_id TEXT NOT NULL DEFAULT '',
			assignee_name TEXT NOT NULL DEFAULT '',
			assignee_avatar TEXT NOT NULL DEFAULT '',
			assignee_email TEXT NOT NULL DEFAULT '',
			assignee_role TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT 'tavla-user',
			updated_by TEXT NOT NULL DEFAULT 'tavla-user',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_task_created_at ON change_events(task_id, created_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateTeamMember creates team member.
func (r *Repository) CreateTeamMember(ctx context.Context, m domain.TeamMember) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO team_members(id, name, avatar, email, role)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.Name, m.Avatar, m.Email, string(m.Role))
	return err
}

// UpdateTeamMember updates state for the requested operation.
func (r *Repository) UpdateTeamMember(ctx context.Context, m domain.TeamMember) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE team_members
		SET name = ?, avatar = ?, email = ?, role = ?
		WHERE id = ?
	`, m.Name, m.Avatar, m.Email, string(m.Role), m.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetTeamMember returns team member.
func (r *Repository) GetTeamMember(ctx context.Context, id string) (domain.TeamMember, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, avatar, email, role FROM team_members WHERE id = ?`, id)
	return scanTeamMember(row)
}

// ListTeamMembers lists team members.
func (r *Repository) ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, avatar, email, role FROM team_members ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.TeamMember{}
	for rows.Next() {
		member, err := scanTeamMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, member)
	}
	return out, rows.Err()
}

// CreateTask creates task and its create ledger row in one transaction.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) (event domain.ChangeEvent, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks(
			id, title, description, priority, project_tag, status, due_at,
			assignee_id, assignee_name, assignee_avatar, assignee_email, assignee_role,
			created_by, updated_by, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.Title,
		t.Description,
		string(t.Priority),
		t.ProjectTag,
		string(t.Status),
		nullableTS(t.DueAt),
		t.Assignee.ID,
		t.Assignee.Name,
		t.Assignee.Avatar,
		t.Assignee.Email,
		string(t.Assignee.Role),
		chooseActorID(t.CreatedBy),
		chooseActorID(t.UpdatedBy, t.CreatedBy),
		ts(t.CreatedAt),
		ts(t.UpdatedAt),
	)
	if err != nil {
		return domain.ChangeEvent{}, err
	}

	event, err = insertTaskChangeEvent(ctx, tx, domain.ChangeEvent{
		TaskID:    t.ID,
		Operation: domain.ChangeOperationCreate,
		ActorID:   chooseActorID(t.CreatedBy, t.UpdatedBy),
		Metadata: map[string]string{
			"status": string(t.Status),
			"title":  t.Title,
		},
		OccurredAt: t.CreatedAt,
	})
	if err != nil {
		return domain.ChangeEvent{}, err
	}

	err = tx.Commit()
	return event, err
}

// UpdateTask stores t and a ledger row classified against the previous row.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) (event domain.ChangeEvent, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prev, err := getTaskByID(ctx, tx, t.ID)
	if err != nil {
		return domain.ChangeEvent{}, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, project_tag = ?, status = ?, due_at = ?,
		    assignee_id = ?, assignee_name = ?, assignee_avatar = ?, assignee_email = ?, assignee_role = ?,
		    updated_by = ?, updated_at = ?
		WHERE id = ?
	`,
		t.Title,
		t.Description,
		string(t.Priority),
		t.ProjectTag,
		string(t.Status),
		nullableTS(t.DueAt),
		t.Assignee.ID,
		t.Assignee.Name,
		t.Assignee.Avatar,
		t.Assignee.Email,
		string(t.Assignee.Role),
		chooseActorID(t.UpdatedBy, prev.UpdatedBy),
		ts(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	if err = translateNoRows(res); err != nil {
		return domain.ChangeEvent{}, err
	}

	op, metadata := domain.ClassifyTaskChange(prev, t)
	event, err = insertTaskChangeEvent(ctx, tx, domain.ChangeEvent{
		TaskID:     t.ID,
		Operation:  op,
		ActorID:    chooseActorID(t.UpdatedBy, prev.UpdatedBy),
		Metadata:   metadata,
		OccurredAt: t.UpdatedAt,
	})
	if err != nil {
		return domain.ChangeEvent{}, err
	}

	err = tx.Commit()
	return event, err
}

// GetTask returns task.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTaskByID(ctx, r.db, id)
}

// ListTasks lists tasks.
func (r *Repository) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// ListChangeEvents lists recent events for one task, or for every task when taskID is blank.
func (r *Repository) ListChangeEvents(ctx context.Context, taskID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	query := `
		SELECT id, task_id, operation, actor_id, metadata_json, created_at
		FROM change_events
	`
	args := []any{}
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.TaskID, &opRaw, &event.ActorID, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = domain.ParseChangeOperation(opRaw)
		event.OccurredAt = parseTS(createdRaw)
		if event.Metadata, err = decodeMetadata(metadataRaw); err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// taskColumns lists the tasks columns in scanTask order.
const taskColumns = `id, title, description, priority, project_tag, status, due_at,
	assignee_id, assignee_name, assignee_avatar, assignee_email, assignee_role,
	created_by, updated_by, created_at, updated_at`

// queryRower represents a query-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func getTaskByID(ctx context.Context, q queryRower, id string) (domain.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// insertTaskChangeEvent inserts a change-event ledger record and returns it with its row id.
func insertTaskChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) (domain.ChangeEvent, error) {
	if event.Metadata == nil {
		event.Metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("encode change event metadata: %w", err)
	}
	event.ActorID = chooseActorID(event.ActorID)
	event.OccurredAt = normalizeEventTS(event.OccurredAt)
	res, err := execer.ExecContext(ctx, `
		INSERT INTO change_events(task_id, operation, actor_id, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		event.TaskID,
		string(event.Operation),
		event.ActorID,
		string(metadataJSON),
		ts(event.OccurredAt),
	)
	if err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("insert change event: %w", err)
	}
	if event.ID, err = res.LastInsertId(); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("insert change event id: %w", err)
	}
	return event, nil
}

// chooseActorID returns the first non-empty actor id or the default local actor.
func chooseActorID(candidates ...string) string {
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" {
			return candidate
		}
	}
	return domain.LocalActorID
}

// normalizeEventTS ensures event timestamps are always populated and UTC-normalized.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

func decodeMetadata(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
	}
	return out, nil
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanTeamMember(s scanner) (domain.TeamMember, error) {
	var (
		m    domain.TeamMember
		role string
	)
	if err := s.Scan(&m.ID, &m.Name, &m.Avatar, &m.Email, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TeamMember{}, app.ErrNotFound
		}
		return domain.TeamMember{}, err
	}
	m.Role = domain.Role(role)
	if m.Role == "" {
		m.Role = domain.RoleMember
	}
	return m, nil
}

// scanTask handles scan task.
func scanTask(s scanner) (domain.Task, error) {
	var (
		t            domain.Task
		priority     string
		status       string
		dueRaw       sql.NullString
		assigneeRole string
		createdRaw   string
		updatedRaw   string
	)
	if err := s.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&priority,
		&t.ProjectTag,
		&status,
		&dueRaw,
		&t.Assignee.ID,
		&t.Assignee.Name,
		&t.Assignee.Avatar,
		&t.Assignee.Email,
		&assigneeRole,
		&t.CreatedBy,
		&t.UpdatedBy,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Priority = domain.Priority(priority)
	t.Status = domain.Status(status)
	if !t.Status.Valid() {
		return domain.Task{}, fmt.Errorf("decode tasks.status %q: %w", status, domain.ErrInvalidStatus)
	}
	t.Assignee.Role = domain.Role(assigneeRole)
	t.DueAt = parseNullTS(dueRaw)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	if strings.TrimSpace(t.CreatedBy) == "" {
		t.CreatedBy = domain.LocalActorID
	}
	if strings.TrimSpace(t.UpdatedBy) == "" {
		t.UpdatedBy = t.CreatedBy
	}
	return t, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
