package board

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// ErrUnknownColumn reports a drop target that is not a board column.
var ErrUnknownColumn = errors.New("unknown column")

// DefaultActivationDistance is the pointer travel, in cells, a press must exceed before it becomes a drag.
const DefaultActivationDistance = 2.0

// DragPhase is the lifecycle position of a DragController.
type DragPhase int

const (
	PhaseIdle DragPhase = iota
	PhasePressed
	PhaseDragging
)

// String returns a readable phase name.
func (p DragPhase) String() string {
	switch p {
	case PhasePressed:
		return "pressed"
	case PhaseDragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Point is a pointer position in terminal cells.
type Point struct {
	X int
	Y int
}

func (p Point) distance(other Point) float64 {
	return math.Hypot(float64(p.X-other.X), float64(p.Y-other.Y))
}

// Mutation is a status change request emitted by a completed drop.
type Mutation struct {
	TaskID    string        `json:"taskId"`
	NewStatus domain.Status `json:"newStatus"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Notification is the user-facing message for an applied move.
type Notification struct {
	Title       string
	Description string
}

// DropOutcome classifies how a drop resolved.
type DropOutcome int

const (
	OutcomeNone DropOutcome = iota
	OutcomeClick
	OutcomeCancelled
	OutcomeStale
	OutcomeUnchanged
	OutcomeMoved
)

// String returns a readable outcome name.
func (o DropOutcome) String() string {
	switch o {
	case OutcomeClick:
		return "click"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeStale:
		return "stale"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeMoved:
		return "moved"
	default:
		return "none"
	}
}

// DropResult describes one resolved drop.
type DropResult struct {
	Outcome      DropOutcome
	TaskID       string
	Mutation     Mutation
	Notification Notification
}

// TaskLookup returns the current stored version of one task.
type TaskLookup func(id string) (domain.Task, bool)

// DragOption configures a DragController.
type DragOption func(*DragController)

// WithVocabulary sets the vocabulary used to resolve column keys and label notifications.
func WithVocabulary(vocab domain.Vocabulary) DragOption {
	return func(c *DragController) {
		if vocab != nil {
			c.vocab = vocab
		}
	}
}

// WithActivationDistance sets the drag activation distance. Values <= 0 activate on press.
func WithActivationDistance(distance float64) DragOption {
	return func(c *DragController) {
		c.activation = distance
	}
}

// WithClock sets the clock used to stamp mutations.
func WithClock(clock func() time.Time) DragOption {
	return func(c *DragController) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithApply registers the hook that receives each mutation request.
func WithApply(apply func(Mutation)) DragOption {
	return func(c *DragController) {
		c.apply = apply
	}
}

// WithNotify registers the hook that receives the notification for each applied mutation.
func WithNotify(notify func(Notification)) DragOption {
	return func(c *DragController) {
		c.notify = notify
	}
}

// DragController tracks one pick-up at a time and turns drops into mutation requests.
// It never changes tasks itself.
type DragController struct {
	lookup     TaskLookup
	vocab      domain.Vocabulary
	activation float64
	clock      func() time.Time
	apply      func(Mutation)
	notify     func(Notification)

	phase   DragPhase
	taskID  string
	origin  Point
	pointer Point
}

// NewDragController constructs an idle controller reading tasks through lookup.
func NewDragController(lookup TaskLookup, opts ...DragOption) *DragController {
	c := &DragController{
		lookup:     lookup,
		vocab:      domain.DisplayVocabulary,
		activation: DefaultActivationDistance,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.lookup == nil {
		c.lookup = func(string) (domain.Task, bool) { return domain.Task{}, false }
	}
	return c
}

// Phase returns the current phase.
func (c *DragController) Phase() DragPhase {
	return c.phase
}

// Pointer returns the last pointer position seen by Press or Move.
func (c *DragController) Pointer() Point {
	return c.pointer
}

// Press arms a pointer pick-up of taskID at at.
func (c *DragController) Press(taskID string, at Point) bool {
	if c.phase != PhaseIdle {
		return false
	}
	if _, ok := c.lookup(taskID); !ok {
		return false
	}
	c.taskID = taskID
	c.origin = at
	c.pointer = at
	c.phase = PhasePressed
	if c.activation <= 0 {
		c.phase = PhaseDragging
	}
	return true
}

// Move records pointer motion and reports whether it activated the drag.
func (c *DragController) Move(at Point) bool {
	if c.phase == PhaseIdle {
		return false
	}
	c.pointer = at
	if c.phase != PhasePressed {
		return false
	}
	if at.distance(c.origin) <= c.activation {
		return false
	}
	if _, ok := c.lookup(c.taskID); !ok {
		c.reset()
		return false
	}
	c.phase = PhaseDragging
	return true
}

// PickUp starts a keyboard drag of taskID with no activation distance.
func (c *DragController) PickUp(taskID string) bool {
	if c.phase != PhaseIdle {
		return false
	}
	if _, ok := c.lookup(taskID); !ok {
		return false
	}
	c.taskID = taskID
	c.phase = PhaseDragging
	return true
}

// ActiveTask returns the task being dragged.
func (c *DragController) ActiveTask() (domain.Task, bool) {
	if c.phase != PhaseDragging {
		return domain.Task{}, false
	}
	return c.lookup(c.taskID)
}

// ActiveTaskID returns the id of the pressed or dragged task.
func (c *DragController) ActiveTaskID() string {
	if c.phase == PhaseIdle {
		return ""
	}
	return c.taskID
}

// Drop ends the current pick-up over columnKey. The controller is idle afterwards.
func (c *DragController) Drop(columnKey string) DropResult {
	phase, taskID := c.phase, c.taskID
	c.reset()

	switch phase {
	case PhaseIdle:
		return DropResult{Outcome: OutcomeNone}
	case PhasePressed:
		return DropResult{Outcome: OutcomeClick, TaskID: taskID}
	}

	if _, err := ResolveColumn(columnKey, c.vocab); err != nil {
		return DropResult{Outcome: OutcomeCancelled, TaskID: taskID}
	}
	task, ok := c.lookup(taskID)
	if !ok {
		return DropResult{Outcome: OutcomeStale, TaskID: taskID}
	}
	mutation, changed, err := ResolveDrop(task, columnKey, c.vocab, c.clock())
	if err != nil {
		return DropResult{Outcome: OutcomeCancelled, TaskID: taskID}
	}
	if !changed {
		return DropResult{Outcome: OutcomeUnchanged, TaskID: taskID}
	}

	note := MoveNotification(task, mutation.NewStatus, c.vocab)
	if c.apply != nil {
		c.apply(mutation)
	}
	if c.notify != nil {
		c.notify(note)
	}
	return DropResult{Outcome: OutcomeMoved, TaskID: taskID, Mutation: mutation, Notification: note}
}

// Cancel abandons the current pick-up.
func (c *DragController) Cancel() {
	c.reset()
}

func (c *DragController) reset() {
	c.phase = PhaseIdle
	c.taskID = ""
	c.origin = Point{}
}

// ResolveColumn maps a column key to its canonical status. Keys are vocabulary labels or canonical status keys.
func ResolveColumn(columnKey string, vocab domain.Vocabulary) (domain.Status, error) {
	key := strings.TrimSpace(columnKey)
	if key == "" {
		return "", fmt.Errorf("%w: empty column key", ErrUnknownColumn)
	}
	if vocab == nil {
		vocab = domain.DisplayVocabulary
	}
	if status, err := vocab.Status(key); err == nil {
		return status, nil
	}
	status, err := domain.ParseStatus(key)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownColumn, columnKey)
	}
	return status, nil
}

// ResolveDrop computes the mutation for dropping task over columnKey at now.
// changed is false when the column already holds the task's stored status.
func ResolveDrop(task domain.Task, columnKey string, vocab domain.Vocabulary, now time.Time) (Mutation, bool, error) {
	target, err := ResolveColumn(columnKey, vocab)
	if err != nil {
		return Mutation{}, false, err
	}
	if task.Status == target {
		return Mutation{}, false, nil
	}
	return Mutation{TaskID: task.ID, NewStatus: target, UpdatedAt: now.UTC()}, true, nil
}

// MoveNotification builds the message shown after task moves to target.
func MoveNotification(task domain.Task, target domain.Status, vocab domain.Vocabulary) Notification {
	if vocab == nil {
		vocab = domain.DisplayVocabulary
	}
	label, err := vocab.Label(target)
	if err != nil {
		label = string(target)
	}
	return Notification{
		Title:       "Task moved",
		Description: fmt.Sprintf("%q moved to %s", task.Title, label),
	}
}
