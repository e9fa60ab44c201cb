package domain

// Action names one operation the permission policy decides on.
type Action string

const (
	ActionViewBoard     Action = "view_board"
	ActionCreateTask    Action = "create_task"
	ActionEditTask      Action = "edit_task"
	ActionMoveTask      Action = "move_task"
	ActionAssignTask    Action = "assign_task"
	ActionManageMembers Action = "manage_members"
)

// PolicyContext carries the target of an action when one exists.
type PolicyContext struct {
	Task *Task
}

// CanPerform reports whether user may perform action in pctx.
func CanPerform(user TeamMember, action Action, pctx PolicyContext) bool {
	switch user.Role {
	case RoleAdmin:
		return knownAction(action)
	case RoleLead:
		return knownAction(action) && action != ActionManageMembers
	case RoleMember:
		switch action {
		case ActionViewBoard, ActionCreateTask:
			return true
		case ActionEditTask, ActionMoveTask:
			return pctx.Task != nil && pctx.Task.Assignee.ID != "" && pctx.Task.Assignee.ID == user.ID
		default:
			return false
		}
	case RoleViewer:
		return action == ActionViewBoard
	default:
		return false
	}
}

func knownAction(action Action) bool {
	switch action {
	case ActionViewBoard, ActionCreateTask, ActionEditTask, ActionMoveTask, ActionAssignTask, ActionManageMembers:
		return true
	default:
		return false
	}
}
