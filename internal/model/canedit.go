package model

// Field names accepted by CanEdit.
const (
	FieldProjectNumber = "project_number"
	FieldProjectOwner  = "project_owner"
	FieldSource        = "source"
	FieldBatchInfo     = "batch_info"
	FieldDates         = "dates"
	FieldAssignee      = "assignee"
	FieldPriority      = "priority"
	FieldProgress      = "progress"
)

// CanEdit reports whether user may edit the named field of a saved task.
// Managers edit everything. Members may update the checklist of any task
// and claim an unassigned task; identity and scheduling fields are
// manager-only. Creating a task is not gated here, so the rule applies to
// rows that already exist.
//
// The rule is invoked both by the store (authoritative) and by display
// layers (advisory), so gating lives in one place.
func CanEdit(user *TeamMember, task *Task, field string) bool {
	if user == nil {
		return false
	}
	if user.Role == RoleManager {
		return true
	}

	switch field {
	case FieldProgress:
		return true
	case FieldAssignee:
		return task.AssigneeID == "" || task.AssigneeID == user.ID
	default:
		return false
	}
}
