package event

import "strings"

// Status describes the event lifecycle label.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Action names an operator-triggered lifecycle transition.
type Action string

const (
	ActionPublish       Action = "publish"
	ActionStart         Action = "start"
	ActionComplete      Action = "complete"
	ActionCancel        Action = "cancel"
	ActionRevertToDraft Action = "revert_to_draft"
)

// ParseStatus canonicalizes a status label.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusDraft:
		return StatusDraft, true
	case StatusPublished:
		return StatusPublished, true
	case StatusOngoing:
		return StatusOngoing, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusCancelled:
		return StatusCancelled, true
	default:
		return "", false
	}
}

// ParseAction canonicalizes an action label. "revert", "revert-to-draft" and
// "revertToDraft" are accepted as aliases of revert_to_draft.
func ParseAction(value string) (Action, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "publish":
		return ActionPublish, true
	case "start":
		return ActionStart, true
	case "complete":
		return ActionComplete, true
	case "cancel":
		return ActionCancel, true
	case "revert_to_draft", "revert-to-draft", "reverttodraft", "revert":
		return ActionRevertToDraft, true
	default:
		return "", false
	}
}

// target returns the status an action leads to.
func (a Action) target() Status {
	switch a {
	case ActionPublish:
		return StatusPublished
	case ActionStart:
		return StatusOngoing
	case ActionComplete:
		return StatusCompleted
	case ActionCancel:
		return StatusCancelled
	case ActionRevertToDraft:
		return StatusDraft
	default:
		return ""
	}
}

// isActionAllowed enforces the event lifecycle transition table.
func isActionAllowed(from Status, action Action) bool {
	switch action {
	case ActionPublish:
		return from == StatusDraft
	case ActionStart:
		return from == StatusPublished
	case ActionComplete:
		return from == StatusOngoing
	case ActionCancel:
		return from == StatusPublished || from == StatusOngoing
	case ActionRevertToDraft:
		return from == StatusDraft || from == StatusPublished || from == StatusCompleted || from == StatusCancelled
	default:
		return false
	}
}

// IsActionAllowed reports whether action may be applied to an event in status from.
// Guards are not evaluated.
func IsActionAllowed(from Status, action Action) bool {
	return isActionAllowed(from, action)
}

// AllowedActions lists the actions the transition table offers from status.
func AllowedActions(from Status) []Action {
	var out []Action
	for _, a := range []Action{ActionPublish, ActionStart, ActionComplete, ActionCancel, ActionRevertToDraft} {
		if isActionAllowed(from, a) {
			out = append(out, a)
		}
	}
	return out
}
