// Package workflow defines the medicine donation lifecycle as an explicit
// state machine. Every status change in the handlers goes through this table,
// so the set of legal transitions lives in exactly one place.
package workflow

// Status is the lifecycle state of a medicine listing.
type Status string

const (
	StatusAvailable Status = "available"
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusReceived  Status = "received"
)

// Action is a lifecycle operation performed on a medicine listing.
type Action string

const (
	ActionRequest Action = "request"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionReceive Action = "receive"
)

// Transition maps an action to the status it requires and the status it
// produces.
type Transition struct {
	From Status
	To   Status
}

var transitions = map[Action]Transition{
	ActionRequest: {From: StatusAvailable, To: StatusRequested},
	ActionApprove: {From: StatusRequested, To: StatusApproved},
	ActionReject:  {From: StatusRequested, To: StatusAvailable},
	ActionReceive: {From: StatusApproved, To: StatusReceived},
}

// Lookup returns the transition for the given action. The second return value
// is false for unknown actions.
func Lookup(action Action) (Transition, bool) {
	t, ok := transitions[action]
	return t, ok
}

// CanApply reports whether the action is legal for a listing currently in the
// given status.
func CanApply(action Action, current Status) bool {
	t, ok := transitions[action]
	return ok && t.From == current
}

// IsValidStatus reports whether s is one of the known lifecycle states.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusRequested, StatusApproved, StatusReceived:
		return true
	}
	return false
}
