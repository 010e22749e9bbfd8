package assignment

import "github.com/pkg/errors"

// Statuses, in lifecycle order
const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusReviewed  Status = "reviewed"
	StatusCompleted Status = "completed"
)

var Statuses = []Status{StatusPending, StatusSubmitted, StatusReviewed, StatusCompleted}

type Status string

func (s Status) IsValid() bool {
	return s.rank() >= 0
}

func (s Status) rank() int {
	for i, st := range Statuses {
		if s == st {
			return i
		}
	}
	return -1
}

// Before reports whether s comes strictly before other in the lifecycle.
func (s Status) Before(other Status) bool {
	return s.rank() < other.rank()
}

// Triggers move an assignment through its lifecycle.
const (
	TriggerSubmit   Trigger = "submit"
	TriggerReview   Trigger = "review"
	TriggerComplete Trigger = "complete"
	TriggerReopen   Trigger = "reopen"
)

type Trigger string

type transition struct {
	from []Status // nil: any status
	to   Status
}

var transitions = map[Trigger]transition{
	TriggerSubmit:   {from: []Status{StatusPending, StatusSubmitted}, to: StatusSubmitted},
	TriggerReview:   {from: nil, to: StatusReviewed},
	TriggerComplete: {from: []Status{StatusReviewed}, to: StatusCompleted},
	TriggerReopen:   {from: []Status{StatusCompleted}, to: StatusReviewed},
}

var (
	errNoSubmissions    = errors.New("this assignment no longer accepts submissions")
	errCannotComplete   = errors.New("only reviewed assignments can be completed")
	errCannotReopen     = errors.New("only completed assignments can be reopened")
	errBackwardStatus   = errors.New("status cannot move backward, reopen the assignment instead")
	errStatusByWorkflow = errors.New("this status is set by submitting or reviewing the assignment")
)

// Next returns the status reached by firing trigger from the current status.
func Next(current Status, trigger Trigger) (Status, error) {
	tr, ok := transitions[trigger]
	if !ok {
		return current, errors.Errorf("unknown trigger %q", trigger)
	}
	if tr.from == nil {
		return tr.to, nil
	}
	for _, st := range tr.from {
		if st == current {
			return tr.to, nil
		}
	}
	switch trigger {
	case TriggerSubmit:
		return current, errNoSubmissions
	case TriggerComplete:
		return current, errCannotComplete
	default:
		return current, errCannotReopen
	}
}

// triggerFor resolves an explicit status change requested by the coach to a trigger.
// Setting the current status is a no-op, reported with an empty trigger.
func triggerFor(current, target Status) (Trigger, error) {
	switch {
	case target == current:
		return "", nil
	case target.Before(current):
		return "", errBackwardStatus
	case target == StatusCompleted:
		return TriggerComplete, nil
	default:
		return "", errStatusByWorkflow
	}
}
