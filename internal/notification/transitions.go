package notification

import (
	"fmt"
	"slices"

	"github.com/aerodesk/aerodesk/internal/errors"
)

// allowedTransitions is the lifecycle state machine. COMPLETED and
// CANCELLED have no outgoing edges. Work only starts on an acknowledged
// notification, Accept does both steps in one write.
var allowedTransitions = map[Status][]Status{
	StatusPending:      {StatusAcknowledged, StatusCancelled},
	StatusAcknowledged: {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress:   {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a notification in from may move to to.
func CanTransition(from, to Status) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// NextStatuses lists the statuses reachable from s.
func NextStatuses(s Status) []Status {
	return slices.Clone(allowedTransitions[s])
}

func checkTransition(n *Notification, to Status) error {
	if !to.IsValid() {
		return errors.Newf("unknown status %q", to).
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	if CanTransition(n.Status, to) {
		return nil
	}
	return errors.New(fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.Status, to)).
		Component("notification").
		Category(errors.CategoryState).
		Context("id", n.ID).
		Context("from", string(n.Status)).
		Context("to", string(to)).
		Build()
}
