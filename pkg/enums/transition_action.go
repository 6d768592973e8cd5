package enums

import "fmt"

// TransitionAction represents the lifecycle action a party can request
// against an order.
type TransitionAction string

const (
	TransitionActionAccept        TransitionAction = "accept"
	TransitionActionReject        TransitionAction = "reject"
	TransitionActionCancel        TransitionAction = "cancel"
	TransitionActionStartDelivery TransitionAction = "start_delivery"
	TransitionActionComplete      TransitionAction = "complete"
)

var validTransitionActions = []TransitionAction{
	TransitionActionAccept,
	TransitionActionReject,
	TransitionActionCancel,
	TransitionActionStartDelivery,
	TransitionActionComplete,
}

// String implements fmt.Stringer.
func (a TransitionAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known TransitionAction.
func (a TransitionAction) IsValid() bool {
	for _, candidate := range validTransitionActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseTransitionAction converts raw input into a TransitionAction.
func ParseTransitionAction(value string) (TransitionAction, error) {
	for _, candidate := range validTransitionActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transition action %q", value)
}
