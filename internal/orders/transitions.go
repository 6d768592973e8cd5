package orders

import (
	"time"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
)

// party names which side of an order may trigger a transition.
type party int

const (
	partyReceiver party = iota
	partySender
)

type transitionRule struct {
	from []enums.OrderStatus
	to   enums.OrderStatus
	by   party
}

// transitionRules is the exhaustive lifecycle table. Any action/status pair
// not listed here is an invalid transition; terminal statuses appear in no
// from-set so they reject everything.
var transitionRules = map[enums.TransitionAction]transitionRule{
	enums.TransitionActionAccept: {
		from: []enums.OrderStatus{enums.OrderStatusPending},
		to:   enums.OrderStatusAccepted,
		by:   partyReceiver,
	},
	enums.TransitionActionReject: {
		from: []enums.OrderStatus{enums.OrderStatusPending},
		to:   enums.OrderStatusRejected,
		by:   partyReceiver,
	},
	enums.TransitionActionCancel: {
		from: []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusAccepted},
		to:   enums.OrderStatusCancelled,
		by:   partySender,
	},
	enums.TransitionActionStartDelivery: {
		from: []enums.OrderStatus{enums.OrderStatusAccepted},
		to:   enums.OrderStatusInDelivery,
		by:   partyReceiver,
	},
	enums.TransitionActionComplete: {
		from: []enums.OrderStatus{enums.OrderStatusAccepted, enums.OrderStatusInDelivery},
		to:   enums.OrderStatusCompleted,
		by:   partyReceiver,
	},
}

func (r transitionRule) allowsFrom(status enums.OrderStatus) bool {
	for _, candidate := range r.from {
		if candidate == status {
			return true
		}
	}
	return false
}

// permits reports whether the actor is the party the rule names. Operators
// may trigger any transition.
func (r transitionRule) permits(order *models.Order, actor Actor) bool {
	if actor.Role == enums.ActorRoleOperator {
		return true
	}

	switch r.by {
	case partyReceiver:
		return actor.Role == enums.ActorRoleMerchant &&
			actor.MerchantID != nil &&
			order.ReceiverAccountID != nil &&
			*actor.MerchantID == *order.ReceiverAccountID

	case partySender:
		switch order.Type {
		case enums.OrderTypeMerchantTransfer:
			return actor.Role == enums.ActorRoleMerchant &&
				actor.MerchantID != nil &&
				order.SenderAccountID != nil &&
				*actor.MerchantID == *order.SenderAccountID
		case enums.OrderTypeCustomerPurchase:
			return actor.Role == enums.ActorRoleCustomer &&
				actor.CustomerKey != nil &&
				order.CustomerKey != nil &&
				*actor.CustomerKey == *order.CustomerKey
		}
	}
	return false
}

// stampColumn returns the timestamp column written alongside each target
// status. Completion's stamp doubles as the settlement-eligibility marker, so
// it must land in the same write as the status itself.
func stampColumn(to enums.OrderStatus) string {
	switch to {
	case enums.OrderStatusAccepted:
		return "accepted_at"
	case enums.OrderStatusInDelivery:
		return "delivery_started_at"
	case enums.OrderStatusCompleted:
		return "completed_at"
	case enums.OrderStatusRejected:
		return "rejected_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	}
	return ""
}

func transitionStamps(to enums.OrderStatus, now time.Time) map[string]any {
	stamps := map[string]any{}
	if col := stampColumn(to); col != "" {
		stamps[col] = now
	}
	return stamps
}
