package orders

import (
	"fmt"

	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
)

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusAccepted, enums.OrderStatusCancelled},
	enums.OrderStatusAccepted:       {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing:      {enums.OrderStatusReady, enums.OrderStatusCancelled},
	enums.OrderStatusReady:          {enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
}

var verbs = map[enums.OrderStatus]string{
	enums.OrderStatusAccepted:       "accept",
	enums.OrderStatusPreparing:      "start preparing",
	enums.OrderStatusReady:          "mark ready",
	enums.OrderStatusOutForDelivery: "pick up",
	enums.OrderStatusDelivered:      "mark delivered",
	enums.OrderStatusCancelled:      "cancel",
}

// requiredPrior names the status an order must be in before reaching target.
func requiredPrior(target enums.OrderStatus, deliveryType enums.DeliveryType) enums.OrderStatus {
	switch target {
	case enums.OrderStatusAccepted:
		return enums.OrderStatusPending
	case enums.OrderStatusPreparing:
		return enums.OrderStatusAccepted
	case enums.OrderStatusReady:
		return enums.OrderStatusPreparing
	case enums.OrderStatusOutForDelivery:
		return enums.OrderStatusReady
	case enums.OrderStatusDelivered:
		if deliveryType == enums.DeliveryTypePickup {
			return enums.OrderStatusReady
		}
		return enums.OrderStatusOutForDelivery
	}
	return ""
}

// CheckTransition reports whether an order of the given delivery type may move
// from one status to another. Pickup orders skip out_for_delivery.
func CheckTransition(from, to enums.OrderStatus, deliveryType enums.DeliveryType) error {
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s a %s order", verbs[to], from)).
			WithDetails(map[string]any{"from": from, "to": to})
	}

	allowed := false
	for _, candidate := range transitions[from] {
		if candidate == to {
			allowed = true
			break
		}
	}
	if allowed && deliveryType == enums.DeliveryTypePickup && to == enums.OrderStatusOutForDelivery {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup orders are never out for delivery").
			WithDetails(map[string]any{"from": from, "to": to})
	}
	if allowed && deliveryType == enums.DeliveryTypeDelivery && from == enums.OrderStatusReady && to == enums.OrderStatusDelivered {
		allowed = false
	}
	if allowed {
		return nil
	}

	message := fmt.Sprintf("cannot move order from %s to %s", from, to)
	if prior := requiredPrior(to, deliveryType); prior != "" {
		message = fmt.Sprintf("cannot %s before %s", verbs[to], prior)
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"from": from, "to": to})
}

// stageTimestamp is the column stamped when an order enters status.
func stageTimestamp(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusAccepted:
		return "accepted_at"
	case enums.OrderStatusPreparing:
		return "preparing_at"
	case enums.OrderStatusReady:
		return "ready_at"
	case enums.OrderStatusOutForDelivery:
		return "picked_up_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	}
	return ""
}
