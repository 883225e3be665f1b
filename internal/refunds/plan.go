package refunds

import (
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/google/uuid"
)

type refundPlan struct {
	toReverse       []models.LedgerEntry
	refundCents     int64
	alreadyRefunded bool
}

// planRefund classifies the order's entries. Any state a single atomic
// cancellation could not have produced is a reconciliation problem and
// nothing is written.
func planRefund(order *models.Order, entries []models.LedgerEntry) (*refundPlan, error) {
	reversed := make(map[uuid.UUID]bool)
	for _, entry := range entries {
		if entry.ReversesEntryID != nil {
			reversed[*entry.ReversesEntryID] = true
		}
	}

	var (
		committed    []models.LedgerEntry
		pending      []models.LedgerEntry
		hasRefund    bool
		capturedSum  int64
		captureCount int
	)
	delivered := order.Status == enums.OrderStatusDelivered
	for _, entry := range entries {
		if entry.ReversesEntryID != nil {
			continue
		}
		switch entry.Kind {
		case enums.LedgerKindRefund:
			hasRefund = true
			continue
		case enums.LedgerKindPaymentCapture:
			capturedSum += entry.AmountCents
			captureCount++
			continue
		case enums.LedgerKindRestaurantEarnings, enums.LedgerKindAdminCommission:
			if !delivered && !reversed[entry.ID] {
				return nil, reconciliation(order, "payout entries exist on an undelivered order")
			}
		}
		committed = append(committed, entry)
		if !reversed[entry.ID] {
			pending = append(pending, entry)
		}
	}

	if captureCount > 1 {
		return nil, reconciliation(order, "order has more than one capture")
	}
	captured := order.PaymentStatus == enums.PaymentStatusCaptured || order.PaymentStatus == enums.PaymentStatusRefunded
	if captureCount == 1 && (!captured || capturedSum != order.CapturedCents) {
		return nil, reconciliation(order, "capture entry does not match the order")
	}
	if captureCount == 0 && captured && order.CapturedCents > 0 {
		return nil, reconciliation(order, "captured order has no capture entry")
	}

	if hasRefund {
		if len(pending) > 0 {
			return nil, reconciliation(order, "refund recorded but entries remain unreversed")
		}
		return &refundPlan{alreadyRefunded: true}, nil
	}

	reversedCount := len(committed) - len(pending)
	if reversedCount > 0 && len(pending) > 0 {
		return nil, reconciliation(order, "order is partially reversed")
	}
	if reversedCount > 0 && len(pending) == 0 {
		if captureCount == 1 {
			return nil, reconciliation(order, "entries reversed but captured payment not refunded")
		}
		return &refundPlan{alreadyRefunded: true}, nil
	}

	plan := &refundPlan{toReverse: pending}
	if captureCount == 1 {
		plan.refundCents = capturedSum
	}
	return plan, nil
}

func reconciliation(order *models.Order, message string) error {
	return pkgerrors.New(pkgerrors.CodeReconciliation, message).
		WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
}
