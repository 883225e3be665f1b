package orders

import (
	"testing"

	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     enums.OrderStatus
		to       enums.OrderStatus
		delivery enums.DeliveryType
		ok       bool
		message  string
	}{
		{"accept pending", enums.OrderStatusPending, enums.OrderStatusAccepted, enums.DeliveryTypeDelivery, true, ""},
		{"prepare accepted", enums.OrderStatusAccepted, enums.OrderStatusPreparing, enums.DeliveryTypeDelivery, true, ""},
		{"ready from preparing", enums.OrderStatusPreparing, enums.OrderStatusReady, enums.DeliveryTypePickup, true, ""},
		{"pickup by courier", enums.OrderStatusReady, enums.OrderStatusOutForDelivery, enums.DeliveryTypeDelivery, true, ""},
		{"deliver from out for delivery", enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered, enums.DeliveryTypeDelivery, true, ""},
		{"pickup order handed over", enums.OrderStatusReady, enums.OrderStatusDelivered, enums.DeliveryTypePickup, true, ""},
		{"cancel preparing", enums.OrderStatusPreparing, enums.OrderStatusCancelled, enums.DeliveryTypeDelivery, true, ""},
		{"deliver before ready", enums.OrderStatusPreparing, enums.OrderStatusDelivered, enums.DeliveryTypePickup, false, "cannot mark delivered before ready"},
		{"delivery order skips courier", enums.OrderStatusReady, enums.OrderStatusDelivered, enums.DeliveryTypeDelivery, false, "cannot mark delivered before out_for_delivery"},
		{"ready before preparing", enums.OrderStatusAccepted, enums.OrderStatusReady, enums.DeliveryTypeDelivery, false, "cannot mark ready before preparing"},
		{"pickup order out for delivery", enums.OrderStatusReady, enums.OrderStatusOutForDelivery, enums.DeliveryTypePickup, false, "pickup orders are never out for delivery"},
		{"cancel delivered", enums.OrderStatusDelivered, enums.OrderStatusCancelled, enums.DeliveryTypeDelivery, false, "cannot cancel a delivered order"},
		{"accept cancelled", enums.OrderStatusCancelled, enums.OrderStatusAccepted, enums.DeliveryTypeDelivery, false, "cannot accept a cancelled order"},
		{"backwards", enums.OrderStatusReady, enums.OrderStatusPreparing, enums.DeliveryTypeDelivery, false, "cannot start preparing before accepted"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(tc.from, tc.to, tc.delivery)
			if tc.ok {
				if err != nil {
					t.Fatalf("expected transition to be allowed, got %v", err)
				}
				return
			}
			if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
				t.Fatalf("expected state conflict, got %v", err)
			}
			if got := pkgerrors.As(err).Message(); got != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, got)
			}
		})
	}
}

func TestStageTimestamp(t *testing.T) {
	if stageTimestamp(enums.OrderStatusOutForDelivery) != "picked_up_at" {
		t.Fatal("expected picked_up_at for out_for_delivery")
	}
	if stageTimestamp(enums.OrderStatusPending) != "" {
		t.Fatal("pending has no stage timestamp")
	}
}
