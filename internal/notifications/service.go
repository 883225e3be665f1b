package notifications

import (
	"context"
	"fmt"

	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Request asks the external sender to notify one party. Rendering and
// delivery happen outside this service.
type Request struct {
	RecipientType enums.Role
	RecipientID   uuid.UUID
	Kind          enums.NotificationKind
	OrderID       *uuid.UUID
	Data          map[string]any
}

// Notifier queues notification requests in the caller's transaction so they
// are only sent when the change that caused them commits.
type Notifier interface {
	Request(ctx context.Context, tx *gorm.DB, req Request) error
}

type notifier struct {
	outbox outbox.Emitter
}

// NewNotifier wires a notifier on top of the outbox.
func NewNotifier(emitter outbox.Emitter) (Notifier, error) {
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &notifier{outbox: emitter}, nil
}

func (n *notifier) Request(ctx context.Context, tx *gorm.DB, req Request) error {
	if req.RecipientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification recipient required")
	}
	if !req.RecipientType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid recipient type %q", req.RecipientType))
	}
	if !req.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification kind %q", req.Kind))
	}

	return n.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   req.RecipientID,
		Data: payloads.NotificationRequestedEvent{
			RecipientType: string(req.RecipientType),
			RecipientID:   req.RecipientID,
			Kind:          req.Kind,
			OrderID:       req.OrderID,
			Data:          req.Data,
		},
	})
}
