package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/foodrun-backend/internal/orders"
	"github.com/angelmondragon/foodrun-backend/internal/wallets"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/money"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Currency is the only currency the platform settles in.
const Currency = "SAR"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type walletCreditor interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallets.MovementInput) (*wallets.Movement, error)
}

// CaptureInput is the collaborator's capture callback.
type CaptureInput struct {
	OrderID       uuid.UUID `json:"order_id" validate:"required"`
	AmountCents   int64     `json:"amount_cents" validate:"required,gt=0"`
	TransactionID string    `json:"transaction_id" validate:"required"`
	Currency      string    `json:"currency" validate:"required"`
}

// CaptureResult reports the recorded capture.
type CaptureResult struct {
	OrderID         uuid.UUID           `json:"order_id"`
	Entry           *models.LedgerEntry `json:"entry,omitempty"`
	AlreadyCaptured bool                `json:"already_captured"`
}

// Service records collaborator payments into escrow.
type Service interface {
	Capture(ctx context.Context, input CaptureInput) (*CaptureResult, error)
}

type service struct {
	orders  orders.Repository
	wallets walletCreditor
	tx      txRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
}

func NewService(ordersRepo orders.Repository, walletSvc walletCreditor, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{orders: ordersRepo, wallets: walletSvc, tx: tx, outbox: emitter, logg: logg}, nil
}

// Capture never trusts the reported amount: it must match the order total
// once the delivery fee is known.
func (s *service) Capture(ctx context.Context, input CaptureInput) (*CaptureResult, error) {
	txn := strings.TrimSpace(input.TransactionID)
	if input.OrderID == uuid.Nil || txn == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and transaction id are required")
	}
	if !strings.EqualFold(strings.TrimSpace(input.Currency), Currency) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", input.Currency))
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	var result *CaptureResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.PaymentTxnID != nil && order.PaymentStatus != enums.PaymentStatusUnpaid {
			if *order.PaymentTxnID == txn {
				result = &CaptureResult{OrderID: order.ID, AlreadyCaptured: true}
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "order already paid by another transaction")
		}
		if err := checkCapturable(order, input.AmountCents); err != nil {
			return err
		}

		orderID := order.ID
		mv, err := s.wallets.Credit(ctx, tx, wallets.MovementInput{
			Owner:          wallets.PlatformOwner(),
			AmountCents:    input.AmountCents,
			Kind:           enums.LedgerKindPaymentCapture,
			Description:    "payment captured " + txn,
			OrderID:        &orderID,
			IdempotencyKey: "capture:" + txn,
		})
		if err != nil {
			return err
		}
		ok, err := repo.MarkCaptured(ctx, order.ID, txn, input.AmountCents)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order captured")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConcurrency, "order changed while recording the capture")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCaptured,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.PaymentCapturedEvent{
				OrderID:       order.ID,
				TransactionID: txn,
				AmountCents:   input.AmountCents,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment captured")
		}
		result = &CaptureResult{OrderID: order.ID, Entry: mv.Entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, input.OrderID.String()), map[string]any{
			"transaction_id": txn,
			"amount":         money.Format(input.AmountCents),
			"replay":         result.AlreadyCaptured,
		})
		s.logg.Info(logCtx, "payment capture recorded")
	}
	return result, nil
}

func checkCapturable(order *models.Order, amountCents int64) error {
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return pkgerrors.New(pkgerrors.CodeValidation, "cash orders are not captured online")
	}
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled; the payment must be voided")
	}
	if order.PaymentStatus != enums.PaymentStatusUnpaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order payment is already %s", order.PaymentStatus))
	}
	if order.IsDelivery() && order.DeliveryFeeSetBy == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot capture before the delivery fee is set")
	}
	if amountCents != order.TotalCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "captured amount does not match the order total").
			WithDetails(map[string]any{
				"expected": money.Format(order.TotalCents),
				"received": money.Format(amountCents),
			})
	}
	return nil
}
