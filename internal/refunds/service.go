package refunds

import (
	"context"
	"fmt"

	"github.com/angelmondragon/foodrun-backend/internal/ledger"
	"github.com/angelmondragon/foodrun-backend/internal/notifications"
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

// Result describes what a cancellation gave back.
type Result struct {
	Reversals           []models.LedgerEntry `json:"reversals"`
	CustomerRefundCents int64                `json:"customer_refund_cents"`
	Refund              *models.LedgerEntry  `json:"refund,omitempty"`
	AlreadyRefunded     bool                 `json:"already_refunded"`
}

// Orchestrator unwinds the money movements of a cancelled order.
type Orchestrator interface {
	Refund(ctx context.Context, tx *gorm.DB, order *models.Order) (*Result, error)
}

type walletMover interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallets.MovementInput) (*wallets.Movement, error)
	Debit(ctx context.Context, tx *gorm.DB, input wallets.MovementInput) (*wallets.Movement, error)
	Reverse(ctx context.Context, tx *gorm.DB, original models.LedgerEntry, description string) (*wallets.Movement, error)
}

type service struct {
	ledger   ledger.Service
	wallets  walletMover
	outbox   outbox.Emitter
	notifier notifications.Notifier
	logg     *logger.Logger
}

// NewService wires the refund orchestrator.
func NewService(ledgerSvc ledger.Service, walletSvc walletMover, emitter outbox.Emitter, notifier notifications.Notifier, logg *logger.Logger) (Orchestrator, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		ledger:   ledgerSvc,
		wallets:  walletSvc,
		outbox:   emitter,
		notifier: notifier,
		logg:     logg,
	}, nil
}

// Refund must run inside the transaction that cancels the order. It either
// writes every reversal plus the customer refund, or nothing.
func (s *service) Refund(ctx context.Context, tx *gorm.DB, order *models.Order) (*Result, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}

	entries, err := s.ledger.EntriesForOrder(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	plan, err := planRefund(order, entries)
	if err != nil {
		return nil, err
	}
	if plan.alreadyRefunded {
		return &Result{Reversals: []models.LedgerEntry{}, AlreadyRefunded: true}, nil
	}

	result := &Result{Reversals: make([]models.LedgerEntry, 0, len(plan.toReverse))}
	for _, entry := range plan.toReverse {
		mv, err := s.wallets.Reverse(ctx, tx, entry, "order cancelled")
		if err != nil {
			return nil, err
		}
		result.Reversals = append(result.Reversals, *mv.Entry)
	}

	if plan.refundCents > 0 {
		orderID := order.ID
		if _, err := s.wallets.Debit(ctx, tx, wallets.MovementInput{
			Owner:          wallets.PlatformOwner(),
			AmountCents:    plan.refundCents,
			Kind:           enums.LedgerKindRefund,
			Description:    "refund of captured payment",
			OrderID:        &orderID,
			IdempotencyKey: "refund:platform:" + order.ID.String(),
		}); err != nil {
			return nil, err
		}
		mv, err := s.wallets.Credit(ctx, tx, wallets.MovementInput{
			Owner:          wallets.Owner{Type: enums.WalletOwnerCustomer, ID: order.CustomerID},
			AmountCents:    plan.refundCents,
			Kind:           enums.LedgerKindRefund,
			Description:    "refund for cancelled order",
			OrderID:        &orderID,
			IdempotencyKey: "refund:" + order.ID.String(),
		})
		if err != nil {
			return nil, err
		}
		result.Refund = mv.Entry
		result.CustomerRefundCents = plan.refundCents

		if err := s.emitRefund(ctx, tx, order, result); err != nil {
			return nil, err
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"reversals":    len(result.Reversals),
			"refund_cents": result.CustomerRefundCents,
		})
		s.logg.Info(logCtx, "order refund applied")
	}
	return result, nil
}

func (s *service) emitRefund(ctx context.Context, tx *gorm.DB, order *models.Order, result *Result) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundIssued,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.RefundIssuedEvent{
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			TransactionID: order.PaymentTxnID,
			AmountCents:   result.CustomerRefundCents,
			Reversals:     len(result.Reversals),
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit refund event")
	}

	orderID := order.ID
	return s.notifier.Request(ctx, tx, notifications.Request{
		RecipientType: enums.RoleCustomer,
		RecipientID:   order.CustomerID,
		Kind:          enums.NotificationRefundIssued,
		OrderID:       &orderID,
		Data:          map[string]any{"amount": money.Format(result.CustomerRefundCents)},
	})
}
