package orders

import (
	"context"

	"github.com/angelmondragon/foodrun-backend/internal/commission"
	"github.com/angelmondragon/foodrun-backend/internal/wallets"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func splitInput(order *models.Order) commission.Input {
	return commission.Input{
		SubtotalCents:    order.SubtotalCents,
		DeliveryFeeCents: order.DeliveryFeeCents,
		DeliveryType:     order.DeliveryType,
		ItemCount:        order.ItemCount,
		Referral:         order.HasReferral(),
	}
}

// payout is one earning credit funded by a platform payout debit.
type payout struct {
	owner  wallets.Owner
	kind   enums.LedgerEntryKind
	amount int64
	label  string
}

// commitPayout distributes a delivered order's split. The payout_committed_at
// guard makes it run at most once per order; later calls report
// AlreadyCommitted and write nothing.
func (s *service) commitPayout(ctx context.Context, tx *gorm.DB, order *models.Order) (*PayoutResult, error) {
	repo := s.repo.WithTx(tx)
	ok, err := repo.MarkPayoutCommitted(ctx, order.ID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payout")
	}
	if !ok {
		return &PayoutResult{AlreadyCommitted: true}, nil
	}

	split, err := s.calc.Calculate(splitInput(order))
	if err != nil {
		return nil, err
	}

	payouts := []payout{{
		owner:  wallets.Owner{Type: enums.WalletOwnerRestaurant, ID: order.RestaurantID},
		kind:   enums.LedgerKindRestaurantEarnings,
		amount: split.RestaurantEarnings,
		label:  "restaurant",
	}}
	if order.HasReferral() && split.AdminCommission > 0 {
		payouts = append(payouts, payout{
			owner:  wallets.Owner{Type: enums.WalletOwnerAdmin, ID: *order.ReferrerAdminID},
			kind:   enums.LedgerKindAdminCommission,
			amount: split.AdminCommission,
			label:  "admin",
		})
	}
	for _, p := range payouts {
		mv, err := s.pay(ctx, tx, order, p)
		if err != nil {
			return nil, err
		}
		if err := s.emitPayout(ctx, tx, order, p, mv); err != nil {
			return nil, err
		}
	}

	// normally booked at pickup; replaying the same keys is a no-op
	if _, err := s.payCourier(ctx, tx, order, split.CourierEarnings); err != nil {
		return nil, err
	}
	if err := s.wallets.RecordPlatformFee(ctx, tx, split.PlatformFee); err != nil {
		return nil, err
	}

	result := &PayoutResult{
		RestaurantCents:  split.RestaurantEarnings,
		CourierCents:     split.CourierEarnings,
		PlatformFeeCents: split.PlatformFee,
		AdminCents:       split.AdminCommission,
	}
	deliveredAt := s.now()
	if order.DeliveredAt != nil {
		deliveredAt = *order.DeliveredAt
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderDelivered,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderDeliveredEvent{
			OrderID:          order.ID,
			RestaurantCents:  result.RestaurantCents,
			CourierCents:     result.CourierCents,
			PlatformFeeCents: result.PlatformFeeCents,
			AdminCents:       result.AdminCents,
			DeliveredAt:      deliveredAt,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order delivered")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"restaurant_cents":   result.RestaurantCents,
			"courier_cents":      result.CourierCents,
			"platform_fee_cents": result.PlatformFeeCents,
			"admin_cents":        result.AdminCents,
		})
		s.logg.Info(logCtx, "order payout committed")
	}
	return result, nil
}

// payCourier books the courier's net delivery share. It is keyed per order,
// so pickup and payout can both call it.
func (s *service) payCourier(ctx context.Context, tx *gorm.DB, order *models.Order, amount int64) (*wallets.Movement, error) {
	if !order.IsDelivery() || order.CourierID == nil || amount <= 0 {
		return nil, nil
	}
	p := payout{
		owner:  wallets.Owner{Type: enums.WalletOwnerCourier, ID: *order.CourierID},
		kind:   enums.LedgerKindCourierEarnings,
		amount: amount,
		label:  "courier",
	}
	mv, err := s.pay(ctx, tx, order, p)
	if err != nil {
		return nil, err
	}
	if mv.AlreadyApplied {
		return mv, nil
	}
	return mv, s.emitPayout(ctx, tx, order, p, mv)
}

// pay credits the earner and debits the platform escrow by the same amount.
func (s *service) pay(ctx context.Context, tx *gorm.DB, order *models.Order, p payout) (*wallets.Movement, error) {
	if p.amount <= 0 {
		return &wallets.Movement{AlreadyApplied: true}, nil
	}
	orderID := order.ID
	credit, err := s.wallets.Credit(ctx, tx, wallets.MovementInput{
		Owner:          p.owner,
		AmountCents:    p.amount,
		Kind:           p.kind,
		Description:    p.label + " earnings for order",
		OrderID:        &orderID,
		IdempotencyKey: string(p.kind) + ":" + order.ID.String(),
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.wallets.Debit(ctx, tx, wallets.MovementInput{
		Owner:          wallets.PlatformOwner(),
		AmountCents:    p.amount,
		Kind:           enums.LedgerKindPayout,
		Description:    p.label + " payout for order",
		OrderID:        &orderID,
		IdempotencyKey: "payout:" + p.label + ":" + order.ID.String(),
	}); err != nil {
		return nil, err
	}
	return credit, nil
}

func (s *service) emitPayout(ctx context.Context, tx *gorm.DB, order *models.Order, p payout, mv *wallets.Movement) error {
	if mv == nil || mv.WalletID == uuid.Nil {
		return nil
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayoutCommitted,
		AggregateType: enums.AggregateWallet,
		AggregateID:   mv.WalletID,
		Data: payloads.PayoutCommittedEvent{
			OrderID:     order.ID,
			WalletID:    mv.WalletID,
			OwnerType:   p.owner.Type,
			OwnerID:     p.owner.ID,
			Kind:        p.kind,
			AmountCents: p.amount,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout committed")
	}
	return nil
}
