package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/foodrun-backend/internal/commission"
	"github.com/angelmondragon/foodrun-backend/internal/notifications"
	"github.com/angelmondragon/foodrun-backend/internal/restaurants"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/money"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives an order through its lifecycle. Every operation runs in one
// transaction and every status write is conditional on the status it read.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	SetDeliveryFee(ctx context.Context, orderID uuid.UUID, feeCents int64, actor Actor) (*models.Order, error)
	Accept(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	StartPreparing(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	MarkReady(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	AssignCourier(ctx context.Context, orderID, courierID uuid.UUID) (*models.Order, error)
	PickUp(ctx context.Context, orderID, courierID uuid.UUID) (*models.Order, error)
	Deliver(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	CommitPayout(ctx context.Context, orderID uuid.UUID) (*PayoutResult, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*CancelResult, error)
	Rate(ctx context.Context, orderID, customerID uuid.UUID, input RatingInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListForActor(ctx context.Context, actor Actor, status *enums.OrderStatus, params pagination.Params) (*OrderList, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outbox.Emitter
	notifier  notifications.Notifier
	wallets   WalletMover
	refunds   Refunder
	calc      *commission.Calculator
	referrals restaurants.ReferralRepository
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order lifecycle service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	emitter outbox.Emitter,
	notifier notifications.Notifier,
	walletSvc WalletMover,
	refunder Refunder,
	calc *commission.Calculator,
	referrals restaurants.ReferralRepository,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if refunder == nil {
		return nil, fmt.Errorf("refunder required")
	}
	if calc == nil {
		return nil, fmt.Errorf("commission calculator required")
	}
	if referrals == nil {
		return nil, fmt.Errorf("referral repository required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    emitter,
		notifier:  notifier,
		wallets:   walletSvc,
		refunds:   refunder,
		calc:      calc,
		referrals: referrals,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var (
		subtotal  int64
		itemCount int
		items     = make([]models.OrderItem, 0, len(input.Items))
	)
	for _, item := range input.Items {
		line := item.PriceCents * int64(item.Quantity)
		subtotal += line
		itemCount += item.Quantity
		items = append(items, models.OrderItem{
			ProductID:      item.ProductID,
			OwnerID:        item.OwnerID,
			Name:           strings.TrimSpace(item.Name),
			Quantity:       item.Quantity,
			UnitPriceCents: item.PriceCents,
			LineTotalCents: line,
		})
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		referrer, err := s.referrals.WithTx(tx).ReferrerFor(ctx, input.RestaurantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant referrer")
		}

		// the fee is not known yet; check the subtotal side of the split
		if _, err := s.calc.Calculate(commission.Input{
			SubtotalCents: subtotal,
			DeliveryType:  enums.DeliveryTypePickup,
			ItemCount:     itemCount,
			Referral:      referrer != nil,
		}); err != nil {
			return err
		}

		order := &models.Order{
			CustomerID:      input.CustomerID,
			RestaurantID:    input.RestaurantID,
			ReferrerAdminID: referrer,
			DeliveryType:    input.DeliveryType,
			Status:          enums.OrderStatusPending,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   enums.PaymentStatusUnpaid,
			SubtotalCents:   subtotal,
			TotalCents:      subtotal,
			ItemCount:       itemCount,
			DeliveryAddress: input.DeliveryAddress,
			Notes:           input.Notes,
			Items:           items,
		}
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.CustomerID, Role: enums.RoleCustomer},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				CustomerID:    order.CustomerID,
				RestaurantID:  order.RestaurantID,
				DeliveryType:  order.DeliveryType,
				SubtotalCents: order.SubtotalCents,
				ItemCount:     order.ItemCount,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}
		if err := s.notify(ctx, tx, enums.RoleRestaurant, order.RestaurantID, enums.NotificationOrderCreated, order, map[string]any{
			"subtotal": money.Format(order.SubtotalCents),
			"items":    order.ItemCount,
		}); err != nil {
			return err
		}

		created, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, created, "", enums.OrderStatusPending)
	return created, nil
}

// SetDeliveryFee records the restaurant's fee quote. It can be written once,
// while the order is still pending.
func (s *service) SetDeliveryFee(ctx context.Context, orderID uuid.UUID, feeCents int64, actor Actor) (*models.Order, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := authorizeRestaurant(actor, order); err != nil {
			return err
		}
		if !order.IsDelivery() {
			return pkgerrors.New(pkgerrors.CodeValidation, "pickup orders have no delivery fee")
		}
		if err := s.calc.ValidateDeliveryFee(order.DeliveryType, feeCents); err != nil {
			return err
		}
		if order.DeliveryFeeSetBy != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery fee already set")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery fee can only be set while the order is pending")
		}

		ok, err := repo.SetDeliveryFee(ctx, order.ID, feeCents, actor.UserID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set delivery fee")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery fee already set")
		}

		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return s.notify(ctx, tx, enums.RoleCustomer, updated.CustomerID, enums.NotificationOrderStatusChanged, updated, map[string]any{
			"delivery_fee": money.Format(updated.DeliveryFeeCents),
			"total":        money.Format(updated.TotalCents),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Accept commits the delivery fee; the total is final from here on.
func (s *service) Accept(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.advance(ctx, orderID, actor, enums.OrderStatusAccepted, transitionHooks{
		authorize: func(order *models.Order) error { return authorizeRestaurant(actor, order) },
		prepare: func(order *models.Order, at time.Time) (map[string]any, error) {
			if order.IsDelivery() && order.DeliveryFeeSetBy == nil {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot accept before the delivery fee is set")
			}
			return map[string]any{"delivery_fee_committed_at": at}, nil
		},
	})
}

func (s *service) StartPreparing(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.advance(ctx, orderID, actor, enums.OrderStatusPreparing, transitionHooks{
		authorize: func(order *models.Order) error { return authorizeRestaurant(actor, order) },
	})
}

func (s *service) MarkReady(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.advance(ctx, orderID, actor, enums.OrderStatusReady, transitionHooks{
		authorize: func(order *models.Order) error { return authorizeRestaurant(actor, order) },
	})
}

// AssignCourier lets a courier claim a delivery order. The first claim wins;
// the same courier claiming again is a no-op.
func (s *service) AssignCourier(ctx context.Context, orderID, courierID uuid.UUID) (*models.Order, error) {
	if courierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var assigned *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !order.IsDelivery() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup orders have no courier")
		}
		if order.CourierID != nil {
			if *order.CourierID == courierID {
				assigned = order
				return nil
			}
			return courierTaken(order)
		}
		if order.Status.IsTerminal() || order.Status == enums.OrderStatusOutForDelivery {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot assign a courier to a %s order", order.Status))
		}

		ok, err := repo.AssignCourier(ctx, order.ID, courierID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign courier")
		}
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if !ok {
			if current.CourierID != nil && *current.CourierID == courierID {
				assigned = current
				return nil
			}
			if current.CourierID != nil {
				return courierTaken(current)
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot assign a courier to a %s order", current.Status))
		}

		assigned = current
		return s.notify(ctx, tx, enums.RoleCustomer, current.CustomerID, enums.NotificationOrderStatusChanged, current, map[string]any{
			"courier_assigned": true,
		})
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// PickUp hands the order to its courier and books the courier's share. The
// share stays pending until the order is delivered.
func (s *service) PickUp(ctx context.Context, orderID, courierID uuid.UUID) (*models.Order, error) {
	actor := Actor{UserID: courierID, Role: enums.RoleCourier}
	return s.advance(ctx, orderID, actor, enums.OrderStatusOutForDelivery, transitionHooks{
		authorize: func(order *models.Order) error {
			if order.CourierID == nil {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot pick up before a courier is assigned")
			}
			if *order.CourierID != courierID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to another courier")
			}
			return nil
		},
		after: func(tx *gorm.DB, order *models.Order) error {
			split, err := s.calc.Calculate(splitInput(order))
			if err != nil {
				return err
			}
			_, err = s.payCourier(ctx, tx, order, split.CourierEarnings)
			return err
		},
	})
}

// Deliver completes the order and commits its payout in the same transaction.
func (s *service) Deliver(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	return s.advance(ctx, orderID, actor, enums.OrderStatusDelivered, transitionHooks{
		authorize: func(order *models.Order) error {
			if actor.Role.IsStaff() {
				return nil
			}
			if order.IsDelivery() {
				if actor.Role == enums.RoleCourier && order.CourierID != nil && *order.CourierID == actor.UserID {
					return nil
				}
				return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned courier can deliver this order")
			}
			return authorizeRestaurant(actor, order)
		},
		after: func(tx *gorm.DB, order *models.Order) error {
			_, err := s.commitPayout(ctx, tx, order)
			return err
		},
	})
}

// CommitPayout settles a delivered order. It is safe to call repeatedly:
// only the first call writes.
func (s *service) CommitPayout(ctx context.Context, orderID uuid.UUID) (*PayoutResult, error) {
	var result *PayoutResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := loadOrder(ctx, s.repo.WithTx(tx), orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot commit payout before delivered")
		}
		result, err = s.commitPayout(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*CancelResult, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)

	var result *CancelResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			result = &CancelResult{Order: order, AlreadyCancelled: true}
			return nil
		}
		if err := authorizeCancel(actor, order); err != nil {
			return err
		}
		if err := CheckTransition(order.Status, enums.OrderStatusCancelled, order.DeliveryType); err != nil {
			return err
		}

		from := order.Status
		at := s.now()
		updates := map[string]any{
			"cancelled_at":      at,
			"cancelled_by":      actor.UserID,
			"cancelled_by_role": actor.Role,
		}
		if reason != "" {
			updates["cancel_reason"] = reason
		}
		ok, err := repo.TransitionStatus(ctx, order.ID, from, enums.OrderStatusCancelled, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if !ok {
			if current.Status == enums.OrderStatusCancelled {
				result = &CancelResult{Order: current, AlreadyCancelled: true}
				return nil
			}
			return statusRace(current, from)
		}

		refund, err := s.refunds.Refund(ctx, tx, current)
		if err != nil {
			return err
		}
		if refund.CustomerRefundCents > 0 {
			if err := repo.MarkRefunded(ctx, current.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order refunded")
			}
			if current, err = repo.FindByID(ctx, current.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   current.ID,
			Actor:         actorRef(actor),
			Data: payloads.OrderCancelledEvent{
				OrderID:       current.ID,
				PreviousState: from,
				CancelledBy:   actor.UserID,
				Role:          actor.Role,
				Reason:        reason,
				RefundCents:   refund.CustomerRefundCents,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order cancelled")
		}
		if err := s.notifyParties(ctx, tx, current, actor, map[string]any{
			"status": enums.OrderStatusCancelled,
			"reason": reason,
		}); err != nil {
			return err
		}

		result = &CancelResult{
			Order:               current,
			Reversals:           len(refund.Reversals),
			CustomerRefundCents: refund.CustomerRefundCents,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.AlreadyCancelled {
		s.logTransition(ctx, result.Order, "", enums.OrderStatusCancelled)
	}
	return result, nil
}

// Rate stores the customer's scores once the order is delivered.
func (s *service) Rate(ctx context.Context, orderID, customerID uuid.UUID, input RatingInput) (*models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ratings := input.Ratings.Normalize()
	if field, err := ratings.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).
			WithDetails(map[string]any{"field": field})
	}

	var rated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.CustomerID != customerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the customer can rate this order")
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot rate before delivered")
		}
		if order.RatedAt != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already rated")
		}
		ok, err := repo.SetRating(ctx, order.ID, customerID, ratings, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save rating")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already rated")
		}
		rated, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rated, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	order, err := loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return order, nil
}

func (s *service) ListForActor(ctx context.Context, actor Actor, status *enums.OrderStatus, params pagination.Params) (*OrderList, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	filter := ListFilter{Status: status}
	id := actor.UserID
	switch {
	case actor.Role == enums.RoleCustomer:
		filter.CustomerID = &id
	case actor.Role == enums.RoleRestaurant:
		filter.RestaurantID = &id
	case actor.Role == enums.RoleCourier:
		filter.CourierID = &id
	case actor.Role.IsStaff():
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list orders")
	}

	orders, next, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.WrapUntyped(pkgerrors.CodeDependency, err, "list orders")
	}
	return &OrderList{Orders: orders, NextCursor: next}, nil
}

type transitionHooks struct {
	authorize func(order *models.Order) error
	prepare   func(order *models.Order, at time.Time) (map[string]any, error)
	after     func(tx *gorm.DB, order *models.Order) error
}

// advance runs one forward transition: authorize, check the table, write the
// status conditionally, run side effects, then emit.
func (s *service) advance(ctx context.Context, orderID uuid.UUID, actor Actor, to enums.OrderStatus, hooks transitionHooks) (*models.Order, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var (
		updated *models.Order
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if hooks.authorize != nil {
			if err := hooks.authorize(order); err != nil {
				return err
			}
		}
		if err := CheckTransition(order.Status, to, order.DeliveryType); err != nil {
			return err
		}

		at := s.now()
		updates := map[string]any{}
		if hooks.prepare != nil {
			if updates, err = hooks.prepare(order, at); err != nil {
				return err
			}
		}
		if column := stageTimestamp(to); column != "" {
			updates[column] = at
		}

		from = order.Status
		ok, err := repo.TransitionStatus(ctx, order.ID, from, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if !ok {
			return statusRace(current, from)
		}

		if hooks.after != nil {
			if err := hooks.after(tx, current); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   current.ID,
			Actor:         actorRef(actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    current.ID,
				From:       from,
				To:         to,
				CourierID:  current.CourierID,
				TotalCents: current.TotalCents,
				ChangedAt:  at,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status change")
		}
		if err := s.notifyParties(ctx, tx, current, actor, map[string]any{"status": to}); err != nil {
			return err
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, updated, from, to)
	return updated, nil
}

func (s *service) notify(ctx context.Context, tx *gorm.DB, role enums.Role, recipient uuid.UUID, kind enums.NotificationKind, order *models.Order, data map[string]any) error {
	orderID := order.ID
	return s.notifier.Request(ctx, tx, notifications.Request{
		RecipientType: role,
		RecipientID:   recipient,
		Kind:          kind,
		OrderID:       &orderID,
		Data:          data,
	})
}

// notifyParties tells every party of the order except the one who acted.
func (s *service) notifyParties(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, data map[string]any) error {
	parties := []struct {
		role enums.Role
		id   *uuid.UUID
	}{
		{enums.RoleCustomer, &order.CustomerID},
		{enums.RoleRestaurant, &order.RestaurantID},
		{enums.RoleCourier, order.CourierID},
	}
	for _, party := range parties {
		if party.id == nil || *party.id == actor.UserID {
			continue
		}
		if err := s.notify(ctx, tx, party.role, *party.id, enums.NotificationOrderStatusChanged, order, data); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) logTransition(ctx context.Context, order *models.Order, from, to enums.OrderStatus) {
	if s.logg == nil || order == nil {
		return
	}
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"from": from,
		"to":   to,
	})
	s.logg.Info(logCtx, "order status changed")
}

func loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func authorizeRestaurant(actor Actor, order *models.Order) error {
	if actor.Role.IsStaff() {
		return nil
	}
	if actor.Role == enums.RoleRestaurant && actor.UserID == order.RestaurantID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to restaurant")
}

func authorizeCancel(actor Actor, order *models.Order) error {
	switch {
	case actor.Role.IsStaff():
		return nil
	case actor.Role == enums.RoleCustomer:
		if actor.UserID != order.CustomerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "customers can only cancel pending orders").
				WithDetails(map[string]any{"status": order.Status})
		}
		return nil
	case actor.Role == enums.RoleRestaurant:
		return authorizeRestaurant(actor, order)
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s cannot cancel orders", actor.Role))
}

func canView(actor Actor, order *models.Order) bool {
	if actor.Role.IsStaff() {
		return true
	}
	switch actor.Role {
	case enums.RoleCustomer:
		return order.CustomerID == actor.UserID
	case enums.RoleRestaurant:
		return order.RestaurantID == actor.UserID
	case enums.RoleCourier:
		return order.CourierID != nil && *order.CourierID == actor.UserID
	}
	return false
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func courierTaken(order *models.Order) error {
	return pkgerrors.New(pkgerrors.CodeConcurrency, "order already assigned to another courier").
		WithDetails(map[string]any{"order_id": order.ID})
}

func statusRace(current *models.Order, expected enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeConcurrency, "order status changed concurrently").
		WithDetails(map[string]any{"expected": expected, "actual": current.Status})
}
