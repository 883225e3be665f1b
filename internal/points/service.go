package points

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/foodrun-backend/internal/notifications"
	"github.com/angelmondragon/foodrun-backend/pkg/config"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DeductInput is a staff penalty against a restaurant or courier.
type DeductInput struct {
	OwnerType      enums.PointsOwnerType `json:"owner_type" validate:"required"`
	OwnerID        uuid.UUID             `json:"owner_id" validate:"required"`
	Amount         int                   `json:"amount" validate:"required,gt=0"`
	Reason         string                `json:"reason" validate:"required"`
	TicketID       *uuid.UUID            `json:"ticket_id,omitempty"`
	OrderID        *uuid.UUID            `json:"order_id,omitempty"`
	AdminID        uuid.UUID             `json:"-"`
	AdminRole      enums.Role            `json:"-"`
	IdempotencyKey string                `json:"idempotency_key,omitempty"`
}

// DeductResult is the outcome of a deduction, or of its earlier application
// when AlreadyApplied is set.
type DeductResult struct {
	Success        bool      `json:"success"`
	AccountID      uuid.UUID `json:"account_id"`
	Applied        int       `json:"applied"`
	NewBalance     int       `json:"new_balance"`
	IsSuspended    bool      `json:"is_suspended"`
	IsWarning      bool      `json:"is_warning"`
	SuspendedNow   bool      `json:"suspended_now"`
	AlreadyApplied bool      `json:"already_applied"`
}

// DeductionList is one page of an account's history.
type DeductionList struct {
	Deductions []models.PointsDeduction `json:"deductions"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

// Service owns every change to a points balance.
type Service interface {
	DeductPoints(ctx context.Context, input DeductInput) (*DeductResult, error)
	GetAccount(ctx context.Context, ownerType enums.PointsOwnerType, ownerID uuid.UUID) (*models.PointsAccount, error)
	History(ctx context.Context, ownerType enums.PointsOwnerType, ownerID uuid.UUID, params pagination.Params) (*DeductionList, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outbox.Emitter
	notifier notifications.Notifier
	cfg      config.PointsConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, notifier notifications.Notifier, cfg config.PointsConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("points repository required")
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
	if cfg.Initial <= 0 {
		return nil, fmt.Errorf("initial points must be positive")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   emitter,
		notifier: notifier,
		cfg:      cfg,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// deductionKey scopes a penalty to the ticket or order it came from, so a
// retried admin action cannot deduct twice.
func deductionKey(input DeductInput, reason string) (string, error) {
	norm := strings.ToLower(reason)
	switch {
	case input.TicketID != nil && *input.TicketID != uuid.Nil:
		return "ticket:" + input.TicketID.String() + ":" + norm, nil
	case input.OrderID != nil && *input.OrderID != uuid.Nil:
		return "order:" + input.OrderID.String() + ":" + norm, nil
	case strings.TrimSpace(input.IdempotencyKey) != "":
		return "key:" + strings.TrimSpace(input.IdempotencyKey), nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "a ticket, order or idempotency key is required")
}

func (s *service) DeductPoints(ctx context.Context, input DeductInput) (*DeductResult, error) {
	if !input.OwnerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid owner type %q", input.OwnerType))
	}
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity is required")
	}
	key, err := deductionKey(input, reason)
	if err != nil {
		return nil, err
	}

	var result *DeductResult
	var account *models.PointsAccount
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		acct, err := s.ensure(ctx, repo, input.OwnerType, input.OwnerID, true)
		if err != nil {
			return err
		}
		account = acct

		deduction := &models.PointsDeduction{
			AccountID:      acct.ID,
			Requested:      input.Amount,
			BalanceAfter:   acct.Points,
			Reason:         reason,
			TicketID:       input.TicketID,
			OrderID:        input.OrderID,
			AdminID:        input.AdminID,
			IdempotencyKey: key,
		}
		claimed, err := repo.ClaimDeduction(ctx, deduction)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record deduction")
		}
		if !claimed {
			prior, err := repo.FindDeduction(ctx, acct.ID, key)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prior deduction")
			}
			result = &DeductResult{
				Success:        true,
				AccountID:      acct.ID,
				Applied:        prior.Applied,
				NewBalance:     prior.BalanceAfter,
				IsSuspended:    acct.SuspendedAt != nil,
				IsWarning:      prior.Warning,
				AlreadyApplied: true,
			}
			return nil
		}

		if err := repo.Deduct(ctx, acct.ID, input.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deduct points")
		}
		after, err := repo.FindByOwner(ctx, input.OwnerType, input.OwnerID)
		if err != nil || after == nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload points account")
		}
		account = after

		res := &DeductResult{
			Success:    true,
			AccountID:  acct.ID,
			Applied:    acct.Points - after.Points,
			NewBalance: after.Points,
		}
		switch {
		case after.Points <= s.cfg.SuspensionThreshold:
			at := s.now()
			suspended, err := repo.MarkSuspended(ctx, acct.ID, at)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "suspend account")
			}
			res.IsSuspended = true
			if suspended {
				res.SuspendedNow = true
				if err := s.onSuspended(ctx, tx, after, at); err != nil {
					return err
				}
			}
		case after.SuspendedAt != nil:
			res.IsSuspended = true
		case after.Points <= s.cfg.WarningThreshold:
			if err := repo.MarkWarned(ctx, acct.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark account warned")
			}
			res.IsWarning = true
			if err := s.notifier.Request(ctx, tx, notifications.Request{
				RecipientType: recipientRole(after.OwnerType),
				RecipientID:   after.OwnerID,
				Kind:          enums.NotificationPointsWarning,
				OrderID:       input.OrderID,
				Data:          map[string]any{"points": after.Points, "threshold": s.cfg.SuspensionThreshold},
			}); err != nil {
				return err
			}
		}

		deduction.Applied = res.Applied
		deduction.BalanceAfter = res.NewBalance
		deduction.Suspended = res.SuspendedNow
		deduction.Warning = res.IsWarning
		if err := repo.SaveOutcome(ctx, deduction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save deduction outcome")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPointsDeducted,
			AggregateType: enums.AggregatePointsAccount,
			AggregateID:   acct.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: input.AdminRole},
			Data: payloads.PointsDeductedEvent{
				AccountID:  acct.ID,
				OwnerType:  after.OwnerType,
				OwnerID:    after.OwnerID,
				Applied:    res.Applied,
				NewBalance: res.NewBalance,
				Reason:     reason,
				IsWarning:  res.IsWarning,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit points deducted")
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil && account != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"points_account_id": account.ID.String(),
			"owner_type":        string(account.OwnerType),
			"owner_id":          account.OwnerID.String(),
			"applied":           result.Applied,
			"balance":           result.NewBalance,
			"suspended":         result.IsSuspended,
			"replay":            result.AlreadyApplied,
		})
		if result.SuspendedNow {
			s.logg.Warn(logCtx, "account suspended by points deduction")
		} else {
			s.logg.Info(logCtx, "points deducted")
		}
	}
	return result, nil
}

func (s *service) onSuspended(ctx context.Context, tx *gorm.DB, account *models.PointsAccount, at time.Time) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAccountSuspended,
		AggregateType: enums.AggregatePointsAccount,
		AggregateID:   account.ID,
		Data: payloads.AccountSuspendedEvent{
			AccountID:   account.ID,
			OwnerType:   account.OwnerType,
			OwnerID:     account.OwnerID,
			Points:      account.Points,
			SuspendedAt: at,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit account suspended")
	}
	return s.notifier.Request(ctx, tx, notifications.Request{
		RecipientType: recipientRole(account.OwnerType),
		RecipientID:   account.OwnerID,
		Kind:          enums.NotificationAccountSuspended,
		Data:          map[string]any{"points": account.Points},
	})
}

// GetAccount opens the account at the initial balance on first access.
func (s *service) GetAccount(ctx context.Context, ownerType enums.PointsOwnerType, ownerID uuid.UUID) (*models.PointsAccount, error) {
	if !ownerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid owner type %q", ownerType))
	}
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	var account *models.PointsAccount
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		acct, err := s.ensure(ctx, s.repo.WithTx(tx), ownerType, ownerID, false)
		account = acct
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *service) History(ctx context.Context, ownerType enums.PointsOwnerType, ownerID uuid.UUID, params pagination.Params) (*DeductionList, error) {
	if !ownerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid owner type %q", ownerType))
	}
	account, err := s.repo.FindByOwner(ctx, ownerType, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load points account")
	}
	if account == nil {
		return &DeductionList{Deductions: []models.PointsDeduction{}}, nil
	}
	rows, next, err := s.repo.ListDeductions(ctx, account.ID, params)
	if err != nil {
		return nil, pkgerrors.WrapUntyped(pkgerrors.CodeDependency, err, "list deductions")
	}
	return &DeductionList{Deductions: rows, NextCursor: next}, nil
}

func (s *service) ensure(ctx context.Context, repo Repository, ownerType enums.PointsOwnerType, ownerID uuid.UUID, lock bool) (*models.PointsAccount, error) {
	if err := repo.CreateIfMissing(ctx, &models.PointsAccount{
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Points:    s.cfg.Initial,
		Standing:  enums.PointsStandingActive,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open points account")
	}
	find := repo.FindByOwner
	if lock {
		find = repo.LockByOwner
	}
	account, err := find(ctx, ownerType, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load points account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "points account missing after open")
	}
	return account, nil
}

func recipientRole(ownerType enums.PointsOwnerType) enums.Role {
	if ownerType == enums.PointsOwnerCourier {
		return enums.RoleCourier
	}
	return enums.RoleRestaurant
}
