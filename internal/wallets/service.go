package wallets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/foodrun-backend/internal/ledger"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/money"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Owner identifies a wallet by the party that holds it.
type Owner struct {
	Type enums.WalletOwnerType `json:"owner_type"`
	ID   uuid.UUID             `json:"owner_id"`
}

// PlatformOwner is the single escrow wallet that collects captured payments
// and funds payouts. It is the only wallet allowed to go negative.
func PlatformOwner() Owner {
	return Owner{Type: enums.WalletOwnerPlatform, ID: uuid.Nil}
}

func (o Owner) validate() error {
	if !o.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet owner type %q", o.Type))
	}
	if o.ID == uuid.Nil && o.Type != enums.WalletOwnerPlatform {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet owner id is required")
	}
	return nil
}

// MovementInput describes one credit or debit.
type MovementInput struct {
	Owner          Owner
	AmountCents    int64
	Kind           enums.LedgerEntryKind
	Description    string
	OrderID        *uuid.UUID
	IdempotencyKey string
	Metadata       json.RawMessage
}

// Movement is the outcome of a credit or debit. AlreadyApplied is set when
// the idempotency key had been used before and nothing was written.
type Movement struct {
	WalletID       uuid.UUID           `json:"wallet_id"`
	Entry          *models.LedgerEntry `json:"entry"`
	AlreadyApplied bool                `json:"already_applied"`
}

// Balance splits a wallet balance into its settled and pending parts.
type Balance struct {
	WalletID       uuid.UUID             `json:"wallet_id"`
	OwnerType      enums.WalletOwnerType `json:"owner_type"`
	OwnerID        uuid.UUID             `json:"owner_id"`
	BalanceCents   int64                 `json:"balance_cents"`
	PendingCents   int64                 `json:"pending_cents"`
	AvailableCents int64                 `json:"available_cents"`
	TotalEarnings  int64                 `json:"total_earnings_cents"`
	TotalSales     int64                 `json:"total_sales_cents"`
	TotalFees      int64                 `json:"total_platform_fees_cents"`
	TotalWithdrawn int64                 `json:"total_withdrawn_cents"`
}

// Reconciliation compares the stored balance with the ledger.
type Reconciliation struct {
	WalletID    uuid.UUID             `json:"wallet_id"`
	OwnerType   enums.WalletOwnerType `json:"owner_type"`
	StoredCents int64                 `json:"stored_cents"`
	LedgerCents int64                 `json:"ledger_cents"`
	DriftCents  int64                 `json:"drift_cents"`
}

// EntryList is one page of a wallet's ledger.
type EntryList struct {
	Entries    []models.LedgerEntry `json:"entries"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// WithdrawInput requests a payout of settled funds to the owner.
type WithdrawInput struct {
	Owner       Owner
	AmountCents int64
	Reference   string
}

// Service is the only path that changes a wallet balance.
type Service interface {
	Ensure(ctx context.Context, tx *gorm.DB, owner Owner) (*models.Wallet, error)
	Credit(ctx context.Context, tx *gorm.DB, input MovementInput) (*Movement, error)
	Debit(ctx context.Context, tx *gorm.DB, input MovementInput) (*Movement, error)
	Reverse(ctx context.Context, tx *gorm.DB, original models.LedgerEntry, description string) (*Movement, error)
	RecordPlatformFee(ctx context.Context, tx *gorm.DB, amountCents int64) error
	GetBalance(ctx context.Context, owner Owner) (*Balance, error)
	Withdraw(ctx context.Context, input WithdrawInput) (*Movement, error)
	Reconcile(ctx context.Context, walletID uuid.UUID) (*Reconciliation, error)
	ListEntries(ctx context.Context, owner Owner, params pagination.Params) (*EntryList, error)
	ListWalletIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type service struct {
	repo       Repository
	ledgerRepo ledger.Repository
	ledger     ledger.Service
	tx         txRunner
	logg       *logger.Logger
}

// NewService wires the wallet aggregate.
func NewService(repo Repository, ledgerRepo ledger.Repository, ledgerSvc ledger.Service, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallets repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:       repo,
		ledgerRepo: ledgerRepo,
		ledger:     ledgerSvc,
		tx:         tx,
		logg:       logg,
	}, nil
}

// Ensure returns the owner's wallet, creating it on first use.
func (s *service) Ensure(ctx context.Context, tx *gorm.DB, owner Owner) (*models.Wallet, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindByOwner(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if wallet != nil {
		return wallet, nil
	}

	if err := repo.CreateIfMissing(ctx, &models.Wallet{
		OwnerType:     owner.Type,
		OwnerID:       owner.ID,
		AllowNegative: owner.Type == enums.WalletOwnerPlatform,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	wallet, err = repo.FindByOwner(ctx, owner)
	if err != nil || wallet == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
	}
	return wallet, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input MovementInput) (*Movement, error) {
	return s.move(ctx, tx, input, enums.LedgerEntryCredit)
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, input MovementInput) (*Movement, error) {
	return s.move(ctx, tx, input, enums.LedgerEntryDebit)
}

// Reverse undoes a committed entry with an entry of the opposite type that
// references it. Reversals bypass the negative-balance guard: the money being
// taken back was credited by the entry itself.
func (s *service) Reverse(ctx context.Context, tx *gorm.DB, original models.LedgerEntry, description string) (*Movement, error) {
	if original.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry to reverse is required")
	}
	if original.ReversesEntryID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reversal entries cannot be reversed")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}

	input := ledger.ReversalOf(original, description)
	entry, applied, err := s.ledger.RecordEntry(ctx, tx, input)
	if err != nil {
		return nil, err
	}
	result := &Movement{WalletID: original.WalletID, Entry: entry, AlreadyApplied: applied}
	if applied {
		s.logReplay(ctx, original.WalletID, input.IdempotencyKey)
		return result, nil
	}

	rollups := negate(rollupsFor(original.Kind, original.Type, original.AmountCents))
	delta := original.Type.Opposite().Sign() * original.AmountCents
	if err := s.repo.WithTx(tx).ApplyDelta(ctx, original.WalletID, delta, rollups); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply reversal")
	}
	s.logMovement(ctx, original.WalletID, entry)
	return result, nil
}

// RecordPlatformFee bumps the platform fee rollup. The fee itself is the part
// of the captured payment that stays on the platform wallet, so no entry is
// written.
func (s *service) RecordPlatformFee(ctx context.Context, tx *gorm.DB, amountCents int64) error {
	if amountCents <= 0 {
		return nil
	}
	wallet, err := s.Ensure(ctx, tx, PlatformOwner())
	if err != nil {
		return err
	}
	if err := s.repo.WithTx(tx).AddRollups(ctx, wallet.ID, map[string]int64{colTotalPlatformFees: amountCents}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record platform fee")
	}
	return nil
}

func (s *service) move(ctx context.Context, tx *gorm.DB, input MovementInput, typ enums.LedgerEntryType) (*Movement, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if err := input.Owner.validate(); err != nil {
		return nil, err
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if typ == enums.LedgerEntryDebit && input.Owner.Type != enums.WalletOwnerPlatform {
		// a debit can never create a wallet with a negative balance
		existing, err := s.repo.WithTx(tx).FindByOwner(ctx, input.Owner)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
		}
		if existing == nil {
			return nil, insufficientFunds(input.Owner, input.AmountCents, 0)
		}
	}

	wallet, err := s.Ensure(ctx, tx, input.Owner)
	if err != nil {
		return nil, err
	}

	entry, applied, err := s.ledger.RecordEntry(ctx, tx, ledger.EntryInput{
		WalletID:       wallet.ID,
		OrderID:        input.OrderID,
		Type:           typ,
		Kind:           input.Kind,
		AmountCents:    input.AmountCents,
		Description:    input.Description,
		IdempotencyKey: input.IdempotencyKey,
		Metadata:       input.Metadata,
	})
	if err != nil {
		return nil, err
	}
	result := &Movement{WalletID: wallet.ID, Entry: entry, AlreadyApplied: applied}
	if applied {
		s.logReplay(ctx, wallet.ID, input.IdempotencyKey)
		return result, nil
	}

	repo := s.repo.WithTx(tx)
	rollups := rollupsFor(input.Kind, typ, input.AmountCents)
	if typ == enums.LedgerEntryCredit {
		if err := repo.ApplyDelta(ctx, wallet.ID, input.AmountCents, rollups); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply credit")
		}
	} else {
		ok, err := repo.ApplyDebit(ctx, wallet.ID, input.AmountCents, rollups)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply debit")
		}
		if !ok {
			return nil, insufficientFunds(input.Owner, input.AmountCents, wallet.BalanceCents)
		}
	}

	s.logMovement(ctx, wallet.ID, entry)
	return result, nil
}

func (s *service) GetBalance(ctx context.Context, owner Owner) (*Balance, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	wallet, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if wallet == nil {
		return &Balance{OwnerType: owner.Type, OwnerID: owner.ID}, nil
	}
	return s.balanceOf(ctx, s.ledgerRepo, wallet)
}

func (s *service) balanceOf(ctx context.Context, ledgerRepo ledger.Repository, wallet *models.Wallet) (*Balance, error) {
	pending, err := ledgerRepo.SumPendingByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum pending entries")
	}
	available := wallet.BalanceCents
	if pending > 0 {
		available -= pending
	}
	if available < 0 && !wallet.AllowNegative {
		available = 0
	}
	return &Balance{
		WalletID:       wallet.ID,
		OwnerType:      wallet.OwnerType,
		OwnerID:        wallet.OwnerID,
		BalanceCents:   wallet.BalanceCents,
		PendingCents:   pending,
		AvailableCents: available,
		TotalEarnings:  wallet.TotalEarningsCents,
		TotalSales:     wallet.TotalSalesCents,
		TotalFees:      wallet.TotalPlatformFeesCents,
		TotalWithdrawn: wallet.TotalWithdrawnCents,
	}, nil
}

// Withdraw pays out settled funds. Money tied to orders that are still in
// flight cannot be withdrawn.
func (s *service) Withdraw(ctx context.Context, input WithdrawInput) (*Movement, error) {
	if err := input.Owner.validate(); err != nil {
		return nil, err
	}
	switch input.Owner.Type {
	case enums.WalletOwnerRestaurant, enums.WalletOwnerCourier, enums.WalletOwnerAdmin:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s wallets cannot withdraw", input.Owner.Type))
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal reference is required")
	}

	var result *Movement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		wallet, err := s.repo.WithTx(tx).LockByOwner(ctx, input.Owner)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
		}
		if wallet == nil {
			return insufficientFunds(input.Owner, input.AmountCents, 0)
		}

		key := "withdrawal:" + wallet.ID.String() + ":" + reference
		existing, err := s.ledgerRepo.WithTx(tx).FindByIdempotencyKey(ctx, key)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup withdrawal")
		}
		if existing == nil {
			balance, err := s.balanceOf(ctx, s.ledgerRepo.WithTx(tx), wallet)
			if err != nil {
				return err
			}
			if input.AmountCents > balance.AvailableCents {
				return pkgerrors.New(pkgerrors.CodeConflict, "insufficient available balance").
					WithDetails(map[string]any{
						"requested": money.Format(input.AmountCents),
						"available": money.Format(balance.AvailableCents),
					})
			}
		}

		result, err = s.Debit(ctx, tx, MovementInput{
			Owner:          input.Owner,
			AmountCents:    input.AmountCents,
			Kind:           enums.LedgerKindWithdrawal,
			Description:    "withdrawal " + reference,
			IdempotencyKey: key,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reconcile compares the stored balance to the entry sum. Drift is reported
// as a reconciliation error alongside the measured values; it is never
// corrected automatically.
func (s *service) Reconcile(ctx context.Context, walletID uuid.UUID) (*Reconciliation, error) {
	if walletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	wallet, err := s.repo.FindByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	sum, err := s.ledgerRepo.SumByWallet(ctx, walletID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger")
	}

	rec := &Reconciliation{
		WalletID:    walletID,
		OwnerType:   wallet.OwnerType,
		StoredCents: wallet.BalanceCents,
		LedgerCents: sum,
		DriftCents:  wallet.BalanceCents - sum,
	}
	if rec.DriftCents != 0 {
		return rec, pkgerrors.New(pkgerrors.CodeReconciliation, "wallet balance does not match ledger").WithDetails(rec)
	}
	return rec, nil
}

func (s *service) ListEntries(ctx context.Context, owner Owner, params pagination.Params) (*EntryList, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	wallet, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if wallet == nil {
		return &EntryList{Entries: []models.LedgerEntry{}}, nil
	}
	entries, next, err := s.ledgerRepo.ListByWallet(ctx, wallet.ID, params)
	if err != nil {
		return nil, pkgerrors.WrapUntyped(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	return &EntryList{Entries: entries, NextCursor: next}, nil
}

func (s *service) ListWalletIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	return s.repo.ListIDs(ctx, after, pagination.NormalizeLimit(limit))
}

func (s *service) logMovement(ctx context.Context, walletID uuid.UUID, entry *models.LedgerEntry) {
	if s.logg == nil || entry == nil {
		return
	}
	logCtx := s.logg.WithFields(s.logg.WithWalletID(ctx, walletID.String()), map[string]any{
		"entry_id":     entry.ID.String(),
		"entry_type":   entry.Type,
		"entry_kind":   entry.Kind,
		"amount_cents": entry.AmountCents,
	})
	s.logg.Info(logCtx, "ledger entry applied")
}

func (s *service) logReplay(ctx context.Context, walletID uuid.UUID, key string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(s.logg.WithWalletID(ctx, walletID.String()), map[string]any{
		"idempotency_key": key,
		"replay":          true,
	})
	s.logg.Info(logCtx, "ledger entry already applied")
}

func insufficientFunds(owner Owner, requested, balance int64) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "insufficient wallet balance").
		WithDetails(map[string]any{
			"owner_type": owner.Type,
			"owner_id":   owner.ID,
			"requested":  money.Format(requested),
			"balance":    money.Format(balance),
		})
}
