package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	dbpkg "github.com/angelmondragon/foodrun-backend/pkg/db"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service defines operations that record and read ledger entries. Balance
// bookkeeping belongs to the wallets package, which calls RecordEntry inside
// its own transaction.
type Service interface {
	RecordEntry(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.LedgerEntry, bool, error)
	HasEntry(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, kind enums.LedgerEntryKind) (bool, error)
	EntriesForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.LedgerEntry, error)
}

type service struct {
	repo Repository
}

// EntryInput captures the immutable data a ledger entry requires.
type EntryInput struct {
	WalletID        uuid.UUID             `json:"wallet_id"`
	OrderID         *uuid.UUID            `json:"order_id,omitempty"`
	Type            enums.LedgerEntryType `json:"type"`
	Kind            enums.LedgerEntryKind `json:"kind"`
	AmountCents     int64                 `json:"amount_cents"`
	Description     string                `json:"description"`
	IdempotencyKey  string                `json:"idempotency_key"`
	ReversesEntryID *uuid.UUID            `json:"reverses_entry_id,omitempty"`
	Metadata        json.RawMessage       `json:"metadata,omitempty"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Validate rejects malformed entries before anything is written.
func (in EntryInput) Validate() error {
	if in.WalletID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	if !in.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", in.Type))
	}
	if !in.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry kind %q", in.Kind))
	}
	if in.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(in.Description) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	return nil
}

// ReversalOf builds the entry that undoes original on the same wallet.
func ReversalOf(original models.LedgerEntry, description string) EntryInput {
	id := original.ID
	return EntryInput{
		WalletID:        original.WalletID,
		OrderID:         original.OrderID,
		Type:            original.Type.Opposite(),
		Kind:            enums.LedgerKindReversal,
		AmountCents:     original.AmountCents,
		Description:     description,
		IdempotencyKey:  "reversal:" + original.ID.String(),
		ReversesEntryID: &id,
	}
}

// RecordEntry appends the entry unless one with the same idempotency key
// exists. The boolean result reports whether the entry was already applied,
// in which case the stored entry is returned and nothing is written.
func (s *service) RecordEntry(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.LedgerEntry, bool, error) {
	if tx == nil {
		return nil, false, fmt.Errorf("transaction required")
	}
	if err := input.Validate(); err != nil {
		return nil, false, err
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup ledger entry")
	}
	if existing != nil {
		if existing.WalletID != input.WalletID || existing.AmountCents != input.AmountCents || existing.Type != input.Type {
			return nil, false, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used for a different entry").
				WithDetails(map[string]any{"idempotency_key": input.IdempotencyKey})
		}
		return existing, true, nil
	}

	entry := &models.LedgerEntry{
		WalletID:        input.WalletID,
		OrderID:         input.OrderID,
		Type:            input.Type,
		Kind:            input.Kind,
		AmountCents:     input.AmountCents,
		Description:     input.Description,
		IdempotencyKey:  input.IdempotencyKey,
		ReversesEntryID: input.ReversesEntryID,
		Metadata:        input.Metadata,
	}
	if err := repo.Create(ctx, entry); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, "ledger entry applied concurrently")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ledger entry")
	}
	return entry, false, nil
}

func (s *service) HasEntry(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, kind enums.LedgerEntryKind) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order id is required")
	}
	if !kind.IsValid() {
		return false, fmt.Errorf("invalid ledger entry kind %q", kind)
	}

	entries, err := s.repo.WithTx(tx).ListByOrderID(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) EntriesForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.WithTx(tx).ListByOrderID(ctx, orderID)
}
