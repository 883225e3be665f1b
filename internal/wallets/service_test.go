package wallets

import (
	"context"
	"testing"

	"github.com/angelmondragon/foodrun-backend/internal/ledger"
	"github.com/angelmondragon/foodrun-backend/pkg/db"
	"github.com/angelmondragon/foodrun-backend/pkg/db/dbtest"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	conn   *gorm.DB
	client *db.Client
	svc    Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.FromConn(conn)
	ledgerRepo := ledger.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), ledgerRepo, ledgerSvc, client, nil)
	require.NoError(t, err)
	return &harness{conn: conn, client: client, svc: svc}
}

func (h *harness) credit(t *testing.T, input MovementInput) *Movement {
	t.Helper()
	var out *Movement
	require.NoError(t, h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		out, err = h.svc.Credit(context.Background(), tx, input)
		return err
	}))
	return out
}

func (h *harness) wallet(t *testing.T, owner Owner) models.Wallet {
	t.Helper()
	var w models.Wallet
	require.NoError(t, h.conn.Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID).First(&w).Error)
	return w
}

func (h *harness) order(t *testing.T, status enums.OrderStatus) uuid.UUID {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		RestaurantID:  uuid.New(),
		DeliveryType:  enums.DeliveryTypeDelivery,
		Status:        status,
		PaymentMethod: enums.PaymentMethodOnline,
		PaymentStatus: enums.PaymentStatusCaptured,
		SubtotalCents: 5000,
		TotalCents:    5000,
		ItemCount:     1,
	}
	require.NoError(t, h.conn.Create(order).Error)
	return order.ID
}

func courier() Owner {
	return Owner{Type: enums.WalletOwnerCourier, ID: uuid.New()}
}

func TestCredit_CreatesWalletAndAppliesRollups(t *testing.T) {
	h := newHarness(t)
	owner := courier()

	mv := h.credit(t, MovementInput{
		Owner:          owner,
		AmountCents:    625,
		Kind:           enums.LedgerKindCourierEarnings,
		Description:    "delivery share",
		IdempotencyKey: "k1",
	})
	require.False(t, mv.AlreadyApplied)
	require.NotNil(t, mv.Entry)

	w := h.wallet(t, owner)
	assert.Equal(t, int64(625), w.BalanceCents)
	assert.Equal(t, int64(625), w.TotalEarningsCents)
	assert.False(t, w.AllowNegative)
	assert.Equal(t, mv.WalletID, w.ID)
}

func TestCredit_SameKeyAppliesOnce(t *testing.T) {
	h := newHarness(t)
	owner := courier()
	input := MovementInput{
		Owner:          owner,
		AmountCents:    1000,
		Kind:           enums.LedgerKindRestaurantEarnings,
		Description:    "payout",
		IdempotencyKey: "payout:1",
	}

	h.credit(t, input)
	second := h.credit(t, input)
	assert.True(t, second.AlreadyApplied)

	w := h.wallet(t, owner)
	assert.Equal(t, int64(1000), w.BalanceCents)

	var count int64
	require.NoError(t, h.conn.Model(&models.LedgerEntry{}).Where("wallet_id = ?", w.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCredit_RejectsNonPositiveAmount(t *testing.T) {
	h := newHarness(t)
	err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := h.svc.Credit(context.Background(), tx, MovementInput{
			Owner: courier(), AmountCents: 0, Kind: enums.LedgerKindCourierEarnings,
			Description: "zero", IdempotencyKey: "zero",
		})
		return err
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDebit_CannotOverdraw(t *testing.T) {
	h := newHarness(t)
	owner := courier()
	h.credit(t, MovementInput{
		Owner: owner, AmountCents: 500, Kind: enums.LedgerKindCourierEarnings,
		Description: "earned", IdempotencyKey: "earn",
	})

	err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := h.svc.Debit(context.Background(), tx, MovementInput{
			Owner: owner, AmountCents: 501, Kind: enums.LedgerKindWithdrawal,
			Description: "too much", IdempotencyKey: "overdraw",
		})
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	w := h.wallet(t, owner)
	assert.Equal(t, int64(500), w.BalanceCents)
	var count int64
	require.NoError(t, h.conn.Model(&models.LedgerEntry{}).Where("idempotency_key = ?", "overdraw").Count(&count).Error)
	assert.Zero(t, count, "rolled back debit must leave no entry")
}

func TestDebit_MissingWalletIsInsufficient(t *testing.T) {
	h := newHarness(t)
	err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := h.svc.Debit(context.Background(), tx, MovementInput{
			Owner: courier(), AmountCents: 1, Kind: enums.LedgerKindWithdrawal,
			Description: "nothing", IdempotencyKey: "none",
		})
		return err
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestDebit_PlatformMayGoNegative(t *testing.T) {
	h := newHarness(t)
	err := h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := h.svc.Debit(context.Background(), tx, MovementInput{
			Owner: PlatformOwner(), AmountCents: 625, Kind: enums.LedgerKindPayout,
			Description: "courier payout", IdempotencyKey: "platform-payout",
		})
		return err
	})
	require.NoError(t, err)

	w := h.wallet(t, PlatformOwner())
	assert.Equal(t, int64(-625), w.BalanceCents)
	assert.True(t, w.AllowNegative)
}

func TestReverse_UndoesEntryOnce(t *testing.T) {
	h := newHarness(t)
	owner := courier()
	mv := h.credit(t, MovementInput{
		Owner: owner, AmountCents: 625, Kind: enums.LedgerKindCourierEarnings,
		Description: "earned", IdempotencyKey: "earn",
	})

	reverse := func() *Movement {
		var out *Movement
		require.NoError(t, h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
			var err error
			out, err = h.svc.Reverse(context.Background(), tx, *mv.Entry, "order cancelled")
			return err
		}))
		return out
	}

	first := reverse()
	require.False(t, first.AlreadyApplied)
	assert.Equal(t, enums.LedgerEntryDebit, first.Entry.Type)
	require.NotNil(t, first.Entry.ReversesEntryID)
	assert.Equal(t, mv.Entry.ID, *first.Entry.ReversesEntryID)

	second := reverse()
	assert.True(t, second.AlreadyApplied)

	w := h.wallet(t, owner)
	assert.Equal(t, int64(0), w.BalanceCents)
	assert.Equal(t, int64(0), w.TotalEarningsCents)
}

func TestGetBalance_SplitsPending(t *testing.T) {
	h := newHarness(t)
	owner := courier()
	open := h.order(t, enums.OrderStatusOutForDelivery)
	done := h.order(t, enums.OrderStatusDelivered)

	h.credit(t, MovementInput{
		Owner: owner, AmountCents: 625, Kind: enums.LedgerKindCourierEarnings,
		Description: "in flight", OrderID: &open, IdempotencyKey: "open",
	})
	h.credit(t, MovementInput{
		Owner: owner, AmountCents: 900, Kind: enums.LedgerKindCourierEarnings,
		Description: "settled", OrderID: &done, IdempotencyKey: "done",
	})

	bal, err := h.svc.GetBalance(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1525), bal.BalanceCents)
	assert.Equal(t, int64(625), bal.PendingCents)
	assert.Equal(t, int64(900), bal.AvailableCents)
	assert.Equal(t, int64(1525), bal.TotalEarnings)
}

func TestGetBalance_UnknownOwnerIsZero(t *testing.T) {
	h := newHarness(t)
	bal, err := h.svc.GetBalance(context.Background(), courier())
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, bal.WalletID)
	assert.Zero(t, bal.BalanceCents)
}

func TestWithdraw_LimitedToAvailable(t *testing.T) {
	h := newHarness(t)
	owner := courier()
	open := h.order(t, enums.OrderStatusReady)
	h.credit(t, MovementInput{
		Owner: owner, AmountCents: 700, Kind: enums.LedgerKindCourierEarnings,
		Description: "in flight", OrderID: &open, IdempotencyKey: "open",
	})
	h.credit(t, MovementInput{
		Owner: owner, AmountCents: 300, Kind: enums.LedgerKindCourierEarnings,
		Description: "settled", IdempotencyKey: "settled",
	})
	ctx := context.Background()

	_, err := h.svc.Withdraw(ctx, WithdrawInput{Owner: owner, AmountCents: 301, Reference: "w-1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	mv, err := h.svc.Withdraw(ctx, WithdrawInput{Owner: owner, AmountCents: 300, Reference: "w-2"})
	require.NoError(t, err)
	assert.Equal(t, enums.LedgerKindWithdrawal, mv.Entry.Kind)

	replay, err := h.svc.Withdraw(ctx, WithdrawInput{Owner: owner, AmountCents: 300, Reference: "w-2"})
	require.NoError(t, err)
	assert.True(t, replay.AlreadyApplied)

	w := h.wallet(t, owner)
	assert.Equal(t, int64(700), w.BalanceCents)
	assert.Equal(t, int64(300), w.TotalWithdrawnCents)
}

func TestWithdraw_RejectsPlatformAndBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Withdraw(ctx, WithdrawInput{Owner: PlatformOwner(), AmountCents: 100, Reference: "x"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	_, err = h.svc.Withdraw(ctx, WithdrawInput{Owner: courier(), AmountCents: 100})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = h.svc.Withdraw(ctx, WithdrawInput{Owner: courier(), AmountCents: -1, Reference: "x"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestReconcile_DetectsDrift(t *testing.T) {
	h := newHarness(t)
	owner := courier()
	mv := h.credit(t, MovementInput{
		Owner: owner, AmountCents: 1200, Kind: enums.LedgerKindCourierEarnings,
		Description: "earned", IdempotencyKey: "earn",
	})

	rec, err := h.svc.Reconcile(context.Background(), mv.WalletID)
	require.NoError(t, err)
	assert.Zero(t, rec.DriftCents)

	require.NoError(t, h.conn.Exec("UPDATE wallets SET balance_cents = balance_cents + 5 WHERE id = ?", mv.WalletID).Error)

	rec, err = h.svc.Reconcile(context.Background(), mv.WalletID)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeReconciliation))
	require.NotNil(t, rec)
	assert.Equal(t, int64(5), rec.DriftCents)
	assert.Equal(t, int64(1200), rec.LedgerCents)

	_, err = h.svc.Reconcile(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestListEntriesAndWalletIDs(t *testing.T) {
	h := newHarness(t)
	owner := courier()
	for i := 0; i < 3; i++ {
		h.credit(t, MovementInput{
			Owner: owner, AmountCents: int64(100 * (i + 1)), Kind: enums.LedgerKindCourierEarnings,
			Description: "earned", IdempotencyKey: uuid.NewString(),
		})
	}
	h.credit(t, MovementInput{
		Owner: courier(), AmountCents: 1, Kind: enums.LedgerKindCourierEarnings,
		Description: "other", IdempotencyKey: uuid.NewString(),
	})

	list, err := h.svc.ListEntries(context.Background(), owner, pagination.Params{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list.Entries, 3)
	assert.Empty(t, list.NextCursor)

	empty, err := h.svc.ListEntries(context.Background(), courier(), pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)

	ids, err := h.svc.ListWalletIDs(context.Background(), uuid.Nil, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	rest, err := h.svc.ListWalletIDs(context.Background(), ids[0], 10)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestListEntries_StoreFailureIsDependencyError(t *testing.T) {
	h := newHarness(t)
	owner := courier()
	h.credit(t, MovementInput{
		Owner: owner, AmountCents: 100, Kind: enums.LedgerKindCourierEarnings,
		Description: "earned", IdempotencyKey: uuid.NewString(),
	})

	_, err := h.svc.ListEntries(context.Background(), owner, pagination.Params{Cursor: "%%%"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "bad cursor: %v", err)

	require.NoError(t, h.conn.Exec("DROP TABLE ledger_entries").Error)
	_, err = h.svc.ListEntries(context.Background(), owner, pagination.Params{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency), "store failure: %v", err)
	assert.True(t, pkgerrors.Retryable(err))
}

func TestRecordPlatformFee(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return h.svc.RecordPlatformFee(context.Background(), tx, 375)
	}))
	w := h.wallet(t, PlatformOwner())
	assert.Equal(t, int64(375), w.TotalPlatformFeesCents)
	assert.Zero(t, w.BalanceCents)
}
