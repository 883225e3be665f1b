// Package dbtest opens throwaway sqlite databases carrying the same tables as
// the goose migrations, for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE restaurant_referrals (
		restaurant_id TEXT PRIMARY KEY,
		admin_id TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		restaurant_id TEXT NOT NULL,
		referrer_admin_id TEXT,
		courier_id TEXT,
		delivery_type TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		payment_txn_id TEXT UNIQUE,
		subtotal_cents INTEGER NOT NULL,
		delivery_fee_cents INTEGER NOT NULL DEFAULT 0,
		total_cents INTEGER NOT NULL,
		item_count INTEGER NOT NULL,
		captured_cents INTEGER NOT NULL DEFAULT 0,
		delivery_fee_set_by TEXT,
		delivery_fee_set_at DATETIME,
		delivery_fee_committed_at DATETIME,
		payout_committed_at DATETIME,
		delivery_address TEXT,
		notes TEXT,
		cancelled_by TEXT,
		cancelled_by_role TEXT,
		cancel_reason TEXT,
		ratings TEXT,
		rated_at DATETIME,
		accepted_at DATETIME,
		preparing_at DATETIME,
		ready_at DATETIME,
		picked_up_at DATETIME,
		delivered_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CHECK (total_cents = subtotal_cents + delivery_fee_cents)
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price_cents INTEGER NOT NULL,
		line_total_cents INTEGER NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE wallets (
		id TEXT PRIMARY KEY,
		owner_type TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		balance_cents INTEGER NOT NULL DEFAULT 0,
		total_earnings_cents INTEGER NOT NULL DEFAULT 0,
		total_sales_cents INTEGER NOT NULL DEFAULT 0,
		total_platform_fees_cents INTEGER NOT NULL DEFAULT 0,
		total_withdrawn_cents INTEGER NOT NULL DEFAULT 0,
		allow_negative BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (owner_type, owner_id),
		CHECK (allow_negative OR balance_cents >= 0)
	)`,
	`CREATE TABLE ledger_entries (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL,
		order_id TEXT,
		type TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
		description TEXT NOT NULL,
		idempotency_key TEXT NOT NULL UNIQUE,
		reverses_entry_id TEXT UNIQUE,
		metadata TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE points_accounts (
		id TEXT PRIMARY KEY,
		owner_type TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		points INTEGER NOT NULL CHECK (points >= 0),
		standing TEXT NOT NULL DEFAULT 'active',
		suspended_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (owner_type, owner_id)
	)`,
	`CREATE TABLE points_deductions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		requested INTEGER NOT NULL,
		applied INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		reason TEXT NOT NULL,
		ticket_id TEXT,
		order_id TEXT,
		admin_id TEXT NOT NULL,
		idempotency_key TEXT NOT NULL,
		suspended BOOLEAN NOT NULL DEFAULT 0,
		warning BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		UNIQUE (account_id, idempotency_key)
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a fresh in-memory database with every table created. Each call
// gets its own database so tests never observe each other's rows. The pool is
// pinned to a single connection, so code under test must not reach for the
// root handle while a transaction is open.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}
