package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodrun-backend/pkg/db/dbtest"
)

type widget struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn := dbtest.Open(t)
	if err := conn.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("migrate widget: %v", err)
	}
	return conn
}

func countProbes(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(&widget{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTxCommitsOrRollsBack(t *testing.T) {
	conn := newTestDB(t)
	client := FromConn(conn)
	ctx := context.Background()

	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&widget{Name: "kept"}).Error
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Name: "dropped"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := countProbes(t, conn); n != 1 {
		t.Fatalf("rows after rollback = %d, want 1", n)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := FromConn(conn)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&widget{Name: "half-written"})
			panic("mid-transaction")
		})
	}()
	if n := countProbes(t, conn); n != 0 {
		t.Fatalf("rows after panic = %d, want 0", n)
	}
}

func TestPing(t *testing.T) {
	if err := FromConn(newTestDB(t)).Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgxDup := &pgconn.PgError{Code: "23505", ConstraintName: "ux_ledger_entries_idempotency_key"}
	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"pgx any", pgxDup, "", true},
		{"pgx named", pgxDup, "ux_ledger_entries_idempotency_key", true},
		{"pgx other constraint", pgxDup, "ux_wallets_owner", false},
		{"pgx wrapped", fmt.Errorf("book entry: %w", pgxDup), "", true},
		{"pq", &pq.Error{Code: "23505"}, "", true},
		{"pq foreign key", &pq.Error{Code: "23503"}, "", false},
		{"plain", errors.New("insufficient balance"), "", false},
	}
	for _, tc := range cases {
		if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
			t.Fatalf("%s: IsUniqueViolation = %v, want %v", tc.name, got, tc.want)
		}
	}

	conn := newTestDB(t)
	if err := conn.Create(&widget{Name: "dupe"}).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := conn.Create(&widget{Name: "dupe"}).Error; !IsUniqueViolation(err, "") {
		t.Fatalf("expected sqlite unique violation, got %v", err)
	}
}
