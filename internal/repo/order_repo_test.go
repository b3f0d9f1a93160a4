package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stigerapp/go-rental-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("order_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func mustCreateOrder(t *testing.T, db *gorm.DB) *domain.Order {
	t.Helper()
	o, err := CreateOrder(context.Background(), db, CreateOrderInput{
		UserID:        "u1",
		DeviceID:      "DTN00872",
		ShopID:        "shop-1",
		TariffID:      "1hour",
		TariffPrice:   200,
		DepositAmount: 200,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return o
}

func TestCreateOrder_SetsPendingAndDefaults(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})

	o := mustCreateOrder(t, db)
	if o.ID == "" || o.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected order: %+v", o)
	}
	if o.TariffPrice != 200 || o.DepositAmount != 200 {
		t.Fatalf("amounts not persisted: %+v", o)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})

	if _, err := GetOrder(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionOrder_HappyPath_AppliesPatch(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})
	o := mustCreateOrder(t, db)

	rentID := "trade-123"
	slot := 3
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	got, err := TransitionOrder(context.Background(), db, o.ID,
		domain.OrderStatusPending, domain.OrderStatusActive,
		OrderPatch{RentOrderID: &rentID, SlotNum: &slot, StartTime: &start})
	if err != nil {
		t.Fatalf("TransitionOrder: %v", err)
	}
	if got.Status != domain.OrderStatusActive {
		t.Fatalf("status = %q, want active", got.Status)
	}
	if got.RentOrderID == nil || *got.RentOrderID != rentID || got.SlotNum != slot {
		t.Fatalf("patch not applied: %+v", got)
	}
}

func TestTransitionOrder_WrongExpectedStatus_Conflict(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})
	o := mustCreateOrder(t, db)

	if _, err := TransitionOrder(context.Background(), db, o.ID,
		domain.OrderStatusActive, domain.OrderStatusCompleted, OrderPatch{}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// Row untouched.
	got, err := GetOrder(context.Background(), db, o.ID)
	if err != nil || got.Status != domain.OrderStatusPending {
		t.Fatalf("order mutated on conflict: %+v err=%v", got, err)
	}
}

func TestTransitionOrder_MissingOrder_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})

	if _, err := TransitionOrder(context.Background(), db, "missing",
		domain.OrderStatusPending, domain.OrderStatusActive, OrderPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionOrder_ConcurrentRace_SingleWinner(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})
	o := mustCreateOrder(t, db)

	const racers = 8
	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = TransitionOrder(context.Background(), db, o.ID,
				domain.OrderStatusPending, domain.OrderStatusActive, OrderPatch{})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
		default:
			t.Fatalf("unexpected race error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
}

func TestGetOrderByRentOrderID(t *testing.T) {
	db := newRepoDB(t, &domain.Order{})
	o := mustCreateOrder(t, db)

	rentID := "trade-999"
	if _, err := TransitionOrder(context.Background(), db, o.ID,
		domain.OrderStatusPending, domain.OrderStatusActive, OrderPatch{RentOrderID: &rentID}); err != nil {
		t.Fatalf("TransitionOrder: %v", err)
	}

	got, err := GetOrderByRentOrderID(context.Background(), db, rentID)
	if err != nil || got.ID != o.ID {
		t.Fatalf("lookup by rent order id: %+v err=%v", got, err)
	}
	if _, err := GetOrderByRentOrderID(context.Background(), db, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordTransaction_DuplicateExternalID(t *testing.T) {
	db := newRepoDB(t, &domain.Order{}, &domain.Transaction{})
	o := mustCreateOrder(t, db)

	in := RecordTransactionInput{
		OrderID:      o.ID,
		ExternalTxID: "tx-1",
		AccountID:    "u1",
		Amount:       400,
		Currency:     "RUB",
		Status:       domain.TransactionCompleted,
	}
	if _, err := RecordTransaction(context.Background(), db, in); err != nil {
		t.Fatalf("first RecordTransaction: %v", err)
	}
	if _, err := RecordTransaction(context.Background(), db, in); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same external id on a different order is fine (retries are scoped per order).
	o2 := mustCreateOrder(t, db)
	in.OrderID = o2.ID
	if _, err := RecordTransaction(context.Background(), db, in); err != nil {
		t.Fatalf("same tx on different order: %v", err)
	}
}

func TestUpsertSavedCard_Idempotent(t *testing.T) {
	db := newRepoDB(t, &domain.SavedCard{})
	ctx := context.Background()

	card := domain.SavedCard{Token: "tok-1", AccountID: "acc-1", CardLastFour: "4242"}
	if _, err := UpsertSavedCard(ctx, db, card); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	card.CardLastFour = "1111"
	if _, err := UpsertSavedCard(ctx, db, card); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	cards, err := ListSavedCards(ctx, db, "acc-1")
	if err != nil {
		t.Fatalf("ListSavedCards: %v", err)
	}
	if len(cards) != 1 || cards[0].CardLastFour != "1111" {
		t.Fatalf("expected single updated card, got %+v", cards)
	}

	// Rebinding after an unbind resurrects the soft-deleted row.
	if err := DeleteSavedCard(ctx, db, "acc-1", "tok-1"); err != nil {
		t.Fatalf("DeleteSavedCard: %v", err)
	}
	if _, err := UpsertSavedCard(ctx, db, card); err != nil {
		t.Fatalf("rebind upsert: %v", err)
	}
	cards, err = ListSavedCards(ctx, db, "acc-1")
	if err != nil || len(cards) != 1 {
		t.Fatalf("expected resurrected card, got %+v err=%v", cards, err)
	}
}

func TestDeleteSavedCard_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.SavedCard{})

	err := DeleteSavedCard(context.Background(), db, "acc-1", "missing")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestIdempotency_RoundTripAndExpiry(t *testing.T) {
	db := newRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "key-1", "order-1", 0, time.Hour); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	rec, err := GetIdempotency(ctx, db, "u1", "key-1", time.Now().UTC())
	if err != nil || rec.OrderID != "order-1" {
		t.Fatalf("GetIdempotency: %+v err=%v", rec, err)
	}

	// Duplicate insert for the same (user, key).
	if _, err := CreateIdempotency(ctx, db, "u1", "key-1", "order-2", 0, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Expired records are invisible.
	if _, err := GetIdempotency(ctx, db, "u1", "key-1", time.Now().UTC().Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}
}
