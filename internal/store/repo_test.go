package store

import (
	"context"
	"errors"
	"testing"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	db := OpenSQLite(":memory:")
	AutoMigrate(db)
	return NewRepository(db)
}

func TestWalletLookupIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	w := &Wallet{
		WalletID: "w-1",
		Address:  "0xAbC0000000000000000000000000000000000001",
		Network:  "base-sepolia",
		Type:     WalletTypeUser,
		OwnerID:  "user-1",
		IsActive: true,
	}
	if err := repo.CreateWallet(ctx, w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	dup := *w
	dup.ID = 0
	dup.WalletID = "w-2"
	if err := repo.CreateWallet(ctx, &dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := repo.GetWalletByAddress(ctx, "0xABC0000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if got.WalletID != "w-1" {
		t.Fatalf("unexpected wallet %+v", got)
	}
	if _, err := repo.GetWalletByAddress(ctx, "0x0000000000000000000000000000000000000009"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolvePendingIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	tx := &Transaction{
		TransactionHash: "0xOP1",
		From:            "0x1",
		To:              "0x2",
		Amount:          "2000000",
		Token:           "USDC",
		Network:         "base-sepolia",
		Type:            "transfer",
		Status:          StatusPending,
		IdempotencyKey:  "0xkey",
		Metadata:        map[string]any{"source": "test"},
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create tx: %v", err)
	}

	live, err := repo.FindLiveTransaction(ctx, "0xkey")
	if err != nil || live == nil {
		t.Fatalf("expected live transaction, got %v %v", live, err)
	}

	moved, err := repo.ResolvePending(ctx, "0xop1", StatusConfirmed, map[string]any{"receiptTxHash": "0xabc"})
	if err != nil || !moved {
		t.Fatalf("confirm: moved=%v err=%v", moved, err)
	}
	moved, err = repo.ResolvePending(ctx, "0xop1", StatusFailed, nil)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if moved {
		t.Fatalf("confirmed transaction must not move again")
	}

	got, err := repo.GetTransactionByHash(ctx, "0xop1")
	if err != nil {
		t.Fatalf("get tx: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}
	if got.Metadata["source"] != "test" || got.Metadata["receiptTxHash"] != "0xabc" {
		t.Fatalf("metadata not merged: %+v", got.Metadata)
	}
}

func TestReplaceActiveWalletRetiresPrevious(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	old := &Wallet{WalletID: "old", Address: "0x01", Network: "base-sepolia", Type: WalletTypeUser, OwnerID: "u", IsActive: true}
	if err := repo.CreateWallet(ctx, old); err != nil {
		t.Fatalf("create: %v", err)
	}
	fresh := &Wallet{WalletID: "new", Address: "0x02", Network: "base-sepolia", Type: WalletTypeUser, OwnerID: "u", IsActive: true}
	if err := repo.ReplaceActiveWallet(ctx, []string{"old"}, fresh); err != nil {
		t.Fatalf("replace: %v", err)
	}
	active, err := repo.ListActiveWallets(ctx, "u", WalletTypeUser, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].WalletID != "new" {
		t.Fatalf("unexpected active wallets %+v", active)
	}
	retired, err := repo.GetWalletByAddress(ctx, "0x01")
	if err != nil {
		t.Fatalf("get retired: %v", err)
	}
	if retired.IsActive {
		t.Fatalf("old wallet should be inactive")
	}
}

func TestNormalizeHex(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"  0xABCD ":  "0xabcd",
		"ABCD":       "0xabcd",
		"0xdeadBEEF": "0xdeadbeef",
	}
	for in, want := range cases {
		if got := NormalizeHash(in); got != want {
			t.Fatalf("NormalizeHash(%q) = %q, want %q", in, got, want)
		}
		if got := NormalizeAddress(in); got != want {
			t.Fatalf("NormalizeAddress(%q) = %q, want %q", in, got, want)
		}
	}
}
