package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/0xPexy/petpay-backend/internal/credential"
	"github.com/0xPexy/petpay-backend/internal/network"
	"github.com/0xPexy/petpay-backend/internal/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type stubAccounts struct {
	err error
}

func (s stubAccounts) AccountAddress(ctx context.Context, factory, owner common.Address, salt *big.Int) (common.Address, error) {
	if s.err != nil {
		return common.Address{}, s.err
	}
	return common.BytesToAddress(crypto.Keccak256(factory.Bytes(), owner.Bytes())[12:]), nil
}

var testFactory = common.HexToAddress("0x9406Cc6185a346906296840746125a0E44976454")

func newTestService(t *testing.T, recovery string) (*Service, *store.Repository) {
	t.Helper()
	db := store.OpenSQLite(":memory:")
	store.AutoMigrate(db)
	repo := store.NewRepository(db)
	reg, err := network.NewRegistry(network.BaseSepolia, network.Endpoints{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc := NewService(repo, stubAccounts{}, reg, Config{
		Factory:        testFactory,
		MasterSecret:   "master",
		RecoverySecret: recovery,
	}, nil)
	return svc, repo
}

func TestProvisionStoresUsableCredential(t *testing.T) {
	svc, repo := newTestService(t, "recovery")
	w, err := svc.Provision(context.Background(), ProvisionParams{OwnerID: "user-1"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if !w.IsActive || w.Network != network.BaseSepolia || w.Type != store.WalletTypeUser {
		t.Fatalf("unexpected wallet %+v", w)
	}
	stored, err := repo.GetWalletByAddress(context.Background(), w.Address)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	signer, err := credential.Open(stored.Credential, "master")
	if err != nil {
		t.Fatalf("open credential: %v", err)
	}
	if !equalFold(stored.OwnerAddress, signer.Address().Hex()) {
		t.Fatalf("owner %s does not match credential %s", stored.OwnerAddress, signer.Address().Hex())
	}
	if stored.CredentialBackup == "" {
		t.Fatalf("expected a recovery copy")
	}
}

func TestProvisionRetiresPreviousWallet(t *testing.T) {
	svc, repo := newTestService(t, "")
	ctx := context.Background()
	first, err := svc.Provision(ctx, ProvisionParams{OwnerID: "user-1"})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.Provision(ctx, ProvisionParams{OwnerID: "user-1"})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Address == second.Address {
		t.Fatalf("expected a new address")
	}
	old, err := repo.GetWalletByAddress(ctx, first.Address)
	if err != nil {
		t.Fatalf("old wallet must be kept: %v", err)
	}
	if old.IsActive {
		t.Fatalf("old wallet still active")
	}
	active, _ := repo.ListActiveWallets(ctx, "user-1", store.WalletTypeUser, nil)
	if len(active) != 1 || active[0].WalletID != second.WalletID {
		t.Fatalf("unexpected active wallets %+v", active)
	}
}

func TestProvisionValidation(t *testing.T) {
	svc, _ := newTestService(t, "")
	ctx := context.Background()
	if _, err := svc.Provision(ctx, ProvisionParams{}); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("missing owner: %v", err)
	}
	if _, err := svc.Provision(ctx, ProvisionParams{OwnerID: "u", Type: store.WalletTypePet}); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("pet without id: %v", err)
	}
	if _, err := svc.Provision(ctx, ProvisionParams{OwnerID: "u", Network: network.BaseMainnet}); !errors.Is(err, network.ErrUnsupportedNetwork) {
		t.Fatalf("wrong network: %v", err)
	}
}

func TestRepairRestoresFromBackup(t *testing.T) {
	svc, repo := newTestService(t, "recovery")
	ctx := context.Background()
	w, err := svc.Provision(ctx, ProvisionParams{OwnerID: "user-1"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	res, err := svc.Repair(ctx, w.Address)
	if err != nil || res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %+v %v", res, err)
	}

	if err := repo.UpdateWalletCredential(ctx, w.WalletID, "{broken"); err != nil {
		t.Fatalf("break credential: %v", err)
	}
	report, err := svc.Status(ctx, w.Address)
	if err != nil || report.CredentialOK || !report.Repairable {
		t.Fatalf("unexpected status %+v %v", report, err)
	}

	res, err = svc.Repair(ctx, w.Address)
	if err != nil || res.Status != StatusRepaired {
		t.Fatalf("expected repaired, got %+v %v", res, err)
	}
	stored, _ := repo.GetWalletByAddress(ctx, w.Address)
	if _, err := credential.Open(stored.Credential, "master"); err != nil {
		t.Fatalf("restored credential unusable: %v", err)
	}
}

func TestRepairWithoutBackup(t *testing.T) {
	svc, repo := newTestService(t, "")
	ctx := context.Background()
	w, err := svc.Provision(ctx, ProvisionParams{OwnerID: "user-1"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	_ = repo.UpdateWalletCredential(ctx, w.WalletID, "")
	if _, err := svc.Repair(ctx, w.Address); !errors.Is(err, ErrNotRepairable) {
		t.Fatalf("expected ErrNotRepairable, got %v", err)
	}
	if _, err := svc.Repair(ctx, "0x00000000000000000000000000000000000000ff"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func equalFold(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}
