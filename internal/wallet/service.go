// Package wallet provisions smart-account wallets and repairs their stored
// credentials.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/0xPexy/petpay-backend/internal/credential"
	"github.com/0xPexy/petpay-backend/internal/network"
	"github.com/0xPexy/petpay-backend/internal/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var (
	ErrNotRepairable = errors.New("wallet: credential cannot be repaired")
	ErrInvalidParams = errors.New("wallet: invalid provisioning parameters")
	ErrNoFactory     = errors.New("wallet: account factory not configured")
)

type RepairStatus string

const (
	StatusHealthy  RepairStatus = "healthy"
	StatusRepaired RepairStatus = "repaired"
)

type Store interface {
	GetWalletByAddress(ctx context.Context, address string) (*store.Wallet, error)
	ListActiveWallets(ctx context.Context, ownerID, walletType string, petID *string) ([]store.Wallet, error)
	ReplaceActiveWallet(ctx context.Context, retire []string, w *store.Wallet) error
	UpdateWalletCredential(ctx context.Context, walletID, credential string) error
}

type AccountResolver interface {
	AccountAddress(ctx context.Context, factory, owner common.Address, salt *big.Int) (common.Address, error)
}

type Config struct {
	Factory        common.Address
	Salt           uint64
	MasterSecret   string
	RecoverySecret string
}

type Service struct {
	store    Store
	accounts AccountResolver
	networks *network.Registry
	cfg      Config
	logger   *log.Logger
}

func NewService(st Store, accounts AccountResolver, networks *network.Registry, cfg Config, logger *log.Logger) *Service {
	return &Service{store: st, accounts: accounts, networks: networks, cfg: cfg, logger: logger}
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

type ProvisionParams struct {
	OwnerID string
	Type    string
	PetID   *string
	Network string
}

// Provision creates a fresh owner key and smart account for the owner. Any
// wallet it replaces is deactivated and kept; its funds are not moved.
func (s *Service) Provision(ctx context.Context, p ProvisionParams) (*store.Wallet, error) {
	p.OwnerID = strings.TrimSpace(p.OwnerID)
	if p.Type == "" {
		p.Type = store.WalletTypeUser
	}
	if p.OwnerID == "" || (p.Type != store.WalletTypeUser && p.Type != store.WalletTypePet) {
		return nil, ErrInvalidParams
	}
	if p.Type == store.WalletTypePet && (p.PetID == nil || *p.PetID == "") {
		return nil, fmt.Errorf("%w: pet wallets need a petId", ErrInvalidParams)
	}
	n, err := s.networks.Resolve(p.Network)
	if err != nil {
		return nil, err
	}
	if s.cfg.Factory == (common.Address{}) {
		return nil, ErrNoFactory
	}

	key, err := credential.GenerateKey()
	if err != nil {
		return nil, err
	}
	blob, err := credential.Seal(key, s.cfg.MasterSecret)
	if err != nil {
		return nil, err
	}
	var backup string
	if s.cfg.RecoverySecret != "" {
		if backup, err = credential.Seal(key, s.cfg.RecoverySecret); err != nil {
			return nil, err
		}
	}
	owner := credential.NewSigner(key).Address()
	account, err := s.accounts.AccountAddress(ctx, s.cfg.Factory, owner, new(big.Int).SetUint64(s.cfg.Salt))
	if err != nil {
		return nil, fmt.Errorf("resolve account address: %w", err)
	}

	var petID *string
	if p.Type == store.WalletTypePet {
		petID = p.PetID
	}
	previous, err := s.store.ListActiveWallets(ctx, p.OwnerID, p.Type, petID)
	if err != nil {
		return nil, err
	}
	retire := make([]string, 0, len(previous))
	for _, w := range previous {
		retire = append(retire, w.WalletID)
	}

	w := &store.Wallet{
		WalletID:         uuid.NewString(),
		Address:          account.Hex(),
		Network:          n.Name,
		Type:             p.Type,
		OwnerID:          p.OwnerID,
		PetID:            petID,
		OwnerAddress:     owner.Hex(),
		Credential:       blob,
		CredentialBackup: backup,
		IsActive:         true,
	}
	if err := s.store.ReplaceActiveWallet(ctx, retire, w); err != nil {
		return nil, err
	}
	if len(retire) > 0 {
		s.logf("owner %s: %s replaces %d wallet(s)", p.OwnerID, w.Address, len(retire))
	}
	return w, nil
}

type RepairResult struct {
	Status RepairStatus
	Wallet *store.Wallet
}

// Repair checks the wallet credential and, when it no longer opens, restores
// it from the recovery copy.
func (s *Service) Repair(ctx context.Context, address string) (*RepairResult, error) {
	w, err := s.store.GetWalletByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if s.healthy(w) == nil {
		return &RepairResult{Status: StatusHealthy, Wallet: w}, nil
	}
	if s.cfg.RecoverySecret == "" || w.CredentialBackup == "" {
		return nil, ErrNotRepairable
	}
	signer, err := credential.Open(w.CredentialBackup, s.cfg.RecoverySecret)
	if err != nil {
		s.logf("repair %s: backup unusable: %v", w.Address, err)
		return nil, ErrNotRepairable
	}
	if w.OwnerAddress != "" && !strings.EqualFold(w.OwnerAddress, signer.Address().Hex()) {
		s.logf("repair %s: backup owner %s differs from %s", w.Address, signer.Address().Hex(), w.OwnerAddress)
		return nil, ErrNotRepairable
	}
	blob, err := credential.SealSigner(signer, s.cfg.MasterSecret)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateWalletCredential(ctx, w.WalletID, blob); err != nil {
		return nil, err
	}
	w.Credential = blob
	s.logf("repair %s: credential restored", w.Address)
	return &RepairResult{Status: StatusRepaired, Wallet: w}, nil
}

type StatusReport struct {
	Wallet       *store.Wallet
	CredentialOK bool
	Problem      string
	Repairable   bool
}

func (s *Service) Status(ctx context.Context, address string) (*StatusReport, error) {
	w, err := s.store.GetWalletByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	report := &StatusReport{Wallet: w, CredentialOK: true}
	if err := s.healthy(w); err != nil {
		report.CredentialOK = false
		report.Problem = err.Error()
		report.Repairable = s.cfg.RecoverySecret != "" && w.CredentialBackup != ""
	}
	return report, nil
}

func (s *Service) healthy(w *store.Wallet) error {
	signer, err := credential.Open(w.Credential, s.cfg.MasterSecret)
	if err != nil {
		return err
	}
	if w.OwnerAddress != "" && !strings.EqualFold(w.OwnerAddress, signer.Address().Hex()) {
		return credential.ErrOwnerMismatch
	}
	return nil
}
