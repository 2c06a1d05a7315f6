package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *DB) *Repository { return &Repository{db: db.DB} }

// Ping checks the underlying connection is usable.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) CreateWallet(ctx context.Context, w *Wallet) error {
	w.Address = NormalizeAddress(w.Address)
	w.OwnerAddress = NormalizeAddress(w.OwnerAddress)
	var count int64
	if err := r.db.WithContext(ctx).Model(&Wallet{}).
		Where("network = ? AND address = ?", w.Network, w.Address).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrConflict
	}
	return r.db.WithContext(ctx).Create(w).Error
}

// GetWalletByAddress looks a wallet up by address across networks; the caller
// checks the network so a mismatch is reported rather than hidden.
func (r *Repository) GetWalletByAddress(ctx context.Context, address string) (*Wallet, error) {
	addr := NormalizeAddress(address)
	var w Wallet
	err := r.db.WithContext(ctx).
		Where("address = ?", addr).
		Order("is_active desc, id desc").
		First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *Repository) ListActiveWallets(ctx context.Context, ownerID, walletType string, petID *string) ([]Wallet, error) {
	query := r.db.WithContext(ctx).
		Where("owner_id = ? AND type = ? AND is_active = ?", ownerID, walletType, true)
	if petID != nil {
		query = query.Where("pet_id = ?", *petID)
	}
	var out []Wallet
	err := query.Order("id desc").Find(&out).Error
	return out, err
}

func (r *Repository) UpdateWalletCredential(ctx context.Context, walletID, credential string) error {
	res := r.db.WithContext(ctx).Model(&Wallet{}).
		Where("wallet_id = ?", walletID).
		Updates(map[string]any{"credential": credential, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceActiveWallet deactivates the given wallets and inserts the new one in
// a single transaction.
func (r *Repository) ReplaceActiveWallet(ctx context.Context, retire []string, w *Wallet) error {
	w.Address = NormalizeAddress(w.Address)
	w.OwnerAddress = NormalizeAddress(w.OwnerAddress)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(retire) > 0 {
			if err := tx.Model(&Wallet{}).Where("wallet_id IN ?", retire).Update("is_active", false).Error; err != nil {
				return err
			}
		}
		var count int64
		if err := tx.Model(&Wallet{}).Where("network = ? AND address = ?", w.Network, w.Address).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}
		return tx.Create(w).Error
	})
}

func (r *Repository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	tx.From = NormalizeAddress(tx.From)
	tx.To = NormalizeAddress(tx.To)
	tx.TransactionHash = NormalizeHash(tx.TransactionHash)
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *Repository) GetTransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var tx Transaction
	err := r.db.WithContext(ctx).
		Where("transaction_hash = ?", NormalizeHash(hash)).
		Order("id desc").
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindLiveTransaction returns the newest pending or confirmed transaction
// recorded under the idempotency key, or nil.
func (r *Repository) FindLiveTransaction(ctx context.Context, key string) (*Transaction, error) {
	if key == "" {
		return nil, nil
	}
	var tx Transaction
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ? AND status IN ?", key, []string{StatusPending, StatusConfirmed}).
		Order("id desc").
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// ResolvePending moves a pending transaction to a terminal status. Rows that
// already left pending are untouched; the bool reports whether a row moved.
func (r *Repository) ResolvePending(ctx context.Context, hash, status string, meta map[string]any) (bool, error) {
	if status != StatusConfirmed && status != StatusFailed {
		return false, errors.New("store: invalid terminal status " + status)
	}
	updates := map[string]any{"status": status, "updated_at": time.Now()}
	if len(meta) > 0 {
		current, err := r.GetTransactionByHash(ctx, hash)
		if err != nil {
			return false, err
		}
		merged := make(map[string]any, len(current.Metadata)+len(meta))
		for k, v := range current.Metadata {
			merged[k] = v
		}
		for k, v := range meta {
			merged[k] = v
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return false, err
		}
		updates["metadata"] = string(raw)
	}
	res := r.db.WithContext(ctx).Model(&Transaction{}).
		Where("transaction_hash = ? AND status = ?", NormalizeHash(hash), StatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListPendingTransactions returns every submitted operation still awaiting a
// receipt, oldest first.
func (r *Repository) ListPendingTransactions(ctx context.Context) ([]Transaction, error) {
	var out []Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND transaction_hash <> ''", StatusPending).
		Order("id asc").
		Find(&out).Error
	return out, err
}

type TransactionListParams struct {
	UserID  string
	Address string
	Status  string
	Limit   int
}

func (r *Repository) ListTransactions(ctx context.Context, params TransactionListParams) ([]Transaction, error) {
	query := r.db.WithContext(ctx).Model(&Transaction{})
	if params.UserID != "" {
		query = query.Where("user_id = ?", params.UserID)
	}
	if addr := NormalizeAddress(params.Address); addr != "" {
		query = query.Where("from_address = ? OR to_address = ?", addr, addr)
	}
	if params.Status != "" {
		query = query.Where("status = ?", strings.ToLower(params.Status))
	}
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []Transaction
	err := query.Order("timestamp desc, id desc").Limit(limit).Find(&out).Error
	return out, err
}
