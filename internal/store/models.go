package store

import "time"

const (
	WalletTypeUser = "user"
	WalletTypePet  = "pet"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

type Wallet struct {
	ID               uint      `gorm:"primaryKey"`
	WalletID         string    `gorm:"size:36;uniqueIndex;not null"`
	Address          string    `gorm:"size:42;not null;uniqueIndex:idx_wallet_network_address"`
	Network          string    `gorm:"size:32;not null;uniqueIndex:idx_wallet_network_address"`
	Type             string    `gorm:"size:8;not null;index"`
	OwnerID          string    `gorm:"size:128;not null;index"`
	PetID            *string   `gorm:"size:128;index"`
	OwnerAddress     string    `gorm:"size:42"`
	Credential       string    `gorm:"type:text"`
	CredentialBackup string    `gorm:"type:text"`
	Basename         *string   `gorm:"size:255"`
	IsActive         bool      `gorm:"index;not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

type Transaction struct {
	ID              uint           `gorm:"primaryKey"`
	TransactionHash string         `gorm:"size:66;index"`
	From            string         `gorm:"column:from_address;size:42;index;not null"`
	To              string         `gorm:"column:to_address;size:42;not null"`
	Amount          string         `gorm:"size:78;not null"`
	Token           string         `gorm:"size:16;not null"`
	Network         string         `gorm:"size:32;not null"`
	Type            string         `gorm:"size:32;not null"`
	Status          string         `gorm:"size:16;index;not null"`
	Timestamp       time.Time      `gorm:"index"`
	UserID          string         `gorm:"size:128;index"`
	PetID           *string        `gorm:"size:128"`
	IdempotencyKey  string         `gorm:"size:66;index"`
	Metadata        map[string]any `gorm:"serializer:json;type:text"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
}
