package store

import "log"

func AutoMigrate(db *DB) {
	if err := db.AutoMigrate(
		&Wallet{},
		&Transaction{},
	); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
}
