package models

import (
	"log"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Property{},
		&BillingLedger{},
		&Complaint{},
		&LedgerEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
