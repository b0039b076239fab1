package main

import (
	"fmt"
	"log"

	"famrecipes/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openDB(cfg *Config) (*gorm.DB, error) {
	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("FAM_DATABASE_URI is not set; a Postgres DSN is required")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURI), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.AutoMigrate {
		migrate(db)
	}
	return db, nil
}

// migrate runs AutoMigrate model by model so a failure on one doesn't block
// the others. Permission errors are logged and ignored.
func migrate(db *gorm.DB) {
	for _, m := range []any{
		&models.User{},
		&models.Token{},
		&models.Label{},
		&models.Recipe{},
		&models.Comment{},
	} {
		if err := db.AutoMigrate(m); err != nil {
			log.Printf("migration warning (%T): %v", m, err)
		}
	}
}
