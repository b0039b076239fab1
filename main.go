package main

import (
	"fmt"
	"log"
	"os"

	"famrecipes/pkg/auth"
	"famrecipes/pkg/mailer"

	"github.com/gin-gonic/gin"
)

func main() {
	// Auto-load ./.env if present (no external dependency) before reading vars
	loadDotEnv()
	cfg := loadConfig()

	db, err := openDB(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Support a lightweight migrate command: `./famrecipes migrate`
	// openDB already ran AutoMigrate; seed the labels and exit. Useful for CI.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := seedLabels(db, cfg.LabelsFile); err != nil {
			log.Fatalf("label seeding failed: %v", err)
		}
		fmt.Println("migration and seeding completed")
		return
	}

	if err := seedLabels(db, cfg.LabelsFile); err != nil {
		log.Printf("label seeding warning: %v", err)
	}
	go watchLabels(db, cfg.LabelsFile)

	if err := os.MkdirAll(cfg.UploadBase, 0755); err != nil {
		log.Printf("failed to create upload dir %s: %v", cfg.UploadBase, err)
	}

	a := &app{
		db:    db,
		cfg:   cfg,
		clock: auth.SystemClock{},
		auth:  auth.NewService(db, cfg.authConfig(), auth.SystemClock{}),
		mail:  mailer.New(cfg.mailConfig()),
	}

	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxContentLength
	r.Static("/static/recipe_images", cfg.UploadBase)
	setupRoutes(r, a)

	r.Run(cfg.Addr)
}
