package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"famrecipes/models"
	"famrecipes/pkg/auth"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	username := flag.String("username", "", "username for the new account")
	email := flag.String("email", "", "email for the new account")
	password := flag.String("password", "", "plaintext password (min 6 chars)")
	role := flag.String("role", models.RoleUser, "role: admin, manager or user")
	flag.Parse()
	if *username == "" || *email == "" || *password == "" {
		log.Fatal("--username, --email and --password are required")
	}
	if len(*password) < 6 {
		log.Fatal("password too short (min 6)")
	}
	switch *role {
	case models.RoleAdmin, models.RoleManager, models.RoleUser:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	dsn := os.Getenv("FAM_DATABASE_URI")
	if dsn == "" {
		log.Fatal("FAM_DATABASE_URI not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	var existing models.User
	if err := db.Where("username = ?", *username).First(&existing).Error; err == nil {
		fmt.Printf("user %s already exists (id=%d)\n", *username, existing.ID)
		os.Exit(0)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	user := models.User{
		Username:   *username,
		Email:      *email,
		Password:   hash,
		Role:       *role,
		Registered: now,
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("create user: %v", err)
	}
	fmt.Printf("created user %s id=%d role=%s\n", user.Username, user.ID, user.Role)
}
