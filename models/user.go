package models

import "time"

// Role names. Stored as plain strings so Postgres and the sqlite test driver
// behave the same.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// User model
type User struct {
	ID         uint      `gorm:"primaryKey"`
	Username   string    `gorm:"size:60;not null;uniqueIndex"`
	Email      string    `gorm:"size:60;not null;uniqueIndex"`
	Password   string    `gorm:"size:255;not null"` // bcrypt hash, never plaintext
	Role       string    `gorm:"size:16;not null;default:user"`
	Registered time.Time `gorm:"not null"`
	LastSeen   *time.Time

	Recipes    []Recipe `gorm:"foreignKey:SubmitterID"`
	FavRecipes []Recipe `gorm:"many2many:favorites;"`
}

// ToDict is the public JSON shape of a user. Email and password stay private.
func (u *User) ToDict() map[string]any {
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"role":       u.Role,
		"registered": u.Registered,
		"last_seen":  u.LastSeen,
	}
}
