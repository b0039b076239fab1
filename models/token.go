package models

import "time"

// Token stores one access/refresh pair bound to a user. A row is logically
// dead once its expirations pass; physical deletion is deferred to the
// periodic clean so in-flight requests keep working through the grace window.
type Token struct {
	ID                uint      `gorm:"primaryKey"`
	UserID            uint      `gorm:"index;not null"`
	AccessToken       string    `gorm:"size:64;not null;index"`
	AccessExpiration  time.Time `gorm:"not null"`
	RefreshToken      string    `gorm:"size:64;not null;index"`
	RefreshExpiration time.Time `gorm:"not null"`

	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
