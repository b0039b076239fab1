package models

import "time"

// Recipe represents a catalog entry submitted by a user. Ingredients and
// steps are stored as JSON text columns and decoded at the handler level.
type Recipe struct {
	ID            uint      `gorm:"primaryKey"`
	SubmitterID   uint      `gorm:"index;not null"`
	Title         string    `gorm:"size:255;not null"`
	Image         string    `gorm:"size:255;not null;default:default.png"`
	CookingTime   int       `gorm:"not null"`
	PrepTime      int       `gorm:"not null"`
	Servings      int       `gorm:"not null"`
	Ingredients   string    `gorm:"type:text;not null"`
	Steps         string    `gorm:"type:text;not null"`
	Comment       string    `gorm:"type:text"` // legacy free-text field, superseded by Comment rows
	SubmittedDate time.Time `gorm:"not null"`

	Submitter   User    `gorm:"foreignKey:SubmitterID"`
	Labels      []Label `gorm:"many2many:recipe_label;"`
	FavoritedBy []User  `gorm:"many2many:favorites;"`
}

// FormOnly lists the fields sent back to the edit form.
func FormOnly() []string {
	return []string{"title", "image", "cooking_time", "prep_time", "servings", "ingredients", "steps", "comment", "labels"}
}
