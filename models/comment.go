package models

import "time"

// Comment is a user comment on a recipe.
type Comment struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"index;not null"`
	RecipeID  uint       `gorm:"index;not null"`
	Content   string     `gorm:"type:text;not null"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false"` // nil until the comment is edited

	User   User   `gorm:"foreignKey:UserID"`
	Recipe Recipe `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE;"`
}

// ToDict embeds the submitter like the recipe dict does.
func (c *Comment) ToDict() map[string]any {
	return map[string]any{
		"id":         c.ID,
		"user_id":    c.UserID,
		"recipe_id":  c.RecipeID,
		"content":    c.Content,
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
		"submitter":  c.User.ToDict(),
	}
}
