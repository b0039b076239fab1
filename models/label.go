package models

// Label is a curated recipe tag. The set is seeded from labels.json and kept
// in sync by the label watcher, not edited through the API.
type Label struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"size:64;not null;uniqueIndex"`
	Color string `gorm:"size:32;not null"`
	Order int    `gorm:"column:sort_order;not null;uniqueIndex"`

	Recipes []Recipe `gorm:"many2many:recipe_label;"`
}

// ToDict returns the JSON shape used by every label listing.
func (l *Label) ToDict() map[string]any {
	return map[string]any{"id": l.ID, "name": l.Name, "color": l.Color, "order": l.Order}
}
