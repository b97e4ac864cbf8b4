package recipes

import (
	"errors"
	"time"
)

const maxTitleLength = 190

var (
	// ErrInvalidTitle indicates an empty or oversized title.
	ErrInvalidTitle = errors.New("recipes: invalid title")
	// ErrRecipeNotFound indicates the recipe does not exist for this owner.
	ErrRecipeNotFound = errors.New("recipes: recipe not found")
	// ErrCookbookNotFound indicates the cookbook does not exist for this owner.
	ErrCookbookNotFound = errors.New("recipes: cookbook not found")
)

// Recipe models one persisted recipe. All lookups are scoped to the owning
// user; a recipe never leaks across owners.
type Recipe struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index:idx_recipes_user_updated,priority:1"`
	Title       string    `gorm:"column:title;size:190;not null"`
	Description string    `gorm:"column:description;type:text;not null;default:''"`
	Ingredients string    `gorm:"column:ingredients;type:text;not null;default:''"`
	Steps       string    `gorm:"column:steps;type:text;not null;default:''"`
	Servings    int       `gorm:"column:servings;not null;default:0"`
	PrepMinutes int       `gorm:"column:prep_minutes;not null;default:0"`
	CookMinutes int       `gorm:"column:cook_minutes;not null;default:0"`
	ImageURL    *string   `gorm:"column:image_url;size:2048"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null;index:idx_recipes_user_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Recipe) TableName() string {
	return "recipes"
}

// Cookbook groups an owner's recipes under a title.
type Cookbook struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index"`
	Title       string    `gorm:"column:title;size:190;not null"`
	Description string    `gorm:"column:description;type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Cookbook) TableName() string {
	return "cookbooks"
}

// CookbookRecipe is the membership row tying one recipe into one cookbook.
type CookbookRecipe struct {
	CookbookID string    `gorm:"column:cookbook_id;primaryKey;size:190;not null"`
	RecipeID   string    `gorm:"column:recipe_id;primaryKey;size:190;not null"`
	AddedAt    time.Time `gorm:"column:added_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CookbookRecipe) TableName() string {
	return "cookbook_recipes"
}

// RecipeInput carries the writable recipe fields for create and update.
type RecipeInput struct {
	Title       string
	Description string
	Ingredients string
	Steps       string
	Servings    int
	PrepMinutes int
	CookMinutes int
	ImageURL    string
}

// CookbookInput carries the writable cookbook fields.
type CookbookInput struct {
	Title       string
	Description string
}
