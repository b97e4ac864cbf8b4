package recipes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// IDProvider issues identifiers for new recipes and cookbooks.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies for the recipe catalog.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// Service owns the recipe and cookbook catalog. Every operation is scoped to
// the owning user; asking for another owner's row reads as not found.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
}

// NewService constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("recipes: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("recipes: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: cfg.IDProvider,
	}, nil
}

// CreateRecipe persists a new recipe for the owner.
func (s *Service) CreateRecipe(ctx context.Context, userID string, input RecipeInput) (*Recipe, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return nil, fmt.Errorf("recipes: generate recipe id: %w", err)
	}

	now := s.now().UTC()
	recipe := Recipe{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Ingredients: input.Ingredients,
		Steps:       input.Steps,
		Servings:    input.Servings,
		PrepMinutes: input.PrepMinutes,
		CookMinutes: input.CookMinutes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if imageURL := strings.TrimSpace(input.ImageURL); imageURL != "" {
		recipe.ImageURL = &imageURL
	}

	if err := s.db.WithContext(ctx).Create(&recipe).Error; err != nil {
		return nil, fmt.Errorf("recipes: create recipe: %w", err)
	}
	return &recipe, nil
}

// GetRecipe returns one owned recipe.
func (s *Service) GetRecipe(ctx context.Context, userID string, recipeID string) (*Recipe, error) {
	var recipe Recipe
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, recipeID).
		Take(&recipe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecipeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("recipes: load recipe: %w", err)
	}
	return &recipe, nil
}

// ListRecipes returns the owner's recipes, most recently updated first.
func (s *Service) ListRecipes(ctx context.Context, userID string) ([]Recipe, error) {
	var list []Recipe
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("recipes: list recipes: %w", err)
	}
	return list, nil
}

// UpdateRecipe overwrites the writable fields of one owned recipe.
func (s *Service) UpdateRecipe(ctx context.Context, userID string, recipeID string, input RecipeInput) (*Recipe, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}

	var imageURL *string
	if trimmed := strings.TrimSpace(input.ImageURL); trimmed != "" {
		imageURL = &trimmed
	}

	update := s.db.WithContext(ctx).
		Model(&Recipe{}).
		Where("user_id = ? AND id = ?", userID, recipeID).
		Updates(map[string]interface{}{
			"title":        title,
			"description":  strings.TrimSpace(input.Description),
			"ingredients":  input.Ingredients,
			"steps":        input.Steps,
			"servings":     input.Servings,
			"prep_minutes": input.PrepMinutes,
			"cook_minutes": input.CookMinutes,
			"image_url":    imageURL,
			"updated_at":   s.now().UTC(),
		})
	if update.Error != nil {
		return nil, fmt.Errorf("recipes: update recipe: %w", update.Error)
	}
	if update.RowsAffected == 0 {
		return nil, ErrRecipeNotFound
	}

	return s.GetRecipe(ctx, userID, recipeID)
}

// DeleteRecipe removes one owned recipe and its cookbook memberships.
func (s *Service) DeleteRecipe(ctx context.Context, userID string, recipeID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND id = ?", userID, recipeID).Delete(&Recipe{})
		if result.Error != nil {
			return fmt.Errorf("recipes: delete recipe: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrRecipeNotFound
		}
		if err := tx.Where("recipe_id = ?", recipeID).Delete(&CookbookRecipe{}).Error; err != nil {
			return fmt.Errorf("recipes: delete recipe memberships: %w", err)
		}
		return nil
	})
}

// CreateCookbook persists a new cookbook for the owner.
func (s *Service) CreateCookbook(ctx context.Context, userID string, input CookbookInput) (*Cookbook, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return nil, fmt.Errorf("recipes: generate cookbook id: %w", err)
	}

	now := s.now().UTC()
	cookbook := Cookbook{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&cookbook).Error; err != nil {
		return nil, fmt.Errorf("recipes: create cookbook: %w", err)
	}
	return &cookbook, nil
}

// ListCookbooks returns the owner's cookbooks ordered by title.
func (s *Service) ListCookbooks(ctx context.Context, userID string) ([]Cookbook, error) {
	var list []Cookbook
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("title ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("recipes: list cookbooks: %w", err)
	}
	return list, nil
}

// DeleteCookbook removes one owned cookbook and its memberships. The recipes
// themselves stay.
func (s *Service) DeleteCookbook(ctx context.Context, userID string, cookbookID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND id = ?", userID, cookbookID).Delete(&Cookbook{})
		if result.Error != nil {
			return fmt.Errorf("recipes: delete cookbook: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrCookbookNotFound
		}
		if err := tx.Where("cookbook_id = ?", cookbookID).Delete(&CookbookRecipe{}).Error; err != nil {
			return fmt.Errorf("recipes: delete cookbook memberships: %w", err)
		}
		return nil
	})
}

// AddToCookbook files an owned recipe into an owned cookbook. Re-adding is
// idempotent.
func (s *Service) AddToCookbook(ctx context.Context, userID string, cookbookID string, recipeID string) error {
	if err := s.ownsCookbook(ctx, userID, cookbookID); err != nil {
		return err
	}
	if _, err := s.GetRecipe(ctx, userID, recipeID); err != nil {
		return err
	}

	membership := CookbookRecipe{
		CookbookID: cookbookID,
		RecipeID:   recipeID,
		AddedAt:    s.now().UTC(),
	}
	err := s.db.WithContext(ctx).Create(&membership).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("recipes: add to cookbook: %w", err)
	}
	return nil
}

// RemoveFromCookbook drops a membership. Removing an absent membership is a
// no-op.
func (s *Service) RemoveFromCookbook(ctx context.Context, userID string, cookbookID string, recipeID string) error {
	if err := s.ownsCookbook(ctx, userID, cookbookID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Where("cookbook_id = ? AND recipe_id = ?", cookbookID, recipeID).
		Delete(&CookbookRecipe{}).Error
	if err != nil {
		return fmt.Errorf("recipes: remove from cookbook: %w", err)
	}
	return nil
}

// ListCookbookRecipes returns the recipes filed in one owned cookbook in the
// order they were added.
func (s *Service) ListCookbookRecipes(ctx context.Context, userID string, cookbookID string) ([]Recipe, error) {
	if err := s.ownsCookbook(ctx, userID, cookbookID); err != nil {
		return nil, err
	}

	var list []Recipe
	err := s.db.WithContext(ctx).
		Joins("JOIN cookbook_recipes ON cookbook_recipes.recipe_id = recipes.id").
		Where("cookbook_recipes.cookbook_id = ? AND recipes.user_id = ?", cookbookID, userID).
		Order("cookbook_recipes.added_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("recipes: list cookbook recipes: %w", err)
	}
	return list, nil
}

func (s *Service) ownsCookbook(ctx context.Context, userID string, cookbookID string) error {
	var cookbook Cookbook
	err := s.db.WithContext(ctx).
		Select("id").
		Where("user_id = ? AND id = ?", userID, cookbookID).
		Take(&cookbook).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCookbookNotFound
	}
	if err != nil {
		return fmt.Errorf("recipes: load cookbook: %w", err)
	}
	return nil
}

func validateTitle(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTitle)
	}
	if len(trimmed) > maxTitleLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidTitle, maxTitleLength)
	}
	return trimmed, nil
}
