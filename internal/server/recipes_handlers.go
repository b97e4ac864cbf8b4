package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arimendelow/spoonjoy/backend/internal/recipes"
)

type recipePayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Ingredients string `json:"ingredients"`
	Steps       string `json:"steps"`
	Servings    int    `json:"servings"`
	PrepMinutes int    `json:"prepMinutes"`
	CookMinutes int    `json:"cookMinutes"`
	ImageURL    string `json:"imageUrl"`
}

type recipeResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Ingredients string `json:"ingredients"`
	Steps       string `json:"steps"`
	Servings    int    `json:"servings"`
	PrepMinutes int    `json:"prepMinutes"`
	CookMinutes int    `json:"cookMinutes"`
	ImageURL    string `json:"imageUrl,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type cookbookPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type cookbookResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toRecipeResponse(recipe recipes.Recipe) recipeResponse {
	response := recipeResponse{
		ID:          recipe.ID,
		Title:       recipe.Title,
		Description: recipe.Description,
		Ingredients: recipe.Ingredients,
		Steps:       recipe.Steps,
		Servings:    recipe.Servings,
		PrepMinutes: recipe.PrepMinutes,
		CookMinutes: recipe.CookMinutes,
		CreatedAt:   recipe.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   recipe.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if recipe.ImageURL != nil {
		response.ImageURL = *recipe.ImageURL
	}
	return response
}

func toCookbookResponse(cookbook recipes.Cookbook) cookbookResponse {
	return cookbookResponse{
		ID:          cookbook.ID,
		Title:       cookbook.Title,
		Description: cookbook.Description,
		CreatedAt:   cookbook.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   cookbook.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func recipeInputFromPayload(payload recipePayload) recipes.RecipeInput {
	return recipes.RecipeInput{
		Title:       payload.Title,
		Description: payload.Description,
		Ingredients: payload.Ingredients,
		Steps:       payload.Steps,
		Servings:    payload.Servings,
		PrepMinutes: payload.PrepMinutes,
		CookMinutes: payload.CookMinutes,
		ImageURL:    payload.ImageURL,
	}
}

func (h *httpHandler) writeCatalogError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, recipes.ErrRecipeNotFound), errors.Is(err, recipes.ErrCookbookNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, recipes.ErrInvalidTitle):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_title"})
	default:
		h.logger.Error("catalog operation failed", zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog_failed"})
	}
}

func (h *httpHandler) handleListRecipes(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	list, err := h.recipes.ListRecipes(c.Request.Context(), userID)
	if err != nil {
		h.writeCatalogError(c, "list_recipes", err)
		return
	}
	response := make([]recipeResponse, 0, len(list))
	for _, recipe := range list {
		response = append(response, toRecipeResponse(recipe))
	}
	c.JSON(http.StatusOK, gin.H{"recipes": response})
}

func (h *httpHandler) handleCreateRecipe(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var payload recipePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	recipe, err := h.recipes.CreateRecipe(c.Request.Context(), userID, recipeInputFromPayload(payload))
	if err != nil {
		h.writeCatalogError(c, "create_recipe", err)
		return
	}
	c.JSON(http.StatusCreated, toRecipeResponse(*recipe))
}

func (h *httpHandler) handleGetRecipe(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	recipe, err := h.recipes.GetRecipe(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeCatalogError(c, "get_recipe", err)
		return
	}
	c.JSON(http.StatusOK, toRecipeResponse(*recipe))
}

func (h *httpHandler) handleUpdateRecipe(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var payload recipePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	recipe, err := h.recipes.UpdateRecipe(c.Request.Context(), userID, c.Param("id"), recipeInputFromPayload(payload))
	if err != nil {
		h.writeCatalogError(c, "update_recipe", err)
		return
	}
	c.JSON(http.StatusOK, toRecipeResponse(*recipe))
}

func (h *httpHandler) handleDeleteRecipe(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	if err := h.recipes.DeleteRecipe(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeCatalogError(c, "delete_recipe", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListCookbooks(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	list, err := h.recipes.ListCookbooks(c.Request.Context(), userID)
	if err != nil {
		h.writeCatalogError(c, "list_cookbooks", err)
		return
	}
	response := make([]cookbookResponse, 0, len(list))
	for _, cookbook := range list {
		response = append(response, toCookbookResponse(cookbook))
	}
	c.JSON(http.StatusOK, gin.H{"cookbooks": response})
}

func (h *httpHandler) handleCreateCookbook(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var payload cookbookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	cookbook, err := h.recipes.CreateCookbook(c.Request.Context(), userID, recipes.CookbookInput{
		Title:       payload.Title,
		Description: payload.Description,
	})
	if err != nil {
		h.writeCatalogError(c, "create_cookbook", err)
		return
	}
	c.JSON(http.StatusCreated, toCookbookResponse(*cookbook))
}

func (h *httpHandler) handleDeleteCookbook(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	if err := h.recipes.DeleteCookbook(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeCatalogError(c, "delete_cookbook", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListCookbookRecipes(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	list, err := h.recipes.ListCookbookRecipes(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeCatalogError(c, "list_cookbook_recipes", err)
		return
	}
	response := make([]recipeResponse, 0, len(list))
	for _, recipe := range list {
		response = append(response, toRecipeResponse(recipe))
	}
	c.JSON(http.StatusOK, gin.H{"recipes": response})
}

func (h *httpHandler) handleAddToCookbook(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	err := h.recipes.AddToCookbook(c.Request.Context(), userID, c.Param("id"), c.Param("recipeID"))
	if err != nil {
		h.writeCatalogError(c, "add_to_cookbook", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleRemoveFromCookbook(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	err := h.recipes.RemoveFromCookbook(c.Request.Context(), userID, c.Param("id"), c.Param("recipeID"))
	if err != nil {
		h.writeCatalogError(c, "remove_from_cookbook", err)
		return
	}
	c.Status(http.StatusNoContent)
}
