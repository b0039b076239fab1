package main

import (
	"net/http"

	"famrecipes/models"

	"github.com/gin-gonic/gin"
)

func (a *app) addComment(c *gin.Context) {
	user := currentUser(c)
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	var recipe models.Recipe
	if err := a.db.First(&recipe, "id = ?", c.Param("recipeID")).Error; err != nil {
		abortError(c, http.StatusNotFound, "Recipe not found")
		return
	}

	comment := models.Comment{
		UserID:    user.ID,
		RecipeID:  recipe.ID,
		Content:   req.Content,
		CreatedAt: a.clock.Now(),
	}
	if err := a.db.Create(&comment).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	comment.User = *user
	c.JSON(http.StatusOK, gin.H{"data": comment.ToDict()})
}

// editComment lets the author change the content.
func (a *app) editComment(c *gin.Context) {
	user := currentUser(c)
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	var comment models.Comment
	if err := a.db.First(&comment, "id = ?", c.Param("commentID")).Error; err != nil {
		abortError(c, http.StatusNotFound, "Comment not found")
		return
	}
	if comment.UserID != user.ID {
		abortError(c, http.StatusForbidden, "Not your comment")
		return
	}
	now := a.clock.Now()
	updates := map[string]any{"content": req.Content, "updated_at": &now}
	if err := a.db.Model(&comment).Updates(updates).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Status(http.StatusNoContent)
}

// deleteComment is allowed for the author and for managers/admins.
func (a *app) deleteComment(c *gin.Context) {
	user := currentUser(c)
	var comment models.Comment
	if err := a.db.First(&comment, "id = ?", c.Param("commentID")).Error; err != nil {
		abortError(c, http.StatusNotFound, "Comment not found")
		return
	}
	if comment.UserID != user.ID && user.Role != models.RoleManager && user.Role != models.RoleAdmin {
		abortError(c, http.StatusForbidden, "Not your comment")
		return
	}
	if err := a.db.Delete(&comment).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Status(http.StatusNoContent)
}
