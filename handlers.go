package main

import (
	"encoding/json"
	"net/http"

	"famrecipes/models"
	"famrecipes/pkg/auth"
	"famrecipes/pkg/images"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const ctxUserKey = "currentUser"

// ResetMailer is what the reset route needs from the mail layer; tests plug
// in a capture instead of a real SMTP sender.
type ResetMailer interface {
	SendPasswordReset(to, username, callback, token string) error
}

type app struct {
	db    *gorm.DB
	cfg   *Config
	clock auth.Clock
	auth  *auth.Service
	mail  ResetMailer
}

func setupRoutes(r *gin.Engine, a *app) {
	api := r.Group("/api")
	api.POST("/register_user", a.registerUser)
	api.POST("/tokens", a.newToken)
	api.PUT("/tokens", a.refreshToken)
	api.DELETE("/tokens", a.revokeToken)
	api.POST("/tokens/reset_password_token", a.resetPasswordToken)
	api.POST("/tokens/reset_password", a.resetPassword)

	authed := api.Group("")
	authed.Use(a.tokenAuth())
	authed.GET("/current_user", a.getCurrentUser)
	authed.GET("/dashboard", a.dashboard)
	authed.GET("/details/:recipeID", a.details)
	authed.POST("/add_recipe", a.addRecipe)
	authed.GET("/edit_recipe/:recipeID", a.getRecipeForEdit)
	authed.POST("/edit_recipe/:recipeID", a.editRecipe)
	authed.POST("/update_favorite", a.updateFavorite)
	authed.POST("/delete_recipe", a.deleteRecipe)
	authed.GET("/all_recipes", a.allRecipes)
	authed.GET("/get_labels", a.getLabels)
	authed.POST("/details/:recipeID/comments", a.addComment)
	authed.PUT("/comments/:commentID", a.editComment)
	authed.DELETE("/comments/:commentID", a.deleteComment)
}

// abortError renders the error payload shape shared by every failure path.
func abortError(c *gin.Context, status int, description string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":        status,
		"message":     http.StatusText(status),
		"description": description,
	})
}

// tokenAuth resolves the bearer access token to a live user and stores it on
// the request context. Resolution touches the user's last-seen timestamp but
// never extends the token itself.
func (a *app) tokenAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) < 8 || header[:7] != "Bearer " {
			abortError(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}
		user, err := a.auth.ResolveBearer(header[7:])
		if err != nil {
			abortError(c, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if user == nil {
			abortError(c, http.StatusUnauthorized, "Invalid access token")
			return
		}
		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// currentUser returns the identity stored by tokenAuth for this request.
func currentUser(c *gin.Context) *models.User {
	v, _ := c.Get(ctxUserKey)
	user, _ := v.(*models.User)
	return user
}

// --- Recipe payloads --------------------------------------------------------

type recipeForm struct {
	Title       string   `json:"title"`
	Cooking     int      `json:"cooking"`
	Preparation int      `json:"preparation"`
	Servings    int      `json:"servings"`
	Comment     string   `json:"comment"`
	Steps       []string `json:"steps"`
	Labels      []string `json:"labels"`
	Ingredients []struct {
		Quantity    json.Number `json:"quantity"`
		Description string      `json:"description"`
	} `json:"ingredients"`
}

type ingredientRow struct {
	Proportion json.Number `json:"proportion"`
	Ingredient string      `json:"ingredient"`
}

type stepRow struct {
	Description string `json:"description"`
}

// parseRecipeForm reads the multipart "recipe" JSON field.
func parseRecipeForm(c *gin.Context) (*recipeForm, error) {
	var form recipeForm
	if err := json.Unmarshal([]byte(c.PostForm("recipe")), &form); err != nil {
		return nil, err
	}
	return &form, nil
}

// encode serializes ingredients and steps into the stored JSON columns.
func (f *recipeForm) encode() (string, string) {
	ingredients := make([]ingredientRow, 0, len(f.Ingredients))
	for _, ing := range f.Ingredients {
		ingredients = append(ingredients, ingredientRow{Proportion: ing.Quantity, Ingredient: ing.Description})
	}
	steps := make([]stepRow, 0, len(f.Steps))
	for _, s := range f.Steps {
		steps = append(steps, stepRow{Description: s})
	}
	ingJSON, _ := json.Marshal(ingredients)
	stepJSON, _ := json.Marshal(steps)
	return string(ingJSON), string(stepJSON)
}

// saveCover stores the uploaded image if one was sent and returns its stored
// name, or "" when the request carried no image.
func (a *app) saveCover(c *gin.Context) (string, bool) {
	fh, err := c.FormFile("image")
	if err != nil || fh == nil {
		return "", true
	}
	if fh.Size > a.cfg.MaxContentLength {
		abortError(c, http.StatusBadRequest, "The uploaded image is too large.")
		return "", false
	}
	src, err := fh.Open()
	if err != nil {
		abortError(c, http.StatusBadRequest, "The uploaded image is not processable. Please select another one.")
		return "", false
	}
	defer src.Close()
	name, err := images.Save(src, fh.Filename, a.cfg.UploadBase)
	if err != nil {
		abortError(c, http.StatusBadRequest, "The uploaded image is not processable. Please select another one.")
		return "", false
	}
	return name, true
}

func (a *app) loadRecipe(id string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := a.db.Preload("Submitter").Preload("Labels").First(&recipe, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// recipeDict is the full JSON shape of a recipe, including the decoded
// ingredient/step lists and whether the calling user favorited it.
func (a *app) recipeDict(recipe *models.Recipe, user *models.User) gin.H {
	var ingredients, steps any
	_ = json.Unmarshal([]byte(recipe.Ingredients), &ingredients)
	_ = json.Unmarshal([]byte(recipe.Steps), &steps)

	labels := make([]map[string]any, 0, len(recipe.Labels))
	for i := range recipe.Labels {
		labels = append(labels, recipe.Labels[i].ToDict())
	}

	favorited := false
	if user != nil {
		var n int64
		a.db.Table("favorites").Where("user_id = ? AND recipe_id = ?", user.ID, recipe.ID).Count(&n)
		favorited = n > 0
	}

	return gin.H{
		"id":             recipe.ID,
		"submitter_id":   recipe.SubmitterID,
		"title":          recipe.Title,
		"image":          recipe.Image,
		"cover_image":    "/static/recipe_images/" + recipe.Image,
		"cooking_time":   recipe.CookingTime,
		"prep_time":      recipe.PrepTime,
		"servings":       recipe.Servings,
		"ingredients":    ingredients,
		"steps":          steps,
		"comment":        recipe.Comment,
		"submitted_date": recipe.SubmittedDate,
		"submitter":      recipe.Submitter.ToDict(),
		"labels":         labels,
		"is_favorited":   favorited,
	}
}

// --- Recipe handlers --------------------------------------------------------

func (a *app) dashboard(c *gin.Context) {
	user := currentUser(c)

	var recent []models.Recipe
	if err := a.db.Preload("Submitter").Preload("Labels").
		Order("submitted_date desc").Limit(8).Find(&recent).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	var favs []models.Recipe
	if err := a.db.Preload("Submitter").Preload("Labels").
		Joins("JOIN favorites ON favorites.recipe_id = recipes.id").
		Where("favorites.user_id = ?", user.ID).Find(&favs).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	lastRecipes := make([]gin.H, 0, len(recent))
	for i := range recent {
		lastRecipes = append(lastRecipes, a.recipeDict(&recent[i], user))
	}
	favoriteRecipes := make([]gin.H, 0, len(favs))
	for i := range favs {
		favoriteRecipes = append(favoriteRecipes, a.recipeDict(&favs[i], user))
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"last_recipes":     lastRecipes,
		"favorite_recipes": favoriteRecipes,
	}})
}

func (a *app) details(c *gin.Context) {
	recipe, err := a.loadRecipe(c.Param("recipeID"))
	if err != nil {
		abortError(c, http.StatusNotFound, "Recipe not found")
		return
	}
	var comments []models.Comment
	if err := a.db.Preload("User").Where("recipe_id = ?", recipe.ID).
		Order("created_at asc").Find(&comments).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	dict := a.recipeDict(recipe, currentUser(c))
	commentDicts := make([]map[string]any, 0, len(comments))
	for i := range comments {
		commentDicts = append(commentDicts, comments[i].ToDict())
	}
	dict["comments"] = commentDicts
	c.JSON(http.StatusOK, gin.H{"data": dict})
}

func (a *app) addRecipe(c *gin.Context) {
	user := currentUser(c)
	form, err := parseRecipeForm(c)
	if err != nil {
		abortError(c, http.StatusBadRequest, "Invalid Request")
		return
	}
	image, ok := a.saveCover(c)
	if !ok {
		return
	}
	if image == "" {
		image = "default.png"
	}

	var labels []models.Label
	if len(form.Labels) > 0 {
		if err := a.db.Where("name IN ?", form.Labels).Find(&labels).Error; err != nil {
			abortError(c, http.StatusInternalServerError, "Internal Server Error")
			return
		}
	}
	ingredients, steps := form.encode()

	recipe := models.Recipe{
		SubmitterID:   user.ID,
		Title:         form.Title,
		Image:         image,
		CookingTime:   form.Cooking,
		PrepTime:      form.Preparation,
		Servings:      form.Servings,
		Comment:       form.Comment,
		Ingredients:   ingredients,
		Steps:         steps,
		SubmittedDate: a.clock.Now(),
		Labels:        labels,
	}
	if err := a.db.Create(&recipe).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"recipe_id": recipe.ID}})
}

func (a *app) getRecipeForEdit(c *gin.Context) {
	recipe, err := a.loadRecipe(c.Param("recipeID"))
	if err != nil {
		abortError(c, http.StatusNotFound, "Recipe not found")
		return
	}
	full := a.recipeDict(recipe, currentUser(c))
	fields := gin.H{}
	for _, key := range models.FormOnly() {
		fields[key] = full[key]
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"fields": fields,
		"labels": a.allLabelDicts(),
	}})
}

func (a *app) editRecipe(c *gin.Context) {
	recipe, err := a.loadRecipe(c.Param("recipeID"))
	if err != nil {
		abortError(c, http.StatusNotFound, "Recipe not found")
		return
	}
	form, err := parseRecipeForm(c)
	if err != nil {
		abortError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	image, ok := a.saveCover(c)
	if !ok {
		return
	}
	if image == "" {
		image = recipe.Image
	}

	var labels []models.Label
	if len(form.Labels) > 0 {
		if err := a.db.Where("name IN ?", form.Labels).Find(&labels).Error; err != nil {
			abortError(c, http.StatusInternalServerError, "Internal Server Error")
			return
		}
	}
	ingredients, steps := form.encode()

	err = a.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"image":        image,
			"title":        form.Title,
			"cooking_time": form.Cooking,
			"prep_time":    form.Preparation,
			"servings":     form.Servings,
			"comment":      form.Comment,
			"ingredients":  ingredients,
			"steps":        steps,
		}
		if err := tx.Model(recipe).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(recipe).Association("Labels").Replace(labels)
	})
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *app) updateFavorite(c *gin.Context) {
	user := currentUser(c)
	var req struct {
		RecipeID uint `json:"recipe_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	var recipe models.Recipe
	if err := a.db.First(&recipe, req.RecipeID).Error; err != nil {
		abortError(c, http.StatusNotFound, "Recipe not found")
		return
	}

	var n int64
	a.db.Table("favorites").Where("user_id = ? AND recipe_id = ?", user.ID, recipe.ID).Count(&n)
	assoc := a.db.Model(user).Association("FavRecipes")
	var err error
	if n > 0 {
		err = assoc.Delete(&recipe)
	} else {
		err = assoc.Append(&recipe)
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *app) allRecipes(c *gin.Context) {
	user := currentUser(c)
	var recipes []models.Recipe
	if err := a.db.Preload("Submitter").Preload("Labels").Find(&recipes).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	dicts := make([]gin.H, 0, len(recipes))
	for i := range recipes {
		dicts = append(dicts, a.recipeDict(&recipes[i], user))
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"labels":  a.allLabelDicts(),
		"recipes": dicts,
	}})
}

func (a *app) deleteRecipe(c *gin.Context) {
	var req struct {
		RecipeID uint `json:"recipe_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	var recipe models.Recipe
	if err := a.db.First(&recipe, req.RecipeID).Error; err != nil {
		abortError(c, http.StatusNotFound, "Recipe not found")
		return
	}
	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&recipe).Association("Labels").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&recipe).Association("FavoritedBy").Clear(); err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&recipe).Error
	})
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *app) getLabels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": a.allLabelDicts()})
}

func (a *app) allLabelDicts() []map[string]any {
	var labels []models.Label
	a.db.Order("sort_order asc").Find(&labels)
	dicts := make([]map[string]any, 0, len(labels))
	for i := range labels {
		dicts = append(dicts, labels[i].ToDict())
	}
	return dicts
}
