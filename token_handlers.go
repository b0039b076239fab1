package main

import (
	"errors"
	"net/http"

	"famrecipes/models"
	"famrecipes/pkg/auth"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// tokenResponse writes the pair the way the frontends consume it: the
// refresh token travels in a hardened cookie scoped to the refresh route,
// while mobile clients (no cookie jar) get both secrets in the body.
func (a *app) tokenResponse(c *gin.Context, token *models.Token, user *models.User) {
	payload := gin.H{"access_token": token.AccessToken}
	if user != nil {
		payload["data"] = user.ToDict()
	}

	if c.GetHeader("X-Is-Mobile") == "true" {
		payload["refresh_token"] = token.RefreshToken
		c.JSON(http.StatusOK, payload)
		return
	}

	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(
		"refresh_token",
		token.RefreshToken,
		a.cfg.RefreshTokenDays*24*60*60,
		"/api/tokens",
		"",
		true, // secure
		true, // http-only
	)
	payload["refresh_token"] = nil
	c.JSON(http.StatusOK, payload)
}

func (a *app) registerUser(c *gin.Context) {
	var req struct {
		Username    string `json:"username" binding:"required"`
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required"`
		RegisterKey string `json:"register_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "Not all fields included: username, email, password, register_key")
		return
	}
	if req.RegisterKey != a.cfg.RegisterKey {
		abortError(c, http.StatusBadRequest, "Invalid register key")
		return
	}

	var existing models.User
	if err := a.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		abortError(c, http.StatusBadRequest, "Invalid Username")
		return
	}
	if err := a.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		abortError(c, http.StatusBadRequest, "Invalid email")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	now := a.clock.Now()
	user := models.User{
		Username:   req.Username,
		Email:      req.Email,
		Password:   hash,
		Role:       models.RoleUser,
		Registered: now,
		LastSeen:   &now,
	}
	if err := a.db.Create(&user).Error; err != nil {
		// unique constraint race after the pre-checks
		abortError(c, http.StatusBadRequest, "Invalid Username")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *app) getCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c).ToDict())
}

// newToken creates an access/refresh pair after HTTP Basic authentication.
func (a *app) newToken(c *gin.Context) {
	username, password, ok := c.Request.BasicAuth()
	if !ok {
		c.Header("WWW-Authenticate", "Form")
		abortError(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	user, err := a.auth.Authenticate(username, password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			c.Header("WWW-Authenticate", "Form")
			abortError(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	token, err := a.auth.IssueToken(user)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	a.tokenResponse(c, token, user)
}

// refreshToken rotates the pair. The access token comes from the body, the
// refresh token from its cookie.
func (a *app) refreshToken(c *gin.Context) {
	var req struct {
		AccessToken string `json:"access_token"`
	}
	_ = c.ShouldBindJSON(&req)
	refreshSecret, _ := c.Cookie("refresh_token")
	if req.AccessToken == "" || refreshSecret == "" {
		abortError(c, http.StatusUnauthorized, "Access token or refresh token not found")
		return
	}
	token, err := a.auth.Refresh(refreshSecret, req.AccessToken)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			abortError(c, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	a.tokenResponse(c, token, nil)
}

// revokeToken expires the caller's access token (logout).
func (a *app) revokeToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if len(header) < 8 || header[:7] != "Bearer " {
		abortError(c, http.StatusUnauthorized, "Invalid access token")
		return
	}
	if err := a.auth.Logout(header[7:]); err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			abortError(c, http.StatusUnauthorized, "Invalid access token")
			return
		}
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Status(http.StatusNoContent)
}

// resetPasswordToken mails a signed reset token to the account's address.
// The email goes out on a separate goroutine; only preparation failures
// reach the caller.
func (a *app) resetPasswordToken(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Callback string `json:"callback" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "Not all fields included: email, callback")
		return
	}
	var user models.User
	if err := a.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortError(c, http.StatusUnauthorized, "This email is invalid")
			return
		}
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	signed, err := a.auth.IssueResetToken(&user)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if err := a.mail.SendPasswordReset(user.Email, user.Username, req.Callback, signed); err != nil {
		abortError(c, http.StatusBadRequest, "An error occurred while sending the password reset email. Please try again later.")
		return
	}
	c.Status(http.StatusNoContent)
}

// resetPassword applies a new password after verifying the signed token.
func (a *app) resetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	user := a.auth.VerifyResetToken(req.Token)
	if user == nil {
		abortError(c, http.StatusBadRequest, "This is an invalid or an expired token.")
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if err := a.db.Model(user).Update("password", hash).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Status(http.StatusNoContent)
}
