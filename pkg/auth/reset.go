package auth

import (
	"fmt"
	"time"

	"famrecipes/models"

	"github.com/golang-jwt/jwt/v5"
)

// IssueResetToken signs a short-lived token carrying the user id for the
// out-of-band password reset flow. The token is stateless: it is never
// stored and is verified purely by signature and embedded expiry.
func (s *Service) IssueResetToken(user *models.User) (string, error) {
	ttl := time.Duration(s.cfg.ResetTokenMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token": user.ID,
		"exp":   s.clock.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

// VerifyResetToken checks signature and expiry in one step and resolves the
// embedded user. Any structural, signature or lookup failure yields nil.
func (s *Service) VerifyResetToken(signed string) *models.User {
	parsed, err := jwt.Parse(signed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return []byte(s.cfg.SecretKey), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !parsed.Valid {
		return nil
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	id, ok := claims["token"].(float64)
	if !ok {
		return nil
	}
	var user models.User
	if err := s.db.First(&user, uint(id)).Error; err != nil {
		return nil
	}
	return &user
}
