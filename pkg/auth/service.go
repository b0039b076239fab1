package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"famrecipes/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrUnauthorized covers every credential and token failure: bad password,
// unknown user, missing/expired/mismatched/reused tokens. Callers surface it
// as 401 without distinguishing the cases.
var ErrUnauthorized = errors.New("unauthorized")

// expireGrace keeps a rotated-out or logged-out token alive for a few more
// seconds so requests already in flight with it still resolve.
const expireGrace = 5 * time.Second

// cleanAfter is how long past its refresh expiry a token row survives before
// Clean removes it.
const cleanAfter = 24 * time.Hour

// Config carries the secrets and lifetimes the auth core needs. It is built
// once at startup and passed by reference; the core never reads globals.
type Config struct {
	SecretKey          string
	AccessTokenMinutes int
	RefreshTokenDays   int
	ResetTokenMinutes  int
	Testing            bool // drops the expire grace to zero for deterministic tests
}

// Service implements credential verification, the access/refresh token
// lifecycle and bearer-session resolution on top of the relational store.
type Service struct {
	db    *gorm.DB
	cfg   *Config
	clock Clock
}

func NewService(db *gorm.DB, cfg *Config, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{db: db, cfg: cfg, clock: clock}
}

// HashPassword generates a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Authenticate checks username/password against the stored hash.
func (s *Service) Authenticate(username, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrUnauthorized
	}
	return &user, nil
}

// IssueToken creates and persists a fresh token pair for user. Rows whose
// refresh expiry is long past are cleaned out in the same transaction, so
// the store stays bounded without a scheduler.
func (s *Service) IssueToken(user *models.User) (*models.Token, error) {
	token, err := s.newToken(user)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(token).Error; err != nil {
			return err
		}
		return s.cleanTx(tx)
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Refresh validates a refresh/access pair, retires it with the grace delay
// and issues a replacement, all in one transaction.
//
// A pair that matches no row is rejected outright: it is either unknown or
// was already rotated away. A matching pair whose refresh window has passed
// is treated as replay of a stolen token, so every token belonging to that
// user is revoked before rejecting.
func (s *Service) Refresh(refreshSecret, accessSecret string) (*models.Token, error) {
	if refreshSecret == "" || accessSecret == "" {
		return nil, ErrUnauthorized
	}

	var old models.Token
	err := s.db.Where("refresh_token = ? AND access_token = ?", refreshSecret, accessSecret).First(&old).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !old.RefreshExpiration.After(s.clock.Now()) {
		if err := s.RevokeAll(old.UserID); err != nil {
			return nil, err
		}
		return nil, ErrUnauthorized
	}

	var user models.User
	if err := s.db.First(&user, old.UserID).Error; err != nil {
		return nil, err
	}
	fresh, err := s.newToken(&user)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.expireTx(tx, &old); err != nil {
			return err
		}
		return tx.Create(fresh).Error
	})
	if err != nil {
		return nil, fmt.Errorf("rotate token: %w", err)
	}
	return fresh, nil
}

// Logout expires the token matching the given access secret. The grace delay
// applies, so the logout response itself and any concurrent request finish
// cleanly before the token dies.
func (s *Service) Logout(accessSecret string) error {
	var token models.Token
	err := s.db.Where("access_token = ?", accessSecret).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.expireTx(tx, &token)
	})
}

// RevokeAll deletes every token row belonging to the user. Used for
// logout-everywhere and as the reuse-detection response.
func (s *Service) RevokeAll(userID uint) error {
	return s.db.Where("user_id = ?", userID).Delete(&models.Token{}).Error
}

// Clean removes token rows whose refresh expiry is more than a day in the
// past. Double deletes from concurrent callers are harmless.
func (s *Service) Clean() error {
	return s.cleanTx(s.db)
}

// ResolveBearer maps an access secret to its live user, touching the user's
// last-seen timestamp as a side effect. The token's own expiry is absolute
// from issuance and never extended here. A nil user with a nil error means
// unauthorized; a non-nil error is a storage failure.
func (s *Service) ResolveBearer(accessSecret string) (*models.User, error) {
	if accessSecret == "" {
		return nil, nil
	}
	var token models.Token
	err := s.db.Where("access_token = ?", accessSecret).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	now := s.clock.Now()
	if !token.AccessExpiration.After(now) {
		return nil, nil
	}
	var user models.User
	if err := s.db.First(&user, token.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.db.Model(&user).Update("last_seen", now).Error; err != nil {
		return nil, err
	}
	user.LastSeen = &now
	return &user, nil
}

func (s *Service) newToken(user *models.User) (*models.Token, error) {
	access, err := randomSecret()
	if err != nil {
		return nil, err
	}
	refresh, err := randomSecret()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	return &models.Token{
		UserID:            user.ID,
		AccessToken:       access,
		AccessExpiration:  now.Add(time.Duration(s.cfg.AccessTokenMinutes) * time.Minute),
		RefreshToken:      refresh,
		RefreshExpiration: now.Add(time.Duration(s.cfg.RefreshTokenDays) * 24 * time.Hour),
	}, nil
}

func (s *Service) expireTx(tx *gorm.DB, token *models.Token) error {
	grace := expireGrace
	if s.cfg.Testing {
		grace = 0
	}
	deadline := s.clock.Now().Add(grace)
	return tx.Model(&models.Token{}).Where("id = ?", token.ID).Updates(map[string]any{
		"access_expiration":  deadline,
		"refresh_expiration": deadline,
	}).Error
}

func (s *Service) cleanTx(tx *gorm.DB) error {
	cutoff := s.clock.Now().Add(-cleanAfter)
	return tx.Where("refresh_expiration < ?", cutoff).Delete(&models.Token{}).Error
}

// randomSecret returns a 256-bit URL-safe opaque secret, 43 characters long.
func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
