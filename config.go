package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"famrecipes/pkg/auth"
	"famrecipes/pkg/mailer"

	"github.com/spf13/viper"
)

// Config is assembled once at startup and passed by reference into the
// components that need it. Nothing reads the environment after loadConfig.
type Config struct {
	Addr        string
	DatabaseURI string
	AutoMigrate bool

	SecretKey          string
	RegisterKey        string
	AccessTokenMinutes int
	RefreshTokenDays   int
	ResetTokenMinutes  int
	Testing            bool

	MailServer   string
	MailPort     int
	MailUseTLS   bool
	MailUsername string
	MailPassword string

	UploadBase       string
	LabelsFile       string
	MaxContentLength int64
}

func loadConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("API_ADDR", ":8081")
	v.SetDefault("FAM_DATABASE_URI", "")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("SECRET_KEY", "you-will-never-guess")
	v.SetDefault("REGISTER_KEY", "")
	v.SetDefault("ACCESS_TOKEN_MINUTES", 15)
	v.SetDefault("REFRESH_TOKEN_DAYS", 7)
	v.SetDefault("RESET_TOKEN_MINUTES", 15)
	v.SetDefault("MAIL_SERVER", "localhost")
	v.SetDefault("MAIL_PORT", 25)
	v.SetDefault("MAIL_USE_TLS", false)
	v.SetDefault("MAIL_USERNAME", "")
	v.SetDefault("MAIL_PASSWORD", "")
	v.SetDefault("UPLOAD_BASE", "static/recipe_images")
	v.SetDefault("LABELS_FILE", "static/labels.json")
	v.SetDefault("MAX_CONTENT_LENGTH", 8<<20)

	return &Config{
		Addr:               v.GetString("API_ADDR"),
		DatabaseURI:        v.GetString("FAM_DATABASE_URI"),
		AutoMigrate:        v.GetBool("DB_AUTO_MIGRATE"),
		SecretKey:          v.GetString("SECRET_KEY"),
		RegisterKey:        v.GetString("REGISTER_KEY"),
		AccessTokenMinutes: v.GetInt("ACCESS_TOKEN_MINUTES"),
		RefreshTokenDays:   v.GetInt("REFRESH_TOKEN_DAYS"),
		ResetTokenMinutes:  v.GetInt("RESET_TOKEN_MINUTES"),
		MailServer:         v.GetString("MAIL_SERVER"),
		MailPort:           v.GetInt("MAIL_PORT"),
		MailUseTLS:         v.GetBool("MAIL_USE_TLS"),
		MailUsername:       v.GetString("MAIL_USERNAME"),
		MailPassword:       v.GetString("MAIL_PASSWORD"),
		UploadBase:         v.GetString("UPLOAD_BASE"),
		LabelsFile:         v.GetString("LABELS_FILE"),
		MaxContentLength:   v.GetInt64("MAX_CONTENT_LENGTH"),
	}
}

func (c *Config) authConfig() *auth.Config {
	return &auth.Config{
		SecretKey:          c.SecretKey,
		AccessTokenMinutes: c.AccessTokenMinutes,
		RefreshTokenDays:   c.RefreshTokenDays,
		ResetTokenMinutes:  c.ResetTokenMinutes,
		Testing:            c.Testing,
	}
}

func (c *Config) mailConfig() mailer.Config {
	return mailer.Config{
		Server:   c.MailServer,
		Port:     c.MailPort,
		UseTLS:   c.MailUseTLS,
		Username: c.MailUsername,
		Password: c.MailPassword,
	}
}

// loadDotEnv loads key=value pairs from a local .env file into the environment
// without overwriting variables that are already set. Lines starting with # are ignored.
func loadDotEnv() {
	path := ".env"
	if _, err := os.Stat(path); err != nil {
		return // no .env file
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// split on first '='
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.TrimSpace(line[eq+1:])
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
