// Package bootstrap connects the runtime dependencies shared by the server and the CLI tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nocson47/beaconofknowledge/internal/cache"
	"github.com/nocson47/beaconofknowledge/internal/config"
	"github.com/nocson47/beaconofknowledge/internal/database"
	"github.com/nocson47/beaconofknowledge/internal/middleware"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultRootUsername = "beacon_root"
	defaultRootEmail    = "root@beacon.local"
)

// InitRuntime opens the database and Redis. A nil Redis client is not an error: sessions,
// rate limits and caches then run in their degraded modes.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()
	if rdb == nil {
		middleware.Logger.Warn("redis unavailable, running without cache and session revocation")
	}

	if err := EnsureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}
	return db, rdb, nil
}

// rootAccount is the admin account a development database should always contain.
type rootAccount struct {
	username string
	email    string
	password string
}

func rootAccountFrom(cfg *config.Config) (rootAccount, error) {
	acct := rootAccount{
		username: validation.NormalizeUsername(cfg.DevRootUsername),
		email:    strings.ToLower(strings.TrimSpace(cfg.DevRootEmail)),
		password: cfg.DevRootPassword,
	}
	if acct.username == "" {
		acct.username = defaultRootUsername
	}
	if acct.email == "" {
		acct.email = defaultRootEmail
	}
	if acct.password == "" {
		return acct, errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}
	return acct, nil
}

// EnsureDevRootAdmin guarantees an admin named DEV_ROOT_USERNAME exists when running in
// development with DEV_BOOTSTRAP_ROOT set. An existing account matching the username or
// email keeps its password and is only promoted.
func EnsureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || !cfg.DevBootstrapRoot || !strings.EqualFold(cfg.Env, "development") {
		return nil
	}
	acct, err := rootAccountFrom(cfg)
	if err != nil {
		return err
	}

	var root models.User
	err = db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("username = ? OR email = ?", acct.username, acct.email).First(&root).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			hash, err := bcrypt.GenerateFromPassword([]byte(acct.password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash root password: %w", err)
			}
			root = models.User{
				Username: acct.username,
				Email:    acct.email,
				Password: string(hash),
				Role:     models.RoleAdmin,
			}
			return tx.Create(&root).Error
		}
		if err != nil {
			return err
		}
		if root.Role == models.RoleAdmin {
			return nil
		}
		root.Role = models.RoleAdmin
		return tx.Model(&root).Update("role", models.RoleAdmin).Error
	})
	if err != nil {
		return err
	}

	cache.InvalidateUser(context.Background(), root.ID)
	middleware.Logger.Info("development root admin ensured", "user_id", root.ID, "username", root.Username)
	return nil
}
