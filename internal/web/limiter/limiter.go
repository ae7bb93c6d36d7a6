// Package limiter throttles login attempts per client IP.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/storage/mysql/v2"
	"github.com/gofiber/storage/postgres/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/proxy"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMySQL    = "mysql"

	// MsgTooManyAttempts is sent once the limit is reached.
	MsgTooManyAttempts = "Too many login attempts"

	keyPrefix = "login:"
)

// ErrUnknownStorage is returned for an unsupported storage name.
var ErrUnknownStorage = errors.New("unknown rate limit storage")

// basicStorage is the part of the storage drivers the limiter relies on.
type basicStorage interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
	Reset() error
	Close() error
}

// storageAdapter exposes a driver as fiber.Storage.
type storageAdapter struct {
	basicStorage
}

func (s storageAdapter) GetWithContext(_ context.Context, key string) ([]byte, error) {
	return s.Get(key) //nolint:wrapcheck
}

func (s storageAdapter) SetWithContext(_ context.Context, key string, val []byte, exp time.Duration) error {
	return s.Set(key, val, exp) //nolint:wrapcheck
}

func (s storageAdapter) DeleteWithContext(_ context.Context, key string) error {
	return s.Delete(key) //nolint:wrapcheck
}

func (s storageAdapter) ResetWithContext(_ context.Context) error {
	return s.Reset() //nolint:wrapcheck
}

// Limiter is the login rate limiter and its storage.
type Limiter struct {
	Handler fiber.Handler
	storage basicStorage
}

// Close releases the storage connection.
func (l *Limiter) Close() error {
	if l == nil || l.storage == nil {
		return nil
	}

	return errors.Wrap(l.storage.Close(), "close rate limit storage")
}

// New creates the limiter, nil when rate limiting is disabled.
func New(cfg config.RateLimit) (*Limiter, error) {
	if !cfg.Enabled {
		return nil, nil //nolint:nilnil
	}

	store, err := NewStorage(cfg)
	if err != nil {
		return nil, err
	}

	lc := limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		KeyGenerator: func(c fiber.Ctx) string {
			return keyPrefix + c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			log.Warn().Str("ip", c.IP()).Msg("login rate limit reached")

			return proxy.Error(c, fiber.StatusTooManyRequests, MsgTooManyAttempts, "Try again later")
		},
	}

	if store != nil {
		lc.Storage = storageAdapter{store}
	}

	return &Limiter{Handler: limiter.New(lc), storage: store}, nil
}

// NewStorage opens the configured storage, nil means the limiter's in memory store.
func NewStorage(cfg config.RateLimit) (store basicStorage, err error) {
	// the drivers panic when the database is unreachable
	defer func() {
		if r := recover(); r != nil {
			store = nil
			err = errors.Errorf("open %s rate limit storage: %v", cfg.Storage, r)
		}
	}()

	switch cfg.Storage {
	case "", StorageMemory:
		return nil, nil
	case StoragePostgres:
		return postgres.New(postgres.Config{
			ConnectionURI: PostgresDSN(cfg.DB),
			Table:         cfg.DB.Table,
		}), nil
	case StorageMySQL:
		return mysql.New(mysql.Config{
			ConnectionURI: MySQLDSN(cfg.DB),
			Table:         cfg.DB.Table,
		}), nil
	default:
		return nil, errors.Wrap(ErrUnknownStorage, fmt.Sprintf("storage %q", cfg.Storage))
	}
}
