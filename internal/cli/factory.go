package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/duzhibot"
	"github.com/aretw0/duzhibot/internal/adapters/file"
	"github.com/aretw0/duzhibot/internal/config"
	"github.com/aretw0/duzhibot/pkg/adapters/memory"
	redisstore "github.com/aretw0/duzhibot/pkg/adapters/redis"
	"github.com/aretw0/duzhibot/pkg/adapters/sqlite"
	"github.com/aretw0/duzhibot/pkg/observability"
	"github.com/aretw0/duzhibot/pkg/persistence/middleware"
	"github.com/aretw0/duzhibot/pkg/ports"
	"github.com/aretw0/duzhibot/pkg/session"
	backend "github.com/redis/go-redis/v9"
)

// DefaultSQLitePath is the database used by the sqlite driver when no path is set.
var DefaultSQLitePath = filepath.Join(".duzhibot", "sessions.db")

// Stack is everything a command needs to run sessions.
type Stack struct {
	Bot     *duzhibot.Bot
	Manager *session.Manager
	Metrics *observability.Metrics
	Logger  *slog.Logger

	closers []func() error
}

// Close releases the store connections.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires the bot, the session store and the manager from cfg.
func Build(cfg config.Config, logger *slog.Logger) (*Stack, error) {
	st := &Stack{Logger: logger, Metrics: observability.NewMetrics()}

	bot, err := newBot(cfg, logger, st.Metrics)
	if err != nil {
		return nil, err
	}
	st.Bot = bot

	store, locker, closers, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	st.closers = closers

	store, err = wrapStore(store, cfg.Security)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithLockTTL(cfg.Store.LockTTL),
	}
	if locker != nil {
		opts = append(opts, session.WithLocker(locker))
	}
	st.Manager = session.NewManager(store, bot, opts...)

	logger.Debug("stack ready", "store", cfg.Store.Driver, "lock", locker != nil)
	return st, nil
}

func newBot(cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) (*duzhibot.Bot, error) {
	bot, err := duzhibot.New(
		duzhibot.WithLogger(logger),
		duzhibot.WithHooks(observability.Chain(observability.Logging(logger), metrics.Hooks())),
		duzhibot.WithImageURL(cfg.ImageURL),
		duzhibot.WithWorldOptions(cfg.World.Options()),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing bot: %w", err)
	}
	return bot, nil
}

// openStore picks the session store of cfg.Driver. The locker is nil unless cfg.Lock is set.
func openStore(cfg config.StoreConfig) (ports.StateStore, ports.DistributedLocker, []func() error, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.NewStore(), nil, nil, nil

	case config.DriverFile:
		return file.New(cfg.Path), nil, nil, nil

	case config.DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultSQLitePath
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, nil, fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, []func() error{store.Close}, nil

	case config.DriverRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = redisstore.DefaultPrefix
		}
		var opts []redisstore.Option
		opts = append(opts, redisstore.WithPrefix(prefix))
		if cfg.TTL > 0 {
			opts = append(opts, redisstore.WithTTL(cfg.TTL))
		}
		var locker ports.DistributedLocker
		if cfg.Lock {
			locker = redisstore.NewLocker(client, prefix)
		}
		return redisstore.NewFromClient(client, opts...), locker, []func() error{client.Close}, nil
	}
	return nil, nil, nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalid, cfg.Driver)
}

// wrapStore masks PII first, then encrypts what is left.
func wrapStore(store ports.StateStore, cfg config.SecurityConfig) (ports.StateStore, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIKeys) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.PIIKeys))
	}
	if cfg.EncryptionKey != "" {
		active, fallback, err := cfg.Keys()
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return middleware.Chain(store, mws...), nil
}
