// Package app assembles the client SDK from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"chub/internal/apiclient"
	"chub/internal/config"
	"chub/internal/featureflags"
	"chub/internal/hooks"
	"chub/internal/notify"
	"chub/internal/observability"
	"chub/internal/optimistic"
	"chub/internal/querycache"
	"chub/internal/session"
	"chub/internal/upload"
	redispkg "chub/pkg/redis"

	"github.com/redis/go-redis/v9"
)

// package-level constructor hooks so tests can point Redis at miniredis
// and skip tracer setup.
var (
	newRedisClient = redispkg.NewClient
	initTracing    = observability.InitTracing
)

// Options tweak where the App writes.
type Options struct {
	// Toasts receives user-facing notifications. Defaults to os.Stderr.
	Toasts io.Writer
	// Logs receives structured logs. Defaults to os.Stderr.
	Logs io.Writer
	// Version is reported to the tracer.
	Version string
}

// App owns every long-lived client component.
type App struct {
	Config   *config.Config
	Logger   *observability.Logger
	Client   *apiclient.Client
	Session  *session.Manager
	Cache    *querycache.Cache
	Flags    *featureflags.Manager
	Tracker  *optimistic.Tracker
	Notifier notify.Notifier
	Uploader upload.Uploader
	Hooks    *hooks.Hooks

	redis   *redis.Client
	closers []func(context.Context) error
}

// New builds an App from cfg. Partially built components are released when
// a later step fails.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	if opts.Toasts == nil {
		opts.Toasts = os.Stderr
	}
	if opts.Logs == nil {
		opts.Logs = os.Stderr
	}

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Logger = observability.NewLogger(opts.Logs, observability.LoggingConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	shutdown, err := initTracing(observability.TracingConfig{
		ServiceName:    "chub-client",
		ServiceVersion: opts.Version,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
		Output:         opts.Logs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	if shutdown != nil {
		a.closers = append(a.closers, shutdown)
	}

	a.Client = apiclient.New(cfg.APIURL,
		apiclient.WithTimeout(cfg.RequestTimeout()),
		apiclient.WithLogger(a.Logger),
	)

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Session = session.NewManager(store,
		session.WithLogger(a.Logger),
		session.WithBackendName(cfg.SessionStore),
	)

	a.Cache = querycache.New(
		querycache.WithStaleTime(cfg.CacheStaleTime()),
		querycache.WithLogger(a.Logger),
	)

	a.Flags = featureflags.NewManager(cfg.FeatureFlags)
	a.Tracker = optimistic.NewTracker(a.Flags.Func(featureflags.OptimisticUpdates, a.userID))

	notifiers := notify.Multi{notify.NewWriterNotifier(opts.Toasts), notify.NewLogNotifier(a.Logger)}
	if cfg.NotifyChannel {
		rdb, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, notify.NewRedisNotifier(rdb, a.userID, a.Logger))
	}
	a.Notifier = notifiers

	switch cfg.UploadProvider {
	case config.UploadProviderCloudinary:
		u, err := upload.NewCloudinaryUploader(cfg.CloudinaryURL, cfg.UploadFolder)
		if err != nil {
			return nil, err
		}
		a.Uploader = u
	default:
		a.Uploader = upload.NewBackendUploader(a.Client)
	}

	a.Hooks = hooks.New(hooks.Deps{
		Client:   a.Client,
		Session:  a.Session,
		Cache:    a.Cache,
		Notifier: a.Notifier,
		Tracker:  a.Tracker,
		Uploader: a.Uploader,
		Logger:   a.Logger,
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context) (session.Store, error) {
	cfg := a.Config
	switch cfg.SessionStore {
	case config.SessionStoreMemory:
		return session.NewMemoryStore(), nil
	case config.SessionStoreFile:
		return session.NewFileStore(cfg.SessionPath), nil
	case config.SessionStoreRedis:
		rdb, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return session.NewRedisStore(rdb, cfg.SessionKeyPrefix), nil
	case config.SessionStoreSQLite:
		return session.OpenSQLStore(session.DialectSQLite, cfg.SessionDSN, a.Logger.Logger)
	case config.SessionStorePostgres:
		return session.OpenSQLStore(session.DialectPostgres, cfg.SessionDSN, a.Logger.Logger)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// redisClient connects once and shares the client between the session
// store and the notifier.
func (a *App) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	rdb := newRedisClient(a.Config.RedisURL)
	if err := redispkg.Ping(ctx, rdb); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.redis = rdb
	return rdb, nil
}

func (a *App) userID() uint {
	if a.Session == nil {
		return 0
	}
	if u := a.Session.User(); u != nil {
		return u.ID
	}
	return 0
}

// Redis returns the shared Redis client, or nil when no component uses one.
func (a *App) Redis() *redis.Client {
	return a.redis
}

// Close releases the session store, Redis and the tracer.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Session != nil {
		if err := a.Session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
		a.redis = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
