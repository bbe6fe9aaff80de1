package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/triage/internal/config"
	"github.com/aretw0/triage/pkg/adapters/file"
	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/adapters/redis"
	"github.com/aretw0/triage/pkg/codec"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/persistence/middleware"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/aretw0/triage/pkg/session"
	backend "github.com/redis/go-redis/v9"
)

// Backends groups the stores selected by the configuration.
type Backends struct {
	Documents ports.DocumentStore
	Sessions  ports.SessionStore
	// Locker is only set for the redis store.
	Locker ports.DistributedLocker

	cfg    *config.Config
	client *backend.Client
}

// Open builds the stores for cfg.Store. Sessions are wrapped with the
// redaction and encryption middlewares when configured.
func Open(cfg *config.Config) (*Backends, error) {
	b := &Backends{cfg: cfg}
	switch cfg.Store {
	case config.StoreMemory:
		b.Documents = memory.NewDocuments()
		b.Sessions = memory.NewStore()
	case config.StoreFile:
		sessionDir := cfg.SessionDir
		if sessionDir == "" {
			sessionDir = filepath.Join(cfg.Dir, ".sessions")
		}
		b.Documents = file.NewDocuments(cfg.Dir, file.WithFormat(cfg.DocumentFormat()))
		b.Sessions = file.NewStore(sessionDir)
	case config.StoreRedis:
		b.client = backend.NewClient(&backend.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		b.Documents = redis.NewDocuments(b.client, cfg.Namespace)
		b.Sessions = redis.NewFromClient(b.client,
			redis.WithPrefix(cfg.Namespace+"session:"),
			redis.WithTTL(cfg.SessionTTL),
		)
		b.Locker = redis.NewLocker(b.client, cfg.Namespace)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	mws, err := sessionMiddlewares(cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Sessions = middleware.Chain(b.Sessions, mws...)
	return b, nil
}

func sessionMiddlewares(cfg *config.Config) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.RedactPatterns) > 0 {
		mw, err := middleware.NewRedaction(cfg.RedactPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.DecodeKey(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		var fallback [][]byte
		for _, s := range cfg.FallbackKeys {
			k, err := middleware.DecodeKey(s)
			if err != nil {
				return nil, fmt.Errorf("fallback key: %w", err)
			}
			fallback = append(fallback, k)
		}
		mw, err := middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// Manager builds a session manager over the stores, adding the distributed
// locker when one is available.
func (b *Backends) Manager(logger *slog.Logger, opts ...session.Option) *session.Manager {
	base := []session.Option{
		session.WithLogger(logger),
		session.WithGraphCacheTTL(b.cfg.GraphCacheTTL),
	}
	if b.Locker != nil {
		base = append(base, session.WithLocker(b.Locker, b.cfg.LockTTL))
	}
	return session.NewManager(b.Sessions, b.Documents, append(base, opts...)...)
}

// Close releases the Redis connection pool, if any.
func (b *Backends) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// IsWorkflowFile reports whether arg names an existing JSON or YAML file
// rather than a stored workflow.
func IsWorkflowFile(arg string) bool {
	if _, err := codec.FormatFromPath(arg); err != nil {
		return false
	}
	info, err := os.Stat(arg)
	return err == nil && !info.IsDir()
}

// ReadWorkflow decodes a workflow file. The document name defaults to the file name.
func ReadWorkflow(path string) (*domain.Document, error) {
	format, err := codec.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := codec.Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Metadata.Name == "" {
		doc.Metadata.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}
