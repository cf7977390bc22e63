package session

import (
	"context"
	"errors"
	"time"
)

const DefaultKey = "authId"

type (
	// Store holds the authId of the logged in user.
	// There is exactly one writer (the login orchestrator) and any number of readers.
	Store interface {
		// Get returns the current authId or ErrNoSession
		Get(ctx context.Context) (string, error)
		Set(ctx context.Context, authID string) error
		Clear(ctx context.Context) error
		// Watch emits the current value ("" if unset) followed by every change.
		// The channel is closed when ctx is done.
		Watch(ctx context.Context) (<-chan string, error)
	}

	Config struct {
		Key string        // name under which the authId is kept
		TTL time.Duration // 0 means no expiry (if supported by the store)
	}
	Option func(*Config)

	authIDCtxKey struct{}
)

var (
	ErrNoSession     = errors.New("no session")
	ErrInvalidAuthID = errors.New("authId must not be empty")
	authIDKey        = authIDCtxKey{}
)

func WithKey(key string) Option {
	return func(c *Config) {
		c.Key = key
	}
}

func WithTTL(d time.Duration) Option {
	return func(c *Config) {
		c.TTL = d
	}
}

// NewConfig applies opts on top of the defaults
func NewConfig(opts ...Option) *Config {
	cfg := &Config{Key: DefaultKey}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

func AuthIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(authIDKey).(string); ok {
		return val
	}
	return ""
}

func AddAuthIDToContext(ctx context.Context, authID string) context.Context {
	return context.WithValue(ctx, authIDKey, authID)
}
