package history

import (
	"context"
	"fmt"

	"dealer/kiosk/internal/config"
)

// Open returns the store named by history.backend. The returned close func
// releases any connection and is never nil.
func Open(ctx context.Context, cfg config.Config) (Store, func() error, error) {
	switch cfg.History.Backend {
	case "", "memory":
		return NewMemoryStore(), func() error { return nil }, nil
	case "redis":
		rdb, err := Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(rdb, DefaultTTL), rdb.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.History.Backend)
}
