package interaction

import (
	"context"
	"fmt"

	"dealer/kiosk/internal/config"
)

// OpenStore connects the backend named by interaction.backend.
func OpenStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Interaction.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "mongo", "mongodb":
		return NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.DSN)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Interaction.Backend)
}
