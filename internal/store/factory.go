package store

import (
	"context"
	"fmt"
	"time"

	mydb "github.com/TimurManjosov/hostmatch/internal/db"
)

const pingTimeout = 5 * time.Second

// NewStore creates a new store based on the given store type.
// Supported types: "memory", "postgres". For memory stores a non-empty
// fixture path seeds the catalog.
func NewStore(ctx context.Context, storeType, dbDSN, fixture string) (Store, error) {
	switch storeType {
	case "memory":
		if fixture == "" {
			return NewMemoryStore(), nil
		}
		m, err := LoadFixtureFile(fixture)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "postgres":
		pool, err := mydb.NewPool(ctx, dbDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		if err := mydb.Ping(ctx, pool, pingTimeout); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
