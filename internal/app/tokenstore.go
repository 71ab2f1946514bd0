package app

import (
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"cabbook/internal/config"
	"cabbook/internal/redis"
	"cabbook/internal/repository"
	"cabbook/internal/repository/memory"
	"cabbook/internal/repository/postgres"
)

// NewTokenStore returns the configured token store backend.
func NewTokenStore(cfg config.TokenStoreConfig, db *sql.DB, rdb *goredis.Client) (repository.TokenStore, error) {
	switch cfg.Backend {
	case config.TokenStoreMemory, "":
		return memory.NewTokenStore(), nil
	case config.TokenStoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("token store %q requires redis", cfg.Backend)
		}
		return redis.NewTokenStore(rdb), nil
	case config.TokenStorePostgres:
		if db == nil {
			return nil, fmt.Errorf("token store %q requires a database", cfg.Backend)
		}
		return postgres.NewTokenStore(db), nil
	}
	return nil, fmt.Errorf("unknown token store backend %q", cfg.Backend)
}
