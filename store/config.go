package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/GoCodeAlone/migrate/migration"
)

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Key      string `yaml:"key" json:"key"`
}

// Config selects and configures a ledger backend.
type Config struct {
	// Backend is one of "memory", "file", "sqlite", "postgres", "redis".
	Backend string `yaml:"backend" json:"backend"`
	// Path is the ledger file for the file backend and the database file
	// for the sqlite backend.
	Path string `yaml:"path" json:"path"`
	// URL is the connection string for the postgres backend.
	URL string `yaml:"url" json:"url"`

	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// LoadConfig reads a YAML backend configuration from path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read store config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse store config %s: %w", path, err)
	}
	return cfg, nil
}

// Open builds the RecordStore described by cfg. The caller owns the
// returned store and must Close it.
func Open(ctx context.Context, cfg Config) (RecordStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil

	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file backend requires path")
		}
		return NewFileStore(cfg.Path)

	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires path")
		}
		db, err := sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
		}
		s, err := NewSQLiteStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil

	case "postgres":
		if cfg.URL == "" {
			return nil, fmt.Errorf("postgres backend requires url")
		}
		pool, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("create pg pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping pg: %w", err)
		}
		s, err := NewPGStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil

	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis backend requires redis.addr")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		return NewRedisStore(client, cfg.Redis.Key), nil

	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// compile-time interface checks
var (
	_ migration.RecordStore = (*MemoryStore)(nil)
	_ migration.RecordStore = (*FileStore)(nil)
	_ migration.RecordStore = (*SQLiteStore)(nil)
	_ migration.RecordStore = (*PGStore)(nil)
	_ migration.RecordStore = (*RedisStore)(nil)
)
