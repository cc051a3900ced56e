package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const defaultConnTimeout = 5 * time.Second

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	PoolSize int
}

type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable&connect_timeout=5",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	return &DB{pool: pool, bunDB: bunDB}, nil
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}

// InitializeSchema creates all required tables and indexes. The partial
// unique index on assignments is the backstop for the one-active-quest
// invariant; the (user_id, task_id) unique index makes task re-submission
// a detectable conflict instead of a double payout.
func (db *DB) InitializeSchema(ctx context.Context) error {
	tables := []any{
		(*models.Quest)(nil),
		(*models.QuestTask)(nil),
		(*models.UserQuestAssignment)(nil),
		(*models.UserTaskCompletion)(nil),
		(*models.UserXP)(nil),
		(*models.Conversation)(nil),
	}

	for _, model := range tables {
		_, err := db.bunDB.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_uqa_one_active ON user_quest_assignments(user_id, guild_id) WHERE status = 'assigned';",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_utc_user_task ON user_task_completions(user_id, task_id);",
		"CREATE INDEX IF NOT EXISTS idx_quests_guild_active ON quests(guild_id, active);",
		"CREATE INDEX IF NOT EXISTS idx_quest_tasks_quest ON quest_tasks(quest_id);",
		"CREATE INDEX IF NOT EXISTS idx_uqa_user_guild ON user_quest_assignments(user_id, guild_id);",
		"CREATE INDEX IF NOT EXISTS idx_uqa_quest_status ON user_quest_assignments(quest_id, status);",
		"CREATE INDEX IF NOT EXISTS idx_utc_user_quest ON user_task_completions(user_id, quest_id);",
		"CREATE INDEX IF NOT EXISTS idx_user_xp_guild_total ON user_xp(guild_id, total_xp DESC);",
		"CREATE INDEX IF NOT EXISTS idx_conversations_expiry ON conversations(expires_at);",
	}

	for _, idx := range indexes {
		if _, err := db.pool.Exec(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	slog.Info("Database schema initialized",
		slog.String("type", "db"),
		slog.Int("tables", len(tables)),
		slog.Int("indexes", len(indexes)))

	return nil
}
