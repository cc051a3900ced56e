package solstice

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig    `toml:"log"`
	Bot    BotConfig    `toml:"bot"`
	DB     DBConfig     `toml:"db"`
	Quests QuestsConfig `toml:"quests"`
	Spaces SpacesConfig `toml:"spaces"`
	Mongo  MongoConfig  `toml:"mongo"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

// QuestsConfig tunes the engine's command cooldowns.
type QuestsConfig struct {
	AssignCooldown   time.Duration `toml:"assign_cooldown"`
	VerifyCooldown   time.Duration `toml:"verify_cooldown"`
	ProgressCooldown time.Duration `toml:"progress_cooldown"`
}

// SpacesConfig points at the bucket holding quest seed files.
type SpacesConfig struct {
	Key    string `toml:"key"`
	Secret string `toml:"secret"`
	Region string `toml:"region"`
	Bucket string `toml:"bucket"`
}

// MongoConfig points at the legacy bot's database for one-off imports.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}
