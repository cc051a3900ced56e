package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice"
	"github.com/solsticebot/solstice/solstice/database"
	"github.com/solsticebot/solstice/solstice/database/repositories"
	"github.com/solsticebot/solstice/solstice/logger"
	"github.com/solsticebot/solstice/solstice/migration"
	"github.com/solsticebot/solstice/solstice/services"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	configPath := flag.String("config", "config.toml", "path to config")
	seedPrefix := flag.String("seed-prefix", "quests/", "spaces prefix holding quest seed files")
	guildIDStr := flag.String("guild", "", "guild to seed quests into")
	creatorIDStr := flag.String("creator", "", "creator id to stamp on seeded quests")
	runSeed := flag.Bool("seed", false, "seed quests from spaces")
	runLedgers := flag.Bool("ledgers", false, "import legacy xp ledgers from mongo")
	runHistory := flag.Bool("history", false, "import legacy quest history from mongo")
	creditXP := flag.Bool("credit-xp", false, "credit imported history into the xp ledger (use instead of -ledgers when the legacy data has no aggregate totals)")
	flag.Parse()

	if !*runSeed && !*runLedgers && !*runHistory {
		slog.Error("Nothing to do: pass at least one of -seed, -ledgers, -history")
		os.Exit(1)
	}

	cfg, err := solstice.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize schema", slog.Any("error", err))
		os.Exit(1)
	}

	migrator := migration.NewMigrator(db.BunDB())

	if *runLedgers || *runHistory {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			slog.Error("Failed to connect to mongo", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Disconnect(ctx)
		migrator.SetMongo(client.Database(cfg.Mongo.Database))
	}

	if *runSeed {
		guildID, err := snowflake.Parse(*guildIDStr)
		if err != nil {
			slog.Error("Seeding requires a valid -guild", slog.Any("error", err))
			os.Exit(1)
		}
		creatorID, err := snowflake.Parse(*creatorIDStr)
		if err != nil {
			slog.Error("Seeding requires a valid -creator", slog.Any("error", err))
			os.Exit(1)
		}

		spaces, err := services.NewSpacesService(cfg.Spaces.Key, cfg.Spaces.Secret, cfg.Spaces.Region, cfg.Spaces.Bucket)
		if err != nil {
			slog.Error("Failed to set up spaces client", slog.Any("error", err))
			os.Exit(1)
		}

		if err := migrator.SeedQuests(ctx, spaces, *seedPrefix, guildID, creatorID); err != nil {
			slog.Error("Quest seeding failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if *runLedgers {
		if err := migrator.ImportLedgers(ctx); err != nil {
			slog.Error("Ledger import failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if *runHistory {
		if *creditXP {
			if *runLedgers {
				slog.Error("-credit-xp cannot be combined with -ledgers: XP would be counted twice")
				os.Exit(1)
			}
			migrator.SetLedgerCredit(repositories.NewXPRepository(db.BunDB()))
		}
		if err := migrator.ImportQuestHistory(ctx); err != nil {
			slog.Error("Quest history import failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	migrator.Report()
}
