package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/solsticebot/solstice/solstice"
	"github.com/solsticebot/solstice/solstice/commands"
	"github.com/solsticebot/solstice/solstice/database"
	"github.com/solsticebot/solstice/solstice/database/repositories"
	"github.com/solsticebot/solstice/solstice/handlers"
	"github.com/solsticebot/solstice/solstice/logger"
	"github.com/solsticebot/solstice/solstice/ratelimit"
	"github.com/solsticebot/solstice/solstice/services"
	"github.com/solsticebot/solstice/solstice/verification"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "unknown"
)

const (
	conversationSweepEvery = 10 * time.Minute
	limiterSweepEvery      = 5 * time.Minute
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	slog.Info("Starting Solstice quest bot",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := solstice.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()))
		os.Exit(-1)
	}

	b := solstice.New(*cfg, version, commit)
	b.DB = db

	b.QuestStore = repositories.NewQuestStore(db.BunDB())
	b.QuestRepository = repositories.NewQuestRepository(db.BunDB())
	b.XPRepository = repositories.NewXPRepository(db.BunDB())
	b.ConversationRepository = repositories.NewConversationRepository(db.BunDB())

	b.Catalog = services.NewCatalogService(b.QuestRepository)
	b.Assignments = services.NewAssignmentService(b.QuestStore)
	b.Conversations = services.NewConversationService(b.ConversationRepository)
	b.Limiter = ratelimit.New(map[string]ratelimit.Limit{
		"quest":       cooldownLimit(cfg.Quests.AssignCooldown, 30*time.Second),
		"verify":      cooldownLimit(cfg.Quests.VerifyCooldown, 10*time.Second),
		"task":        cooldownLimit(cfg.Quests.VerifyCooldown, 10*time.Second),
		"progress":    cooldownLimit(cfg.Quests.ProgressCooldown, 5*time.Second),
		"leaderboard": cooldownLimit(cfg.Quests.ProgressCooldown, 5*time.Second),
	})

	h := handler.New()
	h.Command("/quest", handlers.WrapWithLogging("quest", commands.QuestHandler(b)))
	h.Command("/verify", handlers.WrapWithLogging("verify", commands.VerifyHandler(b)))
	h.Command("/task", handlers.WrapWithLogging("task", commands.TaskHandler(b)))
	h.Autocomplete("/task", commands.TaskAutocompleteHandler(b))
	h.Command("/progress", handlers.WrapWithLogging("progress", commands.ProgressHandler(b)))
	h.Command("/leaderboard", handlers.WrapWithLogging("leaderboard", commands.LeaderboardHandler(b)))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	// The guild provider needs the gateway client, so the completion engine
	// is wired after bot setup.
	registry := verification.NewRegistry(
		verification.NewHTTPProvider(nil),
		verification.NewGuildProvider(b.Client),
	)
	b.Completions = services.NewCompletionService(b.QuestStore, registry)

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	g, gctx := errgroup.WithContext(sweepCtx)
	g.Go(func() error { return sweepConversations(gctx, b.Conversations) })
	g.Go(func() error { return sweepLimiter(gctx, b.Limiter) })

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")

	sweepCancel()
	if err := g.Wait(); err != nil && err != context.Canceled {
		slog.Warn("Background sweeper exited with error", slog.Any("error", err))
	}
}

func cooldownLimit(d, fallback time.Duration) ratelimit.Limit {
	if d <= 0 {
		d = fallback
	}
	return ratelimit.Limit{Window: d, Max: 1}
}

func sweepConversations(ctx context.Context, conversations *services.ConversationService) error {
	ticker := time.NewTicker(conversationSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := conversations.CleanupExpired(cleanupCtx); err != nil {
				slog.Warn("Conversation sweep failed", slog.Any("error", err))
			}
			cancel()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func sweepLimiter(ctx context.Context, limiter *ratelimit.Limiter) error {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			limiter.Sweep()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
