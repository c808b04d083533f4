package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BotFlow/bot"
	"BotFlow/bot/flow"
	"BotFlow/bot/whatsapp/socket"
	"BotFlow/impl/core"
	"BotFlow/internal/config"
	repository "BotFlow/internal/database"
	"BotFlow/internal/database/sqlstore"
	"BotFlow/internal/http-server/api"
	"BotFlow/internal/lib/logger"
	"BotFlow/internal/lib/sl"
	"BotFlow/internal/service/engine"
	"BotFlow/internal/service/lanes"
	"BotFlow/internal/service/lock"
	"BotFlow/internal/ws"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", sl.Err(err))
		} else {
			lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelWarn)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")

			go func() {
				if err := tgBot.Start(); err != nil {
					lg.Error("telegram bot error", sl.Err(err))
				}
			}()
		}
	}

	lg.Info("starting botflow", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := core.New(lg)
	handler.SetAuthKey(conf.Listen.ApiKey)

	store, closeStore, err := openStore(conf, lg)
	if err != nil {
		lg.Error("session store", sl.Err(err))
		return
	}
	defer closeStore()
	handler.SetRepository(store)

	redisClient, err := lock.NewRedisClient(conf)
	if err != nil {
		lg.With(sl.Err(err)).Error("redis client; continuing with local session lanes only")
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		handler.SetLocker(lock.NewLocker(redisClient, conf.Redis.LockTTL, lg))
		lg.With(
			slog.String("addr", conf.Redis.Addr),
			slog.Duration("lock_ttl", conf.Redis.LockTTL),
		).Info("redis session lock enabled")
	}

	engineService := engine.NewEngineService(conf, lg)
	handler.SetEngine(engineService)
	lg.With(
		slog.String("url", conf.Engine.BaseURL),
		sl.Secret("api_key", conf.Engine.ApiKey),
	).Info("engine client initialized")

	registry := socket.NewRegistry(conf.WhatsApp.SocketURL, conf.WhatsApp.DialTimeout, conf.WhatsApp.SendTimeout, lg)
	registry.SetStatusListener(handler)
	registry.SetMessageListener(handler)
	defer registry.Shutdown()
	handler.SetChannels(registry)

	orchestrator := flow.New(engineService, store, registry, lg)
	orchestrator.SetDiagnosticSink(handler)
	orchestrator.SetAfterMediaDelay(conf.WhatsApp.AfterMediaDelay)
	orchestrator.SetMaxHops(conf.Flow.MaxHops)
	handler.SetRunner(orchestrator)
	handler.SetTurnTimeout(conf.Flow.TurnTimeout)

	queue := lanes.NewQueue(conf.Flow.MaxConcurrentTurns, conf.Flow.LaneSize, lg)
	// turns outlive the signal so in-flight deliveries can finish
	queue.Start(context.Background())
	defer queue.Stop()
	handler.SetQueue(queue)

	hub := ws.NewHub(lg)
	hub.SetHandler(handler)
	go hub.Run(ctx)
	handler.SetBroadcaster(hub)

	if tgBot != nil {
		tgBot.SetConnectionLister(handler)
		defer tgBot.Stop()
	}

	server := api.New(conf, lg, handler, hub)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("server shutdown", sl.Err(err))
		}
	}()

	// *** blocking start with http server ***
	if err = server.Start(); err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	if !queue.WaitIdle(10 * time.Second) {
		lg.Warn("turns still running at shutdown")
	}
	lg.Info("service stopped")
}

// openStore picks mongo, then postgres, and falls back to embedded sqlite.
func openStore(conf *config.Config, lg *slog.Logger) (core.Repository, func(), error) {
	if conf.Mongo.Enabled {
		db, err := repository.NewMongoClient(conf, lg)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo client: %w", err)
		}
		lg.With(
			slog.String("host", conf.Mongo.Host),
			slog.String("port", conf.Mongo.Port),
			slog.String("user", conf.Mongo.User),
			slog.String("database", conf.Mongo.Database),
		).Info("mongo client initialized")
		return db, func() {}, nil
	}

	if conf.Postgres.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := sqlstore.OpenPostgres(ctx, conf.Postgres.DSN, lg)
		if err != nil {
			return nil, nil, err
		}
		lg.Info("postgres store initialized")
		return db, func() { _ = db.Close() }, nil
	}

	path := conf.SQLite.Path
	if !conf.SQLite.Enabled {
		path = ":memory:"
		lg.Warn("no persistent store enabled, sessions are kept in memory")
	}
	db, err := sqlstore.OpenSQLite(path, lg)
	if err != nil {
		return nil, nil, err
	}
	lg.With(slog.String("path", path)).Info("sqlite store initialized")
	return db, func() { _ = db.Close() }, nil
}
