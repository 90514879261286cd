package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"go.uber.org/zap"

	"calorie-lens/api/internal/auth"
	"calorie-lens/api/internal/client"
	"calorie-lens/api/internal/config"
	"calorie-lens/api/internal/httpserver"
	"calorie-lens/api/internal/imageprep"
	"calorie-lens/api/internal/logger"
	"calorie-lens/api/internal/session"
	"calorie-lens/api/internal/store"
	"calorie-lens/api/internal/telegram"
)

func main() {
	lg := logger.New()
	cfg, err := config.LoadBot()
	if err != nil {
		_ = lg.Init("info")
		lg.Log.Fatal("load config", zap.Error(err))
	}
	if err := lg.Init(cfg.LogLevel); err != nil {
		_ = lg.Init("info")
		lg.Log.Fatal("init logger", zap.Error(err))
	}
	log := lg.Log
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Postgres ---
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("sql.Open", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	{
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Fatal("db ping", zap.Error(err))
		}
		log.Info("db connected", zap.String("dsn", safeDSNSummary(cfg.DatabaseDSN)))
	}
	creds := store.NewChatCredentials(db)
	if err := creds.EnsureSchema(ctx); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal("telegram", zap.Error(err))
	}
	prep := imageprep.New()
	factory := func(chatID int64, onChange func(session.Snapshot)) *session.Machine {
		gate := auth.NewGate(creds.ForChat(chatID))
		api := client.New(cfg.APIURL, gate, client.WithLogger(log))
		return session.New(gate, prep, api,
			session.WithOnChange(onChange),
			session.WithLogger(log.With(zap.Int64("chat_id", chatID))))
	}
	router := telegram.NewRouter(bot, telegram.NewBotFiles(bot), factory, log)
	defer router.Close()

	handleUpdate := func(upd tgbotapi.Update) { router.HandleUpdate(ctx, upd) }

	mux := chi.NewRouter()
	mux.Use(httpserver.WithRequestLogging(log))
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	// --- Choose mode: Webhook vs Polling ---
	if cfg.WebhookURL != "" {
		path := telegram.WebhookPath(bot.Token)
		wh, err := tgbotapi.NewWebhook(strings.TrimRight(cfg.WebhookURL, "/") + path)
		if err != nil {
			log.Fatal("webhook", zap.Error(err))
		}
		wh.DropPendingUpdates = true
		if _, err := bot.Request(wh); err != nil {
			log.Fatal("set webhook", zap.Error(err))
		}
		mux.Post(path, telegram.WebhookHandler(bot.HandleUpdate, handleUpdate, log))
		log.Info("webhook mode")
	} else {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn("delete webhook", zap.Error(err))
		}
		go telegram.RunPolling(ctx, bot, telegram.PollConfig{}, handleUpdate, log)
		log.Info("polling mode")
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpserver.Serve(ctx, srv, 10*time.Second, log); err != nil {
		log.Fatal("server", zap.Error(err))
	}
}

func safeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	host, port := u.Host, ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, u.User.Username())
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, u.User.Username())
}
