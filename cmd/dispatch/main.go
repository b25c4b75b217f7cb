package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/loyaltyops/notify-dispatch/internal/adapter"
	"github.com/loyaltyops/notify-dispatch/internal/api"
	"github.com/loyaltyops/notify-dispatch/internal/bus"
	"github.com/loyaltyops/notify-dispatch/internal/cache"
	"github.com/loyaltyops/notify-dispatch/internal/campaign"
	"github.com/loyaltyops/notify-dispatch/internal/config"
	"github.com/loyaltyops/notify-dispatch/internal/dispatch"
	"github.com/loyaltyops/notify-dispatch/internal/repo"
	"github.com/loyaltyops/notify-dispatch/internal/resolver"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("postgres unreachable: %v", err)
	}

	templates := resolver.NewTemplateResolver(repo.NewPostgresTemplateRepo(db))
	recipients := resolver.NewRecipientResolver(repo.NewPostgresRecipientRepo(db))
	deliveries := repo.NewPostgresDeliveryLogRepo(db)
	jobs := repo.NewPostgresCampaignJobRepo(db)

	dispatcher := dispatch.NewDispatcher(
		templates,
		recipients,
		deliveries,
		adapter.NewSMSWebhook(cfg.Gateway.SMSWebhookURL),
		adapter.NewPushWebhook(cfg.Gateway.PushWebhookURL),
	).WithSendTimeout(cfg.Dispatch.SendTimeout)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		dispatcher = dispatcher.WithOutcomeCache(cache.NewRedisCache(rdb, cfg.Redis.TTL))
	}

	worker, err := campaign.NewWorker(cfg.Campaign.Interval, cfg.Campaign.BatchSize, jobs, dispatcher)
	if err != nil {
		log.Fatal(err)
	}
	worker.Start()
	defer worker.Stop()

	if cfg.AMQP.Enabled {
		connector := bus.NewConnector(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.ConsumerName, cfg.AMQP.DeadLetter)
		defer connector.Close()

		if err := connector.Subscribe(ctx, cfg.AMQP.Topic, dispatcher.HandleEventMessage); err != nil {
			log.Fatalf("bus subscription failed: %v", err)
		}
	}

	handler := api.NewHandler(dispatcher, worker, deliveries, jobs)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(handler)),
	}

	go func() {
		slog.Info("dispatch service listening",
			"addr", cfg.Server.Address,
			"campaign_interval", cfg.Campaign.Interval.String(),
			"campaign_batch", cfg.Campaign.BatchSize,
			"redis", cfg.Redis.Enabled,
			"amqp", cfg.AMQP.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "err", err)
	}
}
