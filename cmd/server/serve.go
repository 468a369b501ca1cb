package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/iliyamo/pcbang-kiosk/internal/config"
	"github.com/iliyamo/pcbang-kiosk/internal/database"
	"github.com/iliyamo/pcbang-kiosk/internal/handler"
	"github.com/iliyamo/pcbang-kiosk/internal/metrics"
	"github.com/iliyamo/pcbang-kiosk/internal/middleware"
	"github.com/iliyamo/pcbang-kiosk/internal/payment"
	"github.com/iliyamo/pcbang-kiosk/internal/queue"
	"github.com/iliyamo/pcbang-kiosk/internal/realtime"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
	"github.com/iliyamo/pcbang-kiosk/internal/router"
	"github.com/iliyamo/pcbang-kiosk/internal/session"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the seat clock and the optional kitchen consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, setup())
	},
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	opts := dbOptions(cfg)

	if cfg.MigrateOnStart {
		if err := database.Migrate(opts); err != nil {
			return err
		}
		slog.Info("migrations applied")
	}
	db, err := database.Open(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)
	repository.SetRecorder(collector)

	rdb := config.NewRedisClient()
	if rdb == nil {
		slog.Warn("redis unavailable; using local rate limits and no response cache")
	} else {
		defer rdb.Close()
	}

	var (
		orderPub  payment.Publisher
		expiryPub session.ExpiryPublisher
	)
	if cfg.BrokerEnabled {
		pub := queue.NewPublisher(config.BrokerURL())
		pub.OnPublish(collector.EventPublished)
		defer pub.Close()
		orderPub, expiryPub = pub, pub
	}

	members := repository.NewMemberRepo(db, cfg.BcryptCost)
	seats := repository.NewSeatRepo(db)
	plans := repository.NewPlanRepo(db)
	foods := repository.NewFoodRepo(db)
	orders := repository.NewOrderRepo(db)

	hub := realtime.NewHub(32)
	defer hub.Close()

	sessions := session.NewManager(seats, session.Options{
		Notifier:  hub,
		Publisher: expiryPub,
		Observer:  collector,
		Workers:   cfg.SeatTickWorkers,
	})
	loadCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	err = sessions.Load(loadCtx)
	cancel()
	if err != nil {
		return err
	}
	go sessions.Run(ctx, cfg.SeatTickInterval)

	if cfg.KitchenConsumer {
		go func() {
			if err := queue.StartKitchenConsumer(ctx, config.BrokerURL(), cfg.KitchenLogPath); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("kitchen consumer stopped", slog.Any("error", err))
			}
		}()
	}

	apiCfg := config.LoadRateLimitConfig()
	loginCfg := config.LoadLoginRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()
	apiLocal := middleware.NewLocalLimiter(apiCfg)
	defer apiLocal.Stop()
	loginLocal := middleware.NewLocalLimiter(loginCfg)
	defer loginLocal.Stop()

	e := router.New(router.Handlers{
		Health: &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:   handler.NewAuthHandler(cfg, members),
		Member: &handler.MemberHandler{Cfg: cfg, Members: members, Plans: plans, Foods: foods},
		Seat: &handler.SeatHandler{
			Cfg:      cfg,
			Sessions: sessions,
			Payments: payment.NewService(db, foods, orders, orderPub),
			Orders:   orders,
			Hub:      hub,
		},
		Admin: &handler.AdminHandler{
			Cfg:         cfg,
			Members:     members,
			Plans:       plans,
			Foods:       foods,
			Sessions:    sessions,
			Redis:       rdb,
			CachePrefix: cacheCfg.Prefix,
		},
		Metrics: metrics.Handler(reg),
	}, router.Middlewares{
		APILimit:   middleware.NewTokenBucket(apiCfg, rdb, apiLocal),
		LoginLimit: middleware.NewTokenBucket(loginCfg, rdb, loginLocal),
		Cache:      middleware.NewRedisCache(cacheCfg, rdb),
	}, cfg.JWTSecret, logger)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
