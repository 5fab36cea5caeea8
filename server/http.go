package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"replay-service/config"
	"replay-service/constant"
	jobHandler "replay-service/handler"
	"replay-service/pkg/egress"
	"replay-service/pkg/notify"
	"replay-service/pkg/rabbitmq"
	"replay-service/repository"
	"replay-service/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	}

	repo := repository.NewRepo(cfg.DB)
	controller := egress.NewClient(cfg.Egress.BaseURL, cfg.Egress.APIKey, cfg.Egress.APISecret, cfg.Egress.Timeout)
	publisher := notify.NewPublisher(conn, cfg.Queue.ExchangeName, cfg.Queue.Kind)
	replayService := service.NewReplayService(repo, controller, publisher, publisher, cfg)

	serviceDeps := jobHandler.ServiceDependencies{
		Replay: replayService,
	}

	// Egress "recording ended" events relayed from the webhook receiver.
	eventConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, rabbitmq.Binding{
		Exchange:   "egress_exchange",
		Queue:      "egress_events",
		RoutingKey: "egress.ended",
	}, cfg.Server.Workers, jobHandler.EgressEventHandler)
	go func() {
		err := eventConsumer.Consume(ctx, serviceDeps)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("egress event consumer error")
		}
	}()

	scheduler := cron.New()
	_, _ = scheduler.AddFunc("@every 1m", func() { replayService.ReconcileOnce(ctx) })
	_, _ = scheduler.AddFunc("@every 5m", func() { replayService.CleanSegmentsOnce(ctx) })
	_, _ = scheduler.AddFunc("@every 1h", func() { replayService.ReapOrphansOnce(ctx) })
	scheduler.Start()
	defer scheduler.Stop()

	r := gin.Default()
	addHealth(r)
	jobHandler.NewReplayHandler(replayService).Register(r)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
