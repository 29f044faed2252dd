package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"arenda/internal/api"
	"arenda/internal/cache"
	"arenda/internal/config"
	"arenda/internal/database"
	"arenda/internal/events"
	"arenda/internal/export"
	"arenda/internal/logging"
	"arenda/internal/metrics"
	"arenda/internal/models"
	"arenda/internal/repository"
	"arenda/internal/service"
	"arenda/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	sessionRepo := initSessionRepository(cfg, redisClient, &logger)
	listingCache := cache.NewListingCache(redisClient, &logger)

	eventBus := events.NewEventBus()
	subscribeOrderEvents(eventBus, listingCache, &logger)

	// Воркер коммита заказов работает внутри процесса API: локальный
	// канал очереди доступен без round-trip через redis. Отдельный
	// бинарь cmd/worker добавляется при горизонтальном масштабировании.
	orderWorker := worker.NewOrderWorker(db, redisClient, eventBus, worker.ConfigFrom(cfg.Worker), &logger)
	go orderWorker.Start(ctx)

	userService := service.NewUserService(db, sessionRepo, cfg.Throttle, cfg.Session.TTL(), &logger)
	houseService := service.NewHouseService(db, listingCache, cfg.Cache, &logger)
	orderService := service.NewOrderService(db, orderWorker, eventBus, cfg.Worker.MaxBookingDays, &logger)
	exporter := export.NewOrderExporter(&logger)

	httpServer := api.NewHTTPServer(cfg.API, userService, houseService, orderService, exporter, &logger)

	startMetrics(ctx, cfg, &logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("port", cfg.API.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("load config: %w", err)
	}

	baseLogger := logging.New(cfg.Logging, cfg.App)
	logger := logging.Component(baseLogger, "api-main")

	return cfg, logger, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	areas, err := loadAreas(logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	for i := range areas {
		if err := db.CreateArea(context.Background(), &areas[i]); err != nil {
			logger.Error().Err(err).Str("area", areas[i].Name).Msg("seed area")
		}
	}

	return db, nil
}

func loadAreas(logger *zerolog.Logger) ([]models.Area, error) {
	areasPath := os.Getenv("AREAS_PATH")
	if areasPath == "" {
		areasPath = "configs/areas.yaml"
	}
	areasData, err := os.ReadFile(areasPath)
	if err != nil {
		logger.Error().Err(err).Str("areas_path", areasPath).Msg("read areas")
		return nil, err
	}

	var areasConfig struct {
		Areas []models.Area `yaml:"areas"`
	}
	if err := yaml.Unmarshal(areasData, &areasConfig); err != nil {
		logger.Error().Err(err).Str("areas_path", areasPath).Msg("parse areas")
		return nil, err
	}

	return areasConfig.Areas, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return redisClient
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initSessionRepository(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) *repository.FailoverSessionRepository {
	primary := repository.NewRedisSessionRepository(redisClient, cfg.Session.TTL())
	fallback := repository.NewMemorySessionRepository(cfg.Session.TTL())
	return repository.NewFailoverSessionRepository(primary, fallback, logger)
}

// subscribeOrderEvents сбрасывает кэш детали жилья после коммита заказа и
// после смены статуса: order_count или занятость изменились, а TTL еще не истек.
func subscribeOrderEvents(bus *events.EventBus, listingCache *cache.ListingCache, logger *zerolog.Logger) {
	invalidate := func(ev *events.Event) error {
		var payload events.OrderEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		listingCache.InvalidateHouseDetail(context.Background(), payload.HouseID)
		return nil
	}
	bus.Subscribe(events.EventOrderCommitted, invalidate)
	bus.Subscribe(events.EventOrderStatusChanged, invalidate)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", port).Msg("metrics server started")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
