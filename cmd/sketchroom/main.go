package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sketchroom/internal/core/ports"
	"sketchroom/internal/core/services"
	httphandlers "sketchroom/internal/handlers/http"
	"sketchroom/internal/infrastructure/backup"
	"sketchroom/internal/infrastructure/discovery"
	"sketchroom/internal/infrastructure/middleware"
	"sketchroom/internal/infrastructure/monitoring"
	"sketchroom/internal/infrastructure/reliability"
	repositories "sketchroom/internal/infrastructure/repositories"
	signalinfra "sketchroom/internal/infrastructure/signal"
	"sketchroom/pkg/cache"
	"sketchroom/pkg/circuitbreaker"
	"sketchroom/pkg/config"
	"sketchroom/pkg/logger"
	"sketchroom/pkg/retry"
	"sketchroom/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		os.Getenv("SKETCHROOM_CONFIG"),
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		if path == "" {
			continue
		}
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if cfg == nil || err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if err != nil {
		log.Warnw("No usable config file, running with defaults", "error", err)
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	roomRepo := repoFactory.CreateRoomRepository()
	var canvasStore ports.CanvasStore = repoFactory.CreateCanvasStore()
	var storeWrapper *reliability.CanvasStoreWrapper
	if repoFactory.UsingRedis() {
		recent := cache.New[string](cfg.Reliability.CacheTTL)
		defer recent.Stop()

		retryConfig := retry.DefaultConfig()
		retryConfig.MaxAttempts = cfg.Reliability.Retry.MaxAttempts
		retryConfig.InitialDelay = cfg.Reliability.Retry.InitialDelay
		retryConfig.MaxDelay = cfg.Reliability.Retry.MaxDelay

		breakerConfig := circuitbreaker.DefaultConfig()
		breakerConfig.FailureThreshold = cfg.Reliability.Breaker.FailureThreshold
		breakerConfig.SuccessThreshold = cfg.Reliability.Breaker.SuccessThreshold
		breakerConfig.Timeout = cfg.Reliability.Breaker.OpenTimeout

		storeWrapper = reliability.NewCanvasStoreWrapper(canvasStore, retryConfig, breakerConfig, recent, log)
		canvasStore = storeWrapper
	}

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.OwnerTokenTTL,
		cfg.Auth.InviteTokenTTL,
	)
	roomManager := services.NewRoomManager(roomRepo, authService, collector, services.RoomManagerConfig{
		IdleTimeout:   cfg.Rooms.IdleTimeout,
		MaxRooms:      cfg.Rooms.MaxRooms,
		DefaultWidth:  cfg.Canvas.Width,
		DefaultHeight: cfg.Canvas.Height,
		MailboxSize:   cfg.Rooms.MailboxSize,
	}, log)
	boardService := services.NewBoardService(canvasStore, collector, log)

	wsServer := signalinfra.NewWebSocketServer(
		roomManager,
		middleware.NewConnectionLimiter(cfg),
		collector,
		signalinfra.Config{
			PingInterval:   cfg.Signal.PingInterval,
			PongTimeout:    cfg.Signal.PongTimeout,
			WriteTimeout:   cfg.Signal.WriteTimeout,
			SendBufferSize: cfg.Signal.SendBufferSize,
			MaxMessageSize: cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
			AllowedOrigins: cfg.Auth.AllowedOrigins,
		},
		log,
	)

	health := monitoring.NewHealthChecker()
	health.AddStorageCheck(repoFactory, 15*time.Second, 2*time.Second)
	health.AddRepositoryCheck(roomRepo, 30*time.Second, 2*time.Second)
	health.AddCapacityCheck(roomManager.Count, cfg.Rooms.MaxRooms, time.Second)
	if storeWrapper != nil {
		health.AddBreakerCheck("canvas_store", storeWrapper.State, time.Second)
	}

	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	health.StartBackgroundChecks(healthCtx)

	var autosave *backup.Scheduler
	if cfg.Canvas.AutosaveInterval > 0 {
		autosave = backup.NewScheduler(roomManager, boardService, backup.Config{
			Interval: cfg.Canvas.AutosaveInterval,
		}, log)
		go autosave.Start(healthCtx)
		log.Infow("Autosave enabled", "interval", cfg.Canvas.AutosaveInterval)
	}

	roomHandler := httphandlers.NewRoomHandler(roomManager, boardService, authService, log)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.TracingMiddleware(),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.ErrorHandlerMiddleware(log),
	)

	roomHandler.SetupRoutes(router)
	router.GET(cfg.Signal.Path, gin.WrapF(wsServer.HandleWebSocket))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"uptime":      time.Since(startTime).String(),
			"rooms":       roomManager.Count(),
			"connections": wsServer.ConnectionCount(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := health.CheckAll(ctx)
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
		log.Infow("Prometheus metrics enabled", "path", cfg.Monitoring.MetricsPath)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting sketchroom server",
			"address", cfg.Server.Address,
			"ws_path", cfg.Signal.Path,
			"redis", repoFactory.UsingRedis(),
			"canvas", strconv.Itoa(cfg.Canvas.Width)+"x"+strconv.Itoa(cfg.Canvas.Height),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	var advertiser *discovery.Advertiser
	if cfg.Discovery.Enabled {
		advertiser, err = discovery.Advertise(
			cfg.Discovery.Instance,
			cfg.Discovery.Service,
			listenPort(cfg.Server.Address),
			[]string{"sketchroom", "ws=" + cfg.Signal.Path},
			log,
		)
		if err != nil {
			log.Warnw("mDNS advertisement disabled", "error", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down sketchroom server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := advertiser.Shutdown(); err != nil {
		log.Warnw("Error stopping mDNS advertisement", "error", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	wsServer.Shutdown()
	if autosave != nil {
		autosave.Stop()
		autosave.RunOnce(shutdownCtx)
	}
	roomManager.Close()
	stopHealth()

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer provider", "error", err)
	}

	log.Info("sketchroom server stopped")
}

func listenPort(address string) int {
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return 8080
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 8080
	}
	return n
}
