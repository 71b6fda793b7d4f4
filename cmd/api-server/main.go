package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cardhub/internal/auth"
	"cardhub/internal/catalog"
	"cardhub/internal/collection"
	"cardhub/internal/ownership"
	synchub "cardhub/internal/sync"
	"cardhub/internal/watch"
	"cardhub/pkg/database"
	"cardhub/pkg/utils"
)

func main() {
	configPath := flag.String("config", "cardhub.yaml", "optional YAML config file")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A broken database degrades ownership to memory; the catalog still loads.
	var kv ownership.KV
	db, err := database.Open(dbCfg)
	if err != nil {
		logger.Warn("sqlite unavailable, ownership will not persist", zap.String("db", dbCfg.Path), zap.Error(err))
	} else {
		defer db.Close()
		kv = ownership.NewSQLiteKV(db)
	}
	store := ownership.Open(ctx, kv, logger.Named("ownership"))

	hub := synchub.NewHub(logger.Named("sync"))
	svc := catalog.NewService(catalog.Options{
		ManifestLocator: cfg.ManifestPath,
		Store:           store,
		Notifier:        hub,
		Logger:          logger.Named("catalog"),
		Concurrency:     cfg.Concurrency,
	})
	if _, err := svc.Reload(ctx); err != nil {
		// the server still starts; /ready reports not_ready until a reload succeeds
		logger.Error("initial load failed", zap.String("manifest", svc.ManifestLocator()), zap.Error(err))
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.Named("http")))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	corsCfg := cors.DefaultConfig()
	if len(cfg.HTTP.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.HTTP.AllowOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AddAllowHeaders("Authorization")
	router.Use(cors.New(corsCfg))

	router.GET("/ws", synchub.WSHandler(hub))
	tcpSrv := synchub.NewServer(cfg.Sync.Addr, hub)
	if err := tcpSrv.Listen(); err != nil {
		logger.Fatal("sync listen failed", zap.String("addr", cfg.Sync.Addr), zap.Error(err))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "manifest": svc.ManifestLocator(), "db": dbCfg.Path})
	})
	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		body := gin.H{
			"persistent":  store.Persistent(),
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		}
		snap := svc.Snapshot()
		if snap == nil {
			body["status"] = "not_ready"
			if _, err := svc.LastFailure(); err != nil {
				body["error"] = err.Error()
			}
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		if db != nil {
			pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(pingCtx); err != nil {
				body["db_error"] = err.Error()
			}
		}
		body["status"] = "ready"
		body["generation"] = snap.Generation
		body["stats"] = snap.Catalog.Stats()
		c.JSON(http.StatusOK, body)
	})

	collection.NewHandler(svc, cfg.Preview, cfg.Locale).RegisterRoutes(router.Group(""))

	tokens := auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTDuration,
	}
	auth.NewHandler(cfg.Auth.Operator, cfg.Auth.PasswordHash, tokens).RegisterRoutes(router.Group("/auth"))

	protected := router.Group("")
	protected.Use(auth.RequireScope(tokens, auth.ScopeOwnershipWrite))
	ownership.NewHandler(svc).RegisterRoutes(router.Group(""), protected)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("TCP sync server listening", zap.String("addr", cfg.Sync.Addr))
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP API server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if cfg.Watch {
		w, err := watch.New(svc, watch.DefaultDebounce, logger.Named("watch"))
		if err != nil {
			logger.Warn("file watcher unavailable", zap.Error(err))
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = w.Run(watchCtx)
			}()
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cancelWatch()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
	if err := tcpSrv.Close(); err != nil {
		logger.Warn("tcp shutdown error", zap.Error(err))
	}
	hub.CloseAll()

	wg.Wait()
	logger.Info("servers stopped")
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
