package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"cardhub/internal/catalog"
	"cardhub/internal/grpcserver"
	"cardhub/internal/ownership"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	var kv ownership.KV
	db, err := database.Open(dbCfg)
	if err != nil {
		logger.Warn("sqlite unavailable, ownership will not persist", zap.Error(err))
	} else {
		defer db.Close()
		kv = ownership.NewSQLiteKV(db)
	}

	svc := catalog.NewService(catalog.Options{
		ManifestLocator: cfg.ManifestPath,
		Store:           ownership.Open(ctx, kv, logger.Named("ownership")),
		Logger:          logger.Named("catalog"),
		Concurrency:     cfg.Concurrency,
	})
	if _, err := svc.Reload(ctx); err != nil {
		logger.Error("initial load failed", zap.Error(err))
	}

	listener, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Fatal("grpc listen failed", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
	}

	grpcServer := grpc.NewServer()
	grpcserver.Register(grpcServer, grpcserver.NewServer(svc, cfg.Preview, cfg.Locale))

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		grpcServer.GracefulStop()
	}()

	logger.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
	if err := grpcServer.Serve(listener); err != nil {
		logger.Error("grpc server stopped", zap.Error(err))
	}
}
