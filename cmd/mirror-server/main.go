package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cardhub/internal/catalog"
	"cardhub/pkg/utils"
)

// mirror-server serves a local data directory (manifest plus CSVs) so the
// api-server can be pointed at an HTTP manifest without network access.
// The manifest lives next to the CSVs under /files/, so relative cardsCsv
// locators resolve to files the mirror serves.
func main() {
	var (
		addr     = flag.String("addr", ":9000", "listen address")
		dir      = flag.String("dir", "data", "directory to serve")
		manifest = flag.String("manifest", "cards-manifest.json", "manifest file inside dir, validated before it is served")
		logLevel = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	logger, err := utils.NewLogger(utils.LoggingConfig{Level: *logLevel})
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	if _, err := os.Stat(*dir); err != nil {
		logger.Fatal("data dir", zap.String("dir", *dir), zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(*dir, *manifest, logger)

	logger.Info("mirror-server listening",
		zap.String("addr", *addr),
		zap.String("dir", *dir),
		zap.String("manifest", manifestRoute(*manifest)),
	)
	if err := router.Run(*addr); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

func manifestRoute(manifest string) string {
	return path.Join("/files", filepath.ToSlash(manifest))
}

func newRouter(dir, manifest string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	})

	manifestPath := filepath.Join(dir, manifest)
	route := manifestRoute(manifest)
	files := http.StripPrefix("/files", http.FileServer(gin.Dir(dir, false)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/files/*filepath", func(c *gin.Context) {
		if path.Join("/files", c.Param("filepath")) != route {
			files.ServeHTTP(c.Writer, c.Request)
			return
		}

		// a broken manifest fails loudly here, not in the client
		b, err := os.ReadFile(manifestPath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read manifest: " + err.Error()})
			return
		}
		if _, err := catalog.ParseManifest(b, manifestPath); err != nil {
			logger.Warn("serving invalid manifest refused", zap.String("path", manifestPath), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", b)
	})

	return router
}
