package main

import (
	"context"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"cardhub/internal/catalog"
	"cardhub/internal/ownership"
	"cardhub/pkg/database"
	"cardhub/pkg/models"
	"cardhub/pkg/utils"
)

// export-catalog writes the merged catalog, in the requested order, with
// the stored owned counts.
func main() {
	var (
		configPath = flag.String("config", "cardhub.yaml", "optional YAML config file")
		out        = flag.String("out", "data/catalog-export.csv", "output CSV path")
		order      = flag.String("order", catalog.OrderManifest, "manifest or progress")
		own        = flag.String("own", catalog.ScopeAll, "all, owned or unowned")
	)
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

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	var kv ownership.KV
	if db, err := database.Open(dbCfg); err != nil {
		logger.Warn("sqlite unavailable, exporting without owned counts", zap.Error(err))
	} else {
		defer db.Close()
		kv = ownership.NewSQLiteKV(db)
	}

	svc := catalog.NewService(catalog.Options{
		ManifestLocator: cfg.ManifestPath,
		Store:           ownership.NewStore(kv, logger.Named("ownership")),
		Logger:          logger.Named("catalog"),
		Concurrency:     cfg.Concurrency,
	})
	snap, err := svc.Reload(ctx)
	if err != nil {
		logger.Fatal("load catalog", zap.Error(err))
	}

	q := catalog.Query{Ownership: *own, Order: *order, Locale: cfg.Locale}
	if err := q.Validate(); err != nil {
		logger.Fatal("bad query", zap.Error(err))
	}
	cards := catalog.Run(snap.Catalog, snap.Ownership, q)

	if err := writeCSV(*out, cards, snap); err != nil {
		logger.Fatal("write export", zap.String("out", *out), zap.Error(err))
	}
	stats := snap.Catalog.Stats()
	logger.Info("exported catalog",
		zap.String("out", *out),
		zap.Int("rows", len(cards)),
		zap.Int("total", stats.TotalCards),
		zap.Int("owned", stats.OwnedCards),
		zap.Int("diagnostics", len(snap.Diagnostics)),
	)
}

func writeCSV(outPath string, cards []models.Card, snap *catalog.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "source_id", "rarity", "name", "img", "wiki", "weight", "count"}); err != nil {
		return err
	}
	for _, card := range cards {
		if err := w.Write([]string{
			card.Identity,
			card.SourceID,
			strconv.Itoa(card.Rarity),
			card.Name,
			card.ImageRef,
			card.WikiRef,
			strconv.FormatFloat(card.Weight, 'f', -1, 64),
			strconv.Itoa(snap.Ownership.Count(card.Identity)),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
