package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cardhub/internal/catalog"
	"cardhub/internal/ownership"
	"cardhub/pkg/database"
	"cardhub/pkg/models"
	"cardhub/pkg/utils"
)

// import-counts reads an id,count CSV into the ownership map named by the
// manifest's storage key. Existing counts are kept unless -replace is set.
// Identities the catalog does not know are skipped, as on the HTTP API.
func main() {
	var (
		configPath = flag.String("config", "cardhub.yaml", "optional YAML config file")
		in         = flag.String("in", "data/counts.csv", "input CSV with id,count columns")
		replace    = flag.Bool("replace", false, "replace the stored map instead of merging")
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

	counts, err := readCounts(*in)
	if err != nil {
		logger.Fatal("read counts", zap.String("in", *in), zap.Error(err))
	}

	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		logger.Fatal("open db", zap.String("db", dbCfg.Path), zap.Error(err))
	}
	defer db.Close()

	svc := catalog.NewService(catalog.Options{
		ManifestLocator: cfg.ManifestPath,
		Store:           ownership.NewStore(ownership.NewSQLiteKV(db), logger.Named("ownership")),
		Logger:          logger.Named("catalog"),
		Concurrency:     cfg.Concurrency,
	})
	snap, err := svc.Reload(ctx)
	if err != nil {
		logger.Fatal("load catalog", zap.Error(err))
	}
	if n := catalog.CountKind(snap.Diagnostics, catalog.KindSourceLoad); n > 0 {
		logger.Warn("some sources failed to load; their identities will be skipped", zap.Int("sources", n))
	}

	next, skipped := mergeCounts(snap.Catalog, snap.Ownership, counts, *replace)
	for _, id := range skipped {
		logger.Warn("skipping unknown card", zap.String("id", id))
	}

	snap, err = svc.ReplaceOwnership(ctx, next)
	if err != nil {
		logger.Fatal("save counts", zap.Error(err))
	}
	if !snap.Persistent {
		logger.Fatal("counts were not persisted", zap.String("db", dbCfg.Path))
	}

	logger.Info("imported counts",
		zap.String("in", *in),
		zap.String("key", snap.Manifest.StorageKey),
		zap.Int("rows", len(counts)),
		zap.Int("skipped", len(skipped)),
		zap.Int("owned", snap.Catalog.Stats().OwnedCards),
	)
}

// mergeCounts applies counts for known cards on top of base, or on an empty
// map when replace is set. A count of 0 clears the entry. It returns the
// unknown identities in sorted order.
func mergeCounts(cat *catalog.Catalog, base models.OwnershipMap, counts map[string]int, replace bool) (models.OwnershipMap, []string) {
	next := models.OwnershipMap{}
	if !replace {
		for id, n := range base {
			next[id] = n
		}
	}

	var skipped []string
	for id, n := range counts {
		if _, ok := cat.Card(id); !ok {
			skipped = append(skipped, id)
			continue
		}
		if n == 0 {
			delete(next, id)
			continue
		}
		next[id] = n
	}
	sort.Strings(skipped)
	return next, skipped
}

func readCounts(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if _, ok := header["id"]; !ok {
		return nil, errors.New("missing id column")
	}

	out := make(map[string]int)
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		id := valueAt(header, row, "id")
		if id == "" {
			continue
		}
		raw := valueAt(header, row, "count")
		if raw == "" {
			out[id] = 1
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("line %d: bad count %q for %s", line, raw, id)
		}
		out[id] = n
	}
	return out, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		name = strings.TrimPrefix(name, "\ufeff")
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
