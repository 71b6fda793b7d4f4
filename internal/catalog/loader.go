package catalog

import (
	"bytes"
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cardhub/pkg/models"
)

// SourceResult is what one manifest source contributed to a load cycle.
type SourceResult struct {
	Source   models.Source
	Cards    []models.Card
	Rejected int              // rows dropped for an empty identity
	Err      *SourceLoadError // non-nil when the source contributed nothing
}

// Loader fetches and normalizes every manifest source. One broken source
// never stops the others.
type Loader struct {
	Fetcher     Fetcher
	Concurrency int // > 1 fetches in parallel; results still merge in manifest order
	Logger      *zap.Logger
}

func NewLoader(f Fetcher, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Fetcher: f, Concurrency: 1, Logger: logger}
}

// Load returns one result per usable source, in manifest order, plus the
// diagnostics for skipped and failed sources in that same order.
func (l *Loader) Load(ctx context.Context, m models.Manifest) ([]SourceResult, []Diagnostic) {
	plan := planSources(m.Sources)
	sources := make([]models.Source, 0, len(plan))
	for _, p := range plan {
		if p.skip == nil {
			sources = append(sources, p.source)
		}
	}

	results := make([]SourceResult, len(sources))
	if l.Concurrency > 1 && len(sources) > 1 {
		var g errgroup.Group
		g.SetLimit(l.Concurrency)
		for i, src := range sources {
			g.Go(func() error {
				results[i] = l.loadOne(ctx, src)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, src := range sources {
			results[i] = l.loadOne(ctx, src)
		}
	}

	var diags []Diagnostic
	next := 0
	for _, p := range plan {
		if p.skip != nil {
			diags = append(diags, *p.skip)
			continue
		}
		if r := results[next]; r.Err != nil {
			diags = append(diags, sourceLoadDiagnostic(r.Err))
		}
		next++
	}
	return results, diags
}

func (l *Loader) loadOne(ctx context.Context, src models.Source) SourceResult {
	log := l.logger().With(zap.String("source", src.ID))
	log.Debug("fetching source", zap.String("locator", src.CardsLocator))

	res := SourceResult{Source: src}

	raw, err := l.Fetcher.Fetch(ctx, src.CardsLocator)
	if err != nil {
		res.Err = &SourceLoadError{SourceID: src.ID, Locator: src.CardsLocator, Err: err}
		log.Warn("source fetch failed", zap.Error(err))
		return res
	}

	rows, err := ReadRows(bytes.NewReader(raw))
	if err != nil {
		res.Err = &SourceLoadError{SourceID: src.ID, Locator: src.CardsLocator, Err: err}
		log.Warn("source parse failed", zap.Error(err))
		return res
	}

	res.Cards = make([]models.Card, 0, len(rows))
	for _, rec := range rows {
		card, ok := NormalizeRow(rec, src)
		if !ok {
			res.Rejected++
			continue
		}
		res.Cards = append(res.Cards, card)
	}

	log.Debug("source loaded", zap.Int("cards", len(res.Cards)), zap.Int("rejected", res.Rejected))
	return res
}

func (l *Loader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

type plannedSource struct {
	source models.Source
	skip   *Diagnostic
}

// planSources marks manifest entries that cannot be loaded at all: a blank
// id, a blank locator, or an id already used by an earlier entry.
func planSources(in []models.Source) []plannedSource {
	seen := make(map[string]struct{}, len(in))
	out := make([]plannedSource, 0, len(in))

	for i, s := range in {
		var reason string
		switch {
		case s.ID == "":
			reason = "missing id"
		case s.CardsLocator == "":
			reason = "missing cardsCsv"
		default:
			if _, dup := seen[s.ID]; dup {
				reason = "duplicate source id"
			}
		}
		if reason != "" {
			d := sourceSkippedDiagnostic(i, s.ID, reason)
			out = append(out, plannedSource{source: s, skip: &d})
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, plannedSource{source: s})
	}
	return out
}

// MergedCards flattens results in manifest then ingestion order.
func MergedCards(results []SourceResult) []models.Card {
	n := 0
	for _, r := range results {
		n += len(r.Cards)
	}
	out := make([]models.Card, 0, n)
	for _, r := range results {
		out = append(out, r.Cards...)
	}
	return out
}
