package catalog

import (
	"math"
	"strconv"
	"strings"

	"cardhub/pkg/models"
)

// Column names of a source table.
const (
	ColID     = "id"
	ColRarity = "rarity"
	ColName   = "name"
	ColImage  = "img"
	ColWiki   = "wiki"
	ColWeight = "weight"
)

// NormalizeRow maps one raw row into a Card owned by src. The only hard
// rejection is an empty identity; every other field degrades to its default.
func NormalizeRow(rec Record, src models.Source) (models.Card, bool) {
	id := rec.Get(ColID)
	if id == "" {
		return models.Card{}, false
	}

	return models.Card{
		Identity: id,
		Rarity:   parseRarity(rec.Get(ColRarity)),
		Name:     rec.Get(ColName),
		ImageRef: rec.Get(ColImage),
		WikiRef:  rec.Get(ColWiki),
		Weight:   parseWeight(rec.Get(ColWeight)),
		SourceID: src.ID,
	}, true
}

func parseRarity(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseWeight(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 1
	}
	return f
}
