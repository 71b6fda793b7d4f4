package catalog

import "cardhub/pkg/models"

// Stats is an owned/total pair. It is always recomputed from the catalog
// index and an ownership map, never patched.
type Stats struct {
	TotalCards int `json:"total_cards"`
	OwnedCards int `json:"owned_cards"`
}

// SourceCards is one source's slice of the catalog.
type SourceCards struct {
	Source   models.Source `json:"source"`
	Cards    []models.Card `json:"-"`
	Rejected int           `json:"rejected_rows"`
	Failed   bool          `json:"failed"`
	Stats    Stats         `json:"stats"`
}

// Catalog is the merged, indexed view of one load cycle. It is immutable;
// Recount derives a new value for a new ownership map.
type Catalog struct {
	sources   []SourceCards
	index     map[string]models.Card
	sourceIdx map[string]int
	stats     Stats
}

// Build merges loader results into a catalog. The first card seen for an
// identity wins; later duplicates are left out of both the index and their
// source's card list.
func Build(results []SourceResult, ownership models.OwnershipMap) *Catalog {
	c := &Catalog{
		sources:   make([]SourceCards, 0, len(results)),
		index:     make(map[string]models.Card),
		sourceIdx: make(map[string]int, len(results)),
	}

	for _, r := range results {
		sc := SourceCards{
			Source:   r.Source,
			Cards:    make([]models.Card, 0, len(r.Cards)),
			Rejected: r.Rejected,
			Failed:   r.Err != nil,
		}
		for _, card := range r.Cards {
			if _, dup := c.index[card.Identity]; dup {
				continue
			}
			c.index[card.Identity] = card
			sc.Cards = append(sc.Cards, card)
		}
		c.sourceIdx[r.Source.ID] = len(c.sources)
		c.sources = append(c.sources, sc)
	}

	c.count(ownership)
	return c
}

// Recount returns a catalog sharing this one's cards with stats computed
// against ownership.
func (c *Catalog) Recount(ownership models.OwnershipMap) *Catalog {
	next := &Catalog{
		sources:   make([]SourceCards, len(c.sources)),
		index:     c.index,
		sourceIdx: c.sourceIdx,
	}
	copy(next.sources, c.sources)
	next.count(ownership)
	return next
}

func (c *Catalog) count(ownership models.OwnershipMap) {
	c.stats = Stats{}
	for i := range c.sources {
		sc := &c.sources[i]
		sc.Stats = Stats{TotalCards: len(sc.Cards)}
		for _, card := range sc.Cards {
			if ownership.Owns(card.Identity) {
				sc.Stats.OwnedCards++
			}
		}
		c.stats.TotalCards += sc.Stats.TotalCards
		c.stats.OwnedCards += sc.Stats.OwnedCards
	}
}

// Stats returns the global owned/total pair.
func (c *Catalog) Stats() Stats { return c.stats }

// Sources returns every loaded source in manifest order.
func (c *Catalog) Sources() []SourceCards {
	out := make([]SourceCards, len(c.sources))
	copy(out, c.sources)
	return out
}

// Source looks a source up by id.
func (c *Catalog) Source(id string) (SourceCards, bool) {
	i, ok := c.sourceIdx[id]
	if !ok {
		return SourceCards{}, false
	}
	return c.sources[i], true
}

// Card looks a card up by identity.
func (c *Catalog) Card(identity string) (models.Card, bool) {
	card, ok := c.index[identity]
	return card, ok
}

// Cards returns every card in manifest, then ingestion, order.
func (c *Catalog) Cards() []models.Card {
	out := make([]models.Card, 0, len(c.index))
	for _, sc := range c.sources {
		out = append(out, sc.Cards...)
	}
	return out
}

func (c *Catalog) Len() int { return len(c.index) }
