package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"cardhub/pkg/models"
)

const (
	ScopeAll = "all"

	OwnershipOwned   = "owned"
	OwnershipUnowned = "unowned"

	OrderManifest = "manifest"
	OrderProgress = "progress"
)

// DefaultLocale is used for name collation when a query names none.
const DefaultLocale = "ja"

// Query selects and orders a view of the catalog.
type Query struct {
	Text      string // case-insensitive substring over the search haystack
	Source    string // "all" or a source id
	Ownership string // "all", "owned" or "unowned"
	Order     string // "manifest" or "progress"
	Locale    string // BCP 47 tag for name collation
}

// Normalized fills defaults and canonicalizes case.
func (q Query) Normalized() Query {
	q.Text = strings.TrimSpace(q.Text)
	q.Source = strings.TrimSpace(q.Source)
	if q.Source == "" {
		q.Source = ScopeAll
	}
	q.Ownership = strings.ToLower(strings.TrimSpace(q.Ownership))
	if q.Ownership == "" {
		q.Ownership = ScopeAll
	}
	q.Order = strings.ToLower(strings.TrimSpace(q.Order))
	if q.Order == "" {
		q.Order = OrderManifest
	}
	if strings.TrimSpace(q.Locale) == "" {
		q.Locale = DefaultLocale
	}
	return q
}

// Validate rejects scope and order values the engine does not know.
func (q Query) Validate() error {
	q = q.Normalized()
	switch q.Ownership {
	case ScopeAll, OwnershipOwned, OwnershipUnowned:
	default:
		return fmt.Errorf("ownership must be one of: all, owned, unowned")
	}
	switch q.Order {
	case OrderManifest, OrderProgress:
	default:
		return fmt.Errorf("order must be one of: manifest, progress")
	}
	return nil
}

// SearchText builds the lowercased haystack free text is matched against.
// It deliberately includes the name and a rarity tag so a card can be found
// before it is owned; the name itself is only revealed by the projector.
func SearchText(card models.Card, src models.Source) string {
	parts := []string{
		card.Name,
		card.WikiRef,
		src.ID,
		src.DisplayTitle(),
		"★" + strconv.Itoa(card.Rarity),
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Run filters and orders the catalog. Ownership filtering always uses the
// real map; preview never reaches this function.
func Run(cat *Catalog, ownership models.OwnershipMap, q Query) []models.Card {
	if cat == nil {
		return nil
	}
	q = q.Normalized()
	needle := strings.ToLower(q.Text)

	var col *collate.Collator
	if q.Order == OrderProgress {
		col = collate.New(language.Make(q.Locale))
	}

	var out []models.Card
	for _, sc := range cat.sources {
		if q.Source != ScopeAll && sc.Source.ID != q.Source {
			continue
		}

		start := len(out)
		for _, card := range sc.Cards {
			if !matchOwnership(q.Ownership, ownership.Owns(card.Identity)) {
				continue
			}
			if needle != "" && !strings.Contains(SearchText(card, sc.Source), needle) {
				continue
			}
			out = append(out, card)
		}

		if col != nil {
			sortProgress(out[start:], ownership, col)
		}
	}
	return out
}

func matchOwnership(scope string, owned bool) bool {
	switch scope {
	case OwnershipOwned:
		return owned
	case OwnershipUnowned:
		return !owned
	default:
		return true
	}
}

// sortProgress orders one source's cards: owned first, then rarity
// descending, then name by collation. The sort is stable so remaining ties
// keep ingestion order.
func sortProgress(cards []models.Card, ownership models.OwnershipMap, col *collate.Collator) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		ao, bo := ownership.Owns(a.Identity), ownership.Owns(b.Identity)
		if ao != bo {
			return ao
		}
		if a.Rarity != b.Rarity {
			return a.Rarity > b.Rarity
		}
		return col.CompareString(a.Name, b.Name) < 0
	})
}

// Section is one source block of a rendered view.
type Section struct {
	Source   models.Source `json:"source"`
	Stats    Stats         `json:"stats"`
	Expanded bool          `json:"expanded"`
	Cards    []models.Card `json:"-"`
}

// Sections groups query results per source. Every source that passes the
// source scope gets a section, even an empty one, with that source's full
// stats. expanded is caller-owned UI state and may be nil.
func Sections(cat *Catalog, results []models.Card, sourceScope string, expanded map[string]bool) []Section {
	if cat == nil {
		return nil
	}
	sourceScope = strings.TrimSpace(sourceScope)
	if sourceScope == "" {
		sourceScope = ScopeAll
	}

	bySource := make(map[string][]models.Card)
	for _, c := range results {
		bySource[c.SourceID] = append(bySource[c.SourceID], c)
	}

	out := make([]Section, 0, len(cat.sources))
	for _, sc := range cat.sources {
		if sourceScope != ScopeAll && sc.Source.ID != sourceScope {
			continue
		}
		out = append(out, Section{
			Source:   sc.Source,
			Stats:    sc.Stats,
			Expanded: expanded[sc.Source.ID],
			Cards:    bySource[sc.Source.ID],
		})
	}
	return out
}
