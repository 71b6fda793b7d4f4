package models

// Card is the normalized, internal form of one catalog row.
//
// Every source's CSV rows are mapped into this structure first; the
// aggregator, query engine and projector only ever see Cards.
type Card struct {
	Identity string  `json:"id"`             // join key against the ownership map
	Rarity   int     `json:"rarity"`         // 0 means unknown and sorts last
	Name     string  `json:"name"`           // never shown unless owned or previewed
	ImageRef string  `json:"img,omitempty"`  // image locator
	WikiRef  string  `json:"wiki,omitempty"` // external detail page
	Weight   float64 `json:"weight"`         // draw weight, always > 0
	SourceID string  `json:"source_id"`      // owning Source.ID
}
