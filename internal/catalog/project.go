package catalog

import "cardhub/pkg/models"

// Projection is what the presentation layer may show for one card.
type Projection struct {
	Identity      string  `json:"id"`
	SourceID      string  `json:"source_id"`
	Rarity        int     `json:"rarity"`
	Weight        float64 `json:"weight"`
	DisplayOwned  bool    `json:"display_owned"`
	RealCount     int     `json:"real_count"`
	CanShowDetail bool    `json:"can_show_detail"`
	Masked        bool    `json:"masked"`
	Name          string  `json:"name,omitempty"`
	ImageRef      string  `json:"img,omitempty"`
	WikiRef       string  `json:"wiki,omitempty"`
}

// Project computes the displayed state of card. preview unlocks the card
// visually; RealCount is the ground truth whatever preview says.
func Project(card models.Card, ownership models.OwnershipMap, preview bool) Projection {
	count := ownership.Count(card.Identity)
	shown := preview || count > 0

	p := Projection{
		Identity:     card.Identity,
		SourceID:     card.SourceID,
		Rarity:       card.Rarity,
		Weight:       card.Weight,
		DisplayOwned: shown,
		RealCount:    count,
		Masked:       !shown,
	}
	if shown {
		p.Name = card.Name
		p.ImageRef = card.ImageRef
		p.WikiRef = card.WikiRef
		p.CanShowDetail = card.WikiRef != ""
	}
	return p
}

// ProjectAll projects cards in order.
func ProjectAll(cards []models.Card, ownership models.OwnershipMap, preview bool) []Projection {
	out := make([]Projection, 0, len(cards))
	for _, c := range cards {
		out = append(out, Project(c, ownership, preview))
	}
	return out
}
