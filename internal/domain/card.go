package domain

// Card is a graph node. NameFront is the canonical key used while ingesting
// decklists; ID is the stable identifier once the catalog assigned one.
type Card struct {
	ID        string   `json:"id"`
	NameFront string   `json:"name_front"`
	NameBack  string   `json:"name_back,omitempty"`
	FullName  string   `json:"full_name"`
	Colors    []string `json:"colors"`
	ManaCost  string   `json:"mana_cost,omitempty"`
	ManaValue float64  `json:"cmc"`
	Types     []string `json:"types,omitempty"`
	TypeLine  string   `json:"type_line,omitempty"`
	Rarity    string   `json:"rarity,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	PriceUSD  *float64 `json:"price_usd,omitempty"`

	// Legalities maps a format name to whether the card is legal there.
	// Missing formats count as not legal.
	Legalities map[string]bool `json:"legalities,omitempty"`

	TotalRecurrences int64   `json:"total_recurrences"`
	CommunityID      *int64  `json:"community_id,omitempty"`
	CommunityLevels  []int64 `json:"community_levels,omitempty"`
}

func (c *Card) LegalIn(format string) bool {
	if c == nil || c.Legalities == nil {
		return false
	}
	return c.Legalities[format]
}

// ColorsWithin reports whether every color of the card is in allowed.
// Colorless cards are always within.
func (c *Card) ColorsWithin(allowed map[string]struct{}) bool {
	for _, col := range c.Colors {
		if _, ok := allowed[col]; !ok {
			return false
		}
	}
	return true
}

// EdgeDelta increments the sync count of the undirected pair (A, B).
type EdgeDelta struct {
	A     string
	B     string
	Delta int64
}

// Edge is a CONNECTED relationship as read back from a store.
type Edge struct {
	A             string
	B             string
	Sync          int64
	DynamicWeight float64
}

// PairKey returns the pair in canonical order so that (a, b) and (b, a) map
// to the same edge.
func PairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
