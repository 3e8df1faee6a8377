package domain

import "github.com/google/uuid"

// Pool is a user's deck in progress. Cards are the CONTAINS set, Ignored the
// IGNORE set. The two are meant to be disjoint but nothing guarantees it.
type Pool struct {
	ID      uuid.UUID `json:"pool_id"`
	OwnerID string    `json:"owner_id"`
	Name    string    `json:"name"`
	Cards   []Card    `json:"cards"`
	Ignored []string  `json:"ignored"`
}

func (p *Pool) CardIDs() []string {
	out := make([]string, 0, len(p.Cards))
	for _, c := range p.Cards {
		out = append(out, c.ID)
	}
	return out
}

// Colors is the union of the color identities of the pool's cards.
func (p *Pool) Colors() map[string]struct{} {
	out := map[string]struct{}{}
	for _, c := range p.Cards {
		for _, col := range c.Colors {
			out[col] = struct{}{}
		}
	}
	return out
}

// CandidateEdge is one CONNECTED edge between a candidate card and a card of
// the pool.
type CandidateEdge struct {
	Candidate  Card
	PoolCardID string
	Weight     float64
}

type Suggestion struct {
	Card  Card    `json:"node"`
	Score float64 `json:"sync_score"`
	// Connections counts the pool cards the candidate is connected to.
	Connections int `json:"connections"`
}

type SuggestionFilters struct {
	MaxPrice         *float64 `json:"max_price,omitempty" validate:"omitempty,gte=0"`
	Legalities       []string `json:"legalities,omitempty" validate:"dive,format"`
	IgnoreBasicLands bool     `json:"ignore_basic_lands"`
	PreserveColors   bool     `json:"preserve_colors"`
}

// DefaultSuggestionFilters mirrors what clients get when they send no filters.
func DefaultSuggestionFilters() SuggestionFilters {
	return SuggestionFilters{IgnoreBasicLands: true, PreserveColors: true}
}

type SuggestRequest struct {
	OwnerID        string            `json:"owner_id" validate:"required"`
	PoolID         uuid.UUID         `json:"pool_id" validate:"required"`
	FromCollection bool              `json:"from_collection"`
	Filters        SuggestionFilters `json:"filters"`
	Limit          int               `json:"limit,omitempty" validate:"gte=0,lte=200"`
}
