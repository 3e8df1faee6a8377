package affinity

import (
	"testing"

	"github.com/yungbote/cardaffinity/internal/domain"
)

func card(id string, colors ...string) domain.Card {
	return domain.Card{ID: id, NameFront: id, Colors: colors}
}

func ids(s []domain.Suggestion) []string {
	out := make([]string, 0, len(s))
	for _, x := range s {
		out = append(out, x.Card.ID)
	}
	return out
}

func TestRank_SumsWeightsAcrossPoolCards(t *testing.T) {
	z, w := card("Z"), card("W")
	edges := []domain.CandidateEdge{
		{Candidate: w, PoolCardID: "X", Weight: 0.5},
		{Candidate: z, PoolCardID: "X", Weight: 0.4},
		{Candidate: z, PoolCardID: "Y", Weight: 0.3},
	}
	got := Rank(edges, RankInput{PoolCardIDs: []string{"X", "Y"}})
	if len(got) != 2 || got[0].Card.ID != "Z" || got[1].Card.ID != "W" {
		t.Fatalf("order = %v, want [Z W]", ids(got))
	}
	if d := got[0].Score - 0.7; d > 1e-9 || d < -1e-9 {
		t.Fatalf("Z score = %v, want 0.7", got[0].Score)
	}
	if got[0].Connections != 2 || got[1].Connections != 1 {
		t.Fatalf("connections = %d/%d, want 2/1", got[0].Connections, got[1].Connections)
	}
}

func TestRank_ExcludesPoolAndIgnoredCards(t *testing.T) {
	edges := []domain.CandidateEdge{
		{Candidate: card("Y"), PoolCardID: "X", Weight: 9},
		{Candidate: card("IGN"), PoolCardID: "X", Weight: 8},
		{Candidate: card("OK"), PoolCardID: "X", Weight: 0.1},
	}
	got := Rank(edges, RankInput{PoolCardIDs: []string{"X", "Y"}, IgnoredIDs: []string{"IGN", "X"}})
	if len(got) != 1 || got[0].Card.ID != "OK" {
		t.Fatalf("got %v, want [OK]", ids(got))
	}
}

func TestRank_PreserveColorsKeepsSubsetsOnly(t *testing.T) {
	edges := []domain.CandidateEdge{
		{Candidate: card("RED", "R"), PoolCardID: "X", Weight: 1},
		{Candidate: card("BLUE", "U"), PoolCardID: "X", Weight: 1},
		{Candidate: card("IZZET", "U", "R"), PoolCardID: "X", Weight: 1},
		{Candidate: card("ARTIFACT"), PoolCardID: "X", Weight: 1},
	}
	in := RankInput{
		PoolCardIDs: []string{"X"},
		PoolColors:  map[string]struct{}{"R": {}},
		Filters:     domain.SuggestionFilters{PreserveColors: true},
	}
	got := Rank(edges, in)
	if want := []string{"ARTIFACT", "RED"}; len(got) != 2 || got[0].Card.ID != want[0] || got[1].Card.ID != want[1] {
		t.Fatalf("got %v, want %v", ids(got), want)
	}
	for _, s := range got {
		if !s.Card.ColorsWithin(in.PoolColors) {
			t.Fatalf("%s colors %v not within pool", s.Card.ID, s.Card.Colors)
		}
	}
}

func TestRank_MaxPriceIsInclusive(t *testing.T) {
	at, over, unknown := card("AT"), card("OVER"), card("UNKNOWN")
	p1, p2 := 5.0, 5.01
	at.PriceUSD, over.PriceUSD = &p1, &p2
	limit := 5.0
	edges := []domain.CandidateEdge{
		{Candidate: at, PoolCardID: "X", Weight: 1},
		{Candidate: over, PoolCardID: "X", Weight: 1},
		{Candidate: unknown, PoolCardID: "X", Weight: 1},
	}
	got := Rank(edges, RankInput{PoolCardIDs: []string{"X"}, Filters: domain.SuggestionFilters{MaxPrice: &limit}})
	if len(got) != 1 || got[0].Card.ID != "AT" {
		t.Fatalf("got %v, want [AT]", ids(got))
	}
}

func TestRank_EveryLegalityMustHold(t *testing.T) {
	modernOnly, both := card("MODERN"), card("BOTH")
	modernOnly.Legalities = map[string]bool{"modern": true, "legacy": false}
	both.Legalities = map[string]bool{"modern": true, "legacy": true}
	edges := []domain.CandidateEdge{
		{Candidate: modernOnly, PoolCardID: "X", Weight: 2},
		{Candidate: both, PoolCardID: "X", Weight: 1},
	}
	got := Rank(edges, RankInput{PoolCardIDs: []string{"X"}, Filters: domain.SuggestionFilters{Legalities: []string{"modern", "legacy"}}})
	if len(got) != 1 || got[0].Card.ID != "BOTH" {
		t.Fatalf("got %v, want [BOTH]", ids(got))
	}
}

func TestRank_BasicLandsAndCollection(t *testing.T) {
	edges := []domain.CandidateEdge{
		{Candidate: card("ISLAND"), PoolCardID: "X", Weight: 5},
		{Candidate: card("OWNED"), PoolCardID: "X", Weight: 4},
		{Candidate: card("NEW"), PoolCardID: "X", Weight: 3},
	}
	base := RankInput{
		PoolCardIDs: []string{"X"},
		Collection:  []string{"OWNED", "ISLAND"},
		Filters:     domain.SuggestionFilters{IgnoreBasicLands: true},
	}
	if got := Rank(edges, base); len(got) != 1 || got[0].Card.ID != "NEW" {
		t.Fatalf("outside collection got %v, want [NEW]", ids(got))
	}
	base.FromCollection = true
	if got := Rank(edges, base); len(got) != 1 || got[0].Card.ID != "OWNED" {
		t.Fatalf("from collection got %v, want [OWNED]", ids(got))
	}
}

func TestRank_TiesBreakByIDAndLimitCaps(t *testing.T) {
	var edges []domain.CandidateEdge
	for _, id := range []string{"c", "a", "b"} {
		edges = append(edges, domain.CandidateEdge{Candidate: card(id), PoolCardID: "X", Weight: 1})
	}
	got := Rank(edges, RankInput{PoolCardIDs: []string{"X"}, Limit: 2})
	if len(got) != 2 || got[0].Card.ID != "a" || got[1].Card.ID != "b" {
		t.Fatalf("got %v, want [a b]", ids(got))
	}
}

func TestRank_EmptyPool(t *testing.T) {
	got := Rank([]domain.CandidateEdge{{Candidate: card("A"), PoolCardID: "X", Weight: 1}}, RankInput{})
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty non-nil list", got)
	}
}
