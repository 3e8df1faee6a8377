package graph

import (
	"testing"

	"github.com/yungbote/cardaffinity/internal/domain"
)

func TestChunks(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5}
	got := chunks(rows, 2)
	if len(got) != 3 || len(got[2]) != 1 || got[2][0] != 5 {
		t.Fatalf("chunks = %v", got)
	}
	if got := chunks([]int{}, 2); len(got) != 0 {
		t.Fatalf("empty chunks = %v", got)
	}
}

func TestCardPropsRoundTrip(t *testing.T) {
	price := 0.25
	in := domain.Card{
		NameFront:  "FIRE",
		NameBack:   "ICE",
		FullName:   "Fire // Ice",
		Colors:     []string{"R", "U"},
		ManaValue:  4,
		PriceUSD:   &price,
		Legalities: map[string]bool{"modern": true, "legacy": false},
	}
	props := cardProps(in)
	if props["full_name_key"] != "FIRE // ICE" {
		t.Fatalf("full_name_key = %v", props["full_name_key"])
	}
	if props["legality_legacy"] != false || props["legality_modern"] != true {
		t.Fatalf("legalities not flattened: %v", props)
	}

	// Values come back from the driver as []any and int64.
	props["card_id"] = "c1"
	props["name_front"] = "FIRE"
	props["colors"] = []any{"R", "U"}
	props["total_recurrences"] = int64(7)
	props["community_id"] = int64(3)
	props["community_levels"] = []any{int64(1), int64(3)}

	out := cardFromProps(props)
	if out.ID != "c1" || out.NameBack != "ICE" || len(out.Colors) != 2 || out.TotalRecurrences != 7 {
		t.Fatalf("card = %+v", out)
	}
	if out.PriceUSD == nil || *out.PriceUSD != 0.25 {
		t.Fatalf("price = %v", out.PriceUSD)
	}
	if out.CommunityID == nil || *out.CommunityID != 3 || len(out.CommunityLevels) != 2 {
		t.Fatalf("community = %v %v", out.CommunityID, out.CommunityLevels)
	}
	if !out.LegalIn("modern") || out.LegalIn("legacy") {
		t.Fatalf("legalities = %v", out.Legalities)
	}
}
