package scryfall

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const bulk = `[
  {
    "id": "c1", "name": "Lightning Bolt", "mana_cost": "{R}", "cmc": 1,
    "colors": ["R"], "type_line": "Instant", "rarity": "common",
    "keywords": [], "prices": {"usd": "1.25"},
    "legalities": {"modern": "legal", "vintage": "restricted", "standard": "not_legal", "made_up": "legal"}
  },
  {
    "id": "c2", "name": "Fire // Ice", "cmc": 4, "type_line": "Instant // Instant",
    "prices": {"usd": null}, "legalities": {"legacy": "legal"},
    "card_faces": [
      {"name": "Fire", "mana_cost": "{1}{R}", "colors": ["R"]},
      {"name": "Ice", "mana_cost": "{1}{U}", "colors": ["U"]}
    ]
  },
  {"id": "c3", "name": "  ", "legalities": {}}
]`

func TestParse(t *testing.T) {
	cards, skipped, err := Parse(strings.NewReader(bulk))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 2 || skipped != 1 {
		t.Fatalf("cards=%d skipped=%d, want 2 and 1", len(cards), skipped)
	}

	bolt := cards[0]
	if bolt.NameFront != "LIGHTNING BOLT" || bolt.PriceUSD == nil || *bolt.PriceUSD != 1.25 {
		t.Fatalf("bolt = %+v", bolt)
	}
	if !bolt.LegalIn("modern") || !bolt.LegalIn("vintage") || bolt.LegalIn("standard") {
		t.Fatalf("bolt legalities = %v", bolt.Legalities)
	}
	if _, ok := bolt.Legalities["made_up"]; ok {
		t.Fatalf("unknown format kept: %v", bolt.Legalities)
	}

	fi := cards[1]
	if fi.NameFront != "FIRE" || fi.NameBack != "ICE" || fi.FullName != "FIRE // ICE" {
		t.Fatalf("fire//ice names = %+v", fi)
	}
	if fi.PriceUSD != nil {
		t.Fatalf("null price parsed as %v", *fi.PriceUSD)
	}
	if len(fi.Colors) != 2 || fi.Colors[0] != "R" || fi.Colors[1] != "U" {
		t.Fatalf("face colors = %v", fi.Colors)
	}
	if fi.ManaCost != "{1}{R}" {
		t.Fatalf("mana cost = %q", fi.ManaCost)
	}
	if len(fi.Types) != 2 {
		t.Fatalf("types = %v", fi.Types)
	}
}

func TestParseRejectsNonArray(t *testing.T) {
	if _, _, err := Parse(strings.NewReader(`{"object":"list"}`)); err == nil {
		t.Fatalf("expected error for object input")
	}
}

func TestOracleCardsRetriesServerErrors(t *testing.T) {
	var indexHits atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/bulk-data", func(w http.ResponseWriter, r *http.Request) {
		if indexHits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"data":[{"type":"default_cards","download_uri":"%s/nope"},{"type":"oracle_cards","download_uri":"%s/oracle.json"}]}`, srv.URL, srv.URL)
	})
	mux.HandleFunc("/oracle.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bulk))
	})

	c := NewClient(nil)
	c.BulkDataURL = srv.URL + "/bulk-data"
	cards, err := c.OracleCards(context.Background())
	if err != nil {
		t.Fatalf("OracleCards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(cards))
	}
	if indexHits.Load() != 2 {
		t.Fatalf("index hits = %d, want 2", indexHits.Load())
	}
}

func TestOracleCardsDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(nil)
	c.BulkDataURL = srv.URL
	if _, err := c.OracleCards(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
}
