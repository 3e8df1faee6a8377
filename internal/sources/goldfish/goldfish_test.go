package goldfish

import (
	"strings"
	"testing"
)

const dump = `{
  "modern": {
    "Burn": [[4, "Lightning Bolt"], [4, "Lava Spike"], ["2", "Fire // Ice"], [1, " "]],
    "Amulet Titan": [[4, "Amulet of Vigor"], "Primeval Titan"]
  },
  "custom": {
    "Brew": [["Counterspell"]]
  }
}`

func TestParse(t *testing.T) {
	decks, err := Parse(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(decks) != 3 {
		t.Fatalf("decks = %d, want 3", len(decks))
	}
	names := []string{decks[0].Name, decks[1].Name, decks[2].Name}
	want := []string{"custom/Brew", "modern/Amulet Titan", "modern/Burn"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
	burn := decks[2].Cards
	if len(burn) != 3 || burn[2] != "Fire // Ice" {
		t.Fatalf("burn = %v", burn)
	}
	if got := decks[1].Cards; len(got) != 2 || got[1] != "Primeval Titan" {
		t.Fatalf("amulet = %v", got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse(strings.NewReader(`{"modern": {"Burn": [[4, 5]]}}`)); err == nil {
		t.Fatalf("expected error for numeric card name")
	}
	if _, err := Parse(strings.NewReader(`[]`)); err == nil {
		t.Fatalf("expected error for non-object dump")
	}
}

func TestLoadBatchesAreStable(t *testing.T) {
	first, err := Load(strings.NewReader(dump), "mtggoldfish", 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(first) != 2 || len(first[0].Decklists) != 2 || len(first[1].Decklists) != 1 {
		t.Fatalf("batches = %+v", first)
	}
	again, _ := Load(strings.NewReader(dump), "mtggoldfish", 2)
	for i := range first {
		if first[i].ID != again[i].ID {
			t.Fatalf("batch %d id changed: %s vs %s", i, first[i].ID, again[i].ID)
		}
	}
	if first[0].ID == first[1].ID {
		t.Fatalf("distinct batches share id %s", first[0].ID)
	}
	other, _ := Load(strings.NewReader(dump), "other-source", 2)
	if other[0].ID == first[0].ID {
		t.Fatalf("source not part of batch id")
	}
}
