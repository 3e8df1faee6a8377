// Package goldfish reads decklist dumps scraped from MTGGoldfish.
//
// A dump maps a category (metagame, custom, ...) to decks, and each deck to
// its entries as [quantity, display name] pairs:
//
//	{"modern": {"Burn": [[4, "Lightning Bolt"], [4, "Lava Spike"]]}}
package goldfish

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/yungbote/cardaffinity/internal/domain"
)

const DefaultBatchSize = 100

// batchNamespace scopes content-derived batch ids.
var batchNamespace = uuid.MustParse("6f1c7f0e-6a43-4b8e-9a59-2f0d9c1e7a41")

type entry struct {
	Quantity int
	Name     string
}

// UnmarshalJSON accepts [qty, name], [name] and a bare name.
func (e *entry) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		e.Quantity, e.Name = 1, name
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decklist entry: %w", err)
	}
	switch len(raw) {
	case 0:
		return nil
	case 1:
		return json.Unmarshal(raw[0], &e.Name)
	}
	var qty json.Number
	if err := json.Unmarshal(raw[0], &qty); err == nil {
		if n, err := qty.Int64(); err == nil {
			e.Quantity = int(n)
		}
	}
	return json.Unmarshal(raw[1], &e.Name)
}

// Parse decodes a dump into decklists named "category/deck", ordered by name.
// Entries with a blank name are dropped; quantities do not matter for
// co-occurrence and are ignored.
func Parse(r io.Reader) ([]domain.Decklist, error) {
	var dump map[string]map[string][]entry
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, fmt.Errorf("goldfish: decode: %w", err)
	}

	var out []domain.Decklist
	for category, decks := range dump {
		for deck, entries := range decks {
			d := domain.Decklist{Name: category + "/" + deck}
			for _, e := range entries {
				if name := strings.TrimSpace(e.Name); name != "" {
					d.Cards = append(d.Cards, name)
				}
			}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Batches splits decklists into batches of at most size decklists. Batch ids
// are derived from source and contents, so loading the same dump twice yields
// the same ids.
func Batches(source string, decklists []domain.Decklist, size int) ([]domain.DecklistBatch, error) {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out []domain.DecklistBatch
	for start := 0; start < len(decklists); start += size {
		end := start + size
		if end > len(decklists) {
			end = len(decklists)
		}
		chunk := decklists[start:end]
		payload, err := json.Marshal(chunk)
		if err != nil {
			return nil, fmt.Errorf("goldfish: encode batch: %w", err)
		}
		id := uuid.NewSHA1(batchNamespace, append([]byte(source+"\x00"), payload...))
		out = append(out, domain.DecklistBatch{ID: id.String(), Source: source, Decklists: chunk})
	}
	return out, nil
}

// Load parses r and splits it into batches.
func Load(r io.Reader, source string, size int) ([]domain.DecklistBatch, error) {
	decks, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return Batches(source, decks, size)
}
