// Package scryfall reads Scryfall oracle-card bulk data into catalog cards.
package scryfall

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"

	"github.com/yungbote/cardaffinity/internal/cardname"
	"github.com/yungbote/cardaffinity/internal/domain"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
)

const (
	BulkDataURL    = "https://api.scryfall.com/bulk-data"
	OracleBulkType = "oracle_cards"
)

type face struct {
	Name     string   `json:"name"`
	ManaCost string   `json:"mana_cost"`
	Colors   []string `json:"colors"`
}

type rawCard struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	ManaCost   string            `json:"mana_cost"`
	CMC        float64           `json:"cmc"`
	Colors     []string          `json:"colors"`
	TypeLine   string            `json:"type_line"`
	Rarity     string            `json:"rarity"`
	Keywords   []string          `json:"keywords"`
	Legalities map[string]string `json:"legalities"`
	Prices     struct {
		USD *string `json:"usd"`
	} `json:"prices"`
	CardFaces []face `json:"card_faces"`
}

// isLegal treats restricted cards as playable.
func isLegal(status string) bool {
	switch status {
	case "legal", "restricted":
		return true
	}
	return false
}

func toCard(rc rawCard) (domain.Card, bool) {
	n := cardname.Resolve(rc.Name)
	if !n.OK() {
		return domain.Card{}, false
	}
	c := domain.Card{
		ID:         rc.ID,
		NameFront:  n.Front,
		NameBack:   n.Back,
		FullName:   n.Full(),
		Colors:     rc.Colors,
		ManaCost:   rc.ManaCost,
		ManaValue:  rc.CMC,
		Types:      cardname.SplitTypeLine(rc.TypeLine),
		TypeLine:   rc.TypeLine,
		Rarity:     rc.Rarity,
		Keywords:   rc.Keywords,
		Legalities: map[string]bool{},
	}
	if c.Colors == nil && len(rc.CardFaces) > 0 {
		seen := map[string]struct{}{}
		for _, f := range rc.CardFaces {
			for _, col := range f.Colors {
				if _, ok := seen[col]; !ok {
					seen[col] = struct{}{}
					c.Colors = append(c.Colors, col)
				}
			}
		}
		sort.Strings(c.Colors)
	}
	if c.ManaCost == "" && len(rc.CardFaces) > 0 {
		c.ManaCost = rc.CardFaces[0].ManaCost
	}
	if rc.Prices.USD != nil {
		if p, err := strconv.ParseFloat(strings.TrimSpace(*rc.Prices.USD), 64); err == nil && p >= 0 {
			c.PriceUSD = &p
		}
	}
	for format, status := range rc.Legalities {
		if domain.IsKnownFormat(format) && isLegal(status) {
			c.Legalities[format] = true
		}
	}
	return c, true
}

// Parse streams a bulk-data array. Cards without a usable name are counted
// in skipped and left out.
func Parse(r io.Reader) (cards []domain.Card, skipped int, err error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, 0, fmt.Errorf("scryfall: read: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, 0, fmt.Errorf("scryfall: expected array, got %v", tok)
	}
	for dec.More() {
		var rc rawCard
		if err := dec.Decode(&rc); err != nil {
			return nil, skipped, fmt.Errorf("scryfall: card %d: %w", len(cards)+skipped, err)
		}
		c, ok := toCard(rc)
		if !ok {
			skipped++
			continue
		}
		cards = append(cards, c)
	}
	if _, err := dec.Token(); err != nil {
		return nil, skipped, fmt.Errorf("scryfall: read: %w", err)
	}
	return cards, skipped, nil
}

type bulkIndex struct {
	Data []struct {
		Type        string `json:"type"`
		DownloadURI string `json:"download_uri"`
	} `json:"data"`
}

// Client downloads bulk data. Transient HTTP failures are retried.
type Client struct {
	HTTP        *http.Client
	BulkDataURL string
	MaxTries    uint
	log         *logger.Logger
}

func NewClient(log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		HTTP:        &http.Client{Timeout: 10 * time.Minute},
		BulkDataURL: BulkDataURL,
		MaxTries:    4,
		log:         log.With("client", "Scryfall"),
	}
}

// OracleCards resolves the oracle_cards download and parses it.
func (c *Client) OracleCards(ctx context.Context) ([]domain.Card, error) {
	var index bulkIndex
	if err := c.getJSON(ctx, c.BulkDataURL, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&index)
	}); err != nil {
		return nil, fmt.Errorf("scryfall: bulk index: %w", err)
	}
	uri := ""
	for _, d := range index.Data {
		if d.Type == OracleBulkType {
			uri = d.DownloadURI
			break
		}
	}
	if uri == "" {
		return nil, fmt.Errorf("scryfall: no %s entry in bulk index", OracleBulkType)
	}

	var cards []domain.Card
	if err := c.getJSON(ctx, uri, func(r io.Reader) error {
		var skipped int
		var err error
		cards, skipped, err = Parse(r)
		if skipped > 0 {
			c.log.Warn("scryfall cards without a name skipped", "count", skipped)
		}
		return err
	}); err != nil {
		return nil, err
	}
	c.log.Info("scryfall oracle cards downloaded", "cards", len(cards))
	return cards, nil
}

func (c *Client) getJSON(ctx context.Context, url string, read func(io.Reader) error) error {
	tries := c.MaxTries
	if tries == 0 {
		tries = 1
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "cardaffinity/1.0")
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return struct{}{}, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return struct{}{}, backoff.Permanent(fmt.Errorf("GET %s: status %d", url, resp.StatusCode))
		}
		if err := read(resp.Body); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(tries))
	return err
}
