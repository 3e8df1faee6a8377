package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/cardaffinity/internal/affinity"
	"github.com/yungbote/cardaffinity/internal/app"
	"github.com/yungbote/cardaffinity/internal/domain"
	"github.com/yungbote/cardaffinity/internal/sources/goldfish"
	"github.com/yungbote/cardaffinity/internal/sources/scryfall"
)

type batchSummary struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Decklists   int    `json:"decklists"`
	Skipped     int    `json:"skipped_decklists,omitempty"`
	Unresolved  int    `json:"unresolved,omitempty"`
	Pairs       int    `json:"pairs"`
	Occurrences int64  `json:"occurrences"`
	Attempts    int    `json:"attempts,omitempty"`
	Error       string `json:"error,omitempty"`
}

type ingestSummary struct {
	Batches          []batchSummary `json:"batches"`
	Occurrences      int64          `json:"occurrences"`
	Failed           int            `json:"failed"`
	SelfLoopsRemoved int64          `json:"self_loops_removed"`
}

func summarizeIngest(r affinity.IngestReport) ingestSummary {
	out := ingestSummary{
		Occurrences:      r.Occurrences(),
		Failed:           len(r.Failed()),
		SelfLoopsRemoved: r.SelfLoopsRemoved,
	}
	for _, b := range r.Batches {
		s := batchSummary{
			ID:          b.BatchID,
			Status:      b.Status,
			Decklists:   b.Decklists,
			Skipped:     b.SkippedDecklists,
			Unresolved:  b.Unresolved,
			Pairs:       b.Pairs,
			Occurrences: b.Occurrences,
			Attempts:    b.Attempts,
		}
		if b.Err != nil {
			s.Error = b.Err.Error()
		}
		out.Batches = append(out.Batches, s)
	}
	return out
}

func newLoadCatalogCmd() *cobra.Command {
	var file string
	var download bool
	cmd := &cobra.Command{
		Use:   "load-catalog",
		Short: "Upsert cards from Scryfall oracle bulk data",
		Example: `  affinity-jobs load-catalog --file oracle-cards.json
  affinity-jobs load-catalog --download`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == !download {
				return fmt.Errorf("exactly one of --file or --download is required")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				var cards []domain.Card
				if download {
					var err error
					if cards, err = scryfall.NewClient(a.Log).OracleCards(ctx); err != nil {
						return err
					}
				} else {
					f, err := os.Open(file)
					if err != nil {
						return err
					}
					defer f.Close()
					var skipped int
					if cards, skipped, err = scryfall.Parse(f); err != nil {
						return err
					}
					if skipped > 0 {
						a.Log.Warn("cards without a name skipped", "count", skipped)
					}
				}
				n, err := a.Engine.LoadCatalog(ctx, cards)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"read": len(cards), "upserted": n})
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to an oracle-cards bulk JSON file")
	cmd.Flags().BoolVar(&download, "download", false, "download the current oracle-cards bulk file")
	return cmd
}

func newIngestCmd() *cobra.Command {
	var (
		file      string
		source    string
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add the card pairs of an MTGGoldfish decklist dump to the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			batches, err := goldfish.Load(f, source, batchSize)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Archive != nil {
					for _, b := range batches {
						if err := a.Archive.Save(ctx, b); err != nil {
							return err
						}
					}
				}
				report, err := a.Engine.IngestDecklists(ctx, batches)
				if err != nil {
					return err
				}
				summary := summarizeIngest(report)
				if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
				if summary.Failed > 0 {
					return fmt.Errorf("%d of %d batches failed", summary.Failed, len(batches))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a decklist dump")
	cmd.Flags().StringVar(&source, "source", "mtggoldfish", "source label stored with each batch")
	cmd.Flags().IntVar(&batchSize, "batch-size", goldfish.DefaultBatchSize, "decklists per batch")
	return cmd
}

func newRenormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renormalize",
		Short: "Recompute total recurrences and dynamic edge weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.RenormalizeWeights(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newCommunitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "communities",
		Short: "Recompute card communities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.RecomputeCommunities(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Drop every affinity edge and replay the decklist archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Engine.RebuildAffinityGraph(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"edges_cleared": report.EdgesCleared,
					"ingest":        summarizeIngest(report.Ingest),
					"normalize":     report.Normalize,
				})
			})
		},
	}
}

func newSuggestCmd() *cobra.Command {
	var (
		owner          string
		pool           string
		fromCollection bool
		maxPrice       float64
		legal          []string
		keepBasics     bool
		anyColors      bool
		limit          int
	)
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Rank cards that go well with a pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			poolID, err := uuid.Parse(strings.TrimSpace(pool))
			if err != nil {
				return fmt.Errorf("--pool: %w", err)
			}
			filters := domain.DefaultSuggestionFilters()
			filters.IgnoreBasicLands = !keepBasics
			filters.PreserveColors = !anyColors
			filters.Legalities = legal
			if cmd.Flags().Changed("max-price") {
				filters.MaxPrice = &maxPrice
			}
			req := domain.SuggestRequest{
				OwnerID:        owner,
				PoolID:         poolID,
				FromCollection: fromCollection,
				Filters:        filters,
				Limit:          limit,
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.Suggest(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id of the pool")
	cmd.Flags().StringVar(&pool, "pool", "", "pool id")
	cmd.Flags().BoolVar(&fromCollection, "from-collection", false, "only suggest cards the owner has")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "maximum USD price")
	cmd.Flags().StringSliceVar(&legal, "legal", nil, "formats every suggestion must be legal in")
	cmd.Flags().BoolVar(&keepBasics, "keep-basic-lands", false, "allow basic lands")
	cmd.Flags().BoolVar(&anyColors, "any-colors", false, "allow colors outside the pool")
	cmd.Flags().IntVar(&limit, "limit", affinity.MaxSuggestions, "maximum number of suggestions")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("pool")
	return cmd
}

func newCardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "card <id>",
		Short: "Print one card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.Card(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), c)
			})
		},
	}
}
