// Package cli is the affinity-jobs command tree. Each command opens the app,
// runs one engine operation and prints its report as JSON.
package cli

import (
	"context"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/yungbote/cardaffinity/internal/app"
)

// openApp is replaced in tests.
var openApp = func(ctx context.Context) (*app.App, error) {
	return app.New(ctx)
}

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "affinity-jobs",
		Short: "Maintain the card-affinity graph",
		Long: `affinity-jobs loads the card catalog, ingests decklists and runs the
graph-wide passes of the card-affinity engine.

Configuration comes from the environment (NEO4J_URI, DB_DRIVER, DB_DSN,
REDIS_ADDR, WEIGHT_POLICY, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newLoadCatalogCmd(),
		newIngestCmd(),
		newRenormalizeCmd(),
		newCommunitiesCmd(),
		newRebuildCmd(),
		newSuggestCmd(),
		newCardCmd(),
	)
	return root
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	a.Start()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
