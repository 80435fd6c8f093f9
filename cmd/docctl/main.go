// cmd/docctl/main.go
//
// docctl – maintenance commands for the document store.
//
//	docctl seed  --count 5000     wipe `users` and insert fake users
//	docctl stats --min-age 20     print the per-city aggregation as JSON
//	docctl index --field name     build an index on users.<field> (mongo)
//
// The store is opened from the same configuration the web server reads,
// so RELAY_STORE__DRIVER and friends apply here too.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanizio/relay/internal/config"
	"github.com/yanizio/relay/internal/core"
	"github.com/yanizio/relay/internal/store"
	"github.com/yanizio/relay/internal/vault"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(log)

	if err := newRoot(openConfigured).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// opener yields the store a command works on.
type opener func(ctx context.Context) (store.Store, error)

func openConfigured(ctx context.Context) (store.Store, error) {
	var secrets config.SecretResolver
	if os.Getenv("VAULT_ADDR") != "" {
		vc, err := vault.New(ctx, nil)
		if err != nil {
			return nil, err
		}
		secrets = vc
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return nil, err
	}
	return core.OpenStore(ctx, cfg.Store)
}

func newRoot(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "docctl",
		Short:        "Seed, aggregate, and index the document store",
		SilenceUsage: true,
	}
	root.AddCommand(seedCmd(open), statsCmd(open), indexCmd(open))
	return root
}

// withStore opens the store, runs fn, and closes the store.
func withStore(cmd *cobra.Command, open opener, fn func(store.Store) error) error {
	s, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func seedCmd(open opener) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace all users with generated ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, open, func(s store.Store) error {
				n, err := Seed(cmd.Context(), s, count, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "inserted %d users\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", DefaultSeedCount, "number of users to insert")
	return cmd
}

func statsCmd(open opener) *cobra.Command {
	var minAge int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Group users above an age by city",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, open, func(s store.Store) error {
				return Stats(cmd.Context(), s, minAge, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().IntVar(&minAge, "min-age", 20, "only count users older than this")
	return cmd
}

func indexCmd(open opener) *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create an index on a users field (mongo only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, open, func(s store.Store) error {
				name, err := Index(cmd.Context(), s, field)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "index %s ready\n", name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&field, "field", "name", "users field to index")
	return cmd
}
