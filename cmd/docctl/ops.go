package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/yanizio/relay/internal/store"
)

// DefaultSeedCount is the seed size when --count is omitted.
const DefaultSeedCount = 5000

const seedBatch = 1000

// Cities the generated users live in.
var Cities = []string{"Mumbai", "Delhi", "Bangalore", "New York", "London"}

// ErrNoIndexer is returned by Index on stores without index support.
var ErrNoIndexer = errors.New("index: the configured store does not support indexes (use the mongo driver)")

// Seed wipes users and inserts n generated documents in batches.  rnd may
// be nil.
func Seed(ctx context.Context, s store.Store, n int, rnd *rand.Rand) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("seed: count must not be negative, got %d", n)
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	users := s.Collection("users")

	removed, err := users.DeleteMany(ctx, nil)
	if err != nil {
		return 0, err
	}
	zap.S().Infow("users wiped", "removed", removed)

	inserted := 0
	for inserted < n {
		size := min(seedBatch, n-inserted)
		batch := make([]store.Document, size)
		for i := range batch {
			k := inserted + i + 1
			batch[i] = store.Document{
				"name":  fmt.Sprintf("User %d", k),
				"email": fmt.Sprintf("user%d@example.com", k),
				"age":   float64(18 + rnd.IntN(60)),
				"city":  Cities[rnd.IntN(len(Cities))],
			}
		}
		got, err := users.InsertMany(ctx, batch)
		if err != nil {
			return inserted, err
		}
		inserted += got
		zap.S().Debugw("seed batch", "inserted", inserted, "of", n)
	}
	return inserted, nil
}

// Stats writes the per-city aggregation for users older than minAge.
func Stats(ctx context.Context, s store.Store, minAge int, w io.Writer) error {
	groups, err := store.GroupBy(ctx, s, "users", store.GroupSpec{
		MatchField: "age",
		MatchAbove: float64(minAge),
		GroupField: "city",
		AvgField:   "age",
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(groups)
}

// Index builds an index on users.<field>.
func Index(ctx context.Context, s store.Store, field string) (string, error) {
	ix, ok := s.(store.Indexer)
	if !ok {
		return "", ErrNoIndexer
	}
	if field == "" {
		return "", errors.New("index: field must not be empty")
	}
	return ix.EnsureIndex(ctx, "users", field)
}
