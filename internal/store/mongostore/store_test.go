package mongostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/yanizio/relay/internal/store"
)

func TestBSONRoundTripKeepsHexID(t *testing.T) {
	oid := bson.NewObjectID()
	d := store.Document{"id": oid.Hex(), "name": "Ana"}

	m := toBSON(d, oid)
	_, hasID := m["id"]
	assert.False(t, hasID)
	assert.Equal(t, oid, m["_id"])

	back := fromBSON(m)
	assert.Equal(t, oid.Hex(), back.ID())
	assert.Equal(t, "Ana", back["name"])
}

func TestFromBSONFlattensDriverTypes(t *testing.T) {
	author := bson.NewObjectID()
	got := fromBSON(bson.M{
		"_id":    bson.NewObjectID(),
		"author": author,
		"age":    int32(31),
		"tags":   bson.A{"a", "b"},
		"addr":   bson.D{{Key: "city", Value: "Delhi"}},
	})
	assert.Equal(t, author.Hex(), got["author"])
	assert.Equal(t, int64(31), got["age"])
	assert.Equal(t, []any{"a", "b"}, got["tags"])
	assert.Equal(t, map[string]any{"city": "Delhi"}, got["addr"])
}

func TestToFilterRewritesID(t *testing.T) {
	oid := bson.NewObjectID()
	q, ok := toFilter(store.Filter{"id": oid.Hex(), "city": "Delhi"})
	require.True(t, ok)
	assert.Equal(t, bson.M{"_id": oid, "city": "Delhi"}, q)

	_, ok = toFilter(store.Filter{"id": "not-hex"})
	assert.False(t, ok)
}

func TestSetForSkipsReservedKeys(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	set := setFor(store.Document{"id": "x", "_id": "y", "createdAt": "z", "name": "Ana"}, now)
	assert.Equal(t, bson.M{"name": "Ana", "updatedAt": "2026-01-02T03:04:05Z"}, set)
}

func TestGroupPipelineStages(t *testing.T) {
	p := groupPipeline(store.GroupSpec{MatchField: "age", MatchAbove: 20, GroupField: "city", AvgField: "age"})
	require.Len(t, p, 3)
	assert.Equal(t, "$match", p[0][0].Key)
	assert.Equal(t, "$group", p[1][0].Key)
	assert.Equal(t, "$sort", p[2][0].Key)

	group := p[1][0].Value.(bson.D)
	assert.Equal(t, "$city", group[0].Value)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	c := &collection{s: &Store{now: time.Now}}
	ctx := context.Background()

	cases := map[string]func(id string) error{
		"FindByID": func(id string) error { _, err := c.FindByID(ctx, id); return err },
		"Update":   func(id string) error { _, err := c.Update(ctx, id, store.Document{"name": "x"}); return err },
		"Delete":   func(id string) error { _, err := c.Delete(ctx, id); return err },
	}
	for name, call := range cases {
		for _, id := range []string{"", "not-hex", "123", "zzzzzzzzzzzzzzzzzzzzzzzz"} {
			err := call(id)
			assert.True(t, errors.Is(err, store.ErrNotFound), "%s(%q) = %v", name, id, err)
		}
	}
}
