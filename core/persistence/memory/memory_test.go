package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengeek/tacit-sub000/core/persistence"
)

func seed(t *testing.T, c persistence.Collection, docs ...map[string]any) []any {
	var keys []any
	for _, d := range docs {
		key, err := c.Insert(context.Background(), d)
		require.NoError(t, err)
		keys = append(keys, key)
	}
	return keys
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	c := NewRepository().Collection("animals")
	keys := seed(t, c,
		map[string]any{"name": "ant", "legs": 6},
		map[string]any{"name": "bee", "legs": 6},
		map[string]any{"name": "cat", "legs": 4},
	)

	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = c.Count(ctx, persistence.Filter{"legs": 6})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	doc, err := c.FindOne(ctx, persistence.Filter{"id": keys[2]})
	require.NoError(t, err)
	assert.Equal(t, "cat", doc["name"])

	_, err = c.FindOne(ctx, persistence.Filter{"name": "dog"})
	assert.True(t, errors.Is(err, persistence.ErrNotFound))

	matched, err := c.Update(ctx, persistence.Filter{"legs": 6}, map[string]any{"insect": true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, matched)

	matched, err = c.Update(ctx, persistence.Filter{"legs": 8}, map[string]any{"insect": true})
	require.NoError(t, err)
	assert.EqualValues(t, 0, matched)

	removed, err := c.Remove(ctx, Predicate(func(doc map[string]any) bool { return doc["insect"] == true }))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	docs, err := c.Find(ctx, nil, "name")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]any{"id": keys[2], "name": "cat"}, docs[0])
}

func TestFindReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewRepository().Collection("things")
	keys := seed(t, c, map[string]any{"tags": []any{"a"}})

	doc, err := c.FindOne(ctx, persistence.Filter{"id": keys[0]})
	require.NoError(t, err)
	doc["tags"].([]any)[0] = "changed"

	doc, err = c.FindOne(ctx, persistence.Filter{"id": keys[0]})
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, doc["tags"])
}

func TestQuerySortSkipLimit(t *testing.T) {
	ctx := context.Background()
	c := NewRepository().Collection("numbers")
	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		seed(t, c, map[string]any{"n": i, "at": base.Add(time.Duration(i) * time.Hour), "odd": i%2 == 1})
	}

	docs, err := c.Find(ctx, c.Query().OrderBy("n", true).Skip(2).Limit(3))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []any{7, 6, 5}, []any{docs[0]["n"], docs[1]["n"], docs[2]["n"]})

	docs, err = c.Find(ctx, c.Query().Filter(persistence.Filter{"odd": true}).OrderBy("at", false))
	require.NoError(t, err)
	require.Len(t, docs, 5)
	assert.Equal(t, 1, docs[0]["n"])

	n, err := c.Count(ctx, c.Query().Filter(persistence.Filter{"odd": true}).Limit(1))
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	docs, err = c.Find(ctx, c.Query().Skip(20))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUnsupportedCriteria(t *testing.T) {
	_, err := NewRepository().Collection("x").Count(context.Background(), 42)
	assert.True(t, errors.Is(err, persistence.ErrUnsupportedCriteria))
}

func TestCreateDestroy(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	require.NoError(t, repo.Create(ctx, "c"))
	assert.True(t, errors.Is(repo.Create(ctx, "c"), persistence.ErrExists))
	assert.NoError(t, repo.Create(ctx, "c", persistence.IgnoreErrors()))

	require.NoError(t, repo.Destroy(ctx, "c"))
	assert.True(t, errors.Is(repo.Destroy(ctx, "c"), persistence.ErrNotFound))
	assert.NoError(t, repo.Destroy(ctx, "c", persistence.IgnoreErrors()))
}

func TestCast(t *testing.T) {
	c := NewRepository().Collection("x")
	at := time.Date(2021, 3, 4, 5, 6, 7, 8_000_000, time.FixedZone("CET", 3600))
	assert.Equal(t, "2021-03-04T04:06:07.008Z", c.Cast(at))
	assert.Equal(t, "2021-03-04T04:06:07.008Z", c.Cast("2021-03-04T04:06:07.008Z"))
	assert.Equal(t, map[string]any{"at": "2021-03-04T04:06:07.008Z"}, c.Cast(map[string]any{"at": at}))
	assert.Equal(t, 12, c.Cast(12))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(nil, 1))
	assert.Equal(t, 0, Compare(1, 1.0))
	assert.Equal(t, 1, Compare("b", "a"))
	assert.Equal(t, -1, Compare(false, true))
}

func TestRegister(t *testing.T) {
	reg := persistence.NewRegistry()
	Register(reg)
	repo, err := reg.Open(context.Background(), persistence.Connection{Backend: Backend})
	require.NoError(t, err)
	assert.IsType(t, &Repository{}, repo)
}
