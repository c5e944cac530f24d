package rethink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	r "gopkg.in/rethinkdb/rethinkdb-go.v6"

	"github.com/opengeek/tacit-sub000/core/persistence"
)

func table() r.Term {
	return r.DB("test").Table("users")
}

func newCollection(mock *r.Mock) persistence.Collection {
	return NewRepository(mock, "test").Collection("users")
}

func TestCount(t *testing.T) {
	mock := r.NewMock()
	mock.On(table().Filter(map[string]any{"name": "jane"}).Count()).Return(2, nil)

	n, err := newCollection(mock).Count(context.Background(), persistence.Filter{"name": "jane"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	mock.AssertExpectations(t)
}

func TestFind(t *testing.T) {
	mock := r.NewMock()
	mock.On(table().OrderBy(r.Desc("created_at")).Skip(int64(5)).Limit(int64(2))).Return([]any{
		map[string]any{"id": "a", "name": "ann"},
		map[string]any{"id": "b", "name": "bob"},
	}, nil)

	c := newCollection(mock)
	docs, err := c.Find(context.Background(), c.Query().OrderBy("created_at", true).Skip(5).Limit(2))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "bob", docs[1]["name"])
	mock.AssertExpectations(t)
}

func TestFindOne(t *testing.T) {
	mock := r.NewMock()
	mock.On(table().Filter(map[string]any{"id": "a"}).Limit(int64(1)).Pluck("id", "name")).Return(
		map[string]any{"id": "a", "name": "ann"}, nil)
	mock.On(table().Filter(map[string]any{"id": "x"}).Limit(int64(1))).Return([]any{}, nil)

	c := newCollection(mock)
	doc, err := c.FindOne(context.Background(), persistence.Filter{"id": "a"}, "name")
	require.NoError(t, err)
	assert.Equal(t, "ann", doc["name"])

	_, err = c.FindOne(context.Background(), persistence.Filter{"id": "x"})
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestWrites(t *testing.T) {
	doc := map[string]any{"name": "ann"}
	mock := r.NewMock()
	mock.On(table().Insert(doc)).Return(map[string]any{"inserted": 1, "generated_keys": []any{"k1"}}, nil)
	mock.On(table().Filter(map[string]any{"id": "k1"}).Update(map[string]any{"name": "bea"})).Return(
		map[string]any{"replaced": 1}, nil)
	mock.On(table().Filter(map[string]any{"id": "k1"}).Delete()).Return(map[string]any{"deleted": 1}, nil)

	ctx := context.Background()
	c := newCollection(mock)
	key, err := c.Insert(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "k1", key)

	n, err := c.Update(ctx, persistence.Filter{"id": "k1"}, map[string]any{"name": "bea"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = c.Remove(ctx, persistence.Filter{"id": "k1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	mock.AssertExpectations(t)
}

func TestLifecycle(t *testing.T) {
	mock := r.NewMock()
	mock.On(r.DB("test").TableCreate("users")).Return(nil, nil)
	mock.On(r.DB("test").TableDrop("users")).Return(nil, assert.AnError)

	repo := NewRepository(mock, "test")
	ctx := context.Background()
	assert.NoError(t, repo.Create(ctx, "users"))
	assert.Error(t, repo.Destroy(ctx, "users"))
	assert.NoError(t, repo.Destroy(ctx, "users", persistence.IgnoreErrors()))
	assert.NoError(t, repo.Close(ctx))
}

func TestUnsupportedCriteria(t *testing.T) {
	_, err := newCollection(r.NewMock()).Count(context.Background(), 3.14)
	assert.ErrorIs(t, err, persistence.ErrUnsupportedCriteria)
}
