package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengeek/tacit-sub000/core/persistence"
	"github.com/opengeek/tacit-sub000/core/persistence/memory"
)

func userModel() *persistence.Model {
	return &persistence.Model{
		Type: "user",
		Fields: []persistence.Field{
			{Name: "name"},
			{Name: "email"},
			{Name: "password"},
			{Name: "extra", Default: "default"},
		},
		Rules: map[string]string{
			"name":  "required|minlen:1",
			"email": "email",
		},
	}
}

func TestMask(t *testing.T) {
	r := persistence.New(memory.NewRepository().Collection("users"), userModel())

	all := []string{"name", "email", "extra", "created_at", "updated_at"}
	assert.Equal(t, all, r.Mask())
	assert.Equal(t, []string{"name", "extra", "created_at", "updated_at"}, r.Mask("email"))
	assert.Equal(t, persistence.Without(r.Mask(), "email"), r.Mask("email"))

	assert.Equal(t, []string{"id", "name", "email", "password", "extra", "created_at", "updated_at"}, r.HydrateMask())
	assert.Equal(t, []string{"name", "email", "password", "extra"}, r.WritableMask())
	assert.Equal(t, append([]string{"id"}, all...), r.OutputMask())
}

func TestNewRecord(t *testing.T) {
	r := persistence.New(memory.NewRepository().Collection("users"), userModel())
	assert.True(t, r.IsNew())
	assert.Nil(t, r.Key())
	assert.Empty(t, r.Dirty())
	assert.Equal(t, "default", r.Get("extra", nil))
	assert.Equal(t, "fallback", r.Get("name", "fallback"))
	assert.Equal(t, "FALLBACK!", r.Get("name", "fallback",
		func(v any) any { return "FALLBACK" },
		func(v any) any { return v.(string) + "!" },
	))
}

func TestSaveLifecycle(t *testing.T) {
	ctx := context.Background()
	stamp := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	defer persistence.SetNow(func() time.Time { return stamp })()

	c := memory.NewRepository().Collection("users")
	r := persistence.New(c, userModel())
	r.Hydrate(map[string]any{"name": "jane", "email": "jane@example.com", "_type": "admin", "unknown": 1})
	assert.Equal(t, []string{"email", "name"}, r.Dirty())

	ok, err := r.Save(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, r.IsNew())
	assert.Empty(t, r.Dirty())

	doc, err := c.FindOne(ctx, persistence.Filter{"id": r.Key()})
	require.NoError(t, err)
	assert.Equal(t, "user", doc["_type"])
	assert.Equal(t, stamp, doc["created_at"])
	assert.NotContains(t, doc, "unknown")

	// nothing changed
	ok, err = r.Save(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := persistence.Load(ctx, c, userModel(), persistence.Filter{"id": r.Key()})
	require.NoError(t, err)
	assert.Empty(t, loaded.Dirty())
	assert.Equal(t, "jane", loaded.Get("name", nil))

	loaded.Set("name", "joan")
	ok, err = loaded.Save(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	doc, err = c.FindOne(ctx, persistence.Filter{"id": r.Key()})
	require.NoError(t, err)
	assert.Equal(t, "joan", doc["name"])
	assert.Equal(t, "jane@example.com", doc["email"])
	assert.Equal(t, stamp, doc["updated_at"])

	out := loaded.ToMap(nil, true)
	assert.Equal(t, "2021-06-01T12:00:00.000Z", out["created_at"])
	assert.NotContains(t, out, "password")
	assert.NotContains(t, out, "_type")

	ok, err = loaded.Remove(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = loaded.Remove(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHydrateClearsDirtyOnExisting(t *testing.T) {
	r := persistence.New(memory.NewRepository().Collection("users"), userModel())
	r.Hydrate(map[string]any{"id": "k1", "name": "a"})
	assert.False(t, r.IsNew())
	assert.Empty(t, r.Dirty())

	r.Hydrate(map[string]any{"name": "b", "extra": "y"})
	assert.Empty(t, r.Dirty())
	assert.Equal(t, "b", r.Get("name", nil))
}

func TestPatchOfVanishedRecord(t *testing.T) {
	r := persistence.New(memory.NewRepository().Collection("users"), userModel())
	r.Hydrate(map[string]any{"id": "gone", "name": "a"})
	r.Set("name", "b")
	ok, err := r.Save(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	c := memory.NewRepository().Collection("users")

	r := persistence.New(c, userModel())
	r.Set("email", "not an email")
	ok, err := r.Save(ctx)
	assert.False(t, ok)
	var verr *persistence.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.FieldMessages(), "name")
	assert.Contains(t, verr.FieldMessages(), "email")

	n, _ := c.Count(ctx, nil)
	assert.EqualValues(t, 0, n)

	// a patch only validates what changed
	key, err := c.Insert(ctx, map[string]any{"email": "bad"})
	require.NoError(t, err)
	loaded, err := persistence.Load(ctx, c, userModel(), persistence.Filter{"id": key})
	require.NoError(t, err)
	loaded.Set("extra", "x")
	ok, err = loaded.Save(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded.Set("name", "")
	_, err = loaded.Save(ctx)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"name"}, keys(verr.FieldMessages()))

	valid, failures := loaded.Validate(map[string]string{"extra": "maxlen:0"}, []string{"extra"})
	assert.False(t, valid)
	assert.Len(t, failures["extra"], 1)
}

func keys(m map[string][]string) []string {
	var result []string
	for k := range m {
		result = append(result, k)
	}
	return result
}

func TestRegistryAndProvider(t *testing.T) {
	ctx := context.Background()
	reg := persistence.NewRegistry()
	opened := 0
	reg.Register("counting", func(ctx context.Context, conn persistence.Connection) (persistence.Repository, error) {
		opened++
		return memory.NewRepository(), nil
	})
	assert.Equal(t, []string{"counting"}, reg.Backends())

	_, err := reg.Open(ctx, persistence.Connection{Backend: "nope"})
	assert.Error(t, err)

	p := persistence.NewProvider(reg, persistence.Connection{Backend: "counting"})
	first, err := p.Repository(ctx)
	require.NoError(t, err)
	second, err := p.Repository(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, opened)
	assert.NoError(t, p.Close(ctx))
	_, err = p.Repository(ctx)
	assert.ErrorIs(t, err, persistence.ErrClosed)

	closed := persistence.NewProvider(reg, persistence.Connection{Backend: "counting"})
	require.NoError(t, closed.Close(ctx))
	_, err = closed.Repository(ctx)
	assert.True(t, errors.Is(err, persistence.ErrClosed))
	assert.Equal(t, 1, opened)
}

func TestConnectionString(t *testing.T) {
	conn := persistence.Connection{Backend: "mongodb", Server: "db:27017", Database: "tacit", Password: "secret"}
	assert.Equal(t, "mongodb://db:27017/tacit", conn.String())
}

func TestProviderConcurrentClose(t *testing.T) {
	ctx := context.Background()
	reg := persistence.NewRegistry()
	memory.Register(reg)
	p := persistence.NewProvider(reg, persistence.Connection{Backend: memory.Backend})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Repository(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, p.Close(ctx))
	}()
	wg.Wait()

	_, err := p.Repository(ctx)
	assert.ErrorIs(t, err, persistence.ErrClosed)
	assert.NoError(t, p.Close(ctx))
}

func TestNaturalKey(t *testing.T) {
	ctx := context.Background()
	c := memory.NewRepository().Collection("things")
	m := &persistence.Model{
		KeyField: "code",
		Fields:   []persistence.Field{{Name: "code"}, {Name: "title"}},
	}

	r := persistence.New(c, m)
	assert.True(t, r.NaturalKey())
	assert.Equal(t, []string{"title"}, r.WritableMask())
	assert.Equal(t, []string{"code", "title"}, r.CreateMask())

	r.Hydrate(map[string]any{"title": "untitled"}, r.CreateMask()...)
	_, err := r.Save(ctx)
	var validationErr *persistence.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Failures, "code")

	r.Hydrate(map[string]any{"code": "abc", "title": "t"}, r.CreateMask()...)
	assert.True(t, r.IsNew())
	ok, err := r.Save(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, r.IsNew())
	assert.Equal(t, "abc", r.Key())

	loaded, err := persistence.Load(ctx, c, m, persistence.Filter{"code": "abc"})
	require.NoError(t, err)
	assert.False(t, loaded.IsNew())
	assert.Equal(t, "t", loaded.Get("title", nil))

	duplicate := persistence.New(c, m)
	duplicate.Hydrate(map[string]any{"code": "abc"}, duplicate.CreateMask()...)
	_, err = duplicate.Save(ctx)
	assert.ErrorIs(t, err, persistence.ErrExists)

	loaded.Set("title", "u")
	ok, err = loaded.Save(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = loaded.Remove(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}
