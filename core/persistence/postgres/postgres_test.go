// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengeek/tacit-sub000/core/csql"
	"github.com/opengeek/tacit-sub000/core/persistence"
)

func setup(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	return NewRepository(csql.New(db, "tacit")), mock, func() { db.Close() }
}

func TestDataSourceName(t *testing.T) {
	assert.Equal(t, "postgres://localhost:5432/tacit?sslmode=disable",
		DataSourceName(persistence.Connection{Database: "tacit"}))
	assert.Equal(t, "postgres://u:p@db:5432/tacit?sslmode=require",
		DataSourceName(persistence.Connection{Server: "db:5432", Database: "tacit", Username: "u", Password: "p",
			Options: map[string]string{"sslmode": "require"}}))
	assert.Equal(t, "postgres://x@y/z", DataSourceName(persistence.Connection{Server: "postgres://x@y/z"}))
}

func TestWhere(t *testing.T) {
	q, err := toQuery(persistence.Filter{"id": "k1", "name": "jane"})
	require.NoError(t, err)
	where, args, err := q.where()
	require.NoError(t, err)
	assert.Equal(t, " WHERE id = $1 AND document @> $2::jsonb", where)
	assert.Equal(t, []any{"k1", `{"name":"jane"}`}, args)

	q, err = toQuery(Where{SQL: "(document->>'age')::int > ? AND document->>'city' = ?", Args: []any{30, "Bonn"}})
	require.NoError(t, err)
	where, args, err = q.whereFrom(2)
	require.NoError(t, err)
	assert.Equal(t, " WHERE ((document->>'age')::int > $2 AND document->>'city' = $3)", where)
	assert.Equal(t, []any{30, "Bonn"}, args)

	_, _, err = (&Query{filters: []any{Where{SQL: "a = ?"}}}).where()
	assert.Error(t, err)
	_, _, err = (&Query{filters: []any{Where{SQL: "a = ?", Args: []any{1, 2}}}}).where()
	assert.Error(t, err)

	q, err = toQuery(Where{SQL: "document->'tags' ?? ? AND document ??| ? AND document ??& ?", Args: []any{"red", "{a,b}", "{c}"}})
	require.NoError(t, err)
	where, args, err = q.where()
	require.NoError(t, err)
	assert.Equal(t, " WHERE (document->'tags' ? $1 AND document ?| $2 AND document ?& $3)", where)
	assert.Equal(t, []any{"red", "{a,b}", "{c}"}, args)

	where, args, err = (&Query{}).where()
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)

	_, err = toQuery(7)
	assert.ErrorIs(t, err, persistence.ErrUnsupportedCriteria)
}

func TestTail(t *testing.T) {
	q := (&Query{}).OrderBy("created_at", true).OrderBy("id", false).Skip(10).Limit(5).(*Query)
	assert.Equal(t, " ORDER BY document->'created_at' DESC, id, id OFFSET 10 LIMIT 5", q.tail())
	assert.Equal(t, " ORDER BY id", (&Query{}).tail())
}

func TestCount(t *testing.T) {
	repo, mock, done := setup(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "tacit"."users" WHERE document @> $1::jsonb;`)).
		WithArgs(`{"active":true}`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Collection("users").Count(context.Background(), persistence.Filter{"active": true})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFind(t *testing.T) {
	repo, mock, done := setup(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, document FROM "tacit"."users" ORDER BY document->'name', id LIMIT 2;`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document"}).
			AddRow("a", []byte(`{"name":"ann","age":30}`)).
			AddRow("b", []byte(`{"name":"bob","age":40}`)))

	c := repo.Collection("users")
	docs, err := c.Find(context.Background(), c.Query().OrderBy("name", false).Limit(2), "name")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": "a", "name": "ann"}, {"id": "b", "name": "bob"}}, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOneNotFound(t *testing.T) {
	repo, mock, done := setup(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, document FROM "tacit"."users" WHERE id = $1 ORDER BY id LIMIT 1;`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document"}))

	_, err := repo.Collection("users").FindOne(context.Background(), persistence.Filter{"id": "missing"})
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrites(t *testing.T) {
	repo, mock, done := setup(t)
	defer done()
	ctx := context.Background()
	c := repo.Collection("users")
	at := time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "tacit"."users" (id, document) VALUES ($1, $2::jsonb);`)).
		WithArgs(sqlmock.AnyArg(), `{"created_at":"2021-01-02T03:04:05.000Z","name":"ann"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	key, err := c.Insert(ctx, map[string]any{"name": "ann", "created_at": at})
	require.NoError(t, err)
	assert.Len(t, key, 36)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "tacit"."users" SET document = document || $1::jsonb WHERE id = $2;`)).
		WithArgs(`{"name":"bea"}`, "k1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	n, err := c.Update(ctx, persistence.Filter{"id": "k1"}, map[string]any{"name": "bea", "id": "ignored"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "tacit"."users" WHERE id = $1;`)).
		WithArgs("k1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err = c.Remove(ctx, persistence.Filter{"id": "k1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLifecycle(t *testing.T) {
	repo, mock, done := setup(t)
	defer done()
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "tacit"."users"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "tacit"."users"`)).WillReturnError(assert.AnError)
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE "tacit"."users";`)).WillReturnError(assert.AnError)

	assert.NoError(t, repo.Create(ctx, "users"))
	assert.NoError(t, repo.Create(ctx, "users", persistence.IgnoreErrors()))
	assert.Error(t, repo.Destroy(ctx, "users"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
