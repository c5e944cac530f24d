// Package csql wraps a postgres *sql.DB together with the schema all
// tables live in
package csql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq" // also registers the postgres driver

	"github.com/opengeek/tacit-sub000/core/logger"
)

// DB encapsulates a standard sql.DB with a schema
type DB struct {
	*sql.DB
	Schema string
}

// ErrNoRows is returned by Scan when QueryRow doesn't return a row
var ErrNoRows = sql.ErrNoRows

// New wraps an open database. An empty schema means "public".
func New(db *sql.DB, schema string) *DB {
	if schema == "" {
		schema = "public"
	}
	return &DB{DB: db, Schema: schema}
}

// OpenWithSchema opens a postgres database and creates schema if it does not
// exist yet
func OpenWithSchema(ctx context.Context, dataSourceName, schema string) (*DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	wrapped := New(db, schema)
	if wrapped.Schema != "public" {
		logger.Default().Debugln("selected database schema:", wrapped.Schema)
		if _, err = db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+Identifier(wrapped.Schema)+`;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("cannot create schema %s: %w", wrapped.Schema, err)
		}
	}
	return wrapped, nil
}

// Table returns the quoted, schema qualified name of table
func (db *DB) Table(table string) string {
	return Identifier(db.Schema) + "." + Identifier(table)
}

// ClearSchema drops the schema with all its tables and recreates it
func (db *DB) ClearSchema(ctx context.Context) error {
	if db.Schema == "public" {
		return fmt.Errorf("refuse to drop public schema")
	}
	_, err := db.ExecContext(ctx, `DROP SCHEMA `+Identifier(db.Schema)+` CASCADE;
CREATE SCHEMA IF NOT EXISTS `+Identifier(db.Schema)+`;`)
	return err
}

// Identifier quotes name as a postgres identifier
func Identifier(name string) string {
	return pq.QuoteIdentifier(name)
}
