// Package duckdb stores the deduplicated variant graph (chromosomes, alleles,
// SNP loci, genotype records, samples and per-sample variants) in DuckDB.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// ErrNotFound is returned when a looked-up entity does not exist.
var ErrNotFound = errors.New("not found")

// Store manages a DuckDB connection holding the variant store.
type Store struct {
	*Queries
	db *sql.DB
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{Queries: &Queries{q: db}, db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn inside one transaction. The transaction is committed if fn
// returns nil and rolled back otherwise, so every write made through the
// Queries passed to fn becomes visible together or not at all.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS uploads (
		id VARCHAR PRIMARY KEY,
		path VARCHAR NOT NULL,
		size BIGINT NOT NULL DEFAULT 0,
		modified_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		committed BOOLEAN NOT NULL DEFAULT false,
		n_samples INTEGER NOT NULL DEFAULT 0,
		n_records INTEGER NOT NULL DEFAULT 0,
		n_refs BIGINT NOT NULL DEFAULT 0,
		n_alts BIGINT NOT NULL DEFAULT 0,
		n_missing BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS chromosomes (
		number SMALLINT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS alleles (
		sequence VARCHAR PRIMARY KEY
	)`,
	`CREATE SEQUENCE IF NOT EXISTS snp_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS snps (
		id BIGINT PRIMARY KEY DEFAULT nextval('snp_id_seq'),
		name VARCHAR NOT NULL DEFAULT '',
		chrom SMALLINT NOT NULL,
		pos BIGINT NOT NULL,
		ref VARCHAR NOT NULL,
		alt VARCHAR NOT NULL,
		UNIQUE (chrom, pos, ref, alt)
	)`,
	`CREATE TABLE IF NOT EXISTS genotype_records (
		record VARCHAR PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS samples (
		cypher VARCHAR PRIMARY KEY,
		gender VARCHAR NOT NULL DEFAULT 'U',
		nationality VARCHAR,
		predicted_nationality VARCHAR,
		mt_haplogroup VARCHAR,
		y_haplogroup VARCHAR,
		upload_id VARCHAR
	)`,
	`CREATE SEQUENCE IF NOT EXISTS variant_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS variants (
		id BIGINT PRIMARY KEY DEFAULT nextval('variant_id_seq'),
		sample VARCHAR NOT NULL,
		snp_id BIGINT NOT NULL,
		genotype VARCHAR NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS variants_snp_idx ON variants (snp_id)`,
	`CREATE INDEX IF NOT EXISTS variants_sample_idx ON variants (sample)`,
	`CREATE TABLE IF NOT EXISTS variant_alleles (
		variant_id BIGINT NOT NULL,
		allele VARCHAR NOT NULL,
		PRIMARY KEY (variant_id, allele)
	)`,
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every store operation. The Store's embedded Queries run
// directly against the database; the ones passed to InTx run inside the
// transaction.
type Queries struct {
	q querier
}
