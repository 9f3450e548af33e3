package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const sampleColumns = `cypher, gender, nationality, predicted_nationality, mt_haplogroup, y_haplogroup, upload_id`

// GetSample returns a sample by name. Returns ErrNotFound if absent.
func (q *Queries) GetSample(ctx context.Context, cypher string) (*Sample, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+sampleColumns+` FROM samples WHERE cypher = ?`, cypher)
	s, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query sample %s: %w", cypher, err)
	}
	return s, nil
}

// GetOrCreateSample returns the named sample, creating it if needed. Only a
// newly created sample is attached to uploadID.
func (q *Queries) GetOrCreateSample(ctx context.Context, cypher, uploadID string) (*Sample, bool, error) {
	s, err := q.GetSample(ctx, cypher)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	_, err = q.q.ExecContext(ctx,
		`INSERT INTO samples (cypher, gender, upload_id) VALUES (?, ?, ?)`,
		cypher, GenderUndefined, toNull(uploadID))
	if err != nil {
		return nil, false, fmt.Errorf("insert sample %s: %w", cypher, err)
	}
	return &Sample{Cypher: cypher, Gender: GenderUndefined, UploadID: uploadID}, true, nil
}

// Samples returns every stored sample ordered by name.
func (q *Queries) Samples(ctx context.Context) ([]Sample, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+sampleColumns+` FROM samples ORDER BY cypher`)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// SampleNames returns every stored sample name ordered by name.
func (q *Queries) SampleNames(ctx context.Context) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT cypher FROM samples ORDER BY cypher`)
	if err != nil {
		return nil, fmt.Errorf("query sample names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan sample name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SetPredictedNationality records the most probable population of a sample.
func (q *Queries) SetPredictedNationality(ctx context.Context, cypher, nationality string) error {
	res, err := q.q.ExecContext(ctx,
		`UPDATE samples SET predicted_nationality = ? WHERE cypher = ?`, toNull(nationality), cypher)
	if err != nil {
		return fmt.Errorf("update sample %s: %w", cypher, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*Sample, error) {
	var s Sample
	var nationality, predicted, mt, y, uploadID sql.NullString
	if err := row.Scan(&s.Cypher, &s.Gender, &nationality, &predicted, &mt, &y, &uploadID); err != nil {
		return nil, err
	}
	s.Nationality = nullString(nationality)
	s.PredictedNationality = nullString(predicted)
	s.MTHaplogroup = nullString(mt)
	s.YHaplogroup = nullString(y)
	s.UploadID = nullString(uploadID)
	return &s, nil
}
