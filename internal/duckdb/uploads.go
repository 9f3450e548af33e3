package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is how long an uncommitted upload is kept.
const DefaultRetention = 45 * time.Minute

// UploadStats are the allele counts of an uploaded file.
type UploadStats struct {
	Samples int
	Records int
	Refs    int64
	Alts    int64
	Missing int64
}

// Upload is an uploaded VCF file. A provisional upload is not Committed and
// is purged once it is older than the retention period.
type Upload struct {
	ID        string
	Path      string
	Size      int64
	ModTime   time.Time
	CreatedAt time.Time
	Committed bool
	Stats     UploadStats
}

const uploadColumns = `id, path, size, modified_at, created_at, committed, n_samples, n_records, n_refs, n_alts, n_missing`

// RegisterUpload records a provisional upload of the file at path.
func (q *Queries) RegisterUpload(ctx context.Context, path string) (*Upload, error) {
	fp, err := FingerprintFile(path)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}

	u := &Upload{
		ID:        uuid.New().String(),
		Path:      fp.Path,
		Size:      fp.Size,
		ModTime:   fp.ModTime,
		CreatedAt: time.Now().UTC(),
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO uploads (id, path, size, modified_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Path, u.Size, u.ModTime, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert upload: %w", err)
	}
	return u, nil
}

// GetUpload returns an upload by id. Returns ErrNotFound if absent.
func (q *Queries) GetUpload(ctx context.Context, id string) (*Upload, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id)
	u, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query upload %s: %w", id, err)
	}
	return u, nil
}

// MarkCommitted flags an upload whose variants were merged into the store.
func (q *Queries) MarkCommitted(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, `UPDATE uploads SET committed = true WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("commit upload %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUploadStats stores the allele counts of an upload.
func (q *Queries) SetUploadStats(ctx context.Context, id string, st UploadStats) error {
	_, err := q.q.ExecContext(ctx,
		`UPDATE uploads SET n_samples = ?, n_records = ?, n_refs = ?, n_alts = ?, n_missing = ? WHERE id = ?`,
		st.Samples, st.Records, st.Refs, st.Alts, st.Missing, id)
	if err != nil {
		return fmt.Errorf("update upload %s stats: %w", id, err)
	}
	return nil
}

// ListUploads returns committed uploads and provisional uploads created
// after cutoff, newest first.
func (q *Queries) ListUploads(ctx context.Context, cutoff time.Time) ([]Upload, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+uploadColumns+` FROM uploads
		WHERE committed OR created_at >= ?
		ORDER BY created_at DESC`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// PurgeStaleUploads deletes provisional uploads created before cutoff and
// returns how many were removed.
func (q *Queries) PurgeStaleUploads(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.q.ExecContext(ctx,
		`DELETE FROM uploads WHERE NOT committed AND created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge uploads: %w", err)
	}
	return res.RowsAffected()
}

func scanUpload(row rowScanner) (*Upload, error) {
	var u Upload
	err := row.Scan(&u.ID, &u.Path, &u.Size, &u.ModTime, &u.CreatedAt, &u.Committed,
		&u.Stats.Samples, &u.Stats.Records, &u.Stats.Refs, &u.Stats.Alts, &u.Stats.Missing)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
