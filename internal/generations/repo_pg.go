package generations

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const generationColumns = `id, request_id, doc_type, mode, format, docx_name, pdf_name, pdf_pages, size_bytes, archive_key, created_at, deleted_at`

// Create inserts a generation.
func (r *PGRepo) Create(ctx context.Context, g Generation) error {
	const query = `
INSERT INTO generations (
    id, request_id, doc_type, mode, format, docx_name, pdf_name, pdf_pages, size_bytes, archive_key, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		g.ID,
		g.RequestID,
		g.DocType,
		g.Mode,
		g.Format,
		g.DocxName,
		g.PDFName,
		g.PDFPages,
		g.SizeBytes,
		g.ArchiveKey,
		g.CreatedAt,
	)
	return err
}

// Get returns a generation by ID, including swept ones. IDs that are not UUIDs cannot exist.
func (r *PGRepo) Get(ctx context.Context, id string) (Generation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Generation{}, ErrNotFound
	}
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = $1 LIMIT 1`
	g, err := scanGeneration(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Generation{}, ErrNotFound
		}
		return Generation{}, err
	}
	return g, nil
}

// List lists generations ordered newest-first.
func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Generation, error) {
	filter = filter.Normalized()
	query := `SELECT ` + generationColumns + `
FROM generations
WHERE ($1 = '' OR doc_type = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, filter.DocType, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// MarkDeletedBefore flags every live generation created before cutoff.
func (r *PGRepo) MarkDeletedBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	const query = `UPDATE generations SET deleted_at = $1 WHERE deleted_at IS NULL AND created_at < $2`
	res, err := r.DB.ExecContext(ctx, query, at, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (Generation, error) {
	var g Generation
	var deletedAt sql.NullTime
	if err := row.Scan(
		&g.ID,
		&g.RequestID,
		&g.DocType,
		&g.Mode,
		&g.Format,
		&g.DocxName,
		&g.PDFName,
		&g.PDFPages,
		&g.SizeBytes,
		&g.ArchiveKey,
		&g.CreatedAt,
		&deletedAt,
	); err != nil {
		return Generation{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		g.DeletedAt = &t
	}
	return g, nil
}

var _ Repo = (*PGRepo)(nil)
