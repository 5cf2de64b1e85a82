package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/infra/db"
)

const uniqueViolation = pq.ErrorCode("23505")

type ImageRepository struct{ db *sql.DB }

func NewImageRepository(db *sql.DB) *ImageRepository { return &ImageRepository{db: db} }

// Insert adds a new record; ON CONFLICT DO NOTHING keeps the stored one intact.
func (r *ImageRepository) Insert(ctx context.Context, rec *images.AnalysisRecord) error {
	row, err := db.FromRecord(rec)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO image_analysis (` + db.Columns + `)
VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,$8::jsonb)
ON CONFLICT (image_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, row.Args()...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return images.ErrAlreadyExists
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return images.ErrAlreadyExists
	}
	return nil
}

func (r *ImageRepository) Get(ctx context.Context, id images.ImageID) (*images.AnalysisRecord, error) {
	const q = `SELECT ` + db.Columns + ` FROM image_analysis WHERE image_id = $1`
	var row db.Row
	if err := r.db.QueryRowContext(ctx, q, string(id)).Scan(row.Dest()...); err != nil {
		if err == sql.ErrNoRows {
			return nil, images.ErrNotFound
		}
		return nil, err
	}
	return row.Record()
}

// List pages in image_id order, resuming after f.StartAfter.
func (r *ImageRepository) List(ctx context.Context, f images.ListFilter) (images.Page, error) {
	var (
		where []string
		args  []any
	)
	if f.StartAfter != "" {
		args = append(args, string(f.StartAfter))
		where = append(where, fmt.Sprintf("image_id > $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("processing_status = $%d", len(args)))
	}

	q := `SELECT ` + db.Columns + ` FROM image_analysis`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit+1)
	q += fmt.Sprintf(" ORDER BY image_id LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return images.Page{}, err
	}
	return db.Collect(rows, f.Limit)
}

func (r *ImageRepository) Check(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
