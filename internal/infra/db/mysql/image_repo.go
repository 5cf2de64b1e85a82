package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	driver "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/infra/db"
)

const errDuplicateEntry = 1062

type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Insert adds a new record; an existing image_id is never overwritten.
func (r *ImageRepository) Insert(ctx context.Context, rec *images.AnalysisRecord) error {
	row, err := db.FromRecord(rec)
	if err != nil {
		return err
	}
	const q = `INSERT INTO image_analysis (` + db.Columns + `) VALUES (?,?,?,?,?,?,?,?)`
	if _, err := r.db.ExecContext(ctx, q, row.Args()...); err != nil {
		var me *driver.MySQLError
		if errors.As(err, &me) && me.Number == errDuplicateEntry {
			return images.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *ImageRepository) Get(ctx context.Context, id images.ImageID) (*images.AnalysisRecord, error) {
	const q = `SELECT ` + db.Columns + ` FROM image_analysis WHERE image_id=? LIMIT 1`
	var row db.Row
	if err := r.db.QueryRowContext(ctx, q, string(id)).Scan(row.Dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		where = append(where, "image_id > ?")
		args = append(args, string(f.StartAfter))
	}
	if f.Status != "" {
		where = append(where, "processing_status = ?")
		args = append(args, string(f.Status))
	}

	q := `SELECT ` + db.Columns + ` FROM image_analysis`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY image_id LIMIT ?"
	args = append(args, f.Limit+1)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return images.Page{}, err
	}
	return db.Collect(rows, f.Limit)
}

// Check pings the database for health reporting.
func (r *ImageRepository) Check(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
