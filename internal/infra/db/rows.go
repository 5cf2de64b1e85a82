// Package db holds the column layout shared by the SQL result stores.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bryanwahyu/automaton-vision/internal/domain/images"
)

// Columns lists image_analysis columns in scan order.
const Columns = `image_id, filename, bucket_name, upload_time, processing_status, objects_detected, is_safe, flags`

// Row is one image_analysis row. Nested values are stored as JSON text.
type Row struct {
	ImageID    string
	Filename   string
	BucketName sql.NullString
	UploadTime time.Time
	Status     string
	Objects    []byte
	IsSafe     bool
	Flags      []byte
}

// FromRecord encodes a record for insertion.
func FromRecord(r *images.AnalysisRecord) (Row, error) {
	if err := r.Validate(); err != nil {
		return Row{}, err
	}
	r.Normalize()

	objects, err := json.Marshal(r.ObjectsDetected)
	if err != nil {
		return Row{}, fmt.Errorf("encode objects_detected: %w", err)
	}
	flags, err := json.Marshal(r.ContentModeration.Flags)
	if err != nil {
		return Row{}, fmt.Errorf("encode flags: %w", err)
	}
	return Row{
		ImageID:    string(r.ImageID),
		Filename:   r.Filename,
		BucketName: sql.NullString{String: r.BucketName, Valid: r.BucketName != ""},
		UploadTime: r.UploadTime.UTC(),
		Status:     string(r.ProcessingStatus),
		Objects:    objects,
		IsSafe:     r.ContentModeration.IsSafe,
		Flags:      flags,
	}, nil
}

// Args returns the insert arguments in Columns order.
func (r Row) Args() []any {
	return []any{r.ImageID, r.Filename, r.BucketName, r.UploadTime, r.Status, string(r.Objects), r.IsSafe, string(r.Flags)}
}

// Dest returns scan destinations in Columns order.
func (r *Row) Dest() []any {
	return []any{&r.ImageID, &r.Filename, &r.BucketName, &r.UploadTime, &r.Status, &r.Objects, &r.IsSafe, &r.Flags}
}

// Record decodes the row, failing on missing required fields or bad JSON.
func (r Row) Record() (*images.AnalysisRecord, error) {
	rec := &images.AnalysisRecord{
		ImageID:          images.ImageID(r.ImageID),
		Filename:         r.Filename,
		BucketName:       r.BucketName.String,
		UploadTime:       r.UploadTime.UTC(),
		ProcessingStatus: images.Status(r.Status),
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if len(r.Objects) > 0 {
		if err := json.Unmarshal(r.Objects, &rec.ObjectsDetected); err != nil {
			return nil, fmt.Errorf("%w: objects_detected: %v", images.ErrInvalidRecord, err)
		}
	}
	var flags []string
	if len(r.Flags) > 0 {
		if err := json.Unmarshal(r.Flags, &flags); err != nil {
			return nil, fmt.Errorf("%w: flags: %v", images.ErrInvalidRecord, err)
		}
	}
	rec.ContentModeration = images.ContentModeration{IsSafe: r.IsSafe, Flags: flags}
	rec.Normalize()
	return rec, nil
}

// Collect drains rows into at most limit records and reports the resume key.
// Callers query limit+1 rows so the extra row signals another page.
func Collect(rows *sql.Rows, limit int) (images.Page, error) {
	defer rows.Close()

	page := images.Page{Records: []*images.AnalysisRecord{}}
	more := false
	for rows.Next() {
		if len(page.Records) == limit {
			more = true
			break
		}
		var row Row
		if err := rows.Scan(row.Dest()...); err != nil {
			return images.Page{}, err
		}
		rec, err := row.Record()
		if err != nil {
			return images.Page{}, err
		}
		page.Records = append(page.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return images.Page{}, err
	}
	if more && len(page.Records) > 0 {
		page.NextKey = page.Records[len(page.Records)-1].ImageID
	}
	return page, nil
}
