package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/Tag-UCSD/image-tagger/pkg/metrics"
)

const (
	defaultBusyTimeout = 5 * time.Second
	valueKindNumber    = "number"
	valueKindText      = "text"
)

// SQLiteStore is a durable Store. The UNIQUE (image_id, feature_key, source)
// constraint decides races between writers on the same triple.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	now         func() time.Time
}

// OpenSQLite opens or creates the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	s := &SQLiteStore{path: path, busyTimeout: defaultBusyTimeout, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreOpen, err)
	}
	// One connection keeps pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: apply pragma %q: %w", ErrStoreOpen, pragma, execErr)
		}
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStoreOpen, err)
	}
	s.db = db
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append implements FeatureStore.
func (s *SQLiteStore) Append(ctx context.Context, rec model.FeatureRecord) error {
	start := time.Now()
	if err := rec.Validate(); err != nil {
		metrics.RecordFeatureRejected()
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	var kind string
	var num sql.NullFloat64
	var text sql.NullString
	if rec.Value.Kind == model.KindNumber {
		kind = valueKindNumber
		num = sql.NullFloat64{Float64: rec.Value.Number, Valid: true}
	} else {
		kind = valueKindText
		text = sql.NullString{String: rec.Value.Text, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feature_records (
            image_id, feature_key, value_kind, value_num, value_text,
            source, confidence, duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ImageID, rec.Key, kind, num, text,
		rec.Source, rec.Confidence, rec.DurationMS, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isConstraint(err) {
			metrics.RecordFeatureDuplicate(model.SourceKind(rec.Source))
			return fmt.Errorf("%w: image %d key %s source %s", ErrDuplicateKey, rec.ImageID, rec.Key, rec.Source)
		}
		metrics.RecordErrorByComponent("repository", "append")
		return fmt.Errorf("insert feature record: %w", err)
	}
	metrics.RecordFeatureAppended(model.SourceKind(rec.Source))
	metrics.RecordStoreAppendLatency(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

// Query implements FeatureStore.
func (s *SQLiteStore) Query(ctx context.Context, imageID int64, keys ...string) ([]model.FeatureRecord, error) {
	start := time.Now()
	q := `SELECT image_id, feature_key, value_kind, value_num, value_text,
            source, confidence, duration_ms, created_at
        FROM feature_records WHERE image_id = ?`
	args := []any{imageID}
	if len(keys) > 0 {
		q += " AND feature_key IN (" + strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",") + ")"
		for _, k := range keys {
			args = append(args, k)
		}
	}
	q += " ORDER BY seq"

	out, err := s.queryRecords(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	return out, nil
}

// Records implements FeatureStore.
func (s *SQLiteStore) Records(ctx context.Context) ([]model.FeatureRecord, error) {
	return s.queryRecords(ctx, `SELECT image_id, feature_key, value_kind, value_num, value_text,
            source, confidence, duration_ms, created_at
        FROM feature_records ORDER BY seq`)
}

func (s *SQLiteStore) queryRecords(ctx context.Context, q string, args ...any) ([]model.FeatureRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query feature records: %w", err)
	}
	defer rows.Close()

	out := []model.FeatureRecord{}
	for rows.Next() {
		var (
			rec     model.FeatureRecord
			kind    string
			num     sql.NullFloat64
			text    sql.NullString
			created string
		)
		if err := rows.Scan(&rec.ImageID, &rec.Key, &kind, &num, &text,
			&rec.Source, &rec.Confidence, &rec.DurationMS, &created); err != nil {
			return nil, fmt.Errorf("scan feature record: %w", err)
		}
		if kind == valueKindNumber {
			rec.Value = model.Number(num.Float64)
		} else {
			rec.Value = model.Text(text.String)
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature records: %w", err)
	}
	return out, nil
}

// Revision implements FeatureStore.
func (s *SQLiteStore) Revision(ctx context.Context, imageID int64) (uint64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feature_records WHERE image_id = ?`, imageID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count feature records: %w", err)
	}
	return uint64(n), nil
}

// Count implements FeatureStore.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feature_records`).Scan(&n); err != nil {
		metrics.RecordErrorByComponent("repository", "count")
		return 0
	}
	metrics.UpdateStoreRecordsTotal(n)
	return n
}

// RegisterImage implements ImageRegistry.
func (s *SQLiteStore) RegisterImage(ctx context.Context, img model.Image) (model.Image, error) {
	if img.ID < 0 {
		return model.Image{}, fmt.Errorf("%w: negative image id %d", ErrInvalidRecord, img.ID)
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = s.now().UTC()
	}
	var id any
	if img.ID != 0 {
		id = img.ID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO images (id, filename, storage_locator, display_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, img.Filename, img.StorageLocator, img.DisplayURL, img.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isConstraint(err) {
			return model.Image{}, fmt.Errorf("%w: %d", ErrImageExists, img.ID)
		}
		return model.Image{}, fmt.Errorf("insert image: %w", err)
	}
	if img.ID == 0 {
		if img.ID, err = res.LastInsertId(); err != nil {
			return model.Image{}, fmt.Errorf("read image id: %w", err)
		}
	}
	return img, nil
}

// Exists implements ImageRegistry.
func (s *SQLiteStore) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM images WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup image: %w", err)
	}
	return true, nil
}

// Image implements ImageRegistry.
func (s *SQLiteStore) Image(ctx context.Context, id int64) (model.Image, error) {
	var (
		img     model.Image
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, storage_locator, display_url, created_at FROM images WHERE id = ?`, id,
	).Scan(&img.ID, &img.Filename, &img.StorageLocator, &img.DisplayURL, &created)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Image{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Image{}, fmt.Errorf("lookup image: %w", err)
	}
	if img.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return model.Image{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return img, nil
}

// ImageIDs implements ImageRegistry.
func (s *SQLiteStore) ImageIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM images ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan image id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	metrics.UpdateStoreImagesTotal(len(ids))
	return ids, nil
}

// isConstraint reports whether err is a SQLite constraint violation.
func isConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
