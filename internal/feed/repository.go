package feed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
)

// ListParams is a validated, storage-level page request.
type ListParams struct {
	SortColumn string
	Descending bool
	Offset     int
	Limit      int
}

// Repository persists feeds.
type Repository interface {
	Insert(ctx context.Context, f *Feed) error
	GetByID(ctx context.Context, id string) (*Feed, error)
	List(ctx context.Context, channelID string, p ListParams) ([]Feed, int, error)
	Latest(ctx context.Context, channelID string) (*Feed, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a SQLite-backed feed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const feedColumns = `id, channel_id, seq, temperature, humidity, temperature_threshold,
	humidity_threshold, created_at, updated_at`

// Insert stores f and fills ID, Seq and timestamps. The sequence number is
// allocated in the same transaction as the insert, so a reading either
// exists with its number or not at all.
func (r *SQLiteRepository) Insert(ctx context.Context, f *Feed) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating feed id: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM feeds WHERE channel_id = ?", f.ChannelID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("allocating sequence: %w", err)
	}

	now := r.now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO feeds (`+feedColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), f.ChannelID, seq, f.Temperature, f.Humidity,
		f.TemperatureThreshold, f.HumidityThreshold,
		database.FormatTime(now), database.FormatTime(now),
	); err != nil {
		return fmt.Errorf("inserting feed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing feed: %w", err)
	}

	f.ID, f.Seq = id.String(), seq
	f.CreatedAt, f.UpdatedAt = now, now
	return nil
}

// GetByID returns the feed with id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Feed, error) {
	f, err := scanFeed(r.db.QueryRowContext(ctx, "SELECT "+feedColumns+" FROM feeds WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeedNotFound
	}
	return f, err
}

// Latest returns the most recent feed of a channel.
func (r *SQLiteRepository) Latest(ctx context.Context, channelID string) (*Feed, error) {
	f, err := scanFeed(r.db.QueryRowContext(ctx,
		"SELECT "+feedColumns+" FROM feeds WHERE channel_id = ? ORDER BY seq DESC LIMIT 1", channelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeedNotFound
	}
	return f, err
}

// List returns one page of a channel's feeds and the channel's total count.
// p.SortColumn must come from the sortColumns whitelist; ties break on id
// ascending.
func (r *SQLiteRepository) List(ctx context.Context, channelID string, p ListParams) ([]Feed, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM feeds WHERE channel_id = ?", channelID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting feeds: %w", err)
	}

	direction := "ASC"
	if p.Descending {
		direction = "DESC"
	}
	query := fmt.Sprintf(
		"SELECT %s FROM feeds WHERE channel_id = ? ORDER BY %s %s, id ASC LIMIT ? OFFSET ?",
		feedColumns, p.SortColumn, direction,
	)

	rows, err := r.db.QueryContext(ctx, query, channelID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing feeds: %w", err)
	}
	defer rows.Close()

	feeds := []Feed{}
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, 0, err
		}
		feeds = append(feeds, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating feeds: %w", err)
	}
	return feeds, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFeed(s scanner) (*Feed, error) {
	var f Feed
	var createdAt, updatedAt string
	var tempThreshold, humThreshold sql.NullFloat64
	if err := s.Scan(&f.ID, &f.ChannelID, &f.Seq, &f.Temperature, &f.Humidity,
		&tempThreshold, &humThreshold, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning feed: %w", err)
	}
	f.TemperatureThreshold = nullableFloat(tempThreshold)
	f.HumidityThreshold = nullableFloat(humThreshold)
	f.CreatedAt, _ = database.ParseTime(createdAt) //nolint:errcheck // format is controlled
	f.UpdatedAt, _ = database.ParseTime(updatedAt) //nolint:errcheck // format is controlled
	return &f, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
