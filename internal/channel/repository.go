package channel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/sensorhub/internal/infrastructure/database"
)

// Repository persists channels.
type Repository interface {
	Create(ctx context.Context, c *Channel) error
	GetByID(ctx context.Context, id string) (*Channel, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Channel, error)
	Update(ctx context.Context, c *Channel) error
	// SetKeys overwrites both key hashes if the stored key_version still
	// equals expectedVersion, and returns the new version.
	SetKeys(ctx context.Context, id string, expectedVersion int64, readHash, writeHash string) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a SQLite-backed channel repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const channelColumns = `id, name, description, owner_user_id, read_key_hash, write_key_hash,
	key_version, temperature_threshold, humidity_threshold, created_at, updated_at`

// Create inserts c. ID must be set by the caller.
func (r *SQLiteRepository) Create(ctx context.Context, c *Channel) error {
	now := r.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO channels (`+channelColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.OwnerUserID,
		nullString(c.ReadKeyHash), nullString(c.WriteKeyHash), c.KeyVersion,
		nullFloat(c.TemperatureThreshold), nullFloat(c.HumidityThreshold),
		database.FormatTime(now), database.FormatTime(now),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrKeyCollision
		}
		return fmt.Errorf("inserting channel: %w", err)
	}
	return nil
}

// GetByID returns the channel with id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Channel, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+channelColumns+" FROM channels WHERE id = ?", id)
	c, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListByOwner returns the owner's channels, oldest first.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerUserID string) ([]Channel, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+channelColumns+" FROM channels WHERE owner_user_id = ? ORDER BY created_at ASC, id ASC",
		ownerUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	defer rows.Close()

	channels := []Channel{}
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating channels: %w", err)
	}
	return channels, nil
}

// Update writes the patchable attributes of c.
func (r *SQLiteRepository) Update(ctx context.Context, c *Channel) error {
	now := r.now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE channels SET name = ?, description = ?, temperature_threshold = ?, humidity_threshold = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name, c.Description, nullFloat(c.TemperatureThreshold), nullFloat(c.HumidityThreshold),
		database.FormatTime(now), c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating channel: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrChannelNotFound
	}
	c.UpdatedAt = now
	return nil
}

// SetKeys is a compare-and-swap on key_version.
func (r *SQLiteRepository) SetKeys(ctx context.Context, id string, expectedVersion int64, readHash, writeHash string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE channels SET read_key_hash = ?, write_key_hash = ?, key_version = key_version + 1, updated_at = ?
		 WHERE id = ? AND key_version = ?`,
		readHash, writeHash, database.FormatTime(r.now()), id, expectedVersion,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, ErrKeyCollision
		}
		return 0, fmt.Errorf("updating channel keys: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 { //nolint:errcheck // always succeeds on SQLite
		return expectedVersion + 1, nil
	}

	// Distinguish a missing channel from a lost race.
	var exists int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM channels WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrChannelNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("checking channel: %w", err)
	}
	return 0, ErrVersionConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChannel(s scanner) (*Channel, error) {
	var c Channel
	var readHash, writeHash sql.NullString
	var tempThreshold, humThreshold sql.NullFloat64
	var createdAt, updatedAt string

	if err := s.Scan(&c.ID, &c.Name, &c.Description, &c.OwnerUserID,
		&readHash, &writeHash, &c.KeyVersion, &tempThreshold, &humThreshold,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning channel: %w", err)
	}

	c.ReadKeyHash = readHash.String
	c.WriteKeyHash = writeHash.String
	if tempThreshold.Valid {
		c.TemperatureThreshold = &tempThreshold.Float64
	}
	if humThreshold.Valid {
		c.HumidityThreshold = &humThreshold.Float64
	}
	c.CreatedAt, _ = database.ParseTime(createdAt) //nolint:errcheck // format is controlled
	c.UpdatedAt, _ = database.ParseTime(updatedAt) //nolint:errcheck // format is controlled
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
