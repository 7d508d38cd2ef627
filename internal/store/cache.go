package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"organ/internal/media"
)

// SaveRecognition upserts a recognition result keyed by file fingerprint.
func (s *Store) SaveRecognition(ctx context.Context, entry CachedRecognition) error {
	if entry.Key == "" {
		return errors.New("cache key required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO recognition_cache (cache_key, payload, confidence, user_override, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(cache_key) DO UPDATE SET
             payload = excluded.payload,
             confidence = excluded.confidence,
             user_override = excluded.user_override,
             updated_at = excluded.updated_at`,
		entry.Key,
		entry.Payload,
		string(entry.Confidence),
		boolToInt(entry.UserOverride),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("save recognition: %w", err)
	}
	return nil
}

// GetRecognition looks up a cached recognition entry. Entries older than ttl
// return nil unless they carry a user override, which never expires.
func (s *Store) GetRecognition(ctx context.Context, key string, ttl time.Duration) (*CachedRecognition, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT cache_key, payload, confidence, user_override, created_at, updated_at
         FROM recognition_cache WHERE cache_key = ?`,
		key,
	)

	var (
		payload      string
		confidence   string
		userOverride int
		createdRaw   string
		updatedRaw   string
	)
	entry := &CachedRecognition{}
	err := row.Scan(&entry.Key, &payload, &confidence, &userOverride, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recognition: %w", err)
	}

	entry.Payload = payload
	entry.Confidence = media.Confidence(confidence)
	entry.UserOverride = userOverride != 0
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}

	if !entry.UserOverride && ttl > 0 && time.Since(entry.UpdatedAt) > ttl {
		return nil, nil
	}
	return entry, nil
}

// InvalidateRecognition removes one cached entry.
func (s *Store) InvalidateRecognition(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recognition_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("invalidate recognition: %w", err)
	}
	return nil
}

// PurgeExpiredRecognitions removes non-override entries past the ttl and
// returns the count removed.
func (s *Store) PurgeExpiredRecognitions(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-ttl).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM recognition_cache WHERE user_override = 0 AND updated_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge recognitions: %w", err)
	}
	return res.RowsAffected()
}
