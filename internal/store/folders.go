package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"organ/internal/media"
)

// AddMonitoredFolder registers a watched source directory. The (path,
// backend) pair is unique; re-adding an existing pair fails.
func (s *Store) AddMonitoredFolder(ctx context.Context, folder *MonitoredFolder) (*MonitoredFolder, error) {
	if folder == nil {
		return nil, errors.New("folder is nil")
	}
	if strings.TrimSpace(folder.Path) == "" {
		return nil, errors.New("folder path required")
	}
	now := time.Now().UTC()
	folder.CreatedAt = now

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO monitored_folders (path, backend, media_type, recursive, enabled, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		folder.Path,
		string(folder.Backend),
		string(folder.MediaType),
		boolToInt(folder.Recursive),
		boolToInt(folder.Enabled),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert monitored folder: %w", err)
	}
	folder.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return folder, nil
}

// ListMonitoredFolders returns watched directories, optionally only enabled
// ones, ordered by creation time.
func (s *Store) ListMonitoredFolders(ctx context.Context, enabledOnly bool) ([]*MonitoredFolder, error) {
	query := `SELECT ` + folderColumns + ` FROM monitored_folders`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list monitored folders: %w", err)
	}
	defer rows.Close()

	var folders []*MonitoredFolder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}

// TouchMonitoredFolder records the time of the last completed scan.
func (s *Store) TouchMonitoredFolder(ctx context.Context, id int64, scannedAt time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE monitored_folders SET last_scan_at = ? WHERE id = ?`,
		scannedAt.UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("touch monitored folder: %w", err)
	}
	return nil
}

// SetMonitoredFolderEnabled toggles a watched directory.
func (s *Store) SetMonitoredFolderEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE monitored_folders SET enabled = ? WHERE id = ?`,
		boolToInt(enabled),
		id,
	)
	if err != nil {
		return fmt.Errorf("toggle monitored folder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("monitored folder %d not found", id)
	}
	return nil
}

// RemoveMonitoredFolder deletes a watched directory by identifier.
func (s *Store) RemoveMonitoredFolder(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitored_folders WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete monitored folder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const folderColumns = "id, path, backend, media_type, recursive, enabled, last_scan_at, created_at"

func scanFolder(scanner interface{ Scan(dest ...any) error }) (*MonitoredFolder, error) {
	var (
		id          int64
		path        string
		backend     string
		mediaType   string
		recursive   int
		enabled     int
		lastScanRaw sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(&id, &path, &backend, &mediaType, &recursive, &enabled, &lastScanRaw, &createdRaw); err != nil {
		return nil, err
	}

	folder := &MonitoredFolder{
		ID:        id,
		Path:      path,
		Backend:   media.Backend(backend),
		MediaType: media.Type(mediaType),
		Recursive: recursive != 0,
		Enabled:   enabled != 0,
	}
	if lastScanRaw.Valid {
		if scanned, err := parseTimeString(lastScanRaw.String); err == nil {
			folder.LastScanAt = &scanned
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		folder.CreatedAt = created
	}
	return folder, nil
}
