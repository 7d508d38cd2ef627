package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"organ/internal/media"
)

// AddTransferRecord appends one transfer outcome to the history table.
func (s *Store) AddTransferRecord(ctx context.Context, record *TransferRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}
	now := time.Now().UTC()
	record.CreatedAt = now

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transfer_history (
            job_id, source_path, target_path, backend, outcome,
            bytes, duration_ms, error_message, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.JobID,
		record.SourcePath,
		record.TargetPath,
		string(record.Backend),
		string(record.Outcome),
		record.Bytes,
		record.DurationMS,
		nullableString(record.ErrorMessage),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transfer record: %w", err)
	}
	record.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// ListTransferHistory returns recent history entries, newest first. A
// non-positive limit returns everything.
func (s *Store) ListTransferHistory(ctx context.Context, limit int) ([]*TransferRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM transfer_history ORDER BY created_at DESC, id DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list transfer history: %w", err)
	}
	defer rows.Close()

	var records []*TransferRecord
	for rows.Next() {
		record, err := scanTransferRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// PurgeTransferHistory removes entries older than the cutoff and returns the
// count removed.
func (s *Store) PurgeTransferHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM transfer_history WHERE created_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("purge transfer history: %w", err)
	}
	return res.RowsAffected()
}

const historyColumns = "id, job_id, source_path, target_path, backend, outcome, bytes, duration_ms, error_message, created_at"

func scanTransferRecord(scanner interface{ Scan(dest ...any) error }) (*TransferRecord, error) {
	var (
		id           int64
		jobID        sql.NullInt64
		sourcePath   string
		targetPath   string
		backend      string
		outcome      string
		bytes        int64
		durationMS   int64
		errorMessage sql.NullString
		createdRaw   string
	)
	if err := scanner.Scan(&id, &jobID, &sourcePath, &targetPath, &backend, &outcome, &bytes, &durationMS, &errorMessage, &createdRaw); err != nil {
		return nil, err
	}

	record := &TransferRecord{
		ID:           id,
		JobID:        jobID.Int64,
		SourcePath:   sourcePath,
		TargetPath:   targetPath,
		Backend:      media.Backend(backend),
		Outcome:      TransferOutcome(outcome),
		Bytes:        bytes,
		DurationMS:   durationMS,
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	return record, nil
}
