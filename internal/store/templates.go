package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SaveNamingTemplate inserts or updates a custom naming template by name.
func (s *Store) SaveNamingTemplate(ctx context.Context, template *NamingTemplate) (*NamingTemplate, error) {
	if template == nil {
		return nil, errors.New("template is nil")
	}
	if strings.TrimSpace(template.Name) == "" {
		return nil, errors.New("template name required")
	}
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO naming_templates (
            id, name, movie_folder, movie_file, tv_folder, season_folder,
            episode_file, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            movie_folder = excluded.movie_folder,
            movie_file = excluded.movie_file,
            tv_folder = excluded.tv_folder,
            season_folder = excluded.season_folder,
            episode_file = excluded.episode_file,
            updated_at = excluded.updated_at`,
		template.ID,
		template.Name,
		template.MovieFolder,
		template.MovieFile,
		template.TVFolder,
		template.SeasonFolder,
		template.EpisodeFile,
		template.CreatedAt.Format(time.RFC3339Nano),
		template.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("save naming template: %w", err)
	}
	return template, nil
}

// GetNamingTemplate fetches a custom template by name. Returns nil when no
// template exists.
func (s *Store) GetNamingTemplate(ctx context.Context, name string) (*NamingTemplate, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+templateColumns+` FROM naming_templates WHERE name = ?`,
		name,
	)
	template, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get naming template: %w", err)
	}
	return template, nil
}

// ListNamingTemplates returns custom templates ordered by name.
func (s *Store) ListNamingTemplates(ctx context.Context) ([]*NamingTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM naming_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list naming templates: %w", err)
	}
	defer rows.Close()

	var templates []*NamingTemplate
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}

// DeleteNamingTemplate removes a custom template by name.
func (s *Store) DeleteNamingTemplate(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM naming_templates WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete naming template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const templateColumns = "id, name, movie_folder, movie_file, tv_folder, season_folder, episode_file, created_at, updated_at"

func scanTemplate(scanner interface{ Scan(dest ...any) error }) (*NamingTemplate, error) {
	var (
		template   NamingTemplate
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&template.ID,
		&template.Name,
		&template.MovieFolder,
		&template.MovieFile,
		&template.TVFolder,
		&template.SeasonFolder,
		&template.EpisodeFile,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		template.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		template.UpdatedAt = updated
	}
	return &template, nil
}

// ListVersionTags returns the configured version decorations in display
// order. The table ships with seeded defaults.
func (s *Store) ListVersionTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM version_tags ORDER BY position, tag`)
	if err != nil {
		return nil, fmt.Errorf("list version tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// AddVersionTag appends a custom version decoration after the existing ones.
func (s *Store) AddVersionTag(ctx context.Context, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.New("tag required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO version_tags (tag, position)
         VALUES (?, COALESCE((SELECT MAX(position) FROM version_tags), 0) + 1)
         ON CONFLICT(tag) DO NOTHING`,
		tag,
	)
	if err != nil {
		return fmt.Errorf("add version tag: %w", err)
	}
	return nil
}

// RemoveVersionTag deletes a version decoration.
func (s *Store) RemoveVersionTag(ctx context.Context, tag string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM version_tags WHERE tag = ?`, tag)
	if err != nil {
		return false, fmt.Errorf("remove version tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
