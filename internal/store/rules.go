package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"organ/internal/media"
)

// CreateRule inserts a routing rule. A missing ID gets a generated UUID;
// empty filters default to the "all" wildcard.
func (s *Store) CreateRule(ctx context.Context, rule *Rule) (*Rule, error) {
	if rule == nil {
		return nil, errors.New("rule is nil")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return nil, errors.New("rule name required")
	}
	if strings.TrimSpace(rule.TargetPath) == "" {
		return nil, errors.New("rule target path required")
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.MediaType == "" {
		rule.MediaType = media.TypeAll
	}
	if rule.StorageType == "" {
		rule.StorageType = media.BackendAll
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	conditionsJSON, err := marshalConditions(rule.Conditions)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO rules (
            id, name, priority, media_type, storage_type, conditions_json,
            target_path, naming_template, enabled, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.Name,
		rule.Priority,
		string(rule.MediaType),
		string(rule.StorageType),
		nullableString(conditionsJSON),
		rule.TargetPath,
		nullableString(rule.NamingTemplate),
		boolToInt(rule.Enabled),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}
	return rule, nil
}

// GetRule fetches a rule by identifier. Returns nil when no rule exists.
func (s *Store) GetRule(ctx context.Context, id string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// ListRules returns rules ordered by priority, then creation time. Lower
// priority values sort first and win matching.
func (s *Store) ListRules(ctx context.Context, enabledOnly bool) ([]*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY priority, created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// RulesFor returns enabled rules whose filters accept the given media type
// and backend, in priority order.
func (s *Store) RulesFor(ctx context.Context, mediaType media.Type, backend media.Backend) ([]*Rule, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+ruleColumns+` FROM rules
         WHERE enabled = 1
           AND media_type IN (?, 'all')
           AND storage_type IN (?, 'all')
         ORDER BY priority, created_at`,
		string(mediaType),
		string(backend),
	)
	if err != nil {
		return nil, fmt.Errorf("rules for: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// UpdateRule persists changes to an existing rule.
func (s *Store) UpdateRule(ctx context.Context, rule *Rule) error {
	if rule == nil {
		return errors.New("rule is nil")
	}
	rule.UpdatedAt = time.Now().UTC()

	conditionsJSON, err := marshalConditions(rule.Conditions)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE rules
         SET name = ?, priority = ?, media_type = ?, storage_type = ?,
             conditions_json = ?, target_path = ?, naming_template = ?,
             enabled = ?, updated_at = ?
         WHERE id = ?`,
		rule.Name,
		rule.Priority,
		string(rule.MediaType),
		string(rule.StorageType),
		nullableString(conditionsJSON),
		rule.TargetPath,
		nullableString(rule.NamingTemplate),
		boolToInt(rule.Enabled),
		rule.UpdatedAt.Format(time.RFC3339Nano),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %s not found", rule.ID)
	}
	return nil
}

// DeleteRule removes a rule by identifier.
func (s *Store) DeleteRule(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetRuleEnabled toggles a rule without touching other fields.
func (s *Store) SetRuleEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE rules SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("toggle rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %s not found", id)
	}
	return nil
}

const ruleColumns = "id, name, priority, media_type, storage_type, conditions_json, target_path, naming_template, enabled, created_at, updated_at"

func marshalConditions(conditions []RuleCondition) (string, error) {
	if len(conditions) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(conditions)
	if err != nil {
		return "", fmt.Errorf("marshal conditions: %w", err)
	}
	return string(encoded), nil
}

func collectRules(rows *sql.Rows) ([]*Rule, error) {
	var rules []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(scanner interface{ Scan(dest ...any) error }) (*Rule, error) {
	var (
		id             string
		name           string
		priority       int
		mediaType      string
		storageType    string
		conditionsJSON sql.NullString
		targetPath     string
		namingTemplate sql.NullString
		enabled        int
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&id,
		&name,
		&priority,
		&mediaType,
		&storageType,
		&conditionsJSON,
		&targetPath,
		&namingTemplate,
		&enabled,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rule := &Rule{
		ID:             id,
		Name:           name,
		Priority:       priority,
		MediaType:      media.Type(mediaType),
		StorageType:    media.Backend(storageType),
		TargetPath:     targetPath,
		NamingTemplate: namingTemplate.String,
		Enabled:        enabled != 0,
	}
	if conditionsJSON.Valid && conditionsJSON.String != "" {
		if err := json.Unmarshal([]byte(conditionsJSON.String), &rule.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal rule conditions: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rule.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rule.UpdatedAt = updated
	}
	return rule, nil
}
