package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
)

const templateColumns = `id, name, description, category, is_public, rating, usage_count, body, created_at`

func scanTemplate(row interface{ Scan(dest ...any) error }) (*workflow.Template, error) {
	var (
		t                     workflow.Template
		description, category sql.NullString
		body                  string
		createdAt             int64
	)

	if err := row.Scan(&t.ID, &t.Name, &description, &category, &t.IsPublic, &t.Rating, &t.UsageCount, &body, &createdAt); err != nil {
		return nil, err
	}

	t.Description = description.String
	t.Category = category.String
	t.CreatedAt = decodeTime(createdAt)

	if err := json.Unmarshal([]byte(body), &t.Body); err != nil {
		return nil, fmt.Errorf("decoding template body: %w", err)
	}

	return &t, nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*workflow.Template, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind("SELECT "+templateColumns+" FROM templates WHERE id = ?"), id)

	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("getting template: %w", err)
	}

	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context, filter workflow.TemplateFilter) ([]*workflow.Template, error) {
	var (
		where []string
		args  []any
	)

	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	if filter.PublicOnly {
		where = append(where, "is_public = ?")
		args = append(args, true)
	}

	query := "SELECT " + templateColumns + " FROM templates"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY usage_count DESC, name ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var templates []*workflow.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}

		templates = append(templates, t)
	}

	return templates, rows.Err()
}

func (s *Store) CreateTemplate(ctx context.Context, t *workflow.Template) error {
	body, err := encodeJSON(t.Body)
	if err != nil {
		return fmt.Errorf("encoding template body: %w", err)
	}

	_, err = s.exec(ctx, s.db,
		"INSERT INTO templates ("+templateColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.Name, nullString(t.Description), nullString(t.Category), t.IsPublic, t.Rating, t.UsageCount, body,
		encodeTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting template: %w", err)
	}

	return nil
}

func (s *Store) IncrementTemplateUsage(ctx context.Context, id string) error {
	n, err := s.exec(ctx, s.db, "UPDATE templates SET usage_count = usage_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("incrementing template usage: %w", err)
	}

	if n == 0 {
		return backend.ErrTemplateNotFound
	}

	return nil
}
