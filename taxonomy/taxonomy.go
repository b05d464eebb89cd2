// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/danielhkuo/civic-consensus/models"
)

var ErrCategoryNotFound = errors.New("category not found")

// Store reads and loads the materialized-path category tree.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetByCode returns the category with the given unique code.
func (s *Store) GetByCode(ctx context.Context, code string) (models.Category, error) {
	var c models.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, parent_id, depth, path
		FROM category
		WHERE code = $1
	`, code).Scan(&c.ID, &c.Code, &c.Name, &c.ParentID, &c.Depth, &c.Path)

	if err == sql.ErrNoRows {
		return models.Category{}, fmt.Errorf("%w: %s", ErrCategoryNotFound, code)
	}
	if err != nil {
		return models.Category{}, fmt.Errorf("failed to query category: %w", err)
	}

	return c, nil
}

// SubtreeIDs resolves a category and all its descendants via the
// materialized-path prefix relation. The result always includes the
// category itself.
func (s *Store) SubtreeIDs(ctx context.Context, path string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM category
		WHERE path = $1 OR path LIKE $1 || '.%'
		ORDER BY id
	`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query subtree: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Create inserts one category under the given parent code (empty for a
// root). Path and depth are derived from the parent, never supplied.
// Used by the taxonomy-load job; categories are immutable afterwards.
func (s *Store) Create(ctx context.Context, code, name, parentCode string) (models.Category, error) {
	if code == "" || strings.Contains(code, ".") {
		return models.Category{}, fmt.Errorf("invalid category code %q", code)
	}

	c := models.Category{Code: code, Name: name, Path: code}

	if parentCode != "" {
		parent, err := s.GetByCode(ctx, parentCode)
		if err != nil {
			return models.Category{}, err
		}
		c.ParentID = &parent.ID
		c.Depth = parent.Depth + 1
		c.Path = parent.Path + "." + code
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO category (code, name, parent_id, depth, path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.Code, c.Name, c.ParentID, c.Depth, c.Path).Scan(&c.ID)
	if err != nil {
		return models.Category{}, fmt.Errorf("failed to insert category: %w", err)
	}

	return c, nil
}

// Load bulk-creates categories from (code, name, parentCode) triples.
// Parents must precede their children in the slice.
func (s *Store) Load(ctx context.Context, entries []LoadEntry) (int, error) {
	created := 0
	for _, e := range entries {
		if _, err := s.Create(ctx, e.Code, e.Name, e.ParentCode); err != nil {
			return created, fmt.Errorf("failed to load category %s: %w", e.Code, err)
		}
		created++
	}
	return created, nil
}

// LoadEntry is one row of a taxonomy load.
type LoadEntry struct {
	Code       string
	Name       string
	ParentCode string
}
