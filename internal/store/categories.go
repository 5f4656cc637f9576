package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tidy/internal/faults"
	"tidy/internal/rules"
)

// ListCategories returns all categories with their keywords. Ordering is
// the matcher contract: priority descending, then definition order (id
// ascending); keywords keep their insertion order.
func (s *Store) ListCategories(ctx context.Context) ([]rules.Category, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, priority, target_dir FROM categories ORDER BY priority DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []rules.Category
	index := make(map[int64]int)
	for rows.Next() {
		var c rules.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Priority, &c.TargetDir); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		index[c.ID] = len(categories)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	kwRows, err := s.db.QueryContext(
		ctx,
		`SELECT category_id, keyword FROM keywords ORDER BY category_id, position, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer kwRows.Close()

	for kwRows.Next() {
		var categoryID int64
		var keyword string
		if err := kwRows.Scan(&categoryID, &keyword); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		if i, ok := index[categoryID]; ok {
			categories[i].Keywords = append(categories[i].Keywords, keyword)
		}
	}
	return categories, kwRows.Err()
}

// UpsertCategory inserts or updates a category and atomically replaces its
// keyword list, preserving the given keyword order.
func (s *Store) UpsertCategory(ctx context.Context, category rules.Category) error {
	if strings.TrimSpace(category.Name) == "" {
		return faults.Wrap(faults.ErrValidation, "save category", "name is required", nil)
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin category tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := upsertCategoryTx(ctx, tx, category); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// DeleteCategory removes a category and its keywords by name.
func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return faults.Wrap(faults.ErrNotFound, "delete category", fmt.Sprintf("no category named %q", name), nil)
	}
	return nil
}

// ReplaceAllCategories atomically swaps the whole category set for the
// provided one ("replace" import mode).
func (s *Store) ReplaceAllCategories(ctx context.Context, categories []rules.Category) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin replace tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM keywords`); err != nil {
			return fmt.Errorf("clear keywords: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
			return fmt.Errorf("clear categories: %w", err)
		}
		for _, category := range categories {
			if err := upsertCategoryTx(ctx, tx, category); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// MergeCategories upserts each provided category by name, leaving others
// untouched ("merge" import mode).
func (s *Store) MergeCategories(ctx context.Context, categories []rules.Category) error {
	for _, category := range categories {
		if err := s.UpsertCategory(ctx, category); err != nil {
			return err
		}
	}
	return nil
}

func upsertCategoryTx(ctx context.Context, tx *sql.Tx, category rules.Category) error {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO categories (name, priority, target_dir) VALUES (?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET priority = excluded.priority, target_dir = excluded.target_dir`,
		category.Name,
		category.Priority,
		category.TargetDir,
	); err != nil {
		return fmt.Errorf("upsert category %q: %w", category.Name, err)
	}

	var categoryID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, category.Name).Scan(&categoryID); err != nil {
		return fmt.Errorf("resolve category id for %q: %w", category.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE category_id = ?`, categoryID); err != nil {
		return fmt.Errorf("clear keywords for %q: %w", category.Name, err)
	}
	for position, keyword := range category.Keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO keywords (category_id, keyword, position) VALUES (?, ?, ?)`,
			categoryID,
			keyword,
			position,
		); err != nil {
			return fmt.Errorf("insert keyword %q: %w", keyword, err)
		}
	}
	return nil
}
