package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolbox/internal/domain"
)

// InsertBox inserts a box with an id chosen by the caller.
func (s *Queries) InsertBox(id int64, title string) error {
	_, err := s.q.Exec(`INSERT INTO boxes (id, title) VALUES (?, ?)`, id, title)
	if err != nil {
		return fmt.Errorf("failed to insert box %q: %w", title, err)
	}
	return nil
}

// LowestFreeBoxID returns the smallest positive integer not used as a box id.
func (s *Queries) LowestFreeBoxID() (int64, error) {
	var id int64
	err := s.q.QueryRow(`
		SELECT CASE
			WHEN NOT EXISTS (SELECT 1 FROM boxes WHERE id = 1) THEN 1
			ELSE (SELECT MIN(b.id) + 1 FROM boxes b
			      WHERE b.id > 0 AND NOT EXISTS (SELECT 1 FROM boxes n WHERE n.id = b.id + 1))
		END
	`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to find free box id: %w", err)
	}
	return id, nil
}

func scanBox(row interface{ Scan(...any) error }) (*domain.Box, error) {
	var b domain.Box
	var reviewed sql.NullTime
	if err := row.Scan(&b.ID, &b.Title, &reviewed); err != nil {
		return nil, err
	}
	if reviewed.Valid {
		t := reviewed.Time
		b.ReviewedAt = &t
	}
	return &b, nil
}

// FindBox retrieves a box by id. It returns nil when the box does not exist.
func (s *Queries) FindBox(id int64) (*domain.Box, error) {
	b, err := scanBox(s.q.QueryRow(`SELECT id, title, reviewed_at FROM boxes WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Box not found
		}
		return nil, fmt.Errorf("failed to find box %d: %w", id, err)
	}
	return b, nil
}

// FindBoxByTitle retrieves the lowest-id box with the given title.
func (s *Queries) FindBoxByTitle(title string) (*domain.Box, error) {
	b, err := scanBox(s.q.QueryRow(`
		SELECT id, title, reviewed_at FROM boxes WHERE title = ? ORDER BY id LIMIT 1
	`, title))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find box by title %q: %w", title, err)
	}
	return b, nil
}

// GetAllBoxes retrieves all boxes ordered by id.
func (s *Queries) GetAllBoxes() ([]domain.Box, error) {
	rows, err := s.q.Query(`SELECT id, title, reviewed_at FROM boxes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all boxes: %w", err)
	}
	defer rows.Close()

	var boxes []domain.Box
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan box row: %w", err)
		}
		boxes = append(boxes, *b)
	}
	return boxes, rows.Err()
}

// RenameBox sets a new title on a box.
func (s *Queries) RenameBox(id int64, title string) error {
	_, err := s.q.Exec(`UPDATE boxes SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("failed to rename box %d: %w", id, err)
	}
	return nil
}

// TouchBoxReviewed stamps the time a box was last reviewed.
func (s *Queries) TouchBoxReviewed(id int64, at time.Time) error {
	_, err := s.q.Exec(`UPDATE boxes SET reviewed_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update reviewed_at for box %d: %w", id, err)
	}
	return nil
}

// DeleteBox removes the box row only.
func (s *Queries) DeleteBox(id int64) error {
	_, err := s.q.Exec(`DELETE FROM boxes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete box %d: %w", id, err)
	}
	return nil
}
