package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolbox/internal/domain"
)

// InsertDrawRecord inserts an active draw record.
func (s *Queries) InsertDrawRecord(originalID, copyID, boxID int64, at time.Time) (int64, error) {
	res, err := s.q.Exec(`
		INSERT INTO draw_records (original_card_id, copy_card_id, box_id, drawn_at, is_active)
		VALUES (?, ?, ?, ?, 1)
	`, originalID, copyID, boxID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to insert draw record for original %d: %w", originalID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for draw record: %w", err)
	}
	return id, nil
}

// DeactivateDrawsForOriginal deactivates the active draw record of an original.
func (s *Queries) DeactivateDrawsForOriginal(originalID int64) (int, error) {
	return s.deactivate(`original_card_id = ?`, originalID)
}

// DeactivateDrawsForCopy deactivates any active draw record pointing at a copy.
func (s *Queries) DeactivateDrawsForCopy(copyID int64) (int, error) {
	return s.deactivate(`copy_card_id = ?`, copyID)
}

// DeactivateDrawsForCopies deactivates the active draw records of the given
// copies and returns how many were active.
func (s *Queries) DeactivateDrawsForCopies(copyIDs []int64) (int, error) {
	if len(copyIDs) == 0 {
		return 0, nil
	}
	marks, args := inClause(copyIDs)
	res, err := s.q.Exec(`UPDATE draw_records SET is_active = 0 WHERE is_active = 1 AND copy_card_id IN (`+marks+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate draw records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected draw records: %w", err)
	}
	return int(n), nil
}

// DeactivateDrawsForBox deactivates every active draw record scoped to a box.
func (s *Queries) DeactivateDrawsForBox(boxID int64) (int, error) {
	return s.deactivate(`box_id = ?`, boxID)
}

func (s *Queries) deactivate(where string, arg int64) (int, error) {
	res, err := s.q.Exec(`UPDATE draw_records SET is_active = 0 WHERE is_active = 1 AND `+where, arg)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate draw records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected draw records: %w", err)
	}
	return int(n), nil
}

// ActivateDrawRecord marks a historical record active again.
func (s *Queries) ActivateDrawRecord(id int64) error {
	if _, err := s.q.Exec(`UPDATE draw_records SET is_active = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to activate draw record %d: %w", id, err)
	}
	return nil
}

func scanDrawRecord(row interface{ Scan(...any) error }) (*domain.DrawRecord, error) {
	var r domain.DrawRecord
	if err := row.Scan(&r.ID, &r.OriginalCardID, &r.CopyCardID, &r.BoxID, &r.DrawnAt, &r.IsActive); err != nil {
		return nil, err
	}
	return &r, nil
}

const drawColumns = `id, original_card_id, copy_card_id, box_id, drawn_at, is_active`

// ActiveDrawForOriginal returns the active draw record of an original, or nil.
func (s *Queries) ActiveDrawForOriginal(originalID int64) (*domain.DrawRecord, error) {
	r, err := scanDrawRecord(s.q.QueryRow(`
		SELECT `+drawColumns+` FROM draw_records
		WHERE original_card_id = ? AND is_active = 1
		ORDER BY id DESC LIMIT 1
	`, originalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active draw for original %d: %w", originalID, err)
	}
	return r, nil
}

// LatestDrawForCopy returns the most recent draw record of a copy in a box,
// active or not, or nil.
func (s *Queries) LatestDrawForCopy(copyID, boxID int64) (*domain.DrawRecord, error) {
	r, err := scanDrawRecord(s.q.QueryRow(`
		SELECT `+drawColumns+` FROM draw_records
		WHERE copy_card_id = ? AND box_id = ?
		ORDER BY id DESC LIMIT 1
	`, copyID, boxID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find draw for copy %d: %w", copyID, err)
	}
	return r, nil
}

// CountActiveDraws counts active records of an original.
func (s *Queries) CountActiveDraws(originalID int64) (int, error) {
	var n int
	err := s.q.QueryRow(`
		SELECT COUNT(*) FROM draw_records WHERE original_card_id = ? AND is_active = 1
	`, originalID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active draws for original %d: %w", originalID, err)
	}
	return n, nil
}

// DeleteDrawsForCopies removes every draw record of the given copies.
func (s *Queries) DeleteDrawsForCopies(copyIDs []int64) error {
	if len(copyIDs) == 0 {
		return nil
	}
	marks, args := inClause(copyIDs)
	if _, err := s.q.Exec(`DELETE FROM draw_records WHERE copy_card_id IN (`+marks+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete draw records: %w", err)
	}
	return nil
}

// DeleteDrawsForOriginal removes every draw record of an original.
func (s *Queries) DeleteDrawsForOriginal(originalID int64) error {
	if _, err := s.q.Exec(`DELETE FROM draw_records WHERE original_card_id = ?`, originalID); err != nil {
		return fmt.Errorf("failed to delete draw records of original %d: %w", originalID, err)
	}
	return nil
}
