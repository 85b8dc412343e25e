package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolbox/internal/domain"
)

// InsertStagedCard records a card in a waiting area.
func (s *Queries) InsertStagedCard(cardID, targetBoxID int64, area int, at time.Time) error {
	_, err := s.q.Exec(`
		INSERT INTO staged_cards (card_id, target_box_id, area_index, created_at)
		VALUES (?, ?, ?, ?)
	`, cardID, targetBoxID, area, at)
	if err != nil {
		return fmt.Errorf("failed to stage card %d: %w", cardID, err)
	}
	return nil
}

func scanStaged(row interface{ Scan(...any) error }) (*domain.StagedCard, error) {
	var sc domain.StagedCard
	if err := row.Scan(&sc.ID, &sc.CardID, &sc.TargetBoxID, &sc.AreaIndex, &sc.CreatedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

const stagedColumns = `id, card_id, target_box_id, area_index, created_at`

// FindStagedCard returns the staging row of a card, or nil.
func (s *Queries) FindStagedCard(cardID int64) (*domain.StagedCard, error) {
	sc, err := scanStaged(s.q.QueryRow(`SELECT `+stagedColumns+` FROM staged_cards WHERE card_id = ?`, cardID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find staged card %d: %w", cardID, err)
	}
	return sc, nil
}

// GetStagedCards lists staging rows targeting a box, or all when boxID is nil.
func (s *Queries) GetStagedCards(boxID *int64) ([]domain.StagedCard, error) {
	query := `SELECT ` + stagedColumns + ` FROM staged_cards`
	var args []any
	if boxID != nil {
		query += ` WHERE target_box_id = ?`
		args = append(args, *boxID)
	}
	rows, err := s.q.Query(query+` ORDER BY area_index, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get staged cards: %w", err)
	}
	defer rows.Close()

	var staged []domain.StagedCard
	for rows.Next() {
		sc, err := scanStaged(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staged card row: %w", err)
		}
		staged = append(staged, *sc)
	}
	return staged, rows.Err()
}

// DeleteStagedCard removes the staging row of a card.
func (s *Queries) DeleteStagedCard(cardID int64) (bool, error) {
	res, err := s.q.Exec(`DELETE FROM staged_cards WHERE card_id = ?`, cardID)
	if err != nil {
		return false, fmt.Errorf("failed to unstage card %d: %w", cardID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for staged card %d: %w", cardID, err)
	}
	return n > 0, nil
}

// DeleteStagedCards removes staging rows of the given cards.
func (s *Queries) DeleteStagedCards(cardIDs []int64) error {
	if len(cardIDs) == 0 {
		return nil
	}
	marks, args := inClause(cardIDs)
	if _, err := s.q.Exec(`DELETE FROM staged_cards WHERE card_id IN (`+marks+`)`, args...); err != nil {
		return fmt.Errorf("failed to unstage %d cards: %w", len(cardIDs), err)
	}
	return nil
}

// ClearStaged removes staging rows targeting a box, or all when boxID is nil.
func (s *Queries) ClearStaged(boxID *int64) (int, error) {
	query := `DELETE FROM staged_cards`
	var args []any
	if boxID != nil {
		query += ` WHERE target_box_id = ?`
		args = append(args, *boxID)
	}
	res, err := s.q.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear staged cards: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected staged rows: %w", err)
	}
	return int(n), nil
}

// OrphanStagedCardIDs lists staged cards whose card row is gone, which are
// assigned to a box again or whose target box no longer exists.
func (s *Queries) OrphanStagedCardIDs() ([]int64, error) {
	ids, err := s.queryIDs(`
		SELECT s.card_id FROM staged_cards s
		LEFT JOIN cards c ON c.id = s.card_id
		WHERE c.id IS NULL OR c.box_id IS NOT NULL
		   OR NOT EXISTS (SELECT 1 FROM boxes b WHERE b.id = s.target_box_id)
		ORDER BY s.card_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphan staged cards: %w", err)
	}
	return ids, nil
}
