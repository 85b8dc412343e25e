package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/knolbox/internal/domain"
)

const cardColumns = `id, front_text, back_text, detail, box_id, bucket, original_card_id, is_copy, is_drawn`

func scanCard(row interface{ Scan(...any) error }) (*domain.Card, error) {
	var c domain.Card
	var detail string
	var boxID, originalID sql.NullInt64
	if err := row.Scan(
		&c.ID,
		&c.Front,
		&c.Back,
		&detail,
		&boxID,
		&c.Bucket,
		&originalID,
		&c.IsCopy,
		&c.IsDrawn,
	); err != nil {
		return nil, err
	}
	if boxID.Valid {
		id := boxID.Int64
		c.BoxID = &id
	}
	if originalID.Valid {
		id := originalID.Int64
		c.OriginalCardID = &id
	}
	d, err := domain.DecodeDetail(detail)
	if err != nil {
		return nil, fmt.Errorf("card %d: %w", c.ID, err)
	}
	c.Detail = d
	return &c, nil
}

func (s *Queries) queryCards(query string, args ...any) ([]domain.Card, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

func (s *Queries) queryIDs(query string, args ...any) ([]int64, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, err
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

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// InsertCard inserts a card and returns its id. ID and IsDrawn are ignored;
// new cards always start undrawn.
func (s *Queries) InsertCard(c domain.Card) (int64, error) {
	detail, err := c.Detail.Encode()
	if err != nil {
		return 0, err
	}
	res, err := s.q.Exec(`
		INSERT INTO cards (front_text, back_text, detail, box_id, bucket, original_card_id, is_copy, is_drawn)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`,
		c.Front,
		c.Back,
		detail,
		nullableID(c.BoxID),
		int(c.Bucket),
		nullableID(c.OriginalCardID),
		boolToInt(c.IsCopy),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for card: %w", err)
	}
	return id, nil
}

// FindCard retrieves a card by id. It returns nil when the card does not exist.
func (s *Queries) FindCard(id int64) (*domain.Card, error) {
	c, err := scanCard(s.q.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card %d: %w", id, err)
	}
	return c, nil
}

// UpdateCard replaces the mutable fields of a card. The copy relationship and
// drawn flag are left alone.
func (s *Queries) UpdateCard(c domain.Card) error {
	detail, err := c.Detail.Encode()
	if err != nil {
		return err
	}
	_, err = s.q.Exec(`
		UPDATE cards
		SET front_text = ?, back_text = ?, detail = ?, box_id = ?, bucket = ?
		WHERE id = ?
	`, c.Front, c.Back, detail, nullableID(c.BoxID), int(c.Bucket), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update card %d: %w", c.ID, err)
	}
	return nil
}

// UpdateCardContent overwrites the text fields of a card only.
func (s *Queries) UpdateCardContent(id int64, front, back string, detail domain.Detail) (bool, error) {
	encoded, err := detail.Encode()
	if err != nil {
		return false, err
	}
	res, err := s.q.Exec(`
		UPDATE cards SET front_text = ?, back_text = ?, detail = ? WHERE id = ?
	`, front, back, encoded, id)
	if err != nil {
		return false, fmt.Errorf("failed to update content of card %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for card %d: %w", id, err)
	}
	return n > 0, nil
}

// SetCardPlacement assigns a card to a box (nil detaches it) and bucket.
func (s *Queries) SetCardPlacement(id int64, boxID *int64, bucket domain.Bucket) error {
	_, err := s.q.Exec(`UPDATE cards SET box_id = ?, bucket = ? WHERE id = ?`, nullableID(boxID), int(bucket), id)
	if err != nil {
		return fmt.Errorf("failed to place card %d: %w", id, err)
	}
	return nil
}

// SetCardDrawn sets the drawn flag of a card.
func (s *Queries) SetCardDrawn(id int64, drawn bool) error {
	_, err := s.q.Exec(`UPDATE cards SET is_drawn = ? WHERE id = ?`, boolToInt(drawn), id)
	if err != nil {
		return fmt.Errorf("failed to set drawn flag on card %d: %w", id, err)
	}
	return nil
}

// ResetDrawnInBox clears the drawn flag of every copy in a box and returns how
// many cards changed.
func (s *Queries) ResetDrawnInBox(boxID int64) (int, error) {
	res, err := s.q.Exec(`
		UPDATE cards SET is_drawn = 0 WHERE box_id = ? AND is_copy = 1 AND is_drawn = 1
	`, boxID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset drawn cards in box %d: %w", boxID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows for box %d: %w", boxID, err)
	}
	return int(n), nil
}

// DeleteCard removes a single card row.
func (s *Queries) DeleteCard(id int64) error {
	_, err := s.q.Exec(`DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	return nil
}

// DeleteCards removes the given card rows.
func (s *Queries) DeleteCards(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	marks, args := inClause(ids)
	if _, err := s.q.Exec(`DELETE FROM cards WHERE id IN (`+marks+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete %d cards: %w", len(ids), err)
	}
	return nil
}

// GetCardsByBox retrieves every card assigned to a box.
func (s *Queries) GetCardsByBox(boxID int64) ([]domain.Card, error) {
	cards, err := s.queryCards(`SELECT `+cardColumns+` FROM cards WHERE box_id = ? ORDER BY id`, boxID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for box %d: %w", boxID, err)
	}
	return cards, nil
}

// GetCardsByBoxBucket retrieves the cards of one bucket of a box.
func (s *Queries) GetCardsByBoxBucket(boxID int64, bucket domain.Bucket) ([]domain.Card, error) {
	cards, err := s.queryCards(`
		SELECT `+cardColumns+` FROM cards WHERE box_id = ? AND bucket = ? ORDER BY id
	`, boxID, int(bucket))
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for box %d bucket %d: %w", boxID, bucket, err)
	}
	return cards, nil
}

// GetCardsByBoxKind retrieves only copies or only originals of a box.
func (s *Queries) GetCardsByBoxKind(boxID int64, copies bool) ([]domain.Card, error) {
	cards, err := s.queryCards(`
		SELECT `+cardColumns+` FROM cards WHERE box_id = ? AND is_copy = ? ORDER BY id
	`, boxID, boolToInt(copies))
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for box %d: %w", boxID, err)
	}
	return cards, nil
}

// CountCardsByBox counts the cards assigned to a box.
func (s *Queries) CountCardsByBox(boxID int64) (int, error) {
	var n int
	if err := s.q.QueryRow(`SELECT COUNT(*) FROM cards WHERE box_id = ?`, boxID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards for box %d: %w", boxID, err)
	}
	return n, nil
}

// CountCardsByBoxBucket counts the cards of one bucket of a box.
func (s *Queries) CountCardsByBoxBucket(boxID int64, bucket domain.Bucket) (int, error) {
	var n int
	err := s.q.QueryRow(`SELECT COUNT(*) FROM cards WHERE box_id = ? AND bucket = ?`, boxID, int(bucket)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count cards for box %d bucket %d: %w", boxID, bucket, err)
	}
	return n, nil
}

// GetOriginalIDsWithoutCopy lists originals that have no live copy.
func (s *Queries) GetOriginalIDsWithoutCopy() ([]int64, error) {
	ids, err := s.queryIDs(`
		SELECT o.id FROM cards o
		WHERE o.is_copy = 0
		  AND NOT EXISTS (SELECT 1 FROM cards c WHERE c.is_copy = 1 AND c.original_card_id = o.id)
		ORDER BY o.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get originals without copy: %w", err)
	}
	return ids, nil
}

// CopyIDs lists copies scoped by original, by box, both, or all when both are nil.
func (s *Queries) CopyIDs(originalID, boxID *int64) ([]int64, error) {
	query := `SELECT id FROM cards WHERE is_copy = 1`
	var args []any
	if originalID != nil {
		query += ` AND original_card_id = ?`
		args = append(args, *originalID)
	}
	if boxID != nil {
		query += ` AND box_id = ?`
		args = append(args, *boxID)
	}
	ids, err := s.queryIDs(query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list copies: %w", err)
	}
	return ids, nil
}

// CopyIDsOfOriginalsInBox lists copies whose original is assigned to boxID.
func (s *Queries) CopyIDsOfOriginalsInBox(boxID int64) ([]int64, error) {
	ids, err := s.queryIDs(`
		SELECT c.id FROM cards c
		JOIN cards o ON o.id = c.original_card_id
		WHERE c.is_copy = 1 AND o.is_copy = 0 AND o.box_id = ?
		ORDER BY c.id
	`, boxID)
	if err != nil {
		return nil, fmt.Errorf("failed to list copies of originals in box %d: %w", boxID, err)
	}
	return ids, nil
}

// CardIDsByBox lists the ids of the cards assigned to a box.
func (s *Queries) CardIDsByBox(boxID int64) ([]int64, error) {
	ids, err := s.queryIDs(`SELECT id FROM cards WHERE box_id = ? ORDER BY id`, boxID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of box %d: %w", boxID, err)
	}
	return ids, nil
}

// UndrawnCopyIDs returns up to limit undrawn, unknown-bucket copies of a box,
// lowest ids first.
func (s *Queries) UndrawnCopyIDs(boxID int64, limit int) ([]int64, error) {
	ids, err := s.queryIDs(`
		SELECT id FROM cards
		WHERE box_id = ? AND bucket = 0 AND is_copy = 1 AND is_drawn = 0
		ORDER BY id LIMIT ?
	`, boxID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list undrawn copies of box %d: %w", boxID, err)
	}
	return ids, nil
}

// OrphanCopies lists copies whose original no longer exists, paired with the
// original id they still reference.
func (s *Queries) OrphanCopies() (map[int64]int64, error) {
	rows, err := s.q.Query(`
		SELECT c.id, c.original_card_id FROM cards c
		WHERE c.is_copy = 1
		  AND NOT EXISTS (SELECT 1 FROM cards o WHERE o.id = c.original_card_id AND o.is_copy = 0)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphan copies: %w", err)
	}
	defer rows.Close()

	orphans := make(map[int64]int64)
	for rows.Next() {
		var id int64
		var original sql.NullInt64
		if err := rows.Scan(&id, &original); err != nil {
			return nil, fmt.Errorf("failed to scan orphan copy row: %w", err)
		}
		orphans[id] = original.Int64
	}
	return orphans, rows.Err()
}
