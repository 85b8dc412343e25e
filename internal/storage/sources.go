package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolbox/internal/domain"
)

func scanSource(row interface{ Scan(...any) error }) (*domain.Source, error) {
	var s domain.Source
	var scanned sql.NullTime
	if err := row.Scan(&s.ID, &s.Path, &s.Type, &scanned); err != nil {
		return nil, err
	}
	if scanned.Valid {
		t := scanned.Time
		s.LastScanned = &t
	}
	return &s, nil
}

// InsertSource inserts a new deck source and returns its ID.
func (s *Queries) InsertSource(path, sourceType string) (int64, error) {
	res, err := s.q.Exec(`INSERT INTO sources (path, type) VALUES (?, ?)`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source by its path. It returns nil when absent.
func (s *Queries) FindSourceByPath(path string) (*domain.Source, error) {
	src, err := scanSource(s.q.QueryRow(`
		SELECT id, path, type, last_scanned FROM sources WHERE path = ?
	`, path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Source not found
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return src, nil
}

// GetAllSources retrieves all stored sources.
func (s *Queries) GetAllSources() ([]domain.Source, error) {
	rows, err := s.q.Query(`SELECT id, path, type, last_scanned FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (s *Queries) UpdateSourceLastScanned(sourceID int64, at time.Time) error {
	_, err := s.q.Exec(`UPDATE sources SET last_scanned = ? WHERE id = ?`, at, sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// UpsertImportedCard links an original to its deck entry.
func (s *Queries) UpsertImportedCard(ic domain.ImportedCard) error {
	_, err := s.q.Exec(`
		INSERT INTO imported_cards (card_id, source_id, source_key, content_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			source_id = excluded.source_id,
			source_key = excluded.source_key,
			content_hash = excluded.content_hash
	`, ic.CardID, ic.SourceID, ic.SourceKey, ic.ContentHash)
	if err != nil {
		return fmt.Errorf("failed to link card %d to source %d: %w", ic.CardID, ic.SourceID, err)
	}
	return nil
}

// GetImportedCards retrieves every import link of a source, keyed by source key.
func (s *Queries) GetImportedCards(sourceID int64) (map[string]domain.ImportedCard, error) {
	rows, err := s.q.Query(`
		SELECT card_id, source_id, source_key, content_hash FROM imported_cards WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get imported cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	links := make(map[string]domain.ImportedCard)
	for rows.Next() {
		var ic domain.ImportedCard
		if err := rows.Scan(&ic.CardID, &ic.SourceID, &ic.SourceKey, &ic.ContentHash); err != nil {
			return nil, fmt.Errorf("failed to scan imported card row for source ID %d: %w", sourceID, err)
		}
		links[ic.SourceKey] = ic
	}
	return links, rows.Err()
}

// DeleteImportedCard removes the import link of a card.
func (s *Queries) DeleteImportedCard(cardID int64) error {
	if _, err := s.q.Exec(`DELETE FROM imported_cards WHERE card_id = ?`, cardID); err != nil {
		return fmt.Errorf("failed to unlink card %d: %w", cardID, err)
	}
	return nil
}

// DeleteImportedCards removes the import links of the given cards.
func (s *Queries) DeleteImportedCards(cardIDs []int64) error {
	if len(cardIDs) == 0 {
		return nil
	}
	marks, args := inClause(cardIDs)
	if _, err := s.q.Exec(`DELETE FROM imported_cards WHERE card_id IN (`+marks+`)`, args...); err != nil {
		return fmt.Errorf("failed to unlink %d cards: %w", len(cardIDs), err)
	}
	return nil
}
