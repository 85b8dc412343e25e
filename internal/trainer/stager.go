package trainer

import (
	"fmt"
	"time"

	"github.com/conorfennell/knolbox/internal/domain"
	"github.com/conorfennell/knolbox/internal/storage"
)

// Stager manages the waiting areas in which a card sits between being dragged
// out of a box and being committed to its final box and bucket.
type Stager struct {
	*env
	slots int
}

// Detach takes a card out of its box. It is the first half of a drag into a
// waiting area and is kept apart from Stage so a gesture can write once.
func (s *Stager) Detach(cardID int64) error {
	card, err := s.db.FindCard(cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return fmt.Errorf("%w: %d", ErrCardNotFound, cardID)
	}
	return s.db.SetCardPlacement(cardID, nil, card.Bucket)
}

// Stage parks a detached card in waiting area area of targetBoxID. The card
// must already be out of its box; Stage does not detach it.
func (s *Stager) Stage(cardID, targetBoxID int64, area int) error {
	if area < 0 || area >= s.slots {
		return fmt.Errorf("%w: %d", ErrInvalidArea, area)
	}
	err := s.db.WithTx(func(tx *storage.Tx) error {
		card, err := tx.FindCard(cardID)
		if err != nil {
			return err
		}
		if card == nil {
			return fmt.Errorf("%w: %d", ErrCardNotFound, cardID)
		}
		if card.BoxID != nil {
			return ErrNotDetached
		}
		staged, err := tx.FindStagedCard(cardID)
		if err != nil {
			return err
		}
		if staged != nil {
			return ErrAlreadyStaged
		}
		box, err := tx.FindBox(targetBoxID)
		if err != nil {
			return err
		}
		if box == nil {
			return fmt.Errorf("%w: %d", ErrBoxNotFound, targetBoxID)
		}
		return tx.InsertStagedCard(cardID, targetBoxID, area, s.now())
	})
	if err != nil {
		return err
	}
	s.publish(domain.Event{Kind: domain.EventCardStaged, CardID: cardID, BoxID: targetBoxID})
	return nil
}

// CommitStage takes a card out of its waiting area and places it in finalBoxID
// and finalBucket. A copy goes back into circulation: its latest draw record in
// the final box is re-activated, or a new one is created, and it is flagged
// drawn so record and flag agree.
func (s *Stager) CommitStage(cardID, finalBoxID int64, finalBucket domain.Bucket) error {
	if !finalBucket.Valid() {
		return fmt.Errorf("%w: bucket %d", ErrInvalid, finalBucket)
	}
	var before domain.Card
	err := s.db.WithTx(func(tx *storage.Tx) error {
		staged, err := tx.FindStagedCard(cardID)
		if err != nil {
			return err
		}
		if staged == nil {
			return fmt.Errorf("%w: %d", ErrNotStaged, cardID)
		}
		card, err := tx.FindCard(cardID)
		if err != nil {
			return err
		}
		if card == nil {
			return fmt.Errorf("%w: %d", ErrCardNotFound, cardID)
		}
		box, err := tx.FindBox(finalBoxID)
		if err != nil {
			return err
		}
		if box == nil {
			return fmt.Errorf("%w: %d", ErrBoxNotFound, finalBoxID)
		}
		before = *card

		if _, err := tx.DeleteStagedCard(cardID); err != nil {
			return err
		}
		if err := tx.SetCardPlacement(cardID, &finalBoxID, finalBucket); err != nil {
			return err
		}
		if !card.IsCopy || card.OriginalCardID == nil {
			return nil
		}
		return recirculate(tx, *card.OriginalCardID, cardID, finalBoxID, s.now())
	})
	if err != nil {
		return err
	}
	s.publish(placementEvents(before, &finalBoxID, finalBucket)...)
	return nil
}

// recirculate makes copyID the active draw of its original in boxID, reusing
// the copy's latest record in that box when there is one.
func recirculate(tx *storage.Tx, originalID, copyID, boxID int64, now time.Time) error {
	if _, err := tx.DeactivateDrawsForOriginal(originalID); err != nil {
		return err
	}
	rec, err := tx.LatestDrawForCopy(copyID, boxID)
	if err != nil {
		return err
	}
	if rec != nil {
		if err := tx.ActivateDrawRecord(rec.ID); err != nil {
			return err
		}
	} else if _, err := tx.InsertDrawRecord(originalID, copyID, boxID, now); err != nil {
		return err
	}
	return tx.SetCardDrawn(copyID, true)
}

// ClearAll removes the staging rows targeting boxID, or all of them when boxID
// is nil. The cards themselves are left as they are.
func (s *Stager) ClearAll(boxID *int64) (int, error) {
	n, err := s.db.ClearStaged(boxID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("waiting areas cleared", "count", n)
	}
	return n, nil
}

// StagedIn lists the cards waiting for boxID.
func (s *Stager) StagedIn(boxID int64) ([]domain.StagedCard, error) {
	return s.db.GetStagedCards(&boxID)
}

// Unstage removes the staging row of a single card without touching the card.
func (s *Stager) Unstage(cardID int64) (bool, error) {
	return s.db.DeleteStagedCard(cardID)
}
