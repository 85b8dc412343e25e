package trainer

import (
	"fmt"
	"time"

	"github.com/conorfennell/knolbox/internal/domain"
	"github.com/conorfennell/knolbox/internal/leitner"
	"github.com/conorfennell/knolbox/internal/storage"
)

// Draws is the drawn-card state machine. Per original a copy is either
// available, drawn (with one active draw record) or deleted.
type Draws struct {
	*env
	registry *Registry
	window   int
	intn     func(int) int
}

// DrawRandomUndrawn picks a random undrawn copy from the unknown bucket of a
// box, or nil when there is none. Only the first window candidates (by id)
// take part, so draws over very large boxes are not uniform.
func (d *Draws) DrawRandomUndrawn(boxID int64) (*domain.Card, error) {
	ids, err := d.db.UndrawnCopyIDs(boxID, d.window)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return d.db.FindCard(ids[d.intn(len(ids))])
}

// MarkDrawn makes copyID the active draw for originalID in boxID. The previous
// active record of the original is deactivated first. Either every step is
// applied or none is.
func (d *Draws) MarkDrawn(originalID, copyID, boxID int64) error {
	err := d.db.WithTx(func(tx *storage.Tx) error {
		card, err := tx.FindCard(copyID)
		if err != nil {
			return err
		}
		if card == nil {
			return fmt.Errorf("%w: %d", ErrCardNotFound, copyID)
		}
		if !card.IsCopy || card.OriginalCardID == nil || *card.OriginalCardID != originalID {
			return fmt.Errorf("%w: copy %d, original %d", ErrNotCopyOf, copyID, originalID)
		}
		if _, err := tx.DeactivateDrawsForOriginal(originalID); err != nil {
			return err
		}
		if _, err := tx.InsertDrawRecord(originalID, copyID, boxID, d.now()); err != nil {
			return err
		}
		return tx.SetCardDrawn(copyID, true)
	})
	if err != nil {
		d.log.Warn("mark drawn failed", "original_id", originalID, "copy_id", copyID, "error", err)
		return err
	}
	d.publish(domain.Event{Kind: domain.EventCopyDrawn, CardID: copyID, OriginalID: originalID, BoxID: boxID})
	return nil
}

// ReturnToAvailable deactivates the active draw record of an original without
// touching the copy itself. It reports whether a record was active.
func (d *Draws) ReturnToAvailable(originalID int64) (bool, error) {
	n, err := d.db.DeactivateDrawsForOriginal(originalID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResetBox puts every drawn copy of a box back into circulation and stamps
// the box as reviewed. It returns the number of cards reset.
func (d *Draws) ResetBox(boxID int64) (int, error) {
	var n int
	err := d.db.WithTx(func(tx *storage.Tx) error {
		var err error
		n, err = tx.ResetDrawnInBox(boxID)
		if err != nil {
			return err
		}
		if _, err := tx.DeactivateDrawsForBox(boxID); err != nil {
			return err
		}
		return tx.TouchBoxReviewed(boxID, d.now())
	})
	if err != nil {
		return 0, err
	}
	d.log.Info("box reset", "box_id", boxID, "cards_reset", n)
	d.publish(domain.Event{Kind: domain.EventBoxReset, BoxID: boxID, Count: n})
	return n, nil
}

// IsDrawn reports the drawn flag of a card. Unknown cards are not drawn.
func (d *Draws) IsDrawn(cardID int64) (bool, error) {
	card, err := d.db.FindCard(cardID)
	if err != nil || card == nil {
		return false, err
	}
	return card.IsDrawn, nil
}

// CurrentActiveCopyFor returns the copy currently drawn for an original.
func (d *Draws) CurrentActiveCopyFor(originalID int64) (int64, bool, error) {
	rec, err := d.db.ActiveDrawForOriginal(originalID)
	if err != nil || rec == nil {
		return 0, false, err
	}
	return rec.CopyCardID, true, nil
}

// Answer grades a copy. A known copy moves to the learned bucket of its box;
// an unknown one goes back to the first box of the ladder. Either way the
// copy is no longer drawn.
func (d *Draws) Answer(copyID int64, known bool) error {
	card, err := d.db.FindCard(copyID)
	if err != nil {
		return err
	}
	if card == nil {
		return fmt.Errorf("%w: %d", ErrCardNotFound, copyID)
	}
	if !card.IsCopy {
		return fmt.Errorf("%w: %d", ErrNotACopy, copyID)
	}

	target := card.BoxID
	bucket := domain.BucketLearned
	if !known {
		first, err := d.registry.GetOrCreateSystemBox(leitner.First())
		if err != nil {
			return err
		}
		target = &first
		bucket = domain.BucketUnknown
	}

	err = d.db.WithTx(func(tx *storage.Tx) error {
		if _, err := tx.DeactivateDrawsForCopy(copyID); err != nil {
			return err
		}
		if err := tx.SetCardDrawn(copyID, false); err != nil {
			return err
		}
		return tx.SetCardPlacement(copyID, target, bucket)
	})
	if err != nil {
		return err
	}
	d.publish(placementEvents(*card, target, bucket)...)
	return nil
}

// Advance moves the learned copies of a system box to the unknown bucket of
// the next box on the ladder. Copies in the last box stay where they are.
// It returns the number of copies moved.
func (d *Draws) Advance(boxID int64) (int, error) {
	box, err := d.registry.Box(boxID)
	if err != nil {
		return 0, err
	}
	if box == nil {
		return 0, fmt.Errorf("%w: %d", ErrBoxNotFound, boxID)
	}
	if !leitner.IsProtected(box.Title) {
		return 0, fmt.Errorf("%w: %q", ErrNotSystemBox, box.Title)
	}
	nextTitle, ok := leitner.Next(box.Title)
	if !ok {
		return 0, nil
	}
	next, err := d.registry.GetOrCreateSystemBox(nextTitle)
	if err != nil {
		return 0, err
	}

	var events []domain.Event
	err = d.db.WithTx(func(tx *storage.Tx) error {
		learned, err := tx.GetCardsByBoxBucket(boxID, domain.BucketLearned)
		if err != nil {
			return err
		}
		for _, c := range learned {
			if !c.IsCopy {
				continue
			}
			if _, err := tx.DeactivateDrawsForCopy(c.ID); err != nil {
				return err
			}
			if err := tx.SetCardDrawn(c.ID, false); err != nil {
				return err
			}
			if err := tx.SetCardPlacement(c.ID, &next, domain.BucketUnknown); err != nil {
				return err
			}
			events = append(events, domain.Event{Kind: domain.EventCardMoved, CardID: c.ID, BoxID: next})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	d.log.Info("box advanced", "box_id", boxID, "next_box_id", next, "moved", len(events))
	d.publish(events...)
	return len(events), nil
}

// DueBoxes lists the system boxes due for review at now.
func (d *Draws) DueBoxes(now time.Time) ([]domain.Box, error) {
	boxes, err := d.registry.Boxes()
	if err != nil {
		return nil, err
	}
	var due []domain.Box
	for _, b := range boxes {
		if leitner.Due(b.Title, b.ReviewedAt, now) {
			due = append(due, b)
		}
	}
	return due, nil
}
