package trainer

import (
	"fmt"

	"github.com/conorfennell/knolbox/internal/domain"
	"github.com/conorfennell/knolbox/internal/storage"
)

// Copies is the only writer of copy cards. It keeps at most one live copy
// per original.
type Copies struct {
	*env
}

// EnsureCopy creates the copy of an original in targetBoxID. It reports
// ok=false without an error when a copy already exists, when the original is
// missing (or is itself a copy) and when both sides of the original are empty.
func (c *Copies) EnsureCopy(originalID, targetBoxID int64) (copyID int64, ok bool, err error) {
	err = c.db.WithTx(func(tx *storage.Tx) error {
		copyID, ok, err = ensureCopy(tx, originalID, targetBoxID)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	if !ok {
		c.log.Debug("copy not created", "original_id", originalID, "box_id", targetBoxID)
		return 0, false, nil
	}
	c.log.Debug("copy created", "original_id", originalID, "copy_id", copyID, "box_id", targetBoxID)
	c.publish(domain.Event{Kind: domain.EventCopyCreated, CardID: copyID, OriginalID: originalID, BoxID: targetBoxID})
	return copyID, true, nil
}

func ensureCopy(tx *storage.Tx, originalID, targetBoxID int64) (int64, bool, error) {
	existing, err := tx.CopyIDs(&originalID, nil)
	if err != nil {
		return 0, false, err
	}
	if len(existing) > 0 {
		return 0, false, nil
	}
	original, err := tx.FindCard(originalID)
	if err != nil {
		return 0, false, err
	}
	if original == nil || original.IsCopy || original.Empty() {
		return 0, false, nil
	}
	box, err := tx.FindBox(targetBoxID)
	if err != nil {
		return 0, false, err
	}
	if box == nil {
		return 0, false, fmt.Errorf("%w: %d", ErrBoxNotFound, targetBoxID)
	}

	id, err := tx.InsertCard(domain.Card{
		Front:          original.Front,
		Back:           original.Back,
		Detail:         original.Detail,
		BoxID:          &targetBoxID,
		Bucket:         domain.BucketUnknown,
		OriginalCardID: &originalID,
		IsCopy:         true,
	})
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// EnsureCopies creates a copy in targetBoxID for every original that has none
// and returns how many were created.
func (c *Copies) EnsureCopies(targetBoxID int64) (int, error) {
	var created []domain.Event
	err := c.db.WithTx(func(tx *storage.Tx) error {
		originals, err := tx.GetOriginalIDsWithoutCopy()
		if err != nil {
			return err
		}
		for _, originalID := range originals {
			id, ok, err := ensureCopy(tx, originalID, targetBoxID)
			if err != nil {
				return err
			}
			if ok {
				created = append(created, domain.Event{
					Kind:       domain.EventCopyCreated,
					CardID:     id,
					OriginalID: originalID,
					BoxID:      targetBoxID,
				})
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.log.Info("copies created", "box_id", targetBoxID, "count", len(created))
	c.publish(created...)
	return len(created), nil
}

// DeleteCopies deletes copies with their draw records and staging rows,
// scoped by original, by box, by both or, with both nil, globally.
func (c *Copies) DeleteCopies(originalID, boxID *int64) (int, error) {
	var n int
	err := c.db.WithTx(func(tx *storage.Tx) error {
		ids, err := tx.CopyIDs(originalID, boxID)
		if err != nil {
			return err
		}
		if err := tx.DeleteDrawsForCopies(ids); err != nil {
			return err
		}
		if err := tx.DeleteStagedCards(ids); err != nil {
			return err
		}
		if err := tx.DeleteCards(ids); err != nil {
			return err
		}
		n = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		ev := domain.Event{Kind: domain.EventCopiesDeleted, Count: n}
		if originalID != nil {
			ev.OriginalID = *originalID
		}
		if boxID != nil {
			ev.BoxID = *boxID
		}
		c.log.Info("copies deleted", "count", n)
		c.publish(ev)
	}
	return n, nil
}

// CopiesOf lists the copy ids of an original.
func (c *Copies) CopiesOf(originalID int64) ([]int64, error) {
	return c.db.CopyIDs(&originalID, nil)
}
