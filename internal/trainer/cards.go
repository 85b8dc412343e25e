package trainer

import (
	"fmt"

	"github.com/conorfennell/knolbox/internal/domain"
	"github.com/conorfennell/knolbox/internal/storage"
)

// Cards is the card repository. It creates originals only; copies are made by
// Copies.
type Cards struct {
	*env
	sync *Synchronizer
}

type cardInput struct {
	Front  string `validate:"max=4096"`
	Back   string `validate:"max=4096"`
	Bucket int    `validate:"oneof=0 1"`
}

func (c *Cards) check(front, back string, bucket domain.Bucket) error {
	if err := c.validate.Struct(cardInput{Front: front, Back: back, Bucket: int(bucket)}); err != nil {
		return fmt.Errorf("%w: card: %v", ErrInvalid, err)
	}
	return nil
}

func (c *Cards) checkBox(q *storage.Queries, boxID *int64) error {
	if boxID == nil {
		return nil
	}
	box, err := q.FindBox(*boxID)
	if err != nil {
		return err
	}
	if box == nil {
		return fmt.Errorf("%w: %d", ErrBoxNotFound, *boxID)
	}
	return nil
}

// Add creates an original card. A nil boxID leaves it unassigned.
func (c *Cards) Add(front, back string, detail domain.Detail, boxID *int64, bucket domain.Bucket) (int64, error) {
	if err := c.check(front, back, bucket); err != nil {
		return 0, err
	}
	if err := c.checkBox(c.db.Queries, boxID); err != nil {
		return 0, err
	}
	id, err := c.db.InsertCard(domain.Card{
		Front:  front,
		Back:   back,
		Detail: detail,
		BoxID:  boxID,
		Bucket: bucket,
	})
	if err != nil {
		return 0, err
	}
	c.log.Debug("card added", "id", id, "front", front)
	return id, nil
}

// Update replaces the content and position of a card. The copy relationship
// is never touched and duplicates are not checked. Edits to an original are
// pushed to its live copy afterwards.
func (c *Cards) Update(id int64, front, back string, detail domain.Detail, boxID *int64, bucket domain.Bucket) error {
	if err := c.check(front, back, bucket); err != nil {
		return err
	}
	card, err := c.db.FindCard(id)
	if err != nil {
		return err
	}
	if card == nil {
		return fmt.Errorf("%w: %d", ErrCardNotFound, id)
	}
	if err := c.checkBox(c.db.Queries, boxID); err != nil {
		return err
	}

	updated := *card
	updated.Front, updated.Back, updated.Detail = front, back, detail
	updated.BoxID, updated.Bucket = boxID, bucket
	if err := c.db.UpdateCard(updated); err != nil {
		return err
	}

	c.publish(placementEvents(*card, boxID, bucket)...)
	if !card.IsCopy {
		c.sync.PropagateEdit(id, front, back, detail)
	}
	return nil
}

// Move reassigns a card to a box (nil detaches it) and bucket.
func (c *Cards) Move(id int64, boxID *int64, bucket domain.Bucket) error {
	if !bucket.Valid() {
		return fmt.Errorf("%w: bucket %d", ErrInvalid, bucket)
	}
	card, err := c.db.FindCard(id)
	if err != nil {
		return err
	}
	if card == nil {
		return fmt.Errorf("%w: %d", ErrCardNotFound, id)
	}
	if err := c.checkBox(c.db.Queries, boxID); err != nil {
		return err
	}
	if err := c.db.SetCardPlacement(id, boxID, bucket); err != nil {
		return err
	}
	c.publish(placementEvents(*card, boxID, bucket)...)
	return nil
}

// placementEvents describes a card leaving its old position.
func placementEvents(before domain.Card, boxID *int64, bucket domain.Bucket) []domain.Event {
	var events []domain.Event
	sameBox := (before.BoxID == nil && boxID == nil) ||
		(before.BoxID != nil && boxID != nil && *before.BoxID == *boxID)
	var box int64
	if boxID != nil {
		box = *boxID
	}
	if !sameBox || before.Bucket != bucket {
		events = append(events, domain.Event{Kind: domain.EventCardMoved, CardID: before.ID, BoxID: box, Bucket: bucket})
	}
	if before.Bucket != domain.BucketLearned && bucket == domain.BucketLearned {
		events = append(events, domain.Event{Kind: domain.EventCardLearned, CardID: before.ID, BoxID: box, Bucket: bucket})
	}
	return events
}

// Delete removes a single card row. Callers deleting an original should use
// DeleteOriginal to cascade.
func (c *Cards) Delete(id int64) error {
	return c.db.DeleteCard(id)
}

// DeleteOriginal deletes an original together with its copy, their draw
// records, staging rows and import link. It returns false when id is not an
// original.
func (c *Cards) DeleteOriginal(id int64) (bool, error) {
	deleted := false
	err := c.db.WithTx(func(tx *storage.Tx) error {
		card, err := tx.FindCard(id)
		if err != nil || card == nil || card.IsCopy {
			return err
		}
		copies, err := tx.CopyIDs(&id, nil)
		if err != nil {
			return err
		}
		if err := tx.DeleteDrawsForOriginal(id); err != nil {
			return err
		}
		if err := tx.DeleteDrawsForCopies(copies); err != nil {
			return err
		}
		if err := tx.DeleteStagedCards(append([]int64{id}, copies...)); err != nil {
			return err
		}
		if err := tx.DeleteImportedCard(id); err != nil {
			return err
		}
		if err := tx.DeleteCards(copies); err != nil {
			return err
		}
		if err := tx.DeleteCard(id); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		c.log.Info("original deleted", "id", id)
	}
	return deleted, nil
}

// Get returns a card by id, or nil.
func (c *Cards) Get(id int64) (*domain.Card, error) {
	return c.db.FindCard(id)
}

// ByBox lists the cards of a box.
func (c *Cards) ByBox(boxID int64) ([]domain.Card, error) {
	return c.db.GetCardsByBox(boxID)
}

// ByBoxBucket lists the cards of one bucket of a box.
func (c *Cards) ByBoxBucket(boxID int64, bucket domain.Bucket) ([]domain.Card, error) {
	return c.db.GetCardsByBoxBucket(boxID, bucket)
}

// ByBoxKind lists only copies (copies=true) or only originals of a box.
func (c *Cards) ByBoxKind(boxID int64, copies bool) ([]domain.Card, error) {
	return c.db.GetCardsByBoxKind(boxID, copies)
}

// CountByBox counts the cards of a box.
func (c *Cards) CountByBox(boxID int64) (int, error) {
	return c.db.CountCardsByBox(boxID)
}

// CountByBoxBucket counts the cards of one bucket of a box.
func (c *Cards) CountByBoxBucket(boxID int64, bucket domain.Bucket) (int, error) {
	return c.db.CountCardsByBoxBucket(boxID, bucket)
}
