package trainer

import (
	"fmt"
	"strings"

	"github.com/conorfennell/knolbox/internal/domain"
	"github.com/conorfennell/knolbox/internal/leitner"
	"github.com/conorfennell/knolbox/internal/storage"
)

// Registry manages boxes and protects the system boxes of the ladder.
type Registry struct {
	*env
}

type boxTitle struct {
	Title string `validate:"required,max=64"`
}

func (r *Registry) checkTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if err := r.validate.Struct(boxTitle{Title: title}); err != nil {
		return "", fmt.Errorf("%w: box title: %v", ErrInvalid, err)
	}
	return title, nil
}

// CreateBox creates a user box with the smallest unused positive id.
// Titles of system boxes are rejected with ErrProtectedTitle.
func (r *Registry) CreateBox(title string) (int64, error) {
	title, err := r.checkTitle(title)
	if err != nil {
		return 0, err
	}
	if leitner.IsProtected(title) {
		return 0, ErrProtectedTitle
	}

	var id int64
	err = r.db.WithTx(func(tx *storage.Tx) error {
		id, err = tx.LowestFreeBoxID()
		if err != nil {
			return err
		}
		return tx.InsertBox(id, title)
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("box created", "id", id, "title", title)
	return id, nil
}

// GetOrCreateSystemBox returns the id of a system box, creating it the first
// time it is asked for.
func (r *Registry) GetOrCreateSystemBox(title string) (int64, error) {
	canonical, ok := leitner.Canonical(title)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotSystemBox, title)
	}

	var id int64
	created := false
	err := r.db.WithTx(func(tx *storage.Tx) error {
		box, err := tx.FindBoxByTitle(canonical)
		if err != nil {
			return err
		}
		if box != nil {
			id = box.ID
			return nil
		}
		id, err = tx.LowestFreeBoxID()
		if err != nil {
			return err
		}
		created = true
		return tx.InsertBox(id, canonical)
	})
	if err != nil {
		return 0, err
	}
	if created {
		r.log.Info("system box created", "id", id, "title", canonical)
	}
	return id, nil
}

// EnsureSystemBoxes creates any missing system box and returns their ids in
// ladder order.
func (r *Registry) EnsureSystemBoxes() ([]int64, error) {
	var ids []int64
	for _, title := range leitner.Titles() {
		id, err := r.GetOrCreateSystemBox(title)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteBox deletes a user box together with every card assigned to it.
// Copies of originals stored in the box are removed as well so that no copy
// outlives its original. The draw history of the box's cards is kept.
// It returns false for system boxes and unknown ids.
func (r *Registry) DeleteBox(id int64) (bool, error) {
	var removed int
	deleted := false
	err := r.db.WithTx(func(tx *storage.Tx) error {
		box, err := tx.FindBox(id)
		if err != nil || box == nil {
			return err
		}
		if leitner.IsProtected(box.Title) {
			return nil
		}

		copies, err := tx.CopyIDsOfOriginalsInBox(id)
		if err != nil {
			return err
		}
		cards, err := tx.CardIDsByBox(id)
		if err != nil {
			return err
		}

		inBox := make(map[int64]bool, len(cards))
		for _, c := range cards {
			inBox[c] = true
		}
		var outside []int64
		for _, c := range copies {
			if !inBox[c] {
				outside = append(outside, c)
			}
		}

		if err := tx.DeleteDrawsForCopies(outside); err != nil {
			return err
		}
		// Records of the box's own cards stay as history, inactive.
		if _, err := tx.DeactivateDrawsForCopies(cards); err != nil {
			return err
		}
		if _, err := tx.DeactivateDrawsForBox(id); err != nil {
			return err
		}
		all := append(outside, cards...)
		if err := tx.DeleteStagedCards(all); err != nil {
			return err
		}
		// The id is reused by the next box, which must not inherit these.
		if _, err := tx.ClearStaged(&id); err != nil {
			return err
		}
		if err := tx.DeleteImportedCards(cards); err != nil {
			return err
		}
		// Copies go first so none is ever left pointing at a deleted original.
		if err := tx.DeleteCards(copies); err != nil {
			return err
		}
		if err := tx.DeleteCards(cards); err != nil {
			return err
		}
		if err := tx.DeleteBox(id); err != nil {
			return err
		}
		removed = len(all)
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		r.log.Info("box deleted", "id", id, "cards_removed", removed)
		r.publish(domain.Event{Kind: domain.EventBoxDeleted, BoxID: id, Count: removed})
	}
	return deleted, nil
}

// RenameBox renames a user box. System boxes keep their titles and no box may
// take a system title.
func (r *Registry) RenameBox(id int64, title string) error {
	title, err := r.checkTitle(title)
	if err != nil {
		return err
	}
	if leitner.IsProtected(title) {
		return ErrProtectedTitle
	}
	return r.db.WithTx(func(tx *storage.Tx) error {
		box, err := tx.FindBox(id)
		if err != nil {
			return err
		}
		if box == nil {
			return fmt.Errorf("%w: %d", ErrBoxNotFound, id)
		}
		if leitner.IsProtected(box.Title) {
			return ErrProtectedTitle
		}
		return tx.RenameBox(id, title)
	})
}

// Box returns a box by id, or nil.
func (r *Registry) Box(id int64) (*domain.Box, error) {
	return r.db.FindBox(id)
}

// BoxByTitle returns the first box with the given title, or nil.
func (r *Registry) BoxByTitle(title string) (*domain.Box, error) {
	return r.db.FindBoxByTitle(strings.TrimSpace(title))
}

// Boxes lists all boxes by id.
func (r *Registry) Boxes() ([]domain.Box, error) {
	return r.db.GetAllBoxes()
}

// IsProtected reports whether id is a system box.
func (r *Registry) IsProtected(id int64) (bool, error) {
	box, err := r.db.FindBox(id)
	if err != nil {
		return false, err
	}
	return box != nil && leitner.IsProtected(box.Title), nil
}

// GetOrCreateUserBox returns the first box titled title, creating a user box
// when none exists.
func (r *Registry) GetOrCreateUserBox(title string) (int64, error) {
	box, err := r.BoxByTitle(title)
	if err != nil {
		return 0, err
	}
	if box != nil {
		return box.ID, nil
	}
	return r.CreateBox(title)
}
