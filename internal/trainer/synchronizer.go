package trainer

import "github.com/conorfennell/knolbox/internal/domain"

// Synchronizer pushes content edits of an original to its live copy. Content
// flows one way only; the copy keeps its own box, bucket and drawn state.
type Synchronizer struct {
	*env
}

// PropagateEdit overwrites the text of the original's copy. It never fails
// the edit that triggered it: problems are logged and reported as false.
func (s *Synchronizer) PropagateEdit(originalID int64, front, back string, detail domain.Detail) bool {
	copies, err := s.db.CopyIDs(&originalID, nil)
	if err != nil {
		s.log.Warn("propagate edit: could not find copy", "original_id", originalID, "error", err)
		return false
	}
	if len(copies) == 0 {
		return false
	}
	updated := false
	for _, id := range copies {
		ok, err := s.db.UpdateCardContent(id, front, back, detail)
		if err != nil {
			s.log.Warn("propagate edit: could not update copy", "original_id", originalID, "copy_id", id, "error", err)
			continue
		}
		updated = updated || ok
	}
	if updated {
		s.log.Debug("edit propagated", "original_id", originalID, "copies", len(copies))
	}
	return updated
}
