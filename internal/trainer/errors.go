package trainer

import "errors"

var (
	// ErrProtectedTitle is returned when a title belongs to a system box and
	// the operation would create, rename or rename to it.
	ErrProtectedTitle = errors.New("title is reserved for a system box")
	// ErrNotSystemBox is returned when a system box is requested by a title
	// that is not on the ladder.
	ErrNotSystemBox = errors.New("not a system box title")
	ErrBoxNotFound  = errors.New("box not found")
	ErrCardNotFound = errors.New("card not found")
	ErrNotACopy     = errors.New("card is not a copy")
	// ErrNotCopyOf is returned when a copy is drawn for an original it does
	// not belong to.
	ErrNotCopyOf     = errors.New("copy does not belong to original")
	ErrAlreadyStaged = errors.New("card is already staged")
	ErrNotStaged     = errors.New("card is not staged")
	// ErrNotDetached is returned when staging a card that still sits in a box.
	ErrNotDetached = errors.New("card is still assigned to a box")
	ErrInvalidArea = errors.New("waiting area index out of range")
	ErrInvalid     = errors.New("invalid input")
)
