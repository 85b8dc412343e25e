package domain

import "time"

// Box is a named Leitner interval holding cards in two buckets.
type Box struct {
	ID         int64
	Title      string
	ReviewedAt *time.Time
}

// DrawRecord marks a copy as the one currently pulled out of a box for its
// original. Inactive records are kept as history.
type DrawRecord struct {
	ID             int64
	OriginalCardID int64
	CopyCardID     int64
	BoxID          int64
	DrawnAt        time.Time
	IsActive       bool
}

// StagedCard is a card parked in one of a box's waiting areas before being
// committed to a final box and bucket.
type StagedCard struct {
	ID          int64
	CardID      int64
	TargetBoxID int64
	AreaIndex   int
	CreatedAt   time.Time
}

// Source is a deck location, either a local directory or a git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string // "local" or "git"
	LastScanned *time.Time
}

const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// ImportedCard links an original card to the deck entry it was imported from.
type ImportedCard struct {
	CardID      int64
	SourceID    int64
	SourceKey   string
	ContentHash string
}
