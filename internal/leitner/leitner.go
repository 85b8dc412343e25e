package leitner

import (
	"strings"
	"time"
)

// Level is one rung of the Leitner ladder: a system box and how many days
// pass between its reviews.
type Level struct {
	Title string
	Days  int
}

// ladder lists the system boxes from the most to the least frequently reviewed.
// These titles are protected: the boxes cannot be deleted and no box may be
// renamed to one of them.
var ladder = []Level{
	{Title: "Every Day", Days: 1},
	{Title: "Every 2 Days", Days: 2},
	{Title: "Every 4 Days", Days: 4},
	{Title: "Every Week", Days: 7},
	{Title: "Every 2 Weeks", Days: 14},
}

// Levels returns a copy of the ladder.
func Levels() []Level {
	out := make([]Level, len(ladder))
	copy(out, ladder)
	return out
}

// Titles returns the protected system box titles in ladder order.
func Titles() []string {
	titles := make([]string, len(ladder))
	for i, l := range ladder {
		titles[i] = l.Title
	}
	return titles
}

// Position returns the ladder index of a system box title.
// Matching ignores case and surrounding whitespace.
func Position(title string) (int, bool) {
	t := strings.TrimSpace(title)
	for i, l := range ladder {
		if strings.EqualFold(l.Title, t) {
			return i, true
		}
	}
	return -1, false
}

// IsProtected reports whether title names a system box.
func IsProtected(title string) bool {
	_, ok := Position(title)
	return ok
}

// Canonical returns the ladder's spelling of a protected title.
func Canonical(title string) (string, bool) {
	i, ok := Position(title)
	if !ok {
		return "", false
	}
	return ladder[i].Title, true
}

// First is the box cards fall back to when they are not known.
func First() string {
	return ladder[0].Title
}

// Next returns the box after title. The last box has no successor.
func Next(title string) (string, bool) {
	i, ok := Position(title)
	if !ok || i == len(ladder)-1 {
		return "", false
	}
	return ladder[i+1].Title, true
}

// NextReview returns the day a box is due again after being reviewed at
// reviewedAt. Only calendar days count, not the time of day.
func NextReview(title string, reviewedAt time.Time) (time.Time, bool) {
	i, ok := Position(title)
	if !ok {
		return time.Time{}, false
	}
	y, m, d := reviewedAt.Date()
	return time.Date(y, m, d+ladder[i].Days, 0, 0, 0, 0, reviewedAt.Location()), true
}

// Due reports whether a system box should be reviewed at now. A box that was
// never reviewed is due; user boxes are never due.
func Due(title string, reviewedAt *time.Time, now time.Time) bool {
	if !IsProtected(title) {
		return false
	}
	if reviewedAt == nil {
		return true
	}
	next, _ := NextReview(title, reviewedAt.In(now.Location()))
	return !now.Before(next)
}
