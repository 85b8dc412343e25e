package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Bucket distinguishes cards still to learn from learned ones inside a box.
type Bucket int

const (
	BucketUnknown Bucket = 0
	BucketLearned Bucket = 1
)

// Valid reports whether b is one of the two known buckets.
func (b Bucket) Valid() bool {
	return b == BucketUnknown || b == BucketLearned
}

func (b Bucket) String() string {
	switch b {
	case BucketUnknown:
		return "unknown"
	case BucketLearned:
		return "learned"
	}
	return fmt.Sprintf("bucket(%d)", int(b))
}

// Card is a vocabulary pair. Originals are owned by the user; copies are
// disposable projections of an original that circulate through the boxes.
type Card struct {
	ID             int64
	Front          string
	Back           string
	Detail         Detail
	BoxID          *int64 // nil while the card is detached or staged
	Bucket         Bucket
	OriginalCardID *int64
	IsCopy         bool
	IsDrawn        bool
}

// Empty reports whether the card has nothing worth drilling.
func (c Card) Empty() bool {
	return strings.TrimSpace(c.Front) == "" && strings.TrimSpace(c.Back) == ""
}

// InBox reports whether the card is currently assigned to box.
func (c Card) InBox(box int64) bool {
	return c.BoxID != nil && *c.BoxID == box
}

// DetailField is a single named entry of a card's detail payload,
// e.g. "example" or "note".
type DetailField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Detail is the ordered, structured payload attached to a card.
type Detail []DetailField

// Get returns the value of the first field called name.
func (d Detail) Get(name string) (string, bool) {
	for _, f := range d {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Encode serializes the detail for storage. An empty detail encodes to "".
func (d Detail) Encode() (string, error) {
	if len(d) == 0 {
		return "", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode detail: %w", err)
	}
	return string(b), nil
}

// DecodeDetail parses a stored detail payload.
func DecodeDetail(s string) (Detail, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var d Detail
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, fmt.Errorf("failed to decode detail: %w", err)
	}
	return d, nil
}
