package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/knolbox/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLowestFreeBoxID(t *testing.T) {
	db := openTestDB(t)

	testCases := []struct {
		name     string
		existing []int64
		expected int64
	}{
		{"empty", nil, 1},
		{"contiguous", []int64{1, 2, 3}, 4},
		{"gap in the middle", []int64{1, 3}, 2},
		{"first free", []int64{2, 3}, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := db.WithTx(func(tx *Tx) error {
				for _, id := range tc.existing {
					if err := tx.InsertBox(id, "box"); err != nil {
						return err
					}
				}
				got, err := tx.LowestFreeBoxID()
				if err != nil {
					return err
				}
				if got != tc.expected {
					t.Errorf("Expected lowest free id %d, but got %d", tc.expected, got)
				}
				return errRollback
			})
			if !errors.Is(err, errRollback) {
				t.Fatalf("WithTx returned an unexpected error: %v", err)
			}
		})
	}
}

var (
	errRollback = errors.New("rollback")
	testTime    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestWithTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	err := db.WithTx(func(tx *Tx) error {
		if err := tx.InsertBox(1, "gone"); err != nil {
			return err
		}
		return errRollback
	})
	if !errors.Is(err, errRollback) {
		t.Fatalf("Expected the rollback error, but got %v", err)
	}
	box, err := db.FindBox(1)
	if err != nil {
		t.Fatalf("FindBox returned an unexpected error: %v", err)
	}
	if box != nil {
		t.Error("Expected the insert to be rolled back")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Expected the panic to be re-raised")
			}
		}()
		_ = db.WithTx(func(tx *Tx) error {
			_ = tx.InsertBox(2, "panicked")
			panic("boom")
		})
	}()
	if box, _ := db.FindBox(2); box != nil {
		t.Error("Expected the insert before the panic to be rolled back")
	}
}

func TestCardRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.InsertBox(1, "box"); err != nil {
		t.Fatalf("InsertBox returned an unexpected error: %v", err)
	}
	box := int64(1)
	detail := domain.Detail{{Name: "example", Value: "Guten Morgen!"}, {Name: "note", Value: "greeting"}}

	id, err := db.InsertCard(domain.Card{Front: "Morgen", Back: "morning", Detail: detail, BoxID: &box, Bucket: domain.BucketLearned})
	if err != nil {
		t.Fatalf("InsertCard returned an unexpected error: %v", err)
	}
	card, err := db.FindCard(id)
	if err != nil || card == nil {
		t.Fatalf("FindCard = %v, %v", card, err)
	}
	if card.Front != "Morgen" || card.Back != "morning" || card.Bucket != domain.BucketLearned {
		t.Errorf("Unexpected card %+v", card)
	}
	if card.BoxID == nil || *card.BoxID != box || card.OriginalCardID != nil || card.IsCopy || card.IsDrawn {
		t.Errorf("Unexpected placement %+v", card)
	}
	if len(card.Detail) != 2 || card.Detail[1].Value != "greeting" {
		t.Errorf("Expected detail to survive storage, but got %+v", card.Detail)
	}

	if err := db.SetCardPlacement(id, nil, domain.BucketUnknown); err != nil {
		t.Fatalf("SetCardPlacement returned an unexpected error: %v", err)
	}
	card, _ = db.FindCard(id)
	if card.BoxID != nil {
		t.Errorf("Expected the card to be detached, but got box %d", *card.BoxID)
	}

	missing, err := db.FindCard(404)
	if err != nil || missing != nil {
		t.Errorf("Expected (nil, nil) for a missing card, got %v, %v", missing, err)
	}
}

func TestOrphanSweeps(t *testing.T) {
	db := openTestDB(t)
	if err := db.InsertBox(1, "box"); err != nil {
		t.Fatalf("InsertBox returned an unexpected error: %v", err)
	}
	box := int64(1)
	original, _ := db.InsertCard(domain.Card{Front: "a", BoxID: &box})
	copyID, _ := db.InsertCard(domain.Card{Front: "a", BoxID: &box, OriginalCardID: &original, IsCopy: true})
	assigned, _ := db.InsertCard(domain.Card{Front: "b", BoxID: &box})

	if err := db.DeleteCard(original); err != nil {
		t.Fatalf("DeleteCard returned an unexpected error: %v", err)
	}
	orphans, err := db.OrphanCopies()
	if err != nil {
		t.Fatalf("OrphanCopies returned an unexpected error: %v", err)
	}
	if orphans[copyID] != original || len(orphans) != 1 {
		t.Errorf("Expected copy %d to be orphaned from %d, but got %v", copyID, original, orphans)
	}

	_ = db.InsertStagedCard(assigned, box, 0, testTime)
	_ = db.InsertStagedCard(999, box, 1, testTime)
	ids, err := db.OrphanStagedCardIDs()
	if err != nil {
		t.Fatalf("OrphanStagedCardIDs returned an unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 orphan staged cards, but got %v", ids)
	}
}
