package trainer

import (
	"errors"
	"testing"

	"github.com/conorfennell/knolbox/internal/domain"
)

func TestCreateBoxLowestFreeID(t *testing.T) {
	tr, _ := newTestTrainer(t)
	a := mustBox(t, tr, "A")
	b := mustBox(t, tr, "B")
	c := mustBox(t, tr, "C")
	if a != 1 || b != 2 || c != 3 {
		t.Fatalf("Expected ids 1, 2, 3, but got %d, %d, %d", a, b, c)
	}

	if ok, err := tr.Registry.DeleteBox(b); err != nil || !ok {
		t.Fatalf("DeleteBox(%d) = %v, %v; expected success", b, ok, err)
	}
	if reused := mustBox(t, tr, "D"); reused != 2 {
		t.Errorf("Expected the freed id 2 to be reused, but got %d", reused)
	}
	if next := mustBox(t, tr, "E"); next != 4 {
		t.Errorf("Expected id 4, but got %d", next)
	}
}

func TestCreateBoxRejects(t *testing.T) {
	tr, _ := newTestTrainer(t)
	testCases := []struct {
		name  string
		title string
		err   error
	}{
		{"protected title", "Every Day", ErrProtectedTitle},
		{"protected title other case", " every 2 weeks ", ErrProtectedTitle},
		{"empty title", "   ", ErrInvalid},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tr.Registry.CreateBox(tc.title); !errors.Is(err, tc.err) {
				t.Errorf("Expected %v, but got %v", tc.err, err)
			}
		})
	}
	boxes, _ := tr.Registry.Boxes()
	if len(boxes) != 0 {
		t.Errorf("Expected no boxes to be created, but got %d", len(boxes))
	}
}

func TestGetOrCreateSystemBox(t *testing.T) {
	tr, _ := newTestTrainer(t)
	first, err := tr.Registry.GetOrCreateSystemBox("Every 4 Days")
	if err != nil {
		t.Fatalf("GetOrCreateSystemBox returned an unexpected error: %v", err)
	}
	again, err := tr.Registry.GetOrCreateSystemBox("every 4 days")
	if err != nil {
		t.Fatalf("GetOrCreateSystemBox returned an unexpected error: %v", err)
	}
	if first != again {
		t.Errorf("Expected the same id twice, but got %d and %d", first, again)
	}
	if _, err := tr.Registry.GetOrCreateSystemBox("Verbs"); !errors.Is(err, ErrNotSystemBox) {
		t.Errorf("Expected ErrNotSystemBox, but got %v", err)
	}

	ids, err := tr.Registry.EnsureSystemBoxes()
	if err != nil {
		t.Fatalf("EnsureSystemBoxes returned an unexpected error: %v", err)
	}
	if len(ids) != 5 || ids[2] != first {
		t.Errorf("Expected five boxes with 'Every 4 Days' = %d third, but got %v", first, ids)
	}
}

func TestProtectedBoxes(t *testing.T) {
	tr, _ := newTestTrainer(t)
	daily, _ := tr.Registry.GetOrCreateSystemBox("Every Day")
	o := mustOriginal(t, tr, "ja", "yes", daily)

	ok, err := tr.Registry.DeleteBox(daily)
	if err != nil {
		t.Fatalf("DeleteBox returned an unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected deleting a system box to fail")
	}
	if n, _ := tr.Cards.CountByBox(daily); n != 1 {
		t.Errorf("Expected the system box to keep its card, but it has %d", n)
	}
	mustCard(t, tr, o)

	if err := tr.Registry.RenameBox(daily, "Daily"); !errors.Is(err, ErrProtectedTitle) {
		t.Errorf("Expected ErrProtectedTitle renaming a system box, but got %v", err)
	}
	user := mustBox(t, tr, "Mine")
	if err := tr.Registry.RenameBox(user, "Every Week"); !errors.Is(err, ErrProtectedTitle) {
		t.Errorf("Expected ErrProtectedTitle renaming to a system title, but got %v", err)
	}
	if err := tr.Registry.RenameBox(user, "Still mine"); err != nil {
		t.Errorf("RenameBox returned an unexpected error: %v", err)
	}
	if b, _ := tr.Registry.Box(user); b == nil || b.Title != "Still mine" {
		t.Errorf("Expected title 'Still mine', but got %+v", b)
	}
	if err := tr.Registry.RenameBox(99, "Ghost"); !errors.Is(err, ErrBoxNotFound) {
		t.Errorf("Expected ErrBoxNotFound, but got %v", err)
	}
	if p, _ := tr.Registry.IsProtected(daily); !p {
		t.Error("Expected the daily box to be protected")
	}
	if p, _ := tr.Registry.IsProtected(user); p {
		t.Error("Expected a user box not to be protected")
	}
}

func TestDeleteBoxRemovesCards(t *testing.T) {
	tr, db := newTestTrainer(t)
	daily, _ := tr.Registry.GetOrCreateSystemBox("Every Day")
	box := mustBox(t, tr, "Colours")
	var originals []int64
	for _, w := range []string{"rot", "blau", "gelb"} {
		originals = append(originals, mustOriginal(t, tr, w, w, box))
	}
	// A copy living elsewhere goes with its original.
	copyID := mustCopy(t, tr, originals[0], daily)
	if err := tr.Draws.MarkDrawn(originals[0], copyID, daily); err != nil {
		t.Fatalf("MarkDrawn returned an unexpected error: %v", err)
	}

	ok, err := tr.Registry.DeleteBox(box)
	if err != nil || !ok {
		t.Fatalf("DeleteBox = %v, %v; expected success", ok, err)
	}
	for _, id := range append(originals, copyID) {
		if c, _ := tr.Cards.Get(id); c != nil {
			t.Errorf("Expected card %d to be deleted", id)
		}
	}
	if b, _ := tr.Registry.Box(box); b != nil {
		t.Error("Expected the box row to be deleted")
	}
	if active, _ := db.CountActiveDraws(originals[0]); active != 0 {
		t.Errorf("Expected no active draw left for the deleted copy, but got %d", active)
	}
	if ok, _ := tr.Registry.DeleteBox(box); ok {
		t.Error("Expected deleting a missing box to fail")
	}
}

func TestDeleteBoxWithForeignCopy(t *testing.T) {
	tr, db := newTestTrainer(t)
	home := mustBox(t, tr, "Home")
	drill := mustBox(t, tr, "Drill")
	original := mustOriginal(t, tr, "Tisch", "table", home)
	copyID := mustCopy(t, tr, original, drill)
	if err := tr.Draws.MarkDrawn(original, copyID, drill); err != nil {
		t.Fatalf("MarkDrawn returned an unexpected error: %v", err)
	}

	ok, err := tr.Registry.DeleteBox(drill)
	if err != nil || !ok {
		t.Fatalf("DeleteBox = %v, %v; expected success", ok, err)
	}
	if c, _ := tr.Cards.Get(copyID); c != nil {
		t.Error("Expected the copy in the deleted box to be gone")
	}
	mustCard(t, tr, original)
	if id, ok, _ := tr.Draws.CurrentActiveCopyFor(original); ok {
		t.Errorf("Expected no active copy for the original, but got %d", id)
	}
	if active, _ := db.CountActiveDraws(original); active != 0 {
		t.Errorf("Expected 0 active draw records, but got %d", active)
	}
	if rec, _ := db.LatestDrawForCopy(copyID, drill); rec == nil {
		t.Error("Expected the draw record to be kept as history")
	}

	// A fresh copy can be drawn again afterwards.
	daily, _ := tr.Registry.GetOrCreateSystemBox("Every Day")
	again := mustCopy(t, tr, original, daily)
	if err := tr.Draws.MarkDrawn(original, again, daily); err != nil {
		t.Fatalf("MarkDrawn returned an unexpected error: %v", err)
	}
	if id, ok, _ := tr.Draws.CurrentActiveCopyFor(original); !ok || id != again {
		t.Errorf("Expected active copy %d, but got %d (%v)", again, id, ok)
	}
}

func TestDeleteBoxClearsWaitingAreas(t *testing.T) {
	tr, db := newTestTrainer(t)
	home := mustBox(t, tr, "Home")
	target := mustBox(t, tr, "Target")
	card := mustOriginal(t, tr, "Stuhl", "chair", home)
	if err := tr.Stager.Detach(card); err != nil {
		t.Fatalf("Detach returned an unexpected error: %v", err)
	}
	if err := tr.Stager.Stage(card, target, 0); err != nil {
		t.Fatalf("Stage returned an unexpected error: %v", err)
	}

	if ok, err := tr.Registry.DeleteBox(target); err != nil || !ok {
		t.Fatalf("DeleteBox = %v, %v; expected success", ok, err)
	}
	if staged, _ := db.FindStagedCard(card); staged != nil {
		t.Error("Expected the staging row targeting the deleted box to be removed")
	}
	mustCard(t, tr, card)

	reused := mustBox(t, tr, "Brand New")
	if reused != target {
		t.Fatalf("Expected the freed id %d to be reused, but got %d", target, reused)
	}
	staged, err := tr.Stager.StagedIn(reused)
	if err != nil {
		t.Fatalf("StagedIn returned an unexpected error: %v", err)
	}
	if len(staged) != 0 {
		t.Errorf("Expected the new box to have no waiting cards, but got %d", len(staged))
	}
}

func TestCardQueries(t *testing.T) {
	tr, _ := newTestTrainer(t)
	box := mustBox(t, tr, "Mixed")
	other := mustBox(t, tr, "Other")
	a := mustOriginal(t, tr, "a", "A", box)
	b, err := tr.Cards.Add("b", "B", domain.Detail{{Name: "note", Value: "letter"}}, &box, domain.BucketLearned)
	if err != nil {
		t.Fatalf("Add returned an unexpected error: %v", err)
	}
	mustCopy(t, tr, a, box)
	mustCopy(t, tr, b, other)

	testCases := []struct {
		name     string
		count    func() (int, error)
		expected int
	}{
		{"by box", func() (int, error) { return tr.Cards.CountByBox(box) }, 3},
		{"unknown bucket", func() (int, error) { return tr.Cards.CountByBoxBucket(box, domain.BucketUnknown) }, 2},
		{"learned bucket", func() (int, error) { return tr.Cards.CountByBoxBucket(box, domain.BucketLearned) }, 1},
		{"only copies", func() (int, error) { c, err := tr.Cards.ByBoxKind(box, true); return len(c), err }, 1},
		{"only originals", func() (int, error) { c, err := tr.Cards.ByBoxKind(box, false); return len(c), err }, 2},
		{"list by box", func() (int, error) { c, err := tr.Cards.ByBox(other); return len(c), err }, 1},
		{"list by bucket", func() (int, error) { c, err := tr.Cards.ByBoxBucket(box, domain.BucketLearned); return len(c), err }, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := tc.count()
			if err != nil {
				t.Fatalf("Query returned an unexpected error: %v", err)
			}
			if n != tc.expected {
				t.Errorf("Expected %d, but got %d", tc.expected, n)
			}
		})
	}

	card := mustCard(t, tr, b)
	if note, ok := card.Detail.Get("note"); !ok || note != "letter" {
		t.Errorf("Expected detail note 'letter', but got %q", note)
	}
	if _, err := tr.Cards.Add("x", "y", nil, &box, domain.Bucket(7)); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid for a bad bucket, but got %v", err)
	}
	if _, err := tr.Cards.Add("x", "y", nil, ptr(42), domain.BucketUnknown); !errors.Is(err, ErrBoxNotFound) {
		t.Errorf("Expected ErrBoxNotFound, but got %v", err)
	}
}
