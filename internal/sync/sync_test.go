package sync

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conorfennell/knolbox/internal/domain"
	"github.com/conorfennell/knolbox/internal/storage"
	"github.com/conorfennell/knolbox/internal/trainer"
)

func setup(t *testing.T) (*Syncer, *trainer.Trainer, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "knolbox.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := trainer.New(db, trainer.Options{Logger: logger})
	s := New(db, tr, Options{ImportBox: "German", Logger: logger, ReposDir: t.TempDir()})
	return s, tr, db
}

func writeDeck(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write deck: %v", err)
	}
}

func TestRunSync(t *testing.T) {
	s, tr, _ := setup(t)
	deckDir := t.TempDir()
	writeDeck(t, deckDir, "animals.md", "# Animals\n\n- Hund :: dog\n  gender: der\n- Katze :: cat\n")
	writeDeck(t, deckDir, "notes.txt", "Baum :: tree\n")

	if _, err := s.AddSource(deckDir); err != nil {
		t.Fatalf("AddSource returned an unexpected error: %v", err)
	}
	if id, _ := s.AddSource(deckDir); id != 1 {
		t.Errorf("Expected re-adding a source to return id 1, but got %d", id)
	}

	report, err := s.RunSync()
	if err != nil {
		t.Fatalf("RunSync returned an unexpected error: %v", err)
	}
	if report.Added != 2 || report.Parsed != 2 || len(report.Errors) != 0 {
		t.Fatalf("Unexpected first report %+v", report)
	}

	box, _ := tr.Registry.BoxByTitle("German")
	if box == nil {
		t.Fatal("Expected the import box to be created")
	}
	originals, _ := tr.Cards.ByBoxKind(box.ID, false)
	if len(originals) != 2 {
		t.Fatalf("Expected 2 originals, but got %d", len(originals))
	}

	daily, _ := tr.Registry.GetOrCreateSystemBox("Every Day")
	if n, err := tr.Copies.EnsureCopies(daily); err != nil || n != 2 {
		t.Fatalf("Expected 2 copies, got %d, %v", n, err)
	}

	t.Run("unchanged deck", func(t *testing.T) {
		report, err := s.RunSync()
		if err != nil {
			t.Fatalf("RunSync returned an unexpected error: %v", err)
		}
		if report.Added+report.Updated+report.Deleted != 0 {
			t.Errorf("Expected no changes, but got %+v", report)
		}
	})

	t.Run("edited entry reaches the copy", func(t *testing.T) {
		writeDeck(t, deckDir, "animals.md", "- Hund :: hound\n  gender: der\n- Katze :: cat\n")
		report, err := s.RunSync()
		if err != nil {
			t.Fatalf("RunSync returned an unexpected error: %v", err)
		}
		if report.Updated != 1 {
			t.Fatalf("Expected 1 update, but got %+v", report)
		}
		copies, _ := tr.Cards.ByBoxKind(daily, true)
		found := false
		for _, c := range copies {
			if c.Front == "Hund" {
				found = true
				if c.Back != "hound" {
					t.Errorf("Expected the copy to read 'hound', but got %q", c.Back)
				}
				if g, _ := c.Detail.Get("gender"); g != "der" {
					t.Errorf("Expected the copy detail to survive, but got %q", g)
				}
			}
		}
		if !found {
			t.Error("Expected a copy for 'Hund'")
		}
	})

	t.Run("removed entry deletes original and copy", func(t *testing.T) {
		writeDeck(t, deckDir, "animals.md", "- Hund :: hound\n  gender: der\n")
		report, err := s.RunSync()
		if err != nil {
			t.Fatalf("RunSync returned an unexpected error: %v", err)
		}
		if report.Deleted != 1 {
			t.Fatalf("Expected 1 deletion, but got %+v", report)
		}
		if n, _ := tr.Cards.CountByBox(box.ID); n != 1 {
			t.Errorf("Expected 1 original left, but got %d", n)
		}
		if n, _ := tr.Cards.CountByBox(daily); n != 1 {
			t.Errorf("Expected 1 copy left, but got %d", n)
		}
	})

	t.Run("original deleted by hand is re-imported", func(t *testing.T) {
		originals, _ := tr.Cards.ByBoxKind(box.ID, false)
		if _, err := tr.Cards.DeleteOriginal(originals[0].ID); err != nil {
			t.Fatalf("DeleteOriginal returned an unexpected error: %v", err)
		}
		report, err := s.RunSync()
		if err != nil {
			t.Fatalf("RunSync returned an unexpected error: %v", err)
		}
		if report.Added != 1 {
			t.Errorf("Expected the entry to be imported again, but got %+v", report)
		}
	})
}

func TestFailedUpdateKeepsCard(t *testing.T) {
	s, tr, _ := setup(t)
	deckDir := t.TempDir()
	writeDeck(t, deckDir, "animals.md", "- Hund :: dog\n")
	if _, err := s.AddSource(deckDir); err != nil {
		t.Fatalf("AddSource returned an unexpected error: %v", err)
	}
	if _, err := s.RunSync(); err != nil {
		t.Fatalf("RunSync returned an unexpected error: %v", err)
	}
	box, _ := tr.Registry.BoxByTitle("German")
	originals, _ := tr.Cards.ByBoxKind(box.ID, false)
	if len(originals) != 1 {
		t.Fatalf("Expected 1 original, but got %d", len(originals))
	}
	daily, _ := tr.Registry.GetOrCreateSystemBox("Every Day")
	copyID := mustEnsureCopy(t, tr, originals[0].ID, daily)

	// A back over the card length limit fails validation on update.
	writeDeck(t, deckDir, "animals.md", "- Hund :: "+strings.Repeat("x", 5000)+"\n")
	report, err := s.RunSync()
	if err != nil {
		t.Fatalf("RunSync returned an unexpected error: %v", err)
	}
	if len(report.Errors) != 1 || report.Updated != 0 {
		t.Errorf("Expected one update error, but got %+v", report)
	}
	if report.Deleted != 0 {
		t.Errorf("Expected nothing deleted, but got %d", report.Deleted)
	}
	card, _ := tr.Cards.Get(originals[0].ID)
	if card == nil {
		t.Fatal("Expected the original to survive a failed update")
	}
	if card.Back != "dog" {
		t.Errorf("Expected the original to keep 'dog', but got %q", card.Back)
	}
	if c, _ := tr.Cards.Get(copyID); c == nil {
		t.Error("Expected the copy to survive a failed update")
	}

	// Fixing the deck applies the edit on the next sync.
	writeDeck(t, deckDir, "animals.md", "- Hund :: hound\n")
	report, err = s.RunSync()
	if err != nil {
		t.Fatalf("RunSync returned an unexpected error: %v", err)
	}
	if report.Updated != 1 || report.Deleted != 0 {
		t.Errorf("Expected 1 update and no deletion, but got %+v", report)
	}
}

func mustEnsureCopy(t *testing.T, tr *trainer.Trainer, original, box int64) int64 {
	t.Helper()
	id, ok, err := tr.Copies.EnsureCopy(original, box)
	if err != nil || !ok {
		t.Fatalf("EnsureCopy(%d, %d) = %d, %v, %v; expected a new copy", original, box, id, ok, err)
	}
	return id
}

func TestSweep(t *testing.T) {
	s, tr, db := setup(t)
	box, _ := tr.Registry.CreateBox("Box")
	original, _ := tr.Cards.Add("a", "A", nil, &box, domain.BucketUnknown)
	copyID, _, _ := tr.Copies.EnsureCopy(original, box)
	detached, _ := tr.Cards.Add("b", "B", nil, nil, domain.BucketUnknown)
	if err := tr.Stager.Stage(detached, box, 0); err != nil {
		t.Fatalf("Stage returned an unexpected error: %v", err)
	}

	// Out-of-band single-row deletes leave orphans behind.
	if err := tr.Cards.Delete(original); err != nil {
		t.Fatalf("Delete returned an unexpected error: %v", err)
	}
	if err := tr.Cards.Delete(detached); err != nil {
		t.Fatalf("Delete returned an unexpected error: %v", err)
	}

	if err := s.Sweep(); err != nil {
		t.Fatalf("Sweep returned an unexpected error: %v", err)
	}
	if c, _ := tr.Cards.Get(copyID); c != nil {
		t.Error("Expected the orphaned copy to be deleted")
	}
	if staged, _ := db.FindStagedCard(detached); staged != nil {
		t.Error("Expected the orphaned staging row to be removed")
	}

	t.Run("staging row targeting a missing box", func(t *testing.T) {
		target, _ := tr.Registry.CreateBox("Target")
		waiting, _ := tr.Cards.Add("c", "C", nil, nil, domain.BucketUnknown)
		if err := tr.Stager.Stage(waiting, target, 1); err != nil {
			t.Fatalf("Stage returned an unexpected error: %v", err)
		}
		// Removing the box row alone leaves the staging row behind.
		if err := db.DeleteBox(target); err != nil {
			t.Fatalf("DeleteBox returned an unexpected error: %v", err)
		}
		if err := s.Sweep(); err != nil {
			t.Fatalf("Sweep returned an unexpected error: %v", err)
		}
		if staged, _ := db.FindStagedCard(waiting); staged != nil {
			t.Error("Expected the staging row of a missing box to be removed")
		}
		if c, _ := tr.Cards.Get(waiting); c == nil {
			t.Error("Expected the staged card itself to be kept")
		}
	})
}
