package sync

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/knolbox/internal/domain"
	"github.com/conorfennell/knolbox/internal/fingerprint"
	"github.com/conorfennell/knolbox/internal/gitsource"
	"github.com/conorfennell/knolbox/internal/parser"
	"github.com/conorfennell/knolbox/internal/storage"
	"github.com/conorfennell/knolbox/internal/trainer"
)

// Options configures a Syncer.
type Options struct {
	// ReposDir is where git sources are checked out.
	ReposDir string
	// ImportBox is the title of the user box new originals are placed in.
	ImportBox string
	Logger    *slog.Logger
	// Progress receives git transfer output; nil discards it.
	Progress io.Writer
	Now      func() time.Time
}

// Syncer imports deck sources as original cards and keeps them up to date.
type Syncer struct {
	db      *storage.DB
	trainer *trainer.Trainer
	opts    Options
	log     *slog.Logger
}

// Report summarizes one reconciliation.
type Report struct {
	Parsed  int
	Added   int
	Updated int
	Deleted int
	Errors  []error
}

func (r *Report) merge(o Report) {
	r.Parsed += o.Parsed
	r.Added += o.Added
	r.Updated += o.Updated
	r.Deleted += o.Deleted
	r.Errors = append(r.Errors, o.Errors...)
}

// New creates a Syncer working on db through t.
func New(db *storage.DB, t *trainer.Trainer, opts Options) *Syncer {
	if opts.ReposDir == "" {
		opts.ReposDir = "repos"
	}
	if opts.ImportBox == "" {
		opts.ImportBox = "Words"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{db: db, trainer: t, opts: opts, log: opts.Logger}
}

// AddSource registers a local directory or git URL. Adding a known path
// returns its existing id.
func (s *Syncer) AddSource(path string) (int64, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("source path cannot be empty")
	}
	existing, err := s.db.FindSourceByPath(path)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	sourceType := domain.SourceLocal
	if gitsource.IsGitURL(path) {
		sourceType = domain.SourceGit
	}
	id, err := s.db.InsertSource(path, sourceType)
	if err != nil {
		return 0, err
	}
	s.log.Info("source added", "id", id, "type", sourceType, "path", path)
	return id, nil
}

// RunSync iterates over all sources, reconciles them and then repairs
// orphaned copies and waiting-area rows.
func (s *Syncer) RunSync() (Report, error) {
	s.log.Info("Starting sync process for all sources...")
	var total Report

	sources, err := s.db.GetAllSources()
	if err != nil {
		return total, err
	}
	if len(sources) == 0 {
		s.log.Info("No sources configured. Add one with add-source <path/or/url.git>")
	}

	for _, source := range sources {
		s.log.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		dir := source.Path
		if source.Type == domain.SourceGit {
			localRepoPath, err := gitsource.LocalPath(s.opts.ReposDir, source.Path)
			if err != nil {
				total.Errors = append(total.Errors, err)
				s.log.Error("Error determining local path for git repo", "url", source.Path, "error", err)
				continue
			}
			if err := os.MkdirAll(filepath.Dir(localRepoPath), os.ModePerm); err != nil {
				total.Errors = append(total.Errors, err)
				continue
			}
			head, err := gitsource.Sync(source.Path, localRepoPath, s.opts.Progress, s.log)
			if err != nil {
				total.Errors = append(total.Errors, err)
				s.log.Error("Error syncing git repo", "url", source.Path, "error", err)
				continue
			}
			s.log.Info("git source at", "url", source.Path, "head", head)
			dir = localRepoPath
		}

		report, err := s.Reconcile(source, dir)
		if err != nil {
			total.Errors = append(total.Errors, err)
			s.log.Error("Error reconciling source", "source_id", source.ID, "error", err)
			continue
		}
		total.merge(report)
	}

	if err := s.Sweep(); err != nil {
		total.Errors = append(total.Errors, err)
	}
	s.log.Info("Sync process complete.")
	return total, nil
}

// Reconcile imports every deck file below dir for source: new entries become
// originals in the import box, changed ones are updated (and pushed to their
// copies), vanished ones are deleted with their copies.
func (s *Syncer) Reconcile(source domain.Source, dir string) (Report, error) {
	var report Report

	entries := make(map[string]parser.Entry)
	var order []string
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileEntries, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		for _, e := range fileEntries {
			report.Parsed++
			key := fingerprint.Key(e)
			if _, dup := entries[key]; dup {
				s.log.Warn("duplicate entry ignored", "path", path, "line", e.Line, "front", e.Front)
				continue
			}
			entries[key] = e
			order = append(order, key)
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	links, err := s.db.GetImportedCards(source.ID)
	if err != nil {
		return report, err
	}

	importBox, err := s.trainer.Registry.GetOrCreateUserBox(s.opts.ImportBox)
	if err != nil {
		return report, err
	}

	for _, key := range order {
		e := entries[key]
		hash := fingerprint.Content(e)
		link, known := links[key]
		// Still in the deck: never an orphan, even if the update below fails.
		delete(links, key)

		var card *domain.Card
		if known {
			card, err = s.trainer.Cards.Get(link.CardID)
			if err != nil {
				report.Errors = append(report.Errors, err)
				continue
			}
		}

		switch {
		case card == nil:
			id, err := s.trainer.Cards.Add(e.Front, e.Back, e.Detail, &importBox, domain.BucketUnknown)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("db insert for %q: %w", e.Front, err))
				continue
			}
			if known {
				if err := s.db.DeleteImportedCard(link.CardID); err != nil {
					report.Errors = append(report.Errors, err)
				}
			}
			link = domain.ImportedCard{CardID: id, SourceID: source.ID, SourceKey: key, ContentHash: hash}
			if err := s.db.UpsertImportedCard(link); err != nil {
				report.Errors = append(report.Errors, err)
				continue
			}
			s.log.Info("New card found, inserting...", "front", e.Front, "id", id)
			report.Added++
		case link.ContentHash != hash:
			if err := s.trainer.Cards.Update(card.ID, e.Front, e.Back, e.Detail, card.BoxID, card.Bucket); err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("db update for %q: %w", e.Front, err))
				continue
			}
			link.ContentHash = hash
			if err := s.db.UpsertImportedCard(link); err != nil {
				report.Errors = append(report.Errors, err)
				continue
			}
			s.log.Info("Changed card, updating", "front", e.Front, "id", card.ID)
			report.Updated++
		}
	}

	for _, link := range links {
		s.log.Info("Orphaned card, deleting", "id", link.CardID)
		if _, err := s.trainer.Cards.DeleteOriginal(link.CardID); err != nil {
			s.log.Warn("Failed to delete orphaned card", "id", link.CardID, "error", err)
			report.Errors = append(report.Errors, err)
			continue
		}
		// DeleteOriginal skips cards that are already gone; drop their link too.
		if err := s.db.DeleteImportedCard(link.CardID); err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Deleted++
	}

	if err := s.db.UpdateSourceLastScanned(source.ID, s.opts.Now()); err != nil {
		s.log.Warn("Failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	s.log.Info("reconciliation complete",
		"path", dir,
		"parsed_cards", report.Parsed,
		"added", report.Added,
		"updated", report.Updated,
		"orphaned_deleted", report.Deleted,
		"errors", len(report.Errors),
	)
	return report, nil
}

// Sweep repairs data left behind by out-of-band deletes: copies whose
// original is gone and waiting-area rows whose card is gone or back in a box.
func (s *Syncer) Sweep() error {
	orphans, err := s.db.OrphanCopies()
	if err != nil {
		return err
	}
	seen := make(map[int64]bool)
	for _, original := range orphans {
		if seen[original] {
			continue
		}
		seen[original] = true
		if _, err := s.trainer.Copies.DeleteCopies(&original, nil); err != nil {
			return err
		}
	}

	staged, err := s.db.OrphanStagedCardIDs()
	if err != nil {
		return err
	}
	for _, id := range staged {
		if _, err := s.trainer.Stager.Unstage(id); err != nil {
			return err
		}
	}

	if len(orphans) > 0 || len(staged) > 0 {
		s.log.Info("orphans repaired", "copies", len(orphans), "staged", len(staged))
	}
	return nil
}
