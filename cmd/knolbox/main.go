package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/knolbox/internal/config"
	"github.com/conorfennell/knolbox/internal/domain"
	"github.com/conorfennell/knolbox/internal/leitner"
	"github.com/conorfennell/knolbox/internal/storage"
	"github.com/conorfennell/knolbox/internal/sync"
	"github.com/conorfennell/knolbox/internal/trainer"
)

const usage = `Usage: knolbox [flags] <command> [args]

Commands:
  boxes                       List boxes with card counts
  add-box <title>             Create a user box
  rename-box <id> <title>     Rename a box
  delete-box <id>             Delete a user box and its cards
  add-source <path|url.git>   Register a deck directory or git repository
  sync                        Import all sources
  copies [box-id]             List copies, optionally of one box
  delete-copies [box-id]      Delete copies, optionally of one box
  draw <box-id>               Draw a random unknown copy from a box
  answer <copy-id> known|unknown
  reset <box-id>              Return all drawn copies of a box
  advance <box-id>            Move learned copies to the next box
  due                         List system boxes due for review
  edit <card-id> <front> <back>
                              Change the text of a card
  stage <card-id> <box-id> [area]
                              Take a card out of its box into a waiting area
  staged <box-id>             List cards waiting for a box
  commit <card-id> <box-id> [known|unknown]
                              Place a waiting card in its final box
  clear-staged [box-id]       Empty waiting areas, optionally of one box

Flags:
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// 1. Flags and configuration
	flags := config.Flags("knolbox")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return fmt.Errorf("no command given")
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	// 2. Open the database
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Debug("database opened", "path", cfg.DB)

	// 3. Wire the services
	t := trainer.New(db, trainer.Options{
		DrawWindow:   cfg.Draw.Window,
		StagingSlots: cfg.Staging.Slots,
		Logger:       logger,
	})
	events := t.Events.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			logger.Debug("event", "kind", ev.Kind, "card_id", ev.CardID, "original_id", ev.OriginalID, "box_id", ev.BoxID, "count", ev.Count)
		}
	}()
	defer func() {
		t.Events.Unsubscribe(events)
		<-done
	}()

	if _, err := t.Registry.EnsureSystemBoxes(); err != nil {
		return err
	}

	c := &cli{t: t, syncer: sync.New(db, t, sync.Options{
		ReposDir:  cfg.ReposDir,
		ImportBox: cfg.ImportBox,
		Logger:    logger,
		Progress:  os.Stderr,
	})}

	// 4. Dispatch
	cmd, rest := flags.Arg(0), flags.Args()[1:]
	switch cmd {
	case "boxes":
		return c.boxes()
	case "add-box":
		return c.addBox(rest)
	case "rename-box":
		return c.renameBox(rest)
	case "delete-box":
		return c.deleteBox(rest)
	case "add-source":
		return c.addSource(rest)
	case "sync":
		return c.sync()
	case "copies":
		return c.copies(rest)
	case "delete-copies":
		return c.deleteCopies(rest)
	case "draw":
		return c.draw(rest)
	case "answer":
		return c.answer(rest)
	case "reset":
		return c.reset(rest)
	case "advance":
		return c.advance(rest)
	case "due":
		return c.due()
	case "edit":
		return c.edit(rest)
	case "stage":
		return c.stage(rest)
	case "staged":
		return c.staged(rest)
	case "commit":
		return c.commit(rest)
	case "clear-staged":
		return c.clearStaged(rest)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type cli struct {
	t      *trainer.Trainer
	syncer *sync.Syncer
}

func parseID(args []string, i int, what string) (int64, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing %s", what)
	}
	id, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, args[i])
	}
	return id, nil
}

// optionalBox parses an optional leading box id; nil means every box.
func optionalBox(args []string) (*int64, error) {
	if len(args) == 0 {
		return nil, nil
	}
	id, err := parseID(args, 0, "box id")
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *cli) boxes() error {
	boxes, err := c.t.Registry.Boxes()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUNKNOWN\tLEARNED\tREVIEWED")
	for _, b := range boxes {
		unknown, err := c.t.Cards.CountByBoxBucket(b.ID, domain.BucketUnknown)
		if err != nil {
			return err
		}
		learned, err := c.t.Cards.CountByBoxBucket(b.ID, domain.BucketLearned)
		if err != nil {
			return err
		}
		reviewed := "-"
		if b.ReviewedAt != nil {
			reviewed = b.ReviewedAt.Local().Format(time.DateTime)
		}
		title := b.Title
		if leitner.IsProtected(title) {
			title += " *"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", b.ID, title, unknown, learned, reviewed)
	}
	return w.Flush()
}

func (c *cli) addBox(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing box title")
	}
	id, err := c.t.Registry.CreateBox(strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Printf("Created box %d.\n", id)
	return nil
}

func (c *cli) renameBox(args []string) error {
	id, err := parseID(args, 0, "box id")
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("missing new title")
	}
	return c.t.Registry.RenameBox(id, strings.Join(args[1:], " "))
}

func (c *cli) deleteBox(args []string) error {
	id, err := parseID(args, 0, "box id")
	if err != nil {
		return err
	}
	ok, err := c.t.Registry.DeleteBox(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("box %d is protected or does not exist", id)
	}
	fmt.Printf("Deleted box %d.\n", id)
	return nil
}

func (c *cli) addSource(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("add-source takes exactly one path or URL")
	}
	id, err := c.syncer.AddSource(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Source %d registered. Run 'knolbox sync' to import it.\n", id)
	return nil
}

func (c *cli) sync() error {
	report, err := c.syncer.RunSync()
	if err != nil {
		return err
	}
	fmt.Printf("Parsed %d entries: %d added, %d updated, %d deleted, %d errors.\n",
		report.Parsed, report.Added, report.Updated, report.Deleted, len(report.Errors))
	if len(report.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range report.Errors {
			fmt.Printf("- %s\n", e)
		}
	}
	return nil
}

func (c *cli) copies(args []string) error {
	box, err := optionalBox(args)
	if err != nil {
		return err
	}
	var boxIDs []int64
	if box != nil {
		boxIDs = []int64{*box}
	} else {
		boxes, err := c.t.Registry.Boxes()
		if err != nil {
			return err
		}
		for _, b := range boxes {
			boxIDs = append(boxIDs, b.ID)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORIGINAL\tBOX\tBUCKET\tDRAWN\tFRONT")
	for _, id := range boxIDs {
		cards, err := c.t.Cards.ByBoxKind(id, true)
		if err != nil {
			return err
		}
		for _, card := range cards {
			fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%t\t%s\n", card.ID, *card.OriginalCardID, id, card.Bucket, card.IsDrawn, card.Front)
		}
	}
	return w.Flush()
}

func (c *cli) deleteCopies(args []string) error {
	box, err := optionalBox(args)
	if err != nil {
		return err
	}
	n, err := c.t.Copies.DeleteCopies(nil, box)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d copies.\n", n)
	return nil
}

func (c *cli) draw(args []string) error {
	boxID, err := parseID(args, 0, "box id")
	if err != nil {
		return err
	}
	box, err := c.t.Registry.Box(boxID)
	if err != nil {
		return err
	}
	if box == nil {
		return fmt.Errorf("box %d does not exist", boxID)
	}
	// New originals enter the ladder at its first rung.
	if pos, ok := leitner.Position(box.Title); ok && pos == 0 {
		if _, err := c.t.Copies.EnsureCopies(boxID); err != nil {
			return err
		}
	}
	card, err := c.t.Draws.DrawRandomUndrawn(boxID)
	if err != nil {
		return err
	}
	if card == nil {
		fmt.Println("Nothing left to draw in this box.")
		return nil
	}
	if err := c.t.Draws.MarkDrawn(*card.OriginalCardID, card.ID, boxID); err != nil {
		return err
	}
	fmt.Printf("[%d] %s\n", card.ID, card.Front)
	fmt.Printf("    %s\n", card.Back)
	for _, field := range card.Detail {
		fmt.Printf("    %s: %s\n", field.Name, field.Value)
	}
	return nil
}

func parseKnown(arg string) (bool, error) {
	switch arg {
	case "known", "k", "yes":
		return true, nil
	case "unknown", "u", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid answer %q: want known or unknown", arg)
}

func (c *cli) answer(args []string) error {
	copyID, err := parseID(args, 0, "copy id")
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("missing answer: known or unknown")
	}
	known, err := parseKnown(args[1])
	if err != nil {
		return err
	}
	return c.t.Draws.Answer(copyID, known)
}

func (c *cli) edit(args []string) error {
	id, err := parseID(args, 0, "card id")
	if err != nil {
		return err
	}
	if len(args) != 3 {
		return fmt.Errorf("edit takes a card id, a front and a back")
	}
	card, err := c.t.Cards.Get(id)
	if err != nil {
		return err
	}
	if card == nil {
		return fmt.Errorf("card %d does not exist", id)
	}
	return c.t.Cards.Update(id, args[1], args[2], card.Detail, card.BoxID, card.Bucket)
}

func (c *cli) stage(args []string) error {
	cardID, err := parseID(args, 0, "card id")
	if err != nil {
		return err
	}
	boxID, err := parseID(args, 1, "box id")
	if err != nil {
		return err
	}
	area := 0
	if len(args) > 2 {
		if area, err = strconv.Atoi(args[2]); err != nil {
			return fmt.Errorf("invalid area %q", args[2])
		}
	}
	if err := c.t.Stager.Detach(cardID); err != nil {
		return err
	}
	if err := c.t.Stager.Stage(cardID, boxID, area); err != nil {
		return err
	}
	fmt.Printf("Card %d waits in area %d of box %d.\n", cardID, area, boxID)
	return nil
}

func (c *cli) staged(args []string) error {
	boxID, err := parseID(args, 0, "box id")
	if err != nil {
		return err
	}
	staged, err := c.t.Stager.StagedIn(boxID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CARD\tAREA\tSINCE")
	for _, s := range staged {
		fmt.Fprintf(w, "%d\t%d\t%s\n", s.CardID, s.AreaIndex, s.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func (c *cli) commit(args []string) error {
	cardID, err := parseID(args, 0, "card id")
	if err != nil {
		return err
	}
	boxID, err := parseID(args, 1, "box id")
	if err != nil {
		return err
	}
	bucket := domain.BucketUnknown
	if len(args) > 2 {
		known, err := parseKnown(args[2])
		if err != nil {
			return err
		}
		if known {
			bucket = domain.BucketLearned
		}
	}
	return c.t.Stager.CommitStage(cardID, boxID, bucket)
}

func (c *cli) clearStaged(args []string) error {
	box, err := optionalBox(args)
	if err != nil {
		return err
	}
	n, err := c.t.Stager.ClearAll(box)
	if err != nil {
		return err
	}
	fmt.Printf("Cleared %d waiting cards.\n", n)
	return nil
}

func (c *cli) reset(args []string) error {
	boxID, err := parseID(args, 0, "box id")
	if err != nil {
		return err
	}
	n, err := c.t.Draws.ResetBox(boxID)
	if err != nil {
		return err
	}
	fmt.Printf("Returned %d copies.\n", n)
	return nil
}

func (c *cli) advance(args []string) error {
	boxID, err := parseID(args, 0, "box id")
	if err != nil {
		return err
	}
	n, err := c.t.Draws.Advance(boxID)
	if err != nil {
		return err
	}
	fmt.Printf("Advanced %d copies.\n", n)
	return nil
}

func (c *cli) due() error {
	boxes, err := c.t.Draws.DueBoxes(time.Now())
	if err != nil {
		return err
	}
	if len(boxes) == 0 {
		fmt.Println("Nothing is due.")
		return nil
	}
	for _, b := range boxes {
		fmt.Printf("%d\t%s\n", b.ID, b.Title)
	}
	return nil
}
