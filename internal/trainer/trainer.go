// Package trainer implements the card lifecycle of the Leitner trainer: box
// registry, card repository, copy lifecycle, drawn-card state machine,
// waiting areas and content synchronization. All state lives in the store;
// the services hold no authoritative data of their own.
package trainer

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/knolbox/internal/domain"
	"github.com/conorfennell/knolbox/internal/storage"
)

const (
	DefaultDrawWindow   = 50
	DefaultStagingSlots = 2
)

// Options configures a Trainer. Zero values fall back to defaults.
type Options struct {
	// DrawWindow caps how many candidates a random draw chooses from.
	DrawWindow int
	// StagingSlots is the number of waiting areas per box.
	StagingSlots int
	Logger       *slog.Logger
	// IntN returns a random int in [0, n). Tests inject a deterministic one.
	IntN func(n int) int
	Now  func() time.Time
	// EventBuffer is the channel capacity of each event subscriber.
	EventBuffer int
}

// Trainer bundles the services sharing one store. It is constructed once per
// session and handed to collaborators.
type Trainer struct {
	Registry *Registry
	Cards    *Cards
	Copies   *Copies
	Draws    *Draws
	Stager   *Stager
	Sync     *Synchronizer
	Events   *Events
}

// env is what every service needs.
type env struct {
	db       *storage.DB
	log      *slog.Logger
	events   *Events
	validate *validator.Validate
	now      func() time.Time
}

func (e *env) publish(events ...domain.Event) {
	at := e.now()
	for i := range events {
		events[i].At = at
	}
	e.events.Publish(events...)
}

// New wires all services around db.
func New(db *storage.DB, opts Options) *Trainer {
	if opts.DrawWindow <= 0 {
		opts.DrawWindow = DefaultDrawWindow
	}
	if opts.StagingSlots <= 0 {
		opts.StagingSlots = DefaultStagingSlots
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IntN == nil {
		opts.IntN = rand.Intn
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &env{
		db:       db,
		log:      opts.Logger,
		events:   NewEvents(opts.EventBuffer),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      opts.Now,
	}

	registry := &Registry{env: e}
	synchronizer := &Synchronizer{env: e}
	t := &Trainer{
		Registry: registry,
		Cards:    &Cards{env: e, sync: synchronizer},
		Copies:   &Copies{env: e},
		Draws:    &Draws{env: e, registry: registry, window: opts.DrawWindow, intn: opts.IntN},
		Stager:   &Stager{env: e, slots: opts.StagingSlots},
		Sync:     synchronizer,
		Events:   e.events,
	}
	return t
}
