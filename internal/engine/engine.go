package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

// Store is the persistence port the engine operates against. *store.Store
// implements it; tests may substitute a fake. Lookups report missing records
// with an error matching store.ErrNotFound.
//
// The engine never holds ambient storage state - the port is injected at
// construction.
type Store interface {
	ScopeSnapshot(ctx context.Context, scopeType model.ScopeType, id string) (*model.ScopeSnapshot, error)
	ListEnabledRules(ctx context.Context, scope model.ScopeType) ([]model.Rule, error)
	GetTemplateByKey(ctx context.Context, key string) (*model.Template, error)
	GetTemplate(ctx context.Context, id string) (*model.Template, error)

	FindLiveByDedupeKey(ctx context.Context, dedupeKey string) (*model.TaskOccurrence, error)
	InsertOccurrence(ctx context.Context, o *model.TaskOccurrence) (created bool, stored *model.TaskOccurrence, err error)
	GetOccurrence(ctx context.Context, id string) (*model.TaskOccurrence, error)
	UpdateOccurrence(ctx context.Context, o *model.TaskOccurrence) error
	SupersedeAndInsert(ctx context.Context, finished, next *model.TaskOccurrence) (created bool, stored *model.TaskOccurrence, err error)

	GetTrackable(ctx context.Context, id string) (*model.Trackable, error)
	UpdateTrackableStatus(ctx context.Context, t *model.Trackable) error
	ListOccurrencesByTrackable(ctx context.Context, trackableID string, activeOnly bool) ([]model.TaskOccurrence, error)
	BulkArchive(ctx context.Context, ownerColumn, ownerID string, at time.Time) (int, error)
	ListArchivedPending(ctx context.Context, ownerColumn, ownerID string) ([]model.TaskOccurrence, error)
}

// Engine coordinates rule matching, instantiation, reconciliation, and
// lifecycle transitions. All methods are request-scoped and safe to retry:
// generation is idempotent via dedupe keys, and invalid transitions resolve
// to no-op results rather than errors.
type Engine struct {
	store Store
	clock Clock
	ids   IDGenerator
	log   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock (tests use testutil.FixedClock).
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator overrides occurrence ID generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger overrides the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine with the given persistence port.
// Defaults: system UTC clock, UUIDv7 IDs, a discarding logger.
func New(s Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		clock: SystemClock(),
		ids:   UUIDv7Generator{},
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
