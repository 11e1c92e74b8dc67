// Package subwizard runs a child flow that builds one sub-record (a party, a
// property, a waste line) in its own cache scope and folds it into the parent
// record when the child flow exits. A child that is never finished is never
// folded; its cache entry simply expires.
package subwizard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/metrics"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/flow"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/listing"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
	audit "github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit"
)

// Config describes how a child record relates to its parent.
type Config[P, C any] struct {
	// Name is the child scope, e.g. "party". The child cache key is the
	// parent key with this suffix.
	Name       string
	ParentFlow string
	Parent     *cache.Scoped[P]
	Child      *cache.Scoped[C]
	// New creates a fresh child with a new identifier. It sees the parent
	// and the request's route parameters, such as the site a waste line
	// belongs to, and may refuse.
	New func(p *P, in *engine.Input) (*C, error)
	ID  func(c *C) domain.RecordID
	// Lookup finds an existing child in the parent by identifier.
	Lookup func(p *P, id domain.RecordID) (C, bool)
	// Collection returns the parent collection c belongs in.
	Collection func(p *P, c *C) (*[]C, error)
	// AfterFold recomputes parent values that depend on the collection.
	AfterFold func(ctx context.Context, p *P) error
}

// Bridge moves a child record between its own cache scope and the parent.
type Bridge[P, C any] struct {
	cfg     Config[P, C]
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
}

// New returns a bridge. It reuses the engine's options for logging, metrics
// and audit.
func New[P, C any](cfg Config[P, C], opts ...engine.Option) *Bridge[P, C] {
	o := engine.Options(opts...)
	return &Bridge[P, C]{cfg: cfg, logger: o.Logger, metrics: o.Metrics, audit: o.Audit}
}

// ParentKey is the parent record's cache key.
func (b *Bridge[P, C]) ParentKey(session string) cache.Key {
	return cache.NewKey(b.cfg.ParentFlow, session)
}

// Key is the child's cache key, derived from the parent's.
func (b *Bridge[P, C]) Key(session string) cache.Key {
	return b.ParentKey(session).Child(b.cfg.Name)
}

// Setup resolves the child for a request. "new" starts a fresh child, a
// concrete identifier copies that child out of the parent, and an absent
// identifier (or a continuation after an external round trip) re-enters the
// child cache without consulting the parent. Nothing is written here.
func (b *Bridge[P, C]) Setup(ctx context.Context, in *engine.Input) (*C, error) {
	if in.Continue || in.RecordID == "" {
		c, found, err := b.cfg.Child.Get(ctx, b.Key(in.Session))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load child record")
		}
		if !found {
			return nil, engine.ExpiredSession(b.cfg.ParentFlow + "/" + b.cfg.Name)
		}
		return c, nil
	}

	parent, err := b.parent(ctx, in.Session)
	if err != nil {
		return nil, err
	}
	if in.RecordID == engine.NewRecord {
		return b.cfg.New(parent, in)
	}
	id, err := domain.ParseRecordID(in.RecordID)
	if err != nil {
		return nil, err
	}
	existing, ok := b.cfg.Lookup(parent, id)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("%s %s not found", b.cfg.Name, id))
	}
	return &existing, nil
}

// Fold writes the finished child into its parent collection, keyed by its
// identifier, and clears the child scope.
func (b *Bridge[P, C]) Fold(ctx context.Context, session string, c *C) error {
	parent, err := b.parent(ctx, session)
	if err != nil {
		return err
	}
	coll, err := b.cfg.Collection(parent, c)
	if err != nil {
		return err
	}
	*coll = listing.Upsert(*coll, *c, b.cfg.ID)
	if b.cfg.AfterFold != nil {
		if err := b.cfg.AfterFold(ctx, parent); err != nil {
			return err
		}
	}
	if err := b.cfg.Parent.Put(ctx, b.ParentKey(session), parent); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save parent record")
	}
	if err := b.End(ctx, session); err != nil {
		return err
	}
	if b.metrics != nil {
		b.metrics.IncChildFold(b.cfg.ParentFlow)
	}
	b.emit(ctx, audit.EventChildFolded, session, b.cfg.ID(c).String())
	b.logger.InfoContext(ctx, "child record folded into parent",
		"flow", b.cfg.ParentFlow,
		"child", b.cfg.Name,
	)
	return nil
}

// OnExit adapts Fold to a child flow's exit hook.
func (b *Bridge[P, C]) OnExit(ctx context.Context, in *engine.Input, c *C, dest flow.Destination) (flow.Destination, error) {
	if err := b.Fold(ctx, in.Session, c); err != nil {
		return flow.Destination{}, err
	}
	return dest, nil
}

// End discards the child scope.
func (b *Bridge[P, C]) End(ctx context.Context, session string) error {
	if err := b.cfg.Child.Delete(ctx, b.Key(session)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "clear child record")
	}
	return nil
}

// Delete removes the child with id from the parent.
func (b *Bridge[P, C]) Delete(ctx context.Context, session string, rawID string) error {
	id, err := domain.ParseRecordID(rawID)
	if err != nil {
		return err
	}
	parent, err := b.parent(ctx, session)
	if err != nil {
		return err
	}
	existing, ok := b.cfg.Lookup(parent, id)
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("%s %s not found", b.cfg.Name, id))
	}
	coll, err := b.cfg.Collection(parent, &existing)
	if err != nil {
		return err
	}
	updated, err := listing.DeleteByID(*coll, id, b.cfg.ID)
	if err != nil {
		return err
	}
	*coll = updated
	if b.cfg.AfterFold != nil {
		if err := b.cfg.AfterFold(ctx, parent); err != nil {
			return err
		}
	}
	if err := b.cfg.Parent.Put(ctx, b.ParentKey(session), parent); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save parent record")
	}
	b.emit(ctx, audit.EventChildDeleted, session, id.String())
	return nil
}

func (b *Bridge[P, C]) parent(ctx context.Context, session string) (*P, error) {
	if session == "" {
		return nil, engine.ExpiredSession(b.cfg.ParentFlow)
	}
	p, found, err := b.cfg.Parent.Get(ctx, b.ParentKey(session))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load parent record")
	}
	if !found {
		return nil, engine.ExpiredSession(b.cfg.ParentFlow)
	}
	return p, nil
}

func (b *Bridge[P, C]) emit(ctx context.Context, event audit.EventType, session, detail string) {
	if err := b.audit.Emit(ctx, audit.Event{
		Type:    event,
		Flow:    b.cfg.ParentFlow,
		Step:    b.cfg.Name,
		Session: session,
		Detail:  detail,
	}); err != nil {
		b.logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}
