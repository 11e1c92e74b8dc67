package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/sentinel"
)

var tracer = otel.Tracer("portal/wizard/cache")

// Entry is what is actually cached: the whole object graph plus the errors of
// the last failed submit, so a re-render shows them next to the fields.
type Entry[T any] struct {
	Data      *T                `json:"data"`
	Errors    validation.Errors `json:"errors,omitempty"`
	Step      string            `json:"step,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Scoped is a typed view of a Store for one kind of object. Values are
// serialized whole; a partial update is load, mutate, store.
type Scoped[T any] struct {
	store Store
	ttl   time.Duration
}

// NewScoped returns a typed cache whose entries live for ttl after each write.
func NewScoped[T any](store Store, ttl time.Duration) *Scoped[T] {
	return &Scoped[T]{store: store, ttl: ttl}
}

// TTL returns the idle lifetime of entries.
func (c *Scoped[T]) TTL() time.Duration {
	return c.ttl
}

// Load returns the entry for key. found is false when the entry is absent or
// expired; that is not an error.
func (c *Scoped[T]) Load(ctx context.Context, key Key) (entry Entry[T], found bool, err error) {
	ctx, span := tracer.Start(ctx, "cache.load", trace.WithAttributes(attribute.String("wizard.flow", key.Flow)))
	defer span.End()

	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return Entry[T]{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return Entry[T]{}, false, err
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		span.RecordError(err)
		return Entry[T]{}, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if entry.Data == nil {
		return Entry[T]{}, false, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return entry, true, nil
}

// Get is Load without the envelope.
func (c *Scoped[T]) Get(ctx context.Context, key Key) (*T, bool, error) {
	entry, found, err := c.Load(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	return entry.Data, true, nil
}

// Save replaces the entry for key and resets its expiry.
func (c *Scoped[T]) Save(ctx context.Context, key Key, entry Entry[T]) error {
	ctx, span := tracer.Start(ctx, "cache.save", trace.WithAttributes(attribute.String("wizard.flow", key.Flow)))
	defer span.End()

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := c.store.Put(ctx, key, raw, c.ttl); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Put stores value with no errors attached.
func (c *Scoped[T]) Put(ctx context.Context, key Key, value *T) error {
	return c.Save(ctx, key, Entry[T]{Data: value})
}

// Delete removes the entry. Deleting an absent entry is not an error.
func (c *Scoped[T]) Delete(ctx context.Context, key Key) error {
	ctx, span := tracer.Start(ctx, "cache.delete", trace.WithAttributes(attribute.String("wizard.flow", key.Flow)))
	defer span.End()
	return c.store.Delete(ctx, key)
}
