// Package cache holds the read-through cache of the remote flow topology.
//
// One Cache instance is shared by every concurrent ask pipeline. Reads take
// a shared lock; refreshes and invalidations take the write lock. Refresh
// results replace the affected scope wholesale (never merged field-by-field)
// and are timestamp-guarded: a refresh that started before the currently
// applied snapshot for its scope is discarded, so a slow fetch can never
// clobber newer data.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"flowchat/internal/flow"
)

// Fetcher supplies the current entities under a scope from the remote API.
// An empty scope means the whole flow.
type Fetcher interface {
	FetchScope(ctx context.Context, scope string) ([]flow.Entity, error)
}

// Cache is the shared remote-state cache.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration

	mu       sync.RWMutex
	entities map[string]flow.Entity
	// byName indexes lowercased names to the set of entity IDs carrying
	// them; names are not unique.
	byName map[string]map[string]struct{}
	// scopeOf records which scope each entity was loaded under, so a scope
	// refresh can replace exactly its own slice.
	scopeOf map[string]string
	// refreshedAt is the per-scope snapshot timestamp used both for TTL
	// staleness and for discarding out-of-order refresh results.
	refreshedAt map[string]time.Time
}

// New creates a Cache backed by fetcher with the given freshness window.
func New(fetcher Fetcher, ttl time.Duration) *Cache {
	return &Cache{
		fetcher:     fetcher,
		ttl:         ttl,
		entities:    make(map[string]flow.Entity),
		byName:      make(map[string]map[string]struct{}),
		scopeOf:     make(map[string]string),
		refreshedAt: make(map[string]time.Time),
	}
}

// Resolve looks up entities by ID or name, optionally narrowed by a type
// hint. When the cache is stale or has no match, one refresh of the root
// scope is attempted before the lookup is retried. If the remote is
// unreachable during that refresh, the best-effort stale result is returned
// with stale=true; callers must check the flag.
func (c *Cache) Resolve(ctx context.Context, nameOrID string, hint flow.EntityType) (ents []flow.Entity, stale bool, err error) {
	found := c.lookup(nameOrID, hint)
	if len(found) > 0 && c.Fresh(flow.RootGroupID) {
		return found, false, nil
	}

	if refreshErr := c.Refresh(ctx, flow.RootGroupID); refreshErr != nil {
		slog.Warn("cache: refresh failed, serving stale data",
			"target", nameOrID, "err", refreshErr)
		return found, true, refreshErr
	}

	return c.lookup(nameOrID, hint), false, nil
}

// lookup checks the ID map first, then the name index (case-insensitive).
func (c *Cache) lookup(nameOrID string, hint flow.EntityType) []flow.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entities[nameOrID]; ok {
		if hint == "" || e.Type == hint {
			return []flow.Entity{e}
		}
	}

	ids, ok := c.byName[strings.ToLower(nameOrID)]
	if !ok {
		return nil
	}
	var out []flow.Entity
	for id := range ids {
		e := c.entities[id]
		if hint == "" || e.Type == hint {
			out = append(out, e)
		}
	}
	return out
}

// EntitiesIn returns the cached entities directly under scope, optionally
// filtered by type. It does not trigger a refresh; callers wanting fresh
// data call Refresh first.
func (c *Cache) EntitiesIn(scope string, t flow.EntityType) []flow.Entity {
	if scope == "" {
		scope = flow.RootGroupID
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []flow.Entity
	for _, e := range c.entities {
		if e.ParentID != scope {
			continue
		}
		if t != "" && e.Type != t {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Fresh reports whether the scope's snapshot is within the TTL.
func (c *Cache) Fresh(scope string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	at, ok := c.refreshedAt[scope]
	return ok && time.Since(at) < c.ttl
}

// Refresh fetches the current entities for scope (the whole flow when scope
// is the root) and replaces the scope's cache slice wholesale. Results that
// lost a race against a newer refresh are discarded.
func (c *Cache) Refresh(ctx context.Context, scope string) error {
	if scope == "" {
		scope = flow.RootGroupID
	}
	started := time.Now()

	ents, err := c.fetcher.FetchScope(ctx, scope)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Timestamp guard: someone applied a newer snapshot while this fetch
	// was in flight.
	if applied, ok := c.refreshedAt[scope]; ok && applied.After(started) {
		slog.Debug("cache: discarding out-of-order refresh", "scope", scope)
		return nil
	}

	c.evictScopeLocked(scope)
	for _, e := range ents {
		c.insertLocked(scope, e)
	}
	c.refreshedAt[scope] = started
	return nil
}

// Invalidate drops every snapshot holding state for the given group so the
// next Resolve re-fetches. Called by the dispatcher after a successful
// mutating operation.
//
// Entities inside a nested group are usually loaded under an enclosing
// snapshot (Resolve walks the whole flow from the root), so dropping the
// group's own snapshot is not enough: the snapshots those entities were
// loaded under go too, or the pre-mutation state would survive until the
// TTL expires.
func (c *Cache) Invalidate(scope string) {
	if scope == "" {
		scope = flow.RootGroupID
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := map[string]struct{}{scope: {}}
	for id, e := range c.entities {
		if e.ParentID == scope {
			stale[c.scopeOf[id]] = struct{}{}
		}
	}
	for s := range stale {
		c.evictScopeLocked(s)
		delete(c.refreshedAt, s)
	}
}

// evictScopeLocked removes every entity loaded under scope. Caller holds
// the write lock.
func (c *Cache) evictScopeLocked(scope string) {
	for id, s := range c.scopeOf {
		if s != scope {
			continue
		}
		e := c.entities[id]
		delete(c.entities, id)
		delete(c.scopeOf, id)
		key := strings.ToLower(e.Name)
		if ids, ok := c.byName[key]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(c.byName, key)
			}
		}
	}
}

// insertLocked adds one entity under scope, keeping the name index in step
// with the primary map. Caller holds the write lock.
func (c *Cache) insertLocked(scope string, e flow.Entity) {
	c.entities[e.ID] = e
	c.scopeOf[e.ID] = scope
	key := strings.ToLower(e.Name)
	if key == "" {
		return
	}
	if c.byName[key] == nil {
		c.byName[key] = make(map[string]struct{})
	}
	c.byName[key][e.ID] = struct{}{}
}
