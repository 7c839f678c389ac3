// Package session tracks save sessions: short-lived records linking a
// caller-chosen token to the items created by related save calls, so a
// follow-up update can retarget those items without re-submitting the
// page.
package session

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"folio/internal/config"
	"folio/internal/destination"
	"folio/internal/library"
	"folio/internal/logging"
	"folio/internal/services"
)

// ItemMutator is the subset of the library store the registry needs to
// apply session updates.
type ItemMutator interface {
	ItemByID(ctx context.Context, id int64) (*library.Item, error)
	AddToCollection(ctx context.Context, collectionID, itemID int64) error
	AddTags(ctx context.Context, itemID int64, tags ...string) error
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID          string
	Destination destination.Destination
	ItemIDs     []int64
	CreatedAt   time.Time
	LastUsed    time.Time
}

type sessionState struct {
	mu        sync.Mutex
	id        string
	dest      destination.Destination
	itemIDs   []int64
	createdAt time.Time
	lastUsed  time.Time
	evicted   bool
}

// Registry is the process-wide save session table. Mutations on one
// session are serialized on a per-session lock; sessions do not block
// each other.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	store      ItemMutator
	idle       time.Duration
	maxCount   int
	sweepEvery time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewRegistry constructs a registry using the session limits from cfg.
func NewRegistry(store ItemMutator, cfg *config.Config, logger *slog.Logger) *Registry {
	return &Registry{
		sessions:   make(map[string]*sessionState),
		store:      store,
		idle:       time.Duration(cfg.Sessions.IdleTimeoutSeconds) * time.Second,
		maxCount:   cfg.Sessions.MaxSessions,
		sweepEvery: time.Duration(cfg.Sessions.SweepIntervalSeconds) * time.Second,
		logger:     logging.NewComponentLogger(logger, "session"),
		now:        time.Now,
	}
}

// Begin ensures a session exists for id. Calling Begin on an existing
// session reuses it and leaves its destination untouched.
func (r *Registry) Begin(id string, dest destination.Destination) {
	if id == "" {
		return
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		existing.mu.Lock()
		if !existing.evicted {
			existing.lastUsed = now
			existing.mu.Unlock()
			return
		}
		existing.mu.Unlock()
	}
	r.sessions[id] = &sessionState{
		id:        id,
		dest:      dest,
		createdAt: now,
		lastUsed:  now,
	}
	r.logger.Debug("session opened", logging.String(logging.FieldSessionID, id))
}

// RecordItems appends item identifiers to a session in call order. An
// unknown session is a no-op, so update callers can distinguish
// "unknown session" from "empty session".
func (r *Registry) RecordItems(id string, itemIDs ...int64) {
	if id == "" || len(itemIDs) == 0 {
		return
	}
	sess := r.get(id)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return
	}
	sess.itemIDs = append(sess.itemIDs, itemIDs...)
	sess.lastUsed = r.now()
}

// Lookup returns a snapshot of the session if present.
func (r *Registry) Lookup(id string) (Snapshot, bool) {
	sess := r.get(id)
	if sess == nil {
		return Snapshot{}, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return Snapshot{}, false
	}
	return sess.snapshotLocked(), true
}

// Destination returns the destination recorded when the session was
// opened.
func (r *Registry) Destination(id string) (destination.Destination, bool) {
	snap, ok := r.Lookup(id)
	if !ok {
		return destination.Destination{}, false
	}
	return snap.Destination, true
}

// Update applies a collection target and tags to every item recorded
// under the session. Collections are added to top-level items only;
// tags are added to all items. Returns the affected item identifiers,
// or ErrNotFound when the session is unknown or evicted.
func (r *Registry) Update(ctx context.Context, id string, collectionID *int64, tagsCSV string) ([]int64, error) {
	sess := r.get(id)
	if sess == nil {
		return nil, services.Wrap(services.ErrNotFound, "session", "update", "unknown session "+id, nil)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return nil, services.Wrap(services.ErrNotFound, "session", "update", "unknown session "+id, nil)
	}

	tags := ParseTags(tagsCSV)
	affected := make([]int64, 0, len(sess.itemIDs))
	for _, itemID := range sess.itemIDs {
		item, err := r.store.ItemByID(ctx, itemID)
		if err != nil {
			return nil, services.Wrap(nil, "session", "update", "load item", err)
		}
		if item == nil {
			continue
		}
		if collectionID != nil && item.ParentID == nil {
			if err := r.store.AddToCollection(ctx, *collectionID, itemID); err != nil {
				return nil, services.Wrap(nil, "session", "update", "add to collection", err)
			}
		}
		if len(tags) > 0 {
			if err := r.store.AddTags(ctx, itemID, tags...); err != nil {
				return nil, services.Wrap(nil, "session", "update", "add tags", err)
			}
		}
		affected = append(affected, itemID)
	}

	sess.lastUsed = r.now()
	return affected, nil
}

// Snapshots returns every live session, newest first.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	states := make([]*sessionState, 0, len(r.sessions))
	for _, sess := range r.sessions {
		states = append(states, sess)
	}
	r.mu.Unlock()

	snaps := make([]Snapshot, 0, len(states))
	for _, sess := range states {
		sess.mu.Lock()
		if !sess.evicted {
			snaps = append(snaps, sess.snapshotLocked())
		}
		sess.mu.Unlock()
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].LastUsed.After(snaps[j].LastUsed) })
	return snaps
}

// Run sweeps idle sessions until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	interval := r.sweepEvery
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			if evicted := r.Sweep(r.now()); evicted > 0 {
				r.logger.Debug("sessions evicted", logging.Int("count", evicted))
			}
		}
	}
}

// Sweep evicts sessions idle past the timeout and, when the table
// exceeds its cap, the least recently used sessions beyond it. Returns
// the number evicted. Eviction waits on each session's lock, so a
// session is never evicted mid-update.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	candidates := make([]*sessionState, 0, len(r.sessions))
	for _, sess := range r.sessions {
		candidates = append(candidates, sess)
	}
	r.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		return lastUsed(candidates[i]).Before(lastUsed(candidates[j]))
	})

	cutoff := now.Add(-r.idle)
	evicted := 0
	for _, sess := range candidates {
		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		stale := sess.lastUsed.Before(cutoff)
		overCap := len(candidates)-evicted > r.maxCount
		if stale || overCap {
			sess.evicted = true
			evicted++
			r.logger.Debug("session evicted",
				logging.String(logging.FieldSessionID, sess.id),
				logging.Bool("idle", stale),
			)
		}
		sess.mu.Unlock()
	}

	if evicted > 0 {
		r.mu.Lock()
		for id, sess := range r.sessions {
			sess.mu.Lock()
			gone := sess.evicted
			sess.mu.Unlock()
			if gone {
				delete(r.sessions, id)
			}
		}
		r.mu.Unlock()
	}
	return evicted
}

func (r *Registry) get(id string) *sessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (s *sessionState) snapshotLocked() Snapshot {
	ids := make([]int64, len(s.itemIDs))
	copy(ids, s.itemIDs)
	return Snapshot{
		ID:          s.id,
		Destination: s.dest,
		ItemIDs:     ids,
		CreatedAt:   s.createdAt,
		LastUsed:    s.lastUsed,
	}
}

func lastUsed(s *sessionState) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// ParseTags splits a comma-separated tag list, trimming whitespace and
// dropping empty segments.
func ParseTags(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
