package interview

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/frymyresume/interviewd/internal/logger"
)

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

type registryEntry struct {
	session *Session
	cancel  context.CancelFunc
	added   time.Time
}

// Registry tracks live sessions and evicts them by count and age. Evicted
// sessions are cancelled, which tears down their connections.
type Registry struct {
	mu      sync.Mutex
	entries map[string]registryEntry

	maxSessions int
	maxAge      time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewRegistry creates an empty registry. Non-positive bounds disable the
// corresponding eviction.
func NewRegistry(cfg RegistryConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries:     make(map[string]registryEntry),
		maxSessions: cfg.MaxSessions,
		maxAge:      cfg.MaxAge,
		now:         time.Now,
		logger:      logger,
	}
}

// Register adds session. When the registry is full the oldest session is
// evicted first.
func (r *Registry) Register(session *Session, cancel context.CancelFunc) {
	r.mu.Lock()
	var evicted []registryEntry
	for r.maxSessions > 0 && len(r.entries) >= r.maxSessions {
		oldest, ok := r.oldestLocked()
		if !ok {
			break
		}
		evicted = append(evicted, r.entries[oldest])
		delete(r.entries, oldest)
	}
	r.entries[session.ID()] = registryEntry{session: session, cancel: cancel, added: r.now()}
	r.mu.Unlock()

	for _, entry := range evicted {
		r.logger.Warn("session evicted, registry full", zap.String(logger.FieldSession, entry.session.ID()))
		entry.cancel()
	}
}

// Remove forgets the session with id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshots lists live sessions, oldest first.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	entries := make([]registryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].added.Equal(entries[j].added) {
			return entries[i].session.ID() < entries[j].session.ID()
		}
		return entries[i].added.Before(entries[j].added)
	})

	snapshots := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		snapshots = append(snapshots, entry.session.Snapshot())
	}
	return snapshots
}

// Sweep evicts sessions older than the configured maximum age and returns how
// many were evicted.
func (r *Registry) Sweep() int {
	if r.maxAge <= 0 {
		return 0
	}

	now := r.now()
	r.mu.Lock()
	var expired []registryEntry
	for id, entry := range r.entries {
		if now.Sub(entry.added) > r.maxAge {
			expired = append(expired, entry)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, entry := range expired {
		r.logger.Warn("session evicted, max age exceeded", zap.String(logger.FieldSession, entry.session.ID()))
		entry.cancel()
	}
	return len(expired)
}

// Start sweeps expired sessions every interval until ctx is done.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.maxAge <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

func (r *Registry) oldestLocked() (string, bool) {
	var (
		oldestID string
		oldestAt time.Time
		found    bool
	)
	for id, entry := range r.entries {
		if !found || entry.added.Before(oldestAt) || (entry.added.Equal(oldestAt) && id < oldestID) {
			oldestID, oldestAt, found = id, entry.added, true
		}
	}
	return oldestID, found
}
