package learning

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/khanglvm/genloop/internal/storage"
)

const (
	// DefaultSessionTTL is how long a session's last generation is remembered.
	DefaultSessionTTL = 30 * time.Minute

	// DefaultMaxSessions bounds the number of remembered sessions.
	DefaultMaxSessions = 1024
)

// SessionStore remembers the most recent generation of each session so
// the next one can be compared against it.
type SessionStore interface {
	// Last returns the most recent generation of a session.
	Last(sessionID string) (storage.Generation, bool)
	// Remember makes g the most recent generation of its session.
	Remember(g storage.Generation)
	// Lookup finds a remembered generation by id.
	Lookup(generationID string) (storage.Generation, bool)
	Clear()
	Len() int
}

// CacheSessionStore is a SessionStore with TTL expiry and a bounded size.
// When full, the entry closest to expiry is evicted.
type CacheSessionStore struct {
	mu          sync.Mutex
	sessions    *cache.Cache
	generations *cache.Cache
	ttl         time.Duration
	maxEntries  int
}

var _ SessionStore = (*CacheSessionStore)(nil)

// NewSessionStore creates a cache-backed session store. Non-positive
// arguments use the defaults.
func NewSessionStore(ttl time.Duration, maxEntries int) *CacheSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxSessions
	}
	return &CacheSessionStore{
		sessions:    cache.New(ttl, ttl/2),
		generations: cache.New(ttl, ttl/2),
		ttl:         ttl,
		maxEntries:  maxEntries,
	}
}

func (s *CacheSessionStore) Last(sessionID string) (storage.Generation, bool) {
	if x, found := s.sessions.Get(sessionID); found {
		return x.(storage.Generation), true
	}
	return storage.Generation{}, false
}

func (s *CacheSessionStore) Remember(g storage.Generation) {
	if g.SessionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, found := s.sessions.Get(g.SessionID); found {
		s.generations.Delete(prev.(storage.Generation).ID)
	} else if s.sessions.ItemCount() >= s.maxEntries {
		s.evictOldest()
	}

	s.sessions.Set(g.SessionID, g, cache.DefaultExpiration)
	if g.ID != "" {
		s.generations.Set(g.ID, g, cache.DefaultExpiration)
	}
}

func (s *CacheSessionStore) Lookup(generationID string) (storage.Generation, bool) {
	if x, found := s.generations.Get(generationID); found {
		return x.(storage.Generation), true
	}
	return storage.Generation{}, false
}

func (s *CacheSessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Flush()
	s.generations.Flush()
}

func (s *CacheSessionStore) Len() int {
	return s.sessions.ItemCount()
}

// evictOldest drops the session that expires first, which is the one
// remembered longest ago. Callers must hold s.mu.
func (s *CacheSessionStore) evictOldest() {
	s.sessions.DeleteExpired()
	s.generations.DeleteExpired()
	if s.sessions.ItemCount() < s.maxEntries {
		return
	}

	var oldestKey string
	var oldest int64
	for key, item := range s.sessions.Items() {
		if oldestKey == "" || item.Expiration < oldest {
			oldestKey, oldest = key, item.Expiration
		}
	}
	if oldestKey == "" {
		return
	}
	if x, found := s.sessions.Get(oldestKey); found {
		s.generations.Delete(x.(storage.Generation).ID)
	}
	s.sessions.Delete(oldestKey)
}
