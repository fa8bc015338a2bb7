package quiz

import (
	"sort"

	"github.com/airylvat/anime-quiz-bot/logger"
)

// Snapshotter persists the whole session map. Implementations must treat a
// missing snapshot as empty and never serialize timer state.
type Snapshotter interface {
	Load() (map[string]*Session, error)
	Save(sessions map[string]*Session) error
}

// Store is the registry of sessions keyed by community id. It is not safe
// for concurrent use; Manager serializes every call.
type Store struct {
	sessions map[string]*Session
	snap     Snapshotter
}

// NewStore returns an empty store backed by snap.
func NewStore(snap Snapshotter) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		snap:     snap,
	}
}

// Load replaces the registry with the persisted snapshot. Unreadable
// snapshots are logged and the store starts empty. It returns the
// communities whose quiz was running when the snapshot was written.
func (s *Store) Load() []string {
	loaded, err := s.snap.Load()
	if err != nil {
		logger.Error("Failed to load session snapshot, starting empty", "error", err)
		s.sessions = make(map[string]*Session)
		return nil
	}

	s.sessions = make(map[string]*Session, len(loaded))
	var flagged []string
	for id, sess := range loaded {
		if sess == nil {
			continue
		}
		if sess.restore() {
			flagged = append(flagged, id)
			logger.Warn("Quiz was active before restart, needs manual start", "community", id)
		}
		s.sessions[id] = sess
	}
	sort.Strings(flagged)
	return flagged
}

// Get returns the session of a community, if any.
func (s *Store) Get(communityID string) (*Session, bool) {
	sess, ok := s.sessions[communityID]
	return sess, ok
}

// GetOrCreate returns the session of a community, creating it lazily.
func (s *Store) GetOrCreate(communityID string) *Session {
	if sess, ok := s.sessions[communityID]; ok {
		return sess
	}
	sess := NewSession()
	s.sessions[communityID] = sess
	return sess
}

// Save writes the snapshot synchronously. Failures are logged and the
// in-memory state is kept; the next mutation retries.
func (s *Store) Save() error {
	if err := s.snap.Save(s.sessions); err != nil {
		logger.Error("Failed to save session snapshot", "error", err)
		return err
	}
	return nil
}

// Prune drops sessions of communities not in active and returns them.
func (s *Store) Prune(active []string) []*Session {
	keep := make(map[string]struct{}, len(active))
	for _, id := range active {
		keep[id] = struct{}{}
	}
	var removed []*Session
	for id, sess := range s.sessions {
		if _, ok := keep[id]; !ok {
			removed = append(removed, sess)
			delete(s.sessions, id)
		}
	}
	return removed
}

// IDs returns the known community ids in sorted order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
