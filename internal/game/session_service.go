package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const persistTimeout = 2 * time.Second

// SessionService keeps live sessions in memory and restores them from persistence
// after a restart.
type SessionService struct {
	mu sync.Mutex
	in map[string]*Session

	// restore and delete of one id are serialised on its idLock
	idLocks map[string]*idLock

	cfg     Config
	gen     CodeGenerator
	persist SessionPersistence
	log     *slog.Logger
}

// NewSessionService wires a service. gen may be nil for a random generator over cfg.
func NewSessionService(cfg Config, gen CodeGenerator, persist SessionPersistence, log *slog.Logger) *SessionService {
	if gen == nil {
		gen = NewRandomGenerator(cfg.Alphabet, cfg.CodeLength, nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionService{
		in:      make(map[string]*Session),
		idLocks: make(map[string]*idLock),
		cfg:     cfg,
		gen:     gen,
		persist: persist,
		log:     log,
	}
}

func (s *SessionService) Config() Config { return s.cfg }

func (s *SessionService) Create(ctx context.Context, ownerID string) (*Session, error) {
	id := s.newID()
	sess := NewSession(id, ownerID, s.cfg, s.gen)

	sess.mu.Lock()
	snap := sess.snapshotLocked()
	sess.mu.Unlock()
	if err := s.persist.Save(ctx, id, snap); err != nil {
		return nil, fmt.Errorf("save new session: %w", err)
	}

	sess.onPersist = s.persistHook(id)

	s.mu.Lock()
	s.in[id] = sess
	s.mu.Unlock()

	s.log.Info("session created", "session_id", id, "owner_id", ownerID)
	return sess, nil
}

func (s *SessionService) GetOrLoad(ctx context.Context, sessionID string) (*Session, bool, error) {
	if sess, ok := s.cached(sessionID); ok {
		return sess, true, nil
	}

	unlock := s.lockID(sessionID)
	defer unlock()

	// restored by another caller while we waited
	if sess, ok := s.cached(sessionID); ok {
		return sess, true, nil
	}

	snap, found, err := s.persist.Load(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !found {
		return nil, false, nil
	}

	sess, err := sessionFromSnapshot(snap, s.cfg, s.gen)
	if err != nil {
		return nil, false, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	sess.onPersist = s.persistHook(sessionID)

	s.mu.Lock()
	s.in[sessionID] = sess
	s.mu.Unlock()

	s.log.Info("session restored", "session_id", sessionID, "phase", snap.Phase)
	return sess, true, nil
}

// Delete drops a session from memory and persistence. Open connections keep their
// pointer but nothing they do is saved any more.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	unlock := s.lockID(sessionID)
	defer unlock()

	s.mu.Lock()
	sess, ok := s.in[sessionID]
	delete(s.in, sessionID)
	s.mu.Unlock()

	if ok {
		sess.mu.Lock()
		sess.onPersist = nil
		sess.mu.Unlock()
	}

	if err := s.persist.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	s.log.Info("session deleted", "session_id", sessionID)
	return nil
}

func (s *SessionService) cached(sessionID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.in[sessionID]
	return sess, ok
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

// lockID takes the per-id lock; the returned func releases it and drops the entry
// once no one else is waiting.
func (s *SessionService) lockID(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.idLocks[sessionID]
	if !ok {
		l = &idLock{}
		s.idLocks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.idLocks, sessionID)
		}
		s.mu.Unlock()
	}
}

// persistHook runs under the session lock, so snapshots land in mutation order.
func (s *SessionService) persistHook(sessionID string) func(SessionSnapshot) {
	return func(snap SessionSnapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.persist.Save(ctx, sessionID, snap); err != nil {
			s.log.Error("persist session", "session_id", sessionID, "error", err)
		}
	}
}

func (s *SessionService) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id := randID(12)
		if _, taken := s.in[id]; !taken {
			return id
		}
	}
}
