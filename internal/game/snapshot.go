package game

import (
	"errors"
	"fmt"
)

// SessionSnapshot is the serialisable session state stored in Redis.
// It carries the game constants too, so a restored session keeps the rules it was
// started with even if the server config changed in between.
type SessionSnapshot struct {
	SessionID string `json:"sessionId"`
	OwnerID   string `json:"ownerId"`

	Colors     []string `json:"colors"`
	CodeLength int      `json:"codeLength"`
	Tries      int      `json:"tries"`

	Phase   Phase  `json:"phase"`
	Secret  Code   `json:"secret"`
	History []Turn `json:"history"`
	Draft   Code   `json:"draft"`
}

func (s *Session) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		SessionID: s.id,
		OwnerID:   s.ownerID,

		Colors:     s.cfg.Alphabet.Strings(),
		CodeLength: s.cfg.CodeLength,
		Tries:      s.cfg.Tries,

		Phase:   s.phase,
		Secret:  s.secret.clone(),
		History: s.historyLocked(),
		Draft:   s.draft.clone(),
	}
}

func (s *Session) restoreLocked(snap SessionSnapshot) {
	s.id = snap.SessionID
	s.ownerID = snap.OwnerID

	if len(snap.Colors) > 0 {
		alphabet := make(Alphabet, len(snap.Colors))
		for i, c := range snap.Colors {
			alphabet[i] = Color(c)
		}
		s.cfg.Alphabet = alphabet
	}
	if snap.CodeLength > 0 {
		s.cfg.CodeLength = snap.CodeLength
	}
	if snap.Tries > 0 {
		s.cfg.Tries = snap.Tries
	}

	s.phase = snap.Phase
	s.secret = snap.Secret.clone()
	s.history = make([]Turn, 0, len(snap.History))
	for _, t := range snap.History {
		s.history = append(s.history, Turn{Guess: t.Guess.clone(), Score: t.Score})
	}
	s.draft = snap.Draft.clone()
	if len(s.draft) == 0 {
		s.draft = nil
	}
}

// sessionFromSnapshot rebuilds a session; gen is used for later resets unless the
// snapshot was taken under different rules. Snapshots that could not have been
// produced by a session are rejected.
func sessionFromSnapshot(snap SessionSnapshot, cfg Config, gen CodeGenerator) (*Session, error) {
	s := &Session{cfg: cfg, gen: gen}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restoreLocked(snap)
	if err := s.checkRestoredLocked(); err != nil {
		return nil, fmt.Errorf("corrupt snapshot: %w", err)
	}
	if s.cfg.CodeLength != cfg.CodeLength || !sameAlphabet(s.cfg.Alphabet, cfg.Alphabet) {
		s.gen = NewRandomGenerator(s.cfg.Alphabet, s.cfg.CodeLength, nil)
	}
	return s, nil
}

func (s *Session) checkRestoredLocked() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.id == "" {
		return errors.New("missing session id")
	}
	switch s.phase {
	case PhaseInProgress, PhaseWon, PhaseLost:
	default:
		return fmt.Errorf("unknown phase %q", s.phase)
	}
	if err := s.checkCodeLocked("secret", s.secret); err != nil {
		return err
	}
	if len(s.history) > s.cfg.Tries {
		return fmt.Errorf("history has %d turns, tries is %d", len(s.history), s.cfg.Tries)
	}
	for i, t := range s.history {
		if err := s.checkCodeLocked(fmt.Sprintf("turn %d", i+1), t.Guess); err != nil {
			return err
		}
	}
	if len(s.draft) > s.cfg.CodeLength {
		return fmt.Errorf("draft has %d colors, code length is %d", len(s.draft), s.cfg.CodeLength)
	}
	return nil
}

func (s *Session) checkCodeLocked(what string, c Code) error {
	if len(c) != s.cfg.CodeLength {
		return fmt.Errorf("%s has %d colors, code length is %d", what, len(c), s.cfg.CodeLength)
	}
	for _, x := range c {
		if !s.cfg.Alphabet.Contains(x) {
			return fmt.Errorf("%s has unknown color %q", what, x)
		}
	}
	return nil
}

func sameAlphabet(a, b Alphabet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
