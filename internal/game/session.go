package game

import (
	"errors"
	"fmt"
	"sync"
)

// Phase of a session. in_progress is the only phase that accepts guesses.
type Phase string

const (
	PhaseInProgress Phase = "in_progress"
	PhaseWon        Phase = "won"
	PhaseLost       Phase = "lost"
)

func (p Phase) Terminal() bool { return p == PhaseWon || p == PhaseLost }

var (
	// ErrInvalidGuess is the umbrella for malformed guesses; match with errors.Is.
	ErrInvalidGuess   = errors.New("invalid guess")
	ErrLengthMismatch = fmt.Errorf("%w: length mismatch", ErrInvalidGuess)
	ErrUnknownColor   = fmt.Errorf("%w: unknown color", ErrInvalidGuess)

	ErrDraftFull         = errors.New("draft already holds a full code")
	ErrSessionTerminated = errors.New("session is finished, reset to play again")
)

// Config holds the game constants shared by every session of a service.
type Config struct {
	Alphabet   Alphabet
	CodeLength int
	Tries      int
}

func DefaultConfig() Config {
	return Config{
		Alphabet:   DefaultAlphabet,
		CodeLength: 4,
		Tries:      10,
	}
}

func (c Config) Validate() error {
	if len(c.Alphabet) == 0 {
		return errors.New("game: alphabet is empty")
	}
	if c.CodeLength <= 0 {
		return fmt.Errorf("game: code length must be positive, got %d", c.CodeLength)
	}
	if c.Tries <= 0 {
		return fmt.Errorf("game: tries must be positive, got %d", c.Tries)
	}
	return nil
}

// Turn is one scored attempt. Never mutated after it is appended.
type Turn struct {
	Guess Code `json:"guess"`
	Score
}

// Session is one player's game. All access goes through mu, so a reader never sees a
// new secret paired with old history.
type Session struct {
	id      string
	ownerID string

	mu sync.Mutex

	cfg Config
	gen CodeGenerator

	phase   Phase
	secret  Code
	history []Turn
	draft   Code

	onPersist func(SessionSnapshot)
}

func NewSession(id, ownerID string, cfg Config, gen CodeGenerator) *Session {
	s := &Session{
		id:      id,
		ownerID: ownerID,
		cfg:     cfg,
		gen:     gen,
	}
	s.resetLocked()
	return s
}

func (s *Session) ID() string      { return s.id }
func (s *Session) OwnerID() string { return s.ownerID }

// Config returns the rules this session plays by; fixed at construction.
func (s *Session) Config() Config { return s.cfg }

// SubmitGuess scores guess and appends it to the history.
// A rejected call leaves the session untouched.
func (s *Session) SubmitGuess(guess Code) (Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.submitLocked(guess)
}

// Reset starts a new game with a fresh secret, from any phase.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.persistLocked()
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

func (s *Session) TriesRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triesRemainingLocked()
}

// State is a consistent view for rendering. The secret is only included once the
// game is over.
func (s *Session) State() StatePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildStateLocked()
}

// PickColor appends c to the guess being built.
func (s *Session) PickColor(c Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseInProgress {
		return ErrSessionTerminated
	}
	if !s.cfg.Alphabet.Contains(c) {
		return fmt.Errorf("%w: %q", ErrUnknownColor, c)
	}
	if len(s.draft) >= s.cfg.CodeLength {
		return ErrDraftFull
	}

	s.draft = append(s.draft, c)
	s.persistLocked()
	return nil
}

// UndoColor drops the last picked color; no-op on an empty draft.
func (s *Session) UndoColor() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseInProgress {
		return ErrSessionTerminated
	}
	if len(s.draft) == 0 {
		return nil
	}

	s.draft = s.draft[:len(s.draft)-1]
	s.persistLocked()
	return nil
}

// SubmitDraft submits the guess built with PickColor. The draft must be complete.
func (s *Session) SubmitDraft() (Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guess, err := s.completeDraftLocked()
	if err != nil {
		return Score{}, err
	}
	return s.submitLocked(guess)
}

// submitAndState scores guess and returns the recorded turn with the view right after
// it, both taken under one lock.
func (s *Session) submitAndState(guess Code) (Turn, StatePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.submitTurnLocked(guess)
}

// submitDraftAndState is submitAndState for the draft.
func (s *Session) submitDraftAndState() (Turn, StatePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guess, err := s.completeDraftLocked()
	if err != nil {
		return Turn{}, StatePayload{}, err
	}
	return s.submitTurnLocked(guess)
}

func (s *Session) submitTurnLocked(guess Code) (Turn, StatePayload, error) {
	if _, err := s.submitLocked(guess); err != nil {
		return Turn{}, StatePayload{}, err
	}
	last := s.history[len(s.history)-1]
	return Turn{Guess: last.Guess.clone(), Score: last.Score}, s.buildStateLocked(), nil
}

func (s *Session) completeDraftLocked() (Code, error) {
	if s.phase != PhaseInProgress {
		return nil, ErrSessionTerminated
	}
	if len(s.draft) != s.cfg.CodeLength {
		return nil, fmt.Errorf("%w: draft has %d of %d colors", ErrInvalidGuess, len(s.draft), s.cfg.CodeLength)
	}
	return s.draft.clone(), nil
}

func (s *Session) submitLocked(guess Code) (Score, error) {
	if s.phase != PhaseInProgress || len(s.history) >= s.cfg.Tries {
		return Score{}, ErrSessionTerminated
	}
	if len(guess) != s.cfg.CodeLength {
		return Score{}, fmt.Errorf("%w: guess must have %d colors, got %d", ErrInvalidGuess, s.cfg.CodeLength, len(guess))
	}
	for _, c := range guess {
		if !s.cfg.Alphabet.Contains(c) {
			return Score{}, fmt.Errorf("%w: %q", ErrUnknownColor, c)
		}
	}

	score, err := Evaluate(guess, s.secret)
	if err != nil {
		return Score{}, err
	}

	g := guess.clone()
	s.history = append(s.history, Turn{Guess: g, Score: score})
	s.draft = nil

	// win is checked first: a correct guess on the last try is a win
	switch {
	case g.Equal(s.secret):
		s.phase = PhaseWon
	case len(s.history) == s.cfg.Tries:
		s.phase = PhaseLost
	}

	s.persistLocked()
	return score, nil
}

func (s *Session) resetLocked() {
	secret := s.gen.Generate()
	if len(secret) != s.cfg.CodeLength {
		panic(fmt.Sprintf("game: generator returned %d colors, want %d", len(secret), s.cfg.CodeLength))
	}

	s.secret = secret
	s.history = nil
	s.draft = nil
	s.phase = PhaseInProgress
}

func (s *Session) historyLocked() []Turn {
	out := make([]Turn, len(s.history))
	for i, t := range s.history {
		out[i] = Turn{Guess: t.Guess.clone(), Score: t.Score}
	}
	return out
}

func (s *Session) triesRemainingLocked() int {
	n := s.cfg.Tries - len(s.history)
	if n < 0 {
		return 0
	}
	return n
}

func (s *Session) buildStateLocked() StatePayload {
	st := StatePayload{
		SessionID:      s.id,
		Phase:          s.phase,
		Colors:         s.cfg.Alphabet.Strings(),
		CodeLength:     s.cfg.CodeLength,
		Tries:          s.cfg.Tries,
		TriesRemaining: s.triesRemainingLocked(),
		History:        s.historyLocked(),
		Draft:          s.draft.clone(),
	}
	if st.Draft == nil {
		st.Draft = Code{}
	}
	if s.phase.Terminal() {
		st.RevealedSecret = s.secret.clone()
	}
	return st
}

func (s *Session) persistLocked() {
	if s.onPersist == nil {
		return
	}
	s.onPersist(s.snapshotLocked())
}
