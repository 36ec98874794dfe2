package game

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"example.com/mastermind/internal/auth"
	"example.com/mastermind/internal/httpapi"
	"github.com/go-chi/chi/v5"
)

type Server struct {
	sessions *SessionService
	verifier auth.Verifier
	log      *slog.Logger
}

func NewServer(sessions *SessionService, verifier auth.Verifier, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		sessions: sessions,
		verifier: verifier,
		log:      log,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(httpapi.AuthMiddleware(s.verifier))
		r.Post("/", s.handleCreateSession)
		r.Get("/{sessionID}", s.handleGetSession)
		r.Post("/{sessionID}/guess", s.handleGuess)
		r.Post("/{sessionID}/reset", s.handleReset)
		r.Delete("/{sessionID}", s.handleDelete)
	})
	// path is parsed by hand so malformed ids get a 400 instead of a router 404
	r.Get("/ws/*", s.handleWS)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}

	sess, err := s.sessions.Create(r.Context(), userID)
	if err != nil {
		s.log.Error("create session", "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal", "failed to create session")
		return
	}

	cfg := s.sessions.Config()
	httpapi.WriteJSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID:  sess.ID(),
		CodeLength: cfg.CodeLength,
		Tries:      cfg.Tries,
		Colors:     cfg.Alphabet.Strings(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}

	var req SubmitGuessPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	guess, err := ParseCode(sess.Config().Alphabet, req.Guess)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	turn, st, err := sess.submitAndState(guess)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, GuessResponse{Score: turn.Score, State: st})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	sess.Reset()
	httpapi.WriteJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(r.Context(), sess.ID()); err != nil {
		s.log.Error("delete session", "session_id", sess.ID(), "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal", "storage error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedSession resolves {sessionID} and checks the caller owns it.
// On failure the response is already written.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	userID, _ := httpapi.UserIDFromContext(r.Context())

	sessionID := chi.URLParam(r, "sessionID")
	if !validSessionID(sessionID) {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_request", "invalid session id")
		return nil, false
	}

	sess, found, err := s.sessions.GetOrLoad(r.Context(), sessionID)
	if err != nil {
		s.log.Error("load session", "session_id", sessionID, "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal", "storage error")
		return nil, false
	}
	if !found {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "session not found")
		return nil, false
	}
	if sess.OwnerID() != userID {
		httpapi.WriteError(w, http.StatusForbidden, "forbidden", "session belongs to another player")
		return nil, false
	}
	return sess, true
}

// errorCode maps engine errors to wire codes shared by REST and WS.
func errorCode(err error) (status int, code string) {
	switch {
	case errors.Is(err, ErrSessionTerminated):
		return http.StatusConflict, "session_terminated"
	case errors.Is(err, ErrDraftFull):
		return http.StatusConflict, "draft_full"
	case errors.Is(err, ErrInvalidGuess):
		return http.StatusBadRequest, "invalid_guess"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	status, code := errorCode(err)
	httpapi.WriteError(w, status, code, err.Error())
}

func randID(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b)
}
