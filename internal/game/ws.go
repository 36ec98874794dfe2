package game

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"example.com/mastermind/internal/httpapi"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // CORS is handled at the router
}

const pingInterval = 25 * time.Second

type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// enqueue drops the message when the client is too slow to drain its buffer.
func (c *ClientConn) enqueue(env Envelope) {
	b, _ := json.Marshal(env)
	select {
	case c.send <- b:
	default:
	}
}

func (c *ClientConn) sendState(sess *Session) {
	c.enqueue(Envelope{Type: "state", Payload: mustJSON(sess.State())})
}

func (c *ClientConn) sendError(code, message string) {
	c.enqueue(Envelope{Type: "error", Payload: mustJSON(ErrorPayload{Code: code, Message: message})})
}

// handleWS: GET /ws/{sessionId}, token via "Authorization: Bearer" or ?token=.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromWSPath(r.URL.Path)
	if !ok {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_request", "invalid session id")
		return
	}

	token := httpapi.BearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	claims, err := s.verifier.Verify(token)
	if err != nil {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	sess, found, err := s.sessions.GetOrLoad(r.Context(), sessionID)
	if err != nil {
		s.log.Error("load session", "session_id", sessionID, "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal", "storage error")
		return
	}
	if !found {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if sess.OwnerID() != claims.UserID {
		httpapi.WriteError(w, http.StatusForbidden, "forbidden", "session belongs to another player")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	cc := &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
	}

	// writer loop
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-cc.send:
				if !ok {
					return
				}
				_ = ws.WriteMessage(websocket.TextMessage, msg)
			case <-ticker.C:
				_ = ws.WriteMessage(websocket.PingMessage, []byte{})
			}
		}
	}()

	cc.sendState(sess)

	// reader loop
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			cc.sendError("bad_json", "invalid json")
			continue
		}
		s.dispatch(cc, sess, env)
	}

	cc.Close()
}

func (s *Server) dispatch(cc *ClientConn, sess *Session, env Envelope) {
	switch env.Type {
	case "submit_guess":
		var p SubmitGuessPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			cc.sendError("bad_input", "invalid payload")
			return
		}
		guess, err := ParseCode(sess.Config().Alphabet, p.Guess)
		if err != nil {
			s.replyError(cc, err)
			return
		}
		s.replyScored(cc, func() (Turn, StatePayload, error) { return sess.submitAndState(guess) })

	case "submit_draft":
		s.replyScored(cc, sess.submitDraftAndState)

	case "pick_color":
		var p PickColorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			cc.sendError("bad_input", "invalid payload")
			return
		}
		if err := sess.PickColor(Color(p.Color)); err != nil {
			s.replyError(cc, err)
			return
		}
		cc.sendState(sess)

	case "undo_color":
		if err := sess.UndoColor(); err != nil {
			s.replyError(cc, err)
			return
		}
		cc.sendState(sess)

	case "reset":
		sess.Reset()
		cc.sendState(sess)

	default:
		cc.sendError("unknown_type", "unknown message type")
	}
}

// replyScored sends the turn and the view exactly as they were right after this submit.
func (s *Server) replyScored(cc *ClientConn, submit func() (Turn, StatePayload, error)) {
	turn, st, err := submit()
	if err != nil {
		s.replyError(cc, err)
		return
	}

	cc.enqueue(Envelope{Type: "guess_result", Payload: mustJSON(GuessResultPayload{Turn: turn, Phase: st.Phase})})
	cc.enqueue(Envelope{Type: "state", Payload: mustJSON(st)})

	if st.Phase.Terminal() {
		cc.enqueue(Envelope{
			Type:    "game_finished",
			Payload: mustJSON(GameFinishedPayload{Phase: st.Phase, Secret: st.RevealedSecret}),
		})
	}
}

func (s *Server) replyError(cc *ClientConn, err error) {
	_, code := errorCode(err)
	cc.sendError(code, err.Error())
}

// sessionIDFromWSPath accepts exactly /ws/{id}.
func sessionIDFromWSPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/ws/")
	if !ok || !validSessionID(rest) {
		return "", false
	}
	return rest, true
}

// validSessionID: 1-64 chars of [a-z0-9], the alphabet randID draws from.
func validSessionID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
