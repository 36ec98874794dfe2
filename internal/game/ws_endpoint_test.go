package game

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/mastermind/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testVerifier accepts "good" as u1 and "other" as u2.
type testVerifier struct{}

func (v testVerifier) Verify(token string) (*auth.Claims, error) {
	switch token {
	case "good":
		return &auth.Claims{UserID: "u1", DisplayName: "Alice"}, nil
	case "other":
		return &auth.Claims{UserID: "u2", DisplayName: "Bob"}, nil
	}
	return nil, errors.New("bad token")
}

func newTestServer(t *testing.T, secrets ...string) (*httptest.Server, *SessionService) {
	t.Helper()
	svc := NewSessionService(DefaultConfig(), newSequence(secrets...), NewInMemorySessionStore(), nil)

	r := chi.NewRouter()
	NewServer(svc, testVerifier{}, nil).RegisterRoutes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, svc
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func readEnvelope(t *testing.T, ws *websocket.Conn) Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func sendEnvelope(t *testing.T, ws *websocket.Conn, typ string, payload any) {
	t.Helper()
	env := Envelope{Type: typ}
	if payload != nil {
		env.Payload = mustJSON(payload)
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, b))
}

func TestWS_Endpoint_Handshake(t *testing.T) {
	ts, svc := newTestServer(t, "RGBY")

	sess, err := svc.Create(context.Background(), "u1")
	require.NoError(t, err)
	id := sess.ID()

	cases := []struct {
		name     string
		urlPath  string
		header   string
		wantCode int // 0 => expect success (101)
	}{
		{name: "success_auth_header", urlPath: "/ws/" + id, header: "good", wantCode: 0},
		{name: "success_query_token", urlPath: "/ws/" + id + "?token=good", wantCode: 0},
		{name: "bad_missing", urlPath: "/ws/", header: "good", wantCode: http.StatusBadRequest},
		{name: "bad_extra_segment", urlPath: "/ws/" + id + "/x", header: "good", wantCode: http.StatusBadRequest},
		{name: "missing_token", urlPath: "/ws/" + id, wantCode: http.StatusUnauthorized},
		{name: "unauthorized_header", urlPath: "/ws/" + id, header: "bad", wantCode: http.StatusUnauthorized},
		{name: "not_found", urlPath: "/ws/unknown", header: "good", wantCode: http.StatusNotFound},
		{name: "forbidden_other_owner", urlPath: "/ws/" + id, header: "other", wantCode: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hdr := http.Header{}
			if tc.header != "" {
				hdr.Set("Authorization", "Bearer "+tc.header)
			}

			ws, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, tc.urlPath), hdr)
			if tc.wantCode != 0 {
				if err == nil {
					_ = ws.Close()
					t.Fatalf("expected dial error, got nil")
				}
				require.NotNil(t, resp, "expected HTTP response (err=%v)", err)
				assert.Equal(t, tc.wantCode, resp.StatusCode)
				return
			}

			require.NoError(t, err)
			defer ws.Close()

			env := readEnvelope(t, ws)
			require.Equal(t, "state", env.Type)
			var st StatePayload
			require.NoError(t, json.Unmarshal(env.Payload, &st))
			assert.Equal(t, id, st.SessionID)
			assert.Equal(t, PhaseInProgress, st.Phase)
			assert.Nil(t, st.RevealedSecret)
		})
	}
}

func TestWS_Endpoint_PlayToWinAndReset(t *testing.T) {
	ts, svc := newTestServer(t, "RGBY", "OOOO")

	sess, err := svc.Create(context.Background(), "u1")
	require.NoError(t, err)

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer good")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/"+sess.ID()), hdr)
	require.NoError(t, err)
	defer ws.Close()

	require.Equal(t, "state", readEnvelope(t, ws).Type)

	// malformed guess: error only, nothing recorded
	sendEnvelope(t, ws, "submit_guess", SubmitGuessPayload{Guess: "RGB"})
	env := readEnvelope(t, ws)
	require.Equal(t, "error", env.Type)
	var ep ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &ep))
	assert.Equal(t, "invalid_guess", ep.Code)

	sendEnvelope(t, ws, "submit_guess", SubmitGuessPayload{Guess: "RRBY"})
	env = readEnvelope(t, ws)
	require.Equal(t, "guess_result", env.Type)
	var gr GuessResultPayload
	require.NoError(t, json.Unmarshal(env.Payload, &gr))
	assert.Equal(t, Score{Exact: 3}, gr.Turn.Score)
	assert.Equal(t, code("RRBY"), gr.Turn.Guess)
	assert.Equal(t, PhaseInProgress, gr.Phase)
	require.Equal(t, "state", readEnvelope(t, ws).Type)

	// build the winning code through the draft
	for _, c := range []string{"R", "G", "B", "Y"} {
		sendEnvelope(t, ws, "pick_color", PickColorPayload{Color: c})
		require.Equal(t, "state", readEnvelope(t, ws).Type)
	}
	sendEnvelope(t, ws, "submit_draft", nil)

	env = readEnvelope(t, ws)
	require.Equal(t, "guess_result", env.Type)
	require.NoError(t, json.Unmarshal(env.Payload, &gr))
	assert.Equal(t, Score{Exact: 4}, gr.Turn.Score)
	assert.Equal(t, PhaseWon, gr.Phase)

	env = readEnvelope(t, ws)
	require.Equal(t, "state", env.Type)
	var st StatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &st))
	assert.Equal(t, PhaseWon, st.Phase)
	assert.Equal(t, 8, st.TriesRemaining)
	assert.Len(t, st.History, 2)

	env = readEnvelope(t, ws)
	require.Equal(t, "game_finished", env.Type)
	var fin GameFinishedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &fin))
	assert.Equal(t, PhaseWon, fin.Phase)
	assert.Equal(t, code("RGBY"), fin.Secret)

	sendEnvelope(t, ws, "pick_color", PickColorPayload{Color: "R"})
	env = readEnvelope(t, ws)
	require.Equal(t, "error", env.Type)
	require.NoError(t, json.Unmarshal(env.Payload, &ep))
	assert.Equal(t, "session_terminated", ep.Code)

	sendEnvelope(t, ws, "reset", nil)
	env = readEnvelope(t, ws)
	require.Equal(t, "state", env.Type)
	require.NoError(t, json.Unmarshal(env.Payload, &st))
	assert.Equal(t, PhaseInProgress, st.Phase)
	assert.Empty(t, st.History)
	assert.Equal(t, 10, st.TriesRemaining)

	sendEnvelope(t, ws, "bogus", nil)
	env = readEnvelope(t, ws)
	require.Equal(t, "error", env.Type)
	require.NoError(t, json.Unmarshal(env.Payload, &ep))
	assert.Equal(t, "unknown_type", ep.Code)
}

func nextQueued(t *testing.T, cc *ClientConn) Envelope {
	t.Helper()
	select {
	case b := <-cc.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		return env
	default:
		t.Fatalf("no message queued")
		return Envelope{}
	}
}

func TestWS_GuessResultMatchesOwnSubmitUnderContention(t *testing.T) {
	svc := NewSessionService(DefaultConfig(), newSequence("RRRR"), NewInMemorySessionStore(), nil)
	srv := NewServer(svc, testVerifier{}, nil)
	sess, err := svc.Create(context.Background(), "u1")
	require.NoError(t, err)

	// a second connection keeps guessing and resetting the same session
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%3 == 0 {
				sess.Reset()
			} else {
				_, _ = sess.SubmitGuess(code("WWWW"))
			}
		}
	}()

	cc := &ClientConn{send: make(chan []byte, 8)}
	guess := Envelope{Type: "submit_guess", Payload: mustJSON(SubmitGuessPayload{Guess: "RRRR"})}

	for i := 0; i < 300; i++ {
		srv.dispatch(cc, sess, guess)

		env := nextQueued(t, cc)
		if env.Type == "error" {
			var ep ErrorPayload
			require.NoError(t, json.Unmarshal(env.Payload, &ep))
			require.Equal(t, "session_terminated", ep.Code)
			continue
		}

		require.Equal(t, "guess_result", env.Type)
		var gr GuessResultPayload
		require.NoError(t, json.Unmarshal(env.Payload, &gr))
		require.Equal(t, code("RRRR"), gr.Turn.Guess)
		require.Equal(t, Score{Exact: 4}, gr.Turn.Score)
		require.Equal(t, PhaseWon, gr.Phase)

		env = nextQueued(t, cc)
		require.Equal(t, "state", env.Type)
		var st StatePayload
		require.NoError(t, json.Unmarshal(env.Payload, &st))
		require.Equal(t, PhaseWon, st.Phase)
		require.NotEmpty(t, st.History)
		require.Equal(t, gr.Turn, st.History[len(st.History)-1])

		env = nextQueued(t, cc)
		require.Equal(t, "game_finished", env.Type)
	}

	close(stop)
	<-done
	assert.Empty(t, cc.send)
}
