package game

import "encoding/json"

// Envelope WS envelope: {"type":"...","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// inbound

type SubmitGuessPayload struct {
	Guess string `json:"guess"`
}

type PickColorPayload struct {
	Color string `json:"color"`
}

// outbound

type StatePayload struct {
	SessionID      string   `json:"sessionId"`
	Phase          Phase    `json:"phase"` // in_progress|won|lost
	Colors         []string `json:"colors"`
	CodeLength     int      `json:"codeLength"`
	Tries          int      `json:"tries"`
	TriesRemaining int      `json:"triesRemaining"`
	History        []Turn   `json:"history"`
	Draft          Code     `json:"draft"`
	RevealedSecret Code     `json:"revealedSecret,omitempty"` // only once won/lost
}

type GuessResultPayload struct {
	Turn  Turn  `json:"turn"`
	Phase Phase `json:"phase"`
}

type GameFinishedPayload struct {
	Phase  Phase `json:"phase"`
	Secret Code  `json:"secret"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// REST

type CreateSessionResponse struct {
	SessionID  string   `json:"sessionId"`
	CodeLength int      `json:"codeLength"`
	Tries      int      `json:"tries"`
	Colors     []string `json:"colors"`
}

type GuessResponse struct {
	Score Score        `json:"score"`
	State StatePayload `json:"state"`
}
