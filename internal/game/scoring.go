package game

import "fmt"

// Score is the feedback for one guess.
// Exact: right color in the right position. Partial: right color, wrong position.
type Score struct {
	Exact   int `json:"exact"`
	Partial int `json:"partial"`
}

// Evaluate scores guess against secret.
//
// Exact matches consume their color before partial matches are counted, so a color is
// never credited twice and a guess cannot earn more partials for a color than the
// secret holds.
func Evaluate(guess, secret Code) (Score, error) {
	if len(guess) != len(secret) {
		return Score{}, fmt.Errorf("%w: guess has %d colors, secret has %d", ErrLengthMismatch, len(guess), len(secret))
	}

	remaining := make(map[Color]int, len(secret))
	for _, c := range secret {
		remaining[c]++
	}

	var s Score
	for i := range guess {
		if guess[i] == secret[i] {
			s.Exact++
			remaining[guess[i]]--
		}
	}

	for i := range guess {
		if guess[i] == secret[i] {
			continue
		}
		if remaining[guess[i]] > 0 {
			s.Partial++
			remaining[guess[i]]--
		}
	}

	return s, nil
}
