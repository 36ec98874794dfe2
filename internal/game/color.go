package game

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Color is a single palette symbol, e.g. "R". Colors compare by equality only.
type Color string

// Code is an ordered sequence of colors: a secret or a guess.
type Code []Color

// Alphabet is the fixed palette codes are drawn from.
type Alphabet []Color

// DefaultAlphabet: red, green, blue, yellow, white, orange.
var DefaultAlphabet = Alphabet{"R", "G", "B", "Y", "W", "O"}

// NewAlphabet validates a palette: non-empty, one character per symbol, no duplicates.
func NewAlphabet(symbols []string) (Alphabet, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("alphabet is empty")
	}
	seen := make(map[string]bool, len(symbols))
	out := make(Alphabet, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) != 1 {
			return nil, fmt.Errorf("color %q must be a single character", s)
		}
		if seen[s] {
			return nil, fmt.Errorf("duplicate color %q", s)
		}
		seen[s] = true
		out = append(out, Color(s))
	}
	return out, nil
}

// Contains reports whether c is in the palette.
func (a Alphabet) Contains(c Color) bool {
	for _, x := range a {
		if x == c {
			return true
		}
	}
	return false
}

// Strings returns the symbols in palette order.
func (a Alphabet) Strings() []string {
	out := make([]string, len(a))
	for i, c := range a {
		out[i] = string(c)
	}
	return out
}

// ParseCode reads one color per character, e.g. "RGBY".
// Length is not checked here; callers compare against the session's code length.
func ParseCode(a Alphabet, s string) (Code, error) {
	code := make(Code, 0, len(s))
	for _, r := range s {
		c := Color(string(r))
		if !a.Contains(c) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColor, c)
		}
		code = append(code, c)
	}
	return code, nil
}

func (c Code) String() string {
	var b strings.Builder
	for _, x := range c {
		b.WriteString(string(x))
	}
	return b.String()
}

// MarshalText encodes a code as its symbol string, so JSON carries "RGBY".
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText splits a symbol string back into colors. It does not check the
// alphabet; untrusted input goes through ParseCode.
func (c *Code) UnmarshalText(b []byte) error {
	out := make(Code, 0, len(b))
	for _, r := range string(b) {
		out = append(out, Color(string(r)))
	}
	*c = out
	return nil
}

// Equal reports whether both codes hold the same colors in the same order.
func (c Code) Equal(o Code) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

func (c Code) clone() Code {
	if c == nil {
		return nil
	}
	return append(Code(nil), c...)
}
