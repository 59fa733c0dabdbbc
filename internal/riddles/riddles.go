// Package riddles holds the static riddle catalog (the question bank).
//
// Riddles are grouped by difficulty tier. The catalog is immutable once
// loaded; selection never mutates it.
package riddles

import (
	"fmt"
	"strings"

	"github.com/robalobadob/riddler/internal/errs"
)

// Tier is the closed set of difficulty tiers.
type Tier int

const (
	Easy Tier = iota
	Normal
	Hard
)

// Tiers lists every tier in ascending difficulty.
var Tiers = []Tier{Easy, Normal, Hard}

// String returns the lowercase wire form of the tier.
func (t Tier) String() string {
	switch t {
	case Easy:
		return "easy"
	case Normal:
		return "normal"
	case Hard:
		return "hard"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Valid reports whether t is one of the declared tiers.
func (t Tier) Valid() bool { return t >= Easy && t <= Hard }

// ParseTier accepts "easy", "normal" or "hard" (case and surrounding
// whitespace ignored).
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "normal":
		return Normal, nil
	case "hard":
		return Hard, nil
	}
	return Easy, errs.New(errs.CodeInvalidTier, fmt.Sprintf("unknown tier %q", s))
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, errs.New(errs.CodeInvalidTier, fmt.Sprintf("invalid tier %d", int(t)))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Question is one riddle: the visible story plus its hidden explanation.
type Question struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	HiddenAnswer string `json:"answer"`
	Tier         Tier   `json:"difficulty"`
	// ResponseCaution is an optional hint that biases the oracle's judgment,
	// e.g. "a question suggesting a third sibling is not wrong".
	ResponseCaution string `json:"caution,omitempty"`
}

// validate rejects catalog entries that could never be played.
func (q Question) validate() error {
	switch {
	case strings.TrimSpace(q.Title) == "":
		return fmt.Errorf("riddle has no title")
	case strings.TrimSpace(q.Body) == "":
		return fmt.Errorf("riddle %q has no body", q.Title)
	case strings.TrimSpace(q.HiddenAnswer) == "":
		return fmt.Errorf("riddle %q has no answer", q.Title)
	case !q.Tier.Valid():
		return fmt.Errorf("riddle %q has invalid tier %d", q.Title, int(q.Tier))
	}
	return nil
}
