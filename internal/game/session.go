// Package game implements the riddle session state machine.
//
// A Session is the mutable aggregate for one player. It is owned by exactly
// one Controller; transports never touch its fields and only see Snapshots.
//
// States:
//   - idle:      no riddle selected
//   - presented: riddle shown, timer anchored, no questions asked yet
//   - answering: at least one question/oracle-answer round trip
//   - expired:   the time budget ran out; stays until an explicit reset
//
// A correct answer reports the solved outcome and resets the session to idle.
package game

import (
	"time"

	"github.com/robalobadob/riddler/internal/riddles"
)

// State is the coarse lifecycle state of an attempt.
type State string

const (
	StateIdle      State = "idle"
	StatePresented State = "presented"
	StateAnswering State = "answering"
	StateExpired   State = "expired"
	StateSolved    State = "solved" // outcome only; the session is idle afterwards
)

// HistoryEntry is one question/oracle-answer pair of the current attempt.
type HistoryEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Session holds the state of one player's game.
type Session struct {
	Current     *riddles.Question
	History     []HistoryEntry
	StartTime   time.Time // zero when no attempt is running
	TimeExpired bool
	Difficulty  riddles.Tier
	Experience  float64
	Level       int
}

// NewSession returns a fresh session: no riddle, Easy, experience 0, level 1.
func NewSession() *Session {
	return &Session{Difficulty: riddles.Easy, Level: 1}
}

// Reset ends the current attempt. Experience, level and difficulty survive.
func (s *Session) Reset() {
	s.Current = nil
	s.History = nil
	s.StartTime = time.Time{}
	s.TimeExpired = false
}

// State derives the lifecycle state from the session fields.
func (s *Session) State() State {
	switch {
	case s.Current == nil:
		return StateIdle
	case s.TimeExpired:
		return StateExpired
	case len(s.History) > 0:
		return StateAnswering
	}
	return StatePresented
}

// setExperience keeps Level in step with Experience.
func (s *Session) setExperience(exp float64) (leveledUp bool) {
	old := s.Level
	s.Experience = exp
	s.Level = LevelOf(exp)
	return s.Level > old
}

// Snapshot is the read-only view handed to transports.
type Snapshot struct {
	State      State          `json:"state"`
	Difficulty riddles.Tier   `json:"difficulty"`
	Title      string         `json:"title,omitempty"`
	Body       string         `json:"body,omitempty"`
	History    []HistoryEntry `json:"history"`
	Experience float64        `json:"experience"`
	Level      int            `json:"level"`
	Timer      TimerStatus    `json:"timer"`
	// Solution is revealed only once the attempt has expired.
	Solution string `json:"solution,omitempty"`
}

func (s *Session) snapshot(timer TimerStatus) Snapshot {
	snap := Snapshot{
		State:      s.State(),
		Difficulty: s.Difficulty,
		History:    append([]HistoryEntry{}, s.History...),
		Experience: s.Experience,
		Level:      s.Level,
		Timer:      timer,
	}
	if s.Current != nil {
		snap.Title = s.Current.Title
		snap.Body = s.Current.Body
		if s.TimeExpired {
			snap.Solution = s.Current.HiddenAnswer
		}
	}
	return snap
}
