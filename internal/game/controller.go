package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/robalobadob/riddler/internal/errs"
	"github.com/robalobadob/riddler/internal/riddles"
)

// Oracle answers a player's free-form question about riddle, given the
// attempt's history so far.
type Oracle interface {
	Ask(ctx context.Context, question string, riddle riddles.Question, history []HistoryEntry) (string, error)
}

// Catalog is the selection side of the question bank.
type Catalog interface {
	SelectRandom(t riddles.Tier) (riddles.Question, bool)
	SelectDaily(t riddles.Tier, date time.Time, salt string) (riddles.Question, bool)
}

// Controller owns one Session and is the only code that mutates it.
// All methods are safe for concurrent use.
type Controller struct {
	id      string
	mu      sync.Mutex // guards session and attempt
	session *Session
	attempt uint64 // bumped whenever an attempt starts or ends

	catalog  Catalog
	oracle   Oracle
	now      func() time.Time
	inflight *semaphore.Weighted // at most one oracle call per session
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithID tags log lines with the owning session id.
func WithID(id string) Option {
	return func(c *Controller) { c.id = id }
}

// NewController returns a controller around a fresh session.
func NewController(catalog Catalog, oracle Oracle, opts ...Option) *Controller {
	c := &Controller{
		session:  NewSession(),
		catalog:  catalog,
		oracle:   oracle,
		now:      time.Now,
		inflight: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AskResult is returned by SubmitQuestion.
type AskResult struct {
	Answer   string   `json:"answer"`
	Snapshot Snapshot `json:"snapshot"`
}

// AnswerResult is returned by SubmitAnswer.
type AnswerResult struct {
	Correct        bool     `json:"correct"`
	Outcome        State    `json:"outcome"` // solved on success, else the unchanged state
	QuestionsAsked int      `json:"questionsAsked,omitempty"`
	Gained         float64  `json:"gained,omitempty"`
	LeveledUp      bool     `json:"leveledUp,omitempty"`
	Snapshot       Snapshot `json:"snapshot"`
}

// SelectQuestion starts a new attempt with a random riddle of tier.
func (c *Controller) SelectQuestion(tier riddles.Tier) (Snapshot, error) {
	return c.selectWith(&tier, c.catalog.SelectRandom)
}

// SelectDailyQuestion starts a new attempt with the riddle of the day.
func (c *Controller) SelectDailyQuestion(tier riddles.Tier, salt string) (Snapshot, error) {
	return c.selectWith(&tier, c.dailyPick(salt))
}

// SelectCurrentQuestion is SelectQuestion at the session's own difficulty.
func (c *Controller) SelectCurrentQuestion() (Snapshot, error) {
	return c.selectWith(nil, c.catalog.SelectRandom)
}

// SelectDailyCurrentQuestion is SelectDailyQuestion at the session's own
// difficulty.
func (c *Controller) SelectDailyCurrentQuestion(salt string) (Snapshot, error) {
	return c.selectWith(nil, c.dailyPick(salt))
}

func (c *Controller) dailyPick(salt string) func(riddles.Tier) (riddles.Question, bool) {
	return func(t riddles.Tier) (riddles.Question, bool) {
		return c.catalog.SelectDaily(t, c.now(), salt)
	}
}

// selectWith picks with the given tier, or with the session's difficulty
// when requested is nil, all under one lock.
func (c *Controller) selectWith(requested *riddles.Tier, pick func(riddles.Tier) (riddles.Question, bool)) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	timer := c.tickLocked(now)
	tier := c.session.Difficulty
	if requested != nil {
		tier = *requested
	}
	if !tier.Valid() {
		return c.session.snapshot(timer), errs.New(errs.CodeInvalidTier, fmt.Sprintf("invalid tier %d", int(tier)))
	}
	switch c.session.State() {
	case StatePresented, StateAnswering:
		return c.session.snapshot(timer), errs.New(errs.CodeAttemptInProgress, "an attempt is already running")
	}

	q, ok := pick(tier)
	if !ok {
		log.Info().Str("session", c.id).Str("tier", tier.String()).Msg("no riddles for tier")
		return c.session.snapshot(timer), errs.New(errs.CodeNoQuestionsAvailable, "no riddles for tier "+tier.String())
	}

	c.session.Reset()
	c.session.Current = &q
	c.session.Difficulty = tier
	c.session.StartTime = now
	c.attempt++
	log.Info().Str("session", c.id).Str("tier", tier.String()).Str("riddle", q.Title).Msg("riddle selected")
	return c.session.snapshot(c.tickLocked(now)), nil
}

// SubmitQuestion asks the oracle about the current riddle. The exchange is
// appended to the history only when the oracle answers; a failed call leaves
// the session untouched. A second call while one is outstanding is rejected.
func (c *Controller) SubmitQuestion(ctx context.Context, text string) (AskResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return AskResult{Snapshot: c.Snapshot()}, errs.New(errs.CodeEmptyInput, "empty question")
	}
	if !c.inflight.TryAcquire(1) {
		return AskResult{Snapshot: c.Snapshot()}, errs.New(errs.CodeOracleBusy, "oracle call already in flight")
	}
	defer c.inflight.Release(1)

	c.mu.Lock()
	timer := c.tickLocked(c.now())
	if err := c.playableLocked(); err != nil {
		snap := c.session.snapshot(timer)
		c.mu.Unlock()
		return AskResult{Snapshot: snap}, err
	}
	riddle := *c.session.Current
	history := append([]HistoryEntry{}, c.session.History...)
	attempt := c.attempt
	c.mu.Unlock()

	start := c.now()
	answer, err := c.oracle.Ask(ctx, text, riddle, history)
	if err != nil {
		var coded *errs.Error
		if !errors.As(err, &coded) {
			err = errs.WithReason(errs.CodeOracleUnavailable, errs.ReasonTransport, "oracle call failed", err)
		}
		log.Warn().Err(err).Str("session", c.id).Str("reason", errs.ReasonOf(err)).Msg("oracle unavailable")
		return AskResult{Snapshot: c.Snapshot()}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == attempt && c.session.Current != nil {
		c.session.History = append(c.session.History, HistoryEntry{Question: text, Answer: answer})
	} else {
		log.Info().Str("session", c.id).Msg("attempt changed during oracle call; answer not recorded")
	}
	log.Debug().Str("session", c.id).Dur("elapsed", c.now().Sub(start)).Int("history", len(c.session.History)).Msg("oracle answered")
	return AskResult{Answer: answer, Snapshot: c.session.snapshot(c.tickLocked(c.now()))}, nil
}

// SubmitAnswer checks text against the hidden answer. A match awards
// experience and resets the session; a mismatch changes nothing.
func (c *Controller) SubmitAnswer(text string) (AnswerResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := c.tickLocked(c.now())
	if strings.TrimSpace(text) == "" {
		return AnswerResult{Outcome: c.session.State(), Snapshot: c.session.snapshot(timer)}, errs.New(errs.CodeEmptyInput, "empty answer")
	}
	if err := c.playableLocked(); err != nil {
		return AnswerResult{Outcome: c.session.State(), Snapshot: c.session.snapshot(timer)}, err
	}

	s := c.session
	if !answerMatches(text, s.Current.HiddenAnswer) {
		return AnswerResult{Outcome: s.State(), Snapshot: s.snapshot(timer)}, nil
	}

	asked := max(len(s.History), 1)
	before := s.Experience
	leveledUp := s.setExperience(Award(before, s.Current.Tier, asked))
	title := s.Current.Title
	s.Reset()
	c.attempt++

	log.Info().
		Str("session", c.id).
		Str("riddle", title).
		Int("questions", asked).
		Float64("experience", s.Experience).
		Int("level", s.Level).
		Bool("levelUp", leveledUp).
		Msg("riddle solved")

	return AnswerResult{
		Correct:        true,
		Outcome:        StateSolved,
		QuestionsAsked: asked,
		Gained:         s.Experience - before,
		LeveledUp:      leveledUp,
		Snapshot:       s.snapshot(c.tickLocked(c.now())),
	}, nil
}

// ChangeDifficulty sets the tier for the next attempt. Only allowed while idle.
func (c *Controller) ChangeDifficulty(tier riddles.Tier) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := c.tickLocked(c.now())
	if !tier.Valid() {
		return c.session.snapshot(timer), errs.New(errs.CodeInvalidTier, fmt.Sprintf("invalid tier %d", int(tier)))
	}
	if c.session.State() != StateIdle {
		return c.session.snapshot(timer), errs.New(errs.CodeDifficultyLocked, "difficulty change outside idle")
	}
	c.session.Difficulty = tier
	return c.session.snapshot(timer), nil
}

// Reset abandons the current attempt from any state.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Current != nil {
		c.attempt++
	}
	c.session.Reset()
	return c.session.snapshot(c.tickLocked(c.now()))
}

// Tick observes the timer at the current time.
func (c *Controller) Tick() TimerStatus {
	return c.TickAt(c.now())
}

// TickAt observes the timer at now, latching expiry at most once.
func (c *Controller) TickAt(now time.Time) TimerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickLocked(now)
}

// Snapshot observes the timer and returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.snapshot(c.tickLocked(c.now()))
}

func (c *Controller) tickLocked(now time.Time) TimerStatus {
	s := c.session
	if s.Current == nil {
		return TimerStatus{Warning: WarningNone}
	}
	left, limited := Remaining(s.StartTime, s.Current.Tier, now)
	if !limited {
		return TimerStatus{Warning: WarningNone}
	}
	st := TimerStatus{
		Limited:   true,
		Remaining: left,
		Seconds:   int(left / time.Second),
		Warning:   WarningFor(left),
	}
	if s.TimeExpired {
		st.Remaining, st.Seconds, st.Warning = 0, 0, WarningExpired
		return st
	}
	if left <= 0 {
		s.TimeExpired = true
		st.ExpiredNow = true
		log.Info().Str("session", c.id).Str("riddle", s.Current.Title).Msg("time expired")
	}
	return st
}

// playableLocked reports why questions/answers cannot be submitted, if so.
func (c *Controller) playableLocked() error {
	switch c.session.State() {
	case StateIdle:
		return errs.New(errs.CodeNoActiveQuestion, "no riddle selected")
	case StateExpired:
		return errs.New(errs.CodeTimeExpired, "attempt expired")
	}
	return nil
}
