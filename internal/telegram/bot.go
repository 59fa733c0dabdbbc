// Package telegram is a chat front end for the riddle game. Each chat is one
// player and maps onto its own game controller in the shared store.
package telegram

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/riddler/internal/errs"
	"github.com/robalobadob/riddler/internal/game"
	"github.com/robalobadob/riddler/internal/riddles"
	"github.com/robalobadob/riddler/internal/store"
)

const (
	cmdStart  = "start"
	cmdHelp   = "help"
	cmdEasy   = "easy"
	cmdNormal = "normal"
	cmdHard   = "hard"
	cmdDaily  = "daily"
	cmdAsk    = "ask"
	cmdAnswer = "answer"
	cmdStatus = "status"
	cmdReset  = "reset"
)

const helpText = `Lateral-thinking riddles. I show you a strange situation; you ask yes/no questions until you can explain it.

/easy, /normal, /hard - start a riddle (normal: 20 min, hard: 5 min)
/daily <tier> - today's riddle for a tier
/ask <question> - ask the oracle (plain messages work too)
/answer <explanation> - submit your solution
/status - current riddle, questions so far, experience
/reset - abandon the current riddle`

// Bot polls Telegram for updates and replies through a Handler.
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
}

// New connects to the Bot API with token.
func New(token string, st store.Store, dailySalt string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	api.Debug = os.Getenv("DEBUG") == "true"
	log.Info().Str("bot", api.Self.UserName).Msg("telegram bot authorised")
	return &Bot{api: api, handler: NewHandler(st, dailySalt)}, nil
}

// Start polls until ctx is cancelled. Each message is handled on its own
// goroutine so a slow oracle call in one chat never stalls the others;
// concurrent questions within a chat are rejected by the controller.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	log.Info().Msg("telegram polling started")

	dispatch(ctx, updates, b.handleMessage)
	b.api.StopReceivingUpdates()
}

// dispatch fans text messages out to handle until ctx is cancelled or
// updates is closed, then waits for in-flight handlers.
func dispatch(ctx context.Context, updates <-chan tgbotapi.Update, handle func(context.Context, *tgbotapi.Message)) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			wg.Add(1)
			go func(m *tgbotapi.Message) {
				defer wg.Done()
				handle(ctx, m)
			}(update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	cmd, args := "", m.Text
	if m.IsCommand() {
		cmd, args = m.Command(), m.CommandArguments()
	}
	log.Debug().Int64("chat", m.Chat.ID).Str("cmd", cmd).Msg("telegram message")

	reply := b.handler.Reply(ctx, m.Chat.ID, cmd, args)
	if reply == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(m.Chat.ID, reply)); err != nil {
		log.Warn().Err(err).Int64("chat", m.Chat.ID).Msg("telegram send")
	}
}

// Handler turns chat commands into controller transitions and renders the
// outcome as text. It has no Telegram dependency so it can be tested alone.
type Handler struct {
	store store.Store
	salt  string
}

func NewHandler(st store.Store, dailySalt string) *Handler {
	return &Handler{store: st, salt: dailySalt}
}

// PlayerID is the store key for a chat.
func PlayerID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

// Reply handles one message. cmd is empty for plain text.
func (h *Handler) Reply(ctx context.Context, chatID int64, cmd, args string) string {
	ctrl := h.store.GetOrCreate(ctx, PlayerID(chatID))
	args = strings.TrimSpace(args)

	switch cmd {
	case cmdStart, cmdHelp:
		return helpText
	case cmdEasy, cmdNormal, cmdHard:
		tier, _ := riddles.ParseTier(cmd)
		snap, err := ctrl.SelectQuestion(tier)
		if err != nil {
			return failure(err, snap)
		}
		return renderRiddle(snap)
	case cmdDaily:
		tier := riddles.Easy
		if args != "" {
			t, err := riddles.ParseTier(args)
			if err != nil {
				return errs.UserMessage(err)
			}
			tier = t
		}
		snap, err := ctrl.SelectDailyQuestion(tier, h.salt)
		if err != nil {
			return failure(err, snap)
		}
		return "Riddle of the day.\n\n" + renderRiddle(snap)
	case cmdAnswer:
		res, err := ctrl.SubmitAnswer(args)
		if err != nil {
			return failure(err, res.Snapshot)
		}
		return renderAnswer(res)
	case cmdStatus:
		return renderStatus(ctrl.Snapshot())
	case cmdReset:
		ctrl.Reset()
		return "Riddle abandoned. Pick /easy, /normal or /hard for a new one."
	case cmdAsk, "":
		res, err := ctrl.SubmitQuestion(ctx, args)
		if err != nil {
			return failure(err, res.Snapshot)
		}
		return res.Answer + timerSuffix(res.Snapshot.Timer)
	}
	return "Unknown command. Use /help to see what I understand."
}

func failure(err error, snap game.Snapshot) string {
	msg := errs.UserMessage(err)
	if errs.HasCode(err, errs.CodeTimeExpired) && snap.Solution != "" {
		msg += "\nThe answer was: " + snap.Solution
	}
	return msg
}

func renderRiddle(snap game.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n\n%s", snap.Title, snap.Difficulty, snap.Body)
	if snap.Timer.Limited {
		fmt.Fprintf(&b, "\n\nYou have %d minutes.", snap.Timer.Seconds/60)
	}
	return b.String()
}

func renderAnswer(res game.AnswerResult) string {
	if !res.Correct {
		return "Not quite. Keep asking or try another explanation."
	}
	msg := fmt.Sprintf("Correct! Solved with %d question(s), +%.1f experience.\nExperience %.1f, level %d.",
		res.QuestionsAsked, res.Gained, res.Snapshot.Experience, res.Snapshot.Level)
	if res.LeveledUp {
		msg += "\nLevel up!"
	}
	return msg
}

func renderStatus(snap game.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Level %d, experience %.1f, difficulty %s.\n", snap.Level, snap.Experience, snap.Difficulty)
	switch snap.State {
	case game.StateIdle:
		b.WriteString("No riddle in progress.")
		return b.String()
	case game.StateExpired:
		fmt.Fprintf(&b, "Time ran out on %q. The answer was: %s\nUse /reset or pick a new riddle.", snap.Title, snap.Solution)
		return b.String()
	}
	fmt.Fprintf(&b, "\n%s\n%s\n", snap.Title, snap.Body)
	for i, h := range snap.History {
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, h.Question, h.Answer)
	}
	if snap.Timer.Limited {
		fmt.Fprintf(&b, "\n\nTime left: %d:%02d", snap.Timer.Seconds/60, snap.Timer.Seconds%60)
	}
	return b.String()
}

func timerSuffix(t game.TimerStatus) string {
	switch t.Warning {
	case game.WarningAdvisory:
		return "\n(less than 3 minutes left)"
	case game.WarningUrgent:
		return "\n(less than a minute left)"
	case game.WarningCritical:
		return fmt.Sprintf("\n(%d seconds left!)", t.Seconds)
	}
	return ""
}
