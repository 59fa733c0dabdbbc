// Package oracle answers players' yes/no questions about a riddle by asking
// an OpenAI-compatible chat-completions model that knows the hidden answer.
package oracle

import (
	"fmt"
	"strings"

	"github.com/robalobadob/riddler/internal/game"
	"github.com/robalobadob/riddler/internal/riddles"
)

// Role is the speaker of one conversation turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleOracle Role = "oracle"
)

// Turn is one message of the replayed conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the provider-neutral form of one oracle call.
type Request struct {
	SystemInstruction string `json:"systemInstruction"`
	PriorTurns        []Turn `json:"priorTurns"`
	NewTurn           Turn   `json:"newTurn"`
}

// The closed set of replies the oracle is told to choose from.
const (
	ReplyYes           = "Yes"
	ReplyNo            = "No"
	ReplyProbablyYes   = "Probably yes"
	ReplyProbablyNo    = "Probably no"
	ReplyYesIrrelevant = "Yes (mostly irrelevant)"
	ReplyNoIrrelevant  = "No (mostly irrelevant)"
	ReplyCannotAnswer  = "Cannot answer"
)

// Replies lists the permitted reply classes in prompt order.
var Replies = []string{
	ReplyYes,
	ReplyNo,
	ReplyProbablyYes,
	ReplyProbablyNo,
	ReplyYesIrrelevant,
	ReplyNoIrrelevant,
	ReplyCannotAnswer,
}

const systemTemplate = `You are the host of a lateral-thinking riddle game.
The player sees only the riddle and asks you questions to work out the hidden explanation.

Riddle:
%s

Hidden explanation (never reveal it, never paraphrase it):
%s

Judge each question against the riddle and the hidden explanation and reply with exactly one of:
%s

Use "Probably yes" or "Probably no" when the explanation implies but does not state the answer.
Use the "(mostly irrelevant)" forms when the question is true or false but does not help solve the riddle.
Use "Cannot answer" when the question is not a yes/no question or the explanation says nothing about it.
Reply with the phrase only. Do not add explanations, hints, or punctuation beyond the phrase.`

// SystemInstruction renders the vocabulary-constraining prompt for riddle.
func SystemInstruction(riddle riddles.Question) string {
	classes := make([]string, len(Replies))
	for i, r := range Replies {
		classes[i] = "- " + r
	}
	prompt := fmt.Sprintf(systemTemplate, riddle.Body, riddle.HiddenAnswer, strings.Join(classes, "\n"))
	if c := strings.TrimSpace(riddle.ResponseCaution); c != "" {
		prompt += "\n\nCaution for this riddle: " + c
	}
	return prompt
}

// BuildRequest assembles the call for question, replaying history in order.
func BuildRequest(question string, riddle riddles.Question, history []game.HistoryEntry) Request {
	prior := make([]Turn, 0, 2*len(history))
	for _, h := range history {
		prior = append(prior,
			Turn{Role: RoleUser, Content: h.Question},
			Turn{Role: RoleOracle, Content: h.Answer},
		)
	}
	return Request{
		SystemInstruction: SystemInstruction(riddle),
		PriorTurns:        prior,
		NewTurn:           Turn{Role: RoleUser, Content: question},
	}
}

// Classify maps a raw reply onto one of Replies. ok is false when the reply
// is not recognisable; callers decide what to do with such replies.
func Classify(reply string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(reply))
	norm = strings.TrimRight(norm, ".!")
	for _, r := range Replies {
		if norm == strings.ToLower(r) {
			return r, true
		}
	}
	switch norm {
	case "unknown", "cannot answer / unknown", "can't answer":
		return ReplyCannotAnswer, true
	}
	return "", false
}
