package errs

var userMessages = map[Code]string{
	CodeInternal:             "Something went wrong. Please try again.",
	CodeNoQuestionsAvailable: "There are no riddles for this difficulty. Please pick another one.",
	CodeEmptyInput:           "Please type something first.",
	CodeOracleUnavailable:    "The oracle could not be reached. Your question was not counted; please ask again.",
	CodeOracleBusy:           "The oracle is still thinking about your previous question.",
	CodeNoActiveQuestion:     "Pick a difficulty and start a riddle first.",
	CodeTimeExpired:          "Time is up for this riddle. Start a new one to keep playing.",
	CodeAttemptInProgress:    "A riddle is already in progress. Reset it before starting another.",
	CodeDifficultyLocked:     "Difficulty can only be changed between riddles.",
	CodeInvalidTier:          "Difficulty must be easy, normal, or hard.",
}

var oracleReasonMessages = map[string]string{
	ReasonUnconfigured: "The oracle is not configured on this server, so questions cannot be answered.",
	ReasonAuth:         "The oracle rejected the server's credentials. Your question was not counted.",
	ReasonRateLimited:  "The oracle is receiving too many questions right now. Wait a moment and ask again; your question was not counted.",
	ReasonTimeout:      "The oracle took too long to answer. Your question was not counted; please ask again.",
	ReasonEmpty:        "The oracle returned an empty reply. Your question was not counted; please ask again.",
}

// UserMessage returns the text shown to the player for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	code := CodeOf(err)
	if code == CodeOracleUnavailable {
		if msg, ok := oracleReasonMessages[ReasonOf(err)]; ok {
			return msg
		}
	}
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return userMessages[CodeInternal]
}
