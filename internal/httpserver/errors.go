package httpserver

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/riddler/internal/errs"
)

type errorBody struct {
	Error   errs.Code `json:"error"`
	Message string    `json:"message"`
	Reason  string    `json:"reason,omitempty"`
}

func statusFor(err error) int {
	switch errs.CodeOf(err) {
	case errs.CodeEmptyInput, errs.CodeInvalidTier:
		return http.StatusBadRequest
	case errs.CodeNoQuestionsAvailable:
		return http.StatusNotFound
	case errs.CodeNoActiveQuestion, errs.CodeTimeExpired, errs.CodeAttemptInProgress, errs.CodeDifficultyLocked:
		return http.StatusConflict
	case errs.CodeOracleBusy:
		return http.StatusTooManyRequests
	case errs.CodeOracleUnavailable:
		if errs.ReasonOf(err) == errs.ReasonUnconfigured {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": CODE, "message": text}.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorBody{
		Error:   errs.CodeOf(err),
		Message: errs.UserMessage(err),
		Reason:  errs.ReasonOf(err),
	})
}

func badJSON(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_json"})
}
