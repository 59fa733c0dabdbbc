// internal/httpserver/routes_daily.go
//
// Read-only lookup of the riddle of the day:
//   - GET /riddles/daily?tier=normal → today's riddle for the tier (no answer)
//
// Selection is deterministic on UTC date + salt, so every player sees the
// same riddle per tier per day. Starting it goes through POST /game/select
// with "daily": true.

package httpserver

import (
	"net/http"

	"github.com/robalobadob/riddler/internal/daily"
	"github.com/robalobadob/riddler/internal/errs"
	"github.com/robalobadob/riddler/internal/game"
	"github.com/robalobadob/riddler/internal/riddles"
)

// dailyRes is returned by GET /riddles/daily.
type dailyRes struct {
	Date      string       `json:"date"`
	Tier      riddles.Tier `json:"tier"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	TimeLimit int          `json:"timeLimitSeconds,omitempty"`
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	tier := riddles.Easy
	if q := r.URL.Query().Get("tier"); q != "" {
		t, err := riddles.ParseTier(q)
		if err != nil {
			writeError(w, err)
			return
		}
		tier = t
	}
	if s.opts.Catalog == nil {
		writeError(w, errs.New(errs.CodeNoQuestionsAvailable, "no catalog configured"))
		return
	}

	now := s.opts.Now().UTC()
	q, ok := s.opts.Catalog.SelectDaily(tier, now, s.opts.DailySalt)
	if !ok {
		writeError(w, errs.New(errs.CodeNoQuestionsAvailable, "no riddles for tier "+tier.String()))
		return
	}
	res := dailyRes{Date: daily.DateKey(now), Tier: tier, Title: q.Title, Body: q.Body}
	if limit, ok := game.LimitFor(tier); ok {
		res.TimeLimit = int(limit.Seconds())
	}
	writeJSON(w, http.StatusOK, res)
}
