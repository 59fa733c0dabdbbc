package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/riddler/internal/game"
	"github.com/robalobadob/riddler/internal/riddles"
)

// mountGame registers the /game JSON routes.
func (s *Server) mountGame(r chi.Router) {
	r.Get("/game/state", s.handleState)
	r.Post("/game/difficulty", s.handleDifficulty)
	r.Post("/game/select", s.handleSelect)
	r.Post("/game/ask", s.handleAsk)
	r.Post("/game/answer", s.handleAnswer)
	r.Post("/game/reset", s.handleReset)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller(r).Snapshot())
}

type tierReq struct {
	Tier string `json:"tier"`
}

func (s *Server) handleDifficulty(w http.ResponseWriter, r *http.Request) {
	var req tierReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badJSON(w)
		return
	}
	tier, err := riddles.ParseTier(req.Tier)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.controller(r).ChangeDifficulty(tier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type selectReq struct {
	Tier  string `json:"tier"`  // empty = the session's current difficulty
	Daily bool   `json:"daily"` // riddle of the day instead of a random one
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badJSON(w)
		return
	}
	ctrl := s.controller(r)

	var (
		snap game.Snapshot
		err  error
	)
	if strings.TrimSpace(req.Tier) == "" {
		if req.Daily {
			snap, err = ctrl.SelectDailyCurrentQuestion(s.opts.DailySalt)
		} else {
			snap, err = ctrl.SelectCurrentQuestion()
		}
	} else {
		var tier riddles.Tier
		if tier, err = riddles.ParseTier(req.Tier); err != nil {
			writeError(w, err)
			return
		}
		if req.Daily {
			snap, err = ctrl.SelectDailyQuestion(tier, s.opts.DailySalt)
		} else {
			snap, err = ctrl.SelectQuestion(tier)
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type askReq struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badJSON(w)
		return
	}
	res, err := s.controller(r).SubmitQuestion(r.Context(), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type answerReq struct {
	Answer string `json:"answer"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badJSON(w)
		return
	}
	res, err := s.controller(r).SubmitAnswer(req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller(r).Reset())
}
