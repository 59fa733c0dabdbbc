package game

import (
	"math"

	"github.com/robalobadob/riddler/internal/riddles"
)

const (
	baseAward        = 10.0
	baselineQuestion = 10.0
)

// LevelOf returns floor(cbrt(experience)), never below level 1.
// Level n spans experience [n^3, (n+1)^3). Levels beyond the int range,
// +Inf included, saturate at math.MaxInt.
func LevelOf(experience float64) int {
	if experience < 1 || math.IsNaN(experience) {
		return 1
	}
	f := math.Floor(math.Cbrt(experience))
	if f >= math.MaxInt {
		return math.MaxInt
	}
	if lvl := int(f); lvl > 1 {
		return lvl
	}
	return 1
}

// Multiplier returns the experience multiplier for tier.
func Multiplier(t riddles.Tier) float64 {
	switch t {
	case riddles.Normal:
		return 2
	case riddles.Hard:
		return 3
	}
	return 1
}

// Award returns the new cumulative experience after solving a riddle of
// tier with questionsAsked oracle questions. questionsAsked below 1 counts
// as 1. The efficiency factor 10/q is capped at 1, so a solve within ten
// questions earns the full 10*multiplier and longer attempts earn less.
func Award(current float64, t riddles.Tier, questionsAsked int) float64 {
	q := float64(questionsAsked)
	if q < 1 {
		q = 1
	}
	efficiency := math.Min(1, baselineQuestion/q)
	return current + baseAward*Multiplier(t)*efficiency
}
