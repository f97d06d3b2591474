// Package sm2 implements the SM-2 variant used to schedule card reviews.
//
// Apply is a pure function of the current scheduling state, the rating and
// the time of the review. The stored interval is the rounded day count, so
// every review compounds from the rounded value of the previous one.
package sm2

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultEaseFactor is the ease factor of a new card.
	DefaultEaseFactor = 2.5
	// MinEaseFactor is the floor no review can push the ease factor below.
	MinEaseFactor     = 1.3
	// DefaultInterval is the interval, in days, of a new card and the
	// shortest interval any review produces.
	DefaultInterval   = 1
	// MaxInterval caps the interval at roughly one hundred years.
	MaxInterval       = 36500
)

// Difficulty is the qualitative label stored with a card.
// It only has three values; an Again rating is stored as Hard.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid reports whether d is one of the three stored labels.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// State holds the scheduling fields of a card.
type State struct {
	EaseFactor  float64
	Interval    int
	NextReview  time.Time
	ReviewCount int
	Difficulty  Difficulty
}

// NewState returns the state of a freshly authored card, due immediately.
func NewState(now time.Time) State {
	return State{
		EaseFactor:  DefaultEaseFactor,
		Interval:    DefaultInterval,
		NextReview:  now,
		ReviewCount: 0,
		Difficulty:  DifficultyMedium,
	}
}

// Apply computes the state that follows a review with the given rating at now.
func Apply(s State, r Rating, now time.Time) (State, error) {
	ease := math.Max(MinEaseFactor, s.EaseFactor)
	interval := float64(max(DefaultInterval, s.Interval))

	switch r {
	case Again:
		interval = 1
		ease = math.Max(MinEaseFactor, ease-0.2)
	case Hard:
		interval = math.Max(1, interval*1.2)
		ease = math.Max(MinEaseFactor, ease-0.15)
	case Good:
		interval = interval * ease
	case Easy:
		interval = interval * ease * 1.3
		ease = ease + 0.1
	default:
		return s, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}

	days := RoundDays(interval)
	return State{
		EaseFactor:  RoundEase(ease),
		Interval:    days,
		NextReview:  now.AddDate(0, 0, days),
		ReviewCount: s.ReviewCount + 1,
		Difficulty:  DifficultyFor(r),
	}, nil
}

// RoundDays rounds a fractional interval to whole days, half away from zero.
// The result is clamped to [DefaultInterval, MaxInterval].
func RoundDays(interval float64) int {
	if interval >= MaxInterval {
		return MaxInterval
	}
	return max(DefaultInterval, int(math.Round(interval)))
}

// RoundEase rounds an ease factor to two decimal places.
func RoundEase(ease float64) float64 {
	return math.Round(ease*100) / 100
}

// DifficultyFor maps a rating to the label stored on the card:
// easy -> easy, good -> medium, hard and again -> hard.
func DifficultyFor(r Rating) Difficulty {
	switch r {
	case Easy:
		return DifficultyEasy
	case Good:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}
