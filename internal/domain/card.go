package domain

import (
	"time"

	"github.com/conorfennell/flashdeck/internal/sm2"
)

// Deck is a named collection of cards owned by one user.
type Deck struct {
	ID          string
	Title       string
	Description string
	User        string
	IsPublic    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Card is a single front/back flashcard together with its review schedule.
type Card struct {
	ID          string
	DeckID      string
	UserID      string
	Front       string
	Back        string
	ContentHash string
	Schedule    sm2.State
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeckStats is computed at query time and never stored.
type DeckStats struct {
	TotalCardsCount int
	DueCardsCount   int
}

// DeckWithStats pairs a deck with its due statistics.
type DeckWithStats struct {
	Deck
	Stats DeckStats
}
