package web

import (
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/sm2"
)

type deckView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	User        string    `json:"user"`
	IsPublic    bool      `json:"isPublic"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Set only when a listing asks for statistics.
	TotalCardsCount *int `json:"totalCardsCount,omitempty"`
	DueCardsCount   *int `json:"dueCardsCount,omitempty"`
}

type statsView struct {
	TotalCardsCount int `json:"totalCardsCount"`
	DueCardsCount   int `json:"dueCardsCount"`
}

type reportView struct {
	statsView
	Breakdown map[sm2.Difficulty]int `json:"breakdown"`
}

type cardView struct {
	ID          string         `json:"id"`
	DeckID      string         `json:"deckId"`
	Front       string         `json:"front"`
	Back        string         `json:"back"`
	Difficulty  sm2.Difficulty `json:"difficulty"`
	Interval    int            `json:"interval"`
	EaseFactor  float64        `json:"easeFactor"`
	NextReview  time.Time      `json:"nextReview"`
	ReviewCount int            `json:"reviewCount"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func newDeckView(d domain.Deck) deckView {
	return deckView{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		User:        d.User,
		IsPublic:    d.IsPublic,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func newDeckStatsView(d domain.DeckWithStats) deckView {
	v := newDeckView(d.Deck)
	total, due := d.Stats.TotalCardsCount, d.Stats.DueCardsCount
	v.TotalCardsCount = &total
	v.DueCardsCount = &due
	return v
}

func newStatsView(s domain.DeckStats) *statsView {
	return &statsView{TotalCardsCount: s.TotalCardsCount, DueCardsCount: s.DueCardsCount}
}

func newCardView(c domain.Card) cardView {
	return cardView{
		ID:          c.ID,
		DeckID:      c.DeckID,
		Front:       c.Front,
		Back:        c.Back,
		Difficulty:  c.Schedule.Difficulty,
		Interval:    c.Schedule.Interval,
		EaseFactor:  c.Schedule.EaseFactor,
		NextReview:  c.Schedule.NextReview,
		ReviewCount: c.Schedule.ReviewCount,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func newCardViews(cards []domain.Card) []cardView {
	views := make([]cardView, 0, len(cards))
	for _, c := range cards {
		views = append(views, newCardView(c))
	}
	return views
}
