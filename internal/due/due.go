// Package due selects cards whose review time has arrived and aggregates
// per-deck counts. Every function is a pure projection over the cards it is
// given; nothing is cached.
package due

import (
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/sm2"
)

// IsDue reports whether the card's next review is at or before now.
func IsDue(card domain.Card, now time.Time) bool {
	return !card.Schedule.NextReview.After(now)
}

// CountDue returns the number of due cards.
func CountDue(cards []domain.Card, now time.Time) int {
	n := 0
	for _, c := range cards {
		if IsDue(c, now) {
			n++
		}
	}
	return n
}

// CountTotal returns the number of cards regardless of schedule.
func CountTotal(cards []domain.Card) int {
	return len(cards)
}

// Cards returns the due cards in the order they were given.
func Cards(cards []domain.Card, now time.Time) []domain.Card {
	out := make([]domain.Card, 0, len(cards))
	for _, c := range cards {
		if IsDue(c, now) {
			out = append(out, c)
		}
	}
	return out
}

// SummarizeByDeck groups cards by deck ID and counts total and due cards.
// Decks with no cards do not appear in the result.
func SummarizeByDeck(cards []domain.Card, now time.Time) map[string]domain.DeckStats {
	out := make(map[string]domain.DeckStats)
	for _, c := range cards {
		s := out[c.DeckID]
		s.TotalCardsCount++
		if IsDue(c, now) {
			s.DueCardsCount++
		}
		out[c.DeckID] = s
	}
	return out
}

// FilterDueDecks keeps the decks that have at least one due card.
func FilterDueDecks(decks []domain.DeckWithStats) []domain.DeckWithStats {
	out := make([]domain.DeckWithStats, 0, len(decks))
	for _, d := range decks {
		if d.Stats.DueCardsCount > 0 {
			out = append(out, d)
		}
	}
	return out
}

// Breakdown counts cards per stored difficulty label. All three labels are
// present in the result, zero when unused.
func Breakdown(cards []domain.Card) map[sm2.Difficulty]int {
	out := map[sm2.Difficulty]int{
		sm2.DifficultyEasy:   0,
		sm2.DifficultyMedium: 0,
		sm2.DifficultyHard:   0,
	}
	for _, c := range cards {
		out[c.Schedule.Difficulty]++
	}
	return out
}
