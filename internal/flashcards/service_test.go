package flashcards

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/sm2"
	"github.com/conorfennell/flashdeck/internal/storage"
)

const (
	ada = "ada@example.com"
	eve = "eve@example.com"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*Service, *storage.DB, *clock) {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("storage.Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c := &clock{t: time.Date(2026, time.February, 2, 10, 0, 0, 0, time.UTC)}
	return NewService(db, WithClock(c.now)), db, c
}

func mustDeck(t *testing.T, s *Service, user, title string) *domain.Deck {
	t.Helper()
	deck, err := s.CreateDeck(context.Background(), user, DeckInput{Title: title})
	if err != nil {
		t.Fatalf("CreateDeck(%q) returned an unexpected error: %v", title, err)
	}
	return deck
}

func mustCard(t *testing.T, s *Service, user, deckID, front, back string) *domain.Card {
	t.Helper()
	card, err := s.CreateCard(context.Background(), user, deckID, CardInput{Front: front, Back: back})
	if err != nil {
		t.Fatalf("CreateCard(%q) returned an unexpected error: %v", front, err)
	}
	return card
}

func TestCreateDeckValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	deck, err := s.CreateDeck(ctx, ada, DeckInput{Title: "  Spanish  ", Description: " verbs "})
	if err != nil {
		t.Fatalf("CreateDeck() returned an unexpected error: %v", err)
	}
	if deck.Title != "Spanish" || deck.Description != "verbs" || deck.User != ada {
		t.Errorf("Expected a trimmed deck owned by %s, but got %+v", ada, *deck)
	}

	testCases := []struct {
		name string
		in   DeckInput
		msg  string
	}{
		{"blank title", DeckInput{Title: "   "}, "title is required"},
		{"long title", DeckInput{Title: strings.Repeat("x", 101)}, "title cannot be more than 100 characters"},
		{"long description", DeckInput{Title: "ok", Description: strings.Repeat("x", 501)}, "description cannot be more than 500 characters"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateDeck(ctx, ada, tc.in)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("Expected ErrInvalidArgument, but got %v", err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("Expected error to mention %q, but got %q", tc.msg, err)
			}
		})
	}
}

func TestDeckOwnership(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)
	deck := mustDeck(t, s, ada, "Private")

	if _, err := s.GetDeck(ctx, eve, deck.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDeck by another user: Expected ErrNotFound, but got %v", err)
	}
	if _, err := s.CreateCard(ctx, eve, deck.ID, CardInput{Front: "f", Back: "b"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateCard by another user: Expected ErrNotFound, but got %v", err)
	}
	if err := s.DeleteDeck(ctx, eve, deck.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteDeck by another user: Expected ErrNotFound, but got %v", err)
	}
	if _, err := s.GetDeck(ctx, ada, deck.ID); err != nil {
		t.Errorf("GetDeck by owner returned an unexpected error: %v", err)
	}
}

func TestUpdateDeck(t *testing.T) {
	ctx := context.Background()
	s, _, c := newTestService(t)
	deck := mustDeck(t, s, ada, "Original")
	c.t = c.t.Add(time.Hour)

	empty, public := "", true
	got, err := s.UpdateDeck(ctx, ada, deck.ID, DeckPatch{Title: &empty, IsPublic: &public})
	if err != nil {
		t.Fatalf("UpdateDeck() returned an unexpected error: %v", err)
	}
	if got.Title != "Original" {
		t.Errorf("Expected an empty title to keep %q, but got %q", "Original", got.Title)
	}
	if !got.IsPublic {
		t.Error("Expected the deck to become public")
	}
	if !got.UpdatedAt.Equal(c.t) {
		t.Errorf("Expected updated at %v, but got %v", c.t, got.UpdatedAt)
	}

	title, desc := "Renamed", ""
	got, err = s.UpdateDeck(ctx, ada, deck.ID, DeckPatch{Title: &title, Description: &desc})
	if err != nil {
		t.Fatalf("UpdateDeck() returned an unexpected error: %v", err)
	}
	if got.Title != "Renamed" || !got.IsPublic {
		t.Errorf("Expected {Renamed public}, but got %+v", *got)
	}

	long := strings.Repeat("y", 101)
	if _, err := s.UpdateDeck(ctx, ada, deck.ID, DeckPatch{Title: &long}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a long title, but got %v", err)
	}
}

func TestListDecksWithStats(t *testing.T) {
	ctx := context.Background()
	s, _, c := newTestService(t)

	older := mustDeck(t, s, ada, "Older")
	c.t = c.t.Add(time.Minute)
	newer := mustDeck(t, s, ada, "Newer")
	mustDeck(t, s, eve, "Not mine")

	mustCard(t, s, ada, older.ID, "uno", "one")
	reviewed := mustCard(t, s, ada, older.ID, "dos", "two")
	mustCard(t, s, ada, newer.ID, "tres", "three")
	if _, err := s.ReviewCard(ctx, ada, reviewed.ID, sm2.Good); err != nil {
		t.Fatalf("ReviewCard() returned an unexpected error: %v", err)
	}
	c.t = c.t.Add(time.Hour)

	plain, err := s.ListDecks(ctx, ada, ListOptions{})
	if err != nil {
		t.Fatalf("ListDecks() returned an unexpected error: %v", err)
	}
	if len(plain) != 2 || plain[0].ID != newer.ID || plain[1].ID != older.ID {
		t.Fatalf("Expected [Newer Older], but got %+v", plain)
	}
	if plain[1].Stats != (domain.DeckStats{}) {
		t.Errorf("Expected no stats without options, but got %+v", plain[1].Stats)
	}

	withStats, err := s.ListDecks(ctx, ada, ListOptions{Stats: true})
	if err != nil {
		t.Fatalf("ListDecks(stats) returned an unexpected error: %v", err)
	}
	if got := withStats[1].Stats; got.TotalCardsCount != 2 || got.DueCardsCount != 1 {
		t.Errorf("Older: Expected {2 1}, but got %+v", got)
	}
	if got := withStats[0].Stats; got.TotalCardsCount != 1 || got.DueCardsCount != 1 {
		t.Errorf("Newer: Expected {1 1}, but got %+v", got)
	}

	// Review the only card of Newer so that it drops out of the due list.
	newerCards, err := s.ListCards(ctx, ada, newer.ID)
	if err != nil {
		t.Fatalf("ListCards() returned an unexpected error: %v", err)
	}
	if _, err := s.ReviewCard(ctx, ada, newerCards[0].ID, sm2.Easy); err != nil {
		t.Fatalf("ReviewCard() returned an unexpected error: %v", err)
	}

	dueOnly, err := s.ListDecks(ctx, ada, ListOptions{Due: true})
	if err != nil {
		t.Fatalf("ListDecks(due) returned an unexpected error: %v", err)
	}
	if len(dueOnly) != 1 || dueOnly[0].ID != older.ID || dueOnly[0].Stats.DueCardsCount != 1 {
		t.Errorf("Expected only Older with one due card, but got %+v", dueOnly)
	}
}

func TestCreateCardDefaults(t *testing.T) {
	ctx := context.Background()
	s, _, c := newTestService(t)
	deck := mustDeck(t, s, ada, "Go")

	card := mustCard(t, s, ada, deck.ID, "  What is a goroutine? ", "A lightweight thread.")
	if card.Front != "What is a goroutine?" {
		t.Errorf("Expected trimmed front, but got %q", card.Front)
	}
	want := sm2.NewState(c.t)
	if card.Schedule != want {
		t.Errorf("Expected schedule %+v, but got %+v", want, card.Schedule)
	}

	if _, err := s.CreateCard(ctx, ada, deck.ID, CardInput{Front: "only front"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument without a back, but got %v", err)
	}
	if _, err := s.CreateCard(ctx, ada, "missing", CardInput{Front: "f", Back: "b"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a missing deck, but got %v", err)
	}
}

func TestListCardsNewestFirstAndDueInCreationOrder(t *testing.T) {
	ctx := context.Background()
	s, _, c := newTestService(t)
	deck := mustDeck(t, s, ada, "Order")

	first := mustCard(t, s, ada, deck.ID, "1", "one")
	c.t = c.t.Add(time.Second)
	second := mustCard(t, s, ada, deck.ID, "2", "two")
	c.t = c.t.Add(time.Second)
	third := mustCard(t, s, ada, deck.ID, "3", "three")

	if _, err := s.ReviewCard(ctx, ada, second.ID, sm2.Good); err != nil {
		t.Fatalf("ReviewCard() returned an unexpected error: %v", err)
	}

	listed, err := s.ListCards(ctx, ada, deck.ID)
	if err != nil {
		t.Fatalf("ListCards() returned an unexpected error: %v", err)
	}
	if len(listed) != 3 || listed[0].ID != third.ID || listed[2].ID != first.ID {
		t.Errorf("Expected newest first, but got %v", fronts(listed))
	}

	dueCards, err := s.DueCards(ctx, ada, deck.ID)
	if err != nil {
		t.Fatalf("DueCards() returned an unexpected error: %v", err)
	}
	if len(dueCards) != 2 || dueCards[0].ID != first.ID || dueCards[1].ID != third.ID {
		t.Errorf("Expected [first third], but got %v", fronts(dueCards))
	}
}

func TestReviewCard(t *testing.T) {
	ctx := context.Background()
	s, db, c := newTestService(t)
	deck := mustDeck(t, s, ada, "Review")
	card := mustCard(t, s, ada, deck.ID, "front", "back")

	reviewed, err := s.ReviewCard(ctx, ada, card.ID, sm2.Good)
	if err != nil {
		t.Fatalf("ReviewCard() returned an unexpected error: %v", err)
	}
	if reviewed.Schedule.Interval != 3 || reviewed.Schedule.EaseFactor != 2.5 || reviewed.Schedule.ReviewCount != 1 {
		t.Errorf("Expected {3 2.5 1}, but got %+v", reviewed.Schedule)
	}
	if want := c.t.AddDate(0, 0, 3); !reviewed.Schedule.NextReview.Equal(want) {
		t.Errorf("Expected next review %v, but got %v", want, reviewed.Schedule.NextReview)
	}

	stored, err := db.FindCard(ctx, ada, card.ID)
	if err != nil {
		t.Fatalf("FindCard() returned an unexpected error: %v", err)
	}
	if stored.Schedule.Interval != 3 || stored.Schedule.ReviewCount != 1 {
		t.Errorf("Expected the review to be stored, but got %+v", stored.Schedule)
	}

	_, err = s.ReviewCard(ctx, ada, card.ID, sm2.Rating(0))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a missing rating, but got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "rating is required") {
		t.Errorf("Expected a missing rating to read %q, but got %q", "rating is required", err)
	}
	if _, err := s.ReviewCard(ctx, ada, card.ID, sm2.Rating(9)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for an out of range rating, but got %v", err)
	}
	if _, err := s.ReviewCard(ctx, eve, card.ID, sm2.Good); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for another user's card, but got %v", err)
	}

	after, err := db.FindCard(ctx, ada, card.ID)
	if err != nil {
		t.Fatalf("FindCard() returned an unexpected error: %v", err)
	}
	if after.Schedule.ReviewCount != 1 {
		t.Errorf("Expected rejected reviews to leave the card alone, but review count is %d", after.Schedule.ReviewCount)
	}
}

// racingStore lets another review land between the read and the write.
type racingStore struct {
	*storage.DB
	raced bool
}

func (r *racingStore) FindCard(ctx context.Context, userID, id string) (*domain.Card, error) {
	card, err := r.DB.FindCard(ctx, userID, id)
	if err != nil || r.raced {
		return card, err
	}
	r.raced = true
	other := *card
	other.Schedule.ReviewCount++
	if err := r.DB.UpdateCardSchedule(ctx, other, card.Schedule.ReviewCount); err != nil {
		return nil, err
	}
	return card, nil
}

func TestReviewCardConflict(t *testing.T) {
	ctx := context.Background()
	s, db, c := newTestService(t)
	deck := mustDeck(t, s, ada, "Race")
	card := mustCard(t, s, ada, deck.ID, "front", "back")

	racing := NewService(&racingStore{DB: db}, WithClock(c.now))
	if _, err := racing.ReviewCard(ctx, ada, card.ID, sm2.Easy); !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, but got %v", err)
	}

	stored, err := db.FindCard(ctx, ada, card.ID)
	if err != nil {
		t.Fatalf("FindCard() returned an unexpected error: %v", err)
	}
	if stored.Schedule.Difficulty == sm2.DifficultyEasy {
		t.Error("Expected the losing review not to be stored")
	}
}

func TestDeleteDeckRemovesCards(t *testing.T) {
	ctx := context.Background()
	s, db, _ := newTestService(t)
	deck := mustDeck(t, s, ada, "Doomed")
	card := mustCard(t, s, ada, deck.ID, "front", "back")

	if err := s.DeleteDeck(ctx, ada, deck.ID); err != nil {
		t.Fatalf("DeleteDeck() returned an unexpected error: %v", err)
	}
	if _, err := db.FindCard(ctx, ada, card.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected the card to be deleted with its deck, but got %v", err)
	}
	if _, err := s.ReviewCard(ctx, ada, card.ID, sm2.Good); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound reviewing a deleted card, but got %v", err)
	}
}

func TestDeleteCard(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)
	deck := mustDeck(t, s, ada, "Cards")
	card := mustCard(t, s, ada, deck.ID, "front", "back")

	if err := s.DeleteCard(ctx, eve, card.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting another user's card, but got %v", err)
	}
	if err := s.DeleteCard(ctx, ada, card.ID); err != nil {
		t.Errorf("DeleteCard() returned an unexpected error: %v", err)
	}
}

func TestDeckReport(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)
	deck := mustDeck(t, s, ada, "Report")
	a := mustCard(t, s, ada, deck.ID, "a", "1")
	b := mustCard(t, s, ada, deck.ID, "b", "2")
	mustCard(t, s, ada, deck.ID, "c", "3")

	if _, err := s.ReviewCard(ctx, ada, a.ID, sm2.Easy); err != nil {
		t.Fatalf("ReviewCard() returned an unexpected error: %v", err)
	}
	if _, err := s.ReviewCard(ctx, ada, b.ID, sm2.Again); err != nil {
		t.Fatalf("ReviewCard() returned an unexpected error: %v", err)
	}

	report, err := s.DeckReport(ctx, ada, deck.ID)
	if err != nil {
		t.Fatalf("DeckReport() returned an unexpected error: %v", err)
	}
	if report.Stats.TotalCardsCount != 3 || report.Stats.DueCardsCount != 1 {
		t.Errorf("Expected {3 1}, but got %+v", report.Stats)
	}
	want := map[sm2.Difficulty]int{sm2.DifficultyEasy: 1, sm2.DifficultyMedium: 1, sm2.DifficultyHard: 1}
	for k, v := range want {
		if report.Breakdown[k] != v {
			t.Errorf("%s: Expected %d, but got %d", k, v, report.Breakdown[k])
		}
	}
}

func TestImportCardsDeduplicates(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)
	deck := mustDeck(t, s, ada, "Import")
	mustCard(t, s, ada, deck.ID, "Hola", "Hello")

	result, err := s.ImportCards(ctx, ada, deck.ID, []CardInput{
		{Front: "hola ", Back: "hello"},
		{Front: "Adios", Back: "Goodbye"},
		{Front: "adios", Back: "goodbye"},
		{Front: "", Back: "no front"},
	})
	if err != nil {
		t.Fatalf("ImportCards() returned an unexpected error: %v", err)
	}
	if result.Processed != 4 || result.Created != 1 || result.Skipped != 2 || len(result.Errors) != 1 {
		t.Errorf("Expected {4 1 2 [1 error]}, but got %+v", *result)
	}

	cards, err := s.ListCards(ctx, ada, deck.ID)
	if err != nil {
		t.Fatalf("ListCards() returned an unexpected error: %v", err)
	}
	if len(cards) != 2 || cards[0].Front != "Adios" {
		t.Errorf("Expected [Adios Hola], but got %v", fronts(cards))
	}

	if _, err := s.ImportCards(ctx, eve, deck.ID, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound importing into another user's deck, but got %v", err)
	}
}

func TestDueByUser(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)
	adaDeck := mustDeck(t, s, ada, "A")
	eveDeck := mustDeck(t, s, eve, "E")
	mustCard(t, s, ada, adaDeck.ID, "1", "1")
	mustCard(t, s, ada, adaDeck.ID, "2", "2")
	done := mustCard(t, s, eve, eveDeck.ID, "3", "3")
	if _, err := s.ReviewCard(ctx, eve, done.ID, sm2.Good); err != nil {
		t.Fatalf("ReviewCard() returned an unexpected error: %v", err)
	}

	got, err := s.DueByUser(ctx)
	if err != nil {
		t.Fatalf("DueByUser() returned an unexpected error: %v", err)
	}
	if len(got) != 1 || got[ada] != 2 {
		t.Errorf("Expected map[%s:2], but got %v", ada, got)
	}
}

func fronts(cards []domain.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Front
	}
	return out
}
