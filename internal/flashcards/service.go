// Package flashcards holds the deck and card operations behind the HTTP API:
// ownership checks, input validation, review scheduling and due statistics.
package flashcards

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conorfennell/flashdeck/internal/cardhash"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/due"
	"github.com/conorfennell/flashdeck/internal/sm2"
)

// Store is the persistence the service needs. *storage.DB implements it.
type Store interface {
	InsertDeck(ctx context.Context, deck domain.Deck) error
	FindDeck(ctx context.Context, userID, id string) (*domain.Deck, error)
	ListDecks(ctx context.Context, userID string) ([]domain.Deck, error)
	UpdateDeck(ctx context.Context, deck domain.Deck) error
	DeleteDeck(ctx context.Context, userID, id string) error

	InsertCard(ctx context.Context, card domain.Card) error
	InsertCards(ctx context.Context, cards []domain.Card) error
	FindCard(ctx context.Context, userID, id string) (*domain.Card, error)
	ListCards(ctx context.Context, userID, deckID string) ([]domain.Card, error)
	ListUserCards(ctx context.Context, userID string) ([]domain.Card, error)
	ListAllCards(ctx context.Context) ([]domain.Card, error)
	UpdateCardSchedule(ctx context.Context, card domain.Card, prevReviewCount int) error
	DeleteCard(ctx context.Context, userID, id string) error
}

// Service implements deck and card operations for a single caller identity
// passed on every call.
type Service struct {
	store    Store
	now      func() time.Time
	validate *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	s := &Service{store: store, now: time.Now, validate: v}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeckInput is the body of a new deck.
type DeckInput struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// DeckPatch changes the fields that are set. An empty title keeps the
// current title.
type DeckPatch struct {
	Title       *string `json:"title" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsPublic    *bool   `json:"isPublic"`
}

// CardInput is the content of a new card.
type CardInput struct {
	Front string `json:"front" validate:"required,max=1000"`
	Back  string `json:"back" validate:"required,max=1000"`
}

// ListOptions selects what ListDecks attaches and filters.
type ListOptions struct {
	// Stats attaches due and total card counts.
	Stats bool
	// Due keeps only decks with due cards. It implies Stats.
	Due bool
}

// DeckReport is the detailed statistics of one deck.
type DeckReport struct {
	Stats     domain.DeckStats
	Breakdown map[sm2.Difficulty]int
}

// ImportResult reports the outcome of ImportCards.
type ImportResult struct {
	Processed int
	Created   int
	Skipped   int
	Errors    []string
}

// CreateDeck stores a new deck owned by user.
func (s *Service) CreateDeck(ctx context.Context, user string, in DeckInput) (*domain.Deck, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(err)
	}

	now := s.now()
	deck := domain.Deck{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		User:        user,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertDeck(ctx, deck); err != nil {
		return nil, err
	}
	slog.Info("Deck created", "deck_id", deck.ID, "user", user)
	return &deck, nil
}

// GetDeck returns a deck owned by user.
func (s *Service) GetDeck(ctx context.Context, user, deckID string) (*domain.Deck, error) {
	deck, err := s.store.FindDeck(ctx, user, deckID)
	if err != nil {
		return nil, classify(err)
	}
	return deck, nil
}

// UpdateDeck applies patch to a deck owned by user.
func (s *Service) UpdateDeck(ctx context.Context, user, deckID string, patch DeckPatch) (*domain.Deck, error) {
	if err := s.validate.Struct(patch); err != nil {
		return nil, invalid(err)
	}
	deck, err := s.store.FindDeck(ctx, user, deckID)
	if err != nil {
		return nil, classify(err)
	}

	if patch.Title != nil {
		if t := strings.TrimSpace(*patch.Title); t != "" {
			deck.Title = t
		}
	}
	if patch.Description != nil {
		deck.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.IsPublic != nil {
		deck.IsPublic = *patch.IsPublic
	}
	deck.UpdatedAt = s.now()

	if err := s.store.UpdateDeck(ctx, *deck); err != nil {
		return nil, classify(err)
	}
	return deck, nil
}

// DeleteDeck removes a deck and every card in it.
func (s *Service) DeleteDeck(ctx context.Context, user, deckID string) error {
	if err := s.store.DeleteDeck(ctx, user, deckID); err != nil {
		return classify(err)
	}
	slog.Info("Deck deleted", "deck_id", deckID, "user", user)
	return nil
}

// ListDecks returns the user's decks, newest first. Stats are zero unless
// opts.Stats or opts.Due is set.
func (s *Service) ListDecks(ctx context.Context, user string, opts ListOptions) ([]domain.DeckWithStats, error) {
	decks, err := s.store.ListDecks(ctx, user)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DeckWithStats, 0, len(decks))
	for _, d := range decks {
		out = append(out, domain.DeckWithStats{Deck: d})
	}
	if !opts.Stats && !opts.Due {
		return out, nil
	}

	cards, err := s.store.ListUserCards(ctx, user)
	if err != nil {
		return nil, err
	}
	summary := due.SummarizeByDeck(cards, s.now())
	for i := range out {
		out[i].Stats = summary[out[i].ID]
	}

	if opts.Due {
		out = due.FilterDueDecks(out)
	}
	return out, nil
}

// CreateCard adds a card to a deck owned by user. The card is due immediately.
func (s *Service) CreateCard(ctx context.Context, user, deckID string, in CardInput) (*domain.Card, error) {
	in = trimCard(in)
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(err)
	}
	if _, err := s.store.FindDeck(ctx, user, deckID); err != nil {
		return nil, classify(err)
	}

	card := s.newCard(user, deckID, in, s.now())
	if err := s.store.InsertCard(ctx, card); err != nil {
		return nil, err
	}
	return &card, nil
}

// ListCards returns a deck's cards, newest first.
func (s *Service) ListCards(ctx context.Context, user, deckID string) ([]domain.Card, error) {
	cards, err := s.deckCards(ctx, user, deckID)
	if err != nil {
		return nil, err
	}
	slices.Reverse(cards)
	return cards, nil
}

// DueCards returns the deck's due cards in creation order.
func (s *Service) DueCards(ctx context.Context, user, deckID string) ([]domain.Card, error) {
	cards, err := s.deckCards(ctx, user, deckID)
	if err != nil {
		return nil, err
	}
	return due.Cards(cards, s.now()), nil
}

// DeckReport returns card counts and the difficulty breakdown of a deck.
func (s *Service) DeckReport(ctx context.Context, user, deckID string) (*DeckReport, error) {
	cards, err := s.deckCards(ctx, user, deckID)
	if err != nil {
		return nil, err
	}
	return &DeckReport{
		Stats: domain.DeckStats{
			TotalCardsCount: due.CountTotal(cards),
			DueCardsCount:   due.CountDue(cards, s.now()),
		},
		Breakdown: due.Breakdown(cards),
	}, nil
}

// ReviewCard schedules the card's next review from rating and stores it.
// An invalid rating is rejected before the card is read.
func (s *Service) ReviewCard(ctx context.Context, user, cardID string, rating sm2.Rating) (*domain.Card, error) {
	if rating == 0 {
		return nil, fmt.Errorf("%w: %w: rating is required", ErrInvalidArgument, sm2.ErrInvalidRating)
	}
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %w: %d", ErrInvalidArgument, sm2.ErrInvalidRating, int(rating))
	}

	card, err := s.store.FindCard(ctx, user, cardID)
	if err != nil {
		return nil, classify(err)
	}

	now := s.now()
	next, err := sm2.Apply(card.Schedule, rating, now)
	if err != nil {
		return nil, classify(err)
	}
	prev := card.Schedule.ReviewCount
	card.Schedule = next
	card.UpdatedAt = now

	if err := s.store.UpdateCardSchedule(ctx, *card, prev); err != nil {
		return nil, classify(err)
	}
	slog.Info("Card reviewed",
		"card_id", card.ID,
		"rating", rating.String(),
		"interval", next.Interval,
		"ease_factor", next.EaseFactor,
		"review_count", next.ReviewCount,
	)
	return card, nil
}

// DeleteCard removes a single card.
func (s *Service) DeleteCard(ctx context.Context, user, cardID string) error {
	return classify(s.store.DeleteCard(ctx, user, cardID))
}

// ImportCards adds cards to a deck, skipping any whose content already
// exists in the deck or appears earlier in the batch. Invalid cards are
// reported in the result and do not stop the import.
func (s *Service) ImportCards(ctx context.Context, user, deckID string, inputs []CardInput) (*ImportResult, error) {
	existing, err := s.deckCards(ctx, user, deckID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing)+len(inputs))
	for _, c := range existing {
		seen[c.ContentHash] = true
	}

	result := &ImportResult{Errors: make([]string, 0)}
	now := s.now()
	var batch []domain.Card
	for i, in := range inputs {
		result.Processed++
		in = trimCard(in)
		if err := s.validate.Struct(in); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("card %d: %v", i+1, invalid(err)))
			continue
		}
		card := s.newCard(user, deckID, in, now)
		if seen[card.ContentHash] {
			result.Skipped++
			continue
		}
		seen[card.ContentHash] = true
		batch = append(batch, card)
	}

	if err := s.store.InsertCards(ctx, batch); err != nil {
		return nil, err
	}
	result.Created = len(batch)
	slog.Info("Cards imported",
		"deck_id", deckID,
		"processed", result.Processed,
		"created", result.Created,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)
	return result, nil
}

// DueByUser counts due cards per user across all decks. Users with no due
// cards are omitted.
func (s *Service) DueByUser(ctx context.Context) (map[string]int, error) {
	cards, err := s.store.ListAllCards(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make(map[string]int)
	for _, c := range cards {
		if due.IsDue(c, now) {
			out[c.UserID]++
		}
	}
	return out, nil
}

func (s *Service) deckCards(ctx context.Context, user, deckID string) ([]domain.Card, error) {
	if _, err := s.store.FindDeck(ctx, user, deckID); err != nil {
		return nil, classify(err)
	}
	return s.store.ListCards(ctx, user, deckID)
}

func (s *Service) newCard(user, deckID string, in CardInput, now time.Time) domain.Card {
	return domain.Card{
		ID:          uuid.NewString(),
		DeckID:      deckID,
		UserID:      user,
		Front:       in.Front,
		Back:        in.Back,
		ContentHash: cardhash.Hash(in.Front, in.Back),
		Schedule:    sm2.NewState(now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func trimCard(in CardInput) CardInput {
	return CardInput{Front: strings.TrimSpace(in.Front), Back: strings.TrimSpace(in.Back)}
}
