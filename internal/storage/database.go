package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // Registers the postgres driver
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/sm2"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrNotFound is returned when a deck or card does not exist for the user.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a card was changed by another review
	// between read and write.
	ErrConflict = errors.New("storage: concurrent update")
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sqlx.DB
	// seq is the column that preserves insertion order.
	seq string
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	var schema, seq string
	switch driver {
	case DriverSQLite:
		schema, seq = sqliteSchema, "rowid"
	case DriverPostgres:
		schema, seq = postgresSchema, "seq"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite has a single writer, and each :memory: connection is its own database.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: conn, seq: seq}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

type deckRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	UserID      string    `db:"user_id"`
	IsPublic    bool      `db:"is_public"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r deckRow) deck() domain.Deck {
	return domain.Deck{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		User:        r.UserID,
		IsPublic:    r.IsPublic,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newDeckRow(d domain.Deck) deckRow {
	return deckRow{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		UserID:      d.User,
		IsPublic:    d.IsPublic,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type cardRow struct {
	ID          string    `db:"id"`
	DeckID      string    `db:"deck_id"`
	UserID      string    `db:"user_id"`
	Front       string    `db:"front"`
	Back        string    `db:"back"`
	ContentHash string    `db:"content_hash"`
	Difficulty  string    `db:"difficulty"`
	Interval    int       `db:"interval_days"`
	EaseFactor  float64   `db:"ease_factor"`
	NextReview  time.Time `db:"next_review"`
	ReviewCount int       `db:"review_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r cardRow) card() domain.Card {
	return domain.Card{
		ID:          r.ID,
		DeckID:      r.DeckID,
		UserID:      r.UserID,
		Front:       r.Front,
		Back:        r.Back,
		ContentHash: r.ContentHash,
		Schedule: sm2.State{
			EaseFactor:  r.EaseFactor,
			Interval:    r.Interval,
			NextReview:  r.NextReview,
			ReviewCount: r.ReviewCount,
			Difficulty:  sm2.Difficulty(r.Difficulty),
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func newCardRow(c domain.Card) cardRow {
	return cardRow{
		ID:          c.ID,
		DeckID:      c.DeckID,
		UserID:      c.UserID,
		Front:       c.Front,
		Back:        c.Back,
		ContentHash: c.ContentHash,
		Difficulty:  string(c.Schedule.Difficulty),
		Interval:    c.Schedule.Interval,
		EaseFactor:  c.Schedule.EaseFactor,
		NextReview:  c.Schedule.NextReview.UTC(),
		ReviewCount: c.Schedule.ReviewCount,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

const (
	deckColumns = `id, title, description, user_id, is_public, created_at, updated_at`
	cardColumns = `id, deck_id, user_id, front, back, content_hash, difficulty,
		interval_days, ease_factor, next_review, review_count, created_at, updated_at`

	insertCard = `
		INSERT INTO cards (` + cardColumns + `)
		VALUES (:id, :deck_id, :user_id, :front, :back, :content_hash, :difficulty,
			:interval_days, :ease_factor, :next_review, :review_count, :created_at, :updated_at)
	`
)

// InsertDeck stores a new deck.
func (db *DB) InsertDeck(ctx context.Context, deck domain.Deck) error {
	_, err := db.conn.NamedExecContext(ctx, `
		INSERT INTO decks (`+deckColumns+`)
		VALUES (:id, :title, :description, :user_id, :is_public, :created_at, :updated_at)
	`, newDeckRow(deck))
	if err != nil {
		return fmt.Errorf("failed to insert deck %s: %w", deck.ID, err)
	}
	return nil
}

// FindDeck retrieves a deck owned by userID.
func (db *DB) FindDeck(ctx context.Context, userID, id string) (*domain.Deck, error) {
	var row deckRow
	err := db.conn.GetContext(ctx, &row, db.conn.Rebind(`
		SELECT `+deckColumns+` FROM decks WHERE id = ? AND user_id = ?
	`), id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find deck %s: %w", id, err)
	}
	d := row.deck()
	return &d, nil
}

// ListDecks returns the user's decks, newest first.
func (db *DB) ListDecks(ctx context.Context, userID string) ([]domain.Deck, error) {
	var rows []deckRow
	err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(`
		SELECT `+deckColumns+` FROM decks WHERE user_id = ?
		ORDER BY created_at DESC, `+db.seq+` DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks for %s: %w", userID, err)
	}
	decks := make([]domain.Deck, 0, len(rows))
	for _, r := range rows {
		decks = append(decks, r.deck())
	}
	return decks, nil
}

// UpdateDeck overwrites the editable fields of a deck owned by deck.User.
func (db *DB) UpdateDeck(ctx context.Context, deck domain.Deck) error {
	res, err := db.conn.NamedExecContext(ctx, `
		UPDATE decks
		SET title = :title, description = :description, is_public = :is_public, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`, newDeckRow(deck))
	if err != nil {
		return fmt.Errorf("failed to update deck %s: %w", deck.ID, err)
	}
	return expectRow(res, ErrNotFound)
}

// DeleteDeck removes a deck and all of its cards in one transaction.
func (db *DB) DeleteDeck(ctx context.Context, userID, id string) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM cards WHERE deck_id = ? AND user_id = ?`), id, userID); err != nil {
		return fmt.Errorf("failed to delete cards of deck %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM decks WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", id, err)
	}
	if err := expectRow(res, ErrNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertCard stores a new card.
func (db *DB) InsertCard(ctx context.Context, card domain.Card) error {
	if _, err := db.conn.NamedExecContext(ctx, insertCard, newCardRow(card)); err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// InsertCards stores a batch of cards atomically, in slice order.
func (db *DB) InsertCards(ctx context.Context, cards []domain.Card) error {
	if len(cards) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cards {
		if _, err := tx.NamedExecContext(ctx, insertCard, newCardRow(c)); err != nil {
			return fmt.Errorf("failed to insert card %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// FindCard retrieves a card owned by userID.
func (db *DB) FindCard(ctx context.Context, userID, id string) (*domain.Card, error) {
	var row cardRow
	err := db.conn.GetContext(ctx, &row, db.conn.Rebind(`
		SELECT `+cardColumns+` FROM cards WHERE id = ? AND user_id = ?
	`), id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	c := row.card()
	return &c, nil
}

// ListCards returns the cards of one deck in creation order.
func (db *DB) ListCards(ctx context.Context, userID, deckID string) ([]domain.Card, error) {
	return db.selectCards(ctx, `WHERE deck_id = ? AND user_id = ?`, deckID, userID)
}

// ListUserCards returns every card the user owns, in creation order.
func (db *DB) ListUserCards(ctx context.Context, userID string) ([]domain.Card, error) {
	return db.selectCards(ctx, `WHERE user_id = ?`, userID)
}

// ListAllCards returns every stored card, in creation order.
func (db *DB) ListAllCards(ctx context.Context) ([]domain.Card, error) {
	return db.selectCards(ctx, ``)
}

func (db *DB) selectCards(ctx context.Context, where string, args ...any) ([]domain.Card, error) {
	var rows []cardRow
	query := `SELECT ` + cardColumns + ` FROM cards ` + where + ` ORDER BY created_at, ` + db.seq
	if err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	cards := make([]domain.Card, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.card())
	}
	return cards, nil
}

// UpdateCardSchedule writes the card's schedule only if its review count in
// the database still equals prevReviewCount. Otherwise it returns ErrConflict.
func (db *DB) UpdateCardSchedule(ctx context.Context, card domain.Card, prevReviewCount int) error {
	row := newCardRow(card)
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		UPDATE cards
		SET difficulty = ?, interval_days = ?, ease_factor = ?, next_review = ?, review_count = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND review_count = ?
	`),
		row.Difficulty,
		row.Interval,
		row.EaseFactor,
		row.NextReview,
		row.ReviewCount,
		row.UpdatedAt,
		row.ID,
		row.UserID,
		prevReviewCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule for card %s: %w", card.ID, err)
	}
	return expectRow(res, ErrConflict)
}

// DeleteCard removes a card owned by userID.
func (db *DB) DeleteCard(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(`DELETE FROM cards WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return expectRow(res, ErrNotFound)
}

func expectRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}
