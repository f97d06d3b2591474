package storage

// Cards keep their insertion order through the driver's row sequence:
// the implicit rowid on sqlite and the seq column on postgres.
const sqliteSchema = `
-- The 'decks' table stores the decks each user has created.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    user_id TEXT NOT NULL,
    is_public BOOLEAN NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decks_user ON decks(user_id);

-- The 'cards' table stores card content and its review schedule.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    difficulty TEXT NOT NULL DEFAULT 'medium',
    interval_days INTEGER NOT NULL DEFAULT 1,
    ease_factor REAL NOT NULL DEFAULT 2.5,
    next_review DATETIME NOT NULL,
    review_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,

    FOREIGN KEY(deck_id) REFERENCES decks(id)
);

CREATE INDEX IF NOT EXISTS idx_cards_deck_user ON cards(deck_id, user_id);
CREATE INDEX IF NOT EXISTS idx_cards_user_next ON cards(user_id, next_review);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    user_id TEXT NOT NULL,
    is_public BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    seq BIGSERIAL
);

CREATE INDEX IF NOT EXISTS idx_decks_user ON decks(user_id);

CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    deck_id TEXT NOT NULL REFERENCES decks(id),
    user_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    difficulty TEXT NOT NULL DEFAULT 'medium',
    interval_days INTEGER NOT NULL DEFAULT 1,
    ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
    next_review TIMESTAMPTZ NOT NULL,
    review_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    seq BIGSERIAL
);

CREATE INDEX IF NOT EXISTS idx_cards_deck_user ON cards(deck_id, user_id);
CREATE INDEX IF NOT EXISTS idx_cards_user_next ON cards(user_id, next_review);
`
