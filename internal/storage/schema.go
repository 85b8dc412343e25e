package storage

const schema = `
-- Boxes are Leitner intervals. Ids are assigned by the registry (lowest free integer).
CREATE TABLE IF NOT EXISTS boxes (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    reviewed_at DATETIME
);

-- Cards hold both originals and their disposable copies.
CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    front_text TEXT NOT NULL DEFAULT '',
    back_text TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '',
    box_id INTEGER,                -- NULL while detached or staged
    bucket INTEGER NOT NULL DEFAULT 0, -- 0: unknown, 1: learned
    original_card_id INTEGER,
    is_copy INTEGER NOT NULL DEFAULT 0,
    is_drawn INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(box_id) REFERENCES boxes(id),
    FOREIGN KEY(original_card_id) REFERENCES cards(id)
);

CREATE INDEX IF NOT EXISTS idx_cards_box_bucket ON cards(box_id, bucket);
CREATE INDEX IF NOT EXISTS idx_cards_original ON cards(original_card_id) WHERE is_copy = 1;

-- Draw records track which copy is pulled out for an original. Inactive rows are history.
CREATE TABLE IF NOT EXISTS draw_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    original_card_id INTEGER NOT NULL,
    copy_card_id INTEGER NOT NULL,
    box_id INTEGER NOT NULL,
    drawn_at DATETIME NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_draw_records_active ON draw_records(original_card_id) WHERE is_active = 1;

-- Staged cards sit in a waiting area of a box until committed.
CREATE TABLE IF NOT EXISTS staged_cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id INTEGER NOT NULL UNIQUE,
    target_box_id INTEGER NOT NULL,
    area_index INTEGER NOT NULL,
    created_at DATETIME NOT NULL
);

-- The 'sources' table tracks where decks are imported from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned DATETIME
);

-- Links imported originals to the deck entry that produced them.
CREATE TABLE IF NOT EXISTS imported_cards (
    card_id INTEGER PRIMARY KEY,
    source_id INTEGER NOT NULL,
    source_key TEXT NOT NULL,
    content_hash TEXT NOT NULL,

    UNIQUE(source_id, source_key),
    FOREIGN KEY(source_id) REFERENCES sources(id)
);
`
