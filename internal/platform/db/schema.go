package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the authoritative relational layout. EnsureSchema applies it
// idempotently at startup; there is no separate migration tool.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    unit        TEXT NOT NULL DEFAULT 'ea',
    dimension   TEXT NOT NULL DEFAULT 'count',
    qty_stored  BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS item_batches (
    id              BIGSERIAL PRIMARY KEY,
    item_id         BIGINT NOT NULL REFERENCES items(id),
    qty_initial     BIGINT NOT NULL CHECK (qty_initial > 0),
    qty_remaining   BIGINT NOT NULL CHECK (qty_remaining >= 0 AND qty_remaining <= qty_initial),
    unit_cost_cents BIGINT NOT NULL CHECK (unit_cost_cents >= 0),
    source_kind     TEXT NOT NULL,
    source_id       TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_batches_fifo ON item_batches(item_id, created_at ASC, id ASC) WHERE qty_remaining > 0;

CREATE TABLE IF NOT EXISTS item_movements (
    id              BIGSERIAL PRIMARY KEY,
    item_id         BIGINT NOT NULL REFERENCES items(id),
    batch_id        BIGINT REFERENCES item_batches(id),
    qty_change      BIGINT NOT NULL CHECK (qty_change <> 0),
    unit_cost_cents BIGINT NOT NULL DEFAULT 0,
    source_kind     TEXT NOT NULL,
    source_id       TEXT NOT NULL DEFAULT '',
    is_oversold     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT manufacturing_never_oversold CHECK (source_kind <> 'manufacturing' OR is_oversold = FALSE)
);
CREATE INDEX IF NOT EXISTS idx_movements_item ON item_movements(item_id, created_at ASC, id ASC);

CREATE TABLE IF NOT EXISTS recipes (
    id              BIGSERIAL PRIMARY KEY,
    name            TEXT NOT NULL,
    output_item_id  BIGINT NOT NULL REFERENCES items(id),
    output_qty      BIGINT NOT NULL CHECK (output_qty > 0),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS recipe_items (
    id           BIGSERIAL PRIMARY KEY,
    recipe_id    BIGINT NOT NULL REFERENCES recipes(id),
    item_id      BIGINT NOT NULL REFERENCES items(id),
    qty_required BIGINT NOT NULL CHECK (qty_required > 0),
    is_optional  BOOLEAN NOT NULL DEFAULT FALSE,
    sort         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_recipe_items_recipe ON recipe_items(recipe_id, sort ASC, id ASC);

CREATE TABLE IF NOT EXISTS manufacturing_runs (
    id              BIGSERIAL PRIMARY KEY,
    recipe_id       BIGINT REFERENCES recipes(id),
    output_item_id  BIGINT NOT NULL REFERENCES items(id),
    output_qty      BIGINT NOT NULL CHECK (output_qty > 0),
    status          TEXT NOT NULL DEFAULT 'created',
    executed_at     TIMESTAMPTZ,
    meta            JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS journal_events (
    id              BIGSERIAL PRIMARY KEY,
    event_type      TEXT NOT NULL,
    item_id         BIGINT NOT NULL DEFAULT 0,
    qty_change      BIGINT NOT NULL DEFAULT 0,
    unit_cost_cents BIGINT NOT NULL DEFAULT 0,
    source_kind     TEXT NOT NULL DEFAULT '',
    source_id       TEXT NOT NULL DEFAULT '',
    occurred_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS idempotency_keys (
    key        TEXT PRIMARY KEY,
    module     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
