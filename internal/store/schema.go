package store

// Amounts are stored as decimal text so both SQLite and Postgres round-trip
// them exactly through shopspring/decimal.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS budget_lines (
    id                TEXT PRIMARY KEY,
    budget_code       TEXT NOT NULL UNIQUE,
    funding_source    TEXT NOT NULL DEFAULT '',
    strategic_pillar  TEXT NOT NULL DEFAULT '',
    objective         TEXT NOT NULL DEFAULT '',
    activity          TEXT NOT NULL DEFAULT '',
    odoo_code         TEXT NOT NULL DEFAULT '',
    odoo_category     TEXT NOT NULL DEFAULT '',
    zgf_code          TEXT NOT NULL DEFAULT '',
    currency          TEXT NOT NULL DEFAULT '',
    total_cost        TEXT NOT NULL DEFAULT '0',
    q1                TEXT NOT NULL DEFAULT '0',
    q2                TEXT NOT NULL DEFAULT '0',
    q3                TEXT NOT NULL DEFAULT '0',
    q4                TEXT NOT NULL DEFAULT '0',
    spent             TEXT NOT NULL DEFAULT '0',
    updated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS payment_requests (
    id                TEXT PRIMARY KEY,
    sharepoint_id     BIGINT UNIQUE,
    name              TEXT NOT NULL DEFAULT '',
    budget_code       TEXT NOT NULL DEFAULT '',
    budget_line_id    TEXT,
    year              INTEGER NOT NULL,
    amount            TEXT NOT NULL,
    requested_by      TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'Pending'
                      CHECK (status IN ('Pending', 'Approved', 'Rejected')),
    request_date      TEXT NOT NULL,
    synced_at         TEXT,
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_requests_line ON payment_requests(budget_line_id);
CREATE INDEX IF NOT EXISTS idx_payment_requests_status ON payment_requests(status);
`
