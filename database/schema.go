package database

// DatabaseSchema contains the complete PostgreSQL schema for LeadLift.
// Applied on startup inside a transaction; every statement is idempotent.
const DatabaseSchema = `
-- Enable required extensions
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

-- Processing history, one row per enrichment job outcome
CREATE TABLE IF NOT EXISTS enrichment_history (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    original_filename TEXT NOT NULL,
    output_filename TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL CHECK (status IN ('completed', 'failed')),
    rows_processed INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_enrichment_history_created_at
    ON enrichment_history (created_at DESC);

-- Server-side settings, encrypted at rest (provider API key)
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value_encrypted BYTEA NOT NULL,
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
`
