package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS app_config (
		tenant     text PRIMARY KEY,
		blob       bytea NOT NULL,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		transaction_id text NOT NULL,
		tenant         text NOT NULL,
		channel_id     text NOT NULL,
		flow           text NOT NULL,
		intent_id      text NOT NULL,
		result         text NOT NULL,
		amount_minor   bigint NOT NULL,
		currency       text NOT NULL,
		created_at     timestamptz NOT NULL DEFAULT now(),
		updated_at     timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (tenant, transaction_id)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id             bigserial PRIMARY KEY,
		aggregate_type text NOT NULL,
		aggregate_id   text NOT NULL,
		type           text NOT NULL,
		payload        bytea NOT NULL,
		headers        jsonb,
		traceparent    text,
		status         text NOT NULL DEFAULT 'pending',
		relay_id       text,
		lease_until    timestamptz,
		retry_count    int NOT NULL DEFAULT 0,
		last_error     text,
		created_at     timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE status = 'pending'`,
}

// Migrate applies the schema. Idempotent; runs at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
