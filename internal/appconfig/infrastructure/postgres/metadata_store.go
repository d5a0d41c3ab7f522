package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MetadataStore keeps one encrypted blob per tenant. The blob is opaque
// here; encryption and schema live with the configurator.
type MetadataStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewMetadataStore(log *slog.Logger, pool *pgxpool.Pool) *MetadataStore {
	return &MetadataStore{log: log, pool: pool}
}

func (s *MetadataStore) Get(ctx context.Context, tenant string) ([]byte, bool, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx, `SELECT blob FROM app_config WHERE tenant=$1`, tenant).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

func (s *MetadataStore) Set(ctx context.Context, tenant string, blob []byte) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO app_config (tenant, blob, updated_at)
		VALUES ($1,$2,now())
		ON CONFLICT (tenant) DO UPDATE SET blob=$2, updated_at=now()`, tenant, blob)
	return err
}
