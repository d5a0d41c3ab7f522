package integration

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpg "github.com/commercekit/stripe-bridge/internal/appconfig/infrastructure/postgres"
	sessiondomain "github.com/commercekit/stripe-bridge/internal/session/domain"
	sessionpg "github.com/commercekit/stripe-bridge/internal/session/infrastructure/postgres"
)

const tenant = "https://shop.example.com/graphql/"

func TestPostgresBackends(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, sessionpg.Migrate(ctx, pool))

	log := slog.Default()

	t.Run("metadata store", func(t *testing.T) {
		store := configpg.NewMetadataStore(log, pool)

		_, found, err := store.Get(ctx, tenant)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, store.Set(ctx, tenant, []byte("blob-v1")))
		blob, found, err := store.Get(ctx, tenant)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("blob-v1"), blob)

		// overwrite, not append
		require.NoError(t, store.Set(ctx, tenant, []byte("blob-v2")))
		blob, _, err = store.Get(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, []byte("blob-v2"), blob)
	})

	t.Run("transaction repository with outbox", func(t *testing.T) {
		repo := sessionpg.NewRepository(log, pool)

		tx := sessiondomain.Transaction{
			TransactionID: "txn_1",
			Tenant:        tenant,
			ChannelID:     "web",
			Flow:          sessiondomain.FlowCharge,
			IntentID:      "pi_1",
			Result:        sessiondomain.ChargeRequested,
			AmountMinor:   22299,
			Currency:      "usd",
		}
		require.NoError(t, repo.SaveWithOutbox(ctx, tx, "TransactionResultChanged",
			[]byte(`{"transactionId":"txn_1"}`), map[string]string{"tenant": tenant}, ""))

		got, err := repo.Get(ctx, tenant, "txn_1")
		require.NoError(t, err)
		assert.Equal(t, sessiondomain.ChargeRequested, got.Result)

		// result update is an upsert on the same row
		tx.Result = sessiondomain.ChargeSuccess
		require.NoError(t, repo.SaveWithOutbox(ctx, tx, "TransactionResultChanged",
			[]byte(`{"transactionId":"txn_1"}`), nil, ""))
		got, err = repo.Get(ctx, tenant, "txn_1")
		require.NoError(t, err)
		assert.Equal(t, sessiondomain.ChargeSuccess, got.Result)

		outboxStore := sessionpg.NewOutboxStore(log, pool)
		events, err := outboxStore.LockBatch(ctx, "test-relay", 10, 0)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "transaction", events[0].AggregateType)

		require.NoError(t, outboxStore.MarkSent(ctx, []int64{events[0].ID, events[1].ID}))
		events, err = outboxStore.LockBatch(ctx, "test-relay", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
