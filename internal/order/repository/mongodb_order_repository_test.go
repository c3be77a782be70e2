package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/allisson/orders/internal/database"
	"github.com/allisson/orders/internal/testutil"
)

func TestMongoDBOrderRepository(t *testing.T) {
	testutil.SkipIfNoMongo(t)

	db := testutil.SetupMongoDB(t)
	repo := NewMongoDBOrderRepository(db)
	require.NoError(t, repo.EnsureIndexes(context.Background()))

	runOrderRepositoryTests(t, repo, database.NewMongoTxManager(db.Client()))
}
