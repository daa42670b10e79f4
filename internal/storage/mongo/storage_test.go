package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/storage"
	"github.com/mcoot/shrubbery/internal/storage/storagetest"
	"github.com/mcoot/shrubbery/internal/testutil"
)

// newTestStorage connects to SHRUBBERY_TEST_MONGO_URI and gives each test its
// own database, dropped on cleanup.
func newTestStorage(t *testing.T, transactions bool) storage.Storage {
	uri := os.Getenv("SHRUBBERY_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SHRUBBERY_TEST_MONGO_URI not set")
	}

	cfg := DefaultConfig()
	cfg.URI = uri
	cfg.Database = "shrubbery_test_" + bson.NewObjectID().Hex()
	cfg.Transactions = transactions

	ctx := context.Background()
	st, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.db.Drop(ctx)
		_ = st.Close()
	})
	return st
}

func TestCompensatingContract(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage { return newTestStorage(t, false) },
	})
}

// TestTransactionalContract needs a replica set, signalled by
// SHRUBBERY_TEST_MONGO_TRANSACTIONS=1.
func TestTransactionalContract(t *testing.T) {
	if os.Getenv("SHRUBBERY_TEST_MONGO_TRANSACTIONS") != "1" {
		t.Skip("SHRUBBERY_TEST_MONGO_TRANSACTIONS not set")
	}
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage { return newTestStorage(t, true) },
	})
}

func stageNames(p []bson.D) []string {
	names := make([]string, len(p))
	for i, stage := range p {
		names[i] = stage[0].Key
	}
	return names
}

func TestPlayerLeaderboardPipeline(t *testing.T) {
	p := playerLeaderboardPipeline(100)
	assert.Equal(t, []string{"$lookup", "$lookup", "$project", "$setWindowFields", "$sort", "$limit"}, stageNames(p))

	window := p[3][0].Value.(bson.M)
	assert.Equal(t, bson.M{"rank": bson.M{"$documentNumber": bson.M{}}}, window["output"])
	assert.Equal(t, int64(100), p[5][0].Value)
}

func TestShrubLeaderboardPipeline(t *testing.T) {
	p := shrubLeaderboardPipeline(10)
	assert.Equal(t, []string{"$lookup", "$unwind", "$lookup", "$project", "$setWindowFields", "$sort", "$limit"}, stageNames(p))

	window := p[4][0].Value.(bson.M)
	assert.Equal(t, bson.M{"rank": bson.M{"$rank": bson.M{}}}, window["output"])
	assert.Equal(t, bson.D{{Key: "totalPoints", Value: -1}}, window["sortBy"], "rank must depend on points alone")
}

func TestPipelinesWithoutLimit(t *testing.T) {
	assert.NotContains(t, stageNames(playerLeaderboardPipeline(0)), "$limit")
	assert.NotContains(t, stageNames(shrubLeaderboardPipeline(0)), "$limit")
}

func TestNewIDIsObjectIDHex(t *testing.T) {
	s := &Storage{}
	_, err := bson.ObjectIDFromHex(s.NewID())
	assert.NoError(t, err)
}

func TestCompensationRunsUndosInReverseAndLogsFailures(t *testing.T) {
	logger, rec := testutil.NewLogRecorder(t)
	s := &Storage{logger: logger}

	var order []int
	boom := errors.New("boom")
	err := s.withCompensation(context.Background(), func(ctx context.Context, stx storage.Tx) error {
		unit := stx.(*tx)
		_ = unit.record(func(context.Context) error { order = append(order, 0); return nil }, nil)
		_ = unit.record(func(context.Context) error { order = append(order, 1); return errors.New("undo failed") }, nil)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 0}, order)

	entries := rec.Entries("mongo compensation failed")
	require.Len(t, entries, 1)
	assert.Equal(t, float64(1), entries[0]["step"])
	assert.Equal(t, "undo failed", entries[0]["error"])
	assert.Equal(t, "boom", entries[0]["cause"])
}

func TestCompensationSkipsUndosOnSuccess(t *testing.T) {
	s := &Storage{logger: testutil.NopLogger()}
	undone := false
	err := s.withCompensation(context.Background(), func(ctx context.Context, stx storage.Tx) error {
		return stx.(*tx).record(func(context.Context) error { undone = true; return nil }, nil)
	})
	assert.NoError(t, err)
	assert.False(t, undone)
}

func TestTransactionErrorMapsTransientLabel(t *testing.T) {
	transient := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	assert.ErrorIs(t, transactionError(fmt.Errorf("commit: %w", transient)), model.ErrWriteConflict)

	other := mongo.CommandError{Code: 11000, Name: "DuplicateKey"}
	assert.Equal(t, other, transactionError(other))
	assert.ErrorIs(t, transactionError(model.ErrAlreadyVoted), model.ErrAlreadyVoted)
}
