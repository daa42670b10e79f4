package mongo

import (
	"context"
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/mcoot/shrubbery/internal/model"
	"github.com/mcoot/shrubbery/internal/storage"
)

// undoFunc reverts one applied write
type undoFunc func(ctx context.Context) error

func noUndo(context.Context) error { return nil }

func (s *Storage) insertShrub(ctx context.Context, shrub *model.Shrub) (undoFunc, error) {
	if _, err := s.shrubs.InsertOne(ctx, toShrubDoc(shrub)); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		_, err := s.shrubs.DeleteOne(ctx, bson.M{"_id": string(shrub.ID)})
		return err
	}, nil
}

func (s *Storage) insertVote(ctx context.Context, vote *model.Vote) (undoFunc, error) {
	if _, err := s.votes.InsertOne(ctx, toVoteDoc(vote)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, model.ErrAlreadyVoted
		}
		return nil, err
	}
	return func(ctx context.Context) error {
		_, err := s.votes.DeleteOne(ctx, bson.M{"_id": string(vote.ID)})
		return err
	}, nil
}

// addToSet inserts value into the array field of the document with id.
// Reports not-found when no document matched.
func addToSet(ctx context.Context, coll *mongo.Collection, id, field, value string, notFound error) (undoFunc, error) {
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{field: value}},
	)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, notFound
	}
	if res.ModifiedCount == 0 {
		// already present
		return noUndo, nil
	}
	return func(ctx context.Context) error {
		_, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{field: value}})
		return err
	}, nil
}

func (s *Storage) attachShrub(ctx context.Context, playerID model.PlayerID, shrubID model.ShrubID) (undoFunc, error) {
	return addToSet(ctx, s.players, string(playerID), "shrubs", string(shrubID), model.ErrPlayerNotFound)
}

func (s *Storage) addVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) (undoFunc, error) {
	return addToSet(ctx, s.shrubs, string(shrubID), "votes", string(voteID), model.ErrShrubNotFound)
}

// tx applies each write as it is made. In session mode the writes run in
// the session's transaction; otherwise undos are recorded so a failed unit
// can be compensated.
type tx struct {
	s     *Storage
	undos []undoFunc
}

var _ storage.Tx = (*tx)(nil)

func (s *Storage) WithTx(ctx context.Context, fn storage.TxFunc) error {
	if s.cfg.Transactions {
		return s.withSession(ctx, fn)
	}
	return s.withCompensation(ctx, fn)
}

// withSession runs fn once in a session transaction. A transient
// transaction error is reported as ErrWriteConflict rather than retried;
// retrying is the caller's decision.
func (s *Storage) withSession(ctx context.Context, fn storage.TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	if err := sess.StartTransaction(); err != nil {
		return err
	}
	sessCtx := mongo.NewSessionContext(ctx, sess)

	if err := fn(sessCtx, &tx{s: s}); err != nil {
		_ = sess.AbortTransaction(context.WithoutCancel(sessCtx))
		return transactionError(err)
	}
	if err := sess.CommitTransaction(sessCtx); err != nil {
		return transactionError(err)
	}
	return nil
}

// labeledError is implemented by the driver's server errors
type labeledError interface {
	HasErrorLabel(label string) bool
}

func transactionError(err error) error {
	var le labeledError
	if errors.As(err, &le) && le.HasErrorLabel("TransientTransactionError") {
		return model.ErrWriteConflict
	}
	return err
}

func (s *Storage) withCompensation(ctx context.Context, fn storage.TxFunc) error {
	t := &tx{s: s}
	err := fn(ctx, t)
	if err == nil {
		return nil
	}

	// Compensate with a context that survives cancellation of the request
	undoCtx := context.WithoutCancel(ctx)
	for i := len(t.undos) - 1; i >= 0; i-- {
		if undoErr := t.undos[i](undoCtx); undoErr != nil {
			// The unit is now partially applied. Nothing else can repair it.
			s.logger.ErrorContext(ctx, "mongo compensation failed",
				slog.Int("step", i),
				slog.String("error", undoErr.Error()),
				slog.String("cause", err.Error()),
			)
		}
	}
	return err
}

func (t *tx) record(undo undoFunc, err error) error {
	if err != nil {
		return err
	}
	if !t.s.cfg.Transactions {
		t.undos = append(t.undos, undo)
	}
	return nil
}

func (t *tx) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return t.s.GetPlayer(ctx, id)
}

func (t *tx) InsertShrub(ctx context.Context, shrub *model.Shrub) error {
	return t.record(t.s.insertShrub(ctx, shrub))
}

func (t *tx) InsertVote(ctx context.Context, vote *model.Vote) error {
	return t.record(t.s.insertVote(ctx, vote))
}

func (t *tx) AttachShrub(ctx context.Context, playerID model.PlayerID, shrubID model.ShrubID) error {
	return t.record(t.s.attachShrub(ctx, playerID, shrubID))
}

func (t *tx) AddVoteRef(ctx context.Context, shrubID model.ShrubID, voteID model.VoteID) error {
	return t.record(t.s.addVoteRef(ctx, shrubID, voteID))
}
