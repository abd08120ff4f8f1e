package repository

import (
	"context"
	"testing"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockMessageLogRepo(mt *mtest.T) repository.MessageLogRepository {
	mt.AddMockResponses(mtest.CreateSuccessResponse())
	repo, err := NewMongoMessageLogRepository(context.Background(), mt.DB)
	require.NoError(mt, err)

	indexes := mt.GetStartedEvent()
	require.NotNil(mt, indexes)
	assert.Equal(mt, "createIndexes", indexes.CommandName)
	assert.Equal(mt, "messageLogs", indexes.Command.Lookup("createIndexes").StringValue())

	mt.ClearEvents()
	return repo
}

// firstUpdate returns the single statement of the last update command sent
func firstUpdate(mt *mtest.T) bson.Raw {
	evt := mt.GetStartedEvent()
	require.NotNil(mt, evt)
	require.Equal(mt, "update", evt.CommandName)
	assert.Equal(mt, "messageLogs", evt.Command.Lookup("update").StringValue())

	updates, err := evt.Command.Lookup("updates").Array().Values()
	require.NoError(mt, err)
	require.Len(mt, updates, 1)
	return updates[0].Document()
}

func TestMessageLogRepo_Record(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("upserts and counts the attempt", func(mt *mtest.T) {
		repo := newMockMessageLogRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		log := &entity.MessageLog{
			OrganizationID: 7,
			MessageID:      "imap:mail.example.com:INBOX:42",
			From:           "noreply@booking.com",
			Subject:        "Nueva reserva",
			ReceivedAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		}
		require.NoError(mt, repo.Record(context.Background(), log))

		assert.Equal(mt, entity.MessageStatusReceived, log.ProcessStatus)
		assert.False(mt, log.FetchedAt.IsZero())

		stmt := firstUpdate(mt)
		assert.True(mt, stmt.Lookup("upsert").Boolean())
		assert.Equal(mt, int64(7), stmt.Lookup("q", "organizationId").AsInt64())
		assert.Equal(mt, log.MessageID, stmt.Lookup("q", "messageId").StringValue())
		assert.Equal(mt, int64(1), stmt.Lookup("u", "$inc", "attempts").AsInt64())
		assert.Equal(mt, "Nueva reserva", stmt.Lookup("u", "$setOnInsert", "subject").StringValue())
		assert.Equal(mt, entity.MessageStatusReceived, stmt.Lookup("u", "$set", "processStatus").StringValue())
	})

	mt.Run("write error is wrapped", func(mt *mtest.T) {
		repo := newMockMessageLogRepo(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key",
		}))

		err := repo.Record(context.Background(), &entity.MessageLog{OrganizationID: 7, MessageID: "m1"})
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to record message m1")
	})
}

func TestMessageLogRepo_MarkOutcome(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sets outcome fields", func(mt *mtest.T) {
		repo := newMockMessageLogRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := repo.MarkOutcome(context.Background(), 7, "m1", entity.MessageStatusCompleted, "booking", "",
			map[string]interface{}{"code": "BK1"})
		require.NoError(mt, err)

		stmt := firstUpdate(mt)
		if upsert, err := stmt.LookupErr("upsert"); err == nil {
			assert.False(mt, upsert.Boolean())
		}
		set := stmt.Lookup("u", "$set").Document()
		assert.Equal(mt, entity.MessageStatusCompleted, set.Lookup("processStatus").StringValue())
		assert.Equal(mt, "booking", set.Lookup("channel").StringValue())
		assert.Equal(mt, "BK1", set.Lookup("extractedData", "code").StringValue())
		_, err = set.LookupErr("errorDetail")
		assert.Error(mt, err, "empty detail is not written")
	})

	mt.Run("unknown message is not found", func(mt *mtest.T) {
		repo := newMockMessageLogRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.MarkOutcome(context.Background(), 7, "missing", entity.MessageStatusFailed, "", "boom", nil)
		assert.ErrorIs(mt, err, entity.ErrNotFound)
	})
}
