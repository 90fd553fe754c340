package dynamodb_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"brain2-assistant/internal/domain"
	apperrors "brain2-assistant/internal/errors"
	dynamo "brain2-assistant/internal/infrastructure/persistence/dynamodb"
	"brain2-assistant/internal/infrastructure/persistence/dynamodb/dynamotest"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testTable = "brain2-test"
	testIndex = "GSI1"
)

var created = time.Date(2026, 1, 31, 10, 30, 0, 0, time.UTC)

func newMessage(userID, timestamp, id string) domain.Message {
	return domain.Message{
		UserID:    userID,
		Timestamp: timestamp,
		MessageID: id,
		Text:      "text " + id,
		Status:    domain.MessageReceived,
		CreatedAt: created,
	}
}

func newTask(userID, id string) domain.Task {
	return domain.Task{
		UserID:    userID,
		TaskID:    id,
		Title:     "task " + id,
		Status:    domain.TaskPending,
		Priority:  domain.PriorityMedium,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMessageLifecycle(t *testing.T) {
	ctx := context.Background()
	table := dynamotest.NewTable()
	repo := dynamo.NewRepository[domain.Message](table, testTable, testIndex, dynamo.MessageCodec{}, zaptest.NewLogger(t))

	msg := newMessage("u1", "2026-01-31T10:30:00Z", "m1")
	require.NoError(t, repo.Put(ctx, msg))

	pk, sk := "u1", "message#2026-01-31T10:30:00Z#m1"
	got, found, err := repo.Get(ctx, pk, sk)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.MessageReceived, got.Status)

	require.NoError(t, repo.Update(ctx, pk, sk, dynamo.Updates{"status": domain.MessageProcessed}))

	after, found, err := repo.Get(ctx, pk, sk)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.MessageProcessed, after.Status)

	expected := got
	expected.Status = domain.MessageProcessed
	assert.Equal(t, expected, after)

	record, _ := table.Item(pk, sk)
	assert.Equal(t, fmt.Sprint(msg.ExpiresAt()), record[dynamo.AttrTTL].(*types.AttributeValueMemberN).Value)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	repo := dynamo.NewRepository[domain.Task](dynamotest.NewTable(), testTable, testIndex, dynamo.TaskCodec{}, nil)

	t.Run("Should report absence without an error", func(t *testing.T) {
		_, found, err := repo.Get(ctx, "u1", "task#missing")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Should return a record of the wrong type as a codec mismatch", func(t *testing.T) {
		table := dynamotest.NewTable()
		todos := dynamo.NewRepository[domain.Todo](table, testTable, testIndex, dynamo.TodoCodec{}, nil)
		require.NoError(t, todos.Put(ctx, domain.Todo{UserID: "u1", TodoID: "d1", Text: "x", CreatedAt: created, UpdatedAt: created}))

		tasks := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)
		_, _, err := tasks.Get(ctx, "u1", "todo#d1")
		assert.True(t, apperrors.IsCodecMismatch(err))
	})
}

func TestQueryPrefix(t *testing.T) {
	ctx := context.Background()
	table := dynamotest.NewTable()
	messages := dynamo.NewRepository[domain.Message](table, testTable, testIndex, dynamo.MessageCodec{}, nil)
	tasks := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)
	todos := dynamo.NewRepository[domain.Todo](table, testTable, testIndex, dynamo.TodoCodec{}, nil)

	for _, ts := range []string{"2026-01-31T10:30:02Z", "2026-01-31T10:30:00Z", "2026-01-31T10:30:01Z"} {
		require.NoError(t, messages.Put(ctx, newMessage("u1", ts, "m-"+ts[len(ts)-3:len(ts)-1])))
	}
	require.NoError(t, tasks.Put(ctx, newTask("u1", "t1")))
	require.NoError(t, tasks.Put(ctx, newTask("u1", "t2")))
	require.NoError(t, tasks.Put(ctx, newTask("u2", "t3")))
	require.NoError(t, todos.Put(ctx, domain.Todo{UserID: "u1", TodoID: "task", Text: "x", CreatedAt: created, UpdatedAt: created}))

	t.Run("Should return messages in chronological order", func(t *testing.T) {
		got, err := messages.QueryPrefix(ctx, "u1", dynamo.PrefixMessage)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "2026-01-31T10:30:00Z", got[0].Timestamp)
		assert.Equal(t, "2026-01-31T10:30:01Z", got[1].Timestamp)
		assert.Equal(t, "2026-01-31T10:30:02Z", got[2].Timestamp)
	})

	t.Run("Should return only entities of the prefixed type for the user", func(t *testing.T) {
		got, err := tasks.QueryPrefix(ctx, "u1", dynamo.PrefixTask)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, task := range got {
			assert.Equal(t, "u1", task.UserID)
		}
		assert.Equal(t, "t1", got[0].TaskID)
		assert.Equal(t, "t2", got[1].TaskID)
	})

	t.Run("Should honor descending order and limit", func(t *testing.T) {
		got, err := messages.QueryPrefix(ctx, "u1", dynamo.PrefixMessage, dynamo.WithDescending(), dynamo.WithLimit(2))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "2026-01-31T10:30:02Z", got[0].Timestamp)
		assert.Equal(t, "2026-01-31T10:30:01Z", got[1].Timestamp)
	})

	t.Run("Should follow pagination", func(t *testing.T) {
		table.PageSize = 1
		defer func() { table.PageSize = 0 }()

		before := table.Calls("Query")
		got, err := messages.QueryPrefix(ctx, "u1", dynamo.PrefixMessage)
		require.NoError(t, err)
		assert.Len(t, got, 3)
		assert.GreaterOrEqual(t, table.Calls("Query")-before, 3)
	})

	t.Run("Should skip other types when querying the whole partition", func(t *testing.T) {
		got, err := tasks.QueryPartition(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "t1", got[0].TaskID)
	})

	t.Run("Should filter the partition by type tag", func(t *testing.T) {
		got, err := tasks.ScanByType(ctx, "u1", dynamo.TypeTask)
		require.NoError(t, err)
		assert.Len(t, got, 2)

		_, err = tasks.ScanByType(ctx, "u1", dynamo.TypeTodo)
		assert.True(t, apperrors.IsCodecMismatch(err))
	})
}

func TestQueryIndex(t *testing.T) {
	ctx := context.Background()
	table := dynamotest.NewTable()
	repo := dynamo.NewRepository[domain.Reminder](table, testTable, testIndex, dynamo.ReminderCodec{}, nil)

	for i, offset := range []time.Duration{2 * time.Hour, -time.Hour, time.Hour} {
		r := domain.Reminder{
			UserID:       "u1",
			ReminderID:   fmt.Sprintf("r%d", i),
			Text:         "x",
			ScheduledFor: created.Add(offset),
			Recurrence:   domain.RecurrenceOnce,
			Status:       domain.ReminderPending,
			CreatedAt:    created,
		}
		r.Index = domain.PendingReminderKey(r)
		require.NoError(t, repo.Put(ctx, r))
	}
	unindexed := domain.Reminder{UserID: "u1", ReminderID: "sent", Text: "x", ScheduledFor: created,
		Recurrence: domain.RecurrenceOnce, Status: domain.ReminderSent, CreatedAt: created}
	require.NoError(t, repo.Put(ctx, unindexed))

	t.Run("Should list indexed entities in index order", func(t *testing.T) {
		got, err := repo.QueryIndex(ctx, domain.PendingReminderPartition)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "r1", got[0].ReminderID)
		assert.Equal(t, "r2", got[1].ReminderID)
		assert.Equal(t, "r0", got[2].ReminderID)
	})

	t.Run("Should bound the index sort key", func(t *testing.T) {
		got, err := repo.QueryIndex(ctx, domain.PendingReminderPartition,
			dynamo.WithSKBefore(domain.FormatTimestamp(created.Add(90*time.Minute))))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "r1", got[0].ReminderID)
		assert.Equal(t, "r2", got[1].ReminderID)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("Should not call the store for an empty update", func(t *testing.T) {
		table := dynamotest.NewTable()
		repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)

		require.NoError(t, repo.Update(ctx, "u1", "task#t1", dynamo.Updates{}))
		require.NoError(t, repo.Update(ctx, "u1", "task#t1", nil))
		assert.Equal(t, 0, table.Writes())
		assert.Equal(t, 0, table.Calls("GetItem"))
	})

	t.Run("Should update only the named fields without reading", func(t *testing.T) {
		table := dynamotest.NewTable()
		repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)
		require.NoError(t, repo.Put(ctx, newTask("u1", "t1")))

		done := created.Add(time.Hour)
		require.NoError(t, repo.Update(ctx, "u1", "task#t1", dynamo.Updates{
			"status":       domain.TaskCompleted,
			"completed_at": done,
			"priority":     domain.PriorityHigh,
		}))
		assert.Equal(t, 0, table.Calls("GetItem"))

		got, found, err := repo.Get(ctx, "u1", "task#t1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, domain.TaskCompleted, got.Status)
		assert.Equal(t, domain.PriorityHigh, got.Priority)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, done.Equal(*got.CompletedAt))
		assert.Equal(t, "task t1", got.Title)
	})

	t.Run("Should remove attributes set to nil", func(t *testing.T) {
		table := dynamotest.NewTable()
		repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)
		task := newTask("u1", "t1")
		task.Index = &domain.SecondaryKey{PK: "open", SK: "t1"}
		require.NoError(t, repo.Put(ctx, task))

		require.NoError(t, repo.Update(ctx, "u1", "task#t1", dynamo.Updates{
			dynamo.AttrGSI1PK: nil,
			dynamo.AttrGSI1SK: nil,
		}))

		record, ok := table.Item("u1", "task#t1")
		require.True(t, ok)
		assert.NotContains(t, record, dynamo.AttrGSI1PK)
		assert.NotContains(t, record, dynamo.AttrGSI1SK)
	})

	t.Run("Should refuse to update key attributes", func(t *testing.T) {
		table := dynamotest.NewTable()
		repo := dynamo.NewRepository[domain.Message](table, testTable, testIndex, dynamo.MessageCodec{}, nil)

		for _, attr := range []string{dynamo.AttrPK, dynamo.AttrSK, dynamo.AttrType, dynamo.AttrTTL} {
			err := repo.Update(ctx, "u1", "message#2026-01-31T10:30:00Z#m1", dynamo.Updates{attr: "x"})
			assert.True(t, apperrors.IsValidation(err), attr)
		}
		assert.Equal(t, 0, table.Writes())
	})

	t.Run("Should report a missing record as not found", func(t *testing.T) {
		table := dynamotest.NewTable()
		repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)

		err := repo.Update(ctx, "u1", "task#ghost", dynamo.Updates{"status": domain.TaskCompleted})
		assert.True(t, apperrors.IsNotFound(err))
		assert.Equal(t, 0, table.Len())
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	table := dynamotest.NewTable()
	repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)
	require.NoError(t, repo.Put(ctx, newTask("u1", "t1")))

	require.NoError(t, repo.Delete(ctx, "u1", "task#t1"))
	_, found, err := repo.Get(ctx, "u1", "task#t1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Delete(ctx, "u1", "task#t1"))
}

func TestBatchPut(t *testing.T) {
	ctx := context.Background()

	tasks := func(n int) []domain.Task {
		out := make([]domain.Task, n)
		for i := range out {
			out[i] = newTask("u1", fmt.Sprintf("t%03d", i))
		}
		return out
	}

	t.Run("Should chunk writes to the batch limit", func(t *testing.T) {
		table := dynamotest.NewTable()
		repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)

		require.NoError(t, repo.BatchPut(ctx, tasks(60)))
		assert.Equal(t, 3, table.Calls("BatchWriteItem"))
		assert.Equal(t, 60, table.Len())
	})

	t.Run("Should be idempotent", func(t *testing.T) {
		table := dynamotest.NewTable()
		repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)

		batch := tasks(5)
		require.NoError(t, repo.BatchPut(ctx, batch))
		require.NoError(t, repo.BatchPut(ctx, batch))
		require.NoError(t, repo.BatchPut(ctx, append(batch, batch[0])))
		assert.Equal(t, 5, table.Len())
	})

	t.Run("Should fail before writing when an entity is invalid", func(t *testing.T) {
		table := dynamotest.NewTable()
		repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)

		batch := tasks(3)
		batch[2].TaskID = ""
		err := repo.BatchPut(ctx, batch)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, 0, table.Writes())
	})

	t.Run("Should report unprocessed items", func(t *testing.T) {
		table := dynamotest.NewTable()
		table.UnprocessedPerBatch = 2
		repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)

		err := repo.BatchPut(ctx, tasks(30))
		var unprocessed *dynamo.UnprocessedItemsError
		require.ErrorAs(t, err, &unprocessed)
		assert.Equal(t, 4, unprocessed.Count)
	})
}

func TestCodecMismatchWithoutCodec(t *testing.T) {
	ctx := context.Background()
	table := dynamotest.NewTable()
	repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, nil, nil)

	assert.True(t, apperrors.IsCodecMismatch(repo.Put(ctx, newTask("u1", "t1"))))
	_, _, err := repo.Get(ctx, "u1", "task#t1")
	assert.True(t, apperrors.IsCodecMismatch(err))
	_, err = repo.QueryPrefix(ctx, "u1", dynamo.PrefixTask)
	assert.True(t, apperrors.IsCodecMismatch(err))
	assert.True(t, apperrors.IsCodecMismatch(repo.Update(ctx, "u1", "task#t1", dynamo.Updates{"status": "completed"})))
	assert.True(t, apperrors.IsCodecMismatch(repo.Delete(ctx, "u1", "task#t1")))
	assert.True(t, apperrors.IsCodecMismatch(repo.BatchPut(ctx, []domain.Task{newTask("u1", "t1")})))
	assert.Equal(t, 0, table.Writes())
}

func TestTransientErrorsSurfaceUnchanged(t *testing.T) {
	ctx := context.Background()
	table := dynamotest.NewTable()
	throttled := &types.ProvisionedThroughputExceededException{}
	table.Errors["PutItem"] = throttled
	repo := dynamo.NewRepository[domain.Task](table, testTable, testIndex, dynamo.TaskCodec{}, nil)

	err := repo.Put(ctx, newTask("u1", "t1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, throttled))
	assert.True(t, apperrors.IsTransient(err))
	assert.Equal(t, 1, table.Calls("PutItem"))
}

type recordingHooks struct {
	mu    sync.Mutex
	after []string
	errs  []error
}

func (h *recordingHooks) BeforeOperation(ctx context.Context, _ string) context.Context { return ctx }

func (h *recordingHooks) AfterOperation(_ context.Context, op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after = append(h.after, op)
	h.errs = append(h.errs, err)
}

func TestHooks(t *testing.T) {
	ctx := context.Background()
	hooks := &recordingHooks{}
	repo := dynamo.NewRepository[domain.Task](dynamotest.NewTable(), testTable, testIndex, dynamo.TaskCodec{}, nil)
	repo.SetHooks(hooks)
	repo.SetHooks(nil)

	require.NoError(t, repo.Put(ctx, newTask("u1", "t1")))
	_, _, err := repo.Get(ctx, "u1", "task#t1")
	require.NoError(t, err)
	err = repo.Update(ctx, "u1", "task#nope", dynamo.Updates{"status": domain.TaskCompleted})
	require.Error(t, err)

	assert.Equal(t, []string{"Put", "Get", "Update"}, hooks.after)
	assert.Nil(t, hooks.errs[0])
	assert.True(t, apperrors.IsNotFound(hooks.errs[2]))
}
