package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestStore_MessagesInInsertionOrder(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	u := storetest.User(t, s, "alice", models.RoleOperator)
	task := storetest.Task(t, s, u, "printer on fire")

	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, s.CreateMessage(ctx, &models.Message{TaskID: task.ID, SenderID: u.ID, Content: content}))
	}

	msgs, total, err := s.ListMessages(ctx, task.ID, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
	require.NotNil(t, msgs[0].Sender)
	assert.Equal(t, "alice", msgs[0].Sender.Name)
	assert.NotNil(t, msgs[0].Attachments)

	rest, _, err := s.ListMessages(ctx, task.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "three", rest[0].Content)
}

func TestStore_AttachmentsRoundTrip(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	u := storetest.User(t, s, "bob", models.RoleOperator)
	task := storetest.Task(t, s, u, "broken vpn")

	att := models.Attachment{
		ID:        "0b7c4f0e-7d7e-4a55-9c61-2f6f0cbb3f4e",
		Filename:  "trace.log",
		Path:      "0b7c4f0e-7d7e-4a55-9c61-2f6f0cbb3f4e.log",
		URL:       "/uploads/0b7c4f0e-7d7e-4a55-9c61-2f6f0cbb3f4e.log",
		MimeType:  "text/plain",
		Size:      1234,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	m := &models.Message{
		TaskID:      task.ID,
		SenderID:    u.ID,
		Content:     "logs attached",
		Attachments: datatypes.NewJSONSlice([]models.Attachment{att}),
	}
	require.NoError(t, s.CreateMessage(ctx, m))

	got, err := s.FindMessageHydrated(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, att.URL, got.Attachments[0].URL)
	assert.Equal(t, att.Size, got.Attachments[0].Size)
	assert.Equal(t, att.MimeType, got.Attachments[0].MimeType)
}

func TestStore_FindMissing(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()

	_, err := s.FindTask(ctx, 42)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = s.FindMessage(ctx, 42)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = s.FindSummary(ctx, 42)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStore_UpsertSummaryKeepsOneRow(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	u := storetest.User(t, s, "carol", models.RoleOperator)
	task := storetest.Task(t, s, u, "summary")

	require.NoError(t, s.UpsertSummary(ctx, &models.Summary{TaskID: task.ID, Content: "first", GeneratedAt: time.Now()}))
	require.NoError(t, s.UpsertSummary(ctx, &models.Summary{
		TaskID:      task.ID,
		Content:     "second",
		Entities:    datatypes.NewJSONSlice([]models.Entity{{Type: models.EntityURL, Value: "https://x.co"}}),
		GeneratedAt: time.Now(),
	}))

	var n int64
	require.NoError(t, s.DB().Model(&models.Summary{}).Where("task_id = ?", task.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	sum, err := s.FindSummary(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", sum.Content)
	require.Len(t, sum.Entities, 1)
	assert.Equal(t, "https://x.co", sum.Entities[0].Value)
}

func TestStore_CreateReviewTwice(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	u := storetest.User(t, s, "dave", models.RoleOperator)
	task := storetest.Task(t, s, u, "qa")
	m := &models.Message{TaskID: task.ID, SenderID: u.ID, Content: "check me"}
	require.NoError(t, s.CreateMessage(ctx, m))

	require.NoError(t, s.CreateReview(ctx, &models.QAReview{MessageID: m.ID, Status: models.ReviewPending, RequestedByID: u.ID}))
	err := s.CreateReview(ctx, &models.QAReview{MessageID: m.ID, Status: models.ReviewPending, RequestedByID: u.ID})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidationFailed))

	rs, err := s.ListReviews(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestStore_DeleteTaskCascades(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	u := storetest.User(t, s, "erin", models.RoleAdmin)
	task := storetest.Task(t, s, u, "to delete")

	parent := &models.Message{
		TaskID:      task.ID,
		SenderID:    u.ID,
		Content:     "parent",
		Attachments: datatypes.NewJSONSlice([]models.Attachment{{ID: "a1"}, {ID: "a2"}}),
	}
	require.NoError(t, s.CreateMessage(ctx, parent))
	reply := &models.Message{TaskID: task.ID, SenderID: u.ID, Content: "reply", ReplyToID: &parent.ID}
	require.NoError(t, s.CreateMessage(ctx, reply))
	require.NoError(t, s.CreateReview(ctx, &models.QAReview{MessageID: parent.ID, Status: models.ReviewPending, RequestedByID: u.ID}))
	require.NoError(t, s.UpsertSummary(ctx, &models.Summary{TaskID: task.ID, Content: "x", GeneratedAt: time.Now()}))

	removed, err := s.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	var n int64
	require.NoError(t, s.DB().Model(&models.Message{}).Where("task_id = ?", task.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, s.DB().Model(&models.QAReview{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err = s.DeleteTask(ctx, task.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStore_DeleteMessageUnlinksReplies(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	u := storetest.User(t, s, "frank", models.RoleOperator)
	task := storetest.Task(t, s, u, "thread")

	parent := &models.Message{TaskID: task.ID, SenderID: u.ID, Content: "parent"}
	require.NoError(t, s.CreateMessage(ctx, parent))
	reply := &models.Message{TaskID: task.ID, SenderID: u.ID, Content: "reply", ReplyToID: &parent.ID}
	require.NoError(t, s.CreateMessage(ctx, reply))

	require.NoError(t, s.DeleteMessage(ctx, parent.ID))

	got, err := s.FindMessage(ctx, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReplyToID)

	err = s.DeleteMessage(ctx, parent.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStore_CreateUserDuplicateEmail(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	storetest.User(t, s, "gina", models.RoleOperator)

	err := s.CreateUser(ctx, &models.User{Name: "gina again", Email: "gina@example.com", PasswordHash: "x", Role: models.RoleOperator})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidationFailed))
	assert.Equal(t, "email already registered", apperr.Message(err))
}

func TestStore_CreateMessageClaimingConsumesPendingUploads(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	owner := storetest.User(t, s, "hana", models.RoleOperator)
	other := storetest.User(t, s, "ivan", models.RoleOperator)
	task := storetest.Task(t, s, owner, "claims")

	att := models.Attachment{
		ID:       "9a4c2e1f-3b5d-4f6a-8c7e-1d2f3a4b5c6d",
		Filename: "a.txt",
		Path:     "9a4c2e1f-3b5d-4f6a-8c7e-1d2f3a4b5c6d.txt",
		URL:      "/uploads/9a4c2e1f-3b5d-4f6a-8c7e-1d2f3a4b5c6d.txt",
		MimeType: "text/plain",
		Size:     5,
	}
	require.NoError(t, s.CreatePendingUploads(ctx, []models.PendingUpload{models.NewPendingUpload(owner.ID, att)}))

	stolen := &models.Message{TaskID: task.ID, SenderID: other.ID}
	err := s.CreateMessageClaiming(ctx, stolen, other.ID, []string{att.ID}, nil)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	rejected := &models.Message{TaskID: task.ID, SenderID: owner.ID}
	err = s.CreateMessageClaiming(ctx, rejected, owner.ID, []string{att.ID}, func([]models.Attachment) error {
		return apperr.NotFound("gone")
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	m := &models.Message{TaskID: task.ID, SenderID: owner.ID}
	require.NoError(t, s.CreateMessageClaiming(ctx, m, owner.ID, []string{att.ID}, nil))
	got, err := s.FindMessage(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, att.Path, got.Attachments[0].Path)
	assert.Equal(t, att.MimeType, got.Attachments[0].MimeType)

	again := &models.Message{TaskID: task.ID, SenderID: owner.ID}
	err = s.CreateMessageClaiming(ctx, again, owner.ID, []string{att.ID}, nil)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	var n int64
	require.NoError(t, s.DB().Model(&models.Message{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestStore_UpdateUserRole(t *testing.T) {
	s := storetest.Open(t)
	ctx := context.Background()
	u := storetest.User(t, s, "jane", models.RoleOperator)

	require.NoError(t, s.UpdateUserRole(ctx, "jane@example.com", models.RoleAdmin))
	got, err := s.FindUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	err = s.UpdateUserRole(ctx, "nobody@example.com", models.RoleAdmin)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
