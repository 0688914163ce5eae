package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven/mocks"
)

func TestChatService_ResolveMintsID(t *testing.T) {
	s := newTestStack(t)

	chat, err := s.chats.Resolve(context.Background(), "", domain.ChatTypeQuestion, "admin")

	require.NoError(t, err)
	assert.NotEmpty(t, chat.ID)
	assert.False(t, chat.IsPersisted())
	assert.Equal(t, domain.ChatTypeQuestion, chat.Type)
}

func TestChatService_ResolveAbsentID(t *testing.T) {
	s := newTestStack(t)

	chat, err := s.chats.Resolve(context.Background(), "given-id", domain.ChatTypeInsight, "admin")

	require.NoError(t, err)
	assert.Equal(t, "given-id", chat.ID)
	assert.False(t, chat.IsPersisted())
}

func TestChatService_ResolveTypeMismatch(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	chat := domain.NewChat("c1", domain.ChatTypeQuestion, "admin")
	_, err := s.chats.AppendTurn(ctx, chat, &domain.Turn{Question: "q", Answer: "a"})
	require.NoError(t, err)

	_, err = s.chats.Resolve(ctx, "c1", domain.ChatTypeInsight, "admin")

	assert.ErrorIs(t, err, domain.ErrChatTypeMismatch)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatService_AppendAndHistory(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	chat := domain.NewChat("c1", domain.ChatTypeQuestion, "admin")
	chat.Title = "First title"

	saved, err := s.chats.AppendTurn(ctx, chat, &domain.Turn{Question: "q1", Answer: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "First title", saved.Title)

	// a later title never replaces the stored one
	again := domain.NewChat("c1", domain.ChatTypeQuestion, "admin")
	again.Title = "Other title"
	saved, err = s.chats.AppendTurn(ctx, again, &domain.Turn{Question: "q2", Answer: "a2"})
	require.NoError(t, err)
	assert.Equal(t, "First title", saved.Title)

	history, err := s.chats.GetHistory(ctx, "c1", domain.ChatTypeQuestion)
	require.NoError(t, err)
	require.Len(t, history.Turns, 2)
	assert.Equal(t, "q1", history.Turns[0].Question)
	assert.Equal(t, "q2", history.Turns[1].Question)
	assert.False(t, history.Turns[0].Timestamp.IsZero())
	assert.False(t, s.lock.IsHeld("chat:c1"))
}

func TestChatService_GetHistoryErrors(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	_, err := s.chats.GetHistory(ctx, "missing", domain.ChatTypeQuestion)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.chats.AppendTurn(ctx, domain.NewChat("c1", domain.ChatTypeQuestion, "u"), &domain.Turn{Question: "q"})
	require.NoError(t, err)
	_, err = s.chats.GetHistory(ctx, "c1", domain.ChatTypeInsight)
	assert.ErrorIs(t, err, domain.ErrChatTypeMismatch)

	chat, err := s.chats.GetHistory(ctx, "c1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, chat.TurnCount)
}

func TestChatService_ConcurrentAppendsNeverLoseUpdates(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	const n = 25

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chat := domain.NewChat("shared", domain.ChatTypeQuestion, "admin")
			_, err := s.chats.AppendTurn(ctx, chat, &domain.Turn{Question: fmt.Sprintf("q%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	history, err := s.chats.GetHistory(ctx, "shared", domain.ChatTypeQuestion)
	require.NoError(t, err)
	assert.Len(t, history.Turns, n)
}

func TestChatService_LockTimeout(t *testing.T) {
	s := newTestStack(t)
	s.lock.SetLockHeld("chat:busy", time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.chats.AppendTurn(ctx, domain.NewChat("busy", domain.ChatTypeQuestion, "u"), &domain.Turn{Question: "q"})

	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Zero(t, s.chatStore.Len())
}

func TestChatService_LockExtendedDuringSlowMutation(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	svc := NewChatService(mocks.NewMockChatStore(), lock, nil, ChatServiceConfig{
		LockTTL:           40 * time.Millisecond,
		LockRetryInterval: time.Millisecond,
		LockWait:          time.Second,
		Logger:            discardLogger(),
	}).(*chatService)

	err := svc.withChatLock(context.Background(), "slow", func(ctx context.Context) error {
		time.Sleep(150 * time.Millisecond)
		assert.True(t, lock.IsHeld("chat:slow"), "lock expired during mutation")
		return nil
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, lock.ExtendCount(), 2)
	assert.False(t, lock.IsHeld("chat:slow"))
}

func TestChatService_FailedAppendIsReported(t *testing.T) {
	s := newTestStack(t)
	s.chatStore.AppendErr = errors.New("EXECABORT")

	_, err := s.chats.AppendTurn(context.Background(), domain.NewChat("c1", domain.ChatTypeQuestion, "u"), &domain.Turn{Question: "q"})

	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.False(t, s.lock.IsHeld("chat:c1"))
}

func TestChatService_List(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	base := time.Now()
	for i, ct := range []domain.ChatType{domain.ChatTypeQuestion, domain.ChatTypeInsight, domain.ChatTypeDocumentQnA} {
		chat := domain.NewChat(string(ct), ct, "u")
		_, err := s.chats.AppendTurn(ctx, chat, &domain.Turn{Question: "q", Answer: "ans-" + string(ct), Timestamp: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	all, err := s.chats.List(ctx, domain.NewChatFilter(true, true, true))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "documentqna", all[0].ChatID)
	assert.Equal(t, "ans-documentqna", all[0].LastAnswer)

	insightsOnly, err := s.chats.List(ctx, domain.NewChatFilter(false, true, false))
	require.NoError(t, err)
	require.Len(t, insightsOnly, 1)
	assert.Equal(t, domain.ChatTypeInsight, insightsOnly[0].ChatType)

	none, err := s.chats.List(ctx, domain.NewChatFilter(false, false, false))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestChatService_AttachDocuments(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	chat, err := s.chats.AttachDocuments(ctx, "new-chat", "admin", []string{"d1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ChatTypeDocumentQnA, chat.Type)
	assert.Equal(t, []string{"d1"}, chat.DocumentIDs)

	chat, err = s.chats.AttachDocuments(ctx, "new-chat", "admin", []string{"d2", "d1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, chat.DocumentIDs)

	_, err = s.chats.AttachDocuments(ctx, " ", "admin", []string{"d1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatService_Delete(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	_, err := s.chats.AppendTurn(ctx, domain.NewChat("c1", domain.ChatTypeQuestion, "u"), &domain.Turn{Question: "q"})
	require.NoError(t, err)
	require.NoError(t, s.documents.Save(ctx, &domain.UploadedDocument{ID: "d1"}, nil))
	require.NoError(t, s.documents.Attach(ctx, "c1", []string{"d1"}))

	_, err = s.chats.Delete(ctx, "c1", domain.ChatTypeInsight)
	assert.ErrorIs(t, err, domain.ErrChatTypeMismatch)

	result, err := s.chats.Delete(ctx, "c1", domain.ChatTypeQuestion)
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	assert.Equal(t, 3, result.SegmentsDeleted)

	_, err = s.chats.GetHistory(ctx, "c1", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	doc, err := s.documents.Get(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, doc.IsAttached())
}

func TestChatService_DeleteMissingIsIdempotent(t *testing.T) {
	s := newTestStack(t)

	result, err := s.chats.Delete(context.Background(), "nope", domain.ChatTypeQuestion)

	require.NoError(t, err)
	assert.False(t, result.Deleted)
	assert.Zero(t, result.SegmentsDeleted)
}

func TestChatService_DeleteDetachFailureIsNotFatal(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	_, err := s.chats.AppendTurn(ctx, domain.NewChat("c1", domain.ChatTypeQuestion, "u"), &domain.Turn{Question: "q"})
	require.NoError(t, err)
	s.documents.DetachErr = errors.New("db down")

	result, err := s.chats.Delete(ctx, "c1", "")

	require.NoError(t, err)
	assert.True(t, result.Deleted)
}

func TestChatService_DeleteAll(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.chats.AppendTurn(ctx, domain.NewChat(fmt.Sprintf("c%d", i), domain.ChatTypeQuestion, "u"), &domain.Turn{Question: "q"})
		require.NoError(t, err)
	}

	result, err := s.chats.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.DeletedLists)
	assert.Equal(t, 3, result.DeletedMeta)
	assert.True(t, result.RemovedOrderIndex)

	chats, err := s.chats.List(ctx, domain.NewChatFilter(true, true, true))
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestChatService_DeleteAllDetachesDocuments(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	uploaded, err := s.docs.Upload(ctx, domain.UploadRequest{
		Filename: "plan.txt",
		Content:  []byte("Site inspections happen weekly."),
		ChatID:   "c1",
		UserID:   "u",
	})
	require.NoError(t, err)
	require.NoError(t, s.documents.Save(ctx, &domain.UploadedDocument{ID: "loose"}, nil))

	_, err = s.chats.DeleteAll(ctx)
	require.NoError(t, err)

	doc, err := s.documents.Get(ctx, uploaded.DocumentID)
	require.NoError(t, err)
	assert.Empty(t, doc.ChatID)

	// A new chat reusing the id starts without documents
	chat, err := s.chats.Resolve(ctx, "c1", domain.ChatTypeDocumentQnA, "u")
	require.NoError(t, err)
	assert.Empty(t, chat.DocumentIDs)
}

func TestChatService_DeleteAllDetachFailureIsNotFatal(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	_, err := s.chats.AppendTurn(ctx, domain.NewChat("c1", domain.ChatTypeQuestion, "u"), &domain.Turn{Question: "q"})
	require.NoError(t, err)
	s.documents.DetachErr = errors.New("db down")

	result, err := s.chats.DeleteAll(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedMeta)
}

func TestChatService_DeleteAllPartial(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	_, err := s.chats.AppendTurn(ctx, domain.NewChat("c1", domain.ChatTypeQuestion, "u"), &domain.Turn{Question: "q"})
	require.NoError(t, err)
	s.chatStore.DeleteAllErr = fmt.Errorf("%w: 1 batch failed", domain.ErrPartialDelete)

	result, err := s.chats.DeleteAll(ctx)

	assert.ErrorIs(t, err, domain.ErrPartialDelete)
	require.NotNil(t, result)
	assert.False(t, result.RemovedOrderIndex)
}
