package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-assist/internal/runtime"
)

// testStack wires every service over in-memory mocks
type testStack struct {
	chatStore  *mocks.MockChatStore
	lock       *mocks.MockDistributedLock
	documents  *mocks.MockDocumentStore
	knowledge  *mocks.MockKnowledgeStore
	embedding  *mocks.MockEmbeddingService
	completion *mocks.MockCompletionService
	runtime    *runtime.Services

	chats        driving.ChatService
	conversation driving.ConversationService
	docs         driving.DocumentService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	s := &testStack{
		chatStore:  mocks.NewMockChatStore(),
		lock:       mocks.NewMockDistributedLock(),
		documents:  mocks.NewMockDocumentStore(),
		knowledge:  mocks.NewMockKnowledgeStore(),
		embedding:  mocks.NewMockEmbeddingService(),
		completion: mocks.NewMockCompletionService(),
	}
	s.runtime = runtime.NewServices(domain.NewRuntimeConfig("memory", "memory"))
	s.runtime.SetEmbeddingService(s.embedding)
	s.runtime.SetCompletionService(s.completion)

	s.chats = NewChatService(s.chatStore, s.lock, s.documents, ChatServiceConfig{
		LockTTL:           time.Second,
		LockRetryInterval: time.Millisecond,
		LockWait:          2 * time.Second,
		Logger:            discardLogger(),
	})

	var err error
	s.conversation, err = NewConversationService(s.chats, s.knowledge, s.documents, s.runtime, ConversationConfig{
		Options: domain.DefaultConversationOptions(),
		Retry:   fastRetry(),
		Logger:  discardLogger(),
	})
	require.NoError(t, err)

	docCfg := DefaultDocumentConfig()
	docCfg.ChunkSize = 50
	docCfg.ChunkOverlap = 10
	docCfg.Retry = fastRetry()
	docCfg.Logger = discardLogger()
	s.docs = NewDocumentService(s.documents, s.chats, s.runtime, docCfg)
	return s
}

// axis returns an 8-dim unit vector along dimension i
func axis(i int) []float32 {
	v := make([]float32, 8)
	v[i] = 1
	return v
}

// seedKnowledge stores a C-ESMP knowledge item matching the question vector axis(0)
func (s *testStack) seedKnowledge() *domain.KnowledgeItem {
	item := &domain.KnowledgeItem{
		ID:                "kb-1",
		Question:          "What is a C-ESMP?",
		DetailedAnswer:    "A Contractor's Environmental and Social Management Plan.",
		FollowUpQuestions: []string{"Who approves a C-ESMP?", "When is it submitted?", "What does it cover?", "Extra?"},
		Tags:              []domain.Tag{{Name: "ESMP", SourceURL: "https://example.org/esmp"}},
		Embedding:         axis(0),
	}
	s.knowledge.AddKnowledge(item)
	s.embedding.SetVector("What is a C-ESMP?", axis(0))
	s.embedding.SetVector("Who approves it?", axis(0))
	return item
}
