package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-assist/internal/core/services"
	"github.com/custodia-labs/sercha-assist/internal/normalisers"
	"github.com/custodia-labs/sercha-assist/internal/runtime"
)

// testEnv is a Server wired to the real services over in-memory stores
type testEnv struct {
	server     *Server
	handler    http.Handler
	chatStore  *mocks.MockChatStore
	documents  *mocks.MockDocumentStore
	knowledge  *mocks.MockKnowledgeStore
	embedding  *mocks.MockEmbeddingService
	completion *mocks.MockCompletionService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, modify ...func(*Config)) *testEnv {
	t.Helper()
	store := mocks.NewMockChatStore()
	env := newTestEnvWith(t, store, mocks.NewMockDistributedLock(), modify...)
	env.chatStore = store
	return env
}

// newTestEnvWith wires the server over the given session store and lock
func newTestEnvWith(t *testing.T, store driven.ChatStore, lock driven.DistributedLock, modify ...func(*Config)) *testEnv {
	t.Helper()

	env := &testEnv{
		documents:  mocks.NewMockDocumentStore(),
		knowledge:  mocks.NewMockKnowledgeStore(),
		embedding:  mocks.NewMockEmbeddingService(),
		completion: mocks.NewMockCompletionService(),
	}
	logger := discardLogger()
	retry := services.RetryConfig{MaxTries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

	rt := runtime.NewServices(domain.NewRuntimeConfig("memory", "memory"))
	rt.SetEmbeddingService(env.embedding)
	rt.SetCompletionService(env.completion)

	chats := services.NewChatService(store, lock, env.documents, services.ChatServiceConfig{
		LockTTL:           time.Second,
		LockRetryInterval: time.Millisecond,
		LockWait:          time.Second,
		Logger:            logger,
	})
	conversation, err := services.NewConversationService(chats, env.knowledge, env.documents, rt, services.ConversationConfig{
		Options: domain.DefaultConversationOptions(),
		Retry:   retry,
		Logger:  logger,
	})
	require.NoError(t, err)

	docCfg := services.DefaultDocumentConfig()
	docCfg.ChunkSize = 40
	docCfg.ChunkOverlap = 5
	docCfg.Retry = retry
	docCfg.Logger = logger
	docCfg.Normalisers = normalisers.DefaultRegistry()
	documents := services.NewDocumentService(env.documents, chats, rt, docCfg)
	insights := services.NewInsightService(env.knowledge, retry, logger)

	cfg := DefaultConfig()
	cfg.Version = "test"
	cfg.Logger = logger
	for _, m := range modify {
		m(&cfg)
	}

	env.server = NewServer(cfg, conversation, chats, documents, insights, store, env.knowledge)
	env.handler = env.server.Handler()
	return env
}

func axis(i int) []float32 {
	v := make([]float32, 8)
	v[i] = 1
	return v
}

// seedKnowledge adds one knowledge item matched by "What is a C-ESMP?"
func (e *testEnv) seedKnowledge() {
	e.knowledge.AddKnowledge(&domain.KnowledgeItem{
		ID:                "kb-1",
		Question:          "What is a C-ESMP?",
		DetailedAnswer:    "A Contractor's Environmental and Social Management Plan.",
		FollowUpQuestions: []string{"Who approves a C-ESMP?"},
		Tags:              []domain.Tag{{Name: "ESMP"}},
		Embedding:         axis(0),
	})
	e.embedding.SetVector("What is a C-ESMP?", axis(0))
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, target, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
