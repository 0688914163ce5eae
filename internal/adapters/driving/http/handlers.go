package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Detail string `json:"detail" example:"Chat not found"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ChatHistoryResponse is the stored history of one chat
// @Description Chat history
type ChatHistoryResponse struct {
	ChatID      string          `json:"chat_id"`
	ChatType    domain.ChatType `json:"chat_type"`
	UserID      string          `json:"user_id"`
	ChatTitle   string          `json:"chat_title,omitempty"`
	History     []*domain.Turn  `json:"history"`
	DocumentIDs []string        `json:"document_ids"`
}

// ChatListItem is one entry of the chat listing
// @Description Chat listing entry
type ChatListItem struct {
	ChatID     string          `json:"chat_id"`
	ChatType   domain.ChatType `json:"chat_type"`
	Title      string          `json:"title"`
	LastAnswer string          `json:"last_answer"`
	Timestamp  time.Time       `json:"timestamp"`
}

// DeleteChatResponse reports a single chat deletion
// @Description Chat deletion result
type DeleteChatResponse struct {
	Detail          string `json:"detail" example:"Deleted"`
	ChatID          string `json:"chat_id"`
	SegmentsDeleted int    `json:"segments_deleted"`
}

// DeleteAllChatsResponse reports a bulk chat deletion
// @Description Bulk chat deletion result
type DeleteAllChatsResponse struct {
	Detail string                   `json:"detail" example:"All sessions deleted"`
	Result *domain.BulkDeleteResult `json:"result"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the session store and the knowledge store
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]string{"status": "ready"}
	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "dependency", name, "error", err)
			body[name] = "unavailable"
			body["status"] = "not ready"
			status = http.StatusServiceUnavailable
			return
		}
		body[name] = "ok"
	}
	check("redis", s.sessions)
	check("postgres", s.knowledge)

	writeJSON(w, status, body)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Conversation endpoints

// handleSearch godoc
// @Summary      Ask a question
// @Description  Answers a question within a chat, creating the chat on first use
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        request  body      domain.AskRequest  true  "Question"
// @Success      200      {object}  domain.Answer
// @Failure      400      {object}  ErrorResponse  "Malformed request body"
// @Failure      422      {object}  ErrorResponse  "Validation error or chat type mismatch"
// @Failure      500      {object}  ErrorResponse  "Upstream failure"
// @Router       /search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.AskRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	req.UserID = UserIDFromContext(r.Context())

	answer, err := s.conversation.Ask(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.metrics.ObserveAnswer(answer.ChatType, answer.HasAnswer)
	writeJSON(w, http.StatusOK, answer)
}

// Chat endpoints

// handleListChats godoc
// @Summary      List chats
// @Description  Lists chats most recent first, filtered by chat type
// @Tags         Chats
// @Produce      json
// @Param        include_question     query  bool  false  "Include question chats"     default(true)
// @Param        include_insight      query  bool  false  "Include insight chats"      default(true)
// @Param        include_documentqna  query  bool  false  "Include documentqna chats"  default(true)
// @Success      200  {array}   ChatListItem
// @Failure      400  {object}  ErrorResponse
// @Router       /chats [get]
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	var include [3]bool
	for i, name := range []string{"include_question", "include_insight", "include_documentqna"} {
		v, err := queryBool(r, name, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		include[i] = v
	}

	chats, err := s.chats.List(r.Context(), domain.NewChatFilter(include[0], include[1], include[2]))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	items := make([]ChatListItem, 0, len(chats))
	for _, c := range chats {
		items = append(items, ChatListItem{
			ChatID:     c.ChatID,
			ChatType:   c.ChatType,
			Title:      c.DisplayTitle(),
			LastAnswer: c.LastAnswer,
			Timestamp:  c.LastActivity,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// handleGetChat godoc
// @Summary      Get chat history
// @Description  Returns the ordered turns of a chat
// @Tags         Chats
// @Produce      json
// @Param        chat_id    path   string  true   "Chat ID"
// @Param        chat_type  query  string  false  "Expected chat type"
// @Success      200  {object}  ChatHistoryResponse
// @Failure      404  {object}  ErrorResponse  "Chat not found"
// @Failure      422  {object}  ErrorResponse  "Chat type mismatch"
// @Router       /chats/{chat_id} [get]
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chat_id")
	chatType, ok := s.optionalChatType(w, r)
	if !ok {
		return
	}

	chat, err := s.chats.GetHistory(r.Context(), chatID, chatType)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	history := make([]*domain.Turn, 0, len(chat.Turns))
	for _, t := range chat.Turns {
		turn := *t
		if turn.Tags == nil {
			turn.Tags = []domain.Tag{}
		}
		if turn.FollowUpQuestions == nil {
			turn.FollowUpQuestions = []string{}
		}
		history = append(history, &turn)
	}
	documentIDs := chat.DocumentIDs
	if documentIDs == nil {
		documentIDs = []string{}
	}

	writeJSON(w, http.StatusOK, ChatHistoryResponse{
		ChatID:      chat.ID,
		ChatType:    chat.Type,
		UserID:      chat.UserID,
		ChatTitle:   chat.Title,
		History:     history,
		DocumentIDs: documentIDs,
	})
}

// handleDeleteChat godoc
// @Summary      Delete a chat
// @Description  Removes a chat's history, metadata and listing entry. Deleting an absent chat is not an error.
// @Tags         Chats
// @Produce      json
// @Param        chat_id    path   string  true   "Chat ID"
// @Param        chat_type  query  string  false  "Expected chat type"
// @Success      200  {object}  DeleteChatResponse
// @Failure      422  {object}  ErrorResponse  "Chat type mismatch"
// @Failure      500  {object}  ErrorResponse
// @Router       /chats/{chat_id} [delete]
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chat_id")
	chatType, ok := s.optionalChatType(w, r)
	if !ok {
		return
	}

	result, err := s.chats.Delete(r.Context(), chatID, chatType)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteChatResponse{
		Detail:          "Deleted",
		ChatID:          chatID,
		SegmentsDeleted: result.SegmentsDeleted,
	})
}

// handleDeleteAllChats godoc
// @Summary      Delete all chats
// @Description  Removes every chat. A partial failure reports what was removed.
// @Tags         Chats
// @Produce      json
// @Success      200  {object}  DeleteAllChatsResponse
// @Failure      500  {object}  DeleteAllChatsResponse  "Partial delete"
// @Router       /chats [delete]
func (s *Server) handleDeleteAllChats(w http.ResponseWriter, r *http.Request) {
	result, err := s.chats.DeleteAll(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrPartialDelete) && result != nil {
			s.logger.Error("bulk chat delete incomplete", "error", err)
			writeJSON(w, http.StatusInternalServerError, DeleteAllChatsResponse{
				Detail: "Failed to delete all sessions",
				Result: result,
			})
			return
		}
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteAllChatsResponse{
		Detail: "All sessions deleted",
		Result: result,
	})
}

// Document endpoints

// handleUpload godoc
// @Summary      Upload a document
// @Description  Registers a text document and optionally attaches it to a chat
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file     formData  file    true   "Text document"
// @Param        chat_id  query     string  false  "Chat to attach the document to"
// @Success      200  {object}  domain.UploadResult
// @Failure      400  {object}  ErrorResponse  "Malformed multipart body"
// @Failure      413  {object}  ErrorResponse  "File too large"
// @Failure      422  {object}  ErrorResponse  "Unsupported or empty file"
// @Router       /upload [post]
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Leave room for multipart framing around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if int64(len(content)) > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		chatID = r.FormValue("chat_id")
	}

	result, err := s.documents.Upload(r.Context(), domain.UploadRequest{
		Filename: header.Filename,
		Content:  content,
		ChatID:   chatID,
		UserID:   UserIDFromContext(r.Context()),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.metrics.ObserveUpload()
	writeJSON(w, http.StatusOK, result)
}

// handleUploadAsk godoc
// @Summary      Ask uploaded documents
// @Description  Answers a one-off question from uploaded documents. History is supplied by the client and nothing is persisted.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      domain.DocumentAskRequest  true  "Question"
// @Success      200      {object}  domain.DocumentAnswer
// @Failure      404      {object}  ErrorResponse  "No requested document exists"
// @Failure      422      {object}  ErrorResponse  "Validation error"
// @Router       /upload/ask [post]
func (s *Server) handleUploadAsk(w http.ResponseWriter, r *http.Request) {
	var req domain.DocumentAskRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	answer, err := s.documents.Ask(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// handleDeleteDocument godoc
// @Summary      Delete an uploaded document
// @Description  Removes an uploaded document and its chunks
// @Tags         Documents
// @Produce      json
// @Param        document_id  path  string  true  "Document ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /upload/{document_id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("document_id")
	if err := s.documents.Delete(r.Context(), documentID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Deleted", "document_id": documentID})
}

// Insight endpoints

// handleListInsights godoc
// @Summary      List insights
// @Description  Returns insight summaries, newest first
// @Tags         Insights
// @Produce      json
// @Success      200  {array}   domain.InsightSummary
// @Failure      500  {object}  ErrorResponse
// @Router       /insights [get]
func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.insights.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

// Helpers

// decodeBody decodes and validates a JSON body, writing the error response on failure
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validator.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// optionalChatType parses the chat_type query parameter; empty means any type
func (s *Server) optionalChatType(w http.ResponseWriter, r *http.Request) (domain.ChatType, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("chat_type"))
	if raw == "" {
		return "", true
	}
	ct, err := domain.ParseChatType(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "chat_type must be one of [question insight documentqna]")
		return "", false
	}
	return ct, true
}

// writeServiceError maps domain errors to status codes.
// Upstream details are logged and never returned to the client.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundDetail(r))
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func notFoundDetail(r *http.Request) string {
	switch {
	case strings.HasPrefix(r.URL.Path, "/chats"):
		return "Chat not found"
	case strings.HasPrefix(r.URL.Path, "/upload"):
		return "Document not found"
	default:
		return "Not found"
	}
}

// queryBool parses an optional boolean query parameter
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New(name + " must be a boolean")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Detail: message})
}
