// ABOUTME: HTTP API handlers for conversations and messages between participants
// ABOUTME: Translates JSON requests into conversation.Service calls for the authenticated caller

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/lostify-gateway/internal/auth"
	"github.com/2389/lostify-gateway/internal/conversation"
	"github.com/2389/lostify-gateway/internal/store"
)

const (
	// maxRequestBody caps JSON request bodies
	maxRequestBody = 64 << 10

	// IdempotencyKeyHeader lets a client retry a send without duplicating it
	IdempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

// messageSender appends a message on behalf of a caller
type messageSender interface {
	SendMessage(ctx context.Context, callerID, receiverID, itemID int64, content string) (*store.Message, error)
}

// StartConversationRequest is the JSON request body for POST /api/messages/conversation.
type StartConversationRequest struct {
	OtherParticipantID int64 `json:"other_participant_id"`
	ItemID             int64 `json:"item_id"`
}

// SendMessageRequest is the JSON request body for POST /api/messages/send.
type SendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	ItemID     int64  `json:"item_id"`
	Content    string `json:"content"`
}

// ConversationResponse is a conversation as seen by the caller.
type ConversationResponse struct {
	ID                 int64  `json:"id"`
	OtherParticipantID int64  `json:"other_participant_id"`
	ItemID             int64  `json:"item_id"`
	LastMessagePreview string `json:"last_message_preview"`
	LastMessageAt      string `json:"last_message_at"`
	UnreadCount        int    `json:"unread_count"`
}

// MessageResponse is the JSON form of a stored message.
type MessageResponse struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	Content        string `json:"content"`
	SentAt         string `json:"sent_at"`
	IsRead         bool   `json:"is_read"`
}

func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	authed := auth.HTTPAuthMiddleware(g.store, g.verifier, g.logger)

	mux.Handle("POST /api/messages/conversation", authed(http.HandlerFunc(g.handleStartConversation)))
	mux.Handle("POST /api/messages/send", authed(http.HandlerFunc(g.handleSendMessage)))
	mux.Handle("GET /api/messages/conversations", authed(http.HandlerFunc(g.handleListConversations)))
	mux.Handle("GET /api/messages/conversation/{id}/messages", authed(http.HandlerFunc(g.handleGetMessages)))
	mux.Handle("POST /api/messages/conversation/{id}/read", authed(http.HandlerFunc(g.handleMarkRead)))
}

// handleStartConversation returns the caller's conversation with another
// participant about an item, creating it on first contact.
func (g *Gateway) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	callerID, ok := g.callerID(w, r)
	if !ok {
		return
	}

	var req StartConversationRequest
	if !g.decodeJSON(w, r, &req) {
		return
	}
	if req.OtherParticipantID == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "other_participant_id is required")
		return
	}
	if req.ItemID == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	summary, err := g.conversation.StartOrGetConversation(r.Context(), callerID, req.OtherParticipantID, req.ItemID)
	if err != nil {
		g.sendServiceError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, toConversationResponse(summary))
}

// handleSendMessage appends a message to the caller's conversation with the
// receiver about the item.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	callerID, ok := g.callerID(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !g.decodeJSON(w, r, &req) {
		return
	}
	if req.ReceiverID == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "receiver_id is required")
		return
	}
	if req.ItemID == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	key := r.Header.Get(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		g.sendJSONError(w, http.StatusBadRequest, "idempotency key too long")
		return
	}

	var msg *store.Message
	var err error
	if key == "" {
		msg, err = g.sender.SendMessage(r.Context(), callerID, req.ReceiverID, req.ItemID, req.Content)
	} else {
		msg, err = g.sendOnce(r.Context(), callerID, key, req)
	}
	if err != nil {
		g.sendServiceError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, toMessageResponse(msg))
}

// sendOnce performs a send at most once per (caller, idempotency key) within
// the dedupe TTL. A repeated key returns the originally stored message, even
// if the body differs.
//
// The append is shared by every request waiting on the key, so it runs
// detached from ctx. Each request stops waiting when its own ctx ends.
func (g *Gateway) sendOnce(ctx context.Context, callerID int64, key string, req SendMessageRequest) (*store.Message, error) {
	cacheKey := strconv.FormatInt(callerID, 10) + ":" + key
	if msg, ok := g.sendDedupe.Get(cacheKey); ok {
		return msg, nil
	}

	sharedCtx := context.WithoutCancel(ctx)
	ch := g.sendFlight.DoChan(cacheKey, func() (any, error) {
		if msg, ok := g.sendDedupe.Get(cacheKey); ok {
			return msg, nil
		}
		sendCtx, cancel := context.WithTimeout(sharedCtx, sharedSendTimeout)
		defer cancel()

		msg, err := g.sender.SendMessage(sendCtx, callerID, req.ReceiverID, req.ItemID, req.Content)
		if err != nil {
			return nil, err
		}
		g.sendDedupe.Put(cacheKey, msg)
		return msg, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*store.Message), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	callerID, ok := g.callerID(w, r)
	if !ok {
		return
	}

	summaries, err := g.conversation.ListConversationsFor(r.Context(), callerID)
	if err != nil {
		g.sendServiceError(w, r, err)
		return
	}

	resp := make([]ConversationResponse, len(summaries))
	for i, s := range summaries {
		resp[i] = toConversationResponse(s)
	}
	g.sendJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	callerID, ok := g.callerID(w, r)
	if !ok {
		return
	}
	conversationID, ok := g.pathID(w, r)
	if !ok {
		return
	}

	messages, err := g.conversation.GetMessages(r.Context(), conversationID, callerID)
	if err != nil {
		g.sendServiceError(w, r, err)
		return
	}

	resp := make([]MessageResponse, len(messages))
	for i, m := range messages {
		resp[i] = toMessageResponse(m)
	}
	g.sendJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	callerID, ok := g.callerID(w, r)
	if !ok {
		return
	}
	conversationID, ok := g.pathID(w, r)
	if !ok {
		return
	}

	if err := g.conversation.MarkRead(r.Context(), conversationID, callerID); err != nil {
		g.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// callerID reads the authenticated participant. The auth middleware always
// sets it for API routes, so a miss is a wiring bug.
func (g *Gateway) callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := auth.CallerID(r.Context())
	if !ok {
		g.logger.Error("API handler reached without auth context", "path", r.URL.Path)
		g.sendJSONError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return id, true
}

// pathID parses the {id} path segment as a conversation id.
func (g *Gateway) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		g.sendJSONError(w, http.StatusBadRequest, "invalid conversation id")
		return 0, false
	}
	return id, true
}

func (g *Gateway) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// sendServiceError maps conversation errors to HTTP status codes.
func (g *Gateway) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrForbidden):
		g.sendJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, conversation.ErrInvalidInput):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	default:
		if r.Context().Err() == nil {
			g.logger.Error("request failed", "error", err, "path", r.URL.Path, "request_id", requestIDFrom(r.Context()))
		}
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sendJSON writes v as a JSON response.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("writing response failed", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}

func toConversationResponse(s *store.ConversationSummary) ConversationResponse {
	return ConversationResponse{
		ID:                 s.ID,
		OtherParticipantID: s.OtherParticipantID,
		ItemID:             s.ItemID,
		LastMessagePreview: s.LastMessagePreview,
		LastMessageAt:      formatTimestamp(s.LastMessageAt),
		UnreadCount:        s.UnreadCount,
	}
}

func toMessageResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		SentAt:         formatTimestamp(m.SentAt),
		IsRead:         m.IsRead,
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
