// ABOUTME: Conversation Service is the caller-facing façade over identity, message log and read state
// ABOUTME: Every operation takes the caller's identity explicitly and returns only service error kinds

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/lostify-gateway/internal/store"
)

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	FindOrCreateConversation(ctx context.Context, a, b, itemID int64) (*store.Conversation, error)
	GetConversationSummary(ctx context.Context, id, participantID int64) (*store.ConversationSummary, error)
	ListConversationsFor(ctx context.Context, participantID int64) ([]*store.ConversationSummary, error)

	AppendMessage(ctx context.Context, conversationID, senderID int64, content string) (*store.Message, error)
	ListMessages(ctx context.Context, conversationID, requesterID int64) ([]*store.Message, error)

	MarkRead(ctx context.Context, conversationID, participantID int64) (int64, error)
}

// ParticipantResolver answers whether an identity exists
type ParticipantResolver interface {
	ParticipantExists(ctx context.Context, id int64) (bool, error)
}

// ItemChecker answers whether a reference item exists
type ItemChecker interface {
	ItemExists(ctx context.Context, id int64) (bool, error)
}

// Service coordinates conversation operations for authenticated callers.
type Service struct {
	store        ConversationStore
	participants ParticipantResolver
	items        ItemChecker
	logger       *slog.Logger
}

// New creates a new conversation Service. A nil participants or items
// collaborator skips that existence check.
func New(store ConversationStore, participants ParticipantResolver, items ItemChecker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		participants: participants,
		items:        items,
		logger:       logger.With("component", "conversation"),
	}
}

// StartOrGetConversation returns the caller's view of the conversation with
// otherID about itemID, creating it on first use. Concurrent calls from either
// side resolve to the same conversation.
func (s *Service) StartOrGetConversation(ctx context.Context, callerID, otherID, itemID int64) (*store.ConversationSummary, error) {
	const op = "start_conversation"

	conv, err := s.resolveConversation(ctx, op, callerID, otherID, itemID)
	if err != nil {
		return nil, err
	}

	summary, err := s.store.GetConversationSummary(ctx, conv.ID, callerID)
	if err != nil {
		return nil, s.translate(ctx, op, err, "conversation_id", conv.ID, "caller_id", callerID)
	}
	return summary, nil
}

// SendMessage appends content from callerID to the conversation with
// receiverID about itemID, creating the conversation if needed.
func (s *Service) SendMessage(ctx context.Context, callerID, receiverID, itemID int64, content string) (*store.Message, error) {
	const op = "send_message"

	// Reject bad content before anything is created
	if err := store.ValidateContent(content); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	conv, err := s.resolveConversation(ctx, op, callerID, receiverID, itemID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.AppendMessage(ctx, conv.ID, callerID, content)
	if err != nil {
		return nil, s.translate(ctx, op, err,
			"conversation_id", conv.ID, "caller_id", callerID, "receiver_id", receiverID)
	}

	s.logger.Debug("message sent",
		"conversation_id", conv.ID,
		"message_id", msg.ID,
		"sender_id", callerID,
		"sequence", msg.Sequence)
	return msg, nil
}

// ListConversationsFor returns the caller's conversations, most recently
// active first, each with preview text and the caller's unread count.
func (s *Service) ListConversationsFor(ctx context.Context, callerID int64) ([]*store.ConversationSummary, error) {
	const op = "list_conversations"

	if err := s.requireParticipant(ctx, op, callerID); err != nil {
		return nil, err
	}

	summaries, err := s.store.ListConversationsFor(ctx, callerID)
	if err != nil {
		return nil, s.translate(ctx, op, err, "caller_id", callerID)
	}
	return summaries, nil
}

// GetMessages returns the conversation's messages in log order. The caller
// must be one of its participants.
func (s *Service) GetMessages(ctx context.Context, conversationID, callerID int64) ([]*store.Message, error) {
	const op = "get_messages"

	if err := s.requireParticipant(ctx, op, callerID); err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, conversationID, callerID)
	if err != nil {
		return nil, s.translate(ctx, op, err, "conversation_id", conversationID, "caller_id", callerID)
	}
	return messages, nil
}

// MarkRead marks every message the other participant sent as read for the
// caller. Calling it repeatedly is harmless.
func (s *Service) MarkRead(ctx context.Context, conversationID, callerID int64) error {
	const op = "mark_read"

	if err := s.requireParticipant(ctx, op, callerID); err != nil {
		return err
	}

	n, err := s.store.MarkRead(ctx, conversationID, callerID)
	if err != nil {
		return s.translate(ctx, op, err, "conversation_id", conversationID, "caller_id", callerID)
	}

	if n > 0 {
		s.logger.Debug("conversation marked read",
			"conversation_id", conversationID, "caller_id", callerID, "count", n)
	}
	return nil
}

// resolveConversation validates the triple and finds or creates its conversation
func (s *Service) resolveConversation(ctx context.Context, op string, callerID, otherID, itemID int64) (*store.Conversation, error) {
	if callerID == otherID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", ErrInvalidInput)
	}
	if err := s.requireParticipant(ctx, op, callerID); err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, op, otherID); err != nil {
		return nil, err
	}
	if err := s.requireItem(ctx, op, itemID); err != nil {
		return nil, err
	}

	conv, err := s.store.FindOrCreateConversation(ctx, callerID, otherID, itemID)
	if err != nil {
		return nil, s.translate(ctx, op, err,
			"caller_id", callerID, "other_id", otherID, "item_id", itemID)
	}
	return conv, nil
}

func (s *Service) requireParticipant(ctx context.Context, op string, id int64) error {
	if s.participants == nil {
		return nil
	}
	ok, err := s.participants.ParticipantExists(ctx, id)
	if err != nil {
		return s.translate(ctx, op, err, "participant_id", id)
	}
	if !ok {
		return fmt.Errorf("%w: participant %d", ErrNotFound, id)
	}
	return nil
}

func (s *Service) requireItem(ctx context.Context, op string, id int64) error {
	if s.items == nil {
		return nil
	}
	ok, err := s.items.ItemExists(ctx, id)
	if err != nil {
		return s.translate(ctx, op, err, "item_id", id)
	}
	if !ok {
		return fmt.Errorf("%w: item %d", ErrNotFound, id)
	}
	return nil
}

// translate maps store errors to service error kinds. Anything unexpected is
// logged with the operation's identifiers and returned as bare ErrInternal.
func (s *Service) translate(ctx context.Context, op string, err error, attrs ...any) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: conversation", ErrNotFound)
	case errors.Is(err, store.ErrNotParticipant):
		return fmt.Errorf("%w: %s", ErrForbidden, store.ErrNotParticipant.Error())
	case errors.Is(err, store.ErrSameParticipant):
		return fmt.Errorf("%w: %s", ErrInvalidInput, store.ErrSameParticipant.Error())
	case errors.Is(err, store.ErrInvalidContent):
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	case ctx.Err() != nil:
		// Caller went away; nothing was committed
		s.logger.Debug("operation canceled", append([]any{"op", op, "error", err}, attrs...)...)
		return ctx.Err()
	}

	s.logger.Error("conversation operation failed", append([]any{"op", op, "error", err}, attrs...)...)
	return ErrInternal
}
