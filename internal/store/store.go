// ABOUTME: Store interfaces and data types for lostify-gateway persistence
// ABOUTME: Defines Conversation, Message, directory records and the sentinel errors

package store

import (
	"context"
	"errors"
	"iter"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when an insert loses the race on the
// (participant_low, participant_high, item_id) unique index
var ErrDuplicateConversation = errors.New("conversation already exists")

// ErrSameParticipant is returned when both sides of a pair are the same identity
var ErrSameParticipant = errors.New("a conversation requires two distinct participants")

// ErrNotParticipant is returned when an identity acts on a conversation it is not part of
var ErrNotParticipant = errors.New("not a participant of this conversation")

// ErrInvalidContent is returned for empty or over-length message content
var ErrInvalidContent = errors.New("invalid message content")

// MaxContentLength is the maximum message length in characters (runes)
const MaxContentLength = 1000

// Conversation is a thread between exactly two participants about one item.
// Messages are not embedded; they are looked up by ConversationID.
type Conversation struct {
	ID              int64
	ParticipantLow  int64
	ParticipantHigh int64
	ItemID          int64
	CreatedAt       time.Time
	LastMessageAt   time.Time
}

// HasParticipant reports whether id is one of the two participants
func (c *Conversation) HasParticipant(id int64) bool {
	return id == c.ParticipantLow || id == c.ParticipantHigh
}

// Other returns the counterpart of id. The result is meaningless if id
// is not a participant.
func (c *Conversation) Other(id int64) int64 {
	if id == c.ParticipantLow {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}

// Message is one immutable unit of conversation content plus its read flag
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	SentAt         time.Time
	Sequence       int64 // per-conversation, strictly increasing from 0
	IsRead         bool
}

// ConversationSummary is a conversation as seen by one of its participants
type ConversationSummary struct {
	ID                 int64
	OtherParticipantID int64
	ItemID             int64
	LastMessagePreview string // content of the most recent message, "" if none
	LastMessageAt      time.Time
	UnreadCount        int
}

// ConversationStore owns conversation identity: canonical lookup, creation
// and duplicate merging.
type ConversationStore interface {
	FindOrCreateConversation(ctx context.Context, a, b, itemID int64) (*Conversation, error)
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	GetConversationSummary(ctx context.Context, id, participantID int64) (*ConversationSummary, error)
	ListConversationsFor(ctx context.Context, participantID int64) ([]*ConversationSummary, error)
	RepairDuplicateConversations(ctx context.Context) (int, error)
}

// MessageLog is the append-only, per-conversation ordered message sequence
type MessageLog interface {
	AppendMessage(ctx context.Context, conversationID, senderID int64, content string) (*Message, error)
	ListMessages(ctx context.Context, conversationID, requesterID int64) ([]*Message, error)
	Messages(ctx context.Context, conversationID int64) iter.Seq2[*Message, error]
}

// ReadTracker derives unread counts from message read flags
type ReadTracker interface {
	UnreadCount(ctx context.Context, conversationID, participantID int64) (int, error)
	MarkRead(ctx context.Context, conversationID, participantID int64) (int64, error)
}

// DirectoryStore is the local mirror of the identity and item systems
type DirectoryStore interface {
	// Participants
	CreateParticipant(ctx context.Context, p *Participant) error
	GetParticipant(ctx context.Context, id int64) (*Participant, error)
	GetParticipantByUsername(ctx context.Context, username string) (*Participant, error)
	ListParticipants(ctx context.Context, limit int) ([]*Participant, error)
	ParticipantExists(ctx context.Context, id int64) (bool, error)

	// Items
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id int64) (*Item, error)
	ListItems(ctx context.Context, limit int) ([]*Item, error)
	ItemExists(ctx context.Context, id int64) (bool, error)
}

// Store is everything the gateway needs from persistence
type Store interface {
	ConversationStore
	MessageLog
	ReadTracker
	DirectoryStore

	// Ping checks that the database is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
