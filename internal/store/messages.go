// ABOUTME: Append-only per-conversation message log
// ABOUTME: Sequence assignment, sent_at clamping and ordered (eager or lazy) reads

package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"unicode/utf8"
)

const messageColumns = `id, conversation_id, sender_id, content, sent_at, sequence, is_read`

const listMessagesQuery = `
	SELECT ` + messageColumns + ` FROM messages
	WHERE conversation_id = ?
	ORDER BY sent_at ASC, sequence ASC
`

// ValidateContent checks message content is 1..MaxContentLength characters
// of valid UTF-8. Whitespace counts as content.
func ValidateContent(content string) error {
	if content == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidContent)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return fmt.Errorf("%w: content is %d characters, max %d", ErrInvalidContent, n, MaxContentLength)
	}
	return nil
}

// AppendMessage adds a message from senderID to the conversation. The
// sequence is one past the current maximum, and sent_at never precedes the
// conversation's last_message_at, so log order and time order agree.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID, senderID int64, content string) (*Message, error) {
	var msg *Message
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		conv, err := getConversation(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(senderID) {
			return ErrNotParticipant
		}
		if err := ValidateContent(content); err != nil {
			return err
		}

		var seq int64
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sequence) + 1, 0) FROM messages WHERE conversation_id = ?`,
			conversationID,
		).Scan(&seq)
		if err != nil {
			return fmt.Errorf("reading next sequence: %w", err)
		}

		sentAt := s.now().UTC()
		if sentAt.Before(conv.LastMessageAt) {
			sentAt = conv.LastMessageAt
		}
		stamp := formatTime(sentAt)

		res, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, sender_id, content, sent_at, sequence, is_read)
			VALUES (?, ?, ?, ?, ?, 0)
		`, conversationID, senderID, content, stamp, seq)
		if err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading message id: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
			stamp, conversationID)
		if err != nil {
			return fmt.Errorf("updating last_message_at: %w", err)
		}

		sentAt, _ = parseTime(stamp)
		msg = &Message{
			ID:             id,
			ConversationID: conversationID,
			SenderID:       senderID,
			Content:        content,
			SentAt:         sentAt,
			Sequence:       seq,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("appended message",
		"conversation_id", conversationID, "message_id", msg.ID, "sender_id", senderID, "sequence", msg.Sequence)
	return msg, nil
}

// ListMessages returns every message of the conversation in log order.
// Returns ErrNotParticipant if requesterID is not one of its participants.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID, requesterID int64) ([]*Message, error) {
	var messages []*Message
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		conv, err := getConversation(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(requesterID) {
			return ErrNotParticipant
		}

		rows, err := tx.QueryContext(ctx, listMessagesQuery, conversationID)
		if err != nil {
			return fmt.Errorf("querying messages: %w", err)
		}
		defer rows.Close()

		messages = []*Message{}
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Messages returns a lazy, restartable iterator over the conversation's
// messages in log order. Each range runs a fresh query; no authorization
// check is made, callers that need one use ListMessages.
//
// With an in-memory store the iterator holds the only connection while
// ranging, so the loop body must not call back into the store.
func (s *SQLiteStore) Messages(ctx context.Context, conversationID int64) iter.Seq2[*Message, error] {
	return func(yield func(*Message, error) bool) {
		rows, err := s.reader.QueryContext(ctx, listMessagesQuery, conversationID)
		if err != nil {
			yield(nil, fmt.Errorf("querying messages: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(m, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var sentAt string
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &sentAt, &m.Sequence, &m.IsRead)
	if err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	if m.SentAt, err = parseTime(sentAt); err != nil {
		return nil, fmt.Errorf("parsing sent_at: %w", err)
	}
	return &m, nil
}
