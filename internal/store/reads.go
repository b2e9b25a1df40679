// ABOUTME: Per-participant read state derived from message read flags
// ABOUTME: A message is unread for p when another participant sent it and it is not flagged read

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UnreadCount returns how many messages in the conversation were sent by the
// other participant and not yet marked read.
func (s *SQLiteStore) UnreadCount(ctx context.Context, conversationID, participantID int64) (int, error) {
	var count int
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		conv, err := getConversation(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(participantID) {
			return ErrNotParticipant
		}

		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE conversation_id = ? AND sender_id != ? AND is_read = 0
		`, conversationID, participantID).Scan(&count)
		if err != nil {
			return fmt.Errorf("counting unread messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead flags every message from the other participant as read, in one
// transaction. Returns the number of messages that changed state; calling it
// again returns 0.
func (s *SQLiteStore) MarkRead(ctx context.Context, conversationID, participantID int64) (int64, error) {
	var flipped int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		conv, err := getConversation(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(participantID) {
			return ErrNotParticipant
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE messages SET is_read = 1
			WHERE conversation_id = ? AND sender_id != ? AND is_read = 0
		`, conversationID, participantID)
		if err != nil {
			return fmt.Errorf("marking messages read: %w", err)
		}
		flipped, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	if flipped > 0 {
		s.logger.Debug("marked messages read",
			"conversation_id", conversationID, "participant_id", participantID, "count", flipped)
	}
	return flipped, nil
}
