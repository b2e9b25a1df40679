// ABOUTME: Conversation identity: canonical find-or-create, duplicate merge and summaries
// ABOUTME: The unique (low, high, item) index is the only creation concurrency control

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// maxFindOrCreateAttempts bounds the insert-or-fetch retry loop. A second
// attempt always sees the winner's row, so more than two means something else
// is wrong with the database.
const maxFindOrCreateAttempts = 3

const conversationColumns = `id, participant_low, participant_high, item_id, created_at, last_message_at`

// FindOrCreateConversation returns the single conversation for the unordered
// pair {a, b} and the item, creating it if none exists. If legacy duplicates
// exist they are merged into the earliest-created one first.
// Returns ErrSameParticipant if a == b.
func (s *SQLiteStore) FindOrCreateConversation(ctx context.Context, a, b, itemID int64) (*Conversation, error) {
	pair, err := CanonicalPair(a, b)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxFindOrCreateAttempts; attempt++ {
		conv, err := s.findOrCreateOnce(ctx, pair, itemID)
		if errors.Is(err, ErrDuplicateConversation) {
			// Another writer created it between our lookup and insert; the
			// next attempt reads their row.
			lastErr = err
			s.logger.Debug("conversation insert lost race, retrying lookup",
				"participant_low", pair.Low, "participant_high", pair.High, "item_id", itemID)
			continue
		}
		return conv, err
	}
	return nil, fmt.Errorf("finding conversation after %d attempts: %w", maxFindOrCreateAttempts, lastErr)
}

func (s *SQLiteStore) findOrCreateOnce(ctx context.Context, pair Pair, itemID int64) (*Conversation, error) {
	var conv *Conversation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		matches, err := selectConversations(ctx, tx, pair, itemID)
		if err != nil {
			return err
		}

		switch len(matches) {
		case 0:
			conv, err = s.insertConversation(ctx, tx, pair, itemID)
		case 1:
			conv = matches[0]
		default:
			conv, err = s.mergeConversations(ctx, tx, matches)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *SQLiteStore) insertConversation(ctx context.Context, tx *sql.Tx, pair Pair, itemID int64) (*Conversation, error) {
	now := s.now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (participant_low, participant_high, item_id, created_at, last_message_at)
		VALUES (?, ?, ?, ?, ?)
	`, pair.Low, pair.High, itemID, formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateConversation
		}
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading conversation id: %w", err)
	}

	s.logger.Debug("created conversation",
		"conversation_id", id, "participant_low", pair.Low, "participant_high", pair.High, "item_id", itemID)

	// Round-trip through the stored format so callers see exactly what a
	// later read would return.
	stamp, _ := parseTime(formatTime(now))
	return &Conversation{
		ID:              id,
		ParticipantLow:  pair.Low,
		ParticipantHigh: pair.High,
		ItemID:          itemID,
		CreatedAt:       stamp,
		LastMessageAt:   stamp,
	}, nil
}

// mergeConversations folds every conversation in group into group[0], which
// must be the earliest created. All messages of the merged thread are
// renumbered 0..n-1 in (sent_at, sequence, id) order.
func (s *SQLiteStore) mergeConversations(ctx context.Context, tx *sql.Tx, group []*Conversation) (*Conversation, error) {
	canonical := group[0]
	ids := make([]any, len(group))
	dupIDs := make([]int64, 0, len(group)-1)
	lastMessageAt := canonical.LastMessageAt
	for i, c := range group {
		ids[i] = c.ID
		if i > 0 {
			dupIDs = append(dupIDs, c.ID)
		}
		if c.LastMessageAt.After(lastMessageAt) {
			lastMessageAt = c.LastMessageAt
		}
	}
	in := placeholders(len(ids))

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM messages
		WHERE conversation_id IN (`+in+`)
		ORDER BY sent_at ASC, sequence ASC, id ASC
	`, ids...)
	if err != nil {
		return nil, fmt.Errorf("listing messages to merge: %w", err)
	}
	var messageIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning message id: %w", err)
		}
		messageIDs = append(messageIDs, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Two passes keep (conversation_id, sequence) unique at every step:
	// first park each message on a distinct negative slot, then flip the
	// slots back to 0..n-1.
	for i, id := range messageIDs {
		_, err := tx.ExecContext(ctx,
			`UPDATE messages SET conversation_id = ?, sequence = ? WHERE id = ?`,
			canonical.ID, -int64(i+1), id)
		if err != nil {
			return nil, fmt.Errorf("moving message %d: %w", id, err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE messages SET sequence = -sequence - 1 WHERE conversation_id = ? AND sequence < 0`,
		canonical.ID)
	if err != nil {
		return nil, fmt.Errorf("renumbering messages: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
		formatTime(lastMessageAt), canonical.ID)
	if err != nil {
		return nil, fmt.Errorf("updating canonical conversation: %w", err)
	}

	dupArgs := ids[1:]
	_, err = tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE id IN (`+placeholders(len(dupArgs))+`)`,
		dupArgs...)
	if err != nil {
		return nil, fmt.Errorf("deleting duplicate conversations: %w", err)
	}

	s.logger.Info("merged duplicate conversations",
		"conversation_id", canonical.ID,
		"duplicate_ids", dupIDs,
		"participant_low", canonical.ParticipantLow,
		"participant_high", canonical.ParticipantHigh,
		"item_id", canonical.ItemID,
		"messages", len(messageIDs))

	merged := *canonical
	merged.LastMessageAt = lastMessageAt
	return &merged, nil
}

// RepairDuplicateConversations merges every group of conversations sharing a
// (pair, item) key. Returns the number of duplicate rows removed.
func (s *SQLiteStore) RepairDuplicateConversations(ctx context.Context) (int, error) {
	removed := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		type key struct {
			pair   Pair
			itemID int64
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT participant_low, participant_high, item_id
			FROM conversations
			GROUP BY participant_low, participant_high, item_id
			HAVING COUNT(*) > 1
		`)
		if err != nil {
			return fmt.Errorf("finding duplicate conversations: %w", err)
		}
		var keys []key
		for rows.Next() {
			var k key
			if err := rows.Scan(&k.pair.Low, &k.pair.High, &k.itemID); err != nil {
				rows.Close()
				return fmt.Errorf("scanning duplicate key: %w", err)
			}
			keys = append(keys, k)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, k := range keys {
			group, err := selectConversations(ctx, tx, k.pair, k.itemID)
			if err != nil {
				return err
			}
			if len(group) < 2 {
				continue
			}
			if _, err := s.mergeConversations(ctx, tx, group); err != nil {
				return err
			}
			removed += len(group) - 1
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// GetConversation retrieves a conversation by id
func (s *SQLiteStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	return getConversation(ctx, s.reader, id)
}

// GetConversationSummary returns the conversation as seen by participantID.
// Returns ErrNotParticipant if participantID is not one of its two participants.
func (s *SQLiteStore) GetConversationSummary(ctx context.Context, id, participantID int64) (*ConversationSummary, error) {
	row := s.reader.QueryRowContext(ctx, summarySelect+`
		WHERE c.id = ?
	`, participantID, participantID, id)

	summary, low, high, err := scanSummary(row, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if participantID != low && participantID != high {
		return nil, ErrNotParticipant
	}
	return summary, nil
}

// ListConversationsFor returns every conversation participantID is part of,
// most recently active first.
func (s *SQLiteStore) ListConversationsFor(ctx context.Context, participantID int64) ([]*ConversationSummary, error) {
	rows, err := s.reader.QueryContext(ctx, summarySelect+`
		WHERE c.participant_low = ? OR c.participant_high = ?
		ORDER BY c.last_message_at DESC, c.id DESC
	`, participantID, participantID, participantID, participantID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	summaries := []*ConversationSummary{}
	for rows.Next() {
		summary, _, _, err := scanSummary(rows, participantID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// summarySelect takes two leading args: the viewer id for other-participant
// resolution and the viewer id for unread counting.
const summarySelect = `
	SELECT
		c.id, c.participant_low, c.participant_high, c.item_id, c.last_message_at,
		CASE WHEN c.participant_low = ? THEN c.participant_high ELSE c.participant_low END,
		COALESCE((
			SELECT m.content FROM messages m
			WHERE m.conversation_id = c.id
			ORDER BY m.sent_at DESC, m.sequence DESC
			LIMIT 1
		), ''),
		(
			SELECT COUNT(*) FROM messages m
			WHERE m.conversation_id = c.id AND m.sender_id != ? AND m.is_read = 0
		)
	FROM conversations c
`

func scanSummary(row rowScanner, participantID int64) (*ConversationSummary, int64, int64, error) {
	var (
		summary       ConversationSummary
		low, high     int64
		lastMessageAt string
	)
	err := row.Scan(&summary.ID, &low, &high, &summary.ItemID, &lastMessageAt,
		&summary.OtherParticipantID, &summary.LastMessagePreview, &summary.UnreadCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, 0, err
		}
		return nil, 0, 0, fmt.Errorf("scanning conversation summary: %w", err)
	}
	if summary.LastMessageAt, err = parseTime(lastMessageAt); err != nil {
		return nil, 0, 0, fmt.Errorf("parsing last_message_at: %w", err)
	}
	return &summary, low, high, nil
}

func getConversation(ctx context.Context, q queryer, id int64) (*Conversation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return conv, err
}

// selectConversations returns every row for the key, earliest created first
func selectConversations(ctx context.Context, q queryer, pair Pair, itemID int64) ([]*Conversation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE participant_low = ? AND participant_high = ? AND item_id = ?
		ORDER BY created_at ASC, id ASC
	`, pair.Low, pair.High, itemID)
	if err != nil {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var conv Conversation
	var createdAt, lastMessageAt string
	err := row.Scan(&conv.ID, &conv.ParticipantLow, &conv.ParticipantHigh, &conv.ItemID, &createdAt, &lastMessageAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	if conv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if conv.LastMessageAt, err = parseTime(lastMessageAt); err != nil {
		return nil, fmt.Errorf("parsing last_message_at: %w", err)
	}
	return &conv, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
