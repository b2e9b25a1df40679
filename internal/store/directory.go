// ABOUTME: Participant and item directory tables
// ABOUTME: Local mirror of the identity and item systems the conversation service resolves against

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDuplicateUsername is returned when a participant username is already taken
var ErrDuplicateUsername = errors.New("username already exists")

// Participant is an identity that can take part in conversations
type Participant struct {
	ID          int64
	Username    string
	DisplayName string
	CreatedAt   time.Time
}

// Item is a lost/found report that conversations are about
type Item struct {
	ID          int64
	OwnerID     int64
	Name        string
	Description string
	Category    ItemCategory
	Status      ItemStatus
	Location    string
	ReportedAt  time.Time
	CreatedAt   time.Time
}

// CreateParticipant inserts a participant and sets p.ID and p.CreatedAt.
// Returns ErrDuplicateUsername if the username is taken.
func (s *SQLiteStore) CreateParticipant(ctx context.Context, p *Participant) error {
	p.Username = strings.TrimSpace(p.Username)
	if p.Username == "" {
		return errors.New("username is required")
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Username
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.CreatedAt = p.CreatedAt.UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (username, display_name, created_at)
		VALUES (?, ?, ?)
	`, p.Username, p.DisplayName, formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("inserting participant: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading participant id: %w", err)
	}
	p.ID = id

	s.logger.Debug("created participant", "participant_id", p.ID, "username", p.Username)
	return nil
}

// GetParticipant retrieves a participant by id
func (s *SQLiteStore) GetParticipant(ctx context.Context, id int64) (*Participant, error) {
	row := s.reader.QueryRowContext(ctx, `
		SELECT id, username, display_name, created_at
		FROM participants WHERE id = ?
	`, id)
	return scanParticipant(row)
}

// GetParticipantByUsername retrieves a participant by username
func (s *SQLiteStore) GetParticipantByUsername(ctx context.Context, username string) (*Participant, error) {
	row := s.reader.QueryRowContext(ctx, `
		SELECT id, username, display_name, created_at
		FROM participants WHERE username = ?
	`, strings.TrimSpace(username))
	return scanParticipant(row)
}

// ListParticipants returns participants ordered by id
func (s *SQLiteStore) ListParticipants(ctx context.Context, limit int) ([]*Participant, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.reader.QueryContext(ctx, `
		SELECT id, username, display_name, created_at
		FROM participants ORDER BY id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying participants: %w", err)
	}
	defer rows.Close()

	var participants []*Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ParticipantExists reports whether a participant with the given id exists
func (s *SQLiteStore) ParticipantExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM participants WHERE id = ?`, id)
}

// CreateItem inserts an item and sets item.ID and item.CreatedAt.
// Category and status must be members of their enums.
func (s *SQLiteStore) CreateItem(ctx context.Context, item *Item) error {
	category, err := ParseItemCategory(string(item.Category))
	if err != nil {
		return err
	}
	status, err := ParseItemStatus(string(item.Status))
	if err != nil {
		return err
	}
	if strings.TrimSpace(item.Name) == "" {
		return errors.New("item name is required")
	}
	item.Category = category
	item.Status = status

	now := s.now().UTC()
	item.CreatedAt = now
	if item.ReportedAt.IsZero() {
		item.ReportedAt = now
	}
	item.ReportedAt = item.ReportedAt.UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (owner_id, name, description, category, status, location, reported_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, item.OwnerID, item.Name, item.Description, string(item.Category), string(item.Status),
		item.Location, formatTime(item.ReportedAt), formatTime(item.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading item id: %w", err)
	}
	item.ID = id

	s.logger.Debug("created item", "item_id", item.ID, "category", item.Category, "status", item.Status)
	return nil
}

// GetItem retrieves an item by id
func (s *SQLiteStore) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.reader.QueryRowContext(ctx, `
		SELECT id, owner_id, name, description, category, status, location, reported_at, created_at
		FROM items WHERE id = ?
	`, id)
	return scanItem(row)
}

// ListItems returns items, most recently reported first
func (s *SQLiteStore) ListItems(ctx context.Context, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.reader.QueryContext(ctx, `
		SELECT id, owner_id, name, description, category, status, location, reported_at, created_at
		FROM items ORDER BY reported_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ItemExists reports whether an item with the given id exists
func (s *SQLiteStore) ItemExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM items WHERE id = ?`, id)
}

func (s *SQLiteStore) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.reader.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*Participant, error) {
	var p Participant
	var createdAt string
	if err := row.Scan(&p.ID, &p.Username, &p.DisplayName, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning participant: %w", err)
	}

	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing participant created_at: %w", err)
	}
	return &p, nil
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var category, status, reportedAt, createdAt string
	err := row.Scan(&item.ID, &item.OwnerID, &item.Name, &item.Description,
		&category, &status, &item.Location, &reportedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}

	item.Category = ItemCategory(category)
	item.Status = ItemStatus(status)
	if item.ReportedAt, err = parseTime(reportedAt); err != nil {
		return nil, fmt.Errorf("parsing item reported_at: %w", err)
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing item created_at: %w", err)
	}
	return &item, nil
}
