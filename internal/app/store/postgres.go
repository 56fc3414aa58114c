package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wirechat/internal/app/db"
	"wirechat/internal/pkg/randx"
)

// PostgresStore implements ConversationStore and MessageStore on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps the given pool. Migrations are the caller's concern
// (see internal/app/db.NewPool).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const conversationColumns = `id, type, members, admins, group_name, group_avatar, created_at, updated_at`

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.Type, &c.Members, &c.Admins, &c.GroupName, &c.GroupAvatar, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("scan conversation: %w", err)
	}
	return c, nil
}

// GetOrCreatePrivate finds or creates the unique private conversation between two users.
// Uniqueness is enforced by the partial unique index on private_pair; a
// concurrent insert loses the race, hits the index, and re-reads the winner.
func (s *PostgresStore) GetOrCreatePrivate(ctx context.Context, userA, userB string) (Conversation, error) {
	pair := privatePairKey(userA, userB)

	selectSQL := `SELECT ` + conversationColumns + ` FROM conversations WHERE private_pair = $1`

	conv, err := scanConversation(s.pool.QueryRow(ctx, selectSQL, pair))
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Conversation{}, err
	}

	now := time.Now()
	insertSQL := `
		INSERT INTO conversations (id, type, members, admins, private_pair, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + conversationColumns

	conv, err = scanConversation(s.pool.QueryRow(ctx, insertSQL,
		randx.ConversationID(), ConversationPrivate, []string{userA, userB}, []string{userA}, pair, now))
	if err == nil {
		return conv, nil
	}

	if db.IsUniqueViolation(err) || errors.Is(err, ErrNotFound) {
		return scanConversation(s.pool.QueryRow(ctx, selectSQL, pair))
	}

	return Conversation{}, err
}

// CreateGroup creates a group conversation with the creator as member and admin.
func (s *PostgresStore) CreateGroup(ctx context.Context, groupName, creatorID string, memberIDs []string) (Conversation, error) {
	members := []string{creatorID}
	for _, id := range memberIDs {
		if id != creatorID {
			members = append(members, id)
		}
	}

	insertSQL := `
		INSERT INTO conversations (id, type, members, admins, group_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + conversationColumns

	return scanConversation(s.pool.QueryRow(ctx, insertSQL,
		randx.ConversationID(), ConversationGroup, members, []string{creatorID}, groupName, time.Now()))
}

// ConversationByID returns the conversation with the given id.
func (s *PostgresStore) ConversationByID(ctx context.Context, id string) (Conversation, error) {
	return scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
}

// ByMember returns every conversation the user belongs to.
func (s *PostgresStore) ByMember(ctx context.Context, userID string) ([]Conversation, error) {
	return s.queryConversations(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE $1 = ANY(members) ORDER BY created_at`, userID)
}

// GroupsByMember returns every group conversation the user belongs to.
func (s *PostgresStore) GroupsByMember(ctx context.Context, userID string) ([]Conversation, error) {
	return s.queryConversations(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE $1 = ANY(members) AND type = $2 ORDER BY created_at`,
		userID, ConversationGroup)
}

func (s *PostgresStore) queryConversations(ctx context.Context, sql string, args ...any) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	result := make([]Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, conv)
	}

	return result, rows.Err()
}

// AddMember adds a user to a group conversation, guarded by an admin check.
func (s *PostgresStore) AddMember(ctx context.Context, conversationID, adminID, userID string) (Conversation, error) {
	conv, err := s.ConversationByID(ctx, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	if conv.Type != ConversationGroup {
		return Conversation{}, ErrNotGroup
	}
	if !conv.IsAdmin(adminID) {
		return Conversation{}, ErrNotAdmin
	}
	if conv.IsMember(userID) {
		return conv, nil
	}

	updateSQL := `
		UPDATE conversations
		SET members = array_append(members, $2), updated_at = now()
		WHERE id = $1
		RETURNING ` + conversationColumns

	return scanConversation(s.pool.QueryRow(ctx, updateSQL, conversationID, userID))
}

const messageColumns = `id, sender_id, recipient_id, room_id, content, file_url, file_type, original_name,
	status, reply_to, forwarded_from_message, forwarded_from_user, pinned, starred_by, reactions, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var (
		m             Message
		recipientID   *string
		roomID        *string
		replyTo       *string
		fwdMessage    *string
		fwdUser       *string
		reactionsJSON []byte
	)

	err := row.Scan(&m.ID, &m.SenderID, &recipientID, &roomID, &m.Content, &m.FileURL, &m.FileType,
		&m.OriginalName, &m.Status, &replyTo, &fwdMessage, &fwdUser, &m.Pinned, &m.StarredBy,
		&reactionsJSON, &m.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("scan message: %w", err)
	}

	if recipientID != nil {
		m.RecipientID = *recipientID
	}
	if roomID != nil {
		m.RoomID = *roomID
	}
	if replyTo != nil {
		m.ReplyTo = *replyTo
	}
	if fwdMessage != nil || fwdUser != nil {
		m.ForwardedFrom = &ForwardedFrom{}
		if fwdMessage != nil {
			m.ForwardedFrom.MessageID = *fwdMessage
		}
		if fwdUser != nil {
			m.ForwardedFrom.UserID = *fwdUser
		}
	}

	m.Reactions = []Reaction{}
	if len(reactionsJSON) > 0 {
		if err := json.Unmarshal(reactionsJSON, &m.Reactions); err != nil {
			return Message{}, fmt.Errorf("decode reactions: %w", err)
		}
	}

	return m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func messageArgs(m Message) ([]any, error) {
	reactions := m.Reactions
	if reactions == nil {
		reactions = []Reaction{}
	}
	reactionsJSON, err := json.Marshal(reactions)
	if err != nil {
		return nil, fmt.Errorf("encode reactions: %w", err)
	}

	starredBy := m.StarredBy
	if starredBy == nil {
		starredBy = []string{}
	}

	var fwdMessage, fwdUser *string
	if m.ForwardedFrom != nil {
		fwdMessage = nullable(m.ForwardedFrom.MessageID)
		fwdUser = nullable(m.ForwardedFrom.UserID)
	}

	return []any{
		m.ID, m.SenderID, nullable(m.RecipientID), nullable(m.RoomID), m.Content, m.FileURL,
		m.FileType, m.OriginalName, m.Status, nullable(m.ReplyTo), fwdMessage, fwdUser,
		m.Pinned, starredBy, reactionsJSON, m.Timestamp,
	}, nil
}

// Create persists a new message.
func (s *PostgresStore) Create(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = randx.MessageID()
	}
	if m.Status == "" {
		m.Status = StatusSent
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	args, err := messageArgs(m)
	if err != nil {
		return Message{}, err
	}

	insertSQL := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + messageColumns

	return scanMessage(s.pool.QueryRow(ctx, insertSQL, args...))
}

// ByID returns the message with the given id.
func (s *PostgresStore) ByID(ctx context.Context, id string) (Message, error) {
	return scanMessage(s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

// Update persists the mutable fields of an existing message.
func (s *PostgresStore) Update(ctx context.Context, m Message) (Message, error) {
	args, err := messageArgs(m)
	if err != nil {
		return Message{}, err
	}

	updateSQL := `
		UPDATE messages
		SET content = $5, file_url = $6, file_type = $7, original_name = $8, status = $9,
			pinned = $13, starred_by = $14, reactions = $15
		WHERE id = $1
		RETURNING ` + messageColumns

	return scanMessage(s.pool.QueryRow(ctx, updateSQL, args...))
}

// Delete removes the message permanently.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountGroupUnread counts not-yet-read room messages from other senders.
func (s *PostgresStore) CountGroupUnread(ctx context.Context, roomID, excludeSender string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE room_id = $1 AND sender_id <> $2 AND status <> $3`,
		roomID, excludeSender, StatusRead).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count group unread: %w", err)
	}
	return count, nil
}

// CountPrivateUnread counts not-yet-read private messages from one user to another.
func (s *PostgresStore) CountPrivateUnread(ctx context.Context, senderID, recipientID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE sender_id = $1 AND recipient_id = $2 AND status <> $3`,
		senderID, recipientID, StatusRead).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count private unread: %w", err)
	}
	return count, nil
}

// List returns a history page sorted newest-first in the query, returned oldest-first.
func (s *PostgresStore) List(ctx context.Context, q MessageQuery) ([]Message, int, error) {
	var (
		where string
		args  []any
	)

	if q.RoomID != "" {
		where = `room_id = $1`
		args = []any{q.RoomID}
	} else {
		where = `((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))`
		args = []any{q.UserA, q.UserB}
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	pageSQL := fmt.Sprintf(`SELECT %s FROM messages WHERE %s ORDER BY created_at DESC OFFSET $%d LIMIT $%d`,
		messageColumns, where, len(args)+1, len(args)+2)
	args = append(args, q.Skip, limit)

	rows, err := s.pool.Query(ctx, pageSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	page := make([]Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Oldest first for the caller.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}

	return page, total, nil
}
