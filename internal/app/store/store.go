/*
Package store defines the conversation and message data model together with the
storage interfaces the realtime core consumes.

Two implementations exist: a PostgreSQL-backed store (postgres.go) used in
production, and an in-memory store (memory.go) used by tests. The server holds
no authoritative state beyond presence and room bindings; everything here is
the source of truth.
*/
package store

import (
	"context"
	"errors"
	"time"
)

// Conversation types.
const (
	ConversationPrivate = "private"
	ConversationGroup   = "group"
)

// Message delivery statuses. The lifecycle is linear and forward-only:
// sent -> delivered -> read.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Sentinel errors returned by store implementations.
var (
	// ErrNotFound indicates the referenced conversation or message does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrNotAdmin indicates a non-admin attempted an admin-only group mutation.
	ErrNotAdmin = errors.New("store: not an admin")

	// ErrNotGroup indicates a group-only operation targeted a private conversation.
	ErrNotGroup = errors.New("store: not a group conversation")
)

// Conversation is a private (2-party) or group (N-party) chat context grouping messages.
type Conversation struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Members     []string  `json:"members"`
	Admins      []string  `json:"admins"`
	GroupName   string    `json:"groupName,omitempty"`
	GroupAvatar string    `json:"groupAvatar,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsMember reports whether the given user belongs to the conversation.
func (c Conversation) IsMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the given user is an admin of the conversation.
func (c Conversation) IsAdmin(userID string) bool {
	for _, a := range c.Admins {
		if a == userID {
			return true
		}
	}
	return false
}

// OtherMember returns the counterpart of userID in a private conversation,
// or an empty string when there is none.
func (c Conversation) OtherMember(userID string) string {
	for _, m := range c.Members {
		if m != userID {
			return m
		}
	}
	return ""
}

// Reaction is a single (user, emoji) pair attached to a message.
// A message holds at most one reaction per user.
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// ForwardedFrom captures the origin of a forwarded message.
type ForwardedFrom struct {
	MessageID string `json:"message,omitempty"`
	UserID    string `json:"user,omitempty"`
}

// Message belongs to exactly one conversation context: RecipientID is set for
// private messages, RoomID for group messages, never both.
type Message struct {
	ID            string         `json:"id"`
	SenderID      string         `json:"senderId"`
	RecipientID   string         `json:"recipientId,omitempty"`
	RoomID        string         `json:"roomId,omitempty"`
	Content       string         `json:"content"`
	FileURL       string         `json:"fileUrl,omitempty"`
	FileType      string         `json:"fileType,omitempty"`
	OriginalName  string         `json:"originalname,omitempty"`
	Status        string         `json:"status"`
	ReplyTo       string         `json:"replyTo,omitempty"`
	ForwardedFrom *ForwardedFrom `json:"forwardedFrom,omitempty"`
	Pinned        bool           `json:"pinned"`
	StarredBy     []string       `json:"starredBy,omitempty"`
	Reactions     []Reaction     `json:"reactions"`
	Timestamp     time.Time      `json:"timestamp"`
}

// MessageQuery selects a message history page. For group history set RoomID;
// for private history set UserA and UserB (messages exchanged between the
// two, in either direction). Results are sorted by creation time descending
// in the store and returned to the caller in ascending order.
type MessageQuery struct {
	RoomID string
	UserA  string
	UserB  string
	Skip   int
	Limit  int
}

// ConversationStore persists conversations and their membership.
type ConversationStore interface {
	// GetOrCreatePrivate finds the private conversation between the two users,
	// creating it if absent. The conversation for an unordered user pair is
	// unique, including under concurrent creation.
	GetOrCreatePrivate(ctx context.Context, userA, userB string) (Conversation, error)

	// CreateGroup creates a group conversation; the creator becomes both a
	// member and the initial admin.
	CreateGroup(ctx context.Context, groupName, creatorID string, memberIDs []string) (Conversation, error)

	// ConversationByID returns the conversation with the given id, or ErrNotFound.
	ConversationByID(ctx context.Context, id string) (Conversation, error)

	// ByMember returns every conversation the user belongs to.
	ByMember(ctx context.Context, userID string) ([]Conversation, error)

	// GroupsByMember returns every group conversation the user belongs to.
	GroupsByMember(ctx context.Context, userID string) ([]Conversation, error)

	// AddMember adds a user to a group conversation. It fails with ErrNotAdmin
	// unless adminID is an admin of the group, and is a no-op for existing members.
	AddMember(ctx context.Context, conversationID, adminID, userID string) (Conversation, error)
}

// MessageStore persists messages and answers unread-count queries.
type MessageStore interface {
	// Create persists a new message and returns it.
	Create(ctx context.Context, m Message) (Message, error)

	// ByID returns the message with the given id, or ErrNotFound.
	ByID(ctx context.Context, id string) (Message, error)

	// Update persists the mutable fields of an existing message
	// (content, attachment, status, reactions, pinned, starredBy).
	Update(ctx context.Context, m Message) (Message, error)

	// Delete removes the message permanently, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// CountGroupUnread counts messages in the room sent by anyone other than
	// excludeSender whose status is not read.
	CountGroupUnread(ctx context.Context, roomID, excludeSender string) (int, error)

	// CountPrivateUnread counts private messages from senderID to recipientID
	// whose status is not read.
	CountPrivateUnread(ctx context.Context, senderID, recipientID string) (int, error)

	// List returns a page of message history plus the total count for the query.
	List(ctx context.Context, q MessageQuery) ([]Message, int, error)
}
