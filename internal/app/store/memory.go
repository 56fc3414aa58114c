package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"wirechat/internal/pkg/randx"
)

// MemoryStore is an in-memory implementation of ConversationStore and
// MessageStore. It backs tests and local development; the semantics mirror
// the PostgreSQL implementation, including private-conversation uniqueness.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	privateIndex  map[string]string // sorted "a:b" pair -> conversation id
	messages      map[string]*Message
	order         []string // message ids in insertion order
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		privateIndex:  make(map[string]string),
		messages:      make(map[string]*Message),
	}
}

// privatePairKey builds the unordered-pair key used to enforce private
// conversation uniqueness.
func privatePairKey(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

// GetOrCreatePrivate finds or creates the unique private conversation between two users.
func (s *MemoryStore) GetOrCreatePrivate(ctx context.Context, userA, userB string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := privatePairKey(userA, userB)
	if id, ok := s.privateIndex[key]; ok {
		return *s.conversations[id], nil
	}

	now := time.Now()
	conv := &Conversation{
		ID:        randx.ConversationID(),
		Type:      ConversationPrivate,
		Members:   []string{userA, userB},
		Admins:    []string{userA},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.conversations[conv.ID] = conv
	s.privateIndex[key] = conv.ID

	return *conv, nil
}

// CreateGroup creates a group conversation with the creator as member and admin.
func (s *MemoryStore) CreateGroup(ctx context.Context, groupName, creatorID string, memberIDs []string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := []string{creatorID}
	for _, id := range memberIDs {
		if id != creatorID {
			members = append(members, id)
		}
	}

	now := time.Now()
	conv := &Conversation{
		ID:        randx.ConversationID(),
		Type:      ConversationGroup,
		Members:   members,
		Admins:    []string{creatorID},
		GroupName: groupName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.conversations[conv.ID] = conv

	return *conv, nil
}

// ConversationByID returns the conversation with the given id.
func (s *MemoryStore) ConversationByID(ctx context.Context, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return *conv, nil
}

// ByMember returns every conversation the user belongs to.
func (s *MemoryStore) ByMember(ctx context.Context, userID string) ([]Conversation, error) {
	return s.byMember(userID, "")
}

// GroupsByMember returns every group conversation the user belongs to.
func (s *MemoryStore) GroupsByMember(ctx context.Context, userID string) ([]Conversation, error) {
	return s.byMember(userID, ConversationGroup)
}

func (s *MemoryStore) byMember(userID, convType string) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Conversation, 0)
	for _, conv := range s.conversations {
		if convType != "" && conv.Type != convType {
			continue
		}
		if conv.IsMember(userID) {
			result = append(result, *conv)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// AddMember adds a user to a group conversation, guarded by an admin check.
func (s *MemoryStore) AddMember(ctx context.Context, conversationID, adminID, userID string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	if conv.Type != ConversationGroup {
		return Conversation{}, ErrNotGroup
	}
	if !conv.IsAdmin(adminID) {
		return Conversation{}, ErrNotAdmin
	}

	if !conv.IsMember(userID) {
		conv.Members = append(conv.Members, userID)
		conv.UpdatedAt = time.Now()
	}

	return *conv, nil
}

// Create persists a new message.
func (s *MemoryStore) Create(ctx context.Context, m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = randx.MessageID()
	}
	if m.Status == "" {
		m.Status = StatusSent
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	if m.Reactions == nil {
		m.Reactions = []Reaction{}
	}

	stored := m
	s.messages[m.ID] = &stored
	s.order = append(s.order, m.ID)

	return m, nil
}

// ByID returns the message with the given id.
func (s *MemoryStore) ByID(ctx context.Context, id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return *m, nil
}

// Update overwrites the stored message with the given one.
func (s *MemoryStore) Update(ctx context.Context, m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[m.ID]; !ok {
		return Message{}, ErrNotFound
	}

	stored := m
	s.messages[m.ID] = &stored

	return m, nil
}

// Delete removes the message permanently.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return ErrNotFound
	}
	delete(s.messages, id)

	for i, mid := range s.order {
		if mid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}

// CountGroupUnread counts not-yet-read room messages from other senders.
func (s *MemoryStore) CountGroupUnread(ctx context.Context, roomID, excludeSender string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.messages {
		if m.RoomID == roomID && m.SenderID != excludeSender && m.Status != StatusRead {
			count++
		}
	}
	return count, nil
}

// CountPrivateUnread counts not-yet-read private messages from one user to another.
func (s *MemoryStore) CountPrivateUnread(ctx context.Context, senderID, recipientID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.messages {
		if m.SenderID == senderID && m.RecipientID == recipientID && m.Status != StatusRead {
			count++
		}
	}
	return count, nil
}

// List returns a history page sorted newest-first in the store, returned oldest-first.
func (s *MemoryStore) List(ctx context.Context, q MessageQuery) ([]Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Message, 0)
	for _, id := range s.order {
		m := s.messages[id]
		if q.RoomID != "" {
			if m.RoomID == q.RoomID {
				matched = append(matched, *m)
			}
			continue
		}
		if (m.SenderID == q.UserA && m.RecipientID == q.UserB) ||
			(m.SenderID == q.UserB && m.RecipientID == q.UserA) {
			matched = append(matched, *m)
		}
	}

	total := len(matched)

	// Newest first for paging.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if q.Skip >= len(matched) {
		return []Message{}, total, nil
	}
	matched = matched[q.Skip:]

	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	// Oldest first for the caller.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	return matched, total, nil
}
