/*
Package chat contains the realtime messaging core.

This file exposes the engine operations consumed by the REST mirrors of the
conversation/message surface. Unlike the socket handlers these return data to
the caller synchronously and do not fan out, matching the non-realtime client
contract.
*/
package chat

import (
	"context"

	"wirechat/internal/app/store"
	"wirechat/internal/pkg/errs"
)

// DefaultHistoryLimit caps a history page when the caller does not specify one.
const DefaultHistoryLimit = 50

// GetOrCreatePrivateConversation returns the unique private conversation
// between the actor and the other user, creating it on first contact.
func (s *Service) GetOrCreatePrivateConversation(ctx context.Context, actorID, otherID string) (store.Conversation, error) {
	if otherID == "" || otherID == actorID {
		return store.Conversation{}, errs.NewError(errs.ErrInvalidParams)
	}

	conv, err := s.conversations.GetOrCreatePrivate(ctx, actorID, otherID)
	if err != nil {
		return store.Conversation{}, storeError(err, errs.ErrConversationNotFound)
	}
	return conv, nil
}

// CreateGroupConversation creates a group with the actor as initial admin.
func (s *Service) CreateGroupConversation(ctx context.Context, actorID, groupName string, memberIDs []string) (store.Conversation, error) {
	if groupName == "" || len(memberIDs) == 0 {
		return store.Conversation{}, errs.NewError(errs.ErrInvalidParams)
	}

	conv, err := s.conversations.CreateGroup(ctx, groupName, actorID, memberIDs)
	if err != nil {
		return store.Conversation{}, storeError(err, errs.ErrConversationNotFound)
	}
	return conv, nil
}

// InviteToGroup adds a user to a group conversation; only admins may invite.
func (s *Service) InviteToGroup(ctx context.Context, conversationID, actorID, userID string) (store.Conversation, error) {
	conv, err := s.conversations.AddMember(ctx, conversationID, actorID, userID)
	if err != nil {
		return store.Conversation{}, storeError(err, errs.ErrConversationNotFound)
	}
	return conv, nil
}

// ConversationsFor lists every conversation the user belongs to.
func (s *Service) ConversationsFor(ctx context.Context, userID string) ([]store.Conversation, error) {
	conversations, err := s.conversations.ByMember(ctx, userID)
	if err != nil {
		return nil, storeError(err, errs.ErrConversationNotFound)
	}
	return conversations, nil
}

// History returns a page of message history. For a group conversation id the
// page covers the room; otherwise chatID is treated as the counterpart user
// id of a private thread with the actor.
func (s *Service) History(ctx context.Context, actorID, chatID string, page, limit int) ([]store.Message, int, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	q := store.MessageQuery{
		Skip:  (page - 1) * limit,
		Limit: limit,
	}

	conv, err := s.conversations.ConversationByID(ctx, chatID)
	if err == nil && conv.Type == store.ConversationGroup {
		q.RoomID = chatID
	} else {
		q.UserA = actorID
		q.UserB = chatID
	}

	messages, total, err := s.messages.List(ctx, q)
	if err != nil {
		return nil, 0, storeError(err, errs.ErrMessageNotFound)
	}

	return messages, total, nil
}

// Forward copies an existing message's content and attachment into a new
// message for the given recipient or room, stamping the origin. Status,
// reactions and pin/star state are not carried over.
func (s *Service) Forward(ctx context.Context, actorID, messageID, recipientID, roomID string) (store.Message, error) {
	original, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		return store.Message{}, storeError(err, errs.ErrMessageNotFound)
	}

	if recipientID == "" && roomID == "" {
		return store.Message{}, errs.NewError(errs.ErrInvalidParams)
	}

	forwarded, err := s.messages.Create(ctx, store.Message{
		SenderID:     actorID,
		RecipientID:  recipientID,
		RoomID:       roomID,
		Content:      original.Content,
		FileURL:      original.FileURL,
		FileType:     original.FileType,
		OriginalName: original.OriginalName,
		Status:       store.StatusSent,
		ForwardedFrom: &store.ForwardedFrom{
			MessageID: original.ID,
			UserID:    original.SenderID,
		},
	})
	if err != nil {
		return store.Message{}, storeError(err, errs.ErrMessageNotFound)
	}

	return forwarded, nil
}

// Pin sets or clears the pinned flag. The operation is idempotent and
// restricted only by authentication; pin state is returned, not broadcast.
func (s *Service) Pin(ctx context.Context, messageID string, pin bool) (store.Message, error) {
	msg, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		return store.Message{}, storeError(err, errs.ErrMessageNotFound)
	}

	if msg.Pinned == pin {
		return msg, nil
	}

	msg.Pinned = pin
	msg, err = s.messages.Update(ctx, msg)
	if err != nil {
		return store.Message{}, storeError(err, errs.ErrMessageNotFound)
	}
	return msg, nil
}

// Star adds or removes the actor in the message's star set. Star state is
// local to the requester's view; nothing is broadcast.
func (s *Service) Star(ctx context.Context, actorID, messageID string, star bool) (store.Message, error) {
	msg, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		return store.Message{}, storeError(err, errs.ErrMessageNotFound)
	}

	starredBy := make([]string, 0, len(msg.StarredBy)+1)
	for _, id := range msg.StarredBy {
		if id != actorID {
			starredBy = append(starredBy, id)
		}
	}
	if star {
		starredBy = append(starredBy, actorID)
	}
	msg.StarredBy = starredBy

	msg, err = s.messages.Update(ctx, msg)
	if err != nil {
		return store.Message{}, storeError(err, errs.ErrMessageNotFound)
	}
	return msg, nil
}

// Edit is the REST mirror of edit_message: same sender-only rule, no fan-out.
func (s *Service) Edit(ctx context.Context, actorID, messageID, content string) (store.Message, error) {
	return s.applyEdit(ctx, actorID, EditPayload{MessageID: messageID, Content: content})
}

// Delete is the REST mirror of delete_message: same sender-only rule, no fan-out.
func (s *Service) Delete(ctx context.Context, actorID, messageID string) error {
	_, err := s.applyDelete(ctx, actorID, messageID)
	return err
}
