/*
Package chat contains the realtime messaging core.

This file defines the Service, the message lifecycle engine and event
dispatcher. It owns the dispatch table mapping inbound event names to
handlers, advances the sent -> delivered -> read state machine, applies
message mutations, and resolves fan-out targets.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"wirechat/internal/app/store"
	"wirechat/internal/pkg/errs"
	"wirechat/internal/pkg/logx"
)

// handlerFunc is the uniform contract for inbound event handlers.
type handlerFunc func(ctx context.Context, c *Client, payload json.RawMessage) error

// Service coordinates the presence registry, the hub, and the backing stores.
// One instance serves the whole process; all state it holds beyond the stores
// is rebuildable (presence and room bindings).
type Service struct {
	hub           *Hub
	presence      *Presence
	conversations store.ConversationStore
	messages      store.MessageStore
	handlers      map[string]handlerFunc
	logger        zerolog.Logger
}

// NewService wires the engine together and builds the dispatch table.
func NewService(hub *Hub, presence *Presence, conversations store.ConversationStore, messages store.MessageStore) *Service {
	s := &Service{
		hub:           hub,
		presence:      presence,
		conversations: conversations,
		messages:      messages,
		logger:        logx.Logger().With().Str("component", "Service").Logger(),
	}

	s.handlers = map[string]handlerFunc{
		EventRegisterUser:   s.handleRegisterUser,
		EventUserOnline:     s.handleUserOnline,
		EventGetOnlineUsers: s.handleGetOnlineUsers,
		EventJoinRoom:       s.handleJoinRoom,
		EventLeaveRoom:      s.handleLeaveRoom,
		EventCreateGroup:    s.handleCreateGroup,
		EventCreatePrivate:  s.handleCreatePrivate,
		EventSendPrivate:    s.handleSendPrivate,
		EventSendGroup:      s.handleSendGroup,
		EventTyping:         s.handleTyping,
		EventStopTyping:     s.handleStopTyping,
		EventDelivered:      s.handleDelivered,
		EventRead:           s.handleRead,
		EventAddReaction:    s.handleAddReaction,
		EventRemoveReaction: s.handleRemoveReaction,
		EventEditMessage:    s.handleEditMessage,
		EventReplyMessage:   s.handleReplyMessage,
		EventDeleteMessage:  s.handleDeleteMessage,
	}

	return s
}

// Hub exposes the fan-out substrate, mainly for connection registration.
func (s *Service) Hub() *Hub {
	return s.hub
}

// Presence exposes the presence registry.
func (s *Service) Presence() *Presence {
	return s.presence
}

// Dispatch routes one decoded envelope to its handler. A failing handler is
// isolated: the error is logged and surfaced to the acting client only,
// never to other connections.
func (s *Service) Dispatch(ctx context.Context, c *Client, env Envelope) {
	handler, ok := s.handlers[env.Event]
	if !ok {
		c.logger.Warn().Str("event", env.Event).Msg("Client sent unsupported event")
		c.SendError(env.Event, errs.NewError(errs.ErrInvalidParams))
		return
	}

	if err := handler(ctx, c, env.Payload); err != nil {
		s.logger.Warn().Err(err).
			Str("event", env.Event).
			Str("client_id", c.userID).
			Msg("Event handler failed.")
		c.SendError(env.Event, err)
	}
}

// Register binds a freshly authenticated connection into the system: the
// client joins its own private channel and every group room the store says it
// belongs to, presence flips online, and the client receives the current
// online set plus its unread counts.
func (s *Service) Register(ctx context.Context, c *Client) {
	s.hub.Add(c)

	if err := s.joinUserRooms(ctx, c); err != nil {
		s.logger.Error().Err(err).Str("client_id", c.userID).Msg("Failed to join group rooms on registration.")
	}

	s.presence.MarkOnline(c.userID)
	s.broadcastPresence()

	if err := c.Emit(EventUserOnline, s.presence.Snapshot()); err == nil {
		s.pushUnread(ctx, c.userID)
	}
}

// Disconnect tears a connection down: presence cleared, every room left, and
// the presence broadcast fired. Room membership is re-derived from the hub's
// registration, not trusted connection-local state.
func (s *Service) Disconnect(ctx context.Context, c *Client) {
	s.presence.MarkOffline(c.userID)
	s.hub.Remove(c)
	s.broadcastPresence()
}

// joinUserRooms joins the connection to its private channel and to one room
// per group conversation it is a member of.
func (s *Service) joinUserRooms(ctx context.Context, c *Client) error {
	s.hub.Join(c.userID, c)

	groups, err := s.conversations.GroupsByMember(ctx, c.userID)
	if err != nil {
		return err
	}

	for _, g := range groups {
		s.hub.Join(g.ID, c)
	}

	return nil
}

// broadcastPresence pushes the full online id set to every connected client.
// Presence transitions are globally visible, not scoped to contacts.
func (s *Service) broadcastPresence() {
	s.hub.EmitToAll(EventUserOnline, s.presence.Snapshot())
}

// requireActor rejects payloads whose actor id does not match the identity
// bound to the connection.
func requireActor(c *Client, actorID string) error {
	if actorID != c.userID {
		return errs.NewError(errs.ErrForbidden)
	}
	return nil
}

// storeError maps store sentinel errors onto the application error taxonomy.
func storeError(err error, notFoundCode int) *errs.CustomError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errs.NewError(notFoundCode)
	case errors.Is(err, store.ErrNotAdmin):
		return errs.NewError(errs.ErrNotAdmin)
	case errors.Is(err, store.ErrNotGroup):
		return errs.NewError(errs.ErrConversationTypeInvalid)
	default:
		return errs.NewError(errs.ErrStoreFailure)
	}
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, errs.NewError(errs.ErrInvalidParams)
	}
	return v, nil
}

func (s *Service) handleRegisterUser(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[UserIDPayload](payload)
	if err != nil {
		return err
	}
	if err := requireActor(c, p.UserID); err != nil {
		return err
	}

	if err := s.joinUserRooms(ctx, c); err != nil {
		return storeError(err, errs.ErrConversationNotFound)
	}

	s.presence.MarkOnline(c.userID)
	s.broadcastPresence()

	return nil
}

func (s *Service) handleUserOnline(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[UserIDPayload](payload)
	if err != nil {
		return err
	}
	if err := requireActor(c, p.UserID); err != nil {
		return err
	}

	s.presence.MarkOnline(p.UserID)
	s.broadcastPresence()

	return nil
}

func (s *Service) handleGetOnlineUsers(ctx context.Context, c *Client, payload json.RawMessage) error {
	s.broadcastPresence()
	return nil
}

// handleJoinRoom honors the join without a membership check against the
// store. Any authenticated connection may join any room id it is told; see
// the trust-boundary note in DESIGN.md.
func (s *Service) handleJoinRoom(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[RoomPayload](payload)
	if err != nil {
		return err
	}
	if p.RoomID == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	s.hub.Join(p.RoomID, c)
	return nil
}

func (s *Service) handleLeaveRoom(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[RoomPayload](payload)
	if err != nil {
		return err
	}
	if p.RoomID == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	s.hub.Leave(p.RoomID, c)
	return nil
}

// handleCreateGroup joins the creator to the fresh room and announces the
// group to its online members.
func (s *Service) handleCreateGroup(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[CreateGroupPayload](payload)
	if err != nil {
		return err
	}

	s.hub.Join(p.RoomID, c)

	conv, err := s.conversations.ConversationByID(ctx, p.RoomID)
	if err != nil {
		return storeError(err, errs.ErrConversationNotFound)
	}

	for _, memberID := range p.MemberIDs {
		if memberID != c.userID && s.presence.IsOnline(memberID) {
			s.hub.EmitToUser(memberID, EventNewGroupCreated, conv)
		}
	}

	return nil
}

// handleCreatePrivate announces a fresh private conversation to the
// counterpart when they are online.
func (s *Service) handleCreatePrivate(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[CreatePrivatePayload](payload)
	if err != nil {
		return err
	}

	conv, err := s.conversations.ConversationByID(ctx, p.RoomID)
	if err != nil {
		return storeError(err, errs.ErrConversationNotFound)
	}

	if s.presence.IsOnline(p.UserID) {
		s.hub.EmitToUser(p.UserID, EventNewPrivateCreated, conv)
	}

	return nil
}

func validateContent(content, fileURL string) error {
	if content == "" && fileURL == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if len(content) > MaxContentBytes {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}
	return nil
}

// handleSendPrivate persists a private message and emits it to both the
// sender's and the recipient's private channels, then pushes fresh unread
// counts to the recipient.
func (s *Service) handleSendPrivate(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[SendPrivatePayload](payload)
	if err != nil {
		return err
	}
	if err := requireActor(c, p.SenderID); err != nil {
		return err
	}
	if p.RecipientID == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if err := validateContent(p.Content, p.FileURL); err != nil {
		return err
	}

	msg, err := s.messages.Create(ctx, store.Message{
		SenderID:     p.SenderID,
		RecipientID:  p.RecipientID,
		Content:      p.Content,
		FileURL:      p.FileURL,
		FileType:     p.FileType,
		OriginalName: p.OriginalName,
		Status:       store.StatusSent,
	})
	if err != nil {
		return storeError(err, errs.ErrMessageNotFound)
	}

	s.hub.EmitToUser(p.RecipientID, EventNewPrivateMessage, msg)
	s.hub.EmitToUser(p.SenderID, EventNewPrivateMessage, msg)

	s.pushUnread(ctx, p.RecipientID)

	return nil
}

// handleSendGroup persists a group message, emits it to the room, and pushes
// fresh unread counts to every member except the sender.
func (s *Service) handleSendGroup(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[SendGroupPayload](payload)
	if err != nil {
		return err
	}
	if err := requireActor(c, p.SenderID); err != nil {
		return err
	}
	if p.RoomID == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if err := validateContent(p.Content, p.FileURL); err != nil {
		return err
	}

	msg, err := s.messages.Create(ctx, store.Message{
		SenderID:     p.SenderID,
		RoomID:       p.RoomID,
		Content:      p.Content,
		FileURL:      p.FileURL,
		FileType:     p.FileType,
		OriginalName: p.OriginalName,
		Status:       store.StatusSent,
	})
	if err != nil {
		return storeError(err, errs.ErrMessageNotFound)
	}

	s.hub.EmitToRoom(p.RoomID, EventNewGroupMessage, msg)

	conv, err := s.conversations.ConversationByID(ctx, p.RoomID)
	if err != nil {
		return storeError(err, errs.ErrConversationNotFound)
	}
	for _, memberID := range conv.Members {
		if memberID != p.SenderID {
			s.pushUnread(ctx, memberID)
		}
	}

	return nil
}

func (s *Service) handleTyping(ctx context.Context, c *Client, payload json.RawMessage) error {
	return s.relayTyping(c, payload, EventTyping)
}

func (s *Service) handleStopTyping(ctx context.Context, c *Client, payload json.RawMessage) error {
	return s.relayTyping(c, payload, EventStopTyping)
}

// relayTyping forwards a typing indicator to everyone in the room but the typist.
func (s *Service) relayTyping(c *Client, payload json.RawMessage, event string) error {
	p, err := decode[TypingPayload](payload)
	if err != nil {
		return err
	}
	if p.RoomID == "" {
		return nil
	}

	s.hub.EmitToRoomExcept(p.RoomID, c, event, TypingPayload{UserID: p.UserID})
	return nil
}

// handleDelivered advances sent -> delivered. The transition is monotonic:
// a message already delivered or read is left untouched and nothing is
// re-broadcast.
func (s *Service) handleDelivered(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[StatusPayload](payload)
	if err != nil {
		return err
	}

	msg, err := s.messages.ByID(ctx, p.MessageID)
	if err != nil {
		return storeError(err, errs.ErrMessageNotFound)
	}

	if msg.Status != store.StatusSent {
		return nil
	}

	msg.Status = store.StatusDelivered
	if _, err := s.messages.Update(ctx, msg); err != nil {
		return storeError(err, errs.ErrMessageNotFound)
	}

	update := StatusUpdate{MessageID: msg.ID, Status: store.StatusDelivered}
	if p.RoomID != "" {
		s.hub.EmitToRoom(p.RoomID, EventMessageStatus, update)
	} else {
		s.hub.EmitToUser(msg.SenderID, EventMessageStatus, update)
	}

	return nil
}

// handleRead advances to read from sent or delivered, then refreshes unread
// counts for the affected recipients. Re-reading an already-read message is a
// silent no-op.
func (s *Service) handleRead(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[StatusPayload](payload)
	if err != nil {
		return err
	}

	msg, err := s.messages.ByID(ctx, p.MessageID)
	if err != nil {
		return storeError(err, errs.ErrMessageNotFound)
	}

	if msg.Status == store.StatusRead {
		return nil
	}

	msg.Status = store.StatusRead
	if _, err := s.messages.Update(ctx, msg); err != nil {
		return storeError(err, errs.ErrMessageNotFound)
	}

	update := StatusUpdate{MessageID: msg.ID, Status: store.StatusRead}

	if p.RoomID != "" {
		s.hub.EmitToRoom(p.RoomID, EventMessageStatus, update)

		conv, err := s.conversations.ConversationByID(ctx, p.RoomID)
		if err != nil {
			return storeError(err, errs.ErrConversationNotFound)
		}
		for _, memberID := range conv.Members {
			if memberID != msg.SenderID && s.presence.IsOnline(memberID) {
				s.pushUnread(ctx, memberID)
			}
		}
		return nil
	}

	c.Emit(EventMessageStatus, update)
	s.hub.EmitToUser(msg.SenderID, EventMessageStatus, update)
	s.pushUnread(ctx, msg.RecipientID)

	return nil
}

// handleAddReaction replaces any prior reaction by the user on the message
// (remove-then-append, last emoji wins) and emits the full updated list.
func (s *Service) handleAddReaction(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[ReactionPayload](payload)
	if err != nil {
		return err
	}
	if err := requireActor(c, p.UserID); err != nil {
		return err
	}

	return s.mutateReactions(ctx, p.MessageID, p.UserID, &p.Emoji)
}

// handleRemoveReaction removes the user's reaction entry if present,
// preserving everyone else's.
func (s *Service) handleRemoveReaction(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[ReactionPayload](payload)
	if err != nil {
		return err
	}
	if err := requireActor(c, p.UserID); err != nil {
		return err
	}

	return s.mutateReactions(ctx, p.MessageID, p.UserID, nil)
}

// mutateReactions applies an add (emoji != nil) or a removal and fans out the
// updated list. For group messages the whole room is the target; for private
// messages the acting user's own channel is, matching the behavior clients
// were written against.
func (s *Service) mutateReactions(ctx context.Context, messageID, userID string, emoji *string) error {
	msg, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		return storeError(err, errs.ErrMessageNotFound)
	}

	reactions := make([]store.Reaction, 0, len(msg.Reactions)+1)
	for _, r := range msg.Reactions {
		if r.UserID != userID {
			reactions = append(reactions, r)
		}
	}
	if emoji != nil {
		reactions = append(reactions, store.Reaction{UserID: userID, Emoji: *emoji})
	}
	msg.Reactions = reactions

	if _, err := s.messages.Update(ctx, msg); err != nil {
		return storeError(err, errs.ErrMessageNotFound)
	}

	update := ReactionsUpdate{MessageID: msg.ID, Reactions: msg.Reactions}
	if msg.RoomID != "" {
		s.hub.EmitToRoom(msg.RoomID, EventReactionsUpdate, update)
	} else {
		s.hub.EmitToUser(userID, EventReactionsUpdate, update)
	}

	return nil
}

// applyEdit updates content and attachment fields in place. Only the original
// sender may edit, and editing does not reset delivery status.
func (s *Service) applyEdit(ctx context.Context, actorID string, p EditPayload) (store.Message, error) {
	msg, err := s.messages.ByID(ctx, p.MessageID)
	if err != nil {
		return store.Message{}, storeError(err, errs.ErrMessageNotFound)
	}

	if msg.SenderID != actorID {
		return store.Message{}, errs.NewError(errs.ErrNotMessageSender)
	}

	if len(p.Content) > MaxContentBytes {
		return store.Message{}, errs.NewError(errs.ErrMessageContentTooLong)
	}

	msg.Content = p.Content
	if p.FileURL != "" {
		msg.FileURL = p.FileURL
	}
	if p.FileType != "" {
		msg.FileType = p.FileType
	}
	if p.OriginalName != "" {
		msg.OriginalName = p.OriginalName
	}

	msg, err = s.messages.Update(ctx, msg)
	if err != nil {
		return store.Message{}, storeError(err, errs.ErrMessageNotFound)
	}

	return msg, nil
}

func (s *Service) handleEditMessage(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[EditPayload](payload)
	if err != nil {
		return err
	}

	msg, err := s.applyEdit(ctx, c.userID, p)
	if err != nil {
		return err
	}

	if p.RoomID != "" {
		s.hub.EmitToRoom(p.RoomID, EventMessageEdited, msg)
	} else if msg.RecipientID != "" {
		s.hub.EmitToUser(msg.RecipientID, EventMessageEdited, msg)
		c.Emit(EventMessageEdited, msg)
	}

	return nil
}

// handleReplyMessage creates a new message linked to an existing one. The
// referenced original must exist.
func (s *Service) handleReplyMessage(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[ReplyPayload](payload)
	if err != nil {
		return err
	}
	if err := requireActor(c, p.CurrentUserID); err != nil {
		return err
	}
	if err := validateContent(p.Content, p.FileURL); err != nil {
		return err
	}

	if _, err := s.messages.ByID(ctx, p.MessageID); err != nil {
		return storeError(err, errs.ErrMessageNotFound)
	}

	reply, err := s.messages.Create(ctx, store.Message{
		SenderID:     p.CurrentUserID,
		RecipientID:  p.RecipientID,
		RoomID:       p.RoomID,
		Content:      p.Content,
		ReplyTo:      p.MessageID,
		FileURL:      p.FileURL,
		FileType:     p.FileType,
		OriginalName: p.OriginalName,
		Status:       store.StatusSent,
	})
	if err != nil {
		return storeError(err, errs.ErrMessageNotFound)
	}

	if p.RoomID != "" {
		s.hub.EmitToRoom(p.RoomID, EventMessageReplied, reply)

		conv, err := s.conversations.ConversationByID(ctx, p.RoomID)
		if err != nil {
			return storeError(err, errs.ErrConversationNotFound)
		}
		for _, memberID := range conv.Members {
			if memberID != p.CurrentUserID {
				s.pushUnread(ctx, memberID)
			}
		}
	} else if p.RecipientID != "" {
		s.hub.EmitToUser(p.RecipientID, EventMessageReplied, reply)
		c.Emit(EventMessageReplied, reply)
		s.pushUnread(ctx, p.RecipientID)
	}

	return nil
}

// applyDelete removes the message permanently. Only the original sender may
// delete. The removed message is returned for fan-out target resolution.
func (s *Service) applyDelete(ctx context.Context, actorID, messageID string) (store.Message, error) {
	msg, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		return store.Message{}, storeError(err, errs.ErrMessageNotFound)
	}

	if msg.SenderID != actorID {
		return store.Message{}, errs.NewError(errs.ErrNotMessageSender)
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		return store.Message{}, storeError(err, errs.ErrMessageNotFound)
	}

	return msg, nil
}

func (s *Service) handleDeleteMessage(ctx context.Context, c *Client, payload json.RawMessage) error {
	p, err := decode[DeletePayload](payload)
	if err != nil {
		return err
	}

	msg, err := s.applyDelete(ctx, c.userID, p.MessageID)
	if err != nil {
		return err
	}

	update := DeletedUpdate{MessageID: p.MessageID}
	if p.RoomID != "" {
		s.hub.EmitToRoom(p.RoomID, EventMessageDeleted, update)
	} else if msg.RecipientID != "" {
		s.hub.EmitToUser(msg.RecipientID, EventMessageDeleted, update)
		c.Emit(EventMessageDeleted, update)
	}

	return nil
}
