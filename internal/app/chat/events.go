/*
Package chat contains the realtime messaging core: connection lifecycle,
presence registry, room fan-out, and the message delivery state machine.

This file defines the wire envelope and the inbound/outbound event surface.
Every frame on the WebSocket is an Envelope; payload shapes follow the event
name.
*/
package chat

import "encoding/json"

// Inbound event names accepted from clients.
const (
	EventRegisterUser   = "register_user"
	EventUserOnline     = "user_online"
	EventGetOnlineUsers = "get_online_users"
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventCreateGroup    = "create_group"
	EventCreatePrivate  = "create_private"
	EventSendPrivate    = "send_private_message"
	EventSendGroup      = "send_group_message"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventDelivered      = "message_delivered"
	EventRead           = "message_read"
	EventAddReaction    = "add_reaction"
	EventRemoveReaction = "remove_reaction"
	EventEditMessage    = "edit_message"
	EventReplyMessage   = "reply_to_message"
	EventDeleteMessage  = "delete_message"
)

// Outbound event names emitted to clients. EventUserOnline, EventTyping and
// EventStopTyping are reused on the outbound side.
const (
	EventNewGroupMessage   = "new_group_message"
	EventNewPrivateMessage = "new_private_message"
	EventNewGroupCreated   = "new_group_created"
	EventNewPrivateCreated = "new_private_created"
	EventMessageStatus     = "message_status"
	EventUnreadCounts      = "unread_counts"
	EventReactionsUpdate   = "reactions_update"
	EventMessageEdited     = "message_edited"
	EventMessageReplied    = "message_replied"
	EventMessageDeleted    = "message_deleted"
	EventError             = "error"
)

// Envelope is the wire frame for inbound events. The payload is decoded
// per-event by the dispatch table.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundEnvelope is the wire frame for events emitted to clients.
type OutboundEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// UserIDPayload carries a bare user id (register_user, user_online).
type UserIDPayload struct {
	UserID string `json:"userId"`
}

// RoomPayload carries a bare room id (join_room, leave_room).
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// CreateGroupPayload announces a freshly created group to its online members.
type CreateGroupPayload struct {
	RoomID    string   `json:"roomId"`
	GroupName string   `json:"groupName"`
	MemberIDs []string `json:"memberIds"`
}

// CreatePrivatePayload announces a freshly created private conversation.
type CreatePrivatePayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// SendPrivatePayload creates a private message.
type SendPrivatePayload struct {
	SenderID     string `json:"senderId"`
	RecipientID  string `json:"recipientId"`
	Content      string `json:"content"`
	FileURL      string `json:"fileUrl,omitempty"`
	FileType     string `json:"fileType,omitempty"`
	OriginalName string `json:"originalname,omitempty"`
}

// SendGroupPayload creates a group message.
type SendGroupPayload struct {
	RoomID       string `json:"roomId"`
	SenderID     string `json:"senderId"`
	Content      string `json:"content"`
	FileURL      string `json:"fileUrl,omitempty"`
	FileType     string `json:"fileType,omitempty"`
	OriginalName string `json:"originalname,omitempty"`
}

// TypingPayload carries typing indicator state for a room.
type TypingPayload struct {
	RoomID string `json:"roomId,omitempty"`
	UserID string `json:"userId"`
}

// StatusPayload advances a message's delivery status. RoomID is set for
// group messages and empty for private ones.
type StatusPayload struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId,omitempty"`
}

// StatusUpdate is the outbound message_status payload.
type StatusUpdate struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// ReactionPayload adds or removes a reaction.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji,omitempty"`
}

// ReactionsUpdate is the outbound reactions_update payload.
type ReactionsUpdate struct {
	MessageID string `json:"messageId"`
	Reactions any    `json:"reactions"`
}

// EditPayload edits a message's content and/or attachment in place.
type EditPayload struct {
	MessageID    string `json:"messageId"`
	Content      string `json:"content"`
	RoomID       string `json:"roomId,omitempty"`
	FileURL      string `json:"fileUrl,omitempty"`
	FileType     string `json:"fileType,omitempty"`
	OriginalName string `json:"originalname,omitempty"`
}

// ReplyPayload creates a message replying to an existing one.
type ReplyPayload struct {
	CurrentUserID string `json:"currentUserId"`
	MessageID     string `json:"messageId"`
	Content       string `json:"content"`
	RecipientID   string `json:"recipientId,omitempty"`
	RoomID        string `json:"roomId,omitempty"`
	FileURL       string `json:"fileUrl,omitempty"`
	FileType      string `json:"fileType,omitempty"`
	OriginalName  string `json:"originalname,omitempty"`
}

// DeletePayload deletes a message.
type DeletePayload struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId,omitempty"`
}

// DeletedUpdate is the outbound message_deleted payload.
type DeletedUpdate struct {
	MessageID string `json:"messageId"`
}

// UnreadCountsPayload maps conversation id to unread message count.
type UnreadCountsPayload struct {
	Counts map[string]int `json:"counts"`
}

// ErrorPayload names the failed operation back to the acting client. Other
// participants never see a failed mutation.
type ErrorPayload struct {
	Message string `json:"message"`
	Event   string `json:"event"`
}
