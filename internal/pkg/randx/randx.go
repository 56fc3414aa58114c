/*
Package randx provides identifier generation helpers for conversations and messages.
*/
package randx

import "github.com/google/uuid"

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}

// ConversationID generates a standard UUID v4 string to serve as a unique identifier for a conversation.
func ConversationID() string {
	return uuid.New().String()
}

// IsValidID reports whether the given string is a well-formed UUID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
