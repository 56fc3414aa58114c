/*
Package chat contains the realtime messaging core.

This file implements the unread aggregator: per-conversation counts of
messages the user has not read, pushed to the user's private channel after
state-changing events.
*/
package chat

import (
	"context"

	"wirechat/internal/app/store"
)

// UnreadCounts computes, for every conversation the user belongs to, the
// count of messages authored by someone else whose status is not read.
func (s *Service) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	counts := make(map[string]int)

	conversations, err := s.conversations.ByMember(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, conv := range conversations {
		var count int

		if conv.Type == store.ConversationGroup {
			count, err = s.messages.CountGroupUnread(ctx, conv.ID, userID)
		} else {
			count, err = s.messages.CountPrivateUnread(ctx, conv.OtherMember(userID), userID)
		}
		if err != nil {
			return nil, err
		}

		counts[conv.ID] = count
	}

	return counts, nil
}

// pushUnread computes and emits the unread mapping to the user's private
// channel. A blank user id is skipped.
func (s *Service) pushUnread(ctx context.Context, userID string) {
	if userID == "" {
		return
	}

	counts, err := s.UnreadCounts(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to compute unread counts.")
		return
	}

	s.hub.EmitToUser(userID, EventUnreadCounts, UnreadCountsPayload{Counts: counts})
}
