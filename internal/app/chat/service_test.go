package chat

import (
	"context"
	"encoding/json"
	"testing"

	"wirechat/internal/app/store"
)

// frame is an outbound envelope as read back from a client's send queue.
type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewService(NewHub(), NewPresence(), st, st), st
}

// connect builds a client without a real WebSocket connection and registers
// it. The pumps are never started; emitted frames accumulate in the client's
// send queue where tests can read them.
func connect(t *testing.T, s *Service, userID string) *Client {
	t.Helper()
	c := NewClient(s, nil, userID)
	s.Register(context.Background(), c)
	return c
}

func dispatch(t *testing.T, s *Service, c *Client, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload for %s: %v", event, err)
	}
	s.Dispatch(context.Background(), c, Envelope{Event: event, Payload: raw})
}

// drain reads every queued frame off the client without blocking.
func drain(t *testing.T, c *Client) []frame {
	t.Helper()
	var frames []frame
	for {
		select {
		case data := <-c.send:
			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				t.Fatalf("unmarshal queued frame: %v", err)
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func framesByEvent(frames []frame, event string) []frame {
	var matched []frame
	for _, f := range frames {
		if f.Event == event {
			matched = append(matched, f)
		}
	}
	return matched
}

func decodeFrame[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(f.Payload, &v); err != nil {
		t.Fatalf("decode %s payload: %v", f.Event, err)
	}
	return v
}

func TestRegisterAnnouncesPresenceAndUnread(t *testing.T) {
	s, _ := newTestService(t)

	alice := connect(t, s, "alice")

	frames := drain(t, alice)
	if len(framesByEvent(frames, EventUserOnline)) == 0 {
		t.Fatal("expected a user_online frame after registration")
	}
	if len(framesByEvent(frames, EventUnreadCounts)) != 1 {
		t.Fatal("expected exactly one unread_counts frame after registration")
	}
	if !s.Presence().IsOnline("alice") {
		t.Error("alice should be marked online after registration")
	}
}

func TestDisconnectClearsPresence(t *testing.T) {
	s, _ := newTestService(t)

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	s.Disconnect(context.Background(), alice)

	if s.Presence().IsOnline("alice") {
		t.Fatal("alice should be offline after disconnect")
	}

	frames := framesByEvent(drain(t, bob), EventUserOnline)
	if len(frames) == 0 {
		t.Fatal("bob should receive a presence broadcast after alice disconnects")
	}
	online := decodeFrame[[]string](t, frames[len(frames)-1])
	for _, id := range online {
		if id == "alice" {
			t.Errorf("presence snapshot still lists alice: %v", online)
		}
	}
}

func TestPrivateSendDeliversToBothChannels(t *testing.T) {
	s, st := newTestService(t)

	if _, err := st.GetOrCreatePrivate(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("create private conversation: %v", err)
	}

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	dispatch(t, s, alice, EventSendPrivate, SendPrivatePayload{
		SenderID:    "alice",
		RecipientID: "bob",
		Content:     "hello",
	})

	aliceFrames := drain(t, alice)
	bobFrames := drain(t, bob)

	if n := len(framesByEvent(aliceFrames, EventNewPrivateMessage)); n != 1 {
		t.Errorf("sender received %d new_private_message frames, want 1", n)
	}
	if n := len(framesByEvent(bobFrames, EventNewPrivateMessage)); n != 1 {
		t.Fatalf("recipient received %d new_private_message frames, want 1", n)
	}

	msg := decodeFrame[store.Message](t, framesByEvent(bobFrames, EventNewPrivateMessage)[0])
	if msg.Content != "hello" || msg.SenderID != "alice" || msg.Status != store.StatusSent {
		t.Errorf("unexpected delivered message: %+v", msg)
	}

	unread := framesByEvent(bobFrames, EventUnreadCounts)
	if len(unread) != 1 {
		t.Fatalf("recipient received %d unread_counts frames, want 1", len(unread))
	}
	counts := decodeFrame[UnreadCountsPayload](t, unread[0])
	total := 0
	for _, n := range counts.Counts {
		total += n
	}
	if total != 1 {
		t.Errorf("recipient unread total = %d, want 1", total)
	}

	if len(framesByEvent(aliceFrames, EventUnreadCounts)) != 0 {
		t.Error("sender should not receive an unread push for their own send")
	}
}

func TestSendRejectsMismatchedSender(t *testing.T) {
	s, st := newTestService(t)

	alice := connect(t, s, "alice")
	drain(t, alice)

	dispatch(t, s, alice, EventSendPrivate, SendPrivatePayload{
		SenderID:    "bob",
		RecipientID: "alice",
		Content:     "spoofed",
	})

	frames := framesByEvent(drain(t, alice), EventError)
	if len(frames) != 1 {
		t.Fatalf("got %d error frames, want 1", len(frames))
	}
	errPayload := decodeFrame[ErrorPayload](t, frames[0])
	if errPayload.Event != EventSendPrivate {
		t.Errorf("error names event %q, want %q", errPayload.Event, EventSendPrivate)
	}

	if _, total, _ := st.List(context.Background(), store.MessageQuery{UserA: "alice", UserB: "bob"}); total != 0 {
		t.Errorf("spoofed message was persisted, total = %d", total)
	}
}

func TestSendRejectsEmptyAndOversizedContent(t *testing.T) {
	s, _ := newTestService(t)

	alice := connect(t, s, "alice")
	drain(t, alice)

	big := make([]byte, MaxContentBytes+1)
	for i := range big {
		big[i] = 'a'
	}

	tests := []struct {
		name    string
		content string
	}{
		{"empty without attachment", ""},
		{"over limit", string(big)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatch(t, s, alice, EventSendPrivate, SendPrivatePayload{
				SenderID:    "alice",
				RecipientID: "bob",
				Content:     tt.content,
			})
			if n := len(framesByEvent(drain(t, alice), EventError)); n != 1 {
				t.Fatalf("got %d error frames, want 1", n)
			}
		})
	}
}

func TestGroupSendFansOutToRoom(t *testing.T) {
	s, st := newTestService(t)

	conv, err := st.CreateGroup(context.Background(), "team", "alice", []string{"bob", "carol"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	carol := connect(t, s, "carol")
	drain(t, alice)
	drain(t, bob)
	drain(t, carol)

	dispatch(t, s, alice, EventSendGroup, SendGroupPayload{
		RoomID:   conv.ID,
		SenderID: "alice",
		Content:  "standup in 5",
	})

	for name, c := range map[string]*Client{"alice": alice, "bob": bob, "carol": carol} {
		frames := framesByEvent(drain(t, c), EventNewGroupMessage)
		if len(frames) != 1 {
			t.Errorf("%s received %d new_group_message frames, want 1", name, len(frames))
		}
	}
}

func TestGroupUnreadCountsAfterReads(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	conv, err := st.CreateGroup(ctx, "team", "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	var lastID string
	for i := 0; i < 3; i++ {
		dispatch(t, s, alice, EventSendGroup, SendGroupPayload{
			RoomID:   conv.ID,
			SenderID: "alice",
			Content:  "msg",
		})
	}
	frames := framesByEvent(drain(t, bob), EventNewGroupMessage)
	if len(frames) != 3 {
		t.Fatalf("bob received %d messages, want 3", len(frames))
	}
	lastID = decodeFrame[store.Message](t, frames[2]).ID
	drain(t, alice)

	counts, err := s.UnreadCounts(ctx, "bob")
	if err != nil {
		t.Fatalf("unread counts: %v", err)
	}
	if counts[conv.ID] != 3 {
		t.Fatalf("unread before read = %d, want 3", counts[conv.ID])
	}

	dispatch(t, s, bob, EventRead, StatusPayload{MessageID: lastID, RoomID: conv.ID})

	counts, err = s.UnreadCounts(ctx, "bob")
	if err != nil {
		t.Fatalf("unread counts: %v", err)
	}
	if counts[conv.ID] != 2 {
		t.Errorf("unread after reading one = %d, want 2", counts[conv.ID])
	}
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	dispatch(t, s, alice, EventSendPrivate, SendPrivatePayload{
		SenderID:    "alice",
		RecipientID: "bob",
		Content:     "hello",
	})
	msgID := decodeFrame[store.Message](t, framesByEvent(drain(t, bob), EventNewPrivateMessage)[0]).ID
	drain(t, alice)

	dispatch(t, s, bob, EventDelivered, StatusPayload{MessageID: msgID})

	updates := framesByEvent(drain(t, alice), EventMessageStatus)
	if len(updates) != 1 {
		t.Fatalf("sender received %d message_status frames, want 1", len(updates))
	}
	if got := decodeFrame[StatusUpdate](t, updates[0]); got.Status != store.StatusDelivered {
		t.Fatalf("status = %q, want %q", got.Status, store.StatusDelivered)
	}

	dispatch(t, s, bob, EventRead, StatusPayload{MessageID: msgID})
	drain(t, alice)
	drain(t, bob)

	// Late delivered receipt after read must not downgrade and must stay silent.
	dispatch(t, s, bob, EventDelivered, StatusPayload{MessageID: msgID})

	if n := len(drain(t, alice)); n != 0 {
		t.Errorf("sender received %d frames after stale delivered receipt, want 0", n)
	}

	msg, err := st.ByID(ctx, msgID)
	if err != nil {
		t.Fatalf("load message: %v", err)
	}
	if msg.Status != store.StatusRead {
		t.Errorf("status regressed to %q after stale delivered receipt", msg.Status)
	}
}

func TestReadIsIdempotent(t *testing.T) {
	s, _ := newTestService(t)

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	dispatch(t, s, alice, EventSendPrivate, SendPrivatePayload{
		SenderID:    "alice",
		RecipientID: "bob",
		Content:     "hello",
	})
	msgID := decodeFrame[store.Message](t, framesByEvent(drain(t, bob), EventNewPrivateMessage)[0]).ID
	drain(t, alice)

	dispatch(t, s, bob, EventRead, StatusPayload{MessageID: msgID})
	if n := len(framesByEvent(drain(t, alice), EventMessageStatus)); n != 1 {
		t.Fatalf("first read produced %d status frames for sender, want 1", n)
	}
	drain(t, bob)

	dispatch(t, s, bob, EventRead, StatusPayload{MessageID: msgID})
	if n := len(drain(t, alice)); n != 0 {
		t.Errorf("second read produced %d frames for sender, want 0", n)
	}
	if n := len(drain(t, bob)); n != 0 {
		t.Errorf("second read produced %d frames for reader, want 0", n)
	}
}

func TestTypingExcludesTypist(t *testing.T) {
	s, st := newTestService(t)

	conv, err := st.CreateGroup(context.Background(), "team", "alice", []string{"bob", "carol"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	carol := connect(t, s, "carol")
	drain(t, alice)
	drain(t, bob)
	drain(t, carol)

	dispatch(t, s, alice, EventTyping, TypingPayload{RoomID: conv.ID, UserID: "alice"})

	if n := len(framesByEvent(drain(t, alice), EventTyping)); n != 0 {
		t.Errorf("typist received %d typing frames, want 0", n)
	}
	for name, c := range map[string]*Client{"bob": bob, "carol": carol} {
		frames := framesByEvent(drain(t, c), EventTyping)
		if len(frames) != 1 {
			t.Fatalf("%s received %d typing frames, want 1", name, len(frames))
		}
		if p := decodeFrame[TypingPayload](t, frames[0]); p.UserID != "alice" {
			t.Errorf("%s saw typist %q, want alice", name, p.UserID)
		}
	}
}

func TestReactionLastEmojiWins(t *testing.T) {
	s, st := newTestService(t)

	conv, err := st.CreateGroup(context.Background(), "team", "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	dispatch(t, s, alice, EventSendGroup, SendGroupPayload{RoomID: conv.ID, SenderID: "alice", Content: "vote"})
	msgID := decodeFrame[store.Message](t, framesByEvent(drain(t, bob), EventNewGroupMessage)[0]).ID
	drain(t, alice)

	dispatch(t, s, bob, EventAddReaction, ReactionPayload{MessageID: msgID, UserID: "bob", Emoji: "👍"})
	dispatch(t, s, bob, EventAddReaction, ReactionPayload{MessageID: msgID, UserID: "bob", Emoji: "❤️"})
	dispatch(t, s, alice, EventAddReaction, ReactionPayload{MessageID: msgID, UserID: "alice", Emoji: "🎉"})

	msg, err := st.ByID(context.Background(), msgID)
	if err != nil {
		t.Fatalf("load message: %v", err)
	}
	if len(msg.Reactions) != 2 {
		t.Fatalf("reactions = %+v, want one per user", msg.Reactions)
	}
	byUser := make(map[string]string)
	for _, r := range msg.Reactions {
		byUser[r.UserID] = r.Emoji
	}
	if byUser["bob"] != "❤️" {
		t.Errorf("bob's reaction = %q, want the later emoji", byUser["bob"])
	}

	// Removal preserves everyone else's entries.
	dispatch(t, s, bob, EventRemoveReaction, ReactionPayload{MessageID: msgID, UserID: "bob"})

	msg, _ = st.ByID(context.Background(), msgID)
	if len(msg.Reactions) != 1 || msg.Reactions[0].UserID != "alice" {
		t.Errorf("reactions after removal = %+v, want only alice's", msg.Reactions)
	}
}

func TestPrivateReactionGoesToActorChannel(t *testing.T) {
	s, _ := newTestService(t)

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	dispatch(t, s, alice, EventSendPrivate, SendPrivatePayload{
		SenderID:    "alice",
		RecipientID: "bob",
		Content:     "hello",
	})
	msgID := decodeFrame[store.Message](t, framesByEvent(drain(t, bob), EventNewPrivateMessage)[0]).ID
	drain(t, alice)

	dispatch(t, s, bob, EventAddReaction, ReactionPayload{MessageID: msgID, UserID: "bob", Emoji: "👍"})

	if n := len(framesByEvent(drain(t, bob), EventReactionsUpdate)); n != 1 {
		t.Errorf("actor received %d reactions_update frames, want 1", n)
	}
	if n := len(framesByEvent(drain(t, alice), EventReactionsUpdate)); n != 0 {
		t.Errorf("counterpart received %d reactions_update frames, want 0", n)
	}
}

func TestEditRejectsNonSender(t *testing.T) {
	s, st := newTestService(t)

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	dispatch(t, s, alice, EventSendPrivate, SendPrivatePayload{
		SenderID:    "alice",
		RecipientID: "bob",
		Content:     "original",
	})
	msgID := decodeFrame[store.Message](t, framesByEvent(drain(t, bob), EventNewPrivateMessage)[0]).ID
	drain(t, alice)

	dispatch(t, s, bob, EventEditMessage, EditPayload{MessageID: msgID, Content: "tampered"})

	if n := len(framesByEvent(drain(t, bob), EventError)); n != 1 {
		t.Fatalf("non-sender edit produced %d error frames, want 1", n)
	}
	msg, _ := st.ByID(context.Background(), msgID)
	if msg.Content != "original" {
		t.Errorf("content = %q after rejected edit, want original", msg.Content)
	}
}

func TestEditBySenderFansOut(t *testing.T) {
	s, st := newTestService(t)

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	dispatch(t, s, alice, EventSendPrivate, SendPrivatePayload{
		SenderID:    "alice",
		RecipientID: "bob",
		Content:     "original",
	})
	msgID := decodeFrame[store.Message](t, framesByEvent(drain(t, bob), EventNewPrivateMessage)[0]).ID
	drain(t, alice)

	dispatch(t, s, alice, EventEditMessage, EditPayload{MessageID: msgID, Content: "fixed"})

	for name, c := range map[string]*Client{"alice": alice, "bob": bob} {
		frames := framesByEvent(drain(t, c), EventMessageEdited)
		if len(frames) != 1 {
			t.Fatalf("%s received %d message_edited frames, want 1", name, len(frames))
		}
		if got := decodeFrame[store.Message](t, frames[0]); got.Content != "fixed" {
			t.Errorf("%s saw content %q, want fixed", name, got.Content)
		}
	}

	msg, _ := st.ByID(context.Background(), msgID)
	if msg.Status != store.StatusSent {
		t.Errorf("edit changed delivery status to %q", msg.Status)
	}
}

func TestDeleteEmitsSingleDeletedPerMember(t *testing.T) {
	s, st := newTestService(t)

	conv, err := st.CreateGroup(context.Background(), "team", "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	dispatch(t, s, alice, EventSendGroup, SendGroupPayload{RoomID: conv.ID, SenderID: "alice", Content: "oops"})
	msgID := decodeFrame[store.Message](t, framesByEvent(drain(t, bob), EventNewGroupMessage)[0]).ID
	drain(t, alice)

	dispatch(t, s, bob, EventDeleteMessage, DeletePayload{MessageID: msgID, RoomID: conv.ID})
	if n := len(framesByEvent(drain(t, bob), EventError)); n != 1 {
		t.Fatalf("non-sender delete produced %d error frames, want 1", n)
	}
	drain(t, alice)

	dispatch(t, s, alice, EventDeleteMessage, DeletePayload{MessageID: msgID, RoomID: conv.ID})

	for name, c := range map[string]*Client{"alice": alice, "bob": bob} {
		frames := framesByEvent(drain(t, c), EventMessageDeleted)
		if len(frames) != 1 {
			t.Errorf("%s received %d message_deleted frames, want 1", name, len(frames))
		}
	}

	if _, err := st.ByID(context.Background(), msgID); err == nil {
		t.Error("message still present after delete")
	}
}

func TestReplyRequiresExistingOriginal(t *testing.T) {
	s, _ := newTestService(t)

	alice := connect(t, s, "alice")
	drain(t, alice)

	dispatch(t, s, alice, EventReplyMessage, ReplyPayload{
		CurrentUserID: "alice",
		MessageID:     "missing",
		RecipientID:   "bob",
		Content:       "re",
	})

	if n := len(framesByEvent(drain(t, alice), EventError)); n != 1 {
		t.Fatalf("reply to missing message produced %d error frames, want 1", n)
	}
}

func TestReplyLinksAndDelivers(t *testing.T) {
	s, _ := newTestService(t)

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	dispatch(t, s, alice, EventSendPrivate, SendPrivatePayload{
		SenderID:    "alice",
		RecipientID: "bob",
		Content:     "question",
	})
	msgID := decodeFrame[store.Message](t, framesByEvent(drain(t, bob), EventNewPrivateMessage)[0]).ID
	drain(t, alice)

	dispatch(t, s, bob, EventReplyMessage, ReplyPayload{
		CurrentUserID: "bob",
		MessageID:     msgID,
		RecipientID:   "alice",
		Content:       "answer",
	})

	aliceReplies := framesByEvent(drain(t, alice), EventMessageReplied)
	if len(aliceReplies) != 1 {
		t.Fatalf("recipient received %d message_replied frames, want 1", len(aliceReplies))
	}
	reply := decodeFrame[store.Message](t, aliceReplies[0])
	if reply.ReplyTo != msgID {
		t.Errorf("reply links to %q, want %q", reply.ReplyTo, msgID)
	}
	if n := len(framesByEvent(drain(t, bob), EventMessageReplied)); n != 1 {
		t.Errorf("replier received %d message_replied frames, want 1", n)
	}
}

func TestUnknownEventReportsErrorToActorOnly(t *testing.T) {
	s, _ := newTestService(t)

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	s.Dispatch(context.Background(), alice, Envelope{Event: "teleport"})

	frames := framesByEvent(drain(t, alice), EventError)
	if len(frames) != 1 {
		t.Fatalf("got %d error frames, want 1", len(frames))
	}
	if p := decodeFrame[ErrorPayload](t, frames[0]); p.Event != "teleport" {
		t.Errorf("error names event %q, want teleport", p.Event)
	}
	if n := len(drain(t, bob)); n != 0 {
		t.Errorf("bystander received %d frames from a failed dispatch, want 0", n)
	}
}

func TestJoinAndLeaveRoomScopeFanout(t *testing.T) {
	s, _ := newTestService(t)

	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	drain(t, alice)
	drain(t, bob)

	dispatch(t, s, alice, EventJoinRoom, RoomPayload{RoomID: "lobby"})
	dispatch(t, s, bob, EventJoinRoom, RoomPayload{RoomID: "lobby"})

	s.hub.EmitToRoom("lobby", EventNewGroupMessage, nil)
	if n := len(framesByEvent(drain(t, bob), EventNewGroupMessage)); n != 1 {
		t.Fatalf("joined client received %d room frames, want 1", n)
	}
	drain(t, alice)

	dispatch(t, s, bob, EventLeaveRoom, RoomPayload{RoomID: "lobby"})
	s.hub.EmitToRoom("lobby", EventNewGroupMessage, nil)

	if n := len(framesByEvent(drain(t, bob), EventNewGroupMessage)); n != 0 {
		t.Errorf("departed client received %d room frames, want 0", n)
	}
}
