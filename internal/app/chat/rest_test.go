package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"wirechat/internal/app/store"
	"wirechat/internal/pkg/errs"
)

func mustCode(t *testing.T, err error, wantCode int) {
	t.Helper()
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		t.Fatalf("error %v is not a CustomError", err)
	}
	if customErr.Code != wantCode {
		t.Fatalf("error code = %d, want %d", customErr.Code, wantCode)
	}
}

func TestGetOrCreatePrivateConversationIsUnique(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	first, err := s.GetOrCreatePrivateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}

	// Same pair in either order resolves to the same conversation.
	second, err := s.GetOrCreatePrivateConversation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("pair resolved to two conversations: %s and %s", first.ID, second.ID)
	}

	_, err = s.GetOrCreatePrivateConversation(ctx, "alice", "alice")
	mustCode(t, err, errs.ErrInvalidParams)
}

func TestInviteToGroupRequiresAdmin(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	conv, err := s.CreateGroupConversation(ctx, "alice", "team", []string{"bob"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	_, err = s.InviteToGroup(ctx, conv.ID, "bob", "carol")
	mustCode(t, err, errs.ErrNotAdmin)

	updated, err := s.InviteToGroup(ctx, conv.ID, "alice", "carol")
	if err != nil {
		t.Fatalf("admin invite: %v", err)
	}
	if !updated.IsMember("carol") {
		t.Error("carol not a member after admin invite")
	}

	_, err = s.InviteToGroup(ctx, "missing", "alice", "carol")
	mustCode(t, err, errs.ErrConversationNotFound)
}

func TestHistoryPagination(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	conv, err := st.CreateGroup(ctx, "team", "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		if _, err := st.Create(ctx, store.Message{
			SenderID:  "alice",
			RoomID:    conv.ID,
			Content:   string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
	}

	page1, total, err := s.History(ctx, "bob", conv.ID, 1, 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(page1) != 2 {
		t.Fatalf("page 1 length = %d, want 2", len(page1))
	}
	// Page 1 holds the newest messages, oldest first within the page.
	if page1[0].Content != "d" || page1[1].Content != "e" {
		t.Errorf("page 1 = [%s %s], want [d e]", page1[0].Content, page1[1].Content)
	}

	page3, _, err := s.History(ctx, "bob", conv.ID, 3, 2)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(page3) != 1 || page3[0].Content != "a" {
		t.Errorf("page 3 = %+v, want the single oldest message", page3)
	}
}

func TestHistoryPrivateThread(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	seed := []store.Message{
		{SenderID: "alice", RecipientID: "bob", Content: "1", Timestamp: base},
		{SenderID: "bob", RecipientID: "alice", Content: "2", Timestamp: base.Add(time.Minute)},
		{SenderID: "alice", RecipientID: "carol", Content: "other thread", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, m := range seed {
		if _, err := st.Create(ctx, m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	messages, total, err := s.History(ctx, "alice", "bob", 1, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 2 || len(messages) != 2 {
		t.Fatalf("got %d/%d messages, want both directions of the pair only", len(messages), total)
	}
	if messages[0].Content != "1" || messages[1].Content != "2" {
		t.Errorf("thread order = [%s %s], want oldest first", messages[0].Content, messages[1].Content)
	}
}

func TestForwardStampsOrigin(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	original, err := st.Create(ctx, store.Message{
		SenderID:    "alice",
		RecipientID: "bob",
		Content:     "look at this",
		FileURL:     "https://files.example/cat.png",
		FileType:    "image/png",
		Status:      store.StatusRead,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	forwarded, err := s.Forward(ctx, "bob", original.ID, "carol", "")
	if err != nil {
		t.Fatalf("forward: %v", err)
	}

	if forwarded.ForwardedFrom == nil {
		t.Fatal("forwarded message carries no origin")
	}
	if forwarded.ForwardedFrom.MessageID != original.ID || forwarded.ForwardedFrom.UserID != "alice" {
		t.Errorf("origin = %+v, want original message and its sender", forwarded.ForwardedFrom)
	}
	if forwarded.SenderID != "bob" || forwarded.RecipientID != "carol" {
		t.Errorf("forwarded addressing = %s -> %s", forwarded.SenderID, forwarded.RecipientID)
	}
	if forwarded.Content != original.Content || forwarded.FileURL != original.FileURL {
		t.Error("forwarded message did not copy content and attachment")
	}
	// The copy starts its own delivery lifecycle.
	if forwarded.Status != store.StatusSent {
		t.Errorf("forwarded status = %q, want %q", forwarded.Status, store.StatusSent)
	}

	_, err = s.Forward(ctx, "bob", original.ID, "", "")
	mustCode(t, err, errs.ErrInvalidParams)
}

func TestPinIsIdempotent(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	msg, err := st.Create(ctx, store.Message{SenderID: "alice", RecipientID: "bob", Content: "keep"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 2; i++ {
		pinned, err := s.Pin(ctx, msg.ID, true)
		if err != nil {
			t.Fatalf("pin attempt %d: %v", i, err)
		}
		if !pinned.Pinned {
			t.Fatalf("pin attempt %d left message unpinned", i)
		}
	}

	unpinned, err := s.Pin(ctx, msg.ID, false)
	if err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if unpinned.Pinned {
		t.Error("message still pinned after unpin")
	}
}

func TestStarIsPerUser(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	msg, err := st.Create(ctx, store.Message{SenderID: "alice", RecipientID: "bob", Content: "note"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := s.Star(ctx, "alice", msg.ID, true); err != nil {
		t.Fatalf("alice star: %v", err)
	}
	starred, err := s.Star(ctx, "bob", msg.ID, true)
	if err != nil {
		t.Fatalf("bob star: %v", err)
	}
	if len(starred.StarredBy) != 2 {
		t.Fatalf("starredBy = %v, want both users", starred.StarredBy)
	}

	after, err := s.Star(ctx, "alice", msg.ID, false)
	if err != nil {
		t.Fatalf("alice unstar: %v", err)
	}
	if len(after.StarredBy) != 1 || after.StarredBy[0] != "bob" {
		t.Errorf("starredBy = %v after alice unstars, want only bob", after.StarredBy)
	}
}

func TestRestEditAndDeleteEnforceSender(t *testing.T) {
	s, st := newTestService(t)
	ctx := context.Background()

	msg, err := st.Create(ctx, store.Message{SenderID: "alice", RecipientID: "bob", Content: "draft"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = s.Edit(ctx, "bob", msg.ID, "tampered")
	mustCode(t, err, errs.ErrNotMessageSender)

	edited, err := s.Edit(ctx, "alice", msg.ID, "final")
	if err != nil {
		t.Fatalf("sender edit: %v", err)
	}
	if edited.Content != "final" {
		t.Errorf("content = %q, want final", edited.Content)
	}

	err = s.Delete(ctx, "bob", msg.ID)
	mustCode(t, err, errs.ErrNotMessageSender)

	if err := s.Delete(ctx, "alice", msg.ID); err != nil {
		t.Fatalf("sender delete: %v", err)
	}
	err = s.Delete(ctx, "alice", msg.ID)
	mustCode(t, err, errs.ErrMessageNotFound)
}
