package knowledge

import (
	"context"
	"testing"
)

func TestChatHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	msgs := []ChatMessage{
		{RepoName: "demo", SessionID: "s1", MessageID: "m1", Role: "user", Content: "where is auth?"},
		{RepoName: "demo", SessionID: "s1", MessageID: "m2", Role: "assistant", Content: "internal/auth", Metadata: map[string]interface{}{"model": "gemini"}},
		{RepoName: "demo", SessionID: "s2", MessageID: "m3", Role: "user", Content: "add charts"},
		{RepoName: "other", SessionID: "s9", MessageID: "m4", Role: "user", Content: "hi"},
	}
	for _, m := range msgs {
		if err := s.StoreChatMessage(ctx, m); err != nil {
			t.Fatalf("StoreChatMessage(%s): %v", m.MessageID, err)
		}
	}

	all, err := s.GetChatHistory(ctx, "demo", "")
	if err != nil {
		t.Fatalf("GetChatHistory failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	if all[0].MessageID != "m1" || all[2].MessageID != "m3" {
		t.Errorf("unexpected order: %s, %s", all[0].MessageID, all[2].MessageID)
	}
	if all[1].Metadata["model"] != "gemini" {
		t.Errorf("metadata = %v", all[1].Metadata)
	}
	if all[0].Metadata == nil {
		t.Error("expected empty metadata map, got nil")
	}

	s1, err := s.GetChatHistory(ctx, "demo", "s1")
	if err != nil || len(s1) != 2 {
		t.Errorf("session s1 = %d messages, %v", len(s1), err)
	}

	sessions, err := s.ListChatSessions(ctx, "demo")
	if err != nil {
		t.Fatalf("ListChatSessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0].SessionID != "s2" || sessions[1].MessageCount != 2 {
		t.Errorf("unexpected sessions %+v", sessions)
	}
	if everything, _ := s.ListChatSessions(ctx, ""); len(everything) != 3 {
		t.Errorf("expected 3 sessions overall, got %d", len(everything))
	}

	n, err := s.ClearChatHistory(ctx, "demo", "s1")
	if err != nil || n != 2 {
		t.Errorf("ClearChatHistory(s1) = %d, %v", n, err)
	}
	n, err = s.ClearChatHistory(ctx, "demo", "")
	if err != nil || n != 1 {
		t.Errorf("ClearChatHistory(all) = %d, %v", n, err)
	}
	if rest, _ := s.GetChatHistory(ctx, "other", ""); len(rest) != 1 {
		t.Errorf("other repository history should survive, got %d", len(rest))
	}
}
