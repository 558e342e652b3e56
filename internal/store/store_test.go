package store

import (
	"context"
	"testing"
)

func TestMemoryStoreEnsureSessionIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.EnsureSession(ctx, "telegram:42", KindChannel)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	second, err := s.EnsureSession(ctx, "telegram:42", KindSubagent)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if second.Kind != KindChannel {
		t.Fatalf("second EnsureSession overwrote kind: got %v, want %v", second.Kind, KindChannel)
	}
	if first.CreatedAt != second.CreatedAt {
		t.Fatal("EnsureSession created a second session instead of returning the existing one")
	}
}

func TestMemoryStoreGetMissingReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("Get on missing session: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreAppendMessageCreatesSession(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.AppendMessage(ctx, "cli:local", Message{Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	sess, err := s.Get(ctx, "cli:local")
	if err != nil {
		t.Fatalf("Get after AppendMessage: %v", err)
	}
	if sess.Kind != KindChannel {
		t.Fatalf("auto-created session kind = %v, want %v", sess.Kind, KindChannel)
	}

	history, err := s.History(ctx, "cli:local", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Content != "hi" {
		t.Fatalf("history = %+v, want one message with content %q", history, "hi")
	}
}

func TestMemoryStoreHistoryRespectsLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = s.AppendMessage(ctx, "k", Message{Role: RoleUser, Content: string(rune('a' + i))})
	}

	history, err := s.History(ctx, "k", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Content != "d" || history[1].Content != "e" {
		t.Fatalf("history = %+v, want the last two appended messages", history)
	}
}

func TestMemoryStoreDeleteRemovesSessionAndHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.EnsureSession(ctx, "gone", KindChannel)
	_ = s.AppendMessage(ctx, "gone", Message{Role: RoleUser, Content: "x"})

	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "gone"); err != ErrNotFound {
		t.Fatalf("Get after Delete: err = %v, want ErrNotFound", err)
	}
	history, err := s.History(ctx, "gone", 0)
	if err != nil {
		t.Fatalf("History after Delete: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history after Delete = %+v, want empty", history)
	}
}

func TestMemoryStoreListReturnsAllSessions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.EnsureSession(ctx, "a", KindChannel)
	_, _ = s.EnsureSession(ctx, "b", KindCron)

	sessions, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}
}
