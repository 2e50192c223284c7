package memory

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func newTestStore(start time.Time) (*MemoryStore, *time.Time) {
	now := start
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	return s, &now
}

func TestMemoryStore_AppendAndHistory(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	if err := s.AppendExchange(ctx, "chat1", "hi", "hello", 10); err != nil {
		t.Fatal(err)
	}

	history, err := s.History(ctx, "chat1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != RoleUser || history[0].Content != "hi" {
		t.Errorf("first message = %+v, want user 'hi'", history[0])
	}
	if history[1].Role != RoleAssistant || history[1].Content != "hello" {
		t.Errorf("second message = %+v, want assistant 'hello'", history[1])
	}
}

func TestMemoryStore_CapKeepsMostRecentPairs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	for _, name := range []string{"A", "B", "C", "D"} {
		if err := s.AppendExchange(ctx, "chat1", name+".user", name+".assistant", 2); err != nil {
			t.Fatal(err)
		}
	}

	history, err := s.History(ctx, "chat1", 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"C.user", "C.assistant", "D.user", "D.assistant"}
	if len(history) != len(want) {
		t.Fatalf("history length = %d, want %d", len(history), len(want))
	}
	for i, content := range want {
		if history[i].Content != content {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Content, content)
		}
	}
}

func TestMemoryStore_EvenLengthAfterWrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 7; i++ {
		if err := s.AppendExchange(ctx, "chat1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), 3); err != nil {
			t.Fatal(err)
		}
		history, err := s.History(ctx, "chat1", 50)
		if err != nil {
			t.Fatal(err)
		}
		if len(history)%2 != 0 {
			t.Fatalf("history length %d is odd after write %d", len(history), i)
		}
	}
}

func TestMemoryStore_SevenDayPurge(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	if err := s.AppendExchange(ctx, "chat1", "old question", "old answer", 10); err != nil {
		t.Fatal(err)
	}

	*now = now.Add(8 * 24 * time.Hour)
	if err := s.AppendExchange(ctx, "chat1", "fresh question", "fresh answer", 10); err != nil {
		t.Fatal(err)
	}

	history, err := s.History(ctx, "chat1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 after purge", len(history))
	}
	for _, m := range history {
		if m.Content == "old question" || m.Content == "old answer" {
			t.Errorf("expired message %q survived the purge", m.Content)
		}
	}
}

func TestMemoryStore_PurgeOnReadIsPersisted(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	if err := s.AppendExchange(ctx, "chat1", "q", "a", 10); err != nil {
		t.Fatal(err)
	}

	*now = now.Add(8 * 24 * time.Hour)
	history, err := s.History(ctx, "chat1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Fatalf("history length = %d, want 0", len(history))
	}

	// The trim emptied the conversation, so the key should be gone.
	s.mu.Lock()
	_, exists := s.messages["chat1"]
	s.mu.Unlock()
	if exists {
		t.Error("emptied conversation should be removed from the store")
	}
}

func TestMemoryStore_LastWriterTrims(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	// A high-cap caller builds up history, then a low-cap write trims it.
	for i := 0; i < 5; i++ {
		if err := s.AppendExchange(ctx, "chat1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), 50); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AppendExchange(ctx, "chat1", "small q", "small a", 2); err != nil {
		t.Fatal(err)
	}

	history, err := s.History(ctx, "chat1", 50)
	if err != nil {
		t.Fatal(err)
	}
	// The low-cap write persisted only its own 2 pairs; the high-cap read
	// cannot recover what it discarded.
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4 after low-cap write", len(history))
	}
	if history[3].Content != "small a" {
		t.Errorf("freshest message = %q, want %q", history[3].Content, "small a")
	}
}

func TestMemoryStore_ReadDoesNotTrimPersistedHistory(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 5; i++ {
		if err := s.AppendExchange(ctx, "chat1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), 50); err != nil {
			t.Fatal(err)
		}
	}

	// A low-cap read returns a window but must not shrink what is stored.
	short, err := s.History(ctx, "chat1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(short) != 2 {
		t.Fatalf("low-cap read length = %d, want 2", len(short))
	}

	full, err := s.History(ctx, "chat1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 10 {
		t.Fatalf("full read length = %d, want 10", len(full))
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	if err := s.AppendExchange(ctx, "chat1", "q", "a", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx, "chat1"); err != nil {
		t.Fatal(err)
	}

	history, err := s.History(ctx, "chat1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Errorf("history length = %d after clear, want 0", len(history))
	}
}

func TestMemoryStore_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	if err := s.AppendExchange(ctx, "chat1", "q", "a", 10); err != nil {
		t.Fatal(err)
	}

	history, _ := s.History(ctx, "chat1", 10)
	history[0].Content = "mutated"

	again, _ := s.History(ctx, "chat1", 10)
	if again[0].Content != "q" {
		t.Error("mutating a returned history must not affect stored messages")
	}
}
