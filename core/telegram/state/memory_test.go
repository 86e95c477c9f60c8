package state

import (
	"testing"
	"time"
)

func TestSetGetClear(t *testing.T) {
	m := NewMemoryManager(0)
	key := Key{ChatID: 1, UserID: 2}

	if got := m.GetState(key); got != StateIdle {
		t.Fatalf("fresh key state = %q, want idle", got)
	}

	m.SetState(key, State("awaiting_choice"))
	if got := m.GetState(key); got != State("awaiting_choice") {
		t.Fatalf("state = %q, want awaiting_choice", got)
	}
	if !m.InProgress(key) {
		t.Fatal("InProgress = false, want true")
	}

	m.ClearState(key)
	if m.InProgress(key) {
		t.Fatal("InProgress after clear = true, want false")
	}
}

func TestSetStateIdleCloses(t *testing.T) {
	m := NewMemoryManager(0)
	key := Key{ChatID: 1, UserID: 2}

	m.SetState(key, State("awaiting_choice"))
	m.SetState(key, StateIdle)
	if m.InProgress(key) {
		t.Fatal("idle SetState should close the session")
	}
}

func TestSessionsAreKeyedPerChatAndUser(t *testing.T) {
	m := NewMemoryManager(0)

	m.SetState(Key{ChatID: 1, UserID: 2}, State("awaiting_choice"))

	sameUserOtherChat := Key{ChatID: 9, UserID: 2}
	sameChatOtherUser := Key{ChatID: 1, UserID: 9}
	if m.InProgress(sameUserOtherChat) {
		t.Fatal("session leaked across chats")
	}
	if m.InProgress(sameChatOtherUser) {
		t.Fatal("session leaked across users")
	}
}

func TestLastWriterWins(t *testing.T) {
	m := NewMemoryManager(0)
	key := Key{ChatID: 1, UserID: 2}

	m.SetState(key, State("awaiting_join_choice"))
	m.SetState(key, State("awaiting_leave_choice"))

	if got := m.GetState(key); got != State("awaiting_leave_choice") {
		t.Fatalf("state = %q, want the replacement", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewMemoryManager(10 * time.Minute).(*memoryManager)
	m.now = func() time.Time { return now }
	key := Key{ChatID: 1, UserID: 2}

	m.SetState(key, State("awaiting_choice"))

	now = now.Add(9 * time.Minute)
	if !m.InProgress(key) {
		t.Fatal("session expired before the TTL")
	}

	now = now.Add(2 * time.Minute)
	if m.InProgress(key) {
		t.Fatal("session survived past the TTL")
	}
	if got := m.GetState(key); got != StateIdle {
		t.Fatalf("expired state = %q, want idle", got)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewMemoryManager(0).(*memoryManager)
	m.now = func() time.Time { return now }
	key := Key{ChatID: 1, UserID: 2}

	m.SetState(key, State("awaiting_choice"))
	now = now.Add(240 * time.Hour)
	if !m.InProgress(key) {
		t.Fatal("session expired with expiry disabled")
	}
}
