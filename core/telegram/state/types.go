package state

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Key identifies a session. Dialogs are scoped per chat and per user, so
// two users in one chat (or one user in two chats) never share state.
type Key struct {
	ChatID int64
	UserID int64
}

// KeyFor builds a session key from a Telegram handler context.
func KeyFor(c tele.Context) Key {
	var k Key
	if chat := c.Chat(); chat != nil {
		k.ChatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		k.UserID = user.ID
	}
	return k
}

// Session stores the conversation state for one (chat, user) pair.
// OpenedAt is recorded when the dialog entry point fires and drives
// the abandonment TTL.
type Session struct {
	State    State
	OpenedAt time.Time
}

// Manager orchestrates dialog sessions and FSM state transitions.
type Manager interface {
	// Bind associates a state with its continuation handler. Bindings
	// must be registered before updates start flowing.
	Bind(st State, h tele.HandlerFunc)

	// SetState opens (or silently replaces) the session for key.
	SetState(key Key, st State)
	// GetState returns the current state, or StateIdle when no session
	// is open or the open one has expired.
	GetState(key Key) State
	// InProgress reports whether key has an active non-idle session.
	InProgress(key Key) bool
	// ClearState closes the session for key.
	ClearState(key Key)

	// ManagerHandler executes the handler bound to the caller's current state, if any.
	ManagerHandler(c tele.Context) error
}
