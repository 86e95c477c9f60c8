package state

import (
	"sync"
	"time"

	"github.com/vkazmirchuk/tagmate/core/logger"
	tghelpers "github.com/vkazmirchuk/tagmate/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[Key]*Session
	handlers map[State]tele.HandlerFunc
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryManager constructs an in-memory Manager implementation.
// ttl <= 0 disables expiry; an abandoned dialog then lingers until the
// user opens a new one.
func NewMemoryManager(ttl time.Duration) Manager {
	return &memoryManager{
		sessions: make(map[Key]*Session),
		handlers: make(map[State]tele.HandlerFunc),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Bind associates a state with its continuation handler.
func (m *memoryManager) Bind(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

// SetState opens the session for key, replacing any open one (last writer wins).
func (m *memoryManager) SetState(key Key, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st == StateIdle {
		delete(m.sessions, key)
		return
	}
	m.sessions[key] = &Session{State: st, OpenedAt: m.now()}
}

// GetState returns the current FSM state for key, or StateIdle if none exists.
func (m *memoryManager) GetState(key Key) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[key]
	if !ok {
		return StateIdle
	}
	if m.expired(sess) {
		delete(m.sessions, key)
		return StateIdle
	}
	return sess.State
}

// InProgress reports whether key currently has an active non-idle session.
func (m *memoryManager) InProgress(key Key) bool {
	return m.GetState(key) != StateIdle
}

// ClearState closes the session for key.
func (m *memoryManager) ClearState(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

func (m *memoryManager) expired(sess *Session) bool {
	if m.ttl <= 0 {
		return false
	}
	return m.now().Sub(sess.OpenedAt) > m.ttl
}

// ManagerHandler executes the handler bound to the caller's current state, if any.
func (m *memoryManager) ManagerHandler(c tele.Context) error {
	key := KeyFor(c)
	current := m.GetState(key)
	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.Int64("user_id", key.UserID),
		slog.Int64("chat_id", key.ChatID),
		slog.String("state", string(current)),
	)

	m.mu.RLock()
	handler, ok := m.handlers[current]
	m.mu.RUnlock()
	if ok {
		return handler(c)
	}
	return nil
}
