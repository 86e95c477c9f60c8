package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/vkazmirchuk/tagmate/bot/dialog"
	"github.com/vkazmirchuk/tagmate/bot/gate"
	"github.com/vkazmirchuk/tagmate/bot/registry"
	"github.com/vkazmirchuk/tagmate/core/telegram/state"
)

// fakeContext implements just enough of tele.Context for the handlers.
type fakeContext struct {
	tele.Context
	chat   *tele.Chat
	sender *tele.User
	text   string
	store  map[string]any
	sent   []string
}

func newFakeContext(chatID, userID int64) *fakeContext {
	return &fakeContext{
		chat:   &tele.Chat{ID: chatID, Type: tele.ChatGroup},
		sender: &tele.User{ID: userID},
		store:  map[string]any{},
	}
}

func (f *fakeContext) Update() tele.Update     { return tele.Update{} }
func (f *fakeContext) Chat() *tele.Chat        { return f.chat }
func (f *fakeContext) Sender() *tele.User      { return f.sender }
func (f *fakeContext) Text() string            { return f.text }
func (f *fakeContext) Get(key string) any      { return f.store[key] }
func (f *fakeContext) Set(key string, val any) { f.store[key] = val }

func (f *fakeContext) Send(what any, _ ...any) error {
	if s, ok := what.(string); ok {
		f.sent = append(f.sent, s)
	}
	return nil
}

type stubGate struct {
	multi bool
	admin bool
	err   error
}

func (s *stubGate) IsAdmin(_ context.Context, _, _ int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.admin, nil
}

func (s *stubGate) IsMultiUserChat(_ context.Context, _ int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.multi, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, _, _ int64) error { return nil }

func TestStartDialogFailureKeepsOpenSession(t *testing.T) {
	reg := registry.NewMemory(0)
	require.NoError(t, reg.CreateGroup(context.Background(), 42, "devs"))
	sessions := state.NewMemoryManager(0)
	g := &stubGate{err: gate.ErrPlatformUnavailable}

	h := NewHandlers(reg, sessions, "✖ Cancel", 0)
	h.bind(dialog.NewEngine(reg, g, stubResolver{}, "✖ Cancel", 0))

	key := state.Key{ChatID: 42, UserID: 7}
	sessions.SetState(key, dialog.StepAwaitingJoinChoice)

	c := newFakeContext(42, 7)
	err := h.startDialog(dialog.ActionLeave)(c)
	assert.ErrorIs(t, err, gate.ErrPlatformUnavailable)

	// The failed entry point replies with the generic failure message and
	// leaves the earlier session in place.
	require.Len(t, c.sent, 1)
	assert.Equal(t, msgFailure, c.sent[0])
	assert.Equal(t, dialog.StepAwaitingJoinChoice, sessions.GetState(key))

	// Once the platform recovers, the new entry point replaces the session.
	g.err = nil
	g.multi = true
	c = newFakeContext(42, 7)
	require.NoError(t, h.startDialog(dialog.ActionLeave)(c))
	assert.Equal(t, dialog.StepAwaitingLeaveChoice, sessions.GetState(key))
}
