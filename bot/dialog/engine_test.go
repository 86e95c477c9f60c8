package dialog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkazmirchuk/tagmate/bot/gate"
	"github.com/vkazmirchuk/tagmate/bot/registry"
	"github.com/vkazmirchuk/tagmate/core/telegram/state"
)

const cancel = "✖ Cancel"

type fakeGate struct {
	multi    bool
	admins   map[int64]bool
	adminErr error
	multiErr error
}

func (f *fakeGate) IsAdmin(_ context.Context, _ int64, userID int64) (bool, error) {
	if f.adminErr != nil {
		return false, f.adminErr
	}
	return f.admins[userID], nil
}

func (f *fakeGate) IsMultiUserChat(_ context.Context, _ int64) (bool, error) {
	if f.multiErr != nil {
		return false, f.multiErr
	}
	return f.multi, nil
}

type fakeResolver struct {
	failing map[int64]bool
}

func (f *fakeResolver) Resolve(_ context.Context, _ int64, userID int64) error {
	if f.failing[userID] {
		return errors.New("user left")
	}
	return nil
}

const (
	adminID  = int64(1)
	memberID = int64(2)
	chatID   = int64(42)
)

type fixture struct {
	engine   *Engine
	registry *registry.Memory
	gate     *fakeGate
	resolver *fakeResolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := &fakeGate{multi: true, admins: map[int64]bool{adminID: true}}
	r := &fakeResolver{failing: map[int64]bool{}}
	reg := registry.NewMemory(0)
	return &fixture{
		engine:   NewEngine(reg, g, r, cancel, 0),
		registry: reg,
		gate:     g,
		resolver: r,
	}
}

func event(userID int64, text string) Event {
	return Event{ChatID: chatID, UserID: userID, Text: text}
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.engine.CreateGroup(ctx, event(adminID, ""), "devs")
	require.NoError(t, err)
	assert.Equal(t, "Group 'devs' created.", reply.Text)

	reply, err = f.engine.CreateGroup(ctx, event(adminID, ""), "devs")
	require.NoError(t, err)
	assert.Equal(t, "Group 'devs' already exists.", reply.Text)

	reply, err = f.engine.CreateGroup(ctx, event(adminID, ""), "")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Usage:")
}

func TestCreateGroupNonAdmin(t *testing.T) {
	f := newFixture(t)

	reply, err := f.engine.CreateGroup(context.Background(), event(memberID, ""), "devs")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "admins")

	groups, err := f.registry.ListGroups(context.Background(), chatID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestCreateGroupLimitMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, n := range names {
		_, err := f.engine.CreateGroup(ctx, event(adminID, ""), n)
		require.NoError(t, err)
	}
	reply, err := f.engine.CreateGroup(ctx, event(adminID, ""), "h")
	require.NoError(t, err)
	assert.Equal(t, "A chat can have at most 7 groups.", reply.Text)

	// Recreating an existing name in a full chat reports the duplicate.
	reply, err = f.engine.CreateGroup(ctx, event(adminID, ""), "a")
	require.NoError(t, err)
	assert.Equal(t, "Group 'a' already exists.", reply.Text)
}

func TestOneToOneChatGuard(t *testing.T) {
	f := newFixture(t)
	f.gate.multi = false
	ctx := context.Background()

	reply, err := f.engine.CreateGroup(ctx, event(adminID, ""), "devs")
	require.NoError(t, err)
	assert.Equal(t, msgGroupsOnly, reply.Text)

	reply, next, err := f.engine.Start(ctx, ActionJoin, event(memberID, ""))
	require.NoError(t, err)
	assert.Equal(t, msgGroupsOnly, reply.Text)
	assert.Equal(t, state.StateIdle, next)

	// Nothing was created and no session would open.
	groups, err := f.registry.ListGroups(ctx, chatID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestStartJoinOffersGroupsAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "ops"))

	reply, next, err := f.engine.Start(ctx, ActionJoin, event(memberID, ""))
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingJoinChoice, next)
	assert.Equal(t, []string{"devs", "ops", cancel}, reply.Options)
	assert.NotEmpty(t, reply.Text)
}

func TestStartWithNoGroups(t *testing.T) {
	f := newFixture(t)

	reply, next, err := f.engine.Start(context.Background(), ActionJoin, event(memberID, ""))
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, next)
	assert.Equal(t, msgNoGroups, reply.Text)
}

func TestStartDeleteRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))

	reply, next, err := f.engine.Start(ctx, ActionDelete, event(memberID, ""))
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, next)
	assert.Contains(t, reply.Text, "admins")

	_, next, err = f.engine.Start(ctx, ActionDelete, event(adminID, ""))
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingDeleteChoice, next)
}

func TestResolveJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))

	reply, err := f.engine.Resolve(ctx, StepAwaitingJoinChoice, event(memberID, "devs"))
	require.NoError(t, err)
	assert.Equal(t, "You joined 'devs'.", reply.Text)
	assert.True(t, reply.RemoveKeyboard)

	members, err := f.registry.GetMembers(ctx, chatID, "devs")
	require.NoError(t, err)
	assert.Equal(t, []int64{memberID}, members)

	reply, err = f.engine.Resolve(ctx, StepAwaitingJoinChoice, event(memberID, "devs"))
	require.NoError(t, err)
	assert.Equal(t, "You are already in 'devs'.", reply.Text)
}

func TestResolveUnknownGroup(t *testing.T) {
	f := newFixture(t)

	reply, err := f.engine.Resolve(context.Background(), StepAwaitingJoinChoice, event(memberID, "ghost"))
	require.NoError(t, err)
	assert.Equal(t, "Group 'ghost' not found.", reply.Text)
	assert.True(t, reply.RemoveKeyboard)
}

func TestResolveCancel(t *testing.T) {
	f := newFixture(t)

	for _, st := range Steps() {
		reply, err := f.engine.Resolve(context.Background(), st, event(memberID, cancel))
		require.NoError(t, err)
		assert.Equal(t, msgCancelled, reply.Text)
		assert.True(t, reply.RemoveKeyboard)
	}
}

func TestResolveLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))
	require.NoError(t, f.registry.AddMember(ctx, chatID, "devs", memberID))

	reply, err := f.engine.Resolve(ctx, StepAwaitingLeaveChoice, event(memberID, "devs"))
	require.NoError(t, err)
	assert.Equal(t, "You left 'devs'.", reply.Text)

	reply, err = f.engine.Resolve(ctx, StepAwaitingLeaveChoice, event(memberID, "devs"))
	require.NoError(t, err)
	assert.Equal(t, "You are not in 'devs'.", reply.Text)
}

func TestResolveTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))
	require.NoError(t, f.registry.AddMember(ctx, chatID, "devs", 100))
	require.NoError(t, f.registry.AddMember(ctx, chatID, "devs", 200))

	reply, err := f.engine.Resolve(ctx, StepAwaitingTagChoice, event(memberID, "devs"))
	require.NoError(t, err)
	assert.True(t, reply.Markdown)
	assert.Contains(t, reply.Text, "tg://user?id=100")
	assert.Contains(t, reply.Text, "tg://user?id=200")
}

func TestResolveTagSkipsUnresolvable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))
	require.NoError(t, f.registry.AddMember(ctx, chatID, "devs", 100))
	require.NoError(t, f.registry.AddMember(ctx, chatID, "devs", 200))
	f.resolver.failing[200] = true

	reply, err := f.engine.Resolve(ctx, StepAwaitingTagChoice, event(memberID, "devs"))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "tg://user?id=100")
	assert.NotContains(t, reply.Text, "tg://user?id=200")
}

func TestResolveTagEmptyGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))

	reply, err := f.engine.Resolve(ctx, StepAwaitingTagChoice, event(memberID, "devs"))
	require.NoError(t, err)
	assert.Equal(t, "Group 'devs' has no members.", reply.Text)
}

func TestResolveDeleteRechecksAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))

	// Admin status was lost between the prompt and the answer.
	reply, err := f.engine.Resolve(ctx, StepAwaitingDeleteChoice, event(memberID, "devs"))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "admins")

	groups, err := f.registry.ListGroups(ctx, chatID)
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	reply, err = f.engine.Resolve(ctx, StepAwaitingDeleteChoice, event(adminID, "devs"))
	require.NoError(t, err)
	assert.Equal(t, "Group 'devs' deleted.", reply.Text)
}

func TestResolvePlatformErrorPropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))
	f.gate.adminErr = gate.ErrPlatformUnavailable

	_, err := f.engine.Resolve(ctx, StepAwaitingDeleteChoice, event(adminID, "devs"))
	assert.ErrorIs(t, err, gate.ErrPlatformUnavailable)

	// The failure must not be taken as a denial or an approval.
	groups, err := f.registry.ListGroups(ctx, chatID)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestListGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.engine.ListGroups(ctx, event(memberID, ""))
	require.NoError(t, err)
	assert.Equal(t, msgNoGroups, reply.Text)

	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "ops"))
	require.NoError(t, f.registry.AddMember(ctx, chatID, "devs", 100))

	reply, err = f.engine.ListGroups(ctx, event(memberID, ""))
	require.NoError(t, err)
	assert.True(t, reply.Markdown)
	assert.Contains(t, reply.Text, "*devs* (1)")
	assert.Contains(t, reply.Text, "*ops* (0)")
}

func TestTagAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))
	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "ops"))
	require.NoError(t, f.registry.AddMember(ctx, chatID, "devs", 100))
	require.NoError(t, f.registry.AddMember(ctx, chatID, "devs", 200))
	require.NoError(t, f.registry.AddMember(ctx, chatID, "ops", 200)) // overlap
	require.NoError(t, f.registry.AddMember(ctx, chatID, "ops", 300))
	require.NoError(t, f.registry.SetOptOut(ctx, chatID, 300))

	reply, err := f.engine.TagAll(ctx, event(memberID, ""))
	require.NoError(t, err)
	assert.True(t, reply.Markdown)
	assert.Contains(t, reply.Text, "tg://user?id=100")
	assert.NotContains(t, reply.Text, "tg://user?id=300")

	// The overlapping member is mentioned exactly once.
	assert.Equal(t, 1, strings.Count(reply.Text, "tg://user?id=200"))
}

func TestTagAllNoTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.engine.TagAll(ctx, event(memberID, ""))
	require.NoError(t, err)
	assert.Equal(t, msgNoOneToTag, reply.Text)

	require.NoError(t, f.registry.CreateGroup(ctx, chatID, "devs"))
	require.NoError(t, f.registry.AddMember(ctx, chatID, "devs", 100))
	require.NoError(t, f.registry.SetOptOut(ctx, chatID, 100))

	reply, err = f.engine.TagAll(ctx, event(memberID, ""))
	require.NoError(t, err)
	assert.Equal(t, msgNoOneToTag, reply.Text)
}

func TestOptOutOptIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.OptOut(ctx, event(memberID, ""))
	require.NoError(t, err)
	out, err := f.registry.IsOptOut(ctx, chatID, memberID)
	require.NoError(t, err)
	assert.True(t, out)

	_, err = f.engine.OptIn(ctx, event(memberID, ""))
	require.NoError(t, err)
	out, err = f.registry.IsOptOut(ctx, chatID, memberID)
	require.NoError(t, err)
	assert.False(t, out)
}
