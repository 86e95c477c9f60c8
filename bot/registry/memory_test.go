package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGroupDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	require.NoError(t, m.CreateGroup(ctx, 1, "devs"))
	assert.ErrorIs(t, m.CreateGroup(ctx, 1, "devs"), ErrGroupExists)

	// Names are case-sensitive, so a different casing is a new group.
	require.NoError(t, m.CreateGroup(ctx, 1, "Devs"))

	// Same name in another chat is independent.
	require.NoError(t, m.CreateGroup(ctx, 2, "devs"))
}

func TestCreateGroupLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	for i := 0; i < DefaultGroupLimit; i++ {
		require.NoError(t, m.CreateGroup(ctx, 1, fmt.Sprintf("g%d", i)))
	}
	assert.ErrorIs(t, m.CreateGroup(ctx, 1, "overflow"), ErrGroupLimit)

	// A repeated name reports the collision, not the capacity, even when
	// the chat is full.
	assert.ErrorIs(t, m.CreateGroup(ctx, 1, "g0"), ErrGroupExists)

	// The failed create leaves no trace.
	groups, err := m.ListGroups(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, groups, DefaultGroupLimit)

	// Other chats are unaffected by the full one.
	require.NoError(t, m.CreateGroup(ctx, 2, "overflow"))
}

func TestListGroupsOrderAndCounts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	require.NoError(t, m.CreateGroup(ctx, 1, "b"))
	require.NoError(t, m.CreateGroup(ctx, 1, "a"))
	require.NoError(t, m.AddMember(ctx, 1, "a", 100))
	require.NoError(t, m.AddMember(ctx, 1, "a", 200))

	groups, err := m.ListGroups(ctx, 1)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, GroupInfo{Name: "b", MemberCount: 0}, groups[0])
	assert.Equal(t, GroupInfo{Name: "a", MemberCount: 2}, groups[1])
}

func TestMembershipLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	require.NoError(t, m.CreateGroup(ctx, 1, "devs"))

	require.NoError(t, m.AddMember(ctx, 1, "devs", 100))
	assert.ErrorIs(t, m.AddMember(ctx, 1, "devs", 100), ErrAlreadyMember)

	require.NoError(t, m.AddMember(ctx, 1, "devs", 200))
	members, err := m.GetMembers(ctx, 1, "devs")
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, members)

	require.NoError(t, m.RemoveMember(ctx, 1, "devs", 100))
	assert.ErrorIs(t, m.RemoveMember(ctx, 1, "devs", 100), ErrNotMember)

	members, err = m.GetMembers(ctx, 1, "devs")
	require.NoError(t, err)
	assert.Equal(t, []int64{200}, members)
}

func TestUnknownGroup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	assert.ErrorIs(t, m.AddMember(ctx, 1, "ghost", 100), ErrGroupNotFound)
	assert.ErrorIs(t, m.RemoveMember(ctx, 1, "ghost", 100), ErrGroupNotFound)
	assert.ErrorIs(t, m.DeleteGroup(ctx, 1, "ghost"), ErrGroupNotFound)

	_, err := m.GetMembers(ctx, 1, "ghost")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestDeleteGroupDropsMembers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	require.NoError(t, m.CreateGroup(ctx, 1, "devs"))
	require.NoError(t, m.AddMember(ctx, 1, "devs", 100))

	require.NoError(t, m.DeleteGroup(ctx, 1, "devs"))

	// Recreating the name starts from an empty membership.
	require.NoError(t, m.CreateGroup(ctx, 1, "devs"))
	members, err := m.GetMembers(ctx, 1, "devs")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestOptOut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	out, err := m.IsOptOut(ctx, 1, 100)
	require.NoError(t, err)
	assert.False(t, out)

	require.NoError(t, m.SetOptOut(ctx, 1, 100))
	require.NoError(t, m.SetOptOut(ctx, 1, 100)) // idempotent

	out, err = m.IsOptOut(ctx, 1, 100)
	require.NoError(t, err)
	assert.True(t, out)

	// Scoped per chat.
	out, err = m.IsOptOut(ctx, 2, 100)
	require.NoError(t, err)
	assert.False(t, out)

	require.NoError(t, m.ClearOptOut(ctx, 1, 100))
	out, err = m.IsOptOut(ctx, 1, 100)
	require.NoError(t, err)
	assert.False(t, out)
}
