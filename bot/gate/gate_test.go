package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type fakeAPI struct {
	admins   []tele.ChatMember
	chatType tele.ChatType
	err      error
}

func (f *fakeAPI) AdminsOf(*tele.Chat) ([]tele.ChatMember, error) {
	return f.admins, f.err
}

func (f *fakeAPI) ChatByID(id int64) (*tele.Chat, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tele.Chat{ID: id, Type: f.chatType}, nil
}

func TestIsAdmin(t *testing.T) {
	api := &fakeAPI{admins: []tele.ChatMember{
		{User: &tele.User{ID: 10}},
		{User: &tele.User{ID: 20}},
	}}
	g := NewTelegram(api)

	ok, err := g.IsAdmin(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsAdmin(context.Background(), 1, 30)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsAdminPlatformError(t *testing.T) {
	g := NewTelegram(&fakeAPI{err: errors.New("timeout")})

	_, err := g.IsAdmin(context.Background(), 1, 20)
	assert.ErrorIs(t, err, ErrPlatformUnavailable)
}

func TestIsMultiUserChat(t *testing.T) {
	cases := []struct {
		chatType tele.ChatType
		want     bool
	}{
		{tele.ChatGroup, true},
		{tele.ChatSuperGroup, true},
		{tele.ChatPrivate, false},
		{tele.ChatChannel, false},
	}
	for _, tc := range cases {
		g := NewTelegram(&fakeAPI{chatType: tc.chatType})
		got, err := g.IsMultiUserChat(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "chat type %s", tc.chatType)
	}
}
