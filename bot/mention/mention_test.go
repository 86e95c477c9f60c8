package mention

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

var mentionRe = regexp.MustCompile(`^\[.+\]\(tg://user\?id=(\d+)\)$`)

func TestMarkdown(t *testing.T) {
	m := Markdown(12345)
	matches := mentionRe.FindStringSubmatch(m)
	if assert.NotNil(t, matches, "mention %q should be a tg://user link", m) {
		assert.Equal(t, "12345", matches[1])
	}
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

func TestCollectSkipsFailures(t *testing.T) {
	r := &fakeResolver{failing: map[int64]bool{200: true}}

	mentions := Collect(context.Background(), r, 1, []int64{100, 200, 300})
	assert.Len(t, mentions, 2)
	assert.Contains(t, mentions[0], "tg://user?id=100")
	assert.Contains(t, mentions[1], "tg://user?id=300")
}

type fakeMemberAPI struct {
	role tele.MemberStatus
	err  error
}

func (f *fakeMemberAPI) ChatMemberOf(_, _ tele.Recipient) (*tele.ChatMember, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tele.ChatMember{Role: f.role}, nil
}

func TestTelegramResolve(t *testing.T) {
	cases := []struct {
		name    string
		api     *fakeMemberAPI
		wantErr bool
	}{
		{"member", &fakeMemberAPI{role: tele.Member}, false},
		{"administrator", &fakeMemberAPI{role: tele.Administrator}, false},
		{"left", &fakeMemberAPI{role: tele.Left}, true},
		{"kicked", &fakeMemberAPI{role: tele.Kicked}, true},
		{"api error", &fakeMemberAPI{err: errors.New("not found")}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewTelegram(tc.api).Resolve(context.Background(), 1, 100)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
