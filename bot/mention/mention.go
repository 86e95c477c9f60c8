// Package mention resolves stored user IDs into Telegram mention links.
package mention

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/vkazmirchuk/tagmate/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Resolver checks that a stored user is still reachable in a chat.
// Resolve returns an error for users who left or cannot be looked up.
type Resolver interface {
	Resolve(ctx context.Context, chatID, userID int64) error
}

type memberAPI interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// Telegram resolves users through the Bot API. *tele.Bot satisfies the
// required surface.
type Telegram struct {
	api memberAPI
}

func NewTelegram(api memberAPI) *Telegram {
	return &Telegram{api: api}
}

func (t *Telegram) Resolve(_ context.Context, chatID, userID int64) error {
	member, err := t.api.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return fmt.Errorf("chat member %d/%d: %w", chatID, userID, err)
	}
	switch member.Role {
	case tele.Left, tele.Kicked:
		return fmt.Errorf("user %d is no longer in chat %d", userID, chatID)
	}
	return nil
}

// emoji block U+1F600..U+1F64F, the classic smiley range.
const (
	emojiBase = 0x1F600
	emojiSpan = 0x50
)

func randomEmoji() string {
	return string(rune(emojiBase + rand.IntN(emojiSpan)))
}

// Markdown renders one clickable mention. The visible text is a random
// emoji so the message stays readable regardless of usernames.
func Markdown(userID int64) string {
	return fmt.Sprintf("[%s](tg://user?id=%d)", randomEmoji(), userID)
}

// Collect resolves each user and returns rendered mentions for those
// still present. Failures are logged and skipped, never fatal.
func Collect(ctx context.Context, r Resolver, chatID int64, userIDs []int64) []string {
	mentions := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		if err := r.Resolve(ctx, chatID, userID); err != nil {
			logger.Warn(ctx, "dialog", "mention.skip",
				slog.Int64("chat_id", chatID),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
			continue
		}
		mentions = append(mentions, Markdown(userID))
	}
	return mentions
}
