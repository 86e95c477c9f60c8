// Package gate answers permission and chat-shape questions against the
// messaging platform.
package gate

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// ErrPlatformUnavailable wraps failures of the underlying platform call.
// Callers must treat it as "unknown", never as a denial.
var ErrPlatformUnavailable = errors.New("platform unavailable")

// Gate checks who may do what in a chat.
type Gate interface {
	// IsAdmin reports whether the user is an administrator (or the owner)
	// of the chat.
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	// IsMultiUserChat reports whether the chat is a group-style chat as
	// opposed to a one-to-one conversation.
	IsMultiUserChat(ctx context.Context, chatID int64) (bool, error)
}

type telegramAPI interface {
	AdminsOf(chat *tele.Chat) ([]tele.ChatMember, error)
	ChatByID(id int64) (*tele.Chat, error)
}

// Telegram is the Gate backed by the Bot API. *tele.Bot satisfies the
// required surface.
type Telegram struct {
	api telegramAPI
}

func NewTelegram(api telegramAPI) *Telegram {
	return &Telegram{api: api}
}

func (t *Telegram) IsAdmin(_ context.Context, chatID, userID int64) (bool, error) {
	admins, err := t.api.AdminsOf(&tele.Chat{ID: chatID})
	if err != nil {
		return false, fmt.Errorf("%w: admins of chat %d: %v", ErrPlatformUnavailable, chatID, err)
	}
	for _, member := range admins {
		if member.User != nil && member.User.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (t *Telegram) IsMultiUserChat(_ context.Context, chatID int64) (bool, error) {
	chat, err := t.api.ChatByID(chatID)
	if err != nil {
		return false, fmt.Errorf("%w: chat %d: %v", ErrPlatformUnavailable, chatID, err)
	}
	switch chat.Type {
	case tele.ChatGroup, tele.ChatSuperGroup:
		return true, nil
	}
	return false, nil
}
