// Package state provides a lightweight FSM/session manager for Telegram bots.
// Sessions are scoped to a (chat, user) pair so the same user may hold
// independent dialogs in different chats.
package state
