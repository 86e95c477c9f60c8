// Package registry owns tag groups, their members, and per-chat opt-out
// flags. It is pure data access: nothing here knows about dialogs or the
// Telegram transport.
package registry

import (
	"context"
	"errors"
)

// DefaultGroupLimit caps how many groups a single chat may hold.
const DefaultGroupLimit = 7

var (
	// ErrGroupExists is returned when a group name collides within a chat.
	ErrGroupExists = errors.New("group already exists")
	// ErrGroupLimit is returned when a chat is at its group capacity.
	ErrGroupLimit = errors.New("group limit reached")
	// ErrGroupNotFound is returned when a chat has no group with the given name.
	ErrGroupNotFound = errors.New("group not found")
	// ErrAlreadyMember is returned when the user is already in the group.
	ErrAlreadyMember = errors.New("already a member")
	// ErrNotMember is returned when the user is not in the group.
	ErrNotMember = errors.New("not a member")
)

// GroupInfo is one row of a group listing.
type GroupInfo struct {
	Name        string
	MemberCount int
}

// Registry is the keyed store of groups and opt-out flags. Group names
// are case-sensitive and unique per chat; all operations are atomic at
// single-group (or single-flag) granularity.
type Registry interface {
	// CreateGroup registers a new empty group. Fails with ErrGroupExists
	// on a name collision and ErrGroupLimit when the chat is at capacity;
	// neither failure leaves side effects.
	CreateGroup(ctx context.Context, chatID int64, name string) error
	// DeleteGroup removes a group and its memberships.
	DeleteGroup(ctx context.Context, chatID int64, name string) error
	// ListGroups returns all groups of a chat in creation order.
	ListGroups(ctx context.Context, chatID int64) ([]GroupInfo, error)

	// AddMember adds a user to a group; adding twice yields ErrAlreadyMember
	// and never stores a duplicate membership.
	AddMember(ctx context.Context, chatID int64, name string, userID int64) error
	// RemoveMember removes a user from a group.
	RemoveMember(ctx context.Context, chatID int64, name string, userID int64) error
	// GetMembers returns the user IDs of a group in join order.
	GetMembers(ctx context.Context, chatID int64, name string) ([]int64, error)

	SetOptOut(ctx context.Context, chatID, userID int64) error
	ClearOptOut(ctx context.Context, chatID, userID int64) error
	IsOptOut(ctx context.Context, chatID, userID int64) (bool, error)
}
