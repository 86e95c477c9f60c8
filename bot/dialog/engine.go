// Package dialog implements the conversation engine behind the group
// commands. It is transport-free: handlers feed it normalized events and
// render the replies it returns.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vkazmirchuk/tagmate/bot/gate"
	"github.com/vkazmirchuk/tagmate/bot/mention"
	"github.com/vkazmirchuk/tagmate/bot/registry"
	"github.com/vkazmirchuk/tagmate/core/logger"
	"github.com/vkazmirchuk/tagmate/core/telegram/format"
	"github.com/vkazmirchuk/tagmate/core/telegram/state"
)

// Action names a two-step group operation started by a command.
type Action string

const (
	ActionJoin   Action = "join"
	ActionLeave  Action = "leave"
	ActionTag    Action = "tag"
	ActionDelete Action = "delete"
)

// Conversation states. Each awaits the user's group choice for one action.
const (
	StepAwaitingJoinChoice   state.State = "awaiting_join_choice"
	StepAwaitingLeaveChoice  state.State = "awaiting_leave_choice"
	StepAwaitingTagChoice    state.State = "awaiting_tag_choice"
	StepAwaitingDeleteChoice state.State = "awaiting_delete_choice"
)

var stepByAction = map[Action]state.State{
	ActionJoin:   StepAwaitingJoinChoice,
	ActionLeave:  StepAwaitingLeaveChoice,
	ActionTag:    StepAwaitingTagChoice,
	ActionDelete: StepAwaitingDeleteChoice,
}

// Steps lists every conversation state the engine can resolve.
func Steps() []state.State {
	return []state.State{
		StepAwaitingJoinChoice,
		StepAwaitingLeaveChoice,
		StepAwaitingTagChoice,
		StepAwaitingDeleteChoice,
	}
}

func actionFor(st state.State) (Action, bool) {
	for action, step := range stepByAction {
		if step == st {
			return action, true
		}
	}
	return "", false
}

// Event is a normalized inbound message.
type Event struct {
	ChatID int64
	UserID int64
	Text   string
}

// Reply is what the engine wants said back. When Options is non-empty the
// transport should offer them as a one-time choice keyboard; when
// RemoveKeyboard is set it should drop any open keyboard.
type Reply struct {
	Text           string
	Options        []string
	RemoveKeyboard bool
	Markdown       bool
}

func closed(text string) Reply {
	return Reply{Text: text, RemoveKeyboard: true}
}

// Engine drives the group dialogs and one-shot group commands.
type Engine struct {
	registry    registry.Registry
	gate        gate.Gate
	resolver    mention.Resolver
	cancelLabel string
	limit       int
}

// NewEngine wires the collaborators. A non-positive limit falls back to
// registry.DefaultGroupLimit; it is only used for wording, the registry
// enforces the real cap.
func NewEngine(reg registry.Registry, g gate.Gate, r mention.Resolver, cancelLabel string, limit int) *Engine {
	if limit <= 0 {
		limit = registry.DefaultGroupLimit
	}
	return &Engine{
		registry:    reg,
		gate:        g,
		resolver:    r,
		cancelLabel: cancelLabel,
		limit:       limit,
	}
}

const (
	msgGroupsOnly = "This command only works in group chats."
	msgNoGroups   = "There are no groups in this chat yet."
	msgCancelled  = "Cancelled."
	msgNoOneToTag = "No one to tag."
)

var prompts = map[Action]string{
	ActionJoin:   "Which group do you want to join?",
	ActionLeave:  "Which group do you want to leave?",
	ActionTag:    "Which group should be tagged?",
	ActionDelete: "Which group do you want to delete?",
}

// Start opens a dialog for action. It returns the prompt reply and the
// state the session should move to; state.StateIdle means no session
// opens and the reply already closes the exchange.
func (e *Engine) Start(ctx context.Context, action Action, ev Event) (Reply, state.State, error) {
	multi, err := e.gate.IsMultiUserChat(ctx, ev.ChatID)
	if err != nil {
		return Reply{}, state.StateIdle, err
	}
	if !multi {
		return closed(msgGroupsOnly), state.StateIdle, nil
	}

	if action == ActionDelete {
		admin, err := e.gate.IsAdmin(ctx, ev.ChatID, ev.UserID)
		if err != nil {
			return Reply{}, state.StateIdle, err
		}
		if !admin {
			return closed("Only chat admins can delete groups."), state.StateIdle, nil
		}
	}

	groups, err := e.registry.ListGroups(ctx, ev.ChatID)
	if err != nil {
		return Reply{}, state.StateIdle, err
	}
	if len(groups) == 0 {
		return closed(msgNoGroups), state.StateIdle, nil
	}

	options := make([]string, 0, len(groups)+1)
	for _, g := range groups {
		options = append(options, g.Name)
	}
	options = append(options, e.cancelLabel)

	logger.Debug(ctx, "dialog", "dialog.open",
		slog.String("action", string(action)),
		slog.Int64("chat_id", ev.ChatID),
		slog.Int64("user_id", ev.UserID),
		slog.Int("groups", len(groups)),
	)
	return Reply{Text: prompts[action], Options: options}, stepByAction[action], nil
}

// Resolve consumes the user's answer for an open dialog. The session
// always closes after Resolve, whatever the outcome.
func (e *Engine) Resolve(ctx context.Context, st state.State, ev Event) (Reply, error) {
	action, ok := actionFor(st)
	if !ok {
		return closed(msgCancelled), nil
	}

	name := strings.TrimSpace(ev.Text)
	if name == e.cancelLabel {
		logger.Debug(ctx, "dialog", "dialog.cancel",
			slog.String("action", string(action)),
			slog.Int64("chat_id", ev.ChatID),
			slog.Int64("user_id", ev.UserID),
		)
		return closed(msgCancelled), nil
	}

	reply, err := e.resolveChoice(ctx, action, ev, name)
	if err != nil {
		return Reply{}, err
	}
	logger.Info(ctx, "dialog", "dialog.close",
		slog.String("action", string(action)),
		slog.Int64("chat_id", ev.ChatID),
		slog.Int64("user_id", ev.UserID),
		slog.String("group", name),
	)
	return reply, nil
}

func (e *Engine) resolveChoice(ctx context.Context, action Action, ev Event, name string) (Reply, error) {
	switch action {
	case ActionJoin:
		err := e.registry.AddMember(ctx, ev.ChatID, name, ev.UserID)
		switch {
		case errors.Is(err, registry.ErrGroupNotFound):
			return closed(fmt.Sprintf("Group '%s' not found.", name)), nil
		case errors.Is(err, registry.ErrAlreadyMember):
			return closed(fmt.Sprintf("You are already in '%s'.", name)), nil
		case err != nil:
			return Reply{}, err
		}
		return closed(fmt.Sprintf("You joined '%s'.", name)), nil

	case ActionLeave:
		err := e.registry.RemoveMember(ctx, ev.ChatID, name, ev.UserID)
		switch {
		case errors.Is(err, registry.ErrGroupNotFound):
			return closed(fmt.Sprintf("Group '%s' not found.", name)), nil
		case errors.Is(err, registry.ErrNotMember):
			return closed(fmt.Sprintf("You are not in '%s'.", name)), nil
		case err != nil:
			return Reply{}, err
		}
		return closed(fmt.Sprintf("You left '%s'.", name)), nil

	case ActionTag:
		members, err := e.registry.GetMembers(ctx, ev.ChatID, name)
		switch {
		case errors.Is(err, registry.ErrGroupNotFound):
			return closed(fmt.Sprintf("Group '%s' not found.", name)), nil
		case err != nil:
			return Reply{}, err
		}
		if len(members) == 0 {
			return closed(fmt.Sprintf("Group '%s' has no members.", name)), nil
		}
		mentions := mention.Collect(ctx, e.resolver, ev.ChatID, members)
		if len(mentions) == 0 {
			return closed(msgNoOneToTag), nil
		}
		reply := closed(strings.Join(mentions, " "))
		reply.Markdown = true
		return reply, nil

	case ActionDelete:
		// Admin status may have changed since the dialog opened, check again.
		admin, err := e.gate.IsAdmin(ctx, ev.ChatID, ev.UserID)
		if err != nil {
			return Reply{}, err
		}
		if !admin {
			return closed("Only chat admins can delete groups."), nil
		}
		err = e.registry.DeleteGroup(ctx, ev.ChatID, name)
		switch {
		case errors.Is(err, registry.ErrGroupNotFound):
			return closed(fmt.Sprintf("Group '%s' not found.", name)), nil
		case err != nil:
			return Reply{}, err
		}
		return closed(fmt.Sprintf("Group '%s' deleted.", name)), nil
	}
	return closed(msgCancelled), nil
}

// CreateGroup handles /create_group <name>.
func (e *Engine) CreateGroup(ctx context.Context, ev Event, name string) (Reply, error) {
	multi, err := e.gate.IsMultiUserChat(ctx, ev.ChatID)
	if err != nil {
		return Reply{}, err
	}
	if !multi {
		return closed(msgGroupsOnly), nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return closed("Usage: /create_group <name>"), nil
	}

	admin, err := e.gate.IsAdmin(ctx, ev.ChatID, ev.UserID)
	if err != nil {
		return Reply{}, err
	}
	if !admin {
		return closed("Only chat admins can create groups."), nil
	}

	err = e.registry.CreateGroup(ctx, ev.ChatID, name)
	switch {
	case errors.Is(err, registry.ErrGroupLimit):
		return closed(fmt.Sprintf("A chat can have at most %d groups.", e.limit)), nil
	case errors.Is(err, registry.ErrGroupExists):
		return closed(fmt.Sprintf("Group '%s' already exists.", name)), nil
	case err != nil:
		return Reply{}, err
	}
	logger.Info(ctx, "registry", "group.create",
		slog.Int64("chat_id", ev.ChatID),
		slog.Int64("user_id", ev.UserID),
		slog.String("group", name),
	)
	return closed(fmt.Sprintf("Group '%s' created.", name)), nil
}

// ListGroups handles /list_groups.
func (e *Engine) ListGroups(ctx context.Context, ev Event) (Reply, error) {
	multi, err := e.gate.IsMultiUserChat(ctx, ev.ChatID)
	if err != nil {
		return Reply{}, err
	}
	if !multi {
		return closed(msgGroupsOnly), nil
	}

	groups, err := e.registry.ListGroups(ctx, ev.ChatID)
	if err != nil {
		return Reply{}, err
	}
	if len(groups) == 0 {
		return closed(msgNoGroups), nil
	}

	var b strings.Builder
	b.WriteString("Groups in this chat:\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "• *%s* (%d)\n", format.EscapeV1(g.Name), g.MemberCount)
	}
	reply := closed(strings.TrimRight(b.String(), "\n"))
	reply.Markdown = true
	return reply, nil
}

// TagAll handles /tag_all: it mentions every member of every group in
// the chat, minus duplicates and users who opted out.
func (e *Engine) TagAll(ctx context.Context, ev Event) (Reply, error) {
	multi, err := e.gate.IsMultiUserChat(ctx, ev.ChatID)
	if err != nil {
		return Reply{}, err
	}
	if !multi {
		return closed(msgGroupsOnly), nil
	}

	groups, err := e.registry.ListGroups(ctx, ev.ChatID)
	if err != nil {
		return Reply{}, err
	}

	seen := make(map[int64]struct{})
	var targets []int64
	for _, g := range groups {
		members, err := e.registry.GetMembers(ctx, ev.ChatID, g.Name)
		if err != nil {
			return Reply{}, err
		}
		for _, userID := range members {
			if _, ok := seen[userID]; ok {
				continue
			}
			seen[userID] = struct{}{}
			out, err := e.registry.IsOptOut(ctx, ev.ChatID, userID)
			if err != nil {
				return Reply{}, err
			}
			if out {
				continue
			}
			targets = append(targets, userID)
		}
	}
	if len(targets) == 0 {
		return closed(msgNoOneToTag), nil
	}

	mentions := mention.Collect(ctx, e.resolver, ev.ChatID, targets)
	if len(mentions) == 0 {
		return closed(msgNoOneToTag), nil
	}
	logger.Info(ctx, "dialog", "tag.all",
		slog.Int64("chat_id", ev.ChatID),
		slog.Int("mentioned", len(mentions)),
		slog.Int("skipped", len(targets)-len(mentions)),
	)
	reply := closed(strings.Join(mentions, " "))
	reply.Markdown = true
	return reply, nil
}

// OptOut handles /opt_out.
func (e *Engine) OptOut(ctx context.Context, ev Event) (Reply, error) {
	multi, err := e.gate.IsMultiUserChat(ctx, ev.ChatID)
	if err != nil {
		return Reply{}, err
	}
	if !multi {
		return closed(msgGroupsOnly), nil
	}
	if err := e.registry.SetOptOut(ctx, ev.ChatID, ev.UserID); err != nil {
		return Reply{}, err
	}
	return closed("You opted out of chat-wide tags in this chat."), nil
}

// OptIn handles /opt_in.
func (e *Engine) OptIn(ctx context.Context, ev Event) (Reply, error) {
	multi, err := e.gate.IsMultiUserChat(ctx, ev.ChatID)
	if err != nil {
		return Reply{}, err
	}
	if !multi {
		return closed(msgGroupsOnly), nil
	}
	if err := e.registry.ClearOptOut(ctx, ev.ChatID, ev.UserID); err != nil {
		return Reply{}, err
	}
	return closed("You will be included in chat-wide tags again."), nil
}
