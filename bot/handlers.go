// Package bot binds the dialog engine to the Telegram transport.
package bot

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/vkazmirchuk/tagmate/bot/dialog"
	"github.com/vkazmirchuk/tagmate/bot/gate"
	"github.com/vkazmirchuk/tagmate/bot/mention"
	"github.com/vkazmirchuk/tagmate/bot/registry"
	"github.com/vkazmirchuk/tagmate/core/telegram/commands"
	tghelpers "github.com/vkazmirchuk/tagmate/core/telegram/helpers"
	"github.com/vkazmirchuk/tagmate/core/telegram/keyboard"
	"github.com/vkazmirchuk/tagmate/core/telegram/state"
)

const (
	msgFailure = "Something went wrong. Please try again later."

	msgWelcome = "Hi! I manage tag groups in this chat. Use /help to see what I can do."

	msgHelp = `Available commands:
/create_group <name> - create a tag group (admins only)
/list_groups - list the groups in this chat
/join_group - join a group
/leave_group - leave a group
/tag_group - mention everyone in a group
/tag_all - mention everyone in every group
/delete_group - delete a group (admins only)
/opt_out - stop being mentioned by /tag_all
/opt_in - be mentioned by /tag_all again`
)

// Handlers owns the command handlers and dialog continuations. The
// platform-facing collaborators need a live bot, so construction happens
// in two phases: NewHandlers first, then Bind once the bot exists.
type Handlers struct {
	registry    registry.Registry
	sessions    state.Manager
	cancelLabel string
	limit       int

	engine *dialog.Engine
}

func NewHandlers(reg registry.Registry, sessions state.Manager, cancelLabel string, limit int) *Handlers {
	return &Handlers{
		registry:    reg,
		sessions:    sessions,
		cancelLabel: cancelLabel,
		limit:       limit,
	}
}

// Bind builds the engine against the live bot and registers the dialog
// continuation handlers. Must run before updates start flowing.
func (h *Handlers) Bind(api *tele.Bot) {
	g := gate.NewTelegram(api)
	r := mention.NewTelegram(api)
	h.bind(dialog.NewEngine(h.registry, g, r, h.cancelLabel, h.limit))
}

func (h *Handlers) bind(engine *dialog.Engine) {
	h.engine = engine
	for _, st := range dialog.Steps() {
		h.sessions.Bind(st, h.continuation(st))
	}
}

// Commands lists everything to register with the command registry.
func (h *Handlers) Commands() map[string]commands.Command {
	return map[string]commands.Command{
		"/start":        {Handler: h.Start, Description: "Show a short intro"},
		"/help":         {Handler: h.Help, Description: "List available commands"},
		"/create_group": {Handler: h.CreateGroup, Description: "Create a tag group (admins only)"},
		"/list_groups":  {Handler: h.ListGroups, Description: "List the tag groups in this chat"},
		"/join_group":   {Handler: h.startDialog(dialog.ActionJoin), Description: "Join a tag group"},
		"/leave_group":  {Handler: h.startDialog(dialog.ActionLeave), Description: "Leave a tag group"},
		"/tag_group":    {Handler: h.startDialog(dialog.ActionTag), Description: "Mention everyone in a group"},
		"/delete_group": {Handler: h.startDialog(dialog.ActionDelete), Description: "Delete a tag group (admins only)"},
		"/tag_all":      {Handler: h.TagAll, Description: "Mention everyone in every group"},
		"/opt_out":      {Handler: h.OptOut, Description: "Stop being mentioned by /tag_all"},
		"/opt_in":       {Handler: h.OptIn, Description: "Be mentioned by /tag_all again"},
	}
}

func eventFrom(c tele.Context) dialog.Event {
	ev := dialog.Event{Text: c.Text()}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if sender := c.Sender(); sender != nil {
		ev.UserID = sender.ID
	}
	return ev
}

func (h *Handlers) send(c tele.Context, reply dialog.Reply) error {
	if reply.Markdown {
		if reply.RemoveKeyboard {
			return tghelpers.SendMD(c, reply.Text, keyboard.RemoveKeyboard())
		}
		return tghelpers.SendMD(c, reply.Text)
	}
	opts := &tele.SendOptions{}
	switch {
	case len(reply.Options) > 0:
		opts.ReplyMarkup = keyboard.ChoiceKeyboard(reply.Options, 1)
	case reply.RemoveKeyboard:
		opts.ReplyMarkup = keyboard.RemoveKeyboard()
	default:
		return tghelpers.SendText(c, reply.Text)
	}
	return tghelpers.SendText(c, reply.Text, opts)
}

// fail tells the user something broke and surfaces the error to the
// router for logging.
func (h *Handlers) fail(c tele.Context, err error) error {
	_ = tghelpers.SendText(c, msgFailure, &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()})
	return err
}

func (h *Handlers) startDialog(action dialog.Action) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		reply, next, err := h.engine.Start(ctx, action, eventFrom(c))
		if err != nil {
			// A failed entry point opens nothing and leaves any previously
			// open session untouched; replacement happens only on success.
			return h.fail(c, err)
		}
		// SetState with StateIdle closes any open session; otherwise a new
		// session replaces the old one (last writer wins).
		h.sessions.SetState(state.KeyFor(c), next)
		return h.send(c, reply)
	}
}

func (h *Handlers) continuation(st state.State) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		// One answer per session: the dialog closes whatever the outcome.
		h.sessions.ClearState(state.KeyFor(c))
		reply, err := h.engine.Resolve(ctx, st, eventFrom(c))
		if err != nil {
			return h.fail(c, err)
		}
		return h.send(c, reply)
	}
}

func (h *Handlers) oneShot(run func(ctx context.Context, ev dialog.Event) (dialog.Reply, error)) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		reply, err := run(ctx, eventFrom(c))
		if err != nil {
			return h.fail(c, err)
		}
		return h.send(c, reply)
	}
}

func (h *Handlers) Start(c tele.Context) error {
	return tghelpers.SendText(c, msgWelcome)
}

func (h *Handlers) Help(c tele.Context) error {
	return tghelpers.SendText(c, msgHelp)
}

func (h *Handlers) CreateGroup(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	name := strings.Join(c.Args(), " ")
	reply, err := h.engine.CreateGroup(ctx, eventFrom(c), name)
	if err != nil {
		return h.fail(c, err)
	}
	return h.send(c, reply)
}

func (h *Handlers) ListGroups(c tele.Context) error {
	return h.oneShot(h.engine.ListGroups)(c)
}

func (h *Handlers) TagAll(c tele.Context) error {
	return h.oneShot(h.engine.TagAll)(c)
}

func (h *Handlers) OptOut(c tele.Context) error {
	return h.oneShot(h.engine.OptOut)(c)
}

func (h *Handlers) OptIn(c tele.Context) error {
	return h.oneShot(h.engine.OptIn)(c)
}
