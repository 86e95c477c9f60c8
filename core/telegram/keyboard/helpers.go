package keyboard

import tele "gopkg.in/telebot.v4"

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a one-time reply keyboard from rows of text.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	var keyboard []tele.Row
	for _, row := range rows {
		var buttons []tele.Btn
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// ChoiceKeyboard splits a flat list of options into rows with up to n
// options per row and builds a one-time reply keyboard from them.
func ChoiceKeyboard(options []string, n int) *tele.ReplyMarkup {
	if n <= 1 {
		rows := make([][]string, 0, len(options))
		for _, opt := range options {
			rows = append(rows, []string{opt})
		}
		return ReplyButtons(rows...)
	}
	var rows [][]string
	for i := 0; i < len(options); i += n {
		end := i + n
		if end > len(options) {
			end = len(options)
		}
		rows = append(rows, options[i:end])
	}
	return ReplyButtons(rows...)
}
