package telegram

import (
	"fmt"
	"html"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// Mention HTML-ссылка на пользователя
func Mention(userID int64, name string) string {
	if name == "" {
		name = strconv.FormatInt(userID, 10)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

// DisplayName имя пользователя для упоминания
func DisplayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return ""
	}
}

type button struct {
	text string
	data string
}

// inlineMarkup строит клавиатуру по одной кнопке в строке
func inlineMarkup(buttons []button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	if len(buttons) == 0 {
		return markup
	}
	rows := make([]tele.Row, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, markup.Row(markup.Data(b.text, b.data)))
	}
	markup.Inline(rows...)
	return markup
}
