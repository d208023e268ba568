// Package telegram реализует отправку сообщений и модерацию участников через Bot API.
package telegram

import tele "gopkg.in/telebot.v4"

// API методы *tele.Bot, которыми пользуется пакет
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	Restrict(chat *tele.Chat, member *tele.ChatMember) error
	Ban(chat *tele.Chat, member *tele.ChatMember, revokeMessages ...bool) error
	Unban(chat *tele.Chat, user *tele.User, forBanned ...bool) error
	ChatByID(id int64) (*tele.Chat, error)
	InviteLink(chat *tele.Chat) (string, error)
	AdminsOf(chat *tele.Chat) ([]tele.ChatMember, error)
}

var _ API = (*tele.Bot)(nil)
