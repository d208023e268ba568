package telegram

import (
	"errors"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

type sent struct {
	chatID int64
	text   string
	opts   *tele.SendOptions
}

type restriction struct {
	chatID, userID int64
	rights         tele.Rights
}

type fakeAPI struct {
	nextID     int
	sent       []sent
	deleted    []tele.StoredMessage
	restricted []restriction
	banned     []int64
	unbanned   []int64
	chats      map[int64]*tele.Chat
	invite     string
	inviteHits int
	admins     []tele.ChatMember
	sendErr    error
	banErr     map[int64]error
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	chatID, _ := strconv.ParseInt(to.Recipient(), 10, 64)
	s := sent{chatID: chatID, text: what.(string)}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			s.opts = so
		}
	}
	f.sent = append(f.sent, s)
	f.nextID++
	return &tele.Message{ID: f.nextID}, nil
}

func (f *fakeAPI) Delete(msg tele.Editable) error {
	id, chatID := msg.MessageSig()
	f.deleted = append(f.deleted, tele.StoredMessage{MessageID: id, ChatID: chatID})
	return nil
}

func (f *fakeAPI) Restrict(chat *tele.Chat, member *tele.ChatMember) error {
	f.restricted = append(f.restricted, restriction{chat.ID, member.User.ID, member.Rights})
	return nil
}

func (f *fakeAPI) Ban(chat *tele.Chat, _ *tele.ChatMember, _ ...bool) error {
	if err := f.banErr[chat.ID]; err != nil {
		return err
	}
	f.banned = append(f.banned, chat.ID)
	return nil
}

func (f *fakeAPI) Unban(chat *tele.Chat, _ *tele.User, _ ...bool) error {
	f.unbanned = append(f.unbanned, chat.ID)
	return nil
}

func (f *fakeAPI) ChatByID(id int64) (*tele.Chat, error) {
	chat, ok := f.chats[id]
	if !ok {
		return nil, errors.New("chat not found")
	}
	return chat, nil
}

func (f *fakeAPI) InviteLink(*tele.Chat) (string, error) {
	f.inviteHits++
	return f.invite, nil
}

func (f *fakeAPI) AdminsOf(*tele.Chat) ([]tele.ChatMember, error) {
	return f.admins, nil
}
