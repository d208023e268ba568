package telegram

import (
	"context"
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestRestrictAndRestore(t *testing.T) {
	api := &fakeAPI{}
	m := NewChatModerator(api, nil)
	ctx := context.Background()

	if err := m.RestrictNewcomer(ctx, -1, 7); err != nil {
		t.Fatalf("RestrictNewcomer: %v", err)
	}
	if err := m.RestorePermissions(ctx, -1, 7); err != nil {
		t.Fatalf("RestorePermissions: %v", err)
	}

	if len(api.restricted) != 2 {
		t.Fatalf("restricted = %d", len(api.restricted))
	}
	newcomer, restored := api.restricted[0].rights, api.restricted[1].rights
	if !newcomer.CanSendMessages {
		t.Error("новичок должен иметь возможность ответить текстом")
	}
	if newcomer.CanSendOther || newcomer.CanSendPolls || newcomer.CanAddPreviews {
		t.Errorf("новичку разрешено лишнее: %+v", newcomer)
	}
	if !restored.CanSendMessages || !restored.CanSendOther {
		t.Errorf("после одобрения права должны вернуться: %+v", restored)
	}
}

func TestKickIsBanThenUnban(t *testing.T) {
	api := &fakeAPI{}
	m := NewChatModerator(api, nil)

	if err := m.KickFromChat(context.Background(), -1, 7); err != nil {
		t.Fatalf("KickFromChat: %v", err)
	}
	if len(api.banned) != 1 || len(api.unbanned) != 1 {
		t.Errorf("banned = %v, unbanned = %v", api.banned, api.unbanned)
	}
}

func TestBanUserCoversManagedChats(t *testing.T) {
	api := &fakeAPI{banErr: map[int64]error{-3: errors.New("not admin")}}
	m := NewChatModerator(api, func() []int64 { return []int64{-1, -2, -3} })

	if err := m.BanUser(context.Background(), -1, 7); err != nil {
		t.Fatalf("BanUser: %v", err)
	}
	if len(api.banned) != 2 || api.banned[0] != -1 || api.banned[1] != -2 {
		t.Errorf("banned = %v", api.banned)
	}
	if len(api.unbanned) != 0 {
		t.Error("бан не должен сниматься")
	}
}

func TestBanUserFailsOnOriginChat(t *testing.T) {
	api := &fakeAPI{banErr: map[int64]error{-1: errors.New("not admin")}}
	m := NewChatModerator(api, func() []int64 { return []int64{-1, -2} })

	if err := m.BanUser(context.Background(), -1, 7); err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if len(api.banned) != 0 {
		t.Errorf("другие чаты не должны затрагиваться: %v", api.banned)
	}
}

func TestReturnLink(t *testing.T) {
	api := &fakeAPI{
		chats: map[int64]*tele.Chat{
			-1: {ID: -1, Username: "gophers"},
			-2: {ID: -2},
		},
		invite: "https://t.me/+secret",
	}
	m := NewChatModerator(api, nil)
	ctx := context.Background()

	link, err := m.ReturnLink(ctx, -1)
	if err != nil || link != "https://t.me/gophers" {
		t.Errorf("public link = %q, %v", link, err)
	}

	for i := 0; i < 2; i++ {
		link, err = m.ReturnLink(ctx, -2)
		if err != nil || link != "https://t.me/+secret" {
			t.Errorf("invite link = %q, %v", link, err)
		}
	}
	if api.inviteHits != 1 {
		t.Errorf("ссылка должна кешироваться, запросов: %d", api.inviteHits)
	}

	if _, err := m.ReturnLink(ctx, -404); err == nil {
		t.Error("ожидалась ошибка для неизвестного чата")
	}
}

func TestIsAdmin(t *testing.T) {
	api := &fakeAPI{admins: []tele.ChatMember{{User: &tele.User{ID: 1}}, {User: &tele.User{ID: 2}}}}
	m := NewChatModerator(api, nil)

	ok, err := m.IsAdmin(context.Background(), -1, 2)
	if err != nil || !ok {
		t.Errorf("IsAdmin(2) = %v, %v", ok, err)
	}
	ok, _ = m.IsAdmin(context.Background(), -1, 3)
	if ok {
		t.Error("пользователь 3 не администратор")
	}
}
