package service

import (
	"context"
	"errors"
	"testing"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

type memUsers struct {
	users map[[2]int64]model.ChatUser
	err   error
}

func (m *memUsers) UpsertPending(_ context.Context, u model.ChatUser) error {
	if m.err != nil {
		return m.err
	}
	u.Status = model.UserStatusPending
	m.users[[2]int64{u.ChatID, u.UserID}] = u
	return nil
}

func (m *memUsers) GetChatUser(_ context.Context, chatID, userID int64) (*model.ChatUser, error) {
	u, ok := m.users[[2]int64{chatID, userID}]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func TestRegisterJoin(t *testing.T) {
	repo := &memUsers{users: map[[2]int64]model.ChatUser{
		{-1, 2}: {ChatID: -1, UserID: 2, Status: model.UserStatusBanned},
	}}
	svc := NewUserService(repo)

	ok, err := svc.RegisterJoin(context.Background(), model.ChatUser{ChatID: -1, UserID: 1, Username: "gopher"})
	if err != nil || !ok {
		t.Fatalf("новый участник: ok=%v err=%v", ok, err)
	}
	if repo.users[[2]int64{-1, 1}].Status != model.UserStatusPending {
		t.Errorf("статус = %s", repo.users[[2]int64{-1, 1}].Status)
	}

	ok, err = svc.RegisterJoin(context.Background(), model.ChatUser{ChatID: -1, UserID: 2})
	if err != nil || ok {
		t.Fatalf("заблокированный участник: ok=%v err=%v", ok, err)
	}

	repo.err = errors.New("db down")
	if _, err := svc.RegisterJoin(context.Background(), model.ChatUser{ChatID: -1, UserID: 3}); err == nil {
		t.Fatal("ожидалась ошибка")
	}
}
