package model

// Notice служебное сообщение пользователю или модераторам.
// Key - ключ локализованного шаблона, Data - его параметры.
type Notice struct {
	ChatID  int64
	Key     string
	Data    map[string]any
	Buttons []NoticeButton
}

// NoticeButton inline-кнопка под уведомлением. Text - ключ локализации.
type NoticeButton struct {
	Text string
	Data string
}
