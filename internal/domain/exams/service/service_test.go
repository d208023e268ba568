package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/IT-Nick/gatekeeper/internal/domain/exams/shuffle"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

const (
	testChatID   int64 = -1001
	testUserID   int64 = 42
	reviewChatID int64 = -2002
)

type harness struct {
	svc       *ExamService
	sessions  *memSessions
	evaluator *fakeEvaluator
	messenger *fakeMessenger
	reports   *fakeReports
	configs   *fakeConfigs
	deadlines *fakeDeadlines
	moderator *fakeModerator
	events    *fakeEvents
	clock     *fakeClock
}

func newHarness(cfg *model.ExamConfig) *harness {
	h := &harness{
		sessions:  newMemSessions(),
		evaluator: &fakeEvaluator{evaluation: model.Evaluation{Verdict: model.VerdictPass, Reasoning: "ok"}},
		messenger: &fakeMessenger{},
		reports:   &fakeReports{},
		configs:   &fakeConfigs{cfg: cfg},
		deadlines: &fakeDeadlines{},
		moderator: &fakeModerator{},
		events:    &fakeEvents{},
		clock:     &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.svc = NewExamService(Dependencies{
		Sessions:          h.sessions,
		Evaluator:         h.evaluator,
		Messenger:         h.messenger,
		Reports:           h.reports,
		Configs:           h.configs,
		Deadlines:         h.deadlines,
		Moderator:         h.moderator,
		Events:            h.events,
		ReviewChatID:      reviewChatID,
		EvaluationTimeout: time.Second,
		Now:               h.clock.Now,
	})
	return h
}

func mcConfig() *model.ExamConfig {
	return &model.ExamConfig{
		McQuestions: []model.McQuestion{
			{Question: "Какой язык компилируется в бинарник?", Answers: []string{"Go", "Python", "Ruby", "Bash"}},
			{Question: "Что такое goroutine?", Answers: []string{"Легкий поток", "Процесс", "Файл"}},
		},
		PassingThreshold: 70,
		TimeoutSeconds:   300,
	}
}

func withOpenEnded(cfg *model.ExamConfig) *model.ExamConfig {
	cfg.OpenEndedQuestion = "Зачем вы вступаете в чат?"
	cfg.EvaluationCriteria = "Ответ по теме Go"
	cfg.GroupTopic = "Go"
	return cfg
}

func (h *harness) start(t *testing.T) *model.ExamSession {
	t.Helper()
	res, err := h.svc.StartExam(context.Background(), testChatID, testUserID, h.configs.cfg)
	if err != nil {
		t.Fatalf("StartExam вернул ошибку: %v", err)
	}
	if !res.Success || res.PromptMessageID == 0 {
		t.Fatalf("StartExam = %+v", res)
	}
	session, _ := h.sessions.GetByChatAndUser(context.Background(), testChatID, testUserID)
	if session == nil {
		t.Fatal("сессия не создана")
	}
	return session
}

// answer нажимает кнопку с правильным (correct=true) или неправильным вариантом
func (h *harness) answer(t *testing.T, sessionID int64, questionIndex int, correct bool) model.ExamAnswerResult {
	t.Helper()
	res, err := h.press(sessionID, questionIndex, correct)
	if err != nil {
		t.Fatalf("HandleMcAnswer вернул ошибку: %v", err)
	}
	return res
}

func (h *harness) press(sessionID int64, questionIndex int, correct bool) (model.ExamAnswerResult, error) {
	q := h.configs.cfg.McQuestions[questionIndex]
	perm := shuffle.Generate(sessionID, questionIndex, len(q.Answers))
	original := 0
	if !correct {
		original = 1
	}
	pos, _ := perm.Displayed(original)

	return h.svc.HandleMcAnswer(context.Background(), McAnswer{
		SessionID:     sessionID,
		QuestionIndex: questionIndex,
		AnswerIndex:   pos,
		UserID:        testUserID,
		MessageID:     len(h.messenger.questions),
	})
}

func TestStartExamRendersShuffledFirstQuestion(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)

	if len(h.messenger.questions) != 1 {
		t.Fatalf("показано вопросов: %d, want 1", len(h.messenger.questions))
	}
	q := h.messenger.lastQuestion()
	want := shuffle.Apply(shuffle.Generate(session.ID, 0, 4), h.configs.cfg.McQuestions[0].Answers)
	if strings.Join(q.Choices, "|") != strings.Join(want, "|") {
		t.Errorf("Choices = %v, want %v", q.Choices, want)
	}
	if q.Index != 0 || q.Total != 2 || q.SessionID != session.ID {
		t.Errorf("prompt = %+v", q)
	}
	if got, ok := h.deadlines.scheduled[session.ID]; !ok || !got.Equal(session.ExpiresAt) {
		t.Errorf("deadline = %v (%v), want %v", got, ok, session.ExpiresAt)
	}
	if want := h.clock.now.Add(300 * time.Second); !session.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, want)
	}
	if got := StageOf(session, h.configs.cfg, h.clock.now); got != StageInProgress {
		t.Errorf("stage = %v, want in_progress", got)
	}
}

func TestStartExamRejectsInvalidConfig(t *testing.T) {
	h := newHarness(nil)
	_, err := h.svc.StartExam(context.Background(), testChatID, testUserID, nil)
	if !errors.Is(err, model.ErrInvalidExamConfig) {
		t.Fatalf("err = %v, want ErrInvalidExamConfig", err)
	}

	cfg := mcConfig()
	cfg.OpenEndedQuestion = "Почему?"
	_, err = h.svc.StartExam(context.Background(), testChatID, testUserID, cfg)
	if !errors.Is(err, model.ErrInvalidExamConfig) {
		t.Fatalf("open-ended без критериев: err = %v", err)
	}
	if h.sessions.count() != 0 {
		t.Errorf("сессия создана для некорректной конфигурации")
	}
}

func TestStartExamDropsSessionWhenRenderFails(t *testing.T) {
	h := newHarness(mcConfig())
	h.messenger.sendErr = errors.New("telegram down")

	if _, err := h.svc.StartExam(context.Background(), testChatID, testUserID, h.configs.cfg); err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if h.sessions.count() != 0 {
		t.Errorf("сессия осталась после ошибки показа")
	}
}

func TestAllCorrectPasses(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)

	res := h.answer(t, session.ID, 0, true)
	if res.Complete || res.Passed != nil {
		t.Fatalf("после первого ответа: %+v", res)
	}
	if len(h.messenger.questions) != 2 {
		t.Fatalf("второй вопрос не показан")
	}

	res = h.answer(t, session.ID, 1, true)
	if !res.Complete || res.Passed == nil || !*res.Passed || res.SentToReview {
		t.Fatalf("итог = %+v, want passed", res)
	}
	if res.GroupChatID != testChatID {
		t.Errorf("GroupChatID = %d", res.GroupChatID)
	}
	if len(h.moderator.approved) != 1 || len(h.moderator.denied) != 0 {
		t.Errorf("approve=%d deny=%d", len(h.moderator.approved), len(h.moderator.denied))
	}
	if h.sessions.count() != 0 {
		t.Errorf("сессия не удалена")
	}
	if _, ok := h.deadlines.scheduled[session.ID]; ok {
		t.Errorf("таймаут не отменен")
	}
	if len(h.messenger.deleted) != 2 {
		t.Errorf("удалено сообщений с вопросами: %d, want 2", len(h.messenger.deleted))
	}
	if len(h.reports.records) != 0 {
		t.Errorf("записан провал при успешной сдаче")
	}
}

func TestBelowThresholdGoesToReview(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)

	h.answer(t, session.ID, 0, true)
	res := h.answer(t, session.ID, 1, false)

	if !res.Complete || res.Passed == nil || *res.Passed || !res.SentToReview {
		t.Fatalf("итог = %+v, want failed+review", res)
	}
	if len(h.reports.records) != 1 {
		t.Fatalf("записей о провале: %d", len(h.reports.records))
	}
	rec := h.reports.records[0]
	if rec.Score != 50 || rec.PassingThreshold != 70 {
		t.Errorf("score=%d threshold=%d, want 50/70", rec.Score, rec.PassingThreshold)
	}
	if len(rec.ShuffleState) != 2 {
		t.Errorf("в записи %d перестановок, want 2", len(rec.ShuffleState))
	}
	if len(h.moderator.approved)+len(h.moderator.denied) != 0 {
		t.Errorf("провал не должен сразу одобрять или удалять")
	}

	var review, pending *model.Notice
	for i := range h.messenger.notices {
		n := &h.messenger.notices[i]
		switch n.Key {
		case NoticeReviewRequest:
			review = n
		case NoticePendingReview:
			pending = n
		}
	}
	if review == nil || review.ChatID != reviewChatID {
		t.Fatalf("заявка модераторам = %+v", review)
	}
	if len(review.Buttons) != 3 || review.Buttons[2].Data != "review:ban:1" {
		t.Errorf("кнопки = %+v", review.Buttons)
	}
	if pending == nil || pending.ChatID != testChatID {
		t.Errorf("уведомление пользователю = %+v", pending)
	}
}

func TestOutOfOrderAnswerIsIgnored(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)

	for _, ans := range []McAnswer{
		{SessionID: session.ID, QuestionIndex: 1, AnswerIndex: 0, UserID: testUserID},
		{SessionID: session.ID, QuestionIndex: 0, AnswerIndex: 0, UserID: testUserID + 1},
		{SessionID: session.ID, QuestionIndex: 0, AnswerIndex: 9, UserID: testUserID},
		{SessionID: session.ID + 1000, QuestionIndex: 0, AnswerIndex: 0, UserID: testUserID},
	} {
		res, err := h.svc.HandleMcAnswer(context.Background(), ans)
		if err != nil {
			t.Fatalf("%+v: %v", ans, err)
		}
		if res.Complete || res.Passed != nil {
			t.Errorf("%+v: res = %+v, want no change", ans, res)
		}
	}

	after, _ := h.sessions.GetByID(context.Background(), session.ID)
	if after.CurrentQuestionIndex != 0 || len(after.McAnswers) != 0 {
		t.Errorf("сессия изменилась: %+v", after)
	}
	if len(h.messenger.deleted) != 0 || len(h.messenger.questions) != 1 {
		t.Errorf("были побочные эффекты: deleted=%v questions=%d", h.messenger.deleted, len(h.messenger.questions))
	}
}

func TestDuplicateAnswerIsIgnored(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)

	h.answer(t, session.ID, 0, true)
	res := h.answer(t, session.ID, 0, false)
	if res.Complete || res.Passed != nil {
		t.Fatalf("повторный ответ = %+v", res)
	}

	after, _ := h.sessions.GetByID(context.Background(), session.ID)
	if after.CurrentQuestionIndex != 1 || len(after.McAnswers) != 1 {
		t.Errorf("сессия = %+v", after)
	}
}

func TestExpiredAnswerDeletesSession(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)
	h.clock.Advance(301 * time.Second)

	res := h.answer(t, session.ID, 0, true)
	if !res.Complete || res.Passed == nil || *res.Passed || res.SentToReview {
		t.Fatalf("итог = %+v, want complete/failed/no review", res)
	}
	if h.sessions.count() != 0 {
		t.Errorf("истекшая сессия не удалена")
	}
	if len(h.moderator.denied) != 1 || h.moderator.denied[0].ban || h.moderator.denied[0].reason != ReasonTimeout {
		t.Fatalf("deny = %+v", h.moderator.denied)
	}
	if !h.moderator.denied[0].actor.IsSystem() {
		t.Errorf("actor = %v, want system", h.moderator.denied[0].actor)
	}

	// Планировщик срабатывает позже и ничего не делает.
	if err := h.svc.ExpireSession(context.Background(), session.ID); err != nil {
		t.Fatal(err)
	}
	if len(h.moderator.denied) != 1 {
		t.Errorf("таймаут выполнен дважды")
	}
	if len(h.reports.records) != 0 {
		t.Errorf("истекшая сессия не отправляется на проверку")
	}
}

func TestExpireSession(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)

	h.clock.Advance(10 * time.Second)
	if err := h.svc.ExpireSession(context.Background(), session.ID); err != nil {
		t.Fatal(err)
	}
	if h.sessions.count() != 1 || len(h.moderator.denied) != 0 {
		t.Fatalf("сессия закрыта раньше срока")
	}
	if _, ok := h.deadlines.scheduled[session.ID]; !ok {
		t.Errorf("таймаут не перепланирован")
	}

	h.clock.Advance(300 * time.Second)
	if err := h.svc.ExpireSession(context.Background(), session.ID); err != nil {
		t.Fatal(err)
	}
	if h.sessions.count() != 0 || len(h.moderator.denied) != 1 {
		t.Fatalf("sessions=%d denied=%d", h.sessions.count(), len(h.moderator.denied))
	}
	if got := h.events.types[len(h.events.types)-1]; got != "exam.expired" {
		t.Errorf("событие = %q", got)
	}
}

func TestOpenEndedFlow(t *testing.T) {
	h := newHarness(withOpenEnded(mcConfig()))
	h.configs.cfg.RequireBothToPass = true
	session := h.start(t)

	h.answer(t, session.ID, 0, true)
	res := h.answer(t, session.ID, 1, true)
	if res.Complete {
		t.Fatalf("экзамен завершен до открытого вопроса")
	}
	q := h.messenger.lastQuestion()
	if len(q.Choices) != 0 || q.Index != 2 || q.Total != 3 {
		t.Fatalf("открытый вопрос = %+v", q)
	}

	current, _ := h.sessions.GetByID(context.Background(), session.ID)
	if got := StageOf(current, h.configs.cfg, h.clock.now); got != StageAwaitingOpenEnded {
		t.Fatalf("stage = %v", got)
	}

	res, err := h.svc.HandleOpenEndedAnswer(context.Background(), testChatID, testUserID, "  Пишу на Go пять лет  ")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Complete || res.Passed == nil || !*res.Passed {
		t.Fatalf("итог = %+v", res)
	}
	if h.evaluator.last.Answer != "Пишу на Go пять лет" || h.evaluator.last.Topic != "Go" {
		t.Errorf("запрос к экзаменатору = %+v", h.evaluator.last)
	}
}

func TestOpenEndedIgnoredWhileMcInProgress(t *testing.T) {
	h := newHarness(withOpenEnded(mcConfig()))
	h.start(t)

	res, err := h.svc.HandleOpenEndedAnswer(context.Background(), testChatID, testUserID, "рано")
	if err != nil {
		t.Fatal(err)
	}
	if res.Complete || h.evaluator.calls != 0 {
		t.Fatalf("res=%+v calls=%d", res, h.evaluator.calls)
	}
}

func TestEvaluationCombination(t *testing.T) {
	tests := []struct {
		name        string
		requireBoth bool
		mcCorrect   bool
		verdict     model.Verdict
		wantPassed  bool
	}{
		{"both required, open fails", true, true, model.VerdictFail, false},
		{"both required, both pass", true, true, model.VerdictPass, true},
		{"either, mc fails, open passes", false, false, model.VerdictPass, true},
		{"either, both fail", false, false, model.VerdictFail, false},
		{"unavailable overrides perfect mc", false, true, model.VerdictUnavailable, false},
		{"unavailable with both required", true, true, model.VerdictUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(withOpenEnded(mcConfig()))
			h.configs.cfg.RequireBothToPass = tt.requireBoth
			h.evaluator.evaluation = model.Evaluation{Verdict: tt.verdict}
			session := h.start(t)

			h.answer(t, session.ID, 0, tt.mcCorrect)
			h.answer(t, session.ID, 1, tt.mcCorrect)
			res, err := h.svc.HandleOpenEndedAnswer(context.Background(), testChatID, testUserID, "ответ")
			if err != nil {
				t.Fatal(err)
			}
			if !res.Complete || res.Passed == nil || *res.Passed != tt.wantPassed {
				t.Fatalf("итог = %+v, want passed=%v", res, tt.wantPassed)
			}
			if res.SentToReview == tt.wantPassed {
				t.Errorf("SentToReview = %v", res.SentToReview)
			}
			if tt.verdict == model.VerdictUnavailable && h.reports.records[0].AiEvaluation != "evaluator unavailable" {
				t.Errorf("AiEvaluation = %q", h.reports.records[0].AiEvaluation)
			}
		})
	}
}

func TestEvaluatorTimeoutFailsClosed(t *testing.T) {
	h := newHarness(withOpenEnded(&model.ExamConfig{PassingThreshold: 50, TimeoutSeconds: 60}))
	h.evaluator.block = true
	h.svc.deps.EvaluationTimeout = 20 * time.Millisecond
	h.start(t)

	res, err := h.svc.HandleOpenEndedAnswer(context.Background(), testChatID, testUserID, "ответ")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Complete || res.Passed == nil || *res.Passed || !res.SentToReview {
		t.Fatalf("итог = %+v, want fail-closed review", res)
	}
}

func TestNotificationFailuresAreSwallowed(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)
	h.messenger.deleteErr = errors.New("message to delete not found")
	h.messenger.noticeErr = errors.New("bot was blocked by the user")

	h.answer(t, session.ID, 0, false)
	res := h.answer(t, session.ID, 1, false)
	if !res.Complete || !res.SentToReview {
		t.Fatalf("итог = %+v", res)
	}
	if len(h.reports.records) != 1 {
		t.Errorf("провал не записан")
	}
}

func TestActiveSessions(t *testing.T) {
	h := newHarness(mcConfig())
	h.start(t)

	sessions, err := h.svc.ActiveSessions(context.Background(), testUserID)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("sessions=%v err=%v", sessions, err)
	}
	active, err := h.svc.HasActiveSession(context.Background(), testChatID, testUserID)
	if err != nil || !active {
		t.Fatalf("active=%v err=%v", active, err)
	}

	h.clock.Advance(time.Hour)
	sessions, _ = h.svc.ActiveSessions(context.Background(), testUserID)
	if len(sessions) != 0 {
		t.Errorf("истекшая сессия считается активной")
	}
}

func TestFailureRecordErrorKicksUser(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)
	h.reports.err = errors.New("db down")

	h.answer(t, session.ID, 0, false)
	res, err := h.press(session.ID, 1, false)
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("err = %v, want insert error", err)
	}
	if !res.Complete || res.Passed == nil || *res.Passed || res.SentToReview {
		t.Fatalf("итог = %+v, want failed without review", res)
	}
	if len(h.reports.records) != 0 {
		t.Errorf("записей о провале: %d", len(h.reports.records))
	}
	if len(h.moderator.denied) != 1 {
		t.Fatalf("deny вызван %d раз, want 1", len(h.moderator.denied))
	}
	d := h.moderator.denied[0]
	if d.ban || d.reason != ReasonReviewUnavailable || d.actor != model.SystemActor || d.userID != testUserID {
		t.Errorf("deny = %+v", d)
	}
	for _, n := range h.messenger.notices {
		if n.Key == NoticeReviewRequest || n.Key == NoticePendingReview {
			t.Errorf("отправлено уведомление о проверке без записи: %s", n.Key)
		}
	}
	if h.sessions.count() != 0 {
		t.Errorf("сессия не удалена")
	}
}

func TestApproveFailureSendsToReview(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)
	h.moderator.approveErr = "failed to restore member: Forbidden"

	h.answer(t, session.ID, 0, true)
	res, err := h.press(session.ID, 1, true)
	if err == nil || !strings.Contains(err.Error(), "failed to approve user") {
		t.Fatalf("err = %v, want approve error", err)
	}
	if !res.Complete || res.Passed == nil || *res.Passed || !res.SentToReview {
		t.Fatalf("итог = %+v, want review", res)
	}
	if len(h.reports.records) != 1 {
		t.Fatalf("записей о провале: %d, want 1", len(h.reports.records))
	}
	rec := h.reports.records[0]
	if rec.Score != 100 || !strings.HasPrefix(rec.AiEvaluation, "approval failed: ") {
		t.Errorf("запись = %+v", rec)
	}

	var review bool
	for _, n := range h.messenger.notices {
		if n.Key == NoticeReviewRequest && n.ChatID == reviewChatID {
			review = true
		}
	}
	if !review {
		t.Errorf("заявка модераторам не отправлена")
	}
	if len(h.moderator.denied) != 0 {
		t.Errorf("сдавший экзамен удален из чата")
	}
	for _, typ := range h.events.types {
		if typ == "exam.passed" {
			t.Errorf("опубликовано exam.passed при неудачном approve")
		}
	}
}

func TestApproveAndRecordFailureReturnsBoth(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)
	h.moderator.approveErr = "failed to restore member"
	h.reports.err = errors.New("db down")

	h.answer(t, session.ID, 0, true)
	res, err := h.press(session.ID, 1, true)
	if err == nil || !strings.Contains(err.Error(), "failed to approve user") || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("err = %v", err)
	}
	if res.SentToReview {
		t.Errorf("SentToReview без записи: %+v", res)
	}
}

func TestRestartAfterExpiryGetsNewSession(t *testing.T) {
	h := newHarness(mcConfig())
	first := h.start(t)

	if _, err := h.svc.StartExam(context.Background(), testChatID, testUserID, h.configs.cfg); !errors.Is(err, model.ErrActiveSession) {
		t.Fatalf("повторный старт активной сессии: err = %v", err)
	}

	h.clock.Advance(301 * time.Second)
	second := h.start(t)

	if second.ID == first.ID {
		t.Fatalf("новая попытка получила старый id %d", first.ID)
	}
	if h.sessions.count() != 1 {
		t.Errorf("сессий: %d, want 1", h.sessions.count())
	}
	if len(h.deadlines.cancelled) != 1 || h.deadlines.cancelled[0] != first.ID {
		t.Errorf("cancelled = %v, want [%d]", h.deadlines.cancelled, first.ID)
	}
	if _, ok := h.deadlines.scheduled[second.ID]; !ok {
		t.Errorf("таймаут новой сессии не запланирован")
	}
	if len(h.events.types) == 0 || h.events.types[0] != "exam.expired" {
		t.Errorf("events = %v", h.events.types)
	}
	if len(h.moderator.denied) != 0 {
		t.Errorf("вернувшийся пользователь удален из чата")
	}

	// Старая кнопка больше ничего не меняет.
	res, err := h.press(first.ID, 0, true)
	if err != nil || res.Complete {
		t.Errorf("ответ на старую сессию: %+v, %v", res, err)
	}
}

func TestNextQuestionRenderIsRetried(t *testing.T) {
	h := newHarness(mcConfig())
	session := h.start(t)
	h.messenger.sendFailures = 1

	res := h.answer(t, session.ID, 0, true)
	if res.Complete {
		t.Fatalf("итог = %+v", res)
	}
	if len(h.messenger.questions) != 2 || h.messenger.lastQuestion().Index != 1 {
		t.Fatalf("второй вопрос не показан: %+v", h.messenger.questions)
	}

	h2 := newHarness(mcConfig())
	s2 := h2.start(t)
	h2.messenger.sendFailures = 2
	if _, err := h2.press(s2.ID, 0, true); err == nil {
		t.Errorf("ожидалась ошибка после второй неудачи")
	}
}
