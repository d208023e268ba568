package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

type memSessions struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*model.ExamSession
	deletes  int
}

func newMemSessions() *memSessions {
	return &memSessions{nextID: 100, sessions: map[int64]*model.ExamSession{}}
}

func cloneSession(s *model.ExamSession) *model.ExamSession {
	c := *s
	c.McAnswers = model.McAnswers{}
	for k, v := range s.McAnswers {
		c.McAnswers[k] = v
	}
	c.ShuffleState = model.Permutations{}
	for k, v := range s.ShuffleState {
		c.ShuffleState[k] = append(model.Permutation(nil), v...)
	}
	if s.OpenEndedAnswer != nil {
		text := *s.OpenEndedAnswer
		c.OpenEndedAnswer = &text
	}
	return &c
}

func (m *memSessions) CreateSession(_ context.Context, chatID, userID int64, createdAt, expiresAt time.Time) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.ChatID != chatID || s.UserID != userID {
			continue
		}
		if !s.Expired(createdAt) {
			return nil, model.ErrActiveSession
		}
		delete(m.sessions, id)
	}
	m.nextID++
	s := &model.ExamSession{
		ID:           m.nextID,
		ChatID:       chatID,
		UserID:       userID,
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
		McAnswers:    model.McAnswers{},
		ShuffleState: model.Permutations{},
	}
	m.sessions[s.ID] = s
	return cloneSession(s), nil
}

func (m *memSessions) GetByID(_ context.Context, id int64) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (m *memSessions) GetByChatAndUser(_ context.Context, chatID, userID int64) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ChatID == chatID && s.UserID == userID {
			return cloneSession(s), nil
		}
	}
	return nil, nil
}

func (m *memSessions) GetActiveForUser(_ context.Context, userID int64, now time.Time) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.sessions {
		if s.UserID == userID && !s.Expired(now) {
			out = append(out, *cloneSession(s))
		}
	}
	return out, nil
}

func (m *memSessions) RecordMcAnswer(_ context.Context, id int64, questionIndex int, letter string, perm model.Permutation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.CurrentQuestionIndex != questionIndex {
		return false, nil
	}
	if err := s.ShuffleState.Record(questionIndex, perm); err != nil {
		return false, err
	}
	s.McAnswers[questionIndex] = letter
	s.CurrentQuestionIndex++
	return true, nil
}

func (m *memSessions) RecordOpenEndedAnswer(_ context.Context, id int64, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.OpenEndedAnswer != nil {
		return false, nil
	}
	s.OpenEndedAnswer = &text
	return true, nil
}

func (m *memSessions) DeleteSession(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false, nil
	}
	delete(m.sessions, id)
	m.deletes++
	return true, nil
}

func (m *memSessions) HasActiveSession(_ context.Context, chatID, userID int64) (bool, error) {
	s, _ := m.GetByChatAndUser(context.Background(), chatID, userID)
	return s != nil, nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type fakeEvaluator struct {
	evaluation model.Evaluation
	block      bool
	calls      int
	last       model.EvaluationRequest
}

func (f *fakeEvaluator) EvaluateAnswer(ctx context.Context, req model.EvaluationRequest) model.Evaluation {
	f.calls++
	f.last = req
	if f.block {
		<-ctx.Done()
		return model.Evaluation{Verdict: model.VerdictPass}
	}
	return f.evaluation
}

type fakeMessenger struct {
	nextID    int
	questions []QuestionPrompt
	notices   []model.Notice
	deleted   []int
	sendErr   error
	deleteErr error
	noticeErr error
	// sendFailures столько следующих SendQuestion вернут ошибку
	sendFailures int
}

func (f *fakeMessenger) SendQuestion(_ context.Context, q QuestionPrompt) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	if f.sendFailures > 0 {
		f.sendFailures--
		return 0, errors.New("telegram: bad gateway")
	}
	f.nextID++
	f.questions = append(f.questions, q)
	return f.nextID, nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return f.deleteErr
}

func (f *fakeMessenger) SendNotice(_ context.Context, n model.Notice) (int, error) {
	f.notices = append(f.notices, n)
	if f.noticeErr != nil {
		return 0, f.noticeErr
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeMessenger) lastQuestion() QuestionPrompt {
	return f.questions[len(f.questions)-1]
}

type fakeReports struct {
	records []model.ExamFailureRecord
	err     error
}

func (f *fakeReports) InsertExamFailure(_ context.Context, r model.ExamFailureRecord) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	r.ID = int64(len(f.records) + 1)
	f.records = append(f.records, r)
	return r.ID, nil
}

type fakeConfigs struct {
	cfg *model.ExamConfig
}

func (f *fakeConfigs) GetExamConfig(context.Context, int64) (*model.ExamConfig, error) {
	if f.cfg == nil {
		return nil, errors.New("no config")
	}
	return f.cfg, nil
}

type fakeDeadlines struct {
	scheduled map[int64]time.Time
	cancelled []int64
}

func (f *fakeDeadlines) Schedule(_ context.Context, id int64, at time.Time) error {
	if f.scheduled == nil {
		f.scheduled = map[int64]time.Time{}
	}
	f.scheduled[id] = at
	return nil
}

func (f *fakeDeadlines) Cancel(_ context.Context, id int64) error {
	delete(f.scheduled, id)
	f.cancelled = append(f.cancelled, id)
	return nil
}

type denyCall struct {
	chatID, userID int64
	ban            bool
	actor          model.Actor
	reason         string
}

type fakeModerator struct {
	approved   []int64
	denied     []denyCall
	approveErr string
}

func (f *fakeModerator) Approve(_ context.Context, _ int64, userID int64, _ model.Actor, _ string) model.ModerationResult {
	if f.approveErr != "" {
		return model.ModerationResult{ErrorMessage: f.approveErr}
	}
	f.approved = append(f.approved, userID)
	return model.ModerationResult{Success: true}
}

func (f *fakeModerator) Deny(_ context.Context, chatID, userID int64, ban bool, actor model.Actor, reason string) model.ModerationResult {
	f.denied = append(f.denied, denyCall{chatID, userID, ban, actor, reason})
	return model.ModerationResult{Success: true}
}

type fakeEvents struct {
	types []string
}

func (f *fakeEvents) Publish(_ context.Context, eventType string, _ any) error {
	f.types = append(f.types, eventType)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
