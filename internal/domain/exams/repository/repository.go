package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, chat_id, user_id, created_at, expires_at, current_question_index,
       mc_answers, shuffle_state, open_ended_answer`

// SessionRepository хранит сессии экзаменов в PostgreSQL
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository создает новый экземпляр SessionRepository
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession создает сессию. Просроченная сессия той же пары удаляется,
// новая попытка всегда получает новый id. Активная сессия приводит к model.ErrActiveSession.
func (r *SessionRepository) CreateSession(ctx context.Context, chatID, userID int64, createdAt, expiresAt time.Time) (*model.ExamSession, error) {
	var session *model.ExamSession
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            DELETE FROM exam_sessions
            WHERE chat_id = $1 AND user_id = $2 AND expires_at <= $3`, chatID, userID, createdAt)
		if err != nil {
			return fmt.Errorf("failed to drop expired exam session: %w", err)
		}

		query := `
            INSERT INTO exam_sessions (chat_id, user_id, created_at, expires_at)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (chat_id, user_id) DO NOTHING
            RETURNING ` + sessionColumns
		session, err = scanSession(tx.QueryRow(ctx, query, chatID, userID, createdAt, expiresAt))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrActiveSession
		}
		return nil, fmt.Errorf("failed to create exam session: %w", err)
	}
	return session, nil
}

// GetByID возвращает сессию или nil, если ее нет
func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*model.ExamSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM exam_sessions WHERE id = $1`
	return r.getOne(ctx, query, sessionID)
}

// GetByChatAndUser возвращает сессию пользователя в чате или nil
func (r *SessionRepository) GetByChatAndUser(ctx context.Context, chatID, userID int64) (*model.ExamSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM exam_sessions WHERE chat_id = $1 AND user_id = $2`
	return r.getOne(ctx, query, chatID, userID)
}

// GetActiveForUser возвращает неистекшие сессии пользователя во всех чатах
func (r *SessionRepository) GetActiveForUser(ctx context.Context, userID int64, now time.Time) ([]model.ExamSession, error) {
	query := `SELECT ` + sessionColumns + `
        FROM exam_sessions
        WHERE user_id = $1 AND expires_at > $2
        ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exam session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exam sessions: %w", err)
	}
	return sessions, nil
}

// RecordMcAnswer записывает ответ под блокировкой строки сессии.
// Ответ применяется, только если текущий вопрос сессии равен questionIndex.
func (r *SessionRepository) RecordMcAnswer(ctx context.Context, sessionID int64, questionIndex int, letter string, perm model.Permutation) (bool, error) {
	recorded := false
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var (
			current                int
			answersRaw, shuffleRaw []byte
		)
		err := tx.QueryRow(ctx, `
            SELECT current_question_index, mc_answers, shuffle_state
            FROM exam_sessions
            WHERE id = $1
            FOR UPDATE`, sessionID).Scan(&current, &answersRaw, &shuffleRaw)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to lock exam session: %w", err)
		}
		if current != questionIndex {
			return nil
		}

		answers := model.McAnswers{}
		perms := model.Permutations{}
		if err := decodeJSON(answersRaw, &answers); err != nil {
			return err
		}
		if err := decodeJSON(shuffleRaw, &perms); err != nil {
			return err
		}
		if err := perms.Record(questionIndex, perm); err != nil {
			return fmt.Errorf("failed to record permutation: %w", err)
		}
		answers[questionIndex] = letter

		answersRaw, err = json.Marshal(answers)
		if err != nil {
			return fmt.Errorf("failed to encode answers: %w", err)
		}
		shuffleRaw, err = json.Marshal(perms)
		if err != nil {
			return fmt.Errorf("failed to encode shuffle state: %w", err)
		}

		_, err = tx.Exec(ctx, `
            UPDATE exam_sessions
            SET mc_answers = $2, shuffle_state = $3, current_question_index = $4
            WHERE id = $1`, sessionID, answersRaw, shuffleRaw, questionIndex+1)
		if err != nil {
			return fmt.Errorf("failed to update exam session: %w", err)
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record answer: %w", err)
	}
	return recorded, nil
}

// RecordOpenEndedAnswer сохраняет текстовый ответ, если он еще не сохранен
func (r *SessionRepository) RecordOpenEndedAnswer(ctx context.Context, sessionID int64, text string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		"UPDATE exam_sessions SET open_ended_answer = $2 WHERE id = $1 AND open_ended_answer IS NULL",
		sessionID, text)
	if err != nil {
		return false, fmt.Errorf("failed to record open-ended answer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteSession удаляет сессию. false означает, что ее уже удалили.
func (r *SessionRepository) DeleteSession(ctx context.Context, sessionID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM exam_sessions WHERE id = $1", sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete exam session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// HasActiveSession проверяет наличие неистекшей сессии
func (r *SessionRepository) HasActiveSession(ctx context.Context, chatID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM exam_sessions WHERE chat_id = $1 AND user_id = $2 AND expires_at > now())",
		chatID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active session: %w", err)
	}
	return exists, nil
}

// ListExpiring возвращает сроки всех сессий.
// Используется при старте, чтобы восстановить очередь таймаутов.
func (r *SessionRepository) ListExpiring(ctx context.Context) (map[int64]time.Time, error) {
	rows, err := r.db.Query(ctx, "SELECT id, expires_at FROM exam_sessions")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	deadlines := make(map[int64]time.Time)
	for rows.Next() {
		var (
			id int64
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan deadline: %w", err)
		}
		deadlines[id] = at
	}
	return deadlines, rows.Err()
}

func (r *SessionRepository) getOne(ctx context.Context, query string, args ...any) (*model.ExamSession, error) {
	session, err := scanSession(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get exam session: %w", err)
	}
	return session, nil
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	var (
		s                      model.ExamSession
		answersRaw, shuffleRaw []byte
	)
	err := row.Scan(&s.ID, &s.ChatID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.CurrentQuestionIndex,
		&answersRaw, &shuffleRaw, &s.OpenEndedAnswer)
	if err != nil {
		return nil, err
	}

	s.McAnswers = model.McAnswers{}
	s.ShuffleState = model.Permutations{}
	if err := decodeJSON(answersRaw, &s.McAnswers); err != nil {
		return nil, err
	}
	if err := decodeJSON(shuffleRaw, &s.ShuffleState); err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return nil
}
