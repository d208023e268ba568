package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const failureColumns = `f.id, f.chat_id, f.user_id, f.mc_answers, f.shuffle_state, f.open_ended_answer,
       f.score, f.passing_threshold, f.ai_evaluation, f.failed_at`

// ReportRepository проваленные экзамены и аудит решений по ним
type ReportRepository struct {
	db *pgxpool.Pool
}

// NewReportRepository создает новый экземпляр ReportRepository
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

// InsertExamFailure сохраняет проваленный экзамен вместе с перестановками
func (r *ReportRepository) InsertExamFailure(ctx context.Context, record model.ExamFailureRecord) (int64, error) {
	answers, err := json.Marshal(record.McAnswers)
	if err != nil {
		return 0, fmt.Errorf("failed to encode answers: %w", err)
	}
	shuffle, err := json.Marshal(record.ShuffleState)
	if err != nil {
		return 0, fmt.Errorf("failed to encode shuffle state: %w", err)
	}

	var id int64
	err = r.db.QueryRow(ctx, `
        INSERT INTO exam_failures (chat_id, user_id, mc_answers, shuffle_state, open_ended_answer,
                                   score, passing_threshold, ai_evaluation, failed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id`,
		record.ChatID, record.UserID, answers, shuffle, record.OpenEndedAnswer,
		record.Score, record.PassingThreshold, record.AiEvaluation, record.FailedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert exam failure: %w", err)
	}
	return id, nil
}

// GetExamFailure возвращает запись о провале или nil
func (r *ReportRepository) GetExamFailure(ctx context.Context, failureID int64) (*model.ExamFailureRecord, error) {
	query := `SELECT ` + failureColumns + ` FROM exam_failures f WHERE f.id = $1`
	record, err := scanFailure(r.db.QueryRow(ctx, query, failureID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get exam failure: %w", err)
	}
	return record, nil
}

// ListPending возвращает провалы без решения. chatID = 0 означает все чаты.
func (r *ReportRepository) ListPending(ctx context.Context, chatID int64, limit int) ([]model.ExamFailureRecord, error) {
	query := `
        SELECT ` + failureColumns + `
        FROM exam_failures f
        LEFT JOIN exam_failure_reviews rv ON rv.failure_id = f.id
        WHERE rv.failure_id IS NULL AND ($1::bigint = 0 OR f.chat_id = $1)
        ORDER BY f.failed_at
        LIMIT $2`

	rows, err := r.db.Query(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending failures: %w", err)
	}
	defer rows.Close()

	var records []model.ExamFailureRecord
	for rows.Next() {
		record, err := scanFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exam failure: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exam failures: %w", err)
	}
	return records, nil
}

// GetReview возвращает решение по провалу или nil
func (r *ReportRepository) GetReview(ctx context.Context, failureID int64) (*model.ExamReview, error) {
	var review model.ExamReview
	err := r.db.QueryRow(ctx, `
        SELECT failure_id, action, actor_id, actor_name, reason, reviewed_at
        FROM exam_failure_reviews
        WHERE failure_id = $1`, failureID).
		Scan(&review.FailureID, &review.Action, &review.Actor.ID, &review.Actor.Name, &review.Reason, &review.ReviewedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &review, nil
}

// InsertReview добавляет запись аудита. На один провал допускается одно решение.
func (r *ReportRepository) InsertReview(ctx context.Context, review model.ExamReview) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO exam_failure_reviews (failure_id, action, actor_id, actor_name, reason, reviewed_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		review.FailureID, review.Action, review.Actor.ID, review.Actor.Name, review.Reason, review.ReviewedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func scanFailure(row pgx.Row) (*model.ExamFailureRecord, error) {
	var (
		record           model.ExamFailureRecord
		answers, shuffle []byte
		aiEvaluation     *string
	)
	err := row.Scan(&record.ID, &record.ChatID, &record.UserID, &answers, &shuffle, &record.OpenEndedAnswer,
		&record.Score, &record.PassingThreshold, &aiEvaluation, &record.FailedAt)
	if err != nil {
		return nil, err
	}
	if aiEvaluation != nil {
		record.AiEvaluation = *aiEvaluation
	}

	record.McAnswers = model.McAnswers{}
	record.ShuffleState = model.Permutations{}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &record.McAnswers); err != nil {
			return nil, fmt.Errorf("failed to decode answers: %w", err)
		}
	}
	if len(shuffle) > 0 {
		if err := json.Unmarshal(shuffle, &record.ShuffleState); err != nil {
			return nil, fmt.Errorf("failed to decode shuffle state: %w", err)
		}
	}
	return &record, nil
}
