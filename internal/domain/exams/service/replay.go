package service

import (
	"github.com/IT-Nick/gatekeeper/internal/domain/exams/shuffle"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

// ReplayItem ответ на один вопрос так, как его видел пользователь
type ReplayItem struct {
	Index         int      `json:"index"`
	Question      string   `json:"question"`
	Choices       []string `json:"choices"`
	ChosenLetter  string   `json:"chosen_letter,omitempty"`
	ChosenAnswer  string   `json:"chosen_answer,omitempty"`
	CorrectLetter string   `json:"correct_letter,omitempty"`
	Correct       bool     `json:"correct"`
}

// Replay восстанавливает ответы проваленного экзамена по сохраненным перестановкам.
// Вопросы без перестановки (конфигурация изменилась или ответа не было) пропускаются.
func Replay(record *model.ExamFailureRecord, cfg *model.ExamConfig) []ReplayItem {
	if record == nil || cfg == nil {
		return nil
	}

	items := make([]ReplayItem, 0, len(cfg.McQuestions))
	for i, q := range cfg.McQuestions {
		perm, ok := record.ShuffleState.Lookup(i)
		if !ok || len(perm) != len(q.Answers) {
			continue
		}

		item := ReplayItem{
			Index:    i,
			Question: q.Question,
			Choices:  shuffle.Apply(perm, q.Answers),
		}
		if pos, ok := perm.Displayed(0); ok {
			item.CorrectLetter = shuffle.Letter(pos)
		}

		letter := record.McAnswers[i]
		if pos, ok := shuffle.Position(letter); ok {
			if orig, ok := perm.Original(pos); ok {
				item.ChosenLetter = shuffle.Letter(pos)
				item.ChosenAnswer = q.Answers[orig]
				item.Correct = orig == 0
			}
		}
		items = append(items, item)
	}
	return items
}
