package service

import (
	"testing"

	"github.com/IT-Nick/gatekeeper/internal/domain/exams/shuffle"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

func TestReplayShowsWhatUserSaw(t *testing.T) {
	cfg := mcConfig()
	const sessionID = 501

	perms := model.Permutations{}
	answers := model.McAnswers{}
	for q, question := range cfg.McQuestions {
		perm := shuffle.Generate(sessionID, q, len(question.Answers))
		_ = perms.Record(q, perm)
		original := 0
		if q == 1 {
			original = 2
		}
		pos, _ := perm.Displayed(original)
		answers[q] = shuffle.Letter(pos)
	}

	record := &model.ExamFailureRecord{McAnswers: answers, ShuffleState: perms}
	items := Replay(record, cfg)
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}

	if !items[0].Correct || items[0].ChosenAnswer != "Go" || items[0].ChosenLetter != items[0].CorrectLetter {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[1].Correct || items[1].ChosenAnswer != "Файл" {
		t.Errorf("item 1 = %+v", items[1])
	}
	for _, item := range items {
		pos, ok := shuffle.Position(item.ChosenLetter)
		if !ok || item.Choices[pos] != item.ChosenAnswer {
			t.Errorf("буква %s не указывает на %q в %v", item.ChosenLetter, item.ChosenAnswer, item.Choices)
		}
	}
}

func TestReplaySkipsQuestionsWithoutPermutation(t *testing.T) {
	cfg := mcConfig()
	record := &model.ExamFailureRecord{
		McAnswers:    model.McAnswers{0: "A"},
		ShuffleState: model.Permutations{0: {0, 1}},
	}
	// Длина перестановки не совпадает с текущим количеством ответов.
	if items := Replay(record, cfg); len(items) != 0 {
		t.Errorf("items = %+v, want none", items)
	}
	if items := Replay(nil, cfg); items != nil {
		t.Errorf("Replay(nil) = %v", items)
	}
}
