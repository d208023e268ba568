package service

import (
	"math"

	"github.com/IT-Nick/gatekeeper/internal/domain/exams/shuffle"
	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

// CountCorrect считает правильные ответы. Ответ правильный, если показанная позиция
// через перестановку вопроса ведет к исходному индексу 0.
func CountCorrect(answers model.McAnswers, perms model.Permutations) (correct, total int) {
	for questionIndex, letter := range answers {
		total++

		position, ok := shuffle.Position(letter)
		if !ok {
			continue
		}
		perm, ok := perms.Lookup(questionIndex)
		if !ok {
			continue
		}
		if orig, ok := perm.Original(position); ok && orig == 0 {
			correct++
		}
	}
	return correct, total
}

// Score процент правильных ответов с округлением
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// CombineInput входные данные для итогового решения
type CombineInput struct {
	HasMc             bool
	Score             int
	Threshold         int
	HasOpenEnded      bool
	Verdict           model.Verdict
	RequireBothToPass bool
}

// Decision итоговое решение по экзамену
type Decision struct {
	McPassed     bool
	OpenPassed   bool
	Passed       bool
	Unavailable  bool
	SentToReview bool
}

// Combine объединяет результаты частей экзамена.
// Если открытый вопрос настроен, а вердикта нет, экзамен не сдан независимо от баллов.
func Combine(in CombineInput) Decision {
	d := Decision{
		McPassed:   in.HasMc && in.Score >= in.Threshold,
		OpenPassed: in.HasOpenEnded && in.Verdict == model.VerdictPass,
	}

	switch {
	case in.HasOpenEnded && in.Verdict == model.VerdictUnavailable:
		d.Unavailable = true
		d.Passed = false
	case in.HasMc && in.HasOpenEnded:
		if in.RequireBothToPass {
			d.Passed = d.McPassed && d.OpenPassed
		} else {
			d.Passed = d.McPassed || d.OpenPassed
		}
	case in.HasMc:
		d.Passed = d.McPassed
	case in.HasOpenEnded:
		d.Passed = d.OpenPassed
	}

	d.SentToReview = !d.Passed
	return d
}
