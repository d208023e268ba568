// Package shuffle перемешивает варианты ответов детерминированно.
//
// Перестановка зависит только от пары (sessionID, questionIndex), поэтому ее
// не нужно хранить до ответа: при показе вопроса и при разборе нажатой кнопки
// она вычисляется заново и совпадает.
//
// Это не граница безопасности. Зная идентификатор сессии, перестановку может
// повторить кто угодно; перемешивание защищает только от пересылки готовых
// ответов между кандидатами.
package shuffle

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
)

// Seed возвращает зерно генератора для вопроса сессии.
// Используется и при показе вопроса, и при разборе ответа.
func Seed(sessionID int64, questionIndex int) int64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(sessionID))
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(questionIndex)))

	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return int64(h.Sum64())
}

// Generate строит перестановку Фишера-Йетса длины answerCount
func Generate(sessionID int64, questionIndex, answerCount int) model.Permutation {
	if answerCount <= 0 {
		return model.Permutation{}
	}

	perm := make(model.Permutation, answerCount)
	for i := range perm {
		perm[i] = i
	}
	if answerCount == 1 {
		return perm
	}

	rng := rand.New(rand.NewSource(Seed(sessionID, questionIndex)))
	for i := answerCount - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// Apply возвращает варианты в порядке показа
func Apply(perm model.Permutation, answers []string) []string {
	displayed := make([]string, 0, len(perm))
	for _, orig := range perm {
		if orig >= 0 && orig < len(answers) {
			displayed = append(displayed, answers[orig])
		}
	}
	return displayed
}

// Letter переводит позицию в букву кнопки: 0 -> "A"
func Letter(position int) string {
	if position < 0 || position >= model.MaxAnswersPerQuestion {
		return ""
	}
	return string(rune('A' + position))
}

// Position переводит букву обратно в позицию
func Position(letter string) (int, bool) {
	if len(letter) != 1 {
		return 0, false
	}
	c := letter[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return 0, false
	}
	return int(c - 'A'), true
}
