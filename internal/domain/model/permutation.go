package model

import "fmt"

// Permutation отображает позицию варианта на экране в исходный индекс ответа.
// Исходный индекс 0 всегда правильный ответ.
type Permutation []int

// Original возвращает исходный индекс ответа для показанной позиции
func (p Permutation) Original(position int) (int, bool) {
	if position < 0 || position >= len(p) {
		return 0, false
	}
	return p[position], true
}

// Displayed возвращает позицию, на которой показан исходный ответ
func (p Permutation) Displayed(original int) (int, bool) {
	for pos, orig := range p {
		if orig == original {
			return pos, true
		}
	}
	return 0, false
}

// Valid проверяет, что перестановка является биекцией на {0..n-1}
func (p Permutation) Valid() bool {
	seen := make([]bool, len(p))
	for _, orig := range p {
		if orig < 0 || orig >= len(p) || seen[orig] {
			return false
		}
		seen[orig] = true
	}
	return true
}

// Equal сравнивает перестановки поэлементно
func (p Permutation) Equal(other Permutation) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Permutations хранит перестановки по индексу вопроса.
// Запись появляется только после того, как на вопрос получен ответ.
type Permutations map[int]Permutation

// Record сохраняет перестановку для вопроса. Повторная запись той же перестановки
// допустима, другой перестановки для того же вопроса нет.
func (ps Permutations) Record(questionIndex int, p Permutation) error {
	if questionIndex < 0 {
		return fmt.Errorf("negative question index %d", questionIndex)
	}
	if !p.Valid() {
		return fmt.Errorf("invalid permutation %v for question %d", p, questionIndex)
	}
	if existing, ok := ps[questionIndex]; ok && !existing.Equal(p) {
		return fmt.Errorf("question %d already has permutation %v", questionIndex, existing)
	}
	ps[questionIndex] = p
	return nil
}

// Lookup возвращает перестановку для вопроса
func (ps Permutations) Lookup(questionIndex int) (Permutation, bool) {
	p, ok := ps[questionIndex]
	return p, ok
}

// McAnswers хранит выбранную букву (A, B, ...) по индексу вопроса
type McAnswers map[int]string
