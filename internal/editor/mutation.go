package editor

import "github.com/askloop/askloop/internal/services"

// Mutation is one explicit edit applied to a draft. Using a closed set of
// operation types keeps level reassignment an explicit variant instead of
// a string-keyed field update.
type Mutation interface {
	apply(q *services.Question)
}

type SetText struct{ Text string }

func (m SetText) apply(q *services.Question) { q.Text = m.Text }

type SetType struct{ Type services.QuestionType }

func (m SetType) apply(q *services.Question) { q.Type = m.Type }

type SetCategory struct{ Category services.Category }

func (m SetCategory) apply(q *services.Question) { q.Category = m.Category }

// SetAnswers replaces the draft's full answer list.
type SetAnswers struct{ Answers []services.Answer }

func (m SetAnswers) apply(q *services.Question) {
	answers := make([]services.Answer, len(m.Answers))
	copy(answers, m.Answers)
	q.Answers = answers
}

// SetCorrect toggles the correct flag on one answer entry by id.
type SetCorrect struct {
	AnswerID string
	Correct  bool
}

func (m SetCorrect) apply(q *services.Question) {
	for i := range q.Answers {
		if q.Answers[i].ID == m.AnswerID {
			q.Answers[i].IsCorrect = m.Correct
			return
		}
	}
}

// MoveLevel rebuckets the draft under a different level. The session
// special-cases this variant: the draft moves between level buckets and a
// persisted draft is always marked dirty.
type MoveLevel struct{ To services.Level }

func (m MoveLevel) apply(q *services.Question) { q.Level = m.To }
