package services

import (
	"time"

	"github.com/askloop/askloop/internal/textnorm"
)

type QuestionType string

const (
	TypeInput QuestionType = "Input"
	TypeMcq   QuestionType = "Mcq"
)

type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// Levels lists every level in display order.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

type Category string

// The category set is fixed; distributions report every category even when
// no stored question uses it.
const (
	CategoryGeneral       Category = "General"
	CategoryScience       Category = "Science"
	CategoryHistory       Category = "History"
	CategoryGeography     Category = "Geography"
	CategorySports        Category = "Sports"
	CategoryEntertainment Category = "Entertainment"
)

var Categories = []Category{
	CategoryGeneral,
	CategoryScience,
	CategoryHistory,
	CategoryGeography,
	CategorySports,
	CategoryEntertainment,
}

// Answer is a counted canonical response embedded in its question document.
type Answer struct {
	ID            string `json:"id,omitempty"`
	Text          string `json:"text"`
	ResponseCount int    `json:"response_count"`
	IsCorrect     bool   `json:"is_correct"`
	Rank          *int   `json:"rank,omitempty"`
	Score         *int   `json:"score,omitempty"`
}

// Question is the stored survey question with its embedded answers.
// ID is empty until the question has been persisted.
type Question struct {
	ID            string       `json:"id,omitempty"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Category      Category     `json:"category"`
	Level         Level        `json:"level"`
	TimesAnswered int          `json:"times_answered"`
	TimesSkipped  int          `json:"times_skipped"`
	Answers       []Answer     `json:"answers,omitempty"`
	CreatedAt     time.Time    `json:"created_at,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at,omitempty"`
}

func ValidType(t QuestionType) bool { return t == TypeInput || t == TypeMcq }

func ValidLevel(l Level) bool {
	for _, v := range Levels {
		if v == l {
			return true
		}
	}
	return false
}

func ValidCategory(c Category) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Clone deep-copies a question, including its answers and their optional
// rank/score pointers, so snapshots never alias live drafts.
func (q *Question) Clone() *Question {
	if q == nil {
		return nil
	}
	cp := *q
	if q.Answers != nil {
		cp.Answers = make([]Answer, len(q.Answers))
		for i, a := range q.Answers {
			cp.Answers[i] = a
			if a.Rank != nil {
				r := *a.Rank
				cp.Answers[i].Rank = &r
			}
			if a.Score != nil {
				sc := *a.Score
				cp.Answers[i].Score = &sc
			}
		}
	}
	return &cp
}

// ApplyAnswer folds one normalized answer into the question in place:
// a matching entry gets its count bumped, otherwise a new entry with the
// given id is appended. Stores call this inside their atomic
// increment-or-insert operation. Reports whether a new entry was added.
func ApplyAnswer(q *Question, normalized, newID string) bool {
	q.TimesAnswered++
	for i := range q.Answers {
		if textnorm.NormalizeAnswer(q.Answers[i].Text) == normalized {
			q.Answers[i].ResponseCount++
			return false
		}
	}
	q.Answers = append(q.Answers, Answer{ID: newID, Text: normalized, ResponseCount: 1})
	return true
}

// ApplySkip records an explicit skip. Answers are never touched.
func ApplySkip(q *Question) {
	q.TimesSkipped++
}
