package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/askloop/askloop/internal/services"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	conn, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "askloop_test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := RunMigrations(conn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	store, err := NewSQLiteStore(conn)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	return store
}

func storedQuestion(id, text string) *services.Question {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &services.Question{
		ID:        id,
		Text:      text,
		Type:      services.TypeInput,
		Category:  services.CategoryGeography,
		Level:     services.LevelBeginner,
		Answers:   []services.Answer{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInsertAndListQuestions(t *testing.T) {
	store := newTestStore(t)
	q := storedQuestion("q1", "Name a capital city")
	q.Answers = []services.Answer{{ID: "a1", Text: "paris", ResponseCount: 2, IsCorrect: true}}
	if err := store.InsertQuestions([]*services.Question{q, storedQuestion("q2", "Name a river")}); err != nil {
		t.Fatalf("InsertQuestions error: %v", err)
	}

	qs, err := store.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions error: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].ID != "q1" || qs[0].Text != "Name a capital city" {
		t.Fatalf("unexpected first question: %+v", qs[0])
	}
	// Embedded answer documents round-trip through the JSON column.
	if len(qs[0].Answers) != 1 || qs[0].Answers[0].ResponseCount != 2 || !qs[0].Answers[0].IsCorrect {
		t.Fatalf("unexpected answers: %+v", qs[0].Answers)
	}
	if len(qs[1].Answers) != 0 {
		t.Fatalf("expected empty answer list, got %+v", qs[1].Answers)
	}
}

func TestFindByIdentity(t *testing.T) {
	store := newTestStore(t)
	if err := store.InsertQuestions([]*services.Question{storedQuestion("q1", "Name a metal")}); err != nil {
		t.Fatalf("InsertQuestions error: %v", err)
	}

	found, err := store.FindByIdentity("Name a metal", services.TypeInput, services.CategoryGeography, services.LevelBeginner)
	if err != nil {
		t.Fatalf("FindByIdentity error: %v", err)
	}
	if found == nil || found.ID != "q1" {
		t.Fatalf("expected q1, got %+v", found)
	}

	// Identity is the full tuple: a different level misses.
	miss, err := store.FindByIdentity("Name a metal", services.TypeInput, services.CategoryGeography, services.LevelAdvanced)
	if err != nil {
		t.Fatalf("FindByIdentity error: %v", err)
	}
	if miss != nil {
		t.Fatalf("expected no match for different level, got %+v", miss)
	}
}

func TestRecordAnswerMergeAndInsert(t *testing.T) {
	store := newTestStore(t)
	if err := store.InsertQuestions([]*services.Question{storedQuestion("q1", "Name a capital city")}); err != nil {
		t.Fatalf("InsertQuestions error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.RecordAnswer("q1", "paris", "a1"); err != nil {
			t.Fatalf("RecordAnswer error: %v", err)
		}
	}
	if err := store.RecordAnswer("q1", "london", "a2"); err != nil {
		t.Fatalf("RecordAnswer error: %v", err)
	}

	qs, err := store.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions error: %v", err)
	}
	q := qs[0]
	if q.TimesAnswered != 3 {
		t.Fatalf("expected times answered 3, got %d", q.TimesAnswered)
	}
	if len(q.Answers) != 2 {
		t.Fatalf("expected 2 merged entries, got %+v", q.Answers)
	}
	if q.Answers[0].Text != "paris" || q.Answers[0].ResponseCount != 2 {
		t.Fatalf("unexpected merged entry: %+v", q.Answers[0])
	}
	if q.Answers[1].Text != "london" || q.Answers[1].ResponseCount != 1 || q.Answers[1].ID != "a2" {
		t.Fatalf("unexpected inserted entry: %+v", q.Answers[1])
	}

	if err := store.RecordAnswer("ghost", "paris", "a3"); !errors.Is(err, services.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestRecordSkip(t *testing.T) {
	store := newTestStore(t)
	if err := store.InsertQuestions([]*services.Question{storedQuestion("q1", "Name a river")}); err != nil {
		t.Fatalf("InsertQuestions error: %v", err)
	}

	if err := store.RecordSkip("q1"); err != nil {
		t.Fatalf("RecordSkip error: %v", err)
	}
	qs, err := store.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions error: %v", err)
	}
	if qs[0].TimesSkipped != 1 || qs[0].TimesAnswered != 0 {
		t.Fatalf("unexpected tallies: %+v", qs[0])
	}
	if len(qs[0].Answers) != 0 {
		t.Fatalf("skip must not touch answers: %+v", qs[0].Answers)
	}

	if err := store.RecordSkip("ghost"); !errors.Is(err, services.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestUpdateQuestionAnswerHandling(t *testing.T) {
	store := newTestStore(t)
	q := storedQuestion("q1", "Name a metal")
	q.Answers = []services.Answer{{ID: "a1", Text: "iron", ResponseCount: 5}}
	if err := store.InsertQuestions([]*services.Question{q}); err != nil {
		t.Fatalf("InsertQuestions error: %v", err)
	}

	// Without answers: text changes, stored entries survive.
	edit := q.Clone()
	edit.Text = "Name a heavy metal"
	edit.Answers = nil
	if err := store.UpdateQuestion(edit, false); err != nil {
		t.Fatalf("UpdateQuestion error: %v", err)
	}
	qs, _ := store.ListQuestions()
	if qs[0].Text != "Name a heavy metal" {
		t.Fatalf("text not updated: %q", qs[0].Text)
	}
	if len(qs[0].Answers) != 1 || qs[0].Answers[0].ResponseCount != 5 {
		t.Fatalf("answers must be preserved when not supplied: %+v", qs[0].Answers)
	}

	// With answers: the full list is replaced.
	edit = qs[0].Clone()
	edit.Answers = []services.Answer{{ID: "a2", Text: "lead", ResponseCount: 1}}
	if err := store.UpdateQuestion(edit, true); err != nil {
		t.Fatalf("UpdateQuestion error: %v", err)
	}
	qs, _ = store.ListQuestions()
	if len(qs[0].Answers) != 1 || qs[0].Answers[0].Text != "lead" {
		t.Fatalf("answers not replaced: %+v", qs[0].Answers)
	}

	ghost := storedQuestion("ghost", "Missing")
	if err := store.UpdateQuestion(ghost, false); !errors.Is(err, services.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestDeleteQuestionsIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.InsertQuestions([]*services.Question{storedQuestion("q1", "Keep"), storedQuestion("q2", "Drop")}); err != nil {
		t.Fatalf("InsertQuestions error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.DeleteQuestions([]string{"q2", "never-existed"}); err != nil {
			t.Fatalf("DeleteQuestions error: %v", err)
		}
	}
	qs, err := store.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions error: %v", err)
	}
	if len(qs) != 1 || qs[0].ID != "q1" {
		t.Fatalf("unexpected surviving questions: %+v", qs)
	}
}

// A batch holding the same identity twice must insert exactly once through
// the real store; the unique identity index backs the service-level
// exclusion rather than failing the transaction.
func TestCreateBatchWithRepeatedIdentity(t *testing.T) {
	store := newTestStore(t)
	svc := services.NewQuestionService(store)

	dup := func() *services.Question {
		return &services.Question{
			Text:     "name something heavy",
			Type:     services.TypeInput,
			Category: services.CategoryGeneral,
			Level:    services.LevelBeginner,
		}
	}
	created, err := svc.Create([]*services.Question{dup(), dup()})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 created, got %d", len(created))
	}
	qs, err := store.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions error: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected 1 stored row, got %d", len(qs))
	}

	// The same batch again is all-duplicates against the stored copy.
	_, err = svc.Create([]*services.Question{dup(), dup()})
	if se, ok := services.AsServiceError(err); !ok || se.Code != services.ErrorConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}
