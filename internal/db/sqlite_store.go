// Package db persists question documents in SQLite. Each question row
// embeds its answer entries as a JSON array, mirroring a document store
// with embedded sub-documents.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/askloop/askloop/internal/services"
)

type SQLiteStore struct {
	db *sql.DB
	// tallyMu serializes the increment-or-insert path so two concurrent
	// submissions to the same question never interleave their
	// read-and-write transactions.
	tallyMu sync.Mutex
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

var (
	_ services.QuestionStore  = (*SQLiteStore)(nil)
	_ services.ResponseStore  = (*SQLiteStore)(nil)
	_ services.AnalyticsStore = (*SQLiteStore)(nil)
)

func encodeAnswers(answers []services.Answer) (string, error) {
	if answers == nil {
		answers = []services.Answer{}
	}
	b, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	return string(b), nil
}

func decodeAnswers(raw string) []services.Answer {
	if strings.TrimSpace(raw) == "" {
		return []services.Answer{}
	}
	var out []services.Answer
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("sqlite store: decode answers: %v", err)
		return []services.Answer{}
	}
	return out
}

const questionColumns = "id, text, type, category, level, times_answered, times_skipped, answers, created_at, updated_at"

func scanQuestion(row interface{ Scan(...any) error }) (*services.Question, error) {
	var q services.Question
	var answers string
	err := row.Scan(&q.ID, &q.Text, &q.Type, &q.Category, &q.Level,
		&q.TimesAnswered, &q.TimesSkipped, &answers, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.Answers = decodeAnswers(answers)
	return &q, nil
}

func (s *SQLiteStore) InsertQuestions(qs []*services.Question) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range qs {
		answers, err := encodeAnswers(q.Answers)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO questions (`+questionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, q.Text, string(q.Type), string(q.Category), string(q.Level),
			q.TimesAnswered, q.TimesSkipped, answers, q.CreatedAt, q.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListQuestions() ([]*services.Question, error) {
	rows, err := s.db.Query(`SELECT ` + questionColumns + ` FROM questions ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []*services.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindByIdentity(text string, typ services.QuestionType, cat services.Category, lvl services.Level) (*services.Question, error) {
	row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions
		WHERE text = ? AND type = ? AND category = ? AND level = ?`,
		text, string(typ), string(cat), string(lvl))
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *SQLiteStore) UpdateQuestion(q *services.Question, withAnswers bool) error {
	var res sql.Result
	var err error
	if withAnswers {
		var answers string
		answers, err = encodeAnswers(q.Answers)
		if err != nil {
			return err
		}
		res, err = s.db.Exec(`UPDATE questions
			SET text = ?, type = ?, category = ?, level = ?, answers = ?, updated_at = ?
			WHERE id = ?`,
			q.Text, string(q.Type), string(q.Category), string(q.Level), answers, q.UpdatedAt, q.ID)
	} else {
		res, err = s.db.Exec(`UPDATE questions
			SET text = ?, type = ?, category = ?, level = ?, updated_at = ?
			WHERE id = ?`,
			q.Text, string(q.Type), string(q.Category), string(q.Level), q.UpdatedAt, q.ID)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrQuestionNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteQuestions(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	// Missing ids simply affect zero rows; deletes stay idempotent.
	_, err := s.db.Exec(`DELETE FROM questions WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// RecordSkip bumps the skip counter in a single statement; the increment
// happens inside the database, never as a read-modify-write round trip.
func (s *SQLiteStore) RecordSkip(questionID string) error {
	res, err := s.db.Exec(`UPDATE questions SET times_skipped = times_skipped + 1 WHERE id = ?`, questionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrQuestionNotFound
	}
	return nil
}

// RecordAnswer performs the find-matching-then-increment, else-push fold
// over the embedded answer array inside one transaction.
func (s *SQLiteStore) RecordAnswer(questionID, normalized, newID string) error {
	s.tallyMu.Lock()
	defer s.tallyMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var q services.Question
	var answers string
	err = tx.QueryRow(`SELECT times_answered, answers FROM questions WHERE id = ?`, questionID).
		Scan(&q.TimesAnswered, &answers)
	if errors.Is(err, sql.ErrNoRows) {
		return services.ErrQuestionNotFound
	}
	if err != nil {
		return err
	}
	q.Answers = decodeAnswers(answers)
	services.ApplyAnswer(&q, normalized, newID)
	encoded, err := encodeAnswers(q.Answers)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE questions SET times_answered = ?, answers = ? WHERE id = ?`,
		q.TimesAnswered, encoded, questionID); err != nil {
		return err
	}
	return tx.Commit()
}
