package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/askloop/askloop/internal/textnorm"
)

// ResponseStore abstracts the atomic tally operations required by
// ResponseService. Both methods must be single atomic store operations:
// a read-modify-write round trip from the service would lose increments
// under concurrent submissions.
type ResponseStore interface {
	// RecordAnswer finds the answer entry matching the normalized text and
	// increments its count, or appends a new entry carrying newID with
	// count 1. Returns ErrQuestionNotFound if the question is unknown.
	RecordAnswer(questionID, normalized, newID string) error
	// RecordSkip increments the question's skip counter only.
	RecordSkip(questionID string) error
}

// ResponseService collapses raw participant submissions into counted
// canonical answer entries.
type ResponseService struct {
	store ResponseStore
	idGen func() string
}

func NewResponseService(store ResponseStore) *ResponseService {
	return &ResponseService{store: store, idGen: uuid.NewString}
}

// RecordResponse registers one participant submission. An empty or
// whitespace-only raw value is a skip and never touches answer entries.
// Unknown question identifiers surface as not_found with no mutation.
func (s *ResponseService) RecordResponse(questionID, raw string) error {
	if strings.TrimSpace(questionID) == "" {
		return NewInvalidError("question id required")
	}
	if strings.TrimSpace(raw) == "" {
		return s.wrapNotFound(s.store.RecordSkip(questionID))
	}
	normalized := textnorm.NormalizeAnswer(raw)
	return s.wrapNotFound(s.store.RecordAnswer(questionID, normalized, s.idGen()))
}

func (s *ResponseService) wrapNotFound(err error) error {
	if errors.Is(err, ErrQuestionNotFound) {
		return NewNotFoundError("question not found")
	}
	return err
}
