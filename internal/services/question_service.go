package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askloop/askloop/internal/textnorm"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorBadGateway   ErrorCode = "bad_gateway"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error  { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewBadGatewayError(msg string) error {
	return &ServiceError{Code: ErrorBadGateway, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ListScope selects how much of a question is visible to the caller.
type ListScope string

const (
	// ScopeAdmin includes embedded answers and every stored field.
	ScopeAdmin ListScope = "admin"
	// ScopeParticipant omits answers so respondents cannot see tallies.
	ScopeParticipant ListScope = "participant"
)

// QuestionStore abstracts persistence operations required by QuestionService.
type QuestionStore interface {
	InsertQuestions(qs []*Question) error
	ListQuestions() ([]*Question, error)
	// FindByIdentity matches on the canonicalized text plus type, category
	// and level. Returns nil when no persisted question matches.
	FindByIdentity(text string, typ QuestionType, cat Category, lvl Level) (*Question, error)
	// UpdateQuestion replaces the mutable fields of the named question.
	// Answers are only replaced when withAnswers is true.
	UpdateQuestion(q *Question, withAnswers bool) error
	DeleteQuestions(ids []string) error
}

// ErrQuestionNotFound is returned by stores when an update or increment
// names an identifier that does not resolve.
var ErrQuestionNotFound = errors.New("question not found")

// QuestionService implements the store adapter verbs: batched create with
// duplicate rejection, scoped list, single and batched update, and
// idempotent delete.
type QuestionService struct {
	store QuestionStore
	now   func() time.Time
	idGen func() string
}

func NewQuestionService(store QuestionStore) *QuestionService {
	return &QuestionService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
	}
}

// Create persists the non-duplicate subset of the batch. A draft whose
// (text, type, category, level) identity matches a persisted question is
// silently skipped; if every draft is a duplicate the whole call fails.
func (s *QuestionService) Create(drafts []*Question) ([]*Question, error) {
	if len(drafts) == 0 {
		return nil, NewInvalidError("at least one question required")
	}
	fresh := make([]*Question, 0, len(drafts))
	accepted := map[string]struct{}{}
	for _, d := range drafts {
		if err := validateQuestion(d); err != nil {
			return nil, err
		}
		q := d.Clone()
		q.Text = textnorm.NormalizeQuestion(q.Text)
		// A repeat of an identity already accepted earlier in this batch is
		// excluded the same way a persisted duplicate is; otherwise the
		// insert would trip the unique identity index.
		key := identityKey(q)
		if _, dup := accepted[key]; dup {
			continue
		}
		existing, err := s.store.FindByIdentity(q.Text, q.Type, q.Category, q.Level)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}
		accepted[key] = struct{}{}
		q.ID = s.idGen()
		q.CreatedAt = s.now()
		q.UpdatedAt = q.CreatedAt
		if q.Answers == nil {
			q.Answers = []Answer{}
		}
		for i := range q.Answers {
			if q.Answers[i].ID == "" {
				q.Answers[i].ID = s.idGen()
			}
		}
		fresh = append(fresh, q)
	}
	if len(fresh) == 0 {
		return nil, NewConflictError("no new questions to add")
	}
	if err := s.store.InsertQuestions(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// List returns every stored question shaped for the given scope. An empty
// store surfaces as a not_found error; callers treat that as an empty
// survey, not a failure.
func (s *QuestionService) List(scope ListScope) ([]*Question, error) {
	qs, err := s.store.ListQuestions()
	if err != nil {
		return nil, err
	}
	out := make([]*Question, 0, len(qs))
	for _, q := range qs {
		if !ValidType(q.Type) {
			continue
		}
		cp := q.Clone()
		if scope == ScopeParticipant {
			cp.Answers = nil
		}
		out = append(out, cp)
	}
	if len(out) == 0 {
		return nil, NewNotFoundError("no questions found")
	}
	return out, nil
}

// UpdateOne replaces the mutable fields of a single question. Last write
// wins; there is no version token.
func (s *QuestionService) UpdateOne(q *Question) (*Question, error) {
	if q == nil || strings.TrimSpace(q.ID) == "" {
		return nil, NewInvalidError("question id required")
	}
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	cp := q.Clone()
	cp.Text = textnorm.NormalizeQuestion(cp.Text)
	cp.UpdatedAt = s.now()
	withAnswers := q.Answers != nil
	if err := s.store.UpdateQuestion(cp, withAnswers); err != nil {
		if errors.Is(err, ErrQuestionNotFound) {
			return nil, NewNotFoundError(fmt.Sprintf("question %s not found", cp.ID))
		}
		return nil, err
	}
	return cp, nil
}

// UpdateMany applies UpdateOne semantics per item without rolling back the
// batch. The successfully updated subset is always returned; a non-nil
// error reports the identifiers that failed to resolve.
func (s *QuestionService) UpdateMany(qs []*Question) ([]*Question, error) {
	if len(qs) == 0 {
		return nil, NewInvalidError("at least one question required")
	}
	updated := make([]*Question, 0, len(qs))
	var missing []string
	for _, q := range qs {
		u, err := s.UpdateOne(q)
		if err != nil {
			if se, ok := AsServiceError(err); ok && se.Code == ErrorNotFound && q != nil {
				missing = append(missing, q.ID)
				continue
			}
			return updated, err
		}
		updated = append(updated, u)
	}
	if len(missing) > 0 {
		return updated, NewNotFoundError(fmt.Sprintf("questions not found: %s", strings.Join(missing, ", ")))
	}
	return updated, nil
}

// Delete removes the named questions and their embedded answers. Unknown
// identifiers are ignored so that racing deletes stay idempotent.
func (s *QuestionService) Delete(ids []string) error {
	if len(ids) == 0 {
		return NewInvalidError("at least one question id required")
	}
	return s.store.DeleteQuestions(ids)
}

func identityKey(q *Question) string {
	return strings.Join([]string{q.Text, string(q.Type), string(q.Category), string(q.Level)}, "\x00")
}

func validateQuestion(q *Question) error {
	if q == nil {
		return NewInvalidError("question required")
	}
	if strings.TrimSpace(q.Text) == "" {
		return NewInvalidError("question text required")
	}
	if !ValidType(q.Type) {
		return NewInvalidError(fmt.Sprintf("invalid question type %q", q.Type))
	}
	if !ValidCategory(q.Category) {
		return NewInvalidError(fmt.Sprintf("invalid category %q", q.Category))
	}
	if !ValidLevel(q.Level) {
		return NewInvalidError(fmt.Sprintf("invalid level %q", q.Level))
	}
	return nil
}
