// Package editor implements the admin-side editing session: parallel
// working sets for new drafts and persisted edits, dirty-state tracking
// against baseline snapshots, and a dispatch policy that minimizes update
// calls against the question store.
package editor

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/askloop/askloop/internal/services"
)

// Store is the question store contract the session depends on. It matches
// the QuestionService surface; the session never sees the implementation.
type Store interface {
	Create(drafts []*services.Question) ([]*services.Question, error)
	List(scope services.ListScope) ([]*services.Question, error)
	UpdateOne(q *services.Question) (*services.Question, error)
	UpdateMany(qs []*services.Question) ([]*services.Question, error)
	Delete(ids []string) error
}

// The question service is the canonical store implementation.
var _ Store = (*services.QuestionService)(nil)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

var (
	// ErrNothingToSave reports a save with an empty dirty set. Not a failure.
	ErrNothingToSave = errors.New("nothing to save")
	// ErrBusy rejects a dispatch while a save or delete is still outstanding.
	ErrBusy = errors.New("a save or delete is already in progress")
	// ErrWrongMode rejects a create submission from edit mode, which would
	// otherwise discard the edit buckets and dirty set.
	ErrWrongMode = errors.New("switch to create mode to submit new questions")
)

const defaultCacheTTL = 30 * time.Second

// Session is single-admin editing state. It exclusively owns the draft
// buckets and the dirty set; the store exclusively owns persisted
// documents. The two only communicate through the Store verbs.
type Session struct {
	store    Store
	mode     Mode
	buckets  map[services.Level][]*services.Question
	baseline map[string]*services.Question
	dirty    map[string]struct{}
	busy     bool
	cache    listCache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewSession starts in create mode with one empty slot per level.
func NewSession(store Store) *Session {
	s := &Session{
		store:    store,
		cacheTTL: defaultCacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.resetCreate()
	return s
}

func (s *Session) Mode() Mode { return s.mode }

// Drafts returns the live draft slice for a level. Callers mutate drafts
// only through Apply.
func (s *Session) Drafts(level services.Level) []*services.Question {
	return s.buckets[level]
}

// Dirty returns the identifiers currently flagged as diverged, sorted.
func (s *Session) Dirty() []string {
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SwitchToCreate discards edit state: empty create buckets, cleared dirty set.
func (s *Session) SwitchToCreate() {
	s.resetCreate()
}

// SwitchToEdit re-fetches persisted questions and re-baselines dirty
// tracking. A not_found result from the store is an empty survey, so each
// level still gets an editable placeholder slot.
func (s *Session) SwitchToEdit() error {
	questions, err := s.fetch()
	if err != nil {
		return err
	}
	s.mode = ModeEdit
	s.buckets = emptyBuckets()
	s.baseline = map[string]*services.Question{}
	s.dirty = map[string]struct{}{}
	for _, q := range questions {
		lvl := q.Level
		if !services.ValidLevel(lvl) {
			lvl = services.LevelBeginner
		}
		draft := q.Clone()
		s.buckets[lvl] = append(s.buckets[lvl], draft)
		s.baseline[q.ID] = q.Clone()
	}
	s.seedPlaceholders()
	return nil
}

// AddSlot appends an empty draft to a level bucket.
func (s *Session) AddSlot(level services.Level) error {
	if !services.ValidLevel(level) {
		return fmt.Errorf("unknown level %q", level)
	}
	s.buckets[level] = append(s.buckets[level], &services.Question{Level: level})
	return nil
}

// Apply performs one mutation on the draft at (level, index). In edit
// mode a persisted draft that now truly differs from its baseline joins
// the dirty set; mutating back to the baseline value does not remove it.
func (s *Session) Apply(level services.Level, index int, m Mutation) error {
	bucket, ok := s.buckets[level]
	if !ok || index < 0 || index >= len(bucket) {
		return fmt.Errorf("no draft at %s[%d]", level, index)
	}
	q := bucket[index]
	if mv, isMove := m.(MoveLevel); isMove {
		return s.moveLevel(level, index, mv.To)
	}
	m.apply(q)
	s.markIfDiverged(q)
	return nil
}

func (s *Session) moveLevel(from services.Level, index int, to services.Level) error {
	if !services.ValidLevel(to) {
		return fmt.Errorf("unknown level %q", to)
	}
	bucket := s.buckets[from]
	q := bucket[index]
	s.buckets[from] = append(bucket[:index], bucket[index+1:]...)
	q.Level = to
	s.buckets[to] = append(s.buckets[to], q)
	if len(s.buckets[from]) == 0 {
		s.buckets[from] = []*services.Question{{Level: from}}
	}
	// Level reassignment always dirties a persisted draft, even when the
	// draft is moved back before saving.
	if s.mode == ModeEdit && q.ID != "" {
		s.dirty[q.ID] = struct{}{}
	}
	return nil
}

func (s *Session) markIfDiverged(q *services.Question) {
	if s.mode != ModeEdit || q.ID == "" {
		return
	}
	base, ok := s.baseline[q.ID]
	if !ok {
		return
	}
	if !reflect.DeepEqual(q, base) {
		s.dirty[q.ID] = struct{}{}
	}
}

// SaveChanges dispatches the pending edits: zero dirty drafts is
// ErrNothingToSave, exactly one goes through UpdateOne, more than one
// through a single UpdateMany call. Saved identifiers leave the dirty set
// and their baselines move to the saved values, so an immediately repeated
// identical edit is not re-flagged. Returns the number of questions saved.
func (s *Session) SaveChanges() (int, error) {
	if s.busy {
		return 0, ErrBusy
	}
	s.busy = true
	defer func() { s.busy = false }()

	pending := s.dirtyDrafts()
	switch len(pending) {
	case 0:
		return 0, ErrNothingToSave
	case 1:
		updated, err := s.store.UpdateOne(pending[0])
		if err != nil {
			return 0, err
		}
		s.finalizeSaved([]*services.Question{updated})
		return 1, nil
	default:
		// The batch path still finalizes whatever subset the store managed
		// to update; failed identifiers stay dirty.
		updated, err := s.store.UpdateMany(pending)
		s.finalizeSaved(updated)
		return len(updated), err
	}
}

// SubmitNew creates every non-empty unsaved draft in one batch and reseeds
// the create buckets on success. It only dispatches from create mode;
// edit-mode state is never discarded by a submission.
func (s *Session) SubmitNew() ([]*services.Question, error) {
	if s.mode != ModeCreate {
		return nil, ErrWrongMode
	}
	if s.busy {
		return nil, ErrBusy
	}
	s.busy = true
	defer func() { s.busy = false }()

	drafts := []*services.Question{}
	for _, lvl := range services.Levels {
		for _, q := range s.buckets[lvl] {
			if q.ID == "" && q.Text != "" {
				drafts = append(drafts, q)
			}
		}
	}
	if len(drafts) == 0 {
		return nil, ErrNothingToSave
	}
	created, err := s.store.Create(drafts)
	if err != nil {
		return nil, err
	}
	s.resetCreate()
	s.cache.invalidate()
	return created, nil
}

// DeleteDraft removes the draft at (level, index), deleting it from the
// store first when it carries a persisted identifier. An emptied bucket is
// reseeded with a single placeholder so the level keeps an editable slot.
func (s *Session) DeleteDraft(level services.Level, index int) error {
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	defer func() { s.busy = false }()

	bucket, ok := s.buckets[level]
	if !ok || index < 0 || index >= len(bucket) {
		return fmt.Errorf("no draft at %s[%d]", level, index)
	}
	q := bucket[index]
	if q.ID != "" {
		if err := s.store.Delete([]string{q.ID}); err != nil {
			return err
		}
		delete(s.dirty, q.ID)
		delete(s.baseline, q.ID)
		s.cache.invalidate()
	}
	s.buckets[level] = append(bucket[:index], bucket[index+1:]...)
	if len(s.buckets[level]) == 0 {
		s.buckets[level] = []*services.Question{{Level: level}}
	}
	return nil
}

// DeleteLevel removes every draft in the level bucket with one store call
// for the persisted subset, then reseeds the placeholder.
func (s *Session) DeleteLevel(level services.Level) error {
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	defer func() { s.busy = false }()

	ids := []string{}
	for _, q := range s.buckets[level] {
		if q.ID != "" {
			ids = append(ids, q.ID)
		}
	}
	if len(ids) > 0 {
		if err := s.store.Delete(ids); err != nil {
			return err
		}
		for _, id := range ids {
			delete(s.dirty, id)
			delete(s.baseline, id)
		}
		s.cache.invalidate()
	}
	s.buckets[level] = []*services.Question{{Level: level}}
	return nil
}

func (s *Session) dirtyDrafts() []*services.Question {
	out := []*services.Question{}
	for _, lvl := range services.Levels {
		for _, q := range s.buckets[lvl] {
			if q.ID == "" {
				continue
			}
			if _, ok := s.dirty[q.ID]; ok {
				out = append(out, q)
			}
		}
	}
	return out
}

func (s *Session) finalizeSaved(updated []*services.Question) {
	if len(updated) == 0 {
		return
	}
	for _, u := range updated {
		delete(s.dirty, u.ID)
		s.baseline[u.ID] = u.Clone()
		s.replaceDraft(u)
	}
	s.cache.invalidate()
}

func (s *Session) replaceDraft(u *services.Question) {
	for lvl, bucket := range s.buckets {
		for i, q := range bucket {
			if q.ID == u.ID {
				s.buckets[lvl][i] = u.Clone()
				return
			}
		}
	}
}

func (s *Session) fetch() ([]*services.Question, error) {
	if qs, ok := s.cache.get(s.now(), s.cacheTTL); ok {
		return qs, nil
	}
	qs, err := s.store.List(services.ScopeAdmin)
	if err != nil {
		if se, ok := services.AsServiceError(err); ok && se.Code == services.ErrorNotFound {
			qs = nil
		} else {
			return nil, err
		}
	}
	s.cache.set(qs, s.now())
	return qs, nil
}

func (s *Session) resetCreate() {
	s.mode = ModeCreate
	s.buckets = emptyBuckets()
	s.baseline = map[string]*services.Question{}
	s.dirty = map[string]struct{}{}
	s.seedPlaceholders()
}

func (s *Session) seedPlaceholders() {
	for _, lvl := range services.Levels {
		if len(s.buckets[lvl]) == 0 {
			s.buckets[lvl] = []*services.Question{{Level: lvl}}
		}
	}
}

func emptyBuckets() map[services.Level][]*services.Question {
	b := map[services.Level][]*services.Question{}
	for _, lvl := range services.Levels {
		b[lvl] = []*services.Question{}
	}
	return b
}
