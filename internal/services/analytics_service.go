package services

import (
	"fmt"
	"sort"
	"strings"
)

// AnalyticsStore abstracts the read required by AnalyticsService.
type AnalyticsStore interface {
	ListQuestions() ([]*Question, error)
}

type AnalyticsService struct {
	store AnalyticsStore
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

type QuestionStats struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	AnswerCount int    `json:"answer_count"`
	SkipCount   int    `json:"skip_count"`
}

type Stats struct {
	TotalQuestions  int              `json:"total_questions"`
	TotalAnswered   int              `json:"total_answered"`
	TotalSkipped    int              `json:"total_skipped"`
	OverallSkipRate string           `json:"overall_skip_rate"`
	Leaderboard     []QuestionStats  `json:"leaderboard"`
	Questions       []QuestionStats  `json:"questions"`
	Categories      map[Category]int `json:"categories"`
	Levels          map[Level]int    `json:"levels"`
}

const leaderboardSize = 5

// Overview loads the stored questions and folds them into survey-wide
// statistics. An empty store yields zeroed stats, not an error.
func (s *AnalyticsService) Overview() (*Stats, error) {
	qs, err := s.store.ListQuestions()
	if err != nil {
		return nil, err
	}
	return ComputeStats(qs), nil
}

// ComputeStats is a pure fold over the stored documents; it performs no I/O.
func ComputeStats(questions []*Question) *Stats {
	st := &Stats{
		TotalQuestions: len(questions),
		Leaderboard:    []QuestionStats{},
		Questions:      make([]QuestionStats, 0, len(questions)),
		Categories:     map[Category]int{},
		Levels:         map[Level]int{},
	}
	for _, c := range Categories {
		st.Categories[c] = 0
	}
	for _, l := range Levels {
		st.Levels[l] = 0
	}
	for _, q := range questions {
		qs := QuestionStats{
			ID:          q.ID,
			Text:        q.Text,
			AnswerCount: answerCount(q),
			SkipCount:   q.TimesSkipped,
		}
		st.Questions = append(st.Questions, qs)
		st.TotalAnswered += qs.AnswerCount
		st.TotalSkipped += qs.SkipCount
		st.Categories[q.Category]++
		st.Levels[q.Level]++
	}
	st.OverallSkipRate = skipRate(st.TotalAnswered, st.TotalSkipped)
	st.Leaderboard = leaderboard(st.Questions)
	return st
}

// answerCount sums response counts over entries with non-empty text, so a
// stray blank entry never inflates the tally.
func answerCount(q *Question) int {
	total := 0
	for _, a := range q.Answers {
		if strings.TrimSpace(a.Text) == "" {
			continue
		}
		total += a.ResponseCount
	}
	return total
}

// skipRate reports skipped/(answered+skipped) as a one-decimal percent
// string. A zero denominator reports "0.0", never NaN.
func skipRate(answered, skipped int) string {
	total := answered + skipped
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(skipped)/float64(total)*100)
}

// leaderboard returns the top questions by answer count. The sort is
// stable so ties keep their original list order.
func leaderboard(stats []QuestionStats) []QuestionStats {
	ranked := make([]QuestionStats, len(stats))
	copy(ranked, stats)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].AnswerCount > ranked[j].AnswerCount })
	if len(ranked) > leaderboardSize {
		ranked = ranked[:leaderboardSize]
	}
	return ranked
}
