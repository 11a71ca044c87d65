package editor

import (
	"time"

	"github.com/askloop/askloop/internal/services"
)

// listCache holds the last fetched question list together with its fetch
// time. The session owns it explicitly and invalidates it on every
// mutating store call; there is no module-level singleton.
type listCache struct {
	questions []*services.Question
	fetchedAt time.Time
}

func (c *listCache) get(now time.Time, ttl time.Duration) ([]*services.Question, bool) {
	if c.questions == nil || now.Sub(c.fetchedAt) > ttl {
		return nil, false
	}
	return c.questions, true
}

func (c *listCache) set(qs []*services.Question, now time.Time) {
	c.questions = qs
	c.fetchedAt = now
}

func (c *listCache) invalidate() {
	c.questions = nil
}
