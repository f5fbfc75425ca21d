// Package notify holds transient user-facing notices in a bounded queue keyed by category.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Category groups notices; each category has its own bound
type Category string

const (
	// CategoryGeneric holds at most one notice; a new one replaces the old
	CategoryGeneric   Category = "generic"
	CategoryFeatured  Category = "featured"
	CategoryFallback  Category = "fallback"
	CategoryGender    Category = "gender"
	CategorySelection Category = "selection"
)

// Level is the severity shown to the user
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Action is an optional affordance attached to a notice, such as a retry
type Action struct {
	Label   string
	Command string
}

// Notice is one transient message
type Notice struct {
	ID       string
	Category Category
	Level    Level
	Message  string
	Action   *Action
	PostedAt time.Time
	TTL      time.Duration // zero means sticky until dismissed
}

// Expired reports whether the notice should no longer be shown at now
func (n Notice) Expired(now time.Time) bool {
	return n.TTL > 0 && !now.Before(n.PostedAt.Add(n.TTL))
}

// Sink receives every posted notice
type Sink interface {
	OnNotice(Notice)
}

// DefaultPerCategory bounds the non-generic categories
const DefaultPerCategory = 3

// Queue is a goroutine-safe bounded notice queue
type Queue struct {
	mu          sync.Mutex
	perCategory int
	items       map[Category][]Notice
	sink        Sink
	now         func() time.Time
}

// NewQueue creates a queue forwarding notices to sink (which may be nil)
func NewQueue(sink Sink, perCategory int) *Queue {
	if perCategory < 1 {
		perCategory = DefaultPerCategory
	}
	return &Queue{
		perCategory: perCategory,
		items:       make(map[Category][]Notice),
		sink:        sink,
		now:         time.Now,
	}
}

// SetClock replaces the time source, for tests
func (q *Queue) SetClock(now func() time.Time) {
	q.mu.Lock()
	q.now = now
	q.mu.Unlock()
}

// Post adds a notice and returns it with its id and timestamp filled in
func (q *Queue) Post(cat Category, level Level, msg string, ttl time.Duration) Notice {
	return q.PostNotice(Notice{Category: cat, Level: level, Message: msg, TTL: ttl})
}

// PostNotice adds n, enforcing the per-category bound
func (q *Queue) PostNotice(n Notice) Notice {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Category == "" {
		n.Category = CategoryGeneric
	}

	q.mu.Lock()
	if n.PostedAt.IsZero() {
		n.PostedAt = q.now()
	}
	limit := q.perCategory
	if n.Category == CategoryGeneric {
		limit = 1
	}
	list := append(q.items[n.Category], n)
	if len(list) > limit {
		list = append([]Notice(nil), list[len(list)-limit:]...)
	}
	q.items[n.Category] = list
	sink := q.sink
	q.mu.Unlock()

	if sink != nil {
		sink.OnNotice(n)
	}
	return n
}

// Active prunes expired notices and returns the rest, oldest first
func (q *Queue) Active(now time.Time) []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Notice
	for cat, list := range q.items {
		kept := list[:0]
		for _, n := range list {
			if !n.Expired(now) {
				kept = append(kept, n)
			}
		}
		if len(kept) == 0 {
			delete(q.items, cat)
			continue
		}
		q.items[cat] = kept
		out = append(out, kept...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PostedAt.Before(out[j].PostedAt)
	})
	return out
}

// Dismiss removes the notice with id and reports whether it existed
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for cat, list := range q.items {
		for i, n := range list {
			if n.ID == id {
				q.items[cat] = append(list[:i:i], list[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Clear drops every notice in cat
func (q *Queue) Clear(cat Category) {
	q.mu.Lock()
	delete(q.items, cat)
	q.mu.Unlock()
}
