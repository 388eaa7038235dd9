// Package notify queues transient notices for the next rendered view.
package notify

import (
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice is one transient message.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// DefaultCapacity bounds the notices kept between two renders.
const DefaultCapacity = 20

// Queue is safe for concurrent use. When full, the oldest notice is dropped.
type Queue struct {
	mu    sync.Mutex
	items []Notice
	cap   int
	now   func() time.Time
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{cap: capacity, now: time.Now}
}

func (q *Queue) Success(msg string) { q.push(LevelSuccess, msg) }
func (q *Queue) Error(msg string)   { q.push(LevelError, msg) }
func (q *Queue) Info(msg string)    { q.push(LevelInfo, msg) }

// Drain returns the queued notices in order and empties the queue.
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) push(level Level, msg string) {
	if msg == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		q.items = q.items[1:]
	}
	q.items = append(q.items, Notice{Level: level, Message: msg, At: q.now().UTC()})
}
