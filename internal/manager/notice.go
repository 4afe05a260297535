package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/forscht/filedeck/pkg/filestore"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a dismissable message for the user.
type Notice struct {
	ID      uint64
	Level   Level
	Title   string
	Message string
	Time    time.Time
}

type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// NoticeQueue keeps notices until they are dismissed. When full the oldest
// notice is dropped.
type NoticeQueue struct {
	mu    sync.Mutex
	seq   uint64
	max   int
	items []Notice
}

func NewNoticeQueue(max int) *NoticeQueue {
	if max <= 0 {
		max = 20
	}
	return &NoticeQueue{max: max}
}

func (q *NoticeQueue) Notify(n Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	n.ID = q.seq
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	q.items = append(q.items, n)
	if len(q.items) > q.max {
		q.items = append([]Notice(nil), q.items[len(q.items)-q.max:]...)
	}
}

// Pending returns the notices not dismissed yet, oldest first.
func (q *NoticeQueue) Pending() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notice, len(q.items))
	copy(out, q.items)
	return out
}

func (q *NoticeQueue) Dismiss(id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			return
		}
	}
}

func (q *NoticeQueue) DismissAll() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// Count returns the number of pending notices at or above level.
func (q *NoticeQueue) Count(level Level) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := 0
	for _, n := range q.items {
		if n.Level >= level {
			count++
		}
	}
	return count
}

// userMessage turns a failed call into text fit for the user. The raw cause
// only goes to the log.
func userMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "The operation was cancelled."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The file server took too long to answer."
	}
	var reqErr *filestore.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.Status == 0:
			return "Could not reach the file server."
		case reqErr.Status == http.StatusUnauthorized || reqErr.Status == http.StatusForbidden:
			return "You are not allowed to do that. Try logging in again."
		case reqErr.Status == http.StatusNotFound:
			return "The item no longer exists."
		case reqErr.Status == http.StatusRequestEntityTooLarge:
			return "The file is larger than the server accepts."
		case reqErr.Status >= 500:
			return fmt.Sprintf("The file server ran into a problem (%d).", reqErr.Status)
		default:
			return fmt.Sprintf("The file server refused the request: %s", reqErr.Text)
		}
	}
	return "Something went wrong."
}
