package attendance

import (
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Event is pushed to log listeners for every attempt.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Entry is a successful mark kept in the attendance log.
type Entry struct {
	AttemptID   string `json:"attempt_id"`
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	Date        string `json:"date"`
	TimeIn      string `json:"time_in"`
	Source      string `json:"source"`
}

// Log keeps the most recent marks and broadcasts attempt events to listeners.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool

	listenersMu sync.RWMutex
	listeners   []chan Event
}

// NewLog creates a log that keeps the last size entries.
func NewLog(size int) *Log {
	if size <= 0 {
		size = constants.AttendanceLogSize
	}
	return &Log{entries: make([]Entry, size)}
}

// Append records a mark, overwriting the oldest once the log is full.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (l *Log) Recent(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := l.next
	if l.full {
		count = len(l.entries)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (l.next - i + len(l.entries)) % len(l.entries)
		out = append(out, l.entries[idx])
	}
	return out
}

// AddListener adds an event listener.
func (l *Log) AddListener() chan Event {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	l.listeners = append(l.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (l *Log) RemoveListener(ch chan Event) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	for i, listener := range l.listeners {
		if listener == ch {
			l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all listeners.
func (l *Log) Publish(event Event) {
	l.listenersMu.RLock()
	defer l.listenersMu.RUnlock()
	for _, listener := range l.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}
