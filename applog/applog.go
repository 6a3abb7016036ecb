package applog

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const maxEntries = 200

// Entry is one captured log line.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// AppLog is a logrus hook that keeps the most recent log entries in memory
// so the UI shell can show them in its diagnostics view.
type AppLog struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *AppLog {
	return &AppLog{}
}

// Levels implements the logrus hook interface.
func (a *AppLog) Levels() []log.Level {
	return log.AllLevels
}

// Fire implements the logrus hook interface.
func (a *AppLog) Fire(entry *log.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, Entry{
		Time:    entry.Time,
		Level:   entry.Level.String(),
		Message: entry.Message,
	})

	if len(a.entries) > maxEntries {
		a.entries = a.entries[len(a.entries)-maxEntries:]
	}

	return nil
}

// Entries returns a snapshot of the captured log, oldest first.
func (a *AppLog) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]Entry{}, a.entries...)
}
