// Package issue collects non-fatal anomalies raised during a run so they can
// be reported once at the end instead of drowning the log mid-crawl.
package issue

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Category string

const (
	CategoryFailed   Category = "failed"
	CategorySuspect  Category = "suspect"
	CategoryFallback Category = "fallback"
	CategoryForced   Category = "forced"
)

// Issue is one recorded anomaly. Subject identifies the record concerned,
// Reason is the short machine-ish cause, Detail carries free-form context.
type Issue struct {
	Category Category `json:"category"`
	Subject  string   `json:"subject"`
	Reason   string   `json:"reason"`
	Detail   string   `json:"detail,omitempty"`
}

// Log is an append-only, concurrency-safe issue collector.
type Log struct {
	mu     sync.Mutex
	issues []Issue
}

func NewLog() *Log { return &Log{} }

func (l *Log) Add(category Category, subject, reason, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issues = append(l.issues, Issue{Category: category, Subject: subject, Reason: reason, Detail: detail})
}

func (l *Log) Addf(category Category, subject, reason, format string, args ...any) {
	l.Add(category, subject, reason, fmt.Sprintf(format, args...))
}

// All returns a copy of the recorded issues in insertion order.
func (l *Log) All() []Issue {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Issue, len(l.issues))
	copy(out, l.issues)
	return out
}

func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.issues)
}

func (l *Log) CountBy(category Category) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, is := range l.issues {
		if is.Category == category {
			n++
		}
	}
	return n
}

// Summary formats the first limit issues plus an overflow line when more
// were recorded.
func (l *Log) Summary(limit int) []string {
	issues := l.All()
	lines := make([]string, 0, limit+1)
	for i, is := range issues {
		if i >= limit {
			lines = append(lines, fmt.Sprintf("... and %d more", len(issues)-limit))
			break
		}
		line := fmt.Sprintf("[%s] %s: %s", is.Category, is.Subject, is.Reason)
		if is.Detail != "" {
			line += " (" + is.Detail + ")"
		}
		lines = append(lines, line)
	}
	return lines
}

// Report writes the summary through the run logger, one warning per line.
func (l *Log) Report(log *zap.Logger, limit int) {
	if l.Count() == 0 {
		return
	}
	log.Warn("run finished with issues",
		zap.Int("total", l.Count()),
		zap.Int("failed", l.CountBy(CategoryFailed)),
		zap.Int("suspect", l.CountBy(CategorySuspect)),
		zap.Int("fallback", l.CountBy(CategoryFallback)),
		zap.Int("forced", l.CountBy(CategoryForced)),
	)
	for _, line := range l.Summary(limit) {
		log.Warn(line)
	}
}
