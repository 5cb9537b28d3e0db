// Package clock отделяет бизнес-логику планировщика от системного времени.
package clock

import (
	"sync"
	"time"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// Clock источник текущего времени.
type Clock interface {
	Now() time.Time
}

// Today календарная дата "сегодня" в часовом поясе часов.
func Today(c Clock) time.Time {
	return models.DateOf(c.Now())
}

// Real системные часы в заданном часовом поясе.
type Real struct {
	Location *time.Location
}

// Now возвращает текущее время.
func (r Real) Now() time.Time {
	if r.Location == nil {
		return time.Now()
	}
	return time.Now().In(r.Location)
}

// Fixed часы для тестов, время меняется только явно.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed создаёт часы, остановленные на now.
func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

// Now возвращает установленное время.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set переставляет часы.
func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Advance сдвигает часы вперёд на d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
