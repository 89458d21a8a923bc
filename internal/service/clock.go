package service

import (
	"time"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

// Clock supplies the current instant and the calendar date used for
// overdue checks.
type Clock struct {
	now func() time.Time
	loc *time.Location
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{now: time.Now, loc: loc}
}

// FixedClock always reports t. Used by tests and one-off tooling.
func FixedClock(t time.Time, loc *time.Location) Clock {
	c := NewClock(loc)
	c.now = func() time.Time { return t }
	return c
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}

// Today is the current calendar date in the clock's location.
func (c Clock) Today() time.Time {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return models.DateOnly(c.Now().In(loc))
}
