package calendar

import (
	"fmt"
	"sync"
	"time"

	errs "github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/webvolta/zammad/errors"
)

// Window is one working interval within a day, with boundaries in "HH:MM"
// notation, e.g. {From: "09:00", To: "17:00"}.
type Window struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Calendar defines the business hours of an organization: per weekday a list
// of working windows, interpreted in the calendar's own time zone.
type Calendar struct {
	ID            uuid.UUID
	Name          string
	TimeZone      string
	BusinessHours map[time.Weekday][]Window
}

// DefaultBusinessHours are Monday to Friday, 09:00 to 17:00. They mirror the
// business hours the admin UI seeds a new calendar with.
func DefaultBusinessHours() map[time.Weekday][]Window {
	hours := map[time.Weekday][]Window{}
	for day := time.Monday; day <= time.Friday; day++ {
		hours[day] = []Window{{From: "09:00", To: "17:00"}}
	}
	return hours
}

// IsWorkingTime returns true if the given instant falls inside one of the
// calendar's configured working windows, honoring the calendar time zone.
func (c Calendar) IsWorkingTime(instant time.Time) (bool, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return false, errs.Wrapf(err, "calendar '%s' has an invalid time zone '%s'", c.Name, c.TimeZone)
	}
	local := instant.In(loc)
	windows, ok := c.BusinessHours[local.Weekday()]
	if !ok {
		return false, nil
	}
	minuteOfDay := local.Hour()*60 + local.Minute()
	for _, w := range windows {
		from, err := parseMinuteOfDay(w.From)
		if err != nil {
			return false, err
		}
		to, err := parseMinuteOfDay(w.To)
		if err != nil {
			return false, err
		}
		if minuteOfDay >= from && minuteOfDay < to {
			return true, nil
		}
	}
	return false, nil
}

func parseMinuteOfDay(hhmm string) (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		return 0, errs.Wrapf(err, "invalid business hour boundary '%s'", hhmm)
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 {
		return 0, errs.Errorf("invalid business hour boundary '%s'", hhmm)
	}
	return hour*60 + minute, nil
}

// Capability is the business hours lookup the condition evaluator consumes.
// A failed lookup degrades to "predicate false", never a hang.
type Capability interface {
	IsWorkingTime(calendarID uuid.UUID, instant time.Time) (bool, error)
}

// InMemoryStore holds calendars in a plain map and implements Capability.
type InMemoryStore struct {
	mu        sync.RWMutex
	calendars map[uuid.UUID]Calendar
}

// Ensure InMemoryStore implements the Capability interface
var _ Capability = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty calendar store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{calendars: map[uuid.UUID]Calendar{}}
}

// Add puts the given calendar into the store, replacing a previous entry with
// the same id.
func (s *InMemoryStore) Add(c Calendar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars[c.ID] = c
}

// IsWorkingTime implements Capability.
func (s *InMemoryStore) IsWorkingTime(calendarID uuid.UUID, instant time.Time) (bool, error) {
	s.mu.RLock()
	c, ok := s.calendars[calendarID]
	s.mu.RUnlock()
	if !ok {
		return false, errors.NewNotFoundError("calendar", calendarID.String())
	}
	return c.IsWorkingTime(instant)
}
