package domain

import (
	"strings"

	dErrors "drivematch/pkg/domain-errors"
)

// Weekday names a day in a provider's weekly availability.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var weekdayOrder = map[Weekday]int{
	Monday:    1,
	Tuesday:   2,
	Wednesday: 3,
	Thursday:  4,
	Friday:    5,
	Saturday:  6,
	Sunday:    7,
}

// ParseWeekday constructs a Weekday from external input, case-insensitive.
func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if !w.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid weekday %q", s)
	}
	return w, nil
}

func (w Weekday) IsValid() bool {
	_, ok := weekdayOrder[w]
	return ok
}

// Order returns 1 for monday through 7 for sunday, 0 when invalid.
func (w Weekday) Order() int { return weekdayOrder[w] }

func (w Weekday) String() string { return string(w) }
