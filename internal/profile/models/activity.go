package models

import (
	"slices"
	"strings"
	"time"

	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
)

// LessonSlots are the bookable start times offered to seekers.
var LessonSlots = []string{"08:00", "09:00", "10:00", "11:00", "14:00", "15:00", "16:00", "17:00", "18:00"}

// BookingWindowDays is how many days ahead, today included, lessons may be booked.
const BookingWindowDays = 7

// CompletedSession summarizes an ended live session.
type CompletedSession struct {
	CounterpartName string        `json:"counterpart_name"`
	StartedAt       time.Time     `json:"started_at"`
	EndedAt         time.Time     `json:"ended_at"`
	Duration        time.Duration `json:"duration"`
	Rating          int           `json:"rating,omitempty"`
	Comment         string        `json:"comment,omitempty"`
}

func (p *Profile) requireSeeker() error {
	if p.Actor != id.ActorSeeker || p.Seeker == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "operation is only available to seekers")
	}
	return nil
}

// SelectProvider records the seeker's chosen candidate.
func (p *Profile) SelectProvider(snapshot ProviderSnapshot, now time.Time) error {
	if err := p.requireSeeker(); err != nil {
		return err
	}
	if snapshot.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "provider id is required")
	}
	p.Seeker.SelectedProvider = &snapshot
	p.UpdatedAt = now
	return nil
}

// ScheduleLesson books a lesson with the selected provider. date must fall
// within the booking window starting at today and slot must be one of
// LessonSlots.
func (p *Profile) ScheduleLesson(date time.Time, slot string, today time.Time) (Lesson, error) {
	if err := p.requireSeeker(); err != nil {
		return Lesson{}, err
	}
	sel := p.Seeker.SelectedProvider
	if sel == nil {
		return Lesson{}, dErrors.New(dErrors.CodePreconditionFailed, "select a provider before scheduling")
	}
	slot = strings.TrimSpace(slot)
	if !slices.Contains(LessonSlots, slot) {
		return Lesson{}, dErrors.Newf(dErrors.CodeValidation, "time slot %q is not offered", slot)
	}
	day := truncateDay(date)
	first := truncateDay(today)
	last := first.AddDate(0, 0, BookingWindowDays-1)
	if day.Before(first) || day.After(last) {
		return Lesson{}, dErrors.Newf(dErrors.CodeValidation, "lessons can be booked up to %d days ahead", BookingWindowDays)
	}
	for _, l := range p.Seeker.ScheduledLessons {
		if l.Date.Equal(day) && l.TimeSlot == slot {
			return Lesson{}, dErrors.New(dErrors.CodeConflict, "a lesson is already booked for that slot")
		}
	}

	lesson := Lesson{
		ProviderID:   sel.ID,
		ProviderName: sel.Name,
		Date:         day,
		TimeSlot:     slot,
		Price:        sel.HourlyPrice,
	}
	p.Seeker.ScheduledLessons = append(p.Seeker.ScheduledLessons, lesson)
	p.UpdatedAt = today
	return lesson, nil
}

func (p *Profile) activeSessionSlot() (**LiveSession, error) {
	switch {
	case p.Actor == id.ActorSeeker && p.Seeker != nil:
		return &p.Seeker.ActiveSession, nil
	case p.Actor == id.ActorProvider && p.Provider != nil:
		return &p.Provider.ActiveSession, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "actor type must be selected first")
	}
}

// StartLiveSession begins a lesson. Only one may be active at a time.
func (p *Profile) StartLiveSession(counterpart string, now time.Time) (LiveSession, error) {
	slot, err := p.activeSessionSlot()
	if err != nil {
		return LiveSession{}, err
	}
	if *slot != nil {
		return LiveSession{}, dErrors.New(dErrors.CodeInvariantViolation, "a live session is already active")
	}
	counterpart = strings.TrimSpace(counterpart)
	if counterpart == "" && p.Seeker != nil && p.Seeker.SelectedProvider != nil {
		counterpart = p.Seeker.SelectedProvider.Name
	}
	if counterpart == "" {
		return LiveSession{}, dErrors.New(dErrors.CodeValidation, "counterpart name is required")
	}
	ls := &LiveSession{CounterpartName: counterpart, StartedAt: now}
	*slot = ls
	p.UpdatedAt = now
	return *ls, nil
}

// EndLiveSession closes the active lesson with a 1 to 5 rating.
func (p *Profile) EndLiveSession(rating int, comment string, now time.Time) (CompletedSession, error) {
	slot, err := p.activeSessionSlot()
	if err != nil {
		return CompletedSession{}, err
	}
	if *slot == nil {
		return CompletedSession{}, dErrors.New(dErrors.CodePreconditionFailed, "no live session is active")
	}
	if rating < 1 || rating > 5 {
		return CompletedSession{}, dErrors.New(dErrors.CodeValidation, "rating must be between 1 and 5")
	}
	active := **slot
	*slot = nil
	p.UpdatedAt = now
	return CompletedSession{
		CounterpartName: active.CounterpartName,
		StartedAt:       active.StartedAt,
		EndedAt:         now,
		Duration:        now.Sub(active.StartedAt).Truncate(time.Second),
		Rating:          rating,
		Comment:         strings.TrimSpace(comment),
	}, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
