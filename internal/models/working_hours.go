package models

import "time"

// DaySchedule is one weekday's opening window. Times are "HH:MM" in the business location.
type DaySchedule struct {
	Enabled    bool   `json:"enabled"`
	Start      string `json:"start" validate:"omitempty,hhmm"`
	End        string `json:"end" validate:"omitempty,hhmm"`
	BreakStart string `json:"break_start,omitempty" validate:"omitempty,hhmm"`
	BreakEnd   string `json:"break_end,omitempty" validate:"omitempty,hhmm"`
}

type WorkingHours struct {
	Sunday    *DaySchedule `json:"sunday,omitempty"`
	Monday    *DaySchedule `json:"monday,omitempty"`
	Tuesday   *DaySchedule `json:"tuesday,omitempty"`
	Wednesday *DaySchedule `json:"wednesday,omitempty"`
	Thursday  *DaySchedule `json:"thursday,omitempty"`
	Friday    *DaySchedule `json:"friday,omitempty"`
	Saturday  *DaySchedule `json:"saturday,omitempty"`
}

func (w WorkingHours) Day(day time.Weekday) *DaySchedule {
	switch day {
	case time.Sunday:
		return w.Sunday
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	}
	return nil
}

// SetDay replaces the schedule for one weekday.
func (w *WorkingHours) SetDay(day time.Weekday, schedule *DaySchedule) {
	switch day {
	case time.Sunday:
		w.Sunday = schedule
	case time.Monday:
		w.Monday = schedule
	case time.Tuesday:
		w.Tuesday = schedule
	case time.Wednesday:
		w.Wednesday = schedule
	case time.Thursday:
		w.Thursday = schedule
	case time.Friday:
		w.Friday = schedule
	case time.Saturday:
		w.Saturday = schedule
	}
}

// Configured reports whether at least one weekday has an entry.
func (w WorkingHours) Configured() bool {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if w.Day(day) != nil {
			return true
		}
	}
	return false
}
