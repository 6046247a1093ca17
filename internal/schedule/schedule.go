// Package schedule decides whether a queue accepts tickets at a given instant.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
)

type Case string

const (
	CaseOpen               Case = "open"
	CasePaused             Case = "paused"
	CaseClosed             Case = "closed"
	CaseNotConfigured      Case = "not_configured"
	CaseClosedToday        Case = "closed_today"
	CaseHoursNotSet        Case = "hours_not_set"
	CaseMisconfigured      Case = "misconfigured"
	CaseBeforeOpening      Case = "before_opening"
	CaseAfterClosing       Case = "after_closing"
	CaseBreakMisconfigured Case = "break_misconfigured"
	CaseBreakOutsideHours  Case = "break_outside_hours"
	CaseOnBreak            Case = "on_break"
)

type Result struct {
	Operating bool   `json:"operating"`
	Case      Case   `json:"case"`
	Reason    string `json:"reason"`
}

func closed(c Case, reason string) Result {
	return Result{Case: c, Reason: reason}
}

// Evaluate reports whether q is accepting tickets at now. Weekday and time of day are read in
// loc; a nil loc means now's own location.
func Evaluate(q models.Queue, now time.Time, loc *time.Location) Result {
	switch q.Status {
	case models.QueueOpen:
	case models.QueuePaused:
		return closed(CasePaused, "queue is paused")
	default:
		return closed(CaseClosed, "queue is closed")
	}

	if !q.WorkingHours.Configured() {
		return closed(CaseNotConfigured, "working hours not configured")
	}

	if loc != nil {
		now = now.In(loc)
	}
	day := q.WorkingHours.Day(now.Weekday())
	if day == nil || !day.Enabled {
		return closed(CaseClosedToday, "closed today")
	}
	if day.Start == "" || day.End == "" {
		return closed(CaseHoursNotSet, "opening hours not set for today")
	}

	start, okStart := ParseClock(day.Start)
	end, okEnd := ParseClock(day.End)
	if !okStart || !okEnd {
		return closed(CaseMisconfigured, "working hours misconfigured")
	}

	current := now.Hour()*60 + now.Minute()
	wraps := end <= start

	switch {
	case wraps && end == 0:
		if current < start {
			return closed(CaseBeforeOpening, "opens at "+FormatClock(start))
		}
	case wraps:
		// Closed only in the gap between the early-morning tail and today's start.
		if current < start && current >= end {
			return closed(CaseAfterClosing, fmt.Sprintf("closed at %s, opens at %s", FormatClock(end), FormatClock(start)))
		}
	default:
		if current < start {
			return closed(CaseBeforeOpening, "opens at "+FormatClock(start))
		}
		if current >= end {
			return closed(CaseAfterClosing, "closed at "+FormatClock(end))
		}
	}

	if day.BreakStart != "" && day.BreakEnd != "" {
		breakStart, okBS := ParseClock(day.BreakStart)
		breakEnd, okBE := ParseClock(day.BreakEnd)
		if !okBS || !okBE || breakEnd <= breakStart {
			return closed(CaseBreakMisconfigured, "break misconfigured")
		}
		if !breakInside(start, end, breakStart, breakEnd) {
			return closed(CaseBreakOutsideHours, "break outside working hours")
		}
		if current >= breakStart && current < breakEnd {
			return closed(CaseOnBreak, "on break until "+FormatClock(breakEnd))
		}
	}

	return Result{Operating: true, Case: CaseOpen}
}

// breakInside checks [bs, be) against the window [start, end). A window ending at 00:00 never
// holds a break, since every break ends after minute zero. Any other window with end < start
// runs past midnight and the break may sit on either side of it.
func breakInside(start, end, bs, be int) bool {
	if end > start {
		return bs >= start && be <= end
	}
	if end == 0 {
		return false
	}
	return bs >= start || be <= end
}

// ParseClock parses strict "HH:MM" into minutes since midnight.
func ParseClock(value string) (int, bool) {
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || !twoDigits(hh) || !twoDigits(mm) {
		return 0, false
	}
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func twoDigits(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
