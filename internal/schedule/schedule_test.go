package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
)

// 2026-03-02 is a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func queueWithMonday(day *models.DaySchedule) models.Queue {
	q := models.Queue{Status: models.QueueOpen}
	q.WorkingHours.SetDay(time.Monday, day)
	return q
}

func TestEvaluateOvernightWindow(t *testing.T) {
	q := queueWithMonday(&models.DaySchedule{Enabled: true, Start: "22:00", End: "02:00"})

	cases := []struct {
		name      string
		at        time.Time
		operating bool
		contains  string
	}{
		{"late evening", monday(23, 0), true, ""},
		{"after tail", monday(3, 0), false, "02:00"},
		{"early tail", monday(1, 0), true, ""},
		{"tail boundary", monday(2, 0), false, "02:00"},
		{"opening boundary", monday(22, 0), true, ""},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(q, tt.at, time.UTC)
			if got.Operating != tt.operating {
				t.Fatalf("Operating=%v, want %v (%+v)", got.Operating, tt.operating, got)
			}
			if tt.contains != "" && !strings.Contains(got.Reason, tt.contains) {
				t.Fatalf("Reason=%q, want it to contain %q", got.Reason, tt.contains)
			}
		})
	}
}

// A 22:00-02:00 window treats Monday 01:00 as open under Monday's own entry even though the
// evening segment that feeds it belongs to Sunday. Product has not confirmed this is wanted.
func TestEvaluateOvernightUsesSameDayEntryForTail(t *testing.T) {
	q := queueWithMonday(&models.DaySchedule{Enabled: true, Start: "22:00", End: "02:00"})
	q.WorkingHours.SetDay(time.Sunday, &models.DaySchedule{Enabled: false})

	got := Evaluate(q, monday(1, 30), time.UTC)
	if !got.Operating {
		t.Fatalf("expected Monday 01:30 to be operating, got %+v", got)
	}
}

func TestEvaluateMidnightEnd(t *testing.T) {
	q := queueWithMonday(&models.DaySchedule{Enabled: true, Start: "18:00", End: "00:00"})

	if got := Evaluate(q, monday(23, 59), time.UTC); !got.Operating {
		t.Fatalf("23:59 should be operating, got %+v", got)
	}
	got := Evaluate(q, monday(17, 0), time.UTC)
	if got.Operating || got.Case != CaseBeforeOpening {
		t.Fatalf("17:00 should be before opening, got %+v", got)
	}
}

func TestEvaluateMidnightEndRejectsBreak(t *testing.T) {
	q := queueWithMonday(&models.DaySchedule{
		Enabled: true, Start: "18:00", End: "00:00", BreakStart: "20:00", BreakEnd: "21:00",
	})

	got := Evaluate(q, monday(19, 0), time.UTC)
	if got.Operating || got.Case != CaseBreakOutsideHours {
		t.Fatalf("19:00 got %+v, want %s", got, CaseBreakOutsideHours)
	}
}

func TestEvaluateBreak(t *testing.T) {
	q := queueWithMonday(&models.DaySchedule{
		Enabled: true, Start: "09:00", End: "18:00", BreakStart: "13:00", BreakEnd: "14:00",
	})

	got := Evaluate(q, monday(13, 30), time.UTC)
	if got.Operating || got.Case != CaseOnBreak || got.Reason != "on break until 14:00" {
		t.Fatalf("13:30 got %+v", got)
	}
	if got := Evaluate(q, monday(12, 59), time.UTC); !got.Operating {
		t.Fatalf("12:59 got %+v", got)
	}
	if got := Evaluate(q, monday(14, 0), time.UTC); !got.Operating {
		t.Fatalf("14:00 got %+v", got)
	}
}

func TestEvaluateCases(t *testing.T) {
	normal := &models.DaySchedule{Enabled: true, Start: "09:00", End: "18:00"}

	cases := []struct {
		name  string
		queue func() models.Queue
		at    time.Time
		want  Case
	}{
		{"paused", func() models.Queue {
			q := queueWithMonday(normal)
			q.Status = models.QueuePaused
			return q
		}, monday(10, 0), CasePaused},
		{"closed", func() models.Queue {
			q := queueWithMonday(normal)
			q.Status = models.QueueClosed
			return q
		}, monday(10, 0), CaseClosed},
		{"not configured", func() models.Queue {
			return models.Queue{Status: models.QueueOpen}
		}, monday(10, 0), CaseNotConfigured},
		{"no entry today", func() models.Queue {
			q := models.Queue{Status: models.QueueOpen}
			q.WorkingHours.SetDay(time.Tuesday, normal)
			return q
		}, monday(10, 0), CaseClosedToday},
		{"disabled today", func() models.Queue {
			return queueWithMonday(&models.DaySchedule{Enabled: false, Start: "09:00", End: "18:00"})
		}, monday(10, 0), CaseClosedToday},
		{"hours not set", func() models.Queue {
			return queueWithMonday(&models.DaySchedule{Enabled: true, Start: "09:00"})
		}, monday(10, 0), CaseHoursNotSet},
		{"malformed", func() models.Queue {
			return queueWithMonday(&models.DaySchedule{Enabled: true, Start: "9h", End: "18:00"})
		}, monday(10, 0), CaseMisconfigured},
		{"hour out of range", func() models.Queue {
			return queueWithMonday(&models.DaySchedule{Enabled: true, Start: "09:00", End: "24:00"})
		}, monday(10, 0), CaseMisconfigured},
		{"before opening", func() models.Queue { return queueWithMonday(normal) }, monday(8, 59), CaseBeforeOpening},
		{"after closing", func() models.Queue { return queueWithMonday(normal) }, monday(18, 0), CaseAfterClosing},
		{"open", func() models.Queue { return queueWithMonday(normal) }, monday(9, 0), CaseOpen},
		{"break inverted", func() models.Queue {
			return queueWithMonday(&models.DaySchedule{Enabled: true, Start: "09:00", End: "18:00", BreakStart: "14:00", BreakEnd: "13:00"})
		}, monday(10, 0), CaseBreakMisconfigured},
		{"break malformed", func() models.Queue {
			return queueWithMonday(&models.DaySchedule{Enabled: true, Start: "09:00", End: "18:00", BreakStart: "1300", BreakEnd: "14:00"})
		}, monday(10, 0), CaseBreakMisconfigured},
		{"break outside", func() models.Queue {
			return queueWithMonday(&models.DaySchedule{Enabled: true, Start: "09:00", End: "18:00", BreakStart: "17:30", BreakEnd: "18:30"})
		}, monday(10, 0), CaseBreakOutsideHours},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.queue(), tt.at, time.UTC)
			if got.Case != tt.want {
				t.Fatalf("Case=%q, want %q (%+v)", got.Case, tt.want, got)
			}
			if got.Operating != (tt.want == CaseOpen) {
				t.Fatalf("Operating=%v for case %q", got.Operating, got.Case)
			}
		})
	}
}

func TestEvaluateUsesBusinessLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	q := queueWithMonday(&models.DaySchedule{Enabled: true, Start: "09:00", End: "18:00"})

	// 11:00 UTC is 08:00 in BRT.
	got := Evaluate(q, monday(11, 0), loc)
	if got.Case != CaseBeforeOpening {
		t.Fatalf("got %+v, want before_opening", got)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"09:30", 570, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"9:30", 0, false},
		{"+1:30", 0, false},
		{"", 0, false},
		{"ab:cd", 0, false},
	}
	for _, tt := range cases {
		got, ok := ParseClock(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseClock(%q)=(%d,%v), want (%d,%v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
