package models

import "time"

const (
	QueueOpen   = "aberta"
	QueuePaused = "pausada"
	QueueClosed = "fechada"
)

const (
	DefaultAverageServiceTime = 10
	DefaultToleranceTime      = 15
	DefaultAdvanceNotice      = 2
)

type Queue struct {
	ID                   string               `json:"id"`
	BusinessID           string               `json:"business_id"`
	Name                 string               `json:"name"`
	CurrentNumber        int                  `json:"current_number"`
	LastIssuedNumber     int                  `json:"last_issued_number"`
	WorkingHours         WorkingHours         `json:"working_hours"`
	Status               string               `json:"status"`
	AverageServiceTime   int                  `json:"average_service_time"`
	ToleranceTime        int                  `json:"tolerance_time"`
	LastResetDate        string               `json:"last_reset_date,omitempty"`
	IsActive             bool                 `json:"is_active"`
	NotificationsEnabled bool                 `json:"notifications_enabled"`
	NotificationSettings NotificationSettings `json:"notification_settings"`
	CreatedDate          time.Time            `json:"created_date"`
	UpdatedDate          time.Time            `json:"updated_date"`
}

type NotificationSettings struct {
	Email         bool `json:"email"`
	SMS           bool `json:"sms"`
	Push          bool `json:"push"`
	AdvanceNotice int  `json:"advance_notice"`
}

// ServiceMinutes returns the configured average service time, falling back to the default
// when the stored value is not positive.
func (q Queue) ServiceMinutes() int {
	if q.AverageServiceTime <= 0 {
		return DefaultAverageServiceTime
	}
	return q.AverageServiceTime
}

func (q Queue) ToleranceMinutes() int {
	if q.ToleranceTime <= 0 {
		return DefaultToleranceTime
	}
	return q.ToleranceTime
}

func (q Queue) ServiceDuration() time.Duration {
	return time.Duration(q.ServiceMinutes()) * time.Minute
}

func (q Queue) ToleranceDuration() time.Duration {
	return time.Duration(q.ToleranceMinutes()) * time.Minute
}

func (s NotificationSettings) AdvanceNoticeOrDefault() int {
	if s.AdvanceNotice <= 0 {
		return DefaultAdvanceNotice
	}
	return s.AdvanceNotice
}
