package subscription

import (
	"time"
)

type Status string

const (
	StatusTrial    Status = "TRIAL"
	StatusActive   Status = "ACTIVE"
	StatusPastDue  Status = "PAST_DUE"
	StatusCanceled Status = "CANCELED"
	StatusUnpaid   Status = "UNPAID"
)

var AllStatuses = []Status{StatusTrial, StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid}

func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// notifies reports whether moving to st warrants an email to the school admins.
func (st Status) notifies() bool {
	return st == StatusPastDue || st == StatusCanceled || st == StatusUnpaid
}

// Subscription binds one school to one plan.
type Subscription struct {
	ID                string     `json:"id"`
	SchoolID          string     `json:"school_id"`
	PlanID            string     `json:"plan_id"`
	Status            Status     `json:"status"`
	CurrentPeriodEnd  time.Time  `json:"current_period_end"`
	TrialEndsAt       *time.Time `json:"trial_ends_at,omitempty"`
	StatusEffectiveAt time.Time  `json:"status_effective_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsEntitling reports whether the subscription grants its plan at now.
// PAST_DUE keeps access during the grace period; an expired trial does not.
func (s Subscription) IsEntitling(now time.Time) bool {
	switch s.Status {
	case StatusActive, StatusPastDue:
		return true
	case StatusTrial:
		return s.TrialEndsAt == nil || now.Before(*s.TrialEndsAt)
	}
	return false
}

// StatusEvent is a status transition reported by the billing provider.
type StatusEvent struct {
	SchoolID    string    `json:"school_id" validate:"required"`
	Status      Status    `json:"status" validate:"required,oneof=TRIAL ACTIVE PAST_DUE CANCELED UNPAID"`
	EffectiveAt time.Time `json:"effective_at" validate:"required"`
}

type UpgradeRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// notification is the template data of status emails.
type notification struct {
	SchoolName string
	PlanName   string
	Status     Status
}
