package plan

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Canonical tier names.
const (
	Starter      = "STARTER"
	Professional = "PROFESSIONAL"
	Business     = "BUSINESS"
	Enterprise   = "ENTERPRISE"
)

type BillingInterval string

const (
	Monthly BillingInterval = "MONTHLY"
	Yearly  BillingInterval = "YEARLY"
)

// Next returns the end of the billing period starting at t.
func (bi BillingInterval) Next(t time.Time) time.Time {
	if bi == Yearly {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

type LimitName string

const (
	LimitMaxStudents  LimitName = "max_students"
	LimitMaxTeachers  LimitName = "max_teachers"
	LimitMaxDocuments LimitName = "max_documents"
	LimitMaxStorage   LimitName = "max_storage" // MB
	LimitMaxEmails    LimitName = "max_emails"
	LimitMaxSMS       LimitName = "max_sms"
	LimitMaxCampuses  LimitName = "max_campuses"
)

var AllLimits = []LimitName{
	LimitMaxStudents, LimitMaxTeachers, LimitMaxDocuments, LimitMaxStorage,
	LimitMaxEmails, LimitMaxSMS, LimitMaxCampuses,
}

type Feature string

const (
	FeatureMessaging         Feature = "messaging"
	FeatureReports           Feature = "reports"
	FeatureAdvancedAnalytics Feature = "advanced_analytics"
	FeatureMultipleSchools   Feature = "multiple_schools"
	FeaturePayments          Feature = "payments"
	FeatureHomework          Feature = "homework"
	FeatureAPI               Feature = "api"
	FeatureSMS               Feature = "sms"
)

var AllFeatures = []Feature{
	FeatureMessaging, FeatureReports, FeatureAdvancedAnalytics, FeatureMultipleSchools,
	FeaturePayments, FeatureHomework, FeatureAPI, FeatureSMS,
}

const unlimitedJSON = "unlimited"

// Limit is a numeric plan limit. The zero value is a limit of 0.
// Unbounded limits are Unlimited, never a magic number.
type Limit struct {
	Value     int64
	Unlimited bool
}

var Unlimited = Limit{Unlimited: true}

// Max returns a finite limit of n.
func Max(n int64) Limit { return Limit{Value: n} }

func (l Limit) String() string {
	if l.Unlimited {
		return unlimitedJSON
	}
	return strconv.FormatInt(l.Value, 10)
}

func (l Limit) MarshalJSON() ([]byte, error) {
	if l.Unlimited {
		return []byte(`"` + unlimitedJSON + `"`), nil
	}
	return []byte(strconv.FormatInt(l.Value, 10)), nil
}

func (l *Limit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`"`+unlimitedJSON+`"`)) {
		*l = Unlimited
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Errorf("limit must be a number or %q", unlimitedJSON)
	}
	*l = Max(n)
	return nil
}

type Limits struct {
	MaxStudents  Limit `json:"max_students"`
	MaxTeachers  Limit `json:"max_teachers"`
	MaxDocuments Limit `json:"max_documents"`
	MaxStorage   Limit `json:"max_storage"`
	MaxEmails    Limit `json:"max_emails"`
	MaxSMS       Limit `json:"max_sms"`
	MaxCampuses  Limit `json:"max_campuses"`
}

// Get returns the limit named name.
func (l Limits) Get(name LimitName) (Limit, bool) {
	switch name {
	case LimitMaxStudents:
		return l.MaxStudents, true
	case LimitMaxTeachers:
		return l.MaxTeachers, true
	case LimitMaxDocuments:
		return l.MaxDocuments, true
	case LimitMaxStorage:
		return l.MaxStorage, true
	case LimitMaxEmails:
		return l.MaxEmails, true
	case LimitMaxSMS:
		return l.MaxSMS, true
	case LimitMaxCampuses:
		return l.MaxCampuses, true
	}
	return Limit{}, false
}

// Set replaces the limit named name. It reports false for unknown names.
func (l *Limits) Set(name LimitName, limit Limit) bool {
	switch name {
	case LimitMaxStudents:
		l.MaxStudents = limit
	case LimitMaxTeachers:
		l.MaxTeachers = limit
	case LimitMaxDocuments:
		l.MaxDocuments = limit
	case LimitMaxStorage:
		l.MaxStorage = limit
	case LimitMaxEmails:
		l.MaxEmails = limit
	case LimitMaxSMS:
		l.MaxSMS = limit
	case LimitMaxCampuses:
		l.MaxCampuses = limit
	default:
		return false
	}
	return true
}

type Features struct {
	Messaging         bool `json:"messaging"`
	Reports           bool `json:"reports"`
	AdvancedAnalytics bool `json:"advanced_analytics"`
	MultipleSchools   bool `json:"multiple_schools"`
	Payments          bool `json:"payments"`
	Homework          bool `json:"homework"`
	API               bool `json:"api"`
	SMS               bool `json:"sms"`
}

// Get returns the flag named name.
func (f Features) Get(name Feature) (bool, bool) {
	switch name {
	case FeatureMessaging:
		return f.Messaging, true
	case FeatureReports:
		return f.Reports, true
	case FeatureAdvancedAnalytics:
		return f.AdvancedAnalytics, true
	case FeatureMultipleSchools:
		return f.MultipleSchools, true
	case FeaturePayments:
		return f.Payments, true
	case FeatureHomework:
		return f.Homework, true
	case FeatureAPI:
		return f.API, true
	case FeatureSMS:
		return f.SMS, true
	}
	return false, false
}

// Set replaces the flag named name. It reports false for unknown names.
func (f *Features) Set(name Feature, enabled bool) bool {
	switch name {
	case FeatureMessaging:
		f.Messaging = enabled
	case FeatureReports:
		f.Reports = enabled
	case FeatureAdvancedAnalytics:
		f.AdvancedAnalytics = enabled
	case FeatureMultipleSchools:
		f.MultipleSchools = enabled
	case FeaturePayments:
		f.Payments = enabled
	case FeatureHomework:
		f.Homework = enabled
	case FeatureAPI:
		f.API = enabled
	case FeatureSMS:
		f.SMS = enabled
	default:
		return false
	}
	return true
}

type Plan struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"` // machine name, eg. STARTER
	DisplayName string          `json:"display_name"`
	PriceAmount int64           `json:"price_amount"` // minor units
	Currency    string          `json:"currency"`
	Interval    BillingInterval `json:"interval"`
	Limits      Limits          `json:"limits"`
	Features    Features        `json:"features"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewPlan contains information needed to create a new Plan.
type NewPlan struct {
	Name        string          `json:"name" validate:"required,planname"`
	DisplayName string          `json:"display_name" validate:"required"`
	PriceAmount int64           `json:"price_amount" validate:"gte=0"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	Interval    BillingInterval `json:"interval" validate:"required,oneof=MONTHLY YEARLY"`
	Limits      Limits          `json:"limits"`
	Features    Features        `json:"features"`
}

// UpdatePlan defines what may be changed on a Plan. Nil fields and absent names are left untouched.
type UpdatePlan struct {
	DisplayName *string             `json:"display_name" validate:"omitempty,min=1"`
	PriceAmount *int64              `json:"price_amount" validate:"omitempty,gte=0"`
	Currency    *string             `json:"currency" validate:"omitempty,len=3"`
	Interval    *BillingInterval    `json:"interval" validate:"omitempty,oneof=MONTHLY YEARLY"`
	Limits      map[LimitName]Limit `json:"limits"`   // merged by name
	Features    map[Feature]bool    `json:"features"` // merged by name
	IsActive    *bool               `json:"is_active"`
}

type GetFilter struct {
	ID   string
	Name string
}

// Entitlement is the resolved set of limits and features a school is entitled to.
type Entitlement struct {
	SchoolID         string     `json:"school_id,omitempty"`
	PlanID           string     `json:"plan_id,omitempty"`
	PlanName         string     `json:"plan_name,omitempty"`
	Status           string     `json:"status,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	TrialEndsAt      *time.Time `json:"trial_ends_at,omitempty"`
	Limits           Limits     `json:"limits"`
	Features         Features   `json:"features"`
}
