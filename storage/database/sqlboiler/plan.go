package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/storage/database"
)

const planColumns = `id, name, display_name, price_amount, currency, billing_interval,
	max_students, max_teachers, max_documents, max_storage, max_emails, max_sms, max_campuses,
	feature_messaging, feature_reports, feature_advanced_analytics, feature_multiple_schools,
	feature_payments, feature_homework, feature_api, feature_sms,
	is_active, created_at, updated_at`

// planRow maps the plan table. NULL limits are unlimited.
type planRow struct {
	ID              string     `boil:"id"`
	Name            string     `boil:"name"`
	DisplayName     string     `boil:"display_name"`
	PriceAmount     int64      `boil:"price_amount"`
	Currency        string     `boil:"currency"`
	BillingInterval string     `boil:"billing_interval"`
	MaxStudents     null.Int64 `boil:"max_students"`
	MaxTeachers     null.Int64 `boil:"max_teachers"`
	MaxDocuments    null.Int64 `boil:"max_documents"`
	MaxStorage      null.Int64 `boil:"max_storage"`
	MaxEmails       null.Int64 `boil:"max_emails"`
	MaxSMS          null.Int64 `boil:"max_sms"`
	MaxCampuses     null.Int64 `boil:"max_campuses"`

	FeatureMessaging         bool `boil:"feature_messaging"`
	FeatureReports           bool `boil:"feature_reports"`
	FeatureAdvancedAnalytics bool `boil:"feature_advanced_analytics"`
	FeatureMultipleSchools   bool `boil:"feature_multiple_schools"`
	FeaturePayments          bool `boil:"feature_payments"`
	FeatureHomework          bool `boil:"feature_homework"`
	FeatureAPI               bool `boil:"feature_api"`
	FeatureSMS               bool `boil:"feature_sms"`

	IsActive  bool      `boil:"is_active"`
	CreatedAt time.Time `boil:"created_at"`
	UpdatedAt time.Time `boil:"updated_at"`
}

func boilLimit(l plan.Limit) null.Int64 {
	return null.NewInt64(l.Value, !l.Unlimited)
}

func unboilLimit(n null.Int64) plan.Limit {
	if !n.Valid {
		return plan.Unlimited
	}
	return plan.Max(n.Int64)
}

func boilPlan(p plan.Plan) planRow {
	return planRow{
		ID:                       p.ID,
		Name:                     p.Name,
		DisplayName:              p.DisplayName,
		PriceAmount:              p.PriceAmount,
		Currency:                 p.Currency,
		BillingInterval:          string(p.Interval),
		MaxStudents:              boilLimit(p.Limits.MaxStudents),
		MaxTeachers:              boilLimit(p.Limits.MaxTeachers),
		MaxDocuments:             boilLimit(p.Limits.MaxDocuments),
		MaxStorage:               boilLimit(p.Limits.MaxStorage),
		MaxEmails:                boilLimit(p.Limits.MaxEmails),
		MaxSMS:                   boilLimit(p.Limits.MaxSMS),
		MaxCampuses:              boilLimit(p.Limits.MaxCampuses),
		FeatureMessaging:         p.Features.Messaging,
		FeatureReports:           p.Features.Reports,
		FeatureAdvancedAnalytics: p.Features.AdvancedAnalytics,
		FeatureMultipleSchools:   p.Features.MultipleSchools,
		FeaturePayments:          p.Features.Payments,
		FeatureHomework:          p.Features.Homework,
		FeatureAPI:               p.Features.API,
		FeatureSMS:               p.Features.SMS,
		IsActive:                 p.IsActive,
		CreatedAt:                p.CreatedAt.UTC(),
		UpdatedAt:                p.UpdatedAt.UTC(),
	}
}

func (row planRow) unboil() plan.Plan {
	return plan.Plan{
		ID:          row.ID,
		Name:        row.Name,
		DisplayName: row.DisplayName,
		PriceAmount: row.PriceAmount,
		Currency:    row.Currency,
		Interval:    plan.BillingInterval(row.BillingInterval),
		Limits: plan.Limits{
			MaxStudents:  unboilLimit(row.MaxStudents),
			MaxTeachers:  unboilLimit(row.MaxTeachers),
			MaxDocuments: unboilLimit(row.MaxDocuments),
			MaxStorage:   unboilLimit(row.MaxStorage),
			MaxEmails:    unboilLimit(row.MaxEmails),
			MaxSMS:       unboilLimit(row.MaxSMS),
			MaxCampuses:  unboilLimit(row.MaxCampuses),
		},
		Features: plan.Features{
			Messaging:         row.FeatureMessaging,
			Reports:           row.FeatureReports,
			AdvancedAnalytics: row.FeatureAdvancedAnalytics,
			MultipleSchools:   row.FeatureMultipleSchools,
			Payments:          row.FeaturePayments,
			Homework:          row.FeatureHomework,
			API:               row.FeatureAPI,
			SMS:               row.FeatureSMS,
		},
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

// values returns the row's column values in planColumns order.
func (row planRow) values() []interface{} {
	return []interface{}{
		row.ID, row.Name, row.DisplayName, row.PriceAmount, row.Currency, row.BillingInterval,
		row.MaxStudents, row.MaxTeachers, row.MaxDocuments, row.MaxStorage, row.MaxEmails, row.MaxSMS, row.MaxCampuses,
		row.FeatureMessaging, row.FeatureReports, row.FeatureAdvancedAnalytics, row.FeatureMultipleSchools,
		row.FeaturePayments, row.FeatureHomework, row.FeatureAPI, row.FeatureSMS,
		row.IsActive, row.CreatedAt, row.UpdatedAt,
	}
}

type planRepository struct {
	exec core.DBExecutor
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(exec core.DBExecutor) *planRepository {
	return &planRepository{exec: exec}
}

func (repo planRepository) CreatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error) {
	p.ID = uuid.New().String()
	row := boilPlan(p)
	vals := row.values()
	q := `INSERT INTO plan (` + planColumns + `) VALUES (` + placeholders(len(vals), 1) + `)`
	if _, err := queries.Raw(q, vals...).ExecContext(ctx, repo.exec); err != nil {
		return plan.Plan{}, database.WrapErr(err, "inserting plan")
	}
	return p, nil
}

func (repo planRepository) QueryPlans(ctx context.Context, all bool) ([]plan.Plan, error) {
	var w whereClause
	if !all {
		w.add("is_active = ?", true)
	}
	q := `SELECT ` + planColumns + ` FROM plan` + w.String() + ` ORDER BY price_amount ASC, name ASC`
	var rows []planRow
	if err := queries.Raw(q, w.args...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, database.WrapErr(err, "querying plans")
	}
	plans := make([]plan.Plan, 0, len(rows))
	for _, row := range rows {
		plans = append(plans, row.unboil())
	}
	return plans, nil
}

func (repo planRepository) GetPlan(ctx context.Context, filter plan.GetFilter) (plan.Plan, error) {
	var w whereClause
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return plan.Plan{}, plan.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Name != "":
		w.add("name = ?", filter.Name)
	default:
		return plan.Plan{}, plan.ErrNotFound
	}

	var row planRow
	q := `SELECT ` + planColumns + ` FROM plan` + w.String() + " LIMIT 1"
	if err := queries.Raw(q, w.args...).Bind(ctx, repo.exec, &row); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return plan.Plan{}, plan.ErrNotFound
		}
		return plan.Plan{}, database.WrapErr(err, "finding plan")
	}
	return row.unboil(), nil
}

func (repo planRepository) UpdatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error) {
	row := boilPlan(p)
	q := `UPDATE plan SET display_name = $2, price_amount = $3, currency = $4, billing_interval = $5,
		max_students = $6, max_teachers = $7, max_documents = $8, max_storage = $9, max_emails = $10,
		max_sms = $11, max_campuses = $12,
		feature_messaging = $13, feature_reports = $14, feature_advanced_analytics = $15,
		feature_multiple_schools = $16, feature_payments = $17, feature_homework = $18,
		feature_api = $19, feature_sms = $20, is_active = $21, updated_at = $22
		WHERE id = $1`
	res, err := queries.Raw(q,
		row.ID, row.DisplayName, row.PriceAmount, row.Currency, row.BillingInterval,
		row.MaxStudents, row.MaxTeachers, row.MaxDocuments, row.MaxStorage, row.MaxEmails,
		row.MaxSMS, row.MaxCampuses,
		row.FeatureMessaging, row.FeatureReports, row.FeatureAdvancedAnalytics,
		row.FeatureMultipleSchools, row.FeaturePayments, row.FeatureHomework,
		row.FeatureAPI, row.FeatureSMS, row.IsActive, row.UpdatedAt,
	).ExecContext(ctx, repo.exec)
	if err != nil {
		return plan.Plan{}, database.WrapErr(err, "updating plan")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return plan.Plan{}, plan.ErrNotFound
	}
	return p, nil
}
