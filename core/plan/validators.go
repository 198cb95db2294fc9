package plan

import (
	"context"
	"regexp"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/koneum/eduwaly/core"
)

var (
	planNameTag   = "planname"
	planNameText  = "only uppercase letters, digits and underscores are allowed"
	planNameRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

	negativeLimitText  = "limit must be positive or unlimited"
	unknownLimitText   = "unknown limit"
	unknownFeatureText = "unknown feature"
)

// InitValidators registers the plan validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(planNameTag, func(fl validator.FieldLevel) bool {
		return planNameRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, planNameTag, planNameText)
}

func validateLimits(l Limits) error {
	var flds []core.FieldError
	for _, name := range AllLimits {
		if lim, _ := l.Get(name); !lim.Unlimited && lim.Value < 0 {
			flds = append(flds, core.FieldError{Field: string(name), Error: negativeLimitText})
		}
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (np *NewPlan) Validate(_ context.Context, validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.DisplayName = core.CleanString(np.DisplayName)
	np.Currency = core.CleanString(np.Currency)
	if err := validate.Struct(np); err != nil {
		return err
	}
	return validateLimits(np.Limits)
}

func (up *UpdatePlan) Validate(_ context.Context, validate *validator.Validate) error {
	if err := validate.Struct(up); err != nil {
		return err
	}

	var (
		p    Plan
		flds []core.FieldError
	)
	for name, limit := range up.Limits {
		switch {
		case !p.Limits.Set(name, limit):
			flds = append(flds, core.FieldError{Field: string(name), Error: unknownLimitText})
		case !limit.Unlimited && limit.Value < 0:
			flds = append(flds, core.FieldError{Field: string(name), Error: negativeLimitText})
		}
	}
	for name := range up.Features {
		if !p.Features.Set(name, false) {
			flds = append(flds, core.FieldError{Field: string(name), Error: unknownFeatureText})
		}
	}
	if flds != nil {
		sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
		return core.NewValidationError(nil, flds...)
	}
	return nil
}
