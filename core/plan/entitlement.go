package plan

import (
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
)

// Restricted returns the most restrictive entitlement: every limit is 0 and every feature is off.
// It stands for a school without an active subscription.
func Restricted() Entitlement {
	return Entitlement{}
}

// NewEntitlement builds the entitlement granted by p.
func NewEntitlement(p Plan) Entitlement {
	return Entitlement{
		PlanID:   p.ID,
		PlanName: p.Name,
		Limits:   p.Limits,
		Features: p.Features,
	}
}

// HasFeature reports whether the feature named name is enabled.
// Unknown names fail with core.ErrUnknownFeature.
func HasFeature(ent Entitlement, name Feature) (bool, error) {
	enabled, ok := ent.Features.Get(name)
	if !ok {
		return false, errors.Wrapf(core.ErrUnknownFeature, "%q", name)
	}
	return enabled, nil
}

// IsOverLimit reports whether usage reached the finite limit named name.
// It is always false for Unlimited.
func IsOverLimit(ent Entitlement, name LimitName, usage int64) (bool, error) {
	limit, ok := ent.Limits.Get(name)
	if !ok {
		return false, errors.Wrapf(core.ErrUnknownLimit, "%q", name)
	}
	if limit.Unlimited {
		return false, nil
	}
	return usage >= limit.Value, nil
}

// UsagePercentage returns usage as a percentage of the limit named name, clamped to [0,100].
// It is 0 for Unlimited.
func UsagePercentage(ent Entitlement, name LimitName, usage int64) (float64, error) {
	limit, ok := ent.Limits.Get(name)
	if !ok {
		return 0, errors.Wrapf(core.ErrUnknownLimit, "%q", name)
	}
	if limit.Unlimited || usage <= 0 {
		return 0, nil
	}
	if limit.Value <= 0 {
		return 100, nil
	}
	pct := float64(usage) / float64(limit.Value) * 100
	if pct > 100 {
		return 100, nil
	}
	return pct, nil
}
