package plan

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koneum/eduwaly/core"
)

func starterEntitlement() Entitlement {
	for _, tier := range CanonicalTiers {
		if tier.Name == Starter {
			return NewEntitlement(Plan{ID: "starter-id", Name: tier.Name, Limits: tier.Limits, Features: tier.Features})
		}
	}
	panic("no starter tier")
}

func TestLimit_JSON(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Limit
	}{
		{name: "number", data: `12`, want: Max(12)},
		{name: "zero", data: `0`, want: Max(0)},
		{name: "unlimited", data: `"unlimited"`, want: Unlimited},
		{name: "null", data: `null`, want: Unlimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l Limit
			require.NoError(t, json.Unmarshal([]byte(tt.data), &l))
			assert.Equal(t, tt.want, l)
		})
	}

	var l Limit
	assert.Error(t, json.Unmarshal([]byte(`"lots"`), &l))

	data, err := json.Marshal(Limits{MaxStudents: Unlimited, MaxTeachers: Max(3)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"max_students":"unlimited"`)
	assert.Contains(t, string(data), `"max_teachers":3`)
}

func TestHasFeature(t *testing.T) {
	ent := starterEntitlement()
	tests := []struct {
		feature Feature
		want    bool
		wantErr error
	}{
		{feature: FeatureReports, want: true},
		{feature: FeatureHomework, want: true},
		{feature: FeatureMessaging, want: false},
		{feature: FeatureAPI, want: false},
		{feature: Feature("teleportation"), wantErr: core.ErrUnknownFeature},
	}
	for _, tt := range tests {
		t.Run(string(tt.feature), func(t *testing.T) {
			got, err := HasFeature(ent, tt.feature)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsOverLimit(t *testing.T) {
	ent := starterEntitlement()
	ent.Limits.MaxCampuses = Unlimited

	tests := []struct {
		name    string
		limit   LimitName
		usage   int64
		want    bool
		wantErr error
	}{
		{name: "below", limit: LimitMaxStudents, usage: 99},
		{name: "at limit", limit: LimitMaxStudents, usage: 100, want: true},
		{name: "above", limit: LimitMaxStudents, usage: 150, want: true},
		{name: "zero limit", limit: LimitMaxSMS, usage: 0, want: true},
		{name: "unlimited", limit: LimitMaxCampuses, usage: 1 << 40},
		{name: "unknown", limit: LimitName("max_rockets"), wantErr: core.ErrUnknownLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsOverLimit(ent, tt.limit, tt.usage)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsagePercentage(t *testing.T) {
	ent := starterEntitlement()
	ent.Limits.MaxCampuses = Unlimited

	tests := []struct {
		name  string
		limit LimitName
		usage int64
		want  float64
	}{
		{name: "empty", limit: LimitMaxStudents, usage: 0, want: 0},
		{name: "half", limit: LimitMaxStudents, usage: 50, want: 50},
		{name: "clamped", limit: LimitMaxStudents, usage: 250, want: 100},
		{name: "negative usage", limit: LimitMaxStudents, usage: -3, want: 0},
		{name: "zero limit", limit: LimitMaxSMS, usage: 1, want: 100},
		{name: "unlimited", limit: LimitMaxCampuses, usage: 1000, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UsagePercentage(ent, tt.limit, tt.usage)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := UsagePercentage(ent, LimitName("max_rockets"), 1)
	assert.True(t, errors.Is(err, core.ErrUnknownLimit))
}

func TestRestricted(t *testing.T) {
	ent := Restricted()
	for _, name := range AllLimits {
		over, err := IsOverLimit(ent, name, 0)
		require.NoError(t, err)
		assert.True(t, over, name)
	}
	for _, name := range AllFeatures {
		enabled, err := HasFeature(ent, name)
		require.NoError(t, err)
		assert.False(t, enabled, name)
	}
}

func TestCanonicalTiers(t *testing.T) {
	// each tier includes the previous one
	for i := 1; i < len(CanonicalTiers); i++ {
		prev, curr := NewEntitlement(fromNew(CanonicalTiers[i-1])), NewEntitlement(fromNew(CanonicalTiers[i]))
		for _, f := range AllFeatures {
			had, _ := HasFeature(prev, f)
			has, _ := HasFeature(curr, f)
			assert.False(t, had && !has, "%s loses %s", curr.PlanName, f)
		}
		for _, l := range AllLimits {
			p, _ := prev.Limits.Get(l)
			c, _ := curr.Limits.Get(l)
			assert.True(t, c.Unlimited || (!p.Unlimited && c.Value >= p.Value), "%s lowers %s", curr.PlanName, l)
		}
	}
}

func fromNew(np NewPlan) Plan {
	return Plan{Name: np.Name, Limits: np.Limits, Features: np.Features}
}
