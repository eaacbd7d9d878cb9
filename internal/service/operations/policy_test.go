package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yami-59/network-ops-demo/internal/model"
)

func TestStrictPolicy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to model.Status
		ok       bool
	}{
		{model.StatusPending, model.StatusPlanned, true},
		{model.StatusPending, model.StatusExecuted, false},
		{model.StatusPlanned, model.StatusExecuted, true},
		{model.StatusPlanned, model.StatusFailed, true},
		{model.StatusFailed, model.StatusPlanned, true},
		{model.StatusFailed, model.StatusExecuted, false},
		{model.StatusExecuted, model.StatusExecuted, false},
		{model.StatusExecuted, model.StatusPlanned, false},
	}
	for _, tt := range tests {
		err := checkPolicy(StrictPolicy{}, tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s→%s", tt.from, tt.to)
		} else {
			assert.ErrorIs(t, err, model.ErrValidation, "%s→%s", tt.from, tt.to)
		}
	}
}

func TestPermissivePolicyAllowsEverything(t *testing.T) {
	t.Parallel()
	for _, from := range model.Statuses {
		for _, to := range model.Statuses {
			assert.NoError(t, checkPolicy(PermissivePolicy{}, from, to))
		}
	}
}

func TestSuggestNext(t *testing.T) {
	t.Parallel()
	assert.Equal(t, model.StatusPlanned, SuggestNext(model.StatusPending))
	assert.Equal(t, model.StatusExecuted, SuggestNext(model.StatusPlanned))
	assert.Equal(t, model.StatusExecuted, SuggestNext(model.StatusExecuted))
	assert.Equal(t, model.StatusFailed, SuggestNext(model.StatusFailed))
}

func TestNormalizeSites(t *testing.T) {
	t.Parallel()
	sites, blank := NormalizeSites([]string{" SITE_B", "SITE_A ", "SITE_B"})
	assert.Equal(t, []string{"SITE_B", "SITE_A"}, sites)
	assert.False(t, blank)

	sites, blank = NormalizeSites(model.SplitSites("SITE_A, ,SITE_C"))
	assert.Equal(t, []string{"SITE_A", "SITE_C"}, sites)
	assert.True(t, blank)

	sites, _ = NormalizeSites(nil)
	assert.Empty(t, sites)
}

func TestRules(t *testing.T) {
	t.Parallel()

	strict := Rules(StrictPolicy{})
	require.Len(t, strict, len(model.Statuses))
	byFrom := make(map[model.Status]model.TransitionRule)
	for _, r := range strict {
		byFrom[r.From] = r
	}
	assert.Equal(t, model.StatusPlanned, byFrom[model.StatusPending].Suggested)
	assert.Equal(t, model.StatusExecuted, byFrom[model.StatusPlanned].Suggested)
	// FAILED stays FAILED by default, which strict mode forbids.
	assert.Equal(t, model.StatusPlanned, byFrom[model.StatusFailed].Suggested)
	assert.Empty(t, byFrom[model.StatusExecuted].Allowed)
	assert.NotNil(t, byFrom[model.StatusExecuted].Allowed)
	assert.Equal(t, model.Status(""), byFrom[model.StatusExecuted].Suggested)

	for _, r := range Rules(PermissivePolicy{}) {
		assert.Equal(t, model.Statuses, r.Allowed)
		assert.Equal(t, SuggestNext(r.From), r.Suggested)
	}
}
