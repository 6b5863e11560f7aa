package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureNameToEnvKey(t *testing.T) {
	assert.Equal(t, "FEATURE_LESSONS_SEQUENTIAL_UNLOCK", featureNameToEnvKey(FeatureSequentialUnlock))
}

func TestFeatureRollout(t *testing.T) {
	t.Setenv("FEATURE_EVENTS_LOG", "50")
	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureEventLog, nil))

	enabled := 0
	for i := range 1000 {
		ctx := &FeatureContext{UserID: fmt.Sprintf("user-%d", i)}
		if ff.IsEnabled(FeatureEventLog, ctx) {
			enabled++
		}
		assert.Equal(t, ff.IsEnabled(FeatureEventLog, ctx), ff.IsEnabled(FeatureEventLog, ctx))
	}
	assert.InDelta(t, 500, enabled, 100)
}

func TestFeatureToggles(t *testing.T) {
	ff := LoadFeatureFlags()

	require.NoError(t, ff.EnableFeature(FeatureSequentialUnlock))
	assert.True(t, ff.IsEnabled(FeatureSequentialUnlock, nil))

	require.NoError(t, ff.DisableFeature(FeatureSequentialUnlock))
	assert.False(t, ff.IsEnabled(FeatureSequentialUnlock, nil))

	assert.ErrorIs(t, ff.EnableFeature("no.such"), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureEventLog, 150), ErrInvalidRolloutPercent)
	assert.False(t, ff.IsEnabled("no.such", nil))

	all := ff.GetAllFeatures()
	assert.Len(t, all, 3)
}
