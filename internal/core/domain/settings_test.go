package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_IsValid(t *testing.T) {
	assert.True(t, RetryPolicyStep.IsValid())
	assert.True(t, RetryPolicyWorkflow.IsValid())
	assert.False(t, RetryPolicy("").IsValid())
	assert.False(t, RetryPolicy("whole").IsValid())
	assert.Equal(t, "step", RetryPolicyStep.String())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 750*time.Millisecond, s.Normalizer.Debounce)
	assert.Equal(t, 7*24*time.Hour, s.Cache.TombstoneRetention)
	assert.Equal(t, RetryPolicyStep, s.Engine.RetryPolicy)
	assert.Equal(t, 4, s.Engine.Workers)
	assert.Equal(t, 3, s.Engine.MaxStepRetries)
	assert.Greater(t, s.Engine.BackoffMax, s.Engine.BackoffBase)
	assert.Contains(t, s.Vault.Ignore, ".obsidian/**")
	assert.True(t, s.Scheduler.Enabled)
}

func TestDefaultAppSettings_IgnoreIsCopied(t *testing.T) {
	s := DefaultAppSettings()
	s.Vault.Ignore[0] = "changed"

	assert.Equal(t, ".obsidian/**", DefaultIgnorePatterns[0])
}
