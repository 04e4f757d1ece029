package docking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProtonationMode_IsValid(t *testing.T) {
	assert.True(t, ProtonationSkip.IsValid())
	assert.True(t, ProtonationBestEffort.IsValid())
	assert.True(t, ProtonationRequire.IsValid())
	assert.False(t, ProtonationMode("maybe").IsValid())
}

func TestScoringFunction_IsValid(t *testing.T) {
	assert.True(t, ScoringVina.IsValid())
	assert.True(t, ScoringAD4.IsValid())
	assert.False(t, ScoringFunction("dkoes").IsValid())
}

func TestRunStatus_Lifecycle(t *testing.T) {
	assert.True(t, RunPending.IsValid())
	assert.False(t, RunPending.IsTerminal())
	assert.False(t, RunRunning.IsTerminal())
	assert.True(t, RunSucceeded.IsTerminal())
	assert.True(t, RunFailed.IsTerminal())
	assert.False(t, RunStatus("paused").IsValid())
}
