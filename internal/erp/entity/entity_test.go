package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStageName(t *testing.T) {
	tests := []struct {
		current string
		want    string
	}{
		{StageIDC, StageIFR},
		{StageIFR, StageIFA},
		{StageIFA, StageAFC},
		{StageAFC, ""},
		{"XYZ", ""},
		{"", ""},
		{"idc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.current, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStageName(tt.current))
		})
	}
}

func TestStageIndexAndTerminal(t *testing.T) {
	assert.Equal(t, 0, StageIndex(StageIDC))
	assert.Equal(t, 3, StageIndex(StageAFC))
	assert.Equal(t, -1, StageIndex("IFC"))
	assert.True(t, IsTerminalStage(StageAFC))
	assert.False(t, IsTerminalStage(StageIFA))
	assert.True(t, IsValidStageName(StageIFR))
	assert.False(t, IsValidStageName("ifr"))
}

func TestStepHelpers(t *testing.T) {
	assert.False(t, IsReviewStep(StepDrafting))
	assert.True(t, IsReviewStep(StepChecking))
	assert.True(t, IsReviewStep(StepApproval))
	assert.True(t, IsReviewStep(StepDocumentation))
	assert.False(t, IsValidStep("review"))

	assert.Equal(t, 0, LogStatusRank(LogStatusNotStarted))
	assert.Equal(t, 1, LogStatusRank(LogStatusInProgress))
	assert.Equal(t, 2, LogStatusRank(LogStatusCompleted))
	assert.Equal(t, -1, LogStatusRank("done"))
}

func TestProjectStatus(t *testing.T) {
	for _, s := range ProjectStatuses {
		assert.True(t, IsValidProjectStatus(s), s)
	}
	assert.False(t, IsValidProjectStatus("archived"))
}

func TestFileIDsValueScan(t *testing.T) {
	v, err := FileIDs(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var ids FileIDs
	require.NoError(t, ids.Scan([]byte(`["f1","f2"]`)))
	assert.Equal(t, FileIDs{"f1", "f2"}, ids)

	require.NoError(t, ids.Scan(`["f3"]`))
	assert.Equal(t, FileIDs{"f3"}, ids)

	require.NoError(t, ids.Scan(nil))
	assert.Empty(t, ids)

	assert.Error(t, ids.Scan(42))
}

func TestFileIDsDedup(t *testing.T) {
	got := FileIDs{"a", "", "b", "a", "c", "b"}.Dedup()
	assert.Equal(t, FileIDs{"a", "b", "c"}, got)

	orig := FileIDs{"x"}
	clone := orig.Clone()
	clone[0] = "y"
	assert.Equal(t, "x", orig[0])
}

func TestStageLogAction(t *testing.T) {
	l := &StageLog{}
	assert.Equal(t, "", l.Action())
	a := ActionRejected
	l.ActionTaken = &a
	assert.Equal(t, ActionRejected, l.Action())
	l.Status = LogStatusCompleted
	assert.True(t, l.IsCompleted())
}
