package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusCompleted, true},
		{StatusActive, StatusOrphaned, true},
		{StatusActive, StatusStale, true},
		{StatusPaused, StatusActive, true},
		{StatusPaused, StatusStale, true},
		{StatusPaused, StatusCompleted, false},
		{StatusStale, StatusActive, true},
		{StatusStale, StatusAbandoned, true},
		{StatusStale, StatusCompleted, false},
		{StatusCompleted, StatusActive, false},
		{StatusAbandoned, StatusActive, false},
		{StatusOrphaned, StatusAbandoned, true},
		{StatusOrphaned, StatusActive, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestSession_TransitionStatus_TerminalIsFinal(t *testing.T) {
	now := time.Now().UTC()
	s := &Session{ID: "s1", Status: StatusActive, Phase: PhaseWork}

	require.NoError(t, s.TransitionStatus(StatusCompleted, now))
	require.NotNil(t, s.CompletedAt)

	err := s.TransitionStatus(StatusActive, now)
	assert.ErrorIs(t, err, ErrSessionTerminal)
}

func TestSession_TransitionStatus_RejectsUnknownEdge(t *testing.T) {
	s := &Session{ID: "s1", Status: StatusPaused, Phase: PhaseWork}

	err := s.TransitionStatus(StatusCompleted, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSession_AdvancePhase_Forward(t *testing.T) {
	now := time.Now().UTC()
	s := &Session{ID: "s1", Status: StatusActive, Phase: PhaseContext}

	for _, next := range []Phase{PhasePlan, PhaseWork, PhaseVerify, PhaseDone} {
		require.NoError(t, s.AdvancePhase(next, now))
		assert.Equal(t, next, s.Phase)
	}
}

func TestSession_AdvancePhase_ReturnToPlan(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name    string
		from    Phase
		allowed bool
	}{
		{"from work", PhaseWork, true},
		{"from verify", PhaseVerify, true},
		{"from context", PhaseContext, true}, // forward move
		{"from done", PhaseDone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{ID: "s1", Status: StatusActive, Phase: tt.from}
			err := s.AdvancePhase(PhasePlan, now)
			if tt.allowed {
				assert.NoError(t, err)
				assert.Equal(t, PhasePlan, s.Phase)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPhase)
			}
		})
	}
}

func TestSession_AdvancePhase_NoBackwardSkips(t *testing.T) {
	s := &Session{ID: "s1", Status: StatusActive, Phase: PhaseVerify}

	err := s.AdvancePhase(PhaseContext, time.Now())
	assert.ErrorIs(t, err, ErrInvalidPhase)
	assert.Equal(t, PhaseVerify, s.Phase)
}

func TestSession_AppendAction_RingBuffer(t *testing.T) {
	s := &Session{ID: "s1"}
	for i := 0; i < 7; i++ {
		s.AppendAction(ActionRecord{
			Description: fmt.Sprintf("action-%d", i),
			Timestamp:   time.Now().UTC(),
		}, 5)
	}

	require.Len(t, s.Actions, 5)
	assert.Equal(t, "action-2", s.Actions[0].Description, "oldest entries evicted first")
	assert.Equal(t, "action-6", s.Actions[4].Description)
}

func TestSession_AddCheckpoint_CappedMostRecentFirst(t *testing.T) {
	s := &Session{ID: "s1"}
	var evicted []Checkpoint
	for i := 0; i < 4; i++ {
		evicted = s.AddCheckpoint(Checkpoint{
			Phase:     PhaseWork,
			Context:   fmt.Sprintf("snapshot-%d", i),
			CreatedAt: time.Now().UTC(),
		}, 3)
	}

	require.Len(t, s.Checkpoints, 3)
	assert.Equal(t, "snapshot-3", s.Checkpoints[0].Context, "most recent first")
	assert.Equal(t, "snapshot-3", s.LatestCheckpoint().Context)

	// The oldest checkpoint is handed back on eviction
	require.Len(t, evicted, 1)
	assert.Equal(t, "snapshot-0", evicted[0].Context)
}

func TestSession_StaleAt(t *testing.T) {
	now := time.Now().UTC()
	s := &Session{ID: "s1", UpdatedAt: now.Add(-45 * time.Minute)}

	assert.True(t, s.StaleAt(now, 30*time.Minute))
	assert.False(t, s.StaleAt(now, time.Hour))
}

func TestSessionSet_Validate(t *testing.T) {
	parentID := "root"

	valid := func() *SessionSet {
		set := NewSessionSet()
		set.Sessions["root"] = &Session{ID: "root", Depth: 0, Phase: PhaseWork, Status: StatusActive}
		set.Sessions["child"] = &Session{ID: "child", ParentID: &parentID, Depth: 1, Phase: PhasePlan, Status: StatusActive}
		return set
	}

	t.Run("valid set", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("id mismatch", func(t *testing.T) {
		set := valid()
		set.Sessions["child"].ID = "other"
		assert.Error(t, set.Validate())
	})

	t.Run("missing parent", func(t *testing.T) {
		set := valid()
		delete(set.Sessions, "root")
		assert.Error(t, set.Validate())
	})

	t.Run("wrong depth", func(t *testing.T) {
		set := valid()
		set.Sessions["child"].Depth = 2
		assert.Error(t, set.Validate())
	})

	t.Run("root with nonzero depth", func(t *testing.T) {
		set := valid()
		set.Sessions["root"].Depth = 1
		assert.Error(t, set.Validate())
	})

	t.Run("unknown status", func(t *testing.T) {
		set := valid()
		set.Sessions["root"].Status = "bogus"
		assert.Error(t, set.Validate())
	})
}

func TestSessionSet_ActiveRootCount(t *testing.T) {
	set := NewSessionSet()
	rootID := "r1"
	set.Sessions["r1"] = &Session{ID: "r1", Status: StatusActive, Phase: PhaseWork}
	set.Sessions["r2"] = &Session{ID: "r2", Status: StatusCompleted, Phase: PhaseDone}
	set.Sessions["r3"] = &Session{ID: "r3", Status: StatusPaused, Phase: PhasePlan}
	set.Sessions["c1"] = &Session{ID: "c1", ParentID: &rootID, Depth: 1, Status: StatusActive, Phase: PhaseWork}

	assert.Equal(t, 2, set.ActiveRootCount(), "completed roots and children do not count")
}
