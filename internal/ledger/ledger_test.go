package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by a fixed step on every read, so phase durations are
// deterministic.
type fakeClock struct {
	current time.Time
	step    time.Duration
}

func (c *fakeClock) now() time.Time {
	t := c.current
	c.current = c.current.Add(c.step)
	return t
}

func newTestLedger(step time.Duration) (*Ledger, uuid.UUID) {
	jobID := uuid.New()
	clock := &fakeClock{
		current: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		step:    step,
	}
	return New(jobID).WithClock(clock.now), jobID
}

func TestLedger_PhaseLifecycle(t *testing.T) {
	l, _ := newTestLedger(2 * time.Second)

	l.StartPhase("generate_structure", map[string]any{"topic": "transistors"})
	l.CompletePhase("generate_structure", map[string]any{"chapters": 5})

	trail := l.GenerateAuditTrail()
	require.Len(t, trail.Phases, 1)

	phase := trail.Phases[0]
	assert.Equal(t, "generate_structure", phase.Phase)
	assert.Equal(t, PhaseCompleted, phase.Status)
	require.NotNil(t, phase.StartedAt)
	require.NotNil(t, phase.CompletedAt)
	assert.Equal(t, 2.0, phase.DurationSeconds)
	assert.Equal(t, map[string]any{"topic": "transistors"}, phase.Metadata)
	assert.Equal(t, map[string]any{"chapters": 5}, phase.Result)
}

func TestLedger_RestartPhaseLastStartWins(t *testing.T) {
	l, _ := newTestLedger(time.Second)

	l.StartPhase("write_content", nil)
	l.StartPhase("write_content", map[string]any{"attempt": 2})
	l.CompletePhase("write_content", nil)

	trail := l.GenerateAuditTrail()
	require.Len(t, trail.Phases, 1, "restarting a phase should not duplicate it")

	phase := trail.Phases[0]
	assert.Equal(t, PhaseCompleted, phase.Status)
	assert.Equal(t, map[string]any{"attempt": 2}, phase.Metadata)
	assert.Equal(t, 1.0, phase.DurationSeconds, "duration should be measured from the latest start")
}

func TestLedger_CompleteUnstartedPhase(t *testing.T) {
	l, _ := newTestLedger(time.Second)

	l.CompletePhase("publish", nil)

	trail := l.GenerateAuditTrail()
	require.Len(t, trail.Phases, 1)
	assert.Equal(t, PhaseCompleted, trail.Phases[0].Status)
	assert.Nil(t, trail.Phases[0].StartedAt)
	assert.Zero(t, trail.Phases[0].DurationSeconds)

	require.Len(t, trail.Warnings, 1)
	assert.Contains(t, trail.Warnings[0].Message, "phase was not started: publish")
}

func TestLedger_FailPhase(t *testing.T) {
	l, _ := newTestLedger(time.Second)

	cause := errors.New("connection refused")
	l.StartPhase("publish", nil)
	l.FailPhase("publish", "could not reach the site", "connection", cause)

	trail := l.GenerateAuditTrail()
	require.Len(t, trail.Phases, 1)

	phase := trail.Phases[0]
	assert.Equal(t, PhaseFailed, phase.Status)
	require.NotNil(t, phase.Error)
	assert.Equal(t, "could not reach the site", phase.Error.Message)
	assert.Equal(t, "connection", phase.Error.Category)
	assert.Equal(t, "connection refused", phase.Error.Cause)
	assert.Equal(t, 1.0, phase.DurationSeconds)
}

func TestLedger_FailUnstartedPhase(t *testing.T) {
	l, _ := newTestLedger(time.Second)

	l.FailPhase("generate_assets", "provider unavailable", "connection", nil)

	trail := l.GenerateAuditTrail()
	require.Len(t, trail.Phases, 1)
	assert.Equal(t, PhaseFailed, trail.Phases[0].Status)
	require.NotNil(t, trail.Phases[0].Error)
	assert.Empty(t, trail.Phases[0].Error.Cause)
}

func TestLedger_LogAPICall(t *testing.T) {
	l, _ := newTestLedger(time.Second)

	l.LogAPICall("gemini", "generate_structure", map[string]any{"tier": "standard"}, nil, 0.05)
	l.LogAPICall("gemini", "write_section", nil, map[string]any{"tokens": 1200}, 0.08)
	l.LogAPICall("dalle", "generate_image", nil, nil, 0.04)

	summary := l.GenerateSummary()
	assert.InDelta(t, 0.17, summary.TotalCostUSD, 1e-9)
	assert.InDelta(t, 0.13, summary.CostByAPI["gemini"], 1e-9)
	assert.InDelta(t, 0.04, summary.CostByAPI["dalle"], 1e-9)

	trail := l.GenerateAuditTrail()
	require.Len(t, trail.APICalls, 3)
	assert.Equal(t, "gemini", trail.APICalls[0].API)
	assert.Equal(t, "generate_structure", trail.APICalls[0].Operation)
	assert.Equal(t, 0.05, trail.APICalls[0].CostUSD)
}

func TestLedger_GenerateSummaryStatus(t *testing.T) {
	tests := []struct {
		name   string
		record func(l *Ledger)
		want   string
	}{
		{
			name:   "no phases is success",
			record: func(*Ledger) {},
			want:   ExecutionSuccess,
		},
		{
			name: "all completed is success",
			record: func(l *Ledger) {
				l.StartPhase("a", nil)
				l.CompletePhase("a", nil)
				l.StartPhase("b", nil)
				l.CompletePhase("b", nil)
			},
			want: ExecutionSuccess,
		},
		{
			name: "all failed is failed",
			record: func(l *Ledger) {
				l.FailPhase("a", "boom", "unknown", nil)
				l.FailPhase("b", "boom", "unknown", nil)
			},
			want: ExecutionFailed,
		},
		{
			name: "mixed is partial success",
			record: func(l *Ledger) {
				l.StartPhase("a", nil)
				l.CompletePhase("a", nil)
				l.FailPhase("b", "boom", "unknown", nil)
			},
			want: ExecutionPartialSuccess,
		},
		{
			name: "in-progress phase is partial success",
			record: func(l *Ledger) {
				l.StartPhase("a", nil)
				l.CompletePhase("a", nil)
				l.StartPhase("b", nil)
			},
			want: ExecutionPartialSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLedger(time.Second)
			tt.record(l)
			assert.Equal(t, tt.want, l.GenerateSummary().Status)
		})
	}
}

func TestLedger_SummaryCountsErrorsAndWarnings(t *testing.T) {
	l, _ := newTestLedger(time.Second)

	l.Error("first problem", map[string]any{"phase": "publish"})
	l.Error("second problem", nil)
	l.Warning("heads up", nil)

	summary := l.GenerateSummary()
	assert.Equal(t, 2, summary.ErrorCount)
	assert.Equal(t, 1, summary.WarningCount)
	assert.Equal(t, []string{"first problem", "second problem"}, summary.Errors)
	assert.Equal(t, []string{"heads up"}, summary.Warnings)
}

func TestLedger_GenerateAuditTrail(t *testing.T) {
	l, jobID := newTestLedger(time.Second)

	l.StartPhase("generate_structure", nil)
	l.CompletePhase("generate_structure", nil)
	l.StartPhase("write_content", nil)
	l.FailPhase("write_content", "boom", "connection", nil)
	l.LogAPICall("gemini", "generate_structure", nil, nil, 0.02)

	trail := l.GenerateAuditTrail()
	assert.Equal(t, AuditTrailVersion, trail.Version)
	assert.Equal(t, jobID, trail.JobID)
	assert.False(t, trail.GeneratedAt.IsZero())
	require.NotNil(t, trail.Summary)
	assert.Equal(t, ExecutionPartialSuccess, trail.Summary.Status)

	// Phases keep insertion order.
	require.Len(t, trail.Phases, 2)
	assert.Equal(t, "generate_structure", trail.Phases[0].Phase)
	assert.Equal(t, "write_content", trail.Phases[1].Phase)
}

func TestLedger_SaveToFile(t *testing.T) {
	l, _ := newTestLedger(time.Second)
	l.StartPhase("generate_structure", nil)
	l.CompletePhase("generate_structure", nil)

	path := t.TempDir() + "/trail.json"
	ok := l.SaveToFile(path)
	assert.True(t, ok)
	assert.FileExists(t, path)
}

func TestLedger_SaveToFileBadPath(t *testing.T) {
	l, _ := newTestLedger(time.Second)

	ok := l.SaveToFile(t.TempDir() + "/missing/dir/trail.json")
	assert.False(t, ok)
	assert.Equal(t, 1, l.GenerateSummary().ErrorCount, "a failed save should record an error entry")
}
