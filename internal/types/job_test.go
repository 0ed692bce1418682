package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_IsValid(t *testing.T) {
	tests := []struct {
		status JobStatus
		valid  bool
	}{
		{StatusQueued, true},
		{StatusProcessing, true},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusPublished, true},
		{JobStatus("cancelled"), false},
		{JobStatus(""), false},
		{JobStatus("QUEUED"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
		})
	}
}

func TestJobStatus_CanTransitionTo(t *testing.T) {
	all := []JobStatus{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusPublished}

	allowed := map[JobStatus]map[JobStatus]bool{
		StatusQueued:     {StatusProcessing: true},
		StatusProcessing: {StatusCompleted: true, StatusFailed: true},
		StatusCompleted:  {StatusPublished: true},
		StatusFailed:     {StatusQueued: true},
		StatusPublished:  {},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestJobStatus_SelfTransitionRejected(t *testing.T) {
	for _, s := range []JobStatus{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusPublished} {
		assert.False(t, s.CanTransitionTo(s), "%s -> %s should be rejected", s, s)
	}
}
