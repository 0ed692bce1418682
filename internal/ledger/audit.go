package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// AuditTrail is the versioned, serializable record of one job run. It is
// produced even when zero phases were recorded.
type AuditTrail struct {
	Version     string            `json:"version"`
	JobID       uuid.UUID         `json:"job_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Summary     *ExecutionSummary `json:"summary"`
	Phases      []PhaseRecord     `json:"phases"`
	APICalls    []APICallRecord   `json:"api_calls"`
	Errors      []LogEntry        `json:"errors"`
	Warnings    []LogEntry        `json:"warnings"`
}

// GenerateAuditTrail builds the full audit document for this run.
func (l *Ledger) GenerateAuditTrail() *AuditTrail {
	l.mu.Lock()
	defer l.mu.Unlock()

	phases := make([]PhaseRecord, 0, len(l.phaseOrder))
	for _, name := range l.phaseOrder {
		phases = append(phases, *l.phases[name])
	}

	return &AuditTrail{
		Version:     AuditTrailVersion,
		JobID:       l.jobID,
		GeneratedAt: l.now().UTC(),
		Summary:     l.summaryLocked(),
		Phases:      phases,
		APICalls:    append([]APICallRecord{}, l.apiCalls...),
		Errors:      append([]LogEntry{}, l.errors...),
		Warnings:    append([]LogEntry{}, l.warnings...),
	}
}

// SaveToFile writes the audit trail as indented JSON. It returns false and
// records an error entry on failure rather than propagating the error; a
// broken audit sink must not fail the run it is auditing.
func (l *Ledger) SaveToFile(path string) bool {
	trail := l.GenerateAuditTrail()

	data, err := json.MarshalIndent(trail, "", "  ")
	if err != nil {
		l.Error("failed to marshal audit trail", map[string]any{"path": path, "error": err.Error()})
		return false
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		l.Error("failed to write audit trail", map[string]any{"path": path, "error": err.Error()})
		return false
	}
	return true
}

// String renders the audit trail as compact JSON for persistence.
func (t *AuditTrail) String() string {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Sprintf("audit trail for job %s (unserializable: %v)", t.JobID, err)
	}
	return string(data)
}
