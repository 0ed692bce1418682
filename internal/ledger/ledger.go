// Package ledger provides per-run execution bookkeeping: phase timing,
// billable API-call costs, errors and warnings, and a versioned audit trail.
//
// One Ledger instance covers exactly one job run. API-call records are owned
// by that run and never shared across runs.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditTrailVersion identifies the audit-trail document format.
const AuditTrailVersion = "1.0"

// Phase status constants
const (
	PhaseInProgress = "in_progress"
	PhaseCompleted  = "completed"
	PhaseFailed     = "failed"
)

// Execution status constants reported by GenerateSummary.
const (
	ExecutionSuccess        = "success"
	ExecutionFailed         = "failed"
	ExecutionPartialSuccess = "partial_success"
)

// PhaseError holds structured detail for a failed phase.
type PhaseError struct {
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
	Cause    string `json:"cause,omitempty"`
}

// PhaseRecord represents one named step inside one job run.
type PhaseRecord struct {
	Phase           string         `json:"phase"`
	Status          string         `json:"status"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	Error           *PhaseError    `json:"error,omitempty"`
}

// APICallRecord represents one billable external call.
type APICallRecord struct {
	API       string         `json:"api"`
	Operation string         `json:"operation"`
	Request   map[string]any `json:"request,omitempty"`
	Response  map[string]any `json:"response,omitempty"`
	CostUSD   float64        `json:"cost_usd"`
	Timestamp time.Time      `json:"timestamp"`
}

// LogEntry is a free-standing error or warning independent of any phase.
type LogEntry struct {
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ExecutionSummary aggregates one run. It is derived from the recorded
// phases and API calls, never stored independently.
type ExecutionSummary struct {
	Status               string             `json:"status"`
	TotalDurationSeconds float64            `json:"total_duration_seconds"`
	TotalCostUSD         float64            `json:"total_cost_usd"`
	CostByAPI            map[string]float64 `json:"cost_by_api"`
	PhaseCount           int                `json:"phase_count"`
	ErrorCount           int                `json:"error_count"`
	WarningCount         int                `json:"warning_count"`
	Errors               []string           `json:"errors,omitempty"`
	Warnings             []string           `json:"warnings,omitempty"`
}

// Ledger records phases, API calls, errors and warnings for one job run.
type Ledger struct {
	mu sync.Mutex

	jobID      uuid.UUID
	phaseOrder []string
	phases     map[string]*PhaseRecord
	apiCalls   []APICallRecord
	costByAPI  map[string]float64
	errors     []LogEntry
	warnings   []LogEntry
	startedAt  time.Time

	now func() time.Time
}

// New creates a Ledger for one run of the given job.
func New(jobID uuid.UUID) *Ledger {
	l := &Ledger{
		jobID:     jobID,
		phases:    make(map[string]*PhaseRecord),
		costByAPI: make(map[string]float64),
		now:       time.Now,
	}
	l.startedAt = l.now().UTC()
	return l
}

// WithClock overrides the ledger's clock. Tests use this for deterministic
// durations.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	l.startedAt = now().UTC()
	return l
}

// JobID returns the job this ledger belongs to.
func (l *Ledger) JobID() uuid.UUID {
	return l.jobID
}

// StartPhase records a new in-progress phase. Starting the same name twice
// overwrites the earlier start: last start wins.
func (l *Ledger) StartPhase(name string, metadata map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	started := l.now().UTC()
	record := &PhaseRecord{
		Phase:     name,
		Status:    PhaseInProgress,
		StartedAt: &started,
		Metadata:  metadata,
	}
	if _, exists := l.phases[name]; !exists {
		l.phaseOrder = append(l.phaseOrder, name)
	}
	l.phases[name] = record
}

// CompletePhase marks the phase completed and computes its duration. A phase
// that was never started is still recorded as completed, with a warning and
// zero duration.
func (l *Ledger) CompletePhase(name string, result map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	completed := l.now().UTC()
	record, ok := l.phases[name]
	if !ok {
		l.warnings = append(l.warnings, LogEntry{
			Message:   "phase was not started: " + name,
			Timestamp: completed,
		})
		record = &PhaseRecord{Phase: name}
		l.phaseOrder = append(l.phaseOrder, name)
		l.phases[name] = record
	}
	record.Status = PhaseCompleted
	record.CompletedAt = &completed
	record.Result = result
	if record.StartedAt != nil {
		record.DurationSeconds = completed.Sub(*record.StartedAt).Seconds()
	}
}

// FailPhase marks the phase failed with a message and structured cause. It
// works even when the phase was never started.
func (l *Ledger) FailPhase(name, message, category string, cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	failed := l.now().UTC()
	record, ok := l.phases[name]
	if !ok {
		record = &PhaseRecord{Phase: name}
		l.phaseOrder = append(l.phaseOrder, name)
		l.phases[name] = record
	}
	record.Status = PhaseFailed
	record.CompletedAt = &failed
	if record.StartedAt != nil {
		record.DurationSeconds = failed.Sub(*record.StartedAt).Seconds()
	}
	phaseErr := &PhaseError{Message: message, Category: category}
	if cause != nil {
		phaseErr.Cause = cause.Error()
	}
	record.Error = phaseErr
}

// LogAPICall appends a billable API-call record. Costs accumulate into
// per-API totals.
func (l *Ledger) LogAPICall(api, operation string, request, response map[string]any, costUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.apiCalls = append(l.apiCalls, APICallRecord{
		API:       api,
		Operation: operation,
		Request:   request,
		Response:  response,
		CostUSD:   costUSD,
		Timestamp: l.now().UTC(),
	})
	l.costByAPI[api] += costUSD
}

// Error records a free-standing error entry.
func (l *Ledger) Error(message string, context map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, LogEntry{Message: message, Context: context, Timestamp: l.now().UTC()})
}

// Warning records a free-standing warning entry.
func (l *Ledger) Warning(message string, context map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, LogEntry{Message: message, Context: context, Timestamp: l.now().UTC()})
}

// GenerateSummary derives the execution summary: success iff every phase
// completed, failed iff every phase failed, partial_success otherwise.
func (l *Ledger) GenerateSummary() *ExecutionSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summaryLocked()
}

func (l *Ledger) summaryLocked() *ExecutionSummary {
	completed, failed := 0, 0
	for _, record := range l.phases {
		switch record.Status {
		case PhaseCompleted:
			completed++
		case PhaseFailed:
			failed++
		}
	}

	status := ExecutionPartialSuccess
	switch {
	case len(l.phases) > 0 && completed == len(l.phases):
		status = ExecutionSuccess
	case len(l.phases) > 0 && failed == len(l.phases):
		status = ExecutionFailed
	case len(l.phases) == 0:
		status = ExecutionSuccess
	}

	totalCost := 0.0
	costByAPI := make(map[string]float64, len(l.costByAPI))
	for api, cost := range l.costByAPI {
		costByAPI[api] = cost
		totalCost += cost
	}

	summary := &ExecutionSummary{
		Status:               status,
		TotalDurationSeconds: l.now().UTC().Sub(l.startedAt).Seconds(),
		TotalCostUSD:         totalCost,
		CostByAPI:            costByAPI,
		PhaseCount:           len(l.phases),
		ErrorCount:           len(l.errors),
		WarningCount:         len(l.warnings),
	}
	for _, entry := range l.errors {
		summary.Errors = append(summary.Errors, entry.Message)
	}
	for _, entry := range l.warnings {
		summary.Warnings = append(summary.Warnings, entry.Message)
	}
	return summary
}
