package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-engine/internal/ledger"
)

// -----------------------------------------------------------------------------
// Audit Trail Methods
// -----------------------------------------------------------------------------

// AuditRecord is a stored audit trail with its storage metadata.
type AuditRecord struct {
	ID        int64              `json:"id"`
	JobID     uuid.UUID          `json:"job_id"`
	Version   string             `json:"version"`
	Trail     *ledger.AuditTrail `json:"trail"`
	CreatedAt time.Time          `json:"created_at"`
}

// SaveAuditTrail persists one run's audit trail. Jobs accumulate one trail
// per execution attempt; trails outlive the job row itself.
func (db *DB) SaveAuditTrail(ctx context.Context, jobID uuid.UUID, trail *ledger.AuditTrail) error {
	data, err := json.Marshal(trail)
	if err != nil {
		return fmt.Errorf("failed to marshal audit trail: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO audit_trails (job_id, version, trail) VALUES ($1, $2, $3)`,
		jobID, trail.Version, data)
	if err != nil {
		return fmt.Errorf("failed to save audit trail: %w", err)
	}
	return nil
}

// ListAuditTrails returns all stored trails for a job, oldest first.
func (db *DB) ListAuditTrails(ctx context.Context, jobID uuid.UUID) ([]AuditRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, version, trail, created_at
		 FROM audit_trails WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit trails: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var data []byte
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.Version, &data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit trail: %w", err)
		}
		if err := json.Unmarshal(data, &rec.Trail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit trail: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentCost sums the recorded cost of the most recent trails across all
// jobs. Used by the statistics endpoint.
func (db *DB) RecentCost(ctx context.Context, limit int) (float64, error) {
	var total float64
	err := db.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM (
		    SELECT (trail->'summary'->>'total_cost_usd')::NUMERIC AS cost
		    FROM audit_trails ORDER BY created_at DESC LIMIT $1
		 ) recent`, limit).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate recent cost: %w", err)
	}
	return total, nil
}

// TotalCost aggregates the recorded cost across every stored trail for a job.
func (db *DB) TotalCost(ctx context.Context, jobID uuid.UUID) (float64, error) {
	var total float64
	err := db.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM((trail->'summary'->>'total_cost_usd')::NUMERIC), 0)
		 FROM audit_trails WHERE job_id = $1`, jobID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate audit cost: %w", err)
	}
	return total, nil
}
