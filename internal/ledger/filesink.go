package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileSink persists audit trails as JSON files in a directory, one file per
// run, named <job-id>-<generated-at>.json.
type FileSink struct {
	dir string
}

// NewFileSink creates a FileSink, creating the directory if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// SaveAuditTrail writes the trail as indented JSON.
func (s *FileSink) SaveAuditTrail(_ context.Context, jobID uuid.UUID, trail *AuditTrail) error {
	data, err := json.MarshalIndent(trail, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal audit trail: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", jobID, trail.GeneratedAt.Format("20060102T150405"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write audit trail: %w", err)
	}
	return nil
}
