package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Run status values recorded in the index.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusFailed  = "failed"
)

// indexCap bounds run_index.json growth.
const indexCap = 200

// IndexEntry is one row in run_index.json, newest first.
type IndexEntry struct {
	ID         string   `json:"id"`
	RunID      string   `json:"run_id"`
	Timestamp  string   `json:"timestamp"`
	User       string   `json:"user"`
	Status     string   `json:"status"`
	PlanScore  *float64 `json:"plan_score"`
	OutputsDir string   `json:"outputs_dir"`
}

// UpdateIndex prepends entry to {outputDir}/run_index.json, deduplicating by
// run id and capping the list. The file is rewritten atomically; a corrupt
// existing index is discarded rather than propagated.
func UpdateIndex(outputDir string, entry IndexEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	path := filepath.Join(outputDir, "run_index.json")

	var entries []IndexEntry
	if data, err := os.ReadFile(path); err == nil {
		// Tolerate a corrupt index file by starting over.
		_ = json.Unmarshal(data, &entries)
	}

	merged := make([]IndexEntry, 0, len(entries)+1)
	merged = append(merged, entry)
	for _, e := range entries {
		if e.RunID == entry.RunID {
			continue
		}
		merged = append(merged, e)
	}
	if len(merged) > indexCap {
		merged = merged[:indexCap]
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run index: %w", err)
	}
	// Unique temp name so concurrent runs never clobber each other's write.
	tmp, err := os.CreateTemp(outputDir, "run_index-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create run index temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write run index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write run index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace run index: %w", err)
	}
	return nil
}

// ReadIndex loads run_index.json, returning an empty list when the file is
// absent or corrupt.
func ReadIndex(outputDir string) []IndexEntry {
	var entries []IndexEntry
	if data, err := os.ReadFile(filepath.Join(outputDir, "run_index.json")); err == nil {
		_ = json.Unmarshal(data, &entries)
	}
	return entries
}
