// Package run persists per-run artifacts under a timestamped directory and
// maintains the cross-run index. Persistence failures are reported to the
// caller but are never fatal to a conversation run.
package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Artifact file names inside a run directory.
const (
	FileTranscript  = "conversation_history.txt"
	FileFinalPlan   = "final_plan.json"
	FileSummaryJSON = "longevity_plan_summary.json"
	FileSummaryText = "longevity_plan_summary.txt"
	FileValidations = "scientific_validity_checks.json"
	FileTelemetry   = "telemetry.json"
	FileBookings    = "bookings.json"
	FileManifest    = "manifest.json"
)

var timeNow = time.Now

// Store writes artifacts for one run into
// {output}/longevity_plan_{YYYYMMDD_HHMMSS}/.
type Store struct {
	dir string

	mu sync.Mutex
}

// NewStore creates the run directory under outputDir. The timestamp has
// second resolution, so parallel runs starting in the same second would
// collide; the directory is claimed exclusively and a uuid suffix is added
// when the plain name is already taken.
func NewStore(outputDir string) (*Store, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	ts := timeNow().UTC().Format("20060102_150405")
	dir := filepath.Join(outputDir, "longevity_plan_"+ts)
	err := os.Mkdir(dir, 0o755)
	if errors.Is(err, fs.ErrExist) {
		dir += "_" + uuid.NewString()[:8]
		err = os.Mkdir(dir, 0o755)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the run directory path.
func (s *Store) Dir() string {
	return s.dir
}

// RunID is the run directory name, e.g. "longevity_plan_20260825_101530".
func (s *Store) RunID() string {
	return filepath.Base(s.dir)
}

// Path returns the absolute path of an artifact inside the run directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// AppendTranscript appends lines to the conversation transcript, flushing
// after every write so a crashed run still leaves a readable history. Lines
// gain a trailing newline when missing.
func (s *Store) AppendTranscript(lines ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.Path(FileTranscript), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("failed to append transcript: %w", err)
		}
		if len(line) == 0 || line[len(line)-1] != '\n' {
			if _, err := f.WriteString("\n"); err != nil {
				return fmt.Errorf("failed to append transcript: %w", err)
			}
		}
	}
	return f.Sync()
}

// SaveJSON writes v as indented JSON into the named artifact.
func (s *Store) SaveJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := os.WriteFile(s.Path(name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// SaveText writes a plain-text artifact.
func (s *Store) SaveText(name, text string) error {
	if err := os.WriteFile(s.Path(name), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Manifest is the composite view of one run, mirroring the per-run artifacts.
type Manifest struct {
	ID          string          `json:"id"`
	Summary     json.RawMessage `json:"summary"`
	Telemetry   json.RawMessage `json:"telemetry"`
	Validations json.RawMessage `json:"validations"`
	Transcript  string          `json:"conversation"`
	Bookings    json.RawMessage `json:"bookings"`
}

// WriteManifest assembles manifest.json from the artifacts already on disk.
// Missing or unreadable artifacts degrade to empty values.
func (s *Store) WriteManifest() error {
	m := Manifest{
		ID:          s.RunID(),
		Summary:     readJSONOr(s.Path(FileSummaryJSON), json.RawMessage(`{}`)),
		Telemetry:   readJSONOr(s.Path(FileTelemetry), json.RawMessage(`[]`)),
		Validations: readJSONOr(s.Path(FileValidations), json.RawMessage(`[]`)),
		Bookings:    readJSONOr(s.Path(FileBookings), json.RawMessage(`[]`)),
	}
	if data, err := os.ReadFile(s.Path(FileTranscript)); err == nil {
		m.Transcript = string(data)
	}
	return s.SaveJSON(FileManifest, m)
}

func readJSONOr(path string, fallback json.RawMessage) json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil || !json.Valid(data) {
		return fallback
	}
	return data
}
