package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jpoley/scantriage/internal/orchestrator"
	"github.com/jpoley/scantriage/models"
)

// Version is the current snapshot format version. Load rejects snapshots
// written by a newer format.
const Version = 1

// Snapshot is the persisted result of one scan-and-triage run. It carries
// the merged findings so a later triage pass can rerun classification and
// scoring without touching the scanners.
type Snapshot struct {
	Version   int                           `json:"version"`
	CreatedAt time.Time                     `json:"created_at"`
	Target    string                        `json:"target"`
	Status    string                        `json:"status"`
	Ran       []orchestrator.AdapterOutcome `json:"ran"`
	Skipped   []orchestrator.AdapterOutcome `json:"skipped,omitempty"`
	Failed    []orchestrator.AdapterOutcome `json:"failed,omitempty"`
	Findings  []models.UnifiedFinding       `json:"findings"`
	Triaged   []models.TriagedFinding       `json:"triaged"`
	Clusters  []models.Cluster              `json:"clusters,omitempty"`
}

// New assembles a snapshot from an orchestration result and its triage
// output.
func New(target string, res *orchestrator.Result, triaged []models.TriagedFinding, clusters []models.Cluster) *Snapshot {
	return &Snapshot{
		Version:   Version,
		CreatedAt: time.Now().UTC(),
		Target:    target,
		Status:    res.Status,
		Ran:       res.Ran,
		Skipped:   res.Skipped,
		Failed:    res.Failed,
		Findings:  res.Findings,
		Triaged:   triaged,
		Clusters:  clusters,
	}
}

// Write stores the snapshot at path, creating parent directories as needed.
// The file is written to a temp name first and renamed into place so a
// crashed run never leaves a truncated snapshot behind.
func (s *Snapshot) Write(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("installing snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot from path and checks its format version.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	// Peek at the version before decoding the full payload so a format
	// mismatch produces a clear error instead of field soup.
	var header struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	if header.Version > Version {
		return nil, fmt.Errorf("snapshot %s uses format version %d, this build supports up to %d", path, header.Version, Version)
	}
	if header.Version < 1 {
		return nil, fmt.Errorf("snapshot %s has no format version", path)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return &s, nil
}

// DefaultPath returns the snapshot location for a target under dir. The
// file name combines the target basename with a short hash of the full
// target, so distinct targets sharing a basename get distinct snapshots.
func DefaultPath(dir, target string) string {
	base := filepath.Base(filepath.Clean(target))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "scan"
	}
	sum := sha256.Sum256([]byte(strings.TrimRight(target, "/")))
	return filepath.Join(dir, fmt.Sprintf("%s-%s.json", base, hex.EncodeToString(sum[:4])))
}
